package pegin

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Byte layout of the unfunded peg-in template:
//
//	version(4) [marker 0x00 flag 0x01] vin(1)=0 vout(1)=1
//	value(8 LE) scriptLen(1) script locktime(4)
//
// A zero-input tx in legacy form also starts with 0x00 0x01 after the
// version, so the witness form is only tried when the total length agrees
// and the legacy form is the fallback.
const (
	versionSize     = 4
	witnessFlagSize = 2
	countSize       = 1
	valueSize       = 8
	scriptLenSize   = 1
	locktimeSize    = 4

	maxScriptLen = 0xfc

	legacyTemplateSize  = versionSize + 2*countSize + valueSize + scriptLenSize + locktimeSize
	witnessTemplateSize = legacyTemplateSize + witnessFlagSize
)

// ParseUnfundedTx extracts version, locktime and the single vault output
// from the hex encoded template. Any deviation from exactly zero inputs and
// one output is a contract break with the template builder.
func ParseUnfundedTx(txHex string) (*UnfundedTransaction, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex: %s", ErrMalformedTransaction, err)
	}
	if len(buf) < legacyTemplateSize {
		return nil, fmt.Errorf(
			"%w: too short, got %d bytes", ErrMalformedTransaction, len(buf),
		)
	}

	if hasWitnessMarker(buf) {
		if tx, err := parseTemplate(buf, versionSize+witnessFlagSize); err == nil {
			return tx, nil
		}
	}
	return parseTemplate(buf, versionSize)
}

func parseTemplate(buf []byte, offset int) (*UnfundedTransaction, error) {
	version := int32(binary.LittleEndian.Uint32(buf[:versionSize]))

	if inputCount := buf[offset]; inputCount != 0 {
		return nil, fmt.Errorf(
			"%w: expected 0 inputs, got %d", ErrMalformedTransaction, inputCount,
		)
	}
	offset += countSize

	if outputCount := buf[offset]; outputCount != 1 {
		return nil, fmt.Errorf(
			"%w: expected 1 output, got %d", ErrMalformedTransaction, outputCount,
		)
	}
	offset += countSize

	value := binary.LittleEndian.Uint64(buf[offset : offset+valueSize])
	offset += valueSize

	scriptLen := int(buf[offset])
	offset += scriptLenSize
	if scriptLen > maxScriptLen {
		return nil, fmt.Errorf(
			"%w: unsupported script length prefix 0x%x", ErrMalformedTransaction, scriptLen,
		)
	}

	if expected := offset + scriptLen + locktimeSize; len(buf) != expected {
		return nil, fmt.Errorf(
			"%w: expected %d bytes, got %d", ErrMalformedTransaction, expected, len(buf),
		)
	}

	script := make([]byte, scriptLen)
	copy(script, buf[offset:offset+scriptLen])
	offset += scriptLen

	locktime := binary.LittleEndian.Uint32(buf[offset : offset+locktimeSize])

	return &UnfundedTransaction{
		Version:     version,
		LockTime:    locktime,
		VaultValue:  value,
		VaultScript: script,
	}, nil
}

// SerializeUnfundedTx encodes the template in witness form, the same way the
// template builder does.
func SerializeUnfundedTx(tx UnfundedTransaction) (string, error) {
	if len(tx.VaultScript) > maxScriptLen {
		return "", fmt.Errorf("vault script too long: %d bytes", len(tx.VaultScript))
	}

	buf := bytes.NewBuffer(make([]byte, 0, witnessTemplateSize+len(tx.VaultScript)))

	scratch := make([]byte, valueSize)
	binary.LittleEndian.PutUint32(scratch[:versionSize], uint32(tx.Version))
	buf.Write(scratch[:versionSize])
	buf.Write([]byte{0x00, 0x01})
	buf.Write([]byte{0x00, 0x01})
	binary.LittleEndian.PutUint64(scratch, tx.VaultValue)
	buf.Write(scratch)
	buf.WriteByte(byte(len(tx.VaultScript)))
	buf.Write(tx.VaultScript)
	binary.LittleEndian.PutUint32(scratch[:locktimeSize], tx.LockTime)
	buf.Write(scratch[:locktimeSize])

	return hex.EncodeToString(buf.Bytes()), nil
}

func hasWitnessMarker(buf []byte) bool {
	if buf[4] != 0x00 || buf[5] != 0x01 {
		return false
	}
	if len(buf) < witnessTemplateSize {
		return false
	}
	scriptLenOffset := versionSize + witnessFlagSize + 2*countSize + valueSize
	return len(buf) == witnessTemplateSize+int(buf[scriptLenOffset])
}
