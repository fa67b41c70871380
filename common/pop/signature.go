package pop

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// maxWitnessItemSize bounds a single decoded witness element.
const maxWitnessItemSize = 4_000_000

// Signature is the witness of the signed to_sign input.
type Signature wire.TxWitness

func DecodeSignature(b64 string) (*Signature, error) {
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(decoded)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	if count == 0 || count > uint64(len(decoded)) {
		return nil, fmt.Errorf("invalid witness item count %d", count)
	}

	witness := make(wire.TxWitness, 0, count)
	for i := uint64(0); i < count; i++ {
		item, err := wire.ReadVarBytes(r, 0, maxWitnessItemSize, "witness item")
		if err != nil {
			return nil, err
		}
		witness = append(witness, item)
	}
	if r.Len() > 0 {
		return nil, fmt.Errorf("unexpected %d trailing bytes", r.Len())
	}

	return (*Signature)(&witness), nil
}

// Encode serializes the witness stack and encodes it in base64
func (s Signature) Encode() (string, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(s))); err != nil {
		return "", err
	}
	for _, item := range s {
		if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Verify runs the script engine over the to_sign transaction carrying this
// witness for the given message and address script.
func (s Signature) Verify(message string, pkScript []byte) error {
	if len(s) <= 0 {
		return ErrEmptySignature
	}
	if len(pkScript) <= 0 {
		return ErrMissingPkScript
	}

	toSpend := craftToSpendTx(message, pkScript)
	toSign, err := craftToSignTx(toSpend)
	if err != nil {
		return err
	}

	tx := toSign.UnsignedTx.Copy()
	tx.TxIn[0].Witness = wire.TxWitness(s)

	prevout := toSpend.TxOut[0]
	prevoutFetcher := txscript.NewCannedPrevOutputFetcher(prevout.PkScript, prevout.Value)
	txSigHashes := txscript.NewTxSigHashes(tx, prevoutFetcher)

	engine, err := txscript.NewEngine(
		prevout.PkScript,
		tx,
		0,
		txscript.StandardVerifyFlags,
		txscript.NewSigCache(10),
		txSigHashes,
		prevout.Value,
		prevoutFetcher,
	)
	if err != nil {
		return err
	}

	return engine.Execute()
}
