// Package pop implements the proof of possession of the depositor's BTC key:
// a BIP-322 "simple" signature over the depositor's ETH address.
// https://bips.xyz/322
package pop

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

var (
	ErrMissingPkScript    = fmt.Errorf("missing pkscript")
	ErrIncompletePSBT     = fmt.Errorf("incomplete psbt, missing signature")
	ErrEmptySignature     = fmt.Errorf("empty signature")
	ErrInvalidEthereumKey = fmt.Errorf("invalid ethereum address")
)

var (
	tagBIP322 = []byte("BIP0322-signed-message")
	zeroHash  = chainhash.Hash{}

	opReturnPkScript = []byte{txscript.OP_RETURN}
)

// Proof is the virtual to_sign transaction of a BIP-322 simple signature.
// Signing it means signing its only input as a regular transaction input.
type Proof psbt.Packet

// New returns the proof to sign for the given message and address script.
func New(message string, pkScript []byte) (*Proof, error) {
	if len(pkScript) <= 0 {
		return nil, ErrMissingPkScript
	}

	toSpend := craftToSpendTx(message, pkScript)
	toSign, err := craftToSignTx(toSpend)
	if err != nil {
		return nil, err
	}

	return (*Proof)(toSign), nil
}

// Message returns the message a depositor signs: its ETH address, lower case
// and 0x prefixed.
func Message(ethAddress string) (string, error) {
	address := strings.ToLower(strings.TrimSpace(ethAddress))
	if !strings.HasPrefix(address, "0x") {
		address = "0x" + address
	}
	if len(address) != 42 {
		return "", fmt.Errorf("%w: %s", ErrInvalidEthereumKey, ethAddress)
	}
	return address, nil
}

func (p *Proof) Packet() *psbt.Packet {
	return (*psbt.Packet)(p)
}

// Signature finalizes the proof and returns the witness of its input.
// If the input needs custom finalization logic, pass the finalize function,
// otherwise the default finalizer is used.
func (p *Proof) Signature(finalize ...func(*psbt.Packet) error) (*Signature, error) {
	if len(finalize) == 0 {
		finalize = []func(*psbt.Packet) error{psbt.MaybeFinalizeAll}
	}

	proofTx := psbt.Packet(*p)
	for _, f := range finalize {
		if err := f(&proofTx); err != nil {
			return nil, err
		}
	}

	if !proofTx.IsComplete() {
		return nil, ErrIncompletePSBT
	}

	signed, err := psbt.Extract(&proofTx)
	if err != nil {
		return nil, err
	}

	witness := signed.TxIn[0].Witness
	if len(witness) <= 0 {
		return nil, ErrEmptySignature
	}
	return (*Signature)(&witness), nil
}

func hashMessage(message string) []byte {
	tagged := chainhash.TaggedHash(tagBIP322, []byte(message))
	return tagged[:]
}

// craftToSpendTx creates the virtual transaction committing to the message
func craftToSpendTx(message string, pkScript []byte) *wire.MsgTx {
	messageHash := hashMessage(message)
	toSpend := wire.NewMsgTx(0)
	toSpend.TxIn = []*wire.TxIn{
		{
			PreviousOutPoint: wire.OutPoint{
				Hash:  zeroHash,
				Index: 0xFFFFFFFF,
			},
			Sequence:        0,
			SignatureScript: append([]byte{txscript.OP_0, txscript.OP_DATA_32}, messageHash...),
			Witness:         wire.TxWitness{},
		},
	}
	toSpend.TxOut = []*wire.TxOut{
		{
			Value:    0,
			PkScript: pkScript,
		},
	}
	return toSpend
}

// craftToSignTx creates the transaction spending toSpend that is signed
func craftToSignTx(toSpend *wire.MsgTx) (*psbt.Packet, error) {
	// BIP-322 mandates version 0, which psbt.New refuses
	tx := wire.NewMsgTx(0)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: toSpend.TxHash(), Index: 0}, nil, nil))
	tx.TxIn[0].Sequence = 0
	tx.AddTxOut(wire.NewTxOut(0, opReturnPkScript))

	toSign, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	updater, err := psbt.NewUpdater(toSign)
	if err != nil {
		return nil, err
	}

	if err := updater.AddInWitnessUtxo(toSpend.TxOut[0], 0); err != nil {
		return nil, err
	}

	sighashType := txscript.SigHashAll
	if txscript.IsPayToTaproot(toSpend.TxOut[0].PkScript) {
		sighashType = txscript.SigHashDefault
	}
	if err := updater.AddInSighashType(sighashType, 0); err != nil {
		return nil, err
	}

	return toSign, nil
}
