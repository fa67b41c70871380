package connector

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/vault-network/vault/common"
)

var ErrMissingPayoutSignature = fmt.Errorf("missing payout signature")

// Prevouts indexes every output of the given transactions by outpoint.
func Prevouts(txs ...*wire.MsgTx) map[wire.OutPoint]*wire.TxOut {
	prevouts := make(map[wire.OutPoint]*wire.TxOut)
	for _, tx := range txs {
		txid := tx.TxHash()
		for i, out := range tx.TxOut {
			prevouts[wire.OutPoint{Hash: txid, Index: uint32(i)}] = out
		}
	}
	return prevouts
}

// DecodeTx parses a hex encoded transaction.
func DecodeTx(txHex string) (*wire.MsgTx, error) {
	var tx wire.MsgTx
	if err := tx.Deserialize(hex.NewDecoder(strings.NewReader(txHex))); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return &tx, nil
}

// NewPayoutPacket prepares the given payout transaction for the depositor's
// signature: the input spending the vault output gets the payout leaf and
// every input its prevout.
func (c *PeginPayoutConnector) NewPayoutPacket(
	payoutTx *wire.MsgTx, prevouts map[wire.OutPoint]*wire.TxOut,
) (*psbt.Packet, error) {
	ptx, err := psbt.NewFromUnsignedTx(payoutTx.Copy())
	if err != nil {
		return nil, err
	}

	vaultScript, err := c.ScriptPubKey()
	if err != nil {
		return nil, err
	}
	script, err := c.PayoutScript()
	if err != nil {
		return nil, err
	}
	controlBlock, err := c.ControlBlock()
	if err != nil {
		return nil, err
	}

	updater, err := psbt.NewUpdater(ptx)
	if err != nil {
		return nil, err
	}

	spendsVault := false
	for i, in := range ptx.UnsignedTx.TxIn {
		prevout, ok := prevouts[in.PreviousOutPoint]
		if !ok {
			return nil, fmt.Errorf("missing prevout %s", in.PreviousOutPoint)
		}
		if err := updater.AddInWitnessUtxo(prevout, i); err != nil {
			return nil, err
		}
		if !bytes.Equal(prevout.PkScript, vaultScript) {
			continue
		}

		spendsVault = true
		ptx.Inputs[i].TaprootInternalKey = schnorr.SerializePubKey(common.UnspendableKey())
		ptx.Inputs[i].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
			ControlBlock: controlBlock,
			Script:       script,
			LeafVersion:  txscript.BaseLeafVersion,
		}}
		if err := updater.AddInSighashType(txscript.SigHashDefault, i); err != nil {
			return nil, err
		}
	}
	if !spendsVault {
		return nil, fmt.Errorf("payout transaction does not spend the vault output")
	}

	return ptx, nil
}

// PayoutSignature returns the hex encoded depositor signature over the payout
// leaf found in the signed packet.
func (c *PeginPayoutConnector) PayoutSignature(ptx *psbt.Packet) (string, error) {
	leafHash, err := c.TaprootScriptHash()
	if err != nil {
		return "", err
	}
	depositor := schnorr.SerializePubKey(c.Depositor)

	for _, in := range ptx.Inputs {
		for _, sig := range in.TaprootScriptSpendSig {
			if bytes.Equal(sig.XOnlyPubKey, depositor) && bytes.Equal(sig.LeafHash, leafHash[:]) {
				return hex.EncodeToString(sig.Signature), nil
			}
		}
	}
	return "", ErrMissingPayoutSignature
}

// VerifyPayoutSignature checks the depositor's signature of the payout leaf
// for the given input of the packet.
func (c *PeginPayoutConnector) VerifyPayoutSignature(
	ptx *psbt.Packet, inputIndex int, signature string,
) error {
	if inputIndex < 0 || inputIndex >= len(ptx.Inputs) {
		return fmt.Errorf("input index %d out of range", inputIndex)
	}
	sigBytes, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("invalid signature format: %w", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return err
	}

	prevouts := make(map[wire.OutPoint]*wire.TxOut)
	for i, in := range ptx.Inputs {
		if in.WitnessUtxo == nil {
			return fmt.Errorf("missing prevout for input %d", i)
		}
		prevouts[ptx.UnsignedTx.TxIn[i].PreviousOutPoint] = in.WitnessUtxo
	}
	prevoutFetcher := txscript.NewMultiPrevOutFetcher(prevouts)

	leaf, err := c.TapLeaf()
	if err != nil {
		return err
	}
	preimage, err := txscript.CalcTapscriptSignaturehash(
		txscript.NewTxSigHashes(ptx.UnsignedTx, prevoutFetcher),
		txscript.SigHashDefault,
		ptx.UnsignedTx,
		inputIndex,
		prevoutFetcher,
		*leaf,
	)
	if err != nil {
		return err
	}

	if !sig.Verify(preimage, c.Depositor) {
		return fmt.Errorf("invalid payout signature")
	}
	return nil
}
