package connector_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/common/connector"
)

func TestPayoutPacket(t *testing.T) {
	depositorKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{1}, 32))
	c, err := connector.NewPeginPayoutConnector(
		depositorKey.PubKey(), newKey(2), []*btcec.PublicKey{newKey(3)}, nil,
	)
	require.NoError(t, err)

	vaultScript, err := c.ScriptPubKey()
	require.NoError(t, err)

	peginTx := wire.NewMsgTx(2)
	peginTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}, nil, nil))
	peginTx.AddTxOut(wire.NewTxOut(1_000_000, vaultScript))

	claimTx := wire.NewMsgTx(2)
	claimTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{2}, Index: 0}, nil, nil))
	claimTx.AddTxOut(wire.NewTxOut(10_000, []byte{txscript.OP_1, txscript.OP_DATA_32, 0x01}))

	payoutTx := wire.NewMsgTx(2)
	payoutTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: peginTx.TxHash(), Index: 0}, nil, nil))
	payoutTx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: claimTx.TxHash(), Index: 0}, nil, nil))
	payoutTx.AddTxOut(wire.NewTxOut(1_005_000, vaultScript))

	t.Run("valid", func(t *testing.T) {
		ptx, err := c.NewPayoutPacket(payoutTx, connector.Prevouts(peginTx, claimTx))
		require.NoError(t, err)
		require.Len(t, ptx.Inputs[0].TaprootLeafScript, 1)
		require.Empty(t, ptx.Inputs[1].TaprootLeafScript)

		_, err = c.PayoutSignature(ptx)
		require.ErrorIs(t, err, connector.ErrMissingPayoutSignature)

		prevoutFetcher := txscript.NewMultiPrevOutFetcher(connector.Prevouts(peginTx, claimTx))
		leaf, err := c.TapLeaf()
		require.NoError(t, err)
		preimage, err := txscript.CalcTapscriptSignaturehash(
			txscript.NewTxSigHashes(ptx.UnsignedTx, prevoutFetcher),
			txscript.SigHashDefault, ptx.UnsignedTx, 0, prevoutFetcher, *leaf,
		)
		require.NoError(t, err)
		sig, err := schnorr.Sign(depositorKey, preimage)
		require.NoError(t, err)

		leafHash := leaf.TapHash()
		ptx.Inputs[0].TaprootScriptSpendSig = []*psbt.TaprootScriptSpendSig{{
			XOnlyPubKey: schnorr.SerializePubKey(depositorKey.PubKey()),
			LeafHash:    leafHash[:],
			Signature:   sig.Serialize(),
			SigHash:     txscript.SigHashDefault,
		}}

		signature, err := c.PayoutSignature(ptx)
		require.NoError(t, err)
		require.Equal(t, hex.EncodeToString(sig.Serialize()), signature)
		require.NoError(t, c.VerifyPayoutSignature(ptx, 0, signature))
		require.Error(t, c.VerifyPayoutSignature(ptx, 1, signature))
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := c.NewPayoutPacket(payoutTx, connector.Prevouts(peginTx))
		require.ErrorContains(t, err, "missing prevout")

		_, err = c.NewPayoutPacket(claimTx, map[wire.OutPoint]*wire.TxOut{
			claimTx.TxIn[0].PreviousOutPoint: wire.NewTxOut(1, []byte{txscript.OP_TRUE}),
		})
		require.EqualError(t, err, "payout transaction does not spend the vault output")

		_, err = connector.DecodeTx("zz")
		require.Error(t, err)
	})
}
