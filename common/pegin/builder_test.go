package pegin_test

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/common/pegin"
)

func TestClassifyScript(t *testing.T) {
	fixtures := []struct {
		name     string
		script   []byte
		expected pegin.ScriptType
	}{
		{"p2wpkh", p2wpkhScript, pegin.ScriptTypeP2WPKH},
		{"p2wsh", p2wshScript, pegin.ScriptTypeP2WSH},
		{"p2tr", p2trScript, pegin.ScriptTypeP2TR},
	}
	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			scriptType, err := pegin.ClassifyScript(f.script)
			require.NoError(t, err)
			require.Equal(t, f.expected, scriptType)
		})
	}

	invalid := map[string][]byte{
		"p2pkh": append(append([]byte{
			txscript.OP_DUP, txscript.OP_HASH160, txscript.OP_DATA_20,
		}, make([]byte, 20)...), txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG),
		"p2sh":           append(append([]byte{txscript.OP_HASH160, txscript.OP_DATA_20}, make([]byte, 20)...), txscript.OP_EQUAL),
		"segwit v2":      append([]byte{txscript.OP_2, txscript.OP_DATA_32}, make([]byte, 32)...),
		"wrong push":     append([]byte{txscript.OP_1, txscript.OP_DATA_20}, make([]byte, 20)...),
		"truncated p2tr": p2trScript[:33],
		"empty":          nil,
	}
	for name, script := range invalid {
		t.Run(name, func(t *testing.T) {
			scriptType, err := pegin.ClassifyScript(script)
			require.ErrorIs(t, err, pegin.ErrUnsupportedScriptType)
			require.Equal(t, pegin.ScriptTypeUnknown, scriptType)
		})
	}
}

func TestBuildPeginTx(t *testing.T) {
	vaultScript, _ := hex.DecodeString(vaultScriptHex)
	unfunded := &pegin.UnfundedTransaction{
		Version:     2,
		LockTime:    0,
		VaultValue:  1_000_000,
		VaultScript: vaultScript,
	}
	params := pegin.BuildParams{
		ChangeAddress:      taprootAddress,
		Network:            network,
		TaprootInternalKey: xonlyKey,
	}

	t.Run("valid", func(t *testing.T) {
		selection, err := pegin.SelectUtxos(makeUtxos(1_200_000), unfunded.VaultValue, 5)
		require.NoError(t, err)

		peginTx, err := pegin.BuildPeginTx(unfunded, selection, params)
		require.NoError(t, err)
		require.Equal(t, uint64(853), peginTx.Fee)
		require.Equal(t, uint64(199_147), peginTx.ChangeAmount)

		raw, err := hex.DecodeString(peginTx.TxHex)
		require.NoError(t, err)
		var tx wire.MsgTx
		require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
		require.Equal(t, tx.TxHash().String(), peginTx.Txid)
		require.Equal(t, int32(2), tx.Version)
		require.Len(t, tx.TxIn, 1)
		require.Len(t, tx.TxOut, 2)
		require.Equal(t, int64(1_000_000), tx.TxOut[pegin.VaultOutputIndex].Value)
		require.Equal(t, vaultScript, tx.TxOut[pegin.VaultOutputIndex].PkScript)
		require.Equal(t, int64(199_147), tx.TxOut[1].Value)
		require.Equal(t, p2trScript, tx.TxOut[1].PkScript)

		packet, err := psbt.NewFromRawBytes(strings.NewReader(peginTx.Psbt), true)
		require.NoError(t, err)
		require.Len(t, packet.Inputs, 1)
		require.NotNil(t, packet.Inputs[0].WitnessUtxo)
		require.Equal(t, int64(1_200_000), packet.Inputs[0].WitnessUtxo.Value)
		require.Equal(t, xonlyKey, packet.Inputs[0].TaprootInternalKey)
	})

	t.Run("without change", func(t *testing.T) {
		selection, err := pegin.SelectUtxos(makeUtxos(1_000_670), unfunded.VaultValue, 3)
		require.NoError(t, err)
		require.Zero(t, selection.ChangeAmount)

		peginTx, err := pegin.BuildPeginTx(unfunded, selection, pegin.BuildParams{
			Network:            network,
			TaprootInternalKey: xonlyKey,
		})
		require.NoError(t, err)
		require.Len(t, peginTx.Packet.UnsignedTx.TxOut, 1)
		require.Equal(t, uint64(670), peginTx.Fee)
	})

	t.Run("mixed input types", func(t *testing.T) {
		utxos := []pegin.UTXO{
			{Txid: makeUtxo(0, 0).Txid, Vout: 0, Value: 600_000, ScriptPubKey: p2wpkhScript},
			{
				Txid: makeUtxo(1, 0).Txid, Vout: 1, Value: 350_000,
				ScriptPubKey: p2wshScript, WitnessScript: witnessScript,
			},
			makeUtxo(2, 100_000),
		}
		selection, err := pegin.SelectUtxos(utxos, unfunded.VaultValue, 2)
		require.NoError(t, err)
		require.Len(t, selection.SelectedUTXOs, 3)

		peginTx, err := pegin.BuildPeginTx(unfunded, selection, params)
		require.NoError(t, err)

		inputs := peginTx.Packet.Inputs
		require.Len(t, inputs, 3)
		require.Equal(t, txscript.SigHashAll, inputs[0].SighashType)
		require.Empty(t, inputs[0].WitnessScript)
		require.Equal(t, witnessScript, inputs[1].WitnessScript)
		require.Equal(t, txscript.SigHashAll, inputs[1].SighashType)
		require.Equal(t, xonlyKey, inputs[2].TaprootInternalKey)
		require.Equal(t, txscript.SigHashDefault, inputs[2].SighashType)
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			name        string
			utxo        pegin.UTXO
			params      pegin.BuildParams
			expectedErr error
		}{
			{
				name: "unsupported script",
				utxo: pegin.UTXO{
					Txid: makeUtxo(0, 0).Txid, Value: 1_200_000,
					ScriptPubKey: []byte{txscript.OP_TRUE},
				},
				params:      params,
				expectedErr: pegin.ErrUnsupportedScriptType,
			},
			{
				name: "missing witness script",
				utxo: pegin.UTXO{
					Txid: makeUtxo(0, 0).Txid, Value: 1_200_000, ScriptPubKey: p2wshScript,
				},
				params:      params,
				expectedErr: pegin.ErrMissingWitnessScript,
			},
			{
				name: "invalid internal key",
				utxo: makeUtxo(0, 1_200_000),
				params: pegin.BuildParams{
					ChangeAddress:      taprootAddress,
					Network:            network,
					TaprootInternalKey: xonlyKey[:31],
				},
				expectedErr: pegin.ErrInvalidInternalKey,
			},
		}

		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				selection := &pegin.SelectionResult{
					SelectedUTXOs: []pegin.UTXO{f.utxo},
					Fee:           853,
					ChangeAmount:  199_147,
				}
				peginTx, err := pegin.BuildPeginTx(unfunded, selection, f.params)
				require.ErrorIs(t, err, f.expectedErr)
				require.Nil(t, peginTx)
			})
		}
	})

	t.Run("inconsistent selection", func(t *testing.T) {
		selection := &pegin.SelectionResult{
			SelectedUTXOs: makeUtxos(1_200_000),
			Fee:           853,
			ChangeAmount:  100_000,
		}
		peginTx, err := pegin.BuildPeginTx(unfunded, selection, params)
		require.ErrorIs(t, err, pegin.ErrInvalidSelection)
		require.Nil(t, peginTx)
	})

	t.Run("change address on another network", func(t *testing.T) {
		selection, err := pegin.SelectUtxos(makeUtxos(1_200_000), unfunded.VaultValue, 5)
		require.NoError(t, err)

		peginTx, err := pegin.BuildPeginTx(unfunded, selection, pegin.BuildParams{
			ChangeAddress:      "bc1p0xlxvlhemja6c4dqv22uapctqupfhlxm9h8z3k2e72q4k9hcz7vqzk5jj0",
			Network:            network,
			TaprootInternalKey: xonlyKey,
		})
		require.Error(t, err)
		require.Nil(t, peginTx)
	})
}
