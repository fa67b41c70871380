package pegin

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// VaultOutputIndex is the position of the vault output in every funded peg-in.
const VaultOutputIndex = 0

type BuildParams struct {
	ChangeAddress string
	Network       *chaincfg.Params
	// TaprootInternalKey is the x-only key set on P2TR inputs.
	TaprootInternalKey []byte
}

// PeginTx is a funded, unsigned peg-in ready for the wallet.
type PeginTx struct {
	TxHex        string       `json:"txHex"`
	Txid         string       `json:"txid"`
	Psbt         string       `json:"psbt"`
	Fee          uint64       `json:"fee"`
	ChangeAmount uint64       `json:"changeAmount"`
	Packet       *psbt.Packet `json:"-"`
}

// BuildPeginTx funds the unfunded template with the selected inputs, keeping
// its version, locktime and vault output, and appends a change output when
// the selection has one.
func BuildPeginTx(
	unfunded *UnfundedTransaction, selection *SelectionResult, params BuildParams,
) (*PeginTx, error) {
	if unfunded == nil {
		return nil, fmt.Errorf("missing unfunded transaction")
	}
	if selection == nil || len(selection.SelectedUTXOs) <= 0 {
		return nil, fmt.Errorf("missing selected utxos")
	}
	if params.Network == nil {
		return nil, fmt.Errorf("missing network")
	}

	expected := unfunded.VaultValue + selection.Fee + selection.ChangeAmount
	if total := selection.TotalInput(); total != expected {
		return nil, fmt.Errorf(
			"%w: inputs %d, vault %d, fee %d, change %d",
			ErrInvalidSelection, total, unfunded.VaultValue,
			selection.Fee, selection.ChangeAmount,
		)
	}

	tx := wire.NewMsgTx(unfunded.Version)
	tx.LockTime = unfunded.LockTime

	for _, utxo := range selection.SelectedUTXOs {
		outpoint, err := utxo.OutPoint()
		if err != nil {
			return nil, err
		}
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	}

	tx.AddTxOut(unfunded.TxOut())

	if selection.ChangeAmount > 0 {
		changeScript, err := addressScript(params.ChangeAddress, params.Network)
		if err != nil {
			return nil, fmt.Errorf("invalid change address: %s", err)
		}
		tx.AddTxOut(wire.NewTxOut(int64(selection.ChangeAmount), changeScript))
	}

	packet, err := NewSigningPacket(tx, selection.SelectedUTXOs, params.TaprootInternalKey)
	if err != nil {
		return nil, err
	}

	b64, err := packet.B64Encode()
	if err != nil {
		return nil, err
	}
	txHex, err := serializeTx(tx)
	if err != nil {
		return nil, err
	}

	return &PeginTx{
		TxHex:        txHex,
		Txid:         tx.TxHash().String(),
		Psbt:         b64,
		Fee:          selection.Fee,
		ChangeAmount: selection.ChangeAmount,
		Packet:       packet,
	}, nil
}

// NewSigningPacket wraps the unsigned tx into a psbt carrying, for every
// input, the metadata its script type needs to be signed.
func NewSigningPacket(
	tx *wire.MsgTx, utxos []UTXO, internalKey []byte,
) (*psbt.Packet, error) {
	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}

	updater, err := psbt.NewUpdater(packet)
	if err != nil {
		return nil, err
	}

	for i, utxo := range utxos {
		scriptType, err := ClassifyScript(utxo.ScriptPubKey)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", utxo, err)
		}

		if err := updater.AddInWitnessUtxo(utxo.TxOut(), i); err != nil {
			return nil, err
		}

		switch scriptType {
		case ScriptTypeP2WPKH:
			if err := updater.AddInSighashType(txscript.SigHashAll, i); err != nil {
				return nil, err
			}
		case ScriptTypeP2WSH:
			if len(utxo.WitnessScript) <= 0 {
				return nil, fmt.Errorf("input %s: %w", utxo, ErrMissingWitnessScript)
			}
			if err := updater.AddInWitnessScript(utxo.WitnessScript, i); err != nil {
				return nil, err
			}
			if err := updater.AddInSighashType(txscript.SigHashAll, i); err != nil {
				return nil, err
			}
		case ScriptTypeP2TR:
			if len(internalKey) != 32 {
				return nil, fmt.Errorf(
					"input %s: %w, got %d", utxo, ErrInvalidInternalKey, len(internalKey),
				)
			}
			packet.Inputs[i].TaprootInternalKey = append([]byte{}, internalKey...)
			packet.Inputs[i].SighashType = txscript.SigHashDefault
		default:
			return nil, fmt.Errorf("input %s: %w", utxo, ErrUnsupportedScriptType)
		}
	}

	return packet, nil
}

func addressScript(address string, net *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, net)
	if err != nil {
		return nil, err
	}
	if !addr.IsForNet(net) {
		return nil, fmt.Errorf("address %s is not for network %s", address, net.Name)
	}
	return txscript.PayToAddrScript(addr)
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
