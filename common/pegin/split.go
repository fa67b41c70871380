package pegin

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/input"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/lightningnetwork/lnd/lnwallet/chainfee"
)

type SplitOutput struct {
	Amount   uint64 `json:"amount"`
	Address  string `json:"address"`
	PkScript []byte `json:"pkScript"`
	Vout     uint32 `json:"vout"`
}

// SplitTransaction turns one or more wallet utxos into one output per vault,
// each worth the vault amount plus the fee of its own peg-in.
type SplitTransaction struct {
	Inputs      []UTXO        `json:"inputs"`
	Outputs     []SplitOutput `json:"outputs"`
	Fee         uint64        `json:"fee"`
	TxHex       string        `json:"txHex"`
	Txid        string        `json:"txid"`
	Psbt        string        `json:"psbt"`
	SignedHex   string        `json:"signedHex,omitempty"`
	Broadcasted bool          `json:"broadcasted"`
}

func (s *SplitTransaction) OutputUtxo(vout uint32) (*UTXO, error) {
	for _, out := range s.Outputs {
		if out.Vout == vout {
			return &UTXO{
				Txid:         s.Txid,
				Vout:         out.Vout,
				Value:        out.Amount,
				ScriptPubKey: append([]byte{}, out.PkScript...),
			}, nil
		}
	}
	return nil, fmt.Errorf("split tx %s has no output %d", s.Txid, vout)
}

func buildSplitTransaction(
	amounts []uint64, utxos []UTXO, feeRate float64, params SplitParams,
) (*SplitTransaction, error) {
	if params.Network == nil {
		return nil, fmt.Errorf("missing network")
	}
	addr, err := btcutil.DecodeAddress(params.Address, params.Network)
	if err != nil {
		return nil, fmt.Errorf("invalid split address: %s", err)
	}
	if _, ok := addr.(*btcutil.AddressTaproot); !ok {
		return nil, fmt.Errorf("split address must be a taproot address")
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}

	outputs := make([]SplitOutput, 0, len(amounts)+1)
	var target uint64
	for i, amount := range amounts {
		value := amount + peginFeeBuffer(amount, feeRate)
		target += value
		outputs = append(outputs, SplitOutput{
			Amount:   value,
			Address:  params.Address,
			PkScript: pkScript,
			Vout:     uint32(i),
		})
	}

	candidates := sortByValueDesc(utxos)
	selected := make([]UTXO, 0)
	var total uint64
	found := false
	var fee, change uint64
	for i := 0; i < len(candidates) && i < maxSelectionIterations; i++ {
		utxo := candidates[i]
		if _, err := ClassifyScript(utxo.ScriptPubKey); err != nil {
			continue
		}
		selected = append(selected, utxo)
		total += utxo.Value

		feeNoChange, err := estimateSplitFee(selected, len(outputs), feeRate)
		if err != nil {
			return nil, err
		}
		if total < target+feeNoChange {
			continue
		}

		found = true
		fee = total - target
		feeWithChange, err := estimateSplitFee(selected, len(outputs)+1, feeRate)
		if err != nil {
			return nil, err
		}
		if total > target+feeWithChange && total-target-feeWithChange > DustThreshold {
			fee = feeWithChange
			change = total - target - feeWithChange
		}
		break
	}
	if !found {
		return nil, fmt.Errorf(
			"%w: no distinct utxos cover every vault and %d sats cannot fund a split of %d sats",
			ErrAllocationInfeasible, sumValues(utxos), target,
		)
	}

	if change > 0 {
		outputs = append(outputs, SplitOutput{
			Amount:   change,
			Address:  params.Address,
			PkScript: pkScript,
			Vout:     uint32(len(outputs)),
		})
	}

	tx := wire.NewMsgTx(2)
	for _, utxo := range selected {
		outpoint, err := utxo.OutPoint()
		if err != nil {
			return nil, err
		}
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	}
	for _, out := range outputs {
		tx.AddTxOut(wire.NewTxOut(int64(out.Amount), out.PkScript))
	}

	packet, err := NewSigningPacket(tx, selected, params.TaprootInternalKey)
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

	return &SplitTransaction{
		Inputs:  selected,
		Outputs: outputs,
		Fee:     fee,
		TxHex:   txHex,
		Txid:    tx.TxHash().String(),
		Psbt:    b64,
	}, nil
}

// peginFeeBuffer is the fee of a peg-in spending a single input of exactly
// the vault amount, so that nothing is left over for a change output.
func peginFeeBuffer(amount uint64, feeRate float64) uint64 {
	return EstimatePeginFee(amount, []UTXO{{Value: amount}}, feeRate)
}

func estimateSplitFee(inputs []UTXO, numOutputs int, feeRate float64) (uint64, error) {
	weightEstimator := &input.TxWeightEstimator{}

	for _, in := range inputs {
		scriptType, err := ClassifyScript(in.ScriptPubKey)
		if err != nil {
			return 0, err
		}
		switch scriptType {
		case ScriptTypeP2WPKH:
			weightEstimator.AddP2WKHInput()
		case ScriptTypeP2WSH:
			weightEstimator.AddWitnessInput(input.MultiSigWitnessSize)
		case ScriptTypeP2TR:
			weightEstimator.AddTaprootKeySpendInput(txscript.SigHashDefault)
		default:
			return 0, fmt.Errorf("input %s: %w", in, ErrUnsupportedScriptType)
		}
	}
	for i := 0; i < numOutputs; i++ {
		weightEstimator.AddP2TROutput()
	}

	vsize := weightEstimator.VSize()
	satPerKVByte := chainfee.SatPerKVByte(feeRate * 1000)
	fee := uint64(satPerKVByte.FeeForVSize(lntypes.VByte(vsize)).ToUnit(btcutil.AmountSatoshi))

	// never below the minimum relay fee
	if minFee := uint64(vsize); fee < minFee {
		fee = minFee
	}
	return fee, nil
}

// NewSplitPlan rebuilds the plan of a split allocation from its unsigned
// split transaction, whose output i funds vault i.
func NewSplitPlan(amounts []uint64, splitTxHex string) (*AllocationPlan, error) {
	buf, err := hex.DecodeString(splitTxHex)
	if err != nil {
		return nil, fmt.Errorf("invalid split tx: %s", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return nil, fmt.Errorf("invalid split tx: %s", err)
	}
	if len(tx.TxOut) < len(amounts) {
		return nil, fmt.Errorf(
			"split tx has %d outputs, expected at least %d", len(tx.TxOut), len(amounts),
		)
	}

	splitTx := &SplitTransaction{
		TxHex:   splitTxHex,
		Txid:    tx.TxHash().String(),
		Outputs: make([]SplitOutput, 0, len(tx.TxOut)),
	}
	for i, out := range tx.TxOut {
		splitTx.Outputs = append(splitTx.Outputs, SplitOutput{
			Amount:   uint64(out.Value),
			PkScript: out.PkScript,
			Vout:     uint32(i),
		})
	}

	allocations := make([]VaultAllocation, 0, len(amounts))
	for i, amount := range amounts {
		if uint64(tx.TxOut[i].Value) <= amount {
			return nil, fmt.Errorf(
				"%w: split output %d does not cover vault %d", ErrInsufficientFunds, i, i,
			)
		}
		allocations = append(allocations, VaultAllocation{
			VaultIndex:         i,
			Amount:             amount,
			FromSplit:          true,
			SplitTxOutputIndex: uint32(i),
		})
	}

	return &AllocationPlan{
		NeedsSplit:       true,
		Strategy:         StrategySplit,
		SplitTransaction: splitTx,
		VaultAllocations: allocations,
	}, nil
}
