package pegin

import (
	"fmt"
	"sort"
)

// maxSelectionIterations bounds the fee/selection fixed point loop.
const maxSelectionIterations = 1000

// SelectUtxos greedily picks the largest UTXOs until they cover amount plus
// the fee of the peg-in spending them. The fee is re-estimated every time an
// input is added since it depends on the input count.
func SelectUtxos(
	utxos []UTXO, amount uint64, feeRate float64,
) (*SelectionResult, error) {
	if amount == 0 {
		return nil, fmt.Errorf("missing peg-in amount")
	}
	if feeRate <= 0 {
		return nil, fmt.Errorf("invalid fee rate %v", feeRate)
	}

	candidates := sortByValueDesc(spendableUtxos(utxos))

	selected := make([]UTXO, 0)
	var total, fee uint64
	for i := 0; i < len(candidates) && i < maxSelectionIterations; i++ {
		selected = append(selected, candidates[i])
		total += candidates[i].Value
		fee = EstimatePeginFee(amount, selected, feeRate)

		if total < amount+fee {
			continue
		}

		change := total - amount - fee
		if change <= DustThreshold {
			fee += change
			change = 0
		}

		return &SelectionResult{
			SelectedUTXOs: selected,
			Fee:           fee,
			ChangeAmount:  change,
		}, nil
	}

	if fee == 0 {
		fee = EstimatePeginFee(amount, []UTXO{{}}, feeRate)
	}
	return nil, fmt.Errorf(
		"%w: need %d sats (amount %d + fee %d), have %d",
		ErrInsufficientFunds, amount+fee, amount, fee, total,
	)
}

// sortByValueDesc returns a sorted copy, ties broken by outpoint so that the
// order never depends on the wallet's listing order.
func sortByValueDesc(utxos []UTXO) []UTXO {
	sorted := make([]UTXO, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		if sorted[i].Txid != sorted[j].Txid {
			return sorted[i].Txid < sorted[j].Txid
		}
		return sorted[i].Vout < sorted[j].Vout
	})
	return sorted
}

// spendableUtxos drops the utxos locked by a script the peg-in cannot spend.
func spendableUtxos(utxos []UTXO) []UTXO {
	spendable := make([]UTXO, 0, len(utxos))
	for _, utxo := range utxos {
		if _, err := ClassifyScript(utxo.ScriptPubKey); err != nil {
			continue
		}
		spendable = append(spendable, utxo)
	}
	return spendable
}
