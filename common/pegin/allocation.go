package pegin

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg"
)

type Strategy int

const (
	StrategySingle Strategy = iota
	StrategyMultiUtxo
	StrategySplit
)

func (s Strategy) String() string {
	switch s {
	case StrategySingle:
		return "SINGLE"
	case StrategyMultiUtxo:
		return "MULTI_UTXO"
	case StrategySplit:
		return "SPLIT"
	default:
		return "UNKNOWN"
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "SINGLE":
		*s = StrategySingle
	case "MULTI_UTXO":
		*s = StrategyMultiUtxo
	case "SPLIT":
		*s = StrategySplit
	default:
		return fmt.Errorf("unknown allocation strategy %s", text)
	}
	return nil
}

// VaultAllocation tells how vault VaultIndex is funded: by Utxo, or by output
// SplitTxOutputIndex of the split tx when FromSplit is set. A single vault
// allocation has neither and is funded by regular selection.
type VaultAllocation struct {
	VaultIndex         int    `json:"vaultIndex"`
	Amount             uint64 `json:"amount"`
	Utxo               *UTXO  `json:"utxo,omitempty"`
	FromSplit          bool   `json:"fromSplit"`
	SplitTxOutputIndex uint32 `json:"splitTxOutputIndex,omitempty"`
}

type AllocationPlan struct {
	NeedsSplit       bool              `json:"needsSplit"`
	Strategy         Strategy          `json:"strategy"`
	SplitTransaction *SplitTransaction `json:"splitTransaction,omitempty"`
	VaultAllocations []VaultAllocation `json:"vaultAllocations"`
}

type SplitParams struct {
	// Address receives the vault outputs and the change of the split tx.
	// It must be a taproot address so the split txid is final before signing.
	Address            string
	Network            *chaincfg.Params
	TaprootInternalKey []byte
}

// PlanAllocation decides how the given vault amounts are funded from the
// wallet utxos. The result only depends on its inputs.
func PlanAllocation(
	amounts []uint64, utxos []UTXO, feeRate float64, params SplitParams,
) (*AllocationPlan, error) {
	if len(amounts) <= 0 {
		return nil, fmt.Errorf("%w: missing vault amounts", ErrAllocationInfeasible)
	}
	for i, amount := range amounts {
		if amount <= DustThreshold {
			return nil, fmt.Errorf(
				"%w: vault %d amount %d is below dust", ErrAllocationInfeasible, i, amount,
			)
		}
	}
	if feeRate <= 0 {
		return nil, fmt.Errorf("invalid fee rate %v", feeRate)
	}

	if len(amounts) == 1 {
		return &AllocationPlan{
			Strategy: StrategySingle,
			VaultAllocations: []VaultAllocation{
				{VaultIndex: 0, Amount: amounts[0]},
			},
		}, nil
	}

	if allocations, ok := allocateDistinctUtxos(amounts, utxos, feeRate); ok {
		return &AllocationPlan{
			Strategy:         StrategyMultiUtxo,
			VaultAllocations: allocations,
		}, nil
	}

	splitTx, err := buildSplitTransaction(amounts, utxos, feeRate, params)
	if err != nil {
		return nil, err
	}

	allocations := make([]VaultAllocation, 0, len(amounts))
	for i, amount := range amounts {
		allocations = append(allocations, VaultAllocation{
			VaultIndex:         i,
			Amount:             amount,
			FromSplit:          true,
			SplitTxOutputIndex: splitTx.Outputs[i].Vout,
		})
	}

	return &AllocationPlan{
		NeedsSplit:       true,
		Strategy:         StrategySplit,
		SplitTransaction: splitTx,
		VaultAllocations: allocations,
	}, nil
}

// FundingUtxo returns the output funding the given vault, nil when the vault
// is funded through regular selection.
func (p *AllocationPlan) FundingUtxo(vaultIndex int) (*UTXO, error) {
	alloc, err := p.allocation(vaultIndex)
	if err != nil {
		return nil, err
	}

	switch p.Strategy {
	case StrategySingle:
		return nil, nil
	case StrategyMultiUtxo:
		if alloc.Utxo == nil {
			return nil, fmt.Errorf("missing utxo for vault %d", vaultIndex)
		}
		utxo := *alloc.Utxo
		return &utxo, nil
	case StrategySplit:
		if p.SplitTransaction == nil {
			return nil, fmt.Errorf("missing split transaction")
		}
		return p.SplitTransaction.OutputUtxo(alloc.SplitTxOutputIndex)
	default:
		return nil, fmt.Errorf("unknown allocation strategy %d", p.Strategy)
	}
}

// Selection returns the inputs funding the peg-in of the given vault.
// Split outputs already carry the peg-in fee, so they are spent whole.
func (p *AllocationPlan) Selection(
	vaultIndex int, utxos []UTXO, feeRate float64,
) (*SelectionResult, error) {
	alloc, err := p.allocation(vaultIndex)
	if err != nil {
		return nil, err
	}

	switch p.Strategy {
	case StrategySingle:
		return SelectUtxos(utxos, alloc.Amount, feeRate)
	case StrategyMultiUtxo:
		utxo, err := p.FundingUtxo(vaultIndex)
		if err != nil {
			return nil, err
		}
		return SelectUtxos([]UTXO{*utxo}, alloc.Amount, feeRate)
	case StrategySplit:
		utxo, err := p.FundingUtxo(vaultIndex)
		if err != nil {
			return nil, err
		}
		if utxo.Value <= alloc.Amount {
			return nil, fmt.Errorf(
				"%w: split output %d does not cover vault %d",
				ErrInsufficientFunds, alloc.SplitTxOutputIndex, vaultIndex,
			)
		}
		return &SelectionResult{
			SelectedUTXOs: []UTXO{*utxo},
			Fee:           utxo.Value - alloc.Amount,
		}, nil
	default:
		return nil, fmt.Errorf("unknown allocation strategy %d", p.Strategy)
	}
}

func (p *AllocationPlan) allocation(vaultIndex int) (*VaultAllocation, error) {
	if vaultIndex < 0 || vaultIndex >= len(p.VaultAllocations) {
		return nil, fmt.Errorf("vault index %d out of range", vaultIndex)
	}
	return &p.VaultAllocations[vaultIndex], nil
}

// allocateDistinctUtxos pairs every vault with its own utxo, serving the
// largest vault first and always picking the smallest utxo that covers
// amount plus the peg-in fee.
func allocateDistinctUtxos(
	amounts []uint64, utxos []UTXO, feeRate float64,
) ([]VaultAllocation, bool) {
	candidates := sortByValueDesc(spendableUtxos(utxos))
	if len(candidates) < len(amounts) {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value < candidates[j].Value
	})

	vaults := make([]int, len(amounts))
	for i := range vaults {
		vaults[i] = i
	}
	sort.SliceStable(vaults, func(i, j int) bool {
		return amounts[vaults[i]] > amounts[vaults[j]]
	})

	used := make([]bool, len(candidates))
	allocations := make([]VaultAllocation, len(amounts))
	for _, vaultIndex := range vaults {
		amount := amounts[vaultIndex]
		found := false
		for i, utxo := range candidates {
			if used[i] {
				continue
			}
			fee := EstimatePeginFee(amount, []UTXO{utxo}, feeRate)
			if utxo.Value < amount+fee {
				continue
			}
			used[i] = true
			found = true
			picked := utxo
			allocations[vaultIndex] = VaultAllocation{
				VaultIndex: vaultIndex,
				Amount:     amount,
				Utxo:       &picked,
			}
			break
		}
		if !found {
			return nil, false
		}
	}
	return allocations, true
}
