package pegin

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// P2TRInputSize is the virtual size of a taproot key-path input.
	P2TRInputSize = 58
	// OutputSize is the virtual size reserved for a single output.
	OutputSize = 43
	// TxOverhead accounts for version, locktime, counts and segwit marker.
	TxOverhead = 11
	// DustThreshold is the smallest change output ever created.
	DustThreshold = 546

	lowRateThreshold    = 2.0
	lowRateBufferVBytes = 30
	feeSafetyMargin     = 1.1
)

// UTXO is a wallet output that can fund a peg-in. It is never mutated.
type UTXO struct {
	Txid          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         uint64 `json:"value"`
	ScriptPubKey  []byte `json:"scriptPubKey"`
	WitnessScript []byte `json:"witnessScript,omitempty"`
}

func (u UTXO) String() string {
	return fmt.Sprintf("%s:%d", u.Txid, u.Vout)
}

func (u UTXO) OutPoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.Txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %s: %s", u.Txid, err)
	}
	return wire.NewOutPoint(hash, u.Vout), nil
}

func (u UTXO) TxOut() *wire.TxOut {
	return wire.NewTxOut(int64(u.Value), u.ScriptPubKey)
}

// SelectionResult holds the inputs picked to fund a peg-in.
// Sum of the inputs always equals amount + Fee + ChangeAmount.
type SelectionResult struct {
	SelectedUTXOs []UTXO `json:"selectedUtxos"`
	Fee           uint64 `json:"fee"`
	ChangeAmount  uint64 `json:"changeAmount"`
}

func (s SelectionResult) TotalInput() uint64 {
	return sumValues(s.SelectedUTXOs)
}

// UnfundedTransaction is the zero-input, one-output peg-in template.
type UnfundedTransaction struct {
	Version     int32  `json:"version"`
	LockTime    uint32 `json:"locktime"`
	VaultValue  uint64 `json:"vaultValue"`
	VaultScript []byte `json:"vaultScript"`
}

func (u UnfundedTransaction) TxOut() *wire.TxOut {
	return wire.NewTxOut(int64(u.VaultValue), u.VaultScript)
}

func sumValues(utxos []UTXO) uint64 {
	var total uint64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}
