package connector

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
	"github.com/vault-network/vault/common"
	"github.com/vault-network/vault/common/pegin"
)

const (
	peginTxVersion  = 2
	peginTxLockTime = 0
)

type PeginParams struct {
	DepositorPubkey            string
	VaultProviderPubkey        string
	VaultKeeperPubkeys         []string
	UniversalChallengerPubkeys []string
	PeginAmount                uint64
	Network                    string
}

// UnfundedPegin is the template a wallet funds to lock BTC in a vault.
type UnfundedPegin struct {
	TxHex             string `json:"txHex"`
	Txid              string `json:"txid"`
	VaultScriptPubKey string `json:"vaultScriptPubKey"`
	VaultValue        uint64 `json:"vaultValue"`
}

// NewUnfundedPeginTx creates a version 2 transaction with no inputs and a
// single output paying the peg-in amount to the payout connector.
func NewUnfundedPeginTx(params PeginParams) (*UnfundedPegin, error) {
	if _, err := common.ParseNetwork(params.Network); err != nil {
		return nil, err
	}

	connector, err := ParsePeginPayoutConnector(
		params.DepositorPubkey, params.VaultProviderPubkey,
		params.VaultKeeperPubkeys, params.UniversalChallengerPubkeys,
	)
	if err != nil {
		return nil, err
	}

	vaultScript, err := connector.ScriptPubKey()
	if err != nil {
		return nil, err
	}

	template := pegin.UnfundedTransaction{
		Version:     peginTxVersion,
		LockTime:    peginTxLockTime,
		VaultValue:  params.PeginAmount,
		VaultScript: vaultScript,
	}
	txHex, err := pegin.SerializeUnfundedTx(template)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(template.Version)
	tx.LockTime = template.LockTime
	tx.AddTxOut(template.TxOut())

	return &UnfundedPegin{
		TxHex:             txHex,
		Txid:              tx.TxHash().String(),
		VaultScriptPubKey: hex.EncodeToString(vaultScript),
		VaultValue:        params.PeginAmount,
	}, nil
}

// ParsePeginPayoutConnector builds the connector from hex encoded x-only keys.
func ParsePeginPayoutConnector(
	depositor, vaultProvider string, vaultKeepers, universalChallengers []string,
) (*PeginPayoutConnector, error) {
	depositorKey, err := common.ParseXOnlyPubKey(depositor)
	if err != nil {
		return nil, err
	}
	vaultProviderKey, err := common.ParseXOnlyPubKey(vaultProvider)
	if err != nil {
		return nil, err
	}
	keeperKeys, err := common.ParseXOnlyPubKeys(vaultKeepers)
	if err != nil {
		return nil, err
	}
	challengerKeys, err := common.ParseXOnlyPubKeys(universalChallengers)
	if err != nil {
		return nil, err
	}

	return NewPeginPayoutConnector(depositorKey, vaultProviderKey, keeperKeys, challengerKeys)
}
