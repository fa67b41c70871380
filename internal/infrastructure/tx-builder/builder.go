package txbuilder

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/common"
	"github.com/vault-network/vault/common/connector"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/ports"
)

type txBuilder struct {
	net                        common.Network
	vaultKeeperPubkeys         []string
	universalChallengerPubkeys []string
}

// NewTxBuilder returns a builder creating peg-in templates locked by the
// given vault keepers and universal challengers, unless the request brings
// its own.
func NewTxBuilder(
	network string, vaultKeepers, universalChallengers []string,
) (ports.UnfundedTxBuilder, error) {
	net, err := common.ParseNetwork(network)
	if err != nil {
		return nil, err
	}
	if _, err := common.ParseXOnlyPubKeys(vaultKeepers); err != nil {
		return nil, fmt.Errorf("invalid vault keeper: %w", err)
	}
	if _, err := common.ParseXOnlyPubKeys(universalChallengers); err != nil {
		return nil, fmt.Errorf("invalid universal challenger: %w", err)
	}
	return &txBuilder{
		net:                        net,
		vaultKeeperPubkeys:         vaultKeepers,
		universalChallengerPubkeys: universalChallengers,
	}, nil
}

// CreateUnfundedPeginTx implements ports.UnfundedTxBuilder.
func (b *txBuilder) CreateUnfundedPeginTx(
	_ context.Context, params connector.PeginParams,
) (string, error) {
	if len(params.Network) <= 0 {
		params.Network = b.net.Name
	}
	net, err := common.ParseNetwork(params.Network)
	if err != nil {
		return "", err
	}
	if net.Name != b.net.Name {
		return "", fmt.Errorf("network mismatch, expected %s got %s", b.net.Name, net.Name)
	}
	if len(params.VaultKeeperPubkeys) <= 0 {
		params.VaultKeeperPubkeys = b.vaultKeeperPubkeys
	}
	if len(params.UniversalChallengerPubkeys) <= 0 {
		params.UniversalChallengerPubkeys = b.universalChallengerPubkeys
	}
	if params.PeginAmount <= pegin.DustThreshold {
		return "", fmt.Errorf("pegin amount %d is below dust", params.PeginAmount)
	}

	unfunded, err := connector.NewUnfundedPeginTx(params)
	if err != nil {
		return "", err
	}

	// the template is handed to the parser, it must round trip
	if _, err := pegin.ParseUnfundedTx(unfunded.TxHex); err != nil {
		return "", err
	}

	log.Debugf(
		"created unfunded pegin %s of %d sats locked by %d keepers",
		unfunded.Txid, unfunded.VaultValue, len(params.VaultKeeperPubkeys),
	)
	return unfunded.TxHex, nil
}
