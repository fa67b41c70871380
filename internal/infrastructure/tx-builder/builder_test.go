package txbuilder_test

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/common/connector"
	"github.com/vault-network/vault/common/pegin"
	txbuilder "github.com/vault-network/vault/internal/infrastructure/tx-builder"
)

const (
	depositor     = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	vaultProvider = "c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
	vaultKeeper   = "f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9"
	challenger    = "e493dbf1c10d80f3581e4904930b1404cc6c13900ee0758474fa94abe8c4cd13"
)

func TestCreateUnfundedPeginTx(t *testing.T) {
	ctx := context.Background()
	builder, err := txbuilder.NewTxBuilder("regtest", []string{vaultKeeper}, []string{challenger})
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		params := connector.PeginParams{
			DepositorPubkey:     depositor,
			VaultProviderPubkey: vaultProvider,
			PeginAmount:         150_000,
		}
		txHex, err := builder.CreateUnfundedPeginTx(ctx, params)
		require.NoError(t, err)

		unfunded, err := pegin.ParseUnfundedTx(txHex)
		require.NoError(t, err)
		require.Equal(t, int32(2), unfunded.Version)
		require.Zero(t, unfunded.LockTime)
		require.Equal(t, uint64(150_000), unfunded.VaultValue)

		params.VaultKeeperPubkeys = []string{vaultKeeper}
		params.UniversalChallengerPubkeys = []string{challenger}
		params.Network = "regtest"
		expected, err := connector.NewUnfundedPeginTx(params)
		require.NoError(t, err)
		require.Equal(t, expected.TxHex, txHex)
		require.Equal(t, expected.VaultScriptPubKey, hex.EncodeToString(unfunded.VaultScript))
	})

	t.Run("invalid", func(t *testing.T) {
		fixtures := []struct {
			name        string
			params      connector.PeginParams
			expectedErr string
		}{
			{
				name: "network mismatch",
				params: connector.PeginParams{
					DepositorPubkey: depositor, VaultProviderPubkey: vaultProvider,
					PeginAmount: 150_000, Network: "mainnet",
				},
				expectedErr: "network mismatch",
			},
			{
				name: "dust",
				params: connector.PeginParams{
					DepositorPubkey: depositor, VaultProviderPubkey: vaultProvider,
					PeginAmount: 546,
				},
				expectedErr: "below dust",
			},
			{
				name: "depositor",
				params: connector.PeginParams{
					DepositorPubkey: "00", VaultProviderPubkey: vaultProvider,
					PeginAmount: 150_000,
				},
				expectedErr: "invalid pubkey",
			},
		}
		for _, f := range fixtures {
			t.Run(f.name, func(t *testing.T) {
				_, err := builder.CreateUnfundedPeginTx(ctx, f.params)
				require.ErrorContains(t, err, f.expectedErr)
			})
		}
	})

	t.Run("invalid builder", func(t *testing.T) {
		_, err := txbuilder.NewTxBuilder("liquid", nil, nil)
		require.Error(t, err)
		_, err = txbuilder.NewTxBuilder("regtest", []string{"zz"}, nil)
		require.Error(t, err)
	})
}
