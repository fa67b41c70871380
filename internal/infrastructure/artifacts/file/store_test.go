package filestore_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/internal/core/domain"
	filestore "github.com/vault-network/vault/internal/infrastructure/artifacts/file"
)

func signedDeposit(t *testing.T) *domain.Deposit {
	d := domain.NewDeposit()
	_, err := d.Start("0xdepositor", "btcpubkey", "0xprovider", []uint64{100_000}, 2, "SINGLE")
	require.NoError(t, err)
	_, err = d.SignPop(0, "pop")
	require.NoError(t, err)
	_, err = d.SubmitPegin(0, "peginTxid", "peginTx", "0xethtx", "0xvault")
	require.NoError(t, err)
	_, err = d.StartWaiting()
	require.NoError(t, err)
	_, err = d.StopWaiting([][]domain.ClaimPayout{{
		{ClaimerPubkey: "claimer", ClaimTx: "claimTx", PayoutTx: "payoutTx"},
	}})
	require.NoError(t, err)
	_, err = d.SignPayouts([]map[string]string{{"claimer": "sig"}})
	require.NoError(t, err)
	return d
}

func TestArtifactStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := filestore.NewArtifactStore(dir)
	require.NoError(t, err)

	t.Run("save and get", func(t *testing.T) {
		d := signedDeposit(t)

		path, err := store.Save(ctx, d)
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, "artifacts", d.Id+".json"), path)

		buf, err := store.Get(ctx, d.Id)
		require.NoError(t, err)

		var artifacts map[string]interface{}
		require.NoError(t, json.Unmarshal(buf, &artifacts))
		require.Equal(t, d.Id, artifacts["depositId"])
		vaults := artifacts["vaults"].([]interface{})
		require.Len(t, vaults, 1)
		vault := vaults[0].(map[string]interface{})
		require.Equal(t, "peginTx", vault["peginTx"])
		require.Equal(t, "0xvault", vault["vaultId"])
		require.Equal(t, "sig", vault["payoutSignatures"].(map[string]interface{})["claimer"])
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := store.Save(ctx, nil)
		require.Error(t, err)

		d := domain.NewDeposit()
		_, err = d.Start("0xdepositor", "btcpubkey", "0xprovider", []uint64{100_000}, 2, "SINGLE")
		require.NoError(t, err)
		_, err = store.Save(ctx, d)
		require.ErrorContains(t, err, "missing payout transactions")

		_, err = store.Get(ctx, "unknown")
		require.ErrorContains(t, err, "no artifacts found")

		_, err = filestore.NewArtifactStore("")
		require.Error(t, err)
	})
}
