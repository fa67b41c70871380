package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/internal/core/domain"
	"github.com/vault-network/vault/internal/core/ports"
	"github.com/vault-network/vault/internal/infrastructure/db"
)

const (
	depositor = "0xab5801a7d398351b8be11c439e05c5b3259aec9b"
	btcPubkey = "79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	provider  = "0x1111111111111111111111111111111111111111"
)

func TestService(t *testing.T) {
	dbDir := t.TempDir()
	tests := []struct {
		name   string
		config db.ServiceConfig
	}{
		{
			name: "repo_manager_with_in_memory_badger_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "badger",
				EventStoreConfig: []interface{}{"", nil},
				DataStoreConfig:  []interface{}{"", nil},
			},
		},
		{
			name: "repo_manager_with_badger_stores",
			config: db.ServiceConfig{
				EventStoreType:   "badger",
				DataStoreType:    "badger",
				EventStoreConfig: []interface{}{dbDir, nil},
				DataStoreConfig:  []interface{}{dbDir, nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := db.NewService(tt.config)
			require.NoError(t, err)
			defer svc.Close()

			testDepositEventRepository(t, svc)
			testDepositRepository(t, svc)
		})
	}
}

func TestInvalidService(t *testing.T) {
	_, err := db.NewService(db.ServiceConfig{
		EventStoreType: "postgres",
		DataStoreType:  "badger",
	})
	require.EqualError(t, err, "invalid event store type: postgres")

	_, err = db.NewService(db.ServiceConfig{
		EventStoreType:   "badger",
		DataStoreType:    "badger",
		EventStoreConfig: []interface{}{""},
	})
	require.Error(t, err)
}

func testDepositEventRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_event_repository", func(t *testing.T) {
		fixtures := []struct {
			depositId string
			events    []domain.DepositEvent
			handler   func(*domain.Deposit)
		}{
			{
				depositId: "42dd81f7-cadd-482c-bf69-8e9209aae9f3",
				events: []domain.DepositEvent{
					domain.DepositCreated{
						Id:                 "42dd81f7-cadd-482c-bf69-8e9209aae9f3",
						Depositor:          depositor,
						DepositorBtcPubkey: btcPubkey,
						VaultProvider:      provider,
						Amounts:            []uint64{1_000_000},
						FeeRate:            5,
						Strategy:           "SINGLE",
						Timestamp:          1701190270,
					},
				},
				handler: func(deposit *domain.Deposit) {
					require.NotNil(t, deposit)
					require.Len(t, deposit.Events(), 1)
					require.True(t, deposit.IsStarted())
					require.False(t, deposit.IsFailed())
					require.False(t, deposit.IsCompleted())
				},
			},
			{
				depositId: "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
				events: []domain.DepositEvent{
					domain.DepositCreated{
						Id:                 "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
						Depositor:          depositor,
						DepositorBtcPubkey: btcPubkey,
						VaultProvider:      provider,
						Amounts:            []uint64{500_000, 500_000},
						FeeRate:            2,
						Strategy:           "SPLIT",
						Timestamp:          1701190270,
					},
					domain.PopSigned{
						Id:         "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
						VaultIndex: 0,
						Signature:  "pop",
						Timestamp:  1701190300,
					},
					domain.DepositFailed{
						Id:         "1ea610ff-bf3e-4068-9bfd-b6c3f553467e",
						Step:       domain.StepSubmitPegin,
						VaultIndex: 0,
						Err:        "execution reverted",
						Timestamp:  1701190310,
					},
				},
				handler: func(deposit *domain.Deposit) {
					require.NotNil(t, deposit)
					require.Len(t, deposit.Events(), 3)
					require.Len(t, deposit.Vaults, 2)
					require.True(t, deposit.IsFailed())
					require.Equal(t, domain.StepSubmitPegin, deposit.Stage.Code)
					require.Equal(t, "execution reverted", deposit.Error)

					event, ok := deposit.Events()[2].(domain.DepositFailed)
					require.True(t, ok)
					require.Equal(t, domain.StepSubmitPegin, event.Step)
				},
			},
		}

		ctx := context.Background()

		for _, f := range fixtures {
			wg := sync.WaitGroup{}
			wg.Add(1)
			svc.RegisterEventsHandler(func(deposit *domain.Deposit) {
				defer wg.Done()
				f.handler(deposit)
			})

			deposit, err := svc.Events().Save(ctx, f.depositId, f.events...)
			require.NoError(t, err)
			require.NotNil(t, deposit)

			loaded, err := svc.Events().Load(ctx, f.depositId)
			require.NoError(t, err)
			require.Equal(t, deposit.Stage, loaded.Stage)
			require.Equal(t, deposit.Vaults, loaded.Vaults)

			wg.Wait()
		}

		id := "7b1c6a6e-04f3-4a52-9d7e-1f1f7e0b2a11"
		batches := [][]domain.DepositEvent{
			{domain.DepositCreated{
				Id:                 id,
				Depositor:          depositor,
				DepositorBtcPubkey: btcPubkey,
				VaultProvider:      provider,
				Amounts:            []uint64{1_000_000},
				FeeRate:            5,
				Strategy:           "SINGLE",
				Timestamp:          1701190270,
			}},
			{domain.PopSigned{Id: id, Signature: "pop", Timestamp: 1701190280}},
			{domain.DepositFailed{
				Id: id, Step: domain.StepSubmitPegin, Err: "nonce too low", Timestamp: 1701190290,
			}},
		}

		versions := make(chan uint, len(batches))
		svc.RegisterEventsHandler(func(deposit *domain.Deposit) {
			if deposit.Id == id {
				versions <- deposit.Version
			}
		})
		for i, batch := range batches {
			deposit, err := svc.Events().Save(ctx, id, batch...)
			require.NoError(t, err)
			require.Equal(t, uint(i+1), deposit.Version)
		}
		for i := range batches {
			select {
			case version := <-versions:
				require.Equal(t, uint(i+1), version)
			case <-time.After(5 * time.Second):
				t.Fatalf("missing update %d", i+1)
			}
		}

		loaded, err := svc.Events().Load(ctx, id)
		require.NoError(t, err)
		require.Len(t, loaded.Events(), len(batches))
		require.True(t, loaded.IsFailed())
		require.Equal(t, "nonce too low", loaded.Error)

		svc.RegisterEventsHandler(nil)

		_, err = svc.Events().Load(ctx, "unknown")
		require.ErrorIs(t, err, domain.ErrDepositNotFound)
	})
}

func testDepositRepository(t *testing.T, svc ports.RepoManager) {
	t.Run("test_deposit_repository", func(t *testing.T) {
		ctx := context.Background()

		_, err := svc.Deposits().GetDepositWithId(ctx, "unknown")
		require.ErrorIs(t, err, domain.ErrDepositNotFound)

		completed := domain.NewDeposit()
		_, err = completed.Start(depositor, btcPubkey, provider, []uint64{1_000_000}, 5, "SINGLE")
		require.NoError(t, err)
		completed.Stage = domain.Stage{Code: domain.StepCompleted, Ended: true}
		completed.CreatedAt = time.Now().Unix()

		pending := domain.NewDeposit()
		_, err = pending.Start(depositor, btcPubkey, provider, []uint64{500_000, 500_000}, 5, "SPLIT")
		require.NoError(t, err)
		pending.CreatedAt = time.Now().Add(time.Second).Unix()

		other := domain.NewDeposit()
		_, err = other.Start(
			"0x0000000000000000000000000000000000000001", btcPubkey, provider,
			[]uint64{1_000_000}, 5, "SINGLE",
		)
		require.NoError(t, err)

		for _, d := range []*domain.Deposit{completed, pending, other} {
			require.NoError(t, svc.Deposits().AddOrUpdateDeposit(ctx, *d))
		}

		deposit, err := svc.Deposits().GetDepositWithId(ctx, pending.Id)
		require.NoError(t, err)
		require.Equal(t, pending.Stage, deposit.Stage)
		require.Equal(t, pending.Vaults, deposit.Vaults)

		deposits, err := svc.Deposits().GetDepositsWithDepositor(ctx, depositor)
		require.NoError(t, err)
		require.Len(t, deposits, 2)
		require.Equal(t, completed.Id, deposits[0].Id)

		ids, err := svc.Deposits().GetPendingDepositIds(ctx)
		require.NoError(t, err)
		require.Subset(t, ids, []string{pending.Id, other.Id})
		require.NotContains(t, ids, completed.Id)

		pending.Stage = domain.Stage{Code: domain.StepCompleted, Ended: true}
		require.NoError(t, svc.Deposits().AddOrUpdateDeposit(ctx, *pending))
		ids, err = svc.Deposits().GetPendingDepositIds(ctx)
		require.NoError(t, err)
		require.NotContains(t, ids, pending.Id)
		require.Contains(t, ids, other.Id)
	})
}
