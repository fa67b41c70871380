package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vault-network/vault/internal/core/domain"
)

const depositStoreDir = "deposits"

type depositRepository struct {
	store *badgerhold.Store
}

func NewDepositRepository(config ...interface{}) (domain.DepositRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, depositStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open deposit store: %s", err)
	}

	return &depositRepository{store}, nil
}

func (r *depositRepository) AddOrUpdateDeposit(
	ctx context.Context, deposit domain.Deposit,
) error {
	return r.addOrUpdateDeposit(ctx, deposit)
}

func (r *depositRepository) GetDepositWithId(
	ctx context.Context, id string,
) (*domain.Deposit, error) {
	query := badgerhold.Where("Id").Eq(id)
	deposits, err := r.findDeposit(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(deposits) <= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrDepositNotFound, id)
	}
	deposit := &deposits[0]
	return deposit, nil
}

func (r *depositRepository) GetDepositsWithDepositor(
	ctx context.Context, depositor string,
) ([]domain.Deposit, error) {
	query := badgerhold.Where("Depositor").Eq(depositor).SortBy("CreatedAt")
	return r.findDeposit(ctx, query)
}

func (r *depositRepository) GetPendingDepositIds(ctx context.Context) ([]string, error) {
	query := badgerhold.Where("Stage.Ended").Eq(false)
	deposits, err := r.findDeposit(ctx, query)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(deposits))
	for _, d := range deposits {
		ids = append(ids, d.Id)
	}
	return ids, nil
}

func (r *depositRepository) Close() {
	r.store.Close()
}

func (r *depositRepository) findDeposit(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Deposit, error) {
	var deposits []domain.Deposit
	var err error

	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &deposits, query)
	} else {
		err = r.store.Find(&deposits, query)
	}

	return deposits, err
}

func (r *depositRepository) addOrUpdateDeposit(
	ctx context.Context, deposit domain.Deposit,
) (err error) {
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxUpsert(tx, deposit.Id, deposit)
	} else {
		err = r.store.Upsert(deposit.Id, deposit)
	}
	return
}
