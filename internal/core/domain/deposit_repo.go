package domain

import (
	"context"
	"errors"
)

var ErrDepositNotFound = errors.New("deposit not found")

type DepositEventRepository interface {
	Save(ctx context.Context, id string, events ...DepositEvent) (*Deposit, error)
	Load(ctx context.Context, id string) (*Deposit, error)
	RegisterEventsHandler(func(deposit *Deposit))
	Close()
}

type DepositRepository interface {
	AddOrUpdateDeposit(ctx context.Context, deposit Deposit) error
	GetDepositWithId(ctx context.Context, id string) (*Deposit, error)
	GetDepositsWithDepositor(ctx context.Context, depositor string) ([]Deposit, error)
	// GetPendingDepositIds returns the ids of the deposits not yet completed.
	GetPendingDepositIds(ctx context.Context) ([]string, error)
	Close()
}
