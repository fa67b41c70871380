package ports

import "github.com/vault-network/vault/internal/core/domain"

type RepoManager interface {
	RegisterEventsHandler(func(deposit *domain.Deposit))
	Events() domain.DepositEventRepository
	Deposits() domain.DepositRepository
	Close()
}
