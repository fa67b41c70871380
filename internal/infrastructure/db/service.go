package db

import (
	"fmt"

	"github.com/vault-network/vault/internal/core/domain"
	"github.com/vault-network/vault/internal/core/ports"
	badgerdb "github.com/vault-network/vault/internal/infrastructure/db/badger"
)

var (
	eventStoreTypes = map[string]func(...interface{}) (domain.DepositEventRepository, error){
		"badger": badgerdb.NewDepositEventRepository,
	}
	depositStoreTypes = map[string]func(...interface{}) (domain.DepositRepository, error){
		"badger": badgerdb.NewDepositRepository,
	}
)

type ServiceConfig struct {
	EventStoreType string
	DataStoreType  string

	EventStoreConfig []interface{}
	DataStoreConfig  []interface{}
}

type service struct {
	eventStore   domain.DepositEventRepository
	depositStore domain.DepositRepository
}

func NewService(config ServiceConfig) (ports.RepoManager, error) {
	eventStoreFactory, ok := eventStoreTypes[config.EventStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid event store type: %s", config.EventStoreType)
	}
	depositStoreFactory, ok := depositStoreTypes[config.DataStoreType]
	if !ok {
		return nil, fmt.Errorf("invalid data store type: %s", config.DataStoreType)
	}

	eventStore, err := eventStoreFactory(config.EventStoreConfig...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event store: %w", err)
	}
	depositStore, err := depositStoreFactory(config.DataStoreConfig...)
	if err != nil {
		eventStore.Close()
		return nil, fmt.Errorf("failed to create deposit store: %w", err)
	}

	return &service{
		eventStore:   eventStore,
		depositStore: depositStore,
	}, nil
}

func (s *service) RegisterEventsHandler(handler func(deposit *domain.Deposit)) {
	s.eventStore.RegisterEventsHandler(handler)
}

func (s *service) Events() domain.DepositEventRepository {
	return s.eventStore
}

func (s *service) Deposits() domain.DepositRepository {
	return s.depositStore
}

func (s *service) Close() {
	s.eventStore.Close()
	s.depositStore.Close()
}
