package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vault-network/vault/internal/core/domain"
)

const (
	eventStoreDir   = "deposit-events"
	updatesQueueLen = 64
)

// eventRecord is a single deposit event. Seq starts from 1 and matches the
// version of the deposit once the event is applied.
type eventRecord struct {
	DepositId string `badgerhold:"index"`
	Seq       uint
	Type      domain.EventType
	Data      []byte
}

type eventRepository struct {
	store   *badgerhold.Store
	lock    sync.RWMutex
	handler func(deposit *domain.Deposit)
	updates chan *domain.Deposit
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewDepositEventRepository(config ...interface{}) (domain.DepositEventRepository, error) {
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
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open deposit events store: %s", err)
	}

	repo := &eventRepository{
		store:   store,
		updates: make(chan *domain.Deposit, updatesQueueLen),
		done:    make(chan struct{}),
	}
	repo.wg.Add(1)
	go repo.dispatch()
	return repo, nil
}

// Save appends the events to the stream of the deposit in a single badger
// transaction and returns the deposit rebuilt from the whole stream.
func (r *eventRepository) Save(
	ctx context.Context, id string, events ...domain.DepositEvent,
) (*domain.Deposit, error) {
	if len(events) <= 0 {
		return r.Load(ctx, id)
	}

	var records []eventRecord
	if err := r.store.Badger().Update(func(tx *badger.Txn) error {
		var err error
		if records, err = r.find(tx, id); err != nil {
			return err
		}

		seq := uint(len(records))
		for _, event := range events {
			seq++
			data, err := serializeEvent(event)
			if err != nil {
				return err
			}
			record := eventRecord{
				DepositId: id,
				Seq:       seq,
				Type:      event.GetType(),
				Data:      data,
			}
			if err := r.store.TxInsert(tx, recordKey(id, seq), record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to save events of deposit %s: %s", id, err)
	}

	deposit, err := depositFromRecords(records)
	if err != nil {
		return nil, err
	}
	r.publish(deposit)
	return deposit, nil
}

func (r *eventRepository) Load(
	ctx context.Context, id string,
) (*domain.Deposit, error) {
	var records []eventRecord
	if err := r.store.Badger().View(func(tx *badger.Txn) error {
		var err error
		records, err = r.find(tx, id)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to get events of deposit %s: %s", id, err)
	}
	if len(records) <= 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrDepositNotFound, id)
	}
	return depositFromRecords(records)
}

func (r *eventRepository) RegisterEventsHandler(
	handler func(deposit *domain.Deposit),
) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.handler = handler
}

func (r *eventRepository) Close() {
	close(r.done)
	r.wg.Wait()
	r.store.Close()
}

func (r *eventRepository) find(tx *badger.Txn, id string) ([]eventRecord, error) {
	var records []eventRecord
	query := badgerhold.Where("DepositId").Eq(id).Index("DepositId").SortBy("Seq")
	if err := r.store.TxFind(tx, &records, query); err != nil {
		return nil, err
	}
	return records, nil
}

// publish queues the deposit for the handler. Updates of the same deposit
// are delivered in the order they were saved.
func (r *eventRepository) publish(deposit *domain.Deposit) {
	select {
	case <-r.done:
	case r.updates <- deposit:
	}
}

func (r *eventRepository) dispatch() {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		case deposit := <-r.updates:
			r.lock.RLock()
			handler := r.handler
			r.lock.RUnlock()

			if handler != nil {
				handler(deposit)
			}
		}
	}
}

func recordKey(id string, seq uint) string {
	return fmt.Sprintf("%s/%08d", id, seq)
}

func depositFromRecords(records []eventRecord) (*domain.Deposit, error) {
	events := make([]domain.DepositEvent, 0, len(records))
	for _, record := range records {
		event, err := deserializeEvent(record.Type, record.Data)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to decode event %d of deposit %s: %s", record.Seq, record.DepositId, err,
			)
		}
		events = append(events, event)
	}
	return domain.NewDepositFromEvents(events), nil
}
