package badgerdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vault-network/vault/internal/core/domain"
)

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, err
	}

	if !isInMemory {
		ticker := time.NewTicker(30 * time.Minute)

		go func() {
			for {
				<-ticker.C
				if err := db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
					if logger != nil {
						logger.Errorf("%s", err)
					}
				}
			}
		}()
	}

	return db, nil
}

func serializeEvent(event domain.DepositEvent) ([]byte, error) {
	return json.Marshal(event)
}

func deserializeEvent(eventType domain.EventType, data []byte) (domain.DepositEvent, error) {
	switch eventType {
	case domain.EventTypeDepositCreated:
		return decodeEvent[domain.DepositCreated](data)
	case domain.EventTypePopSigned:
		return decodeEvent[domain.PopSigned](data)
	case domain.EventTypePeginSubmitted:
		return decodeEvent[domain.PeginSubmitted](data)
	case domain.EventTypePayoutsWaitingStarted:
		return decodeEvent[domain.PayoutsWaitingStarted](data)
	case domain.EventTypePayoutsWaitingEnded:
		return decodeEvent[domain.PayoutsWaitingEnded](data)
	case domain.EventTypePayoutsSigned:
		return decodeEvent[domain.PayoutsSigned](data)
	case domain.EventTypeArtifactsDownloaded:
		return decodeEvent[domain.ArtifactsDownloaded](data)
	case domain.EventTypeBtcBroadcasted:
		return decodeEvent[domain.BtcBroadcasted](data)
	case domain.EventTypeDepositFailed:
		return decodeEvent[domain.DepositFailed](data)
	case domain.EventTypeDepositRetried:
		return decodeEvent[domain.DepositRetried](data)
	case domain.EventTypeSplitPrepared:
		return decodeEvent[domain.SplitPrepared](data)
	default:
		return nil, fmt.Errorf("unknown event type %d", eventType)
	}
}

func decodeEvent[T domain.DepositEvent](data []byte) (domain.DepositEvent, error) {
	var event T
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return event, nil
}
