package feeoracle

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/ports"
)

const refreshTimeout = 30 * time.Second

type cachedOracle struct {
	oracle ports.FeeOracle

	lock  *sync.RWMutex
	rates *pegin.NetworkFeeRates
}

// NewCachedFeeOracle keeps the latest rates of the given oracle in memory,
// refreshing them every interval seconds through the scheduler.
func NewCachedFeeOracle(
	oracle ports.FeeOracle, scheduler ports.SchedulerService, interval int64,
) (ports.FeeOracle, error) {
	svc := &cachedOracle{
		oracle: oracle,
		lock:   &sync.RWMutex{},
	}
	if err := scheduler.ScheduleTask(interval, true, svc.refresh); err != nil {
		return nil, err
	}
	return svc, nil
}

func (c *cachedOracle) GetNetworkFeeRates(ctx context.Context) (pegin.NetworkFeeRates, error) {
	c.lock.RLock()
	rates := c.rates
	c.lock.RUnlock()

	if rates != nil {
		return *rates, nil
	}

	fresh, err := c.oracle.GetNetworkFeeRates(ctx)
	if err != nil {
		return pegin.NetworkFeeRates{}, err
	}
	c.set(fresh)
	return fresh, nil
}

func (c *cachedOracle) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	rates, err := c.oracle.GetNetworkFeeRates(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to refresh network fee rates")
		return
	}
	c.set(rates)
	log.Debugf("network fee rates refreshed: %+v", rates)
}

func (c *cachedOracle) set(rates pegin.NetworkFeeRates) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.rates = &rates
}
