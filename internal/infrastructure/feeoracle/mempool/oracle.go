package mempooloracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/vault-network/vault/common/pegin"
	"github.com/vault-network/vault/internal/core/ports"
)

const requestTimeout = 10 * time.Second

type oracle struct {
	baseUrl string
	client  *http.Client
}

// NewFeeOracle returns an oracle querying the recommended fees endpoint of a
// mempool.space compatible API.
func NewFeeOracle(baseUrl string) (ports.FeeOracle, error) {
	if _, err := url.ParseRequestURI(baseUrl); err != nil {
		return nil, fmt.Errorf("invalid fee oracle url: %s", err)
	}
	return &oracle{
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}, nil
}

// GetNetworkFeeRates falls back to pegin.DefaultNetworkFeeRates if the API
// can't be reached or returns an invalid payload.
func (o *oracle) GetNetworkFeeRates(ctx context.Context) (pegin.NetworkFeeRates, error) {
	rates, err := o.fetch(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to fetch network fee rates, using defaults")
		return pegin.DefaultNetworkFeeRates, nil
	}
	return *rates, nil
}

func (o *oracle) fetch(ctx context.Context) (*pegin.NetworkFeeRates, error) {
	endpoint, err := url.JoinPath(o.baseUrl, "v1", "fees", "recommended")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("fees endpoint HTTP error: " + resp.Status)
	}

	var rates pegin.NetworkFeeRates
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return nil, err
	}
	if rates.FastestFee <= 0 || rates.MinimumFee <= 0 {
		return nil, fmt.Errorf("invalid fee rates %+v", rates)
	}
	return &rates, nil
}
