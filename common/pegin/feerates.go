package pegin

import (
	"math"

	"github.com/btcsuite/btcwallet/wallet/txrules"
)

// NetworkFeeRates are the fee oracle recommendations, in sat/vbyte.
type NetworkFeeRates struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
	EconomyFee  float64 `json:"economyFee"`
	MinimumFee  float64 `json:"minimumFee"`
}

// DefaultNetworkFeeRates is used whenever the fee oracle is unreachable.
var DefaultNetworkFeeRates = NetworkFeeRates{
	FastestFee:  10,
	HalfHourFee: 5,
	HourFee:     3,
	EconomyFee:  2,
	MinimumFee:  1,
}

// FeeRateSchedule bounds the fee rates a user can pick for a deposit.
type FeeRateSchedule struct {
	Min     float64 `json:"minFeeRate"`
	Default float64 `json:"defaultFeeRate"`
	Max     float64 `json:"maxFeeRate"`
}

// NewFeeRateSchedule derives the schedule from the oracle rates. The minimum
// never goes below the default relay fee, the default targets half an hour
// and the maximum leaves room for twice the fastest recommendation.
func NewFeeRateSchedule(rates NetworkFeeRates) FeeRateSchedule {
	relayFloor := float64(txrules.DefaultRelayFeePerKb) / 1000

	minRate := math.Max(rates.MinimumFee, relayFloor)
	maxRate := math.Max(2*rates.FastestFee, minRate)

	schedule := FeeRateSchedule{Min: minRate, Max: maxRate}
	schedule.Default = schedule.Clamp(rates.HalfHourFee)
	return schedule
}

func (s FeeRateSchedule) Clamp(feeRate float64) float64 {
	return math.Min(math.Max(feeRate, s.Min), s.Max)
}

func (s FeeRateSchedule) Contains(feeRate float64) bool {
	return feeRate >= s.Min && feeRate <= s.Max
}
