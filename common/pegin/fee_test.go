package pegin_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vault-network/vault/common/pegin"
)

func TestEstimatePeginFee(t *testing.T) {
	fixtures := []struct {
		name     string
		amount   uint64
		inputs   []uint64
		feeRate  float64
		expected uint64
	}{
		{
			name:     "with change output",
			amount:   1_000_000,
			inputs:   []uint64{1_200_000},
			feeRate:  5,
			expected: 853,
		},
		{
			name:     "leftover below dust",
			amount:   1_000_000,
			inputs:   []uint64{1_000_000 + 560 + 300},
			feeRate:  5,
			expected: withMargin(560),
		},
		{
			name:     "change reverted to dust",
			amount:   1_000_000,
			inputs:   []uint64{1_000_000 + 560 + 600},
			feeRate:  5,
			expected: withMargin(560),
		},
		{
			name:     "not enough inputs",
			amount:   1_000_000,
			inputs:   []uint64{500_000},
			feeRate:  5,
			expected: withMargin(560),
		},
		{
			name:     "two inputs with change",
			amount:   500_000,
			inputs:   []uint64{300_000, 300_000},
			feeRate:  3,
			expected: withMargin(510 + 129),
		},
		{
			name:     "low rate buffer",
			amount:   100_000,
			inputs:   []uint64{100_000},
			feeRate:  1.5,
			expected: withMargin(168 + 45),
		},
		{
			name:     "low rate buffer at threshold",
			amount:   100_000,
			inputs:   []uint64{100_000},
			feeRate:  2,
			expected: withMargin(224 + 60),
		},
		{
			name:     "no buffer above threshold",
			amount:   100_000,
			inputs:   []uint64{100_000},
			feeRate:  2.5,
			expected: withMargin(280),
		},
	}

	for _, f := range fixtures {
		t.Run(f.name, func(t *testing.T) {
			fee := pegin.EstimatePeginFee(f.amount, makeUtxos(f.inputs...), f.feeRate)
			require.Equal(t, f.expected, fee)
		})
	}
}

func TestEstimatePeginFeeLowRateBuffer(t *testing.T) {
	txSize := float64(pegin.P2TRInputSize + pegin.OutputSize + pegin.TxOverhead)
	inputs := makeUtxos(100_000)

	t.Run("included", func(t *testing.T) {
		for _, rate := range []float64{0.5, 1, 1.2, 1.75, 2} {
			base := uint64(math.Ceil(txSize*rate)) + uint64(math.Ceil(30*rate))
			require.Equal(t, withMargin(base), pegin.EstimatePeginFee(100_000, inputs, rate))
		}
	})

	t.Run("excluded", func(t *testing.T) {
		for _, rate := range []float64{2.01, 3, 10, 55.5} {
			base := uint64(math.Ceil(txSize * rate))
			require.Equal(t, withMargin(base), pegin.EstimatePeginFee(100_000, inputs, rate))
		}
	})
}
