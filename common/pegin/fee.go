package pegin

import "math"

// EstimatePeginFee returns the miner fee, in sats, of a peg-in spending the
// given inputs at feeRate sat/vbyte.
//
// The fee is first computed without a change output. If the leftover is above
// dust a change output is priced in, unless doing so pushes the leftover back
// to dust, in which case the dust is left to the miner. The safety margin is
// applied once, to the chosen fee.
func EstimatePeginFee(peginAmount uint64, inputs []UTXO, feeRate float64) uint64 {
	totalInput := int64(sumValues(inputs))
	txSize := len(inputs)*P2TRInputSize + OutputSize + TxOverhead

	baseFee := vbytesToFee(txSize, feeRate) + lowRateBuffer(feeRate)
	fee := baseFee

	change := totalInput - int64(peginAmount) - int64(baseFee)
	if change > DustThreshold {
		withChange := baseFee + vbytesToFee(OutputSize, feeRate)
		change = totalInput - int64(peginAmount) - int64(withChange)
		if change > DustThreshold {
			fee = withChange
		}
	}

	return uint64(math.Ceil(float64(fee) * feeSafetyMargin))
}

// lowRateBuffer protects against wallets enforcing a relay fee floor above
// the estimated rate.
func lowRateBuffer(feeRate float64) uint64 {
	if feeRate <= lowRateThreshold {
		return vbytesToFee(lowRateBufferVBytes, feeRate)
	}
	return 0
}

func vbytesToFee(vbytes int, feeRate float64) uint64 {
	return uint64(math.Ceil(float64(vbytes) * feeRate))
}
