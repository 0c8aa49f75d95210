// Package prob estimates the empirical probability that a price drop is
// followed by a recovery of a given magnitude within a look-back window.
package prob

// Estimate scans consecutive price pairs; a relative change at or below
// dropThreshold (a negative fraction, e.g. -0.05) counts as a drop event.
// For each drop event the next lookBack points are scanned for the first
// relative rise from the drop point at or above recoveryThreshold; at most
// one recovery is counted per event. Returns recovered/drops.
//
// A series with no drop events returns 0.0: no evidence means "do not
// bet", not an error. Pure function of its inputs.
func Estimate(prices []float64, dropThreshold, recoveryThreshold float64, lookBack int) float64 {
	drops := 0
	recovered := 0

	for i := 1; i < len(prices); i++ {
		change := (prices[i] - prices[i-1]) / prices[i-1]
		if change > dropThreshold {
			continue
		}
		drops++

		end := i + 1 + lookBack
		if end > len(prices) {
			end = len(prices)
		}
		for j := i + 1; j < end; j++ {
			rise := (prices[j] - prices[i]) / prices[i]
			if rise >= recoveryThreshold {
				recovered++
				break
			}
		}
	}

	if drops == 0 {
		return 0.0
	}
	return float64(recovered) / float64(drops)
}
