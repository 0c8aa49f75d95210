package market

import "sort"

// Series is an ordered sequence of candles for one symbol: ascending by
// time, at most one candle per timestamp.
type Series []Candle

// Closes returns the close prices in time order.
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, c := range s {
		closes[i] = c.Close
	}
	return closes
}

// Last returns the most recent candle, or false for an empty series.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Sorted returns a copy of the series sorted ascending by time with
// duplicate timestamps collapsed (last value wins). Sources use this to
// normalize whatever the exchange returned.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	dedup := out[:0]
	for _, c := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(c.Time) {
			dedup[n-1] = c
			continue
		}
		dedup = append(dedup, c)
	}
	return dedup
}
