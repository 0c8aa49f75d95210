package market

import (
	"context"
	"fmt"
	"time"
)

// Candle is a single OHLCV bar. Immutable once produced by a Source.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Granularity names a candle interval using the exchange's vocabulary.
type Granularity string

const (
	OneMinute     Granularity = "ONE_MINUTE"
	FiveMinute    Granularity = "FIVE_MINUTE"
	FifteenMinute Granularity = "FIFTEEN_MINUTE"
	ThirtyMinute  Granularity = "THIRTY_MINUTE"
	OneHour       Granularity = "ONE_HOUR"
	TwoHour       Granularity = "TWO_HOUR"
	SixHour       Granularity = "SIX_HOUR"
	OneDay        Granularity = "ONE_DAY"
)

var granularitySeconds = map[Granularity]int64{
	OneMinute:     60,
	FiveMinute:    300,
	FifteenMinute: 900,
	ThirtyMinute:  1800,
	OneHour:       3600,
	TwoHour:       7200,
	SixHour:       21600,
	OneDay:        86400,
}

// Seconds returns the bar interval in seconds, or an error for an
// unsupported granularity. Unsupported values are a configuration fault
// and should be rejected before any trading loop starts.
func (g Granularity) Seconds() (int64, error) {
	s, ok := granularitySeconds[g]
	if !ok {
		return 0, fmt.Errorf("unsupported granularity: %s", g)
	}
	return s, nil
}

// Source supplies candle series for a symbol. Implementations must return
// candles sorted ascending by time and an empty series (not an error) when
// the fetch fails, logging the failure themselves.
type Source interface {
	GetBarData(ctx context.Context, symbol string, granularity Granularity, limit int) (Series, error)
}
