package coinbase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapback/internal/market"
)

func TestGetBarData_SortsAscendingAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/products/BTC-USD/candles")
		assert.Equal(t, "FIVE_MINUTE", r.URL.Query().Get("granularity"))

		// Newest first, as the real API responds.
		io.WriteString(w, `{"candles": [
			{"start": "1709294700", "low": "49900", "high": "50200", "open": "50000", "close": "50100", "volume": "3.5"},
			{"start": "1709294400", "low": "49800", "high": "50100", "open": "49900", "close": "50000", "volume": "2.1"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	series, err := c.GetBarData(context.Background(), "BTC-USD", market.FiveMinute, 300)
	require.NoError(t, err)
	require.Len(t, series, 2)

	assert.True(t, series[0].Time.Before(series[1].Time), "candles must be ascending")
	assert.Equal(t, 50000.0, series[0].Close)
	assert.Equal(t, 50100.0, series[1].Close)
	assert.Equal(t, 3.5, series[1].Volume)
}

func TestGetBarData_FetchFailureYieldsEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	series, err := c.GetBarData(context.Background(), "BTC-USD", market.FiveMinute, 300)
	require.NoError(t, err, "fetch failures degrade to an empty series, not an error")
	assert.Empty(t, series)
}

func TestGetBarData_SkipsMalformedCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candles": [
			{"start": "not-a-number", "low": "1", "high": "1", "open": "1", "close": "1", "volume": "1"},
			{"start": "1709294400", "low": "49800", "high": "50100", "open": "49900", "close": "50000", "volume": "2.1"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	series, err := c.GetBarData(context.Background(), "BTC-USD", market.FiveMinute, 300)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, 50000.0, series[0].Close)
}

func TestGetBarData_RejectsUnsupportedGranularity(t *testing.T) {
	c := NewClient("http://unused", "", "")
	_, err := c.GetBarData(context.Background(), "BTC-USD", market.Granularity("TEN_MINUTE"), 300)
	require.Error(t, err)
}

func TestGetHoldings_SplitsCashAndPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"accounts": [
			{"uuid": "a1", "currency": "USD", "available_balance": {"value": "512.75", "currency": "USD"}},
			{"uuid": "a2", "currency": "BTC", "available_balance": {"value": "0.035", "currency": "BTC"}},
			{"uuid": "a3", "currency": "ETH", "available_balance": {"value": "0", "currency": "ETH"}}
		], "has_next": false}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret")
	cash, positions, err := c.GetHoldings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 512.75, cash)
	require.Len(t, positions, 1, "zero balances are not positions")
	assert.Equal(t, 0.035, positions["BTC-USD"].Quantity)
	assert.Zero(t, positions["BTC-USD"].AverageEntryPrice, "exchange does not know the entry price")
}

func TestPlaceMarketOrder_SignsRequestAndChecksSuccess(t *testing.T) {
	const (
		apiKey    = "test-key"
		apiSecret = "test-secret"
	)

	var captured struct {
		sign string
		ts   string
		body []byte
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, apiKey, r.Header.Get("CB-ACCESS-KEY"))
		captured.sign = r.Header.Get("CB-ACCESS-SIGN")
		captured.ts = r.Header.Get("CB-ACCESS-TIMESTAMP")
		captured.body, _ = io.ReadAll(r.Body)

		io.WriteString(w, `{"success": true, "success_response": {"order_id": "ord-1", "product_id": "BTC-USD", "side": "BUY"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, apiKey, apiSecret)
	c.now = func() time.Time { return time.Unix(1709294400, 0) }

	err := c.PlaceMarketOrder(context.Background(), "BTC-USD", "BUY", "0.01")
	require.NoError(t, err)

	var req orderRequest
	require.NoError(t, json.Unmarshal(captured.body, &req))
	assert.Equal(t, "BTC-USD", req.ProductID)
	assert.Equal(t, "BUY", req.Side)
	assert.Equal(t, "0.01", req.OrderConfiguration.MarketMarketIOC.BaseSize)
	assert.NotEmpty(t, req.ClientOrderID)

	mac := hmac.New(sha256.New, []byte(apiSecret))
	mac.Write([]byte(captured.ts + http.MethodPost + apiPrefix + "/orders"))
	mac.Write(captured.body)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), captured.sign)
}

func TestPlaceMarketOrder_ReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": false, "failure_reason": "INSUFFICIENT_FUND", "error_response": {"message": "not enough USD"}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret")
	err := c.PlaceMarketOrder(context.Background(), "BTC-USD", "BUY", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSUFFICIENT_FUND")
}
