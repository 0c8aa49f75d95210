// Package coinbase is a minimal Coinbase Advanced Trade API client covering
// the endpoints the bot needs: candles, accounts and market orders.
package coinbase

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"snapback/internal/id"
	"snapback/internal/market"
	"snapback/internal/portfolio"
)

const apiPrefix = "/api/v3/brokerage"

// Client is the REST client for the Coinbase Advanced Trade API. It
// implements market.Source. Public market data works without credentials;
// accounts and orders require an API key and secret.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(baseURL, apiKey, apiSecret string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// GetBarData fetches up to limit candles for symbol, sorted ascending by
// time. A fetch or decode failure is logged and yields an empty series so
// one bad poll never kills the trading loop; the returned error is reserved
// for context cancellation.
func (c *Client) GetBarData(ctx context.Context, symbol string, granularity market.Granularity, limit int) (market.Series, error) {
	secs, err := granularity.Seconds()
	if err != nil {
		return nil, err
	}

	end := c.now().UTC().Truncate(time.Second)
	start := end.Add(-time.Duration(int64(limit)*secs) * time.Second)

	params := url.Values{}
	params.Set("start", strconv.FormatInt(start.Unix(), 10))
	params.Set("end", strconv.FormatInt(end.Unix(), 10))
	params.Set("granularity", string(granularity))

	path := fmt.Sprintf("%s/products/%s/candles?%s", apiPrefix, url.PathEscape(symbol), params.Encode())

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("candle fetch failed", "symbol", symbol, "error", err)
		return market.Series{}, nil
	}

	var resp candlesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		slog.Warn("candle decode failed", "symbol", symbol, "error", err)
		return market.Series{}, nil
	}

	series := make(market.Series, 0, len(resp.Candles))
	for _, raw := range resp.Candles {
		candle, err := parseCandle(raw)
		if err != nil {
			slog.Warn("skipping malformed candle", "symbol", symbol, "error", err)
			continue
		}
		series = append(series, candle)
	}

	// The API returns newest first.
	sort.Slice(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	return series, nil
}

func parseCandle(raw rawCandle) (market.Candle, error) {
	unix, err := strconv.ParseInt(raw.Start, 10, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parsing candle start %q: %w", raw.Start, err)
	}

	fields := [5]string{raw.Open, raw.High, raw.Low, raw.Close, raw.Volume}
	var vals [5]float64
	for i, s := range fields {
		vals[i], err = strconv.ParseFloat(s, 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("parsing candle field %q: %w", s, err)
		}
	}

	return market.Candle{
		Time:   time.Unix(unix, 0).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// GetHoldings returns the available USD cash and all non-dust crypto
// positions derived from the account balances. Entry prices are unknown at
// the exchange level, so positions come back with a zero average entry.
func (c *Client) GetHoldings(ctx context.Context) (float64, map[string]portfolio.Position, error) {
	var (
		cash      float64
		positions = make(map[string]portfolio.Position)
		cursor    string
	)

	for {
		path := apiPrefix + "/accounts?limit=250"
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}

		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return 0, nil, fmt.Errorf("fetching accounts: %w", err)
		}

		var resp accountsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return 0, nil, fmt.Errorf("decoding accounts: %w", err)
		}

		for _, acct := range resp.Accounts {
			value, err := strconv.ParseFloat(acct.AvailableBalance.Value, 64)
			if err != nil {
				slog.Warn("skipping account with malformed balance",
					"currency", acct.Currency, "value", acct.AvailableBalance.Value)
				continue
			}
			if acct.Currency == "USD" {
				cash = value
				continue
			}
			if value > 0 {
				symbol := acct.Currency + "-USD"
				positions[symbol] = portfolio.Position{
					Symbol:   symbol,
					Quantity: value,
				}
			}
		}

		if !resp.HasNext {
			break
		}
		cursor = resp.Cursor
	}

	return cash, positions, nil
}

// PlaceMarketOrder submits a market IOC order. side is "BUY" or "SELL";
// baseSize is the quantity in base currency, already formatted.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol, side, baseSize string) error {
	req := orderRequest{
		ClientOrderID: id.New(),
		ProductID:     symbol,
		Side:          side,
		OrderConfiguration: orderConfiguration{
			MarketMarketIOC: marketIOC{BaseSize: baseSize},
		},
	}

	body, err := c.doRequest(ctx, http.MethodPost, apiPrefix+"/orders", req)
	if err != nil {
		return fmt.Errorf("placing %s order for %s: %w", side, symbol, err)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decoding order response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("order rejected: %s: %s", resp.FailureReason, resp.ErrorResponse.Message)
	}

	slog.Info("order placed",
		"order_id", resp.SuccessResponse.OrderID,
		"symbol", symbol,
		"side", side,
		"base_size", baseSize,
	)
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, reqBody any) ([]byte, error) {
	var (
		bodyReader io.Reader
		bodyBytes  []byte
	)
	if reqBody != nil {
		var err error
		bodyBytes, err = json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		c.signRequest(req, method, path, bodyBytes)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	return respBody, nil
}

// signRequest adds HMAC-SHA256 authentication headers. The signed message
// is timestamp + method + path-without-query + body.
func (c *Client) signRequest(req *http.Request, method, path string, body []byte) {
	ts := strconv.FormatInt(c.now().Unix(), 10)

	signPath := path
	if i := strings.IndexByte(signPath, '?'); i >= 0 {
		signPath = signPath[:i]
	}

	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts + method + signPath))
	mac.Write(body)

	req.Header.Set("CB-ACCESS-KEY", c.apiKey)
	req.Header.Set("CB-ACCESS-SIGN", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("CB-ACCESS-TIMESTAMP", ts)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
