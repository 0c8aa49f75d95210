package coinbase

// rawCandle is a single OHLCV bar as returned by the candles endpoint.
// All numeric fields arrive as strings.
type rawCandle struct {
	Start  string `json:"start"` // unix seconds
	Low    string `json:"low"`
	High   string `json:"high"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

type candlesResponse struct {
	Candles []rawCandle `json:"candles"`
}

type balance struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type account struct {
	UUID             string  `json:"uuid"`
	Currency         string  `json:"currency"`
	AvailableBalance balance `json:"available_balance"`
}

type accountsResponse struct {
	Accounts []account `json:"accounts"`
	HasNext  bool      `json:"has_next"`
	Cursor   string    `json:"cursor"`
}

type marketIOC struct {
	QuoteSize string `json:"quote_size,omitempty"`
	BaseSize  string `json:"base_size,omitempty"`
}

type orderConfiguration struct {
	MarketMarketIOC marketIOC `json:"market_market_ioc"`
}

type orderRequest struct {
	ClientOrderID      string             `json:"client_order_id"`
	ProductID          string             `json:"product_id"`
	Side               string             `json:"side"` // BUY or SELL
	OrderConfiguration orderConfiguration `json:"order_configuration"`
}

type orderResponse struct {
	Success       bool   `json:"success"`
	FailureReason string `json:"failure_reason"`
	ErrorResponse struct {
		Error        string `json:"error"`
		Message      string `json:"message"`
		ErrorDetails string `json:"error_details"`
	} `json:"error_response"`
	SuccessResponse struct {
		OrderID   string `json:"order_id"`
		ProductID string `json:"product_id"`
		Side      string `json:"side"`
	} `json:"success_response"`
}

type tickerMessage struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type    string `json:"type"`
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
	} `json:"events"`
}

type wsSubscribe struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channel    string   `json:"channel"`
}
