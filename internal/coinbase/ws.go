package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// wsWriteWait is the time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second

	// wsPongWait is the time allowed to read the next pong message.
	wsPongWait = 30 * time.Second

	// wsPingPeriod sends pings at this interval. Must be less than wsPongWait.
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsReconnectDelay is the base delay before attempting to reconnect.
	wsReconnectDelay = 2 * time.Second

	// wsMaxReconnectDelay caps the exponential backoff.
	wsMaxReconnectDelay = 60 * time.Second
)

// TickHandler is called with each live price from the ticker channel.
type TickHandler func(symbol string, price float64)

// WSFeed streams ticker prices over WebSocket, reconnecting with
// exponential backoff when the connection drops.
type WSFeed struct {
	wsURL   string
	symbols []string
	handler TickHandler

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

func NewWSFeed(wsURL string, symbols []string, handler TickHandler) *WSFeed {
	return &WSFeed{
		wsURL:   wsURL,
		symbols: symbols,
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Run connects and consumes ticker messages until ctx is cancelled or
// Close is called. Connection drops are retried forever with backoff.
func (w *WSFeed) Run(ctx context.Context) {
	delay := wsReconnectDelay

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("websocket connect failed", "error", err, "retry_in", delay)
		} else {
			delay = wsReconnectDelay
			w.consume(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > wsMaxReconnectDelay {
			delay = wsMaxReconnectDelay
		}
	}
}

// Close shuts the feed down permanently.
func (w *WSFeed) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	if w.conn != nil {
		w.conn.Close()
	}
}

func (w *WSFeed) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", w.wsURL, err)
	}

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	sub := wsSubscribe{
		Type:       "subscribe",
		ProductIDs: w.symbols,
		Channel:    "ticker",
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("subscribing to ticker: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()

	slog.Info("websocket connected", "url", w.wsURL, "symbols", w.symbols)
	return nil
}

// consume reads messages until the connection drops, pinging in the
// background to keep it alive.
func (w *WSFeed) consume(ctx context.Context) {
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	if conn == nil {
		return
	}
	defer conn.Close()

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				slog.Warn("websocket read failed, reconnecting", "error", err)
			}
			return
		}
		w.dispatch(data)
	}
}

func (w *WSFeed) dispatch(data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("skipping unparseable websocket message", "error", err)
		return
	}
	if msg.Channel != "ticker" {
		return
	}

	for _, event := range msg.Events {
		for _, tick := range event.Tickers {
			price, err := strconv.ParseFloat(tick.Price, 64)
			if err != nil || price <= 0 {
				continue
			}
			w.handler(tick.ProductID, price)
		}
	}
}
