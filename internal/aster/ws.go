package aster

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Feed maintains a live mark-price cache from the miniTicker stream,
// reconnecting with a fixed delay on read failure.
type Feed struct {
	url            string
	reconnectDelay time.Duration
	symbols        []string
	log            *zap.Logger

	mu      sync.RWMutex
	prices  map[string]decimal.Decimal
	updated map[string]time.Time
}

func NewFeed(url string, reconnectDelay time.Duration, symbols []string, log *zap.Logger) *Feed {
	return &Feed{
		url:            url,
		reconnectDelay: reconnectDelay,
		symbols:        symbols,
		log:            log,
		prices:         make(map[string]decimal.Decimal),
		updated:        make(map[string]time.Time),
	}
}

// Run blocks until ctx is cancelled, keeping the stream connected.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("price stream disconnected, reconnecting", zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
		}
	}
}

// Last returns the most recent streamed price and its arrival time.
func (f *Feed) Last(symbol string) (decimal.Decimal, time.Time, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	price, ok := f.prices[symbol]
	return price, f.updated[symbol], ok
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	streams := make([]string, len(f.symbols))
	for i, s := range f.symbols {
		streams[i] = strings.ToLower(s) + "@miniTicker"
	}
	sub := map[string]any{"method": "SUBSCRIBE", "params": streams, "id": 1}
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return err
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		f.handle(data)
	}
}

func (f *Feed) handle(data []byte) {
	var msg struct {
		Event  string `json:"e"`
		Symbol string `json:"s"`
		Close  string `json:"c"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.Event != "24hrMiniTicker" {
		return
	}
	price, err := decimal.NewFromString(msg.Close)
	if err != nil || price.Sign() <= 0 {
		return
	}
	f.mu.Lock()
	f.prices[msg.Symbol] = price
	f.updated[msg.Symbol] = time.Now()
	f.mu.Unlock()
}
