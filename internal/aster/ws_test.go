package aster

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFeedHandleMiniTicker(t *testing.T) {
	feed := NewFeed("wss://example/ws", time.Second, []string{"BTCUSDT"}, zap.NewNop())

	feed.handle([]byte(`{"e":"24hrMiniTicker","s":"BTCUSDT","c":"50123.4"}`))
	price, at, ok := feed.Last("BTCUSDT")
	if !ok {
		t.Fatalf("expected cached price")
	}
	if price.String() != "50123.4" {
		t.Fatalf("unexpected price %s", price)
	}
	if at.IsZero() {
		t.Fatalf("update time not set")
	}
}

func TestFeedHandleIgnoresOtherEvents(t *testing.T) {
	feed := NewFeed("wss://example/ws", time.Second, []string{"BTCUSDT"}, zap.NewNop())

	feed.handle([]byte(`{"e":"aggTrade","s":"BTCUSDT","p":"1"}`))
	feed.handle([]byte(`{"e":"24hrMiniTicker","s":"BTCUSDT","c":"-5"}`))
	feed.handle([]byte(`not json`))
	if _, _, ok := feed.Last("BTCUSDT"); ok {
		t.Fatalf("invalid messages must not populate the cache")
	}
}
