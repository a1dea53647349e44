package aster

import (
	"context"
	"time"

	"aster-hedge-bot/internal/clock"

	"github.com/shopspring/decimal"
)

const maxFeedAge = 30 * time.Second

// Prices serves mark prices from the stream cache when fresh, falling
// back to the REST ticker when the stream is cold or stale.
type Prices struct {
	feed *Feed
	rest *Client
	clk  clock.Clock
}

func NewPrices(feed *Feed, rest *Client, clk clock.Clock) *Prices {
	return &Prices{feed: feed, rest: rest, clk: clk}
}

func (p *Prices) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if p.feed != nil {
		if price, at, ok := p.feed.Last(symbol); ok && p.clk.Now().Sub(at) <= maxFeedAge {
			return price, nil
		}
	}
	return p.rest.Price(ctx, symbol)
}
