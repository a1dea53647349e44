package aster

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"aster-hedge-bot/internal/clock"
	"aster-hedge-bot/internal/config"
	"aster-hedge-bot/internal/trading"
	"aster-hedge-bot/internal/wallet"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client is the signed REST client for the Binance-style futures API.
// Request signing is HMAC-SHA256 over the query string in insertion
// order; the signature must cover exactly the bytes sent.
type Client struct {
	baseURL    string
	http       *http.Client
	limiter    *rate.Limiter
	recvWindow int
	clk        clock.Clock
	log        *zap.Logger
}

func NewClient(cfg config.APIConfig, clk clock.Clock, log *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		http:       &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		recvWindow: cfg.RecvWindow,
		clk:        clk,
		log:        log,
	}
}

// params preserves insertion order; url.Values sorts keys, which would
// desync the signature from the sent query string.
type params struct {
	pairs [][2]string
}

func (p *params) set(key, value string) {
	p.pairs = append(p.pairs, [2]string{key, value})
}

func (p *params) encode() string {
	var b strings.Builder
	for i, kv := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv[1]))
	}
	return b.String()
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Balance returns the wallet's available USDT margin.
func (c *Client) Balance(ctx context.Context, creds wallet.Credentials) (float64, error) {
	var resp struct {
		AvailableBalance string `json:"availableBalance"`
	}
	if err := c.do(ctx, http.MethodGet, "/fapi/v2/account", &params{}, &creds, &resp); err != nil {
		return 0, err
	}
	balance, err := strconv.ParseFloat(resp.AvailableBalance, 64)
	if err != nil {
		return 0, fmt.Errorf("parse availableBalance %q: %w", resp.AvailableBalance, err)
	}
	return balance, nil
}

// Price returns the last traded price for a symbol; unsigned endpoint.
func (c *Client) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p := &params{}
	p.set("symbol", symbol)
	var resp struct {
		Price string `json:"price"`
	}
	if err := c.do(ctx, http.MethodGet, "/fapi/v1/ticker/price", p, nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(resp.Price)
}

// PlaceOrder submits a market order opening the given side.
func (c *Client) PlaceOrder(ctx context.Context, creds wallet.Credentials, symbol string, side trading.Side, qty decimal.Decimal) (trading.OrderResult, error) {
	return c.order(ctx, creds, symbol, side.OrderSide(), qty, false)
}

// ClosePosition reduces an open position of the given side to flat for
// the given quantity by submitting the opposite-side reduce-only order.
func (c *Client) ClosePosition(ctx context.Context, creds wallet.Credentials, symbol string, side trading.Side, qty decimal.Decimal) (trading.OrderResult, error) {
	return c.order(ctx, creds, symbol, side.Opposite().OrderSide(), qty, true)
}

func (c *Client) order(ctx context.Context, creds wallet.Credentials, symbol, orderSide string, qty decimal.Decimal, reduceOnly bool) (trading.OrderResult, error) {
	p := &params{}
	p.set("symbol", symbol)
	p.set("side", orderSide)
	p.set("type", "MARKET")
	p.set("quantity", qty.String())
	if reduceOnly {
		p.set("reduceOnly", "true")
	}
	p.set("newOrderRespType", "RESULT")

	var resp struct {
		OrderID     int64  `json:"orderId"`
		Status      string `json:"status"`
		ExecutedQty string `json:"executedQty"`
		AvgPrice    string `json:"avgPrice"`
	}
	if err := c.do(ctx, http.MethodPost, "/fapi/v1/order", p, &creds, &resp); err != nil {
		return trading.OrderResult{}, err
	}
	executed, err := decimal.NewFromString(resp.ExecutedQty)
	if err != nil {
		return trading.OrderResult{}, fmt.Errorf("parse executedQty %q: %w", resp.ExecutedQty, err)
	}
	avg, err := decimal.NewFromString(resp.AvgPrice)
	if err != nil {
		return trading.OrderResult{}, fmt.Errorf("parse avgPrice %q: %w", resp.AvgPrice, err)
	}
	return trading.OrderResult{
		OrderID:     strconv.FormatInt(resp.OrderID, 10),
		Symbol:      symbol,
		Status:      resp.Status,
		ExecutedQty: executed,
		AvgPrice:    avg,
	}, nil
}

// OpenPosition is one live position reported by the exchange.
type OpenPosition struct {
	Symbol   string
	Quantity decimal.Decimal
}

// Positions returns the wallet's live non-flat positions, used to
// reconcile state on startup.
func (c *Client) Positions(ctx context.Context, creds wallet.Credentials) ([]OpenPosition, error) {
	var resp []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
	}
	if err := c.do(ctx, http.MethodGet, "/fapi/v2/positionRisk", &params{}, &creds, &resp); err != nil {
		return nil, err
	}
	var out []OpenPosition
	for _, row := range resp {
		amt, err := decimal.NewFromString(row.PositionAmt)
		if err != nil {
			continue
		}
		if !amt.IsZero() {
			out = append(out, OpenPosition{Symbol: row.Symbol, Quantity: amt})
		}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, p *params, creds *wallet.Credentials, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	query := p.encode()
	if creds != nil {
		p.set("timestamp", strconv.FormatInt(c.clk.Now().UnixMilli(), 10))
		p.set("recvWindow", strconv.Itoa(c.recvWindow))
		query = p.encode()
		query += "&signature=" + sign(creds.Secret, query)
	}

	target := c.baseURL + path
	if query != "" {
		target += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return err
	}
	if creds != nil {
		req.Header.Set("X-MBX-APIKEY", creds.Key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return classify(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// classify maps an error response onto the retry policy. Unrecognized
// codes fall back to transient so they consume the retry budget rather
// than triggering a permanent wallet action.
func classify(httpStatus int, body []byte) *trading.APIError {
	var payload struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	_ = json.Unmarshal(body, &payload)
	if payload.Msg == "" {
		payload.Msg = string(body)
	}

	kind := trading.KindTransient
	switch payload.Code {
	case -1022, -2014, -2015:
		kind = trading.KindAuth
	case -1111, -1013, -4003:
		kind = trading.KindPrecision
	case -2018, -2019:
		kind = trading.KindBalance
	default:
		if httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden {
			kind = trading.KindAuth
		}
	}
	return &trading.APIError{Kind: kind, Code: payload.Code, HTTPStatus: httpStatus, Msg: payload.Msg}
}
