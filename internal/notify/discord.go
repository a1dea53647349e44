package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aster-hedge-bot/internal/config"
	"aster-hedge-bot/internal/store"
	"aster-hedge-bot/internal/trading"
	"aster-hedge-bot/internal/wallet"

	"go.uber.org/zap"
)

const (
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xe67e22
	colorBlue   = 0x3498db
)

// Discord delivers events as webhook embeds. Delivery is best-effort:
// failures are logged and swallowed so notifications can never stall
// or abort a round.
type Discord struct {
	webhookURL  string
	sendOnOpen  bool
	sendOnClose bool
	client      *http.Client
	log         *zap.Logger
}

func NewDiscord(cfg config.DiscordConfig, webhookURL string, log *zap.Logger) *Discord {
	return &Discord{
		webhookURL:  strings.TrimSpace(webhookURL),
		sendOnOpen:  cfg.SendOnOpen,
		sendOnClose: cfg.SendOnClose,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (d *Discord) PositionOpened(ctx context.Context, r trading.Round) {
	if !d.sendOnOpen {
		return
	}
	d.send(ctx, embed{
		Title: "Position Opened",
		Color: colorGreen,
		Fields: []embedField{
			{Name: "Symbol", Value: r.Symbol, Inline: true},
			{Name: "Quantity", Value: r.Quantity.String(), Inline: true},
			{Name: "Notional", Value: r.NotionalUSDT().StringFixed(2) + " USDT", Inline: true},
			{Name: "Long", Value: walletList(r.Long.Wallets), Inline: true},
			{Name: "Short", Value: walletList(r.Short.Wallets), Inline: true},
			{Name: "Hold", Value: r.Hold.Round(time.Second).String(), Inline: true},
		},
	})
}

func (d *Discord) PositionClosed(ctx context.Context, r trading.Round) {
	if !d.sendOnClose {
		return
	}
	d.send(ctx, embed{
		Title: "Position Closed",
		Color: colorBlue,
		Fields: []embedField{
			{Name: "Symbol", Value: r.Symbol, Inline: true},
			{Name: "Quantity", Value: r.Quantity.String(), Inline: true},
			{Name: "Notional", Value: r.NotionalUSDT().StringFixed(2) + " USDT", Inline: true},
			{Name: "Duration", Value: r.Ended.Sub(r.Started).Round(time.Second).String(), Inline: true},
			{Name: "Legs", Value: fmt.Sprintf("%d", len(r.Legs)), Inline: true},
		},
	})
}

func (d *Discord) RoundFailed(ctx context.Context, r trading.Round, cause error) {
	d.send(ctx, embed{
		Title:       fmt.Sprintf("Round %s", r.Status),
		Description: cause.Error(),
		Color:       colorRed,
		Fields: []embedField{
			{Name: "Symbol", Value: r.Symbol, Inline: true},
			{Name: "Round", Value: r.ID, Inline: true},
		},
	})
}

func (d *Discord) LowBalance(ctx context.Context, w wallet.Wallet, threshold float64) {
	d.send(ctx, embed{
		Title:       "Low Balance Warning",
		Description: fmt.Sprintf("%s holds %.2f USDT, below the %.2f USDT warning level", w.Name, w.Balance, threshold),
		Color:       colorOrange,
	})
}

func (d *Discord) BalanceReport(ctx context.Context, wallets []wallet.Wallet) {
	var b strings.Builder
	total := 0.0
	for _, w := range wallets {
		state := "ok"
		switch {
		case w.Banned:
			state = "banned"
		case w.Stuck:
			state = "stuck"
		case !w.Eligible:
			state = "ineligible"
		}
		fmt.Fprintf(&b, "%s: %.2f USDT (%s)\n", w.Name, w.Balance, state)
		total += w.Balance
	}
	fmt.Fprintf(&b, "Total: %.2f USDT", total)
	d.send(ctx, embed{Title: "Balance Report", Description: b.String(), Color: colorBlue})
}

func (d *Discord) DailySummary(ctx context.Context, s store.Summary) {
	d.send(ctx, embed{
		Title: "Daily Summary " + s.Day.Format("2006-01-02"),
		Color: colorBlue,
		Fields: []embedField{
			{Name: "Rounds", Value: fmt.Sprintf("%d", s.Rounds), Inline: true},
			{Name: "Completed", Value: fmt.Sprintf("%d", s.Completed), Inline: true},
			{Name: "Rolled Back", Value: fmt.Sprintf("%d", s.RolledBack), Inline: true},
			{Name: "Failed", Value: fmt.Sprintf("%d", s.Failed), Inline: true},
			{Name: "Legs", Value: fmt.Sprintf("%d", s.Legs), Inline: true},
			{Name: "Volume", Value: s.VolumeUSDT + " USDT", Inline: true},
		},
	})
}

func (d *Discord) Escalate(ctx context.Context, subject, detail string) {
	d.send(ctx, embed{
		Title:       "ESCALATION: " + subject,
		Description: detail,
		Color:       colorRed,
	})
}

func (d *Discord) send(ctx context.Context, e embed) {
	if d.webhookURL == "" {
		return
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(map[string]any{"embeds": []embed{e}})
	if err != nil {
		d.log.Warn("discord payload marshal failed", zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		d.log.Warn("discord request build failed", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Warn("discord send failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		d.log.Warn("discord send rejected",
			zap.Int("status", resp.StatusCode), zap.String("body", strings.TrimSpace(string(body))))
	}
}

func walletList(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}
