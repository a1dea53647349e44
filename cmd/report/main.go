package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"aster-hedge-bot/internal/config"
	"aster-hedge-bot/internal/store/sqlite"

	"github.com/olekukonko/tablewriter"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	trades := flag.Bool("trades", false, "print recent trades")
	positions := flag.Bool("positions", false, "print recent positions")
	stats := flag.Bool("stats", false, "print daily stats")
	limit := flag.Int("limit", 20, "max rows to print")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	st, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		fatal("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	printed := false
	if *trades {
		printTrades(ctx, st, *limit)
		printed = true
	}
	if *positions {
		printPositions(ctx, st, *limit)
		printed = true
	}
	if *stats {
		printStats(ctx, st, *limit)
		printed = true
	}
	if !printed {
		printPositions(ctx, st, *limit)
	}
}

func printTrades(ctx context.Context, st *sqlite.Store, limit int) {
	rows, err := st.Trades(ctx, limit)
	if err != nil {
		fatal("query trades: %v", err)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Symbol", "Wallet", "Side", "Phase", "Qty", "Price", "USDT", "Status")
	for _, row := range rows {
		table.Append(
			row.Time.Format("01-02 15:04:05"),
			row.Symbol,
			row.Wallet,
			row.Side,
			row.Phase,
			row.Quantity,
			row.Price,
			row.USDT,
			row.Status,
		)
	}
	table.Render()
}

func printPositions(ctx context.Context, st *sqlite.Store, limit int) {
	rows, err := st.Positions(ctx, limit)
	if err != nil {
		fatal("query positions: %v", err)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Opened", "Symbol", "Long", "Short", "Qty", "Notional", "Hold", "Status")
	for _, row := range rows {
		table.Append(
			row.Opened.Format("01-02 15:04:05"),
			row.Symbol,
			row.LongWallets,
			row.ShortWallets,
			row.Quantity,
			row.Notional,
			fmt.Sprintf("%dm", row.HoldSeconds/60),
			row.Status,
		)
	}
	table.Render()
}

func printStats(ctx context.Context, st *sqlite.Store, limit int) {
	rows, err := st.DailyStats(ctx, limit)
	if err != nil {
		fatal("query stats: %v", err)
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Day", "Rounds", "Completed", "RolledBack", "Failed", "Legs", "Volume USDT")
	for _, s := range rows {
		table.Append(
			s.Day.Format("2006-01-02"),
			strconv.Itoa(s.Rounds),
			strconv.Itoa(s.Completed),
			strconv.Itoa(s.RolledBack),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Legs),
			s.VolumeUSDT,
		)
	}
	table.Render()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
