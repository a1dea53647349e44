package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	API       APIConfig       `yaml:"api"`
	WS        WSConfig        `yaml:"ws"`
	State     StateConfig     `yaml:"state"`
	Trading   TradingConfig   `yaml:"trading"`
	Risk      RiskConfig      `yaml:"risk"`
	Discord   DiscordConfig   `yaml:"discord"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	RecvWindow int           `yaml:"recv_window"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TradingConfig struct {
	Symbols             []string           `yaml:"symbols"`
	PositionSizes       map[string]float64 `yaml:"position_sizes"`
	DefaultPositionUSDT float64            `yaml:"default_position_size_usdt"`
	Variance            float64            `yaml:"position_size_variance"`
	MinOrderUSDT        float64            `yaml:"minimum_order_size_usdt"`
	Steps               map[string]string  `yaml:"quantity_steps"`
	MinHold             time.Duration      `yaml:"min_hold_time"`
	MaxHold             time.Duration      `yaml:"max_hold_time"`
	MinWait             time.Duration      `yaml:"min_wait_between_rounds"`
	MaxWait             time.Duration      `yaml:"max_wait_between_rounds"`
	WalletDelay         time.Duration      `yaml:"wallet_execution_delay"`
	TeamDelay           time.Duration      `yaml:"team_delay"`
	MinBalanceUSDT      float64            `yaml:"minimum_balance_usdt"`
	ShapeMemory         int                `yaml:"shape_memory"`
	RetryLimit          int                `yaml:"retry_limit"`
	RetryBackoff        time.Duration      `yaml:"retry_backoff"`
	CloseRetryLimit     int                `yaml:"close_retry_limit"`
}

// NotionalFor returns the configured per-symbol size in USDT, falling
// back to the default.
func (t TradingConfig) NotionalFor(symbol string) float64 {
	if size, ok := t.PositionSizes[symbol]; ok {
		return size
	}
	return t.DefaultPositionUSDT
}

// StepFor returns the quantity step for a symbol.
func (t TradingConfig) StepFor(symbol string) string {
	if step, ok := t.Steps[symbol]; ok {
		return step
	}
	return "0.001"
}

type RiskConfig struct {
	LowBalanceWarnUSDT float64 `yaml:"low_balance_warn_usdt"`
}

type DiscordConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
	SendOnOpen     bool          `yaml:"send_on_position_open"`
	SendOnClose    bool          `yaml:"send_on_position_close"`
	DailySummary   bool          `yaml:"daily_summary"`
}

type TimescaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	Schema    string `yaml:"schema"`
	QueueSize int    `yaml:"queue_size"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://fapi.asterdex.com"
	}
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 10 * time.Second
	}
	if cfg.API.RecvWindow == 0 {
		cfg.API.RecvWindow = 5000
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = "wss://fstream.asterdex.com/ws"
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/aster-hedge-bot.db"
	}
	if cfg.Trading.DefaultPositionUSDT == 0 {
		cfg.Trading.DefaultPositionUSDT = 100
	}
	if cfg.Trading.Variance == 0 {
		cfg.Trading.Variance = 0.3
	}
	if cfg.Trading.MinOrderUSDT == 0 {
		cfg.Trading.MinOrderUSDT = 5
	}
	if cfg.Trading.MinHold == 0 {
		cfg.Trading.MinHold = 5 * time.Minute
	}
	if cfg.Trading.MaxHold == 0 {
		cfg.Trading.MaxHold = 30 * time.Minute
	}
	if cfg.Trading.MinWait == 0 {
		cfg.Trading.MinWait = 2 * time.Minute
	}
	if cfg.Trading.MaxWait == 0 {
		cfg.Trading.MaxWait = 5 * time.Minute
	}
	if cfg.Trading.WalletDelay == 0 {
		cfg.Trading.WalletDelay = time.Second
	}
	if cfg.Trading.TeamDelay == 0 {
		cfg.Trading.TeamDelay = cfg.Trading.WalletDelay
	}
	if cfg.Trading.MinBalanceUSDT == 0 {
		cfg.Trading.MinBalanceUSDT = 10
	}
	if cfg.Trading.ShapeMemory == 0 {
		cfg.Trading.ShapeMemory = 3
	}
	if cfg.Trading.RetryLimit == 0 {
		cfg.Trading.RetryLimit = 3
	}
	if cfg.Trading.RetryBackoff == 0 {
		cfg.Trading.RetryBackoff = 200 * time.Millisecond
	}
	if cfg.Trading.CloseRetryLimit == 0 {
		cfg.Trading.CloseRetryLimit = 5
	}
	if cfg.Discord.ReportInterval == 0 {
		cfg.Discord.ReportInterval = time.Hour
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = ":9180"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Trading.Symbols) == 0 {
		return errors.New("trading.symbols is required")
	}
	if cfg.Trading.DefaultPositionUSDT <= 0 {
		return errors.New("trading.default_position_size_usdt must be > 0")
	}
	if cfg.Trading.Variance < 0 || cfg.Trading.Variance >= 1 {
		return errors.New("trading.position_size_variance must be in [0, 1)")
	}
	if cfg.Trading.MinHold > cfg.Trading.MaxHold {
		return errors.New("trading.min_hold_time exceeds trading.max_hold_time")
	}
	if cfg.Trading.MinWait > cfg.Trading.MaxWait {
		return errors.New("trading.min_wait_between_rounds exceeds trading.max_wait_between_rounds")
	}
	for symbol, size := range cfg.Trading.PositionSizes {
		if size <= 0 {
			return fmt.Errorf("trading.position_sizes[%s] must be > 0", symbol)
		}
	}
	return nil
}
