package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"snapback/internal/market"
)

// Mode selects how the trader interacts with the outside world.
type Mode string

const (
	ModeBacktest Mode = "backtest" // replay stored candles, local portfolio
	ModePaper    Mode = "paper"    // live data, local portfolio
	ModeLive     Mode = "live"     // live data, real orders, exchange portfolio
)

type Config struct {
	General  GeneralConfig  `toml:"general"`
	Exchange ExchangeConfig `toml:"exchange"`
	Trading  TradingConfig  `toml:"trading"`
	Schedule ScheduleConfig `toml:"schedule"`
	Risk     RiskConfig     `toml:"risk"`
	Strategy StrategyConfig `toml:"strategy"`
}

type GeneralConfig struct {
	DBPath      string `toml:"db_path"`
	LogLevel    string `toml:"log_level"`
	TradeLogCSV string `toml:"trade_log_csv"` // empty disables the CSV mirror
}

type ExchangeConfig struct {
	BaseURL   string `toml:"base_url"`
	WSURL     string `toml:"ws_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	UseWS     bool   `toml:"use_ws"`
}

type TradingConfig struct {
	Mode           Mode     `toml:"mode"`
	Symbols        []string `toml:"symbols"`
	Granularity    string   `toml:"granularity"`
	FetchLimit     int      `toml:"fetch_limit"`
	MaxCachedBars  int      `toml:"max_cached_bars"`
	CommissionRate float64  `toml:"commission_rate"`
	StartCash      float64  `toml:"start_cash"`
	CashFraction   float64  `toml:"cash_fraction"`  // share of exchange cash traded in live mode
	DustThreshold  float64  `toml:"dust_threshold"` // min position value in quote currency
}

type ScheduleConfig struct {
	TickInterval   Duration `toml:"tick_interval"`
	FlushInterval  Duration `toml:"flush_interval"`
	ReportInterval Duration `toml:"report_interval"`
	ErrorBackoff   Duration `toml:"error_backoff"`
}

type RiskConfig struct {
	KellyFraction    float64 `toml:"kelly_fraction"`
	MaxPositionPct   float64 `toml:"max_position_pct"`
	MinTradeNotional float64 `toml:"min_trade_notional"`
}

type StrategyConfig struct {
	Active        string              `toml:"active"`
	Probabilistic ProbabilisticConfig `toml:"probabilistic"`
	SMACross      SMACrossConfig      `toml:"smacross"`
}

type ProbabilisticConfig struct {
	PriceMove     float64  `toml:"price_move"`
	ProfitTarget  float64  `toml:"profit_target"`
	LookBack      int      `toml:"look_back"`
	DropThreshold float64  `toml:"drop_threshold"`
	MaxHold       Duration `toml:"max_hold"` // zero disables the time-based sell
}

type SMACrossConfig struct {
	ShortWindow   int     `toml:"short_window"`
	LongWindow    int     `toml:"long_window"`
	OrderQuantity float64 `toml:"order_quantity"`
}

// Duration wraps time.Duration for TOML unmarshaling.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Load reads the TOML file at path on top of the defaults, loads a .env
// file if present, and applies environment overrides for secrets. The
// caller must invoke Validate before using the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SNAPBACK_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("SNAPBACK_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("SNAPBACK_DB_PATH"); v != "" {
		cfg.General.DBPath = v
	}
}

func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DBPath:      "./data/snapback.db",
			LogLevel:    "info",
			TradeLogCSV: "./data/trade_log.csv",
		},
		Exchange: ExchangeConfig{
			BaseURL: "https://api.coinbase.com",
			WSURL:   "wss://advanced-trade-ws.coinbase.com",
		},
		Trading: TradingConfig{
			Mode:           ModePaper,
			Symbols:        []string{"BTC-USD"},
			Granularity:    string(market.FiveMinute),
			FetchLimit:     300,
			MaxCachedBars:  2000,
			CommissionRate: 0.0075,
			StartCash:      1000,
			CashFraction:   0.98,
			DustThreshold:  1.0,
		},
		Schedule: ScheduleConfig{
			TickInterval:   Duration{60 * time.Second},
			FlushInterval:  Duration{5 * time.Minute},
			ReportInterval: Duration{1 * time.Hour},
			ErrorBackoff:   Duration{60 * time.Second},
		},
		Risk: RiskConfig{
			KellyFraction:    1.0,
			MaxPositionPct:   1.0,
			MinTradeNotional: 1.0,
		},
		Strategy: StrategyConfig{
			Active: "probabilistic",
			Probabilistic: ProbabilisticConfig{
				PriceMove:     0.05,
				ProfitTarget:  0.027,
				LookBack:      100,
				DropThreshold: -0.05,
			},
			SMACross: SMACrossConfig{
				ShortWindow:   10,
				LongWindow:    50,
				OrderQuantity: 0.01,
			},
		},
	}
}

// Validate rejects configuration mistakes before any trading loop starts.
// These are programming/config faults and are fatal, unlike the per-tick
// defensive checks that degrade to a no-bet result.
func (c *Config) Validate() error {
	switch c.Trading.Mode {
	case ModeBacktest, ModePaper, ModeLive:
	default:
		return fmt.Errorf("trading.mode must be backtest, paper or live, got %q", c.Trading.Mode)
	}

	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols must not be empty")
	}
	if _, err := market.Granularity(c.Trading.Granularity).Seconds(); err != nil {
		return fmt.Errorf("trading.granularity: %w", err)
	}
	if c.Trading.FetchLimit <= 0 {
		return fmt.Errorf("trading.fetch_limit must be positive")
	}
	if c.Trading.CommissionRate < 0 || c.Trading.CommissionRate >= 1 {
		return fmt.Errorf("trading.commission_rate must be in [0, 1)")
	}
	if c.Trading.Mode != ModeLive && c.Trading.StartCash <= 0 {
		return fmt.Errorf("trading.start_cash must be positive outside live mode")
	}
	if c.Trading.CashFraction <= 0 || c.Trading.CashFraction > 1 {
		return fmt.Errorf("trading.cash_fraction must be in (0, 1]")
	}

	if c.Schedule.TickInterval.Duration <= 0 {
		return fmt.Errorf("schedule.tick_interval must be positive")
	}

	if c.Risk.KellyFraction <= 0 || c.Risk.KellyFraction > 1 {
		return fmt.Errorf("risk.kelly_fraction must be in (0, 1]")
	}
	if c.Risk.MaxPositionPct < 0 || c.Risk.MaxPositionPct > 1 {
		return fmt.Errorf("risk.max_position_pct must be in [0, 1]")
	}

	switch c.Strategy.Active {
	case "probabilistic":
		p := c.Strategy.Probabilistic
		if p.PriceMove <= 0 {
			return fmt.Errorf("strategy.probabilistic.price_move must be positive")
		}
		if p.ProfitTarget <= 0 {
			return fmt.Errorf("strategy.probabilistic.profit_target must be positive")
		}
		if p.LookBack <= 0 {
			return fmt.Errorf("strategy.probabilistic.look_back must be positive")
		}
		if p.DropThreshold >= 0 {
			return fmt.Errorf("strategy.probabilistic.drop_threshold must be negative")
		}
	case "smacross":
		s := c.Strategy.SMACross
		if s.ShortWindow <= 0 || s.LongWindow <= s.ShortWindow {
			return fmt.Errorf("strategy.smacross windows must satisfy 0 < short < long")
		}
		if s.OrderQuantity <= 0 {
			return fmt.Errorf("strategy.smacross.order_quantity must be positive")
		}
	default:
		return fmt.Errorf("strategy.active must be probabilistic or smacross, got %q", c.Strategy.Active)
	}

	if c.Trading.Mode == ModeLive {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange.api_key and exchange.api_secret are required in live mode")
		}
	}

	return nil
}
