package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimitRPS    int           `yaml:"rate_limit_rps"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Market struct {
		Source          string        `yaml:"source"` // clickhouse | wiki
		WikiBaseURL     string        `yaml:"wiki_base_url"`
		UserAgent       string        `yaml:"user_agent"`
		RequestsPerSec  float64       `yaml:"requests_per_sec"`
		Timeout         time.Duration `yaml:"timeout"`
		BreakerFailures uint32        `yaml:"breaker_failures"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
		CollectSchedule string        `yaml:"collect_schedule"` // cron spec with seconds, empty disables
		CatalogSchedule string        `yaml:"catalog_schedule"`
		// PoolIDs seeds scan pool membership for new catalog items. Empty
		// admits every item with a buy limit.
		PoolIDs []int64 `yaml:"pool_ids"`
	} `yaml:"market"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxConns        int32         `yaml:"max_conns"`
		MinConns        int32         `yaml:"min_conns"`
		MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
		MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	} `yaml:"postgres"`
	Kafka struct {
		Brokers        []string `yaml:"brokers"`
		SignalsTopic   string   `yaml:"signals_topic"`
		SnapshotsTopic string   `yaml:"snapshots_topic"`
		LogsTopic      string   `yaml:"logs_topic"`
		RequiredAcks   int      `yaml:"required_acks"`
		Compression    string   `yaml:"compression"`
		Producer       struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Advisory struct {
		URL             string        `yaml:"url"`
		Timeout         time.Duration `yaml:"timeout"`
		BreakerFailures uint32        `yaml:"breaker_failures"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
		Async           bool          `yaml:"async"`
	} `yaml:"advisory"`
	Scan struct {
		Workers      int           `yaml:"workers"`
		Schedule     string        `yaml:"schedule"` // cron spec with seconds, empty disables
		CacheTTL     time.Duration `yaml:"cache_ttl"`
		Timeout      time.Duration `yaml:"timeout"`
		JournalPath  string        `yaml:"journal_path"`
		SeriesWindow time.Duration `yaml:"series_window"`
	} `yaml:"scan"`
	Strategy StrategyConfig `yaml:"strategy"`
}

// StrategyConfig holds every decision threshold. Defaults mirror the
// documented contract; all of them can be overridden from YAML or env.
type StrategyConfig struct {
	// stage 0
	MinROIPct      float64 `yaml:"min_roi_pct"`
	MinExitRatio   float64 `yaml:"min_exit_ratio"`
	MaxHoldWeeks   int     `yaml:"max_hold_weeks"`
	LongHoldROIPct float64 `yaml:"long_hold_roi_pct"`
	MinLiquidity   float64 `yaml:"min_liquidity"`

	// stage 1
	StableDays       int     `yaml:"stable_days"`
	StabilityCeiling float64 `yaml:"stability_ceiling"`

	// stage 2
	QualityROIPct    float64 `yaml:"quality_roi_pct"`
	MinDiscountPct   float64 `yaml:"min_discount_pct"`
	MinBotPct        float64 `yaml:"min_bot_pct"`
	MaxDriftPct      float64 `yaml:"max_drift_pct"`
	MinRecoveryWeeks int     `yaml:"min_recovery_weeks"`
	MaxRecoveryWeeks int     `yaml:"max_recovery_weeks"`
	QualityLiquidity float64 `yaml:"quality_liquidity"`
	MinConfidence    float64 `yaml:"min_confidence"`

	// opportunity scorer and NBA
	MinSpreadPct  float64       `yaml:"min_spread_pct"`
	PerFlipCapGP  float64       `yaml:"per_flip_cap_gp"`
	VolumeSlice   float64       `yaml:"volume_slice"`
	QueueSize     int           `yaml:"queue_size"`
	VisibleSize   int           `yaml:"visible_size"`
	StaleOrderAge time.Duration `yaml:"stale_order_age"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`

	// portfolio advisor
	StopLossPct    float64 `yaml:"stop_loss_pct"`
	HoldConfidence float64 `yaml:"hold_confidence"`
	SellSoonProfit float64 `yaml:"sell_soon_profit_pct"`
	SellSoonRatio  float64 `yaml:"sell_soon_progress"`
}

// DefaultStrategy returns the shipped thresholds.
func DefaultStrategy() StrategyConfig {
	return StrategyConfig{
		MinROIPct:        10,
		MinExitRatio:     1.12,
		MaxHoldWeeks:     6,
		LongHoldROIPct:   50,
		MinLiquidity:     30,
		StableDays:       90,
		StabilityCeiling: 70,
		QualityROIPct:    15,
		MinDiscountPct:   20,
		MinBotPct:        50,
		MaxDriftPct:      5,
		MinRecoveryWeeks: 2,
		MaxRecoveryWeeks: 4,
		QualityLiquidity: 40,
		MinConfidence:    60,
		MinSpreadPct:     2.0,
		PerFlipCapGP:     50_000_000,
		VolumeSlice:      0.05,
		QueueSize:        5,
		VisibleSize:      15,
		StaleOrderAge:    30 * time.Minute,
		FetchTimeout:     5 * time.Second,
		StopLossPct:      12,
		HoldConfidence:   60,
		SellSoonProfit:   10,
		SellSoonRatio:    0.8,
	}
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := decode(b)
	if err != nil {
		return nil, err
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func decode(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// Default returns a config usable for local runs.
func Default() *Config {
	c := &Config{Environment: "development", Strategy: DefaultStrategy()}
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 30 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RateLimitRPS = 50
	c.Server.AllowOrigins = []string{"*"}
	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Log.Output = "stdout"
	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"
	c.Market.Source = "wiki"
	c.Market.WikiBaseURL = "https://prices.runescape.wiki/api/v1/osrs"
	c.Market.UserAgent = "flipdesk/1.0"
	c.Market.RequestsPerSec = 5
	c.Market.Timeout = 10 * time.Second
	c.Market.BreakerFailures = 5
	c.Market.BreakerTimeout = 30 * time.Second
	c.Market.CollectSchedule = "0 */5 * * * *"
	c.Market.CatalogSchedule = "0 0 */6 * * *"
	c.Kafka.SignalsTopic = "flipdesk.signals"
	c.Kafka.SnapshotsTopic = "flipdesk.snapshots"
	c.Kafka.LogsTopic = "flipdesk.logs"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "gzip"
	c.Kafka.Producer.MaxAttempts = 3
	c.Kafka.Producer.WriteTimeout = 10 * time.Second
	c.Kafka.Consumer.GroupID = "flipdesk-ingest"
	c.Kafka.Consumer.Workers = 2
	c.Kafka.Consumer.RetryMax = 3
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "flipdesk"
	c.Postgres.MaxConns = 10
	c.Scan.Workers = 8
	c.Scan.CacheTTL = 10 * time.Minute
	c.Scan.Timeout = 2 * time.Minute
	c.Scan.SeriesWindow = 365 * 24 * time.Hour
	c.Advisory.Timeout = 20 * time.Second
	c.Advisory.BreakerFailures = 3
	c.Advisory.BreakerTimeout = time.Minute
	return c
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// Validation runs once, after the overrides.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := decode(b)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment lookups.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("MARKET_SOURCE"); v != "" {
		c.Market.Source = v
	}
	if v := getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("KAFKA_SIGNALS_TOPIC"); v != "" {
		c.Kafka.SignalsTopic = v
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("ADVISORY_URL"); v != "" {
		c.Advisory.URL = v
	}

	floats := map[string]*float64{
		"MIN_ROI_PCT":     &c.Strategy.MinROIPct,
		"MIN_EXIT_RATIO":  &c.Strategy.MinExitRatio,
		"MIN_LIQUIDITY":   &c.Strategy.MinLiquidity,
		"MIN_CONFIDENCE":  &c.Strategy.MinConfidence,
		"MIN_SPREAD_PCT":  &c.Strategy.MinSpreadPct,
		"PER_FLIP_CAP_GP": &c.Strategy.PerFlipCapGP,
	}
	for key, dst := range floats {
		if v := getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = f
		}
	}
	ints := map[string]*int{
		"MAX_HOLD_WEEKS": &c.Strategy.MaxHoldWeeks,
		"QUEUE_SIZE":     &c.Strategy.QueueSize,
		"VISIBLE_SIZE":   &c.Strategy.VisibleSize,
	}
	for key, dst := range ints {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("env %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := getenv("STALE_ORDER_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("env STALE_ORDER_AGE: %w", err)
		}
		c.Strategy.StaleOrderAge = d
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Market.Source != "wiki" && c.Market.Source != "clickhouse" {
		return fmt.Errorf("market.source must be 'wiki' or 'clickhouse', got '%s'", c.Market.Source)
	}
	if c.Market.Source == "wiki" && c.Market.WikiBaseURL == "" {
		return fmt.Errorf("market.wiki_base_url is required for the wiki source")
	}
	if c.Market.Source == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for the clickhouse source")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Kafka.Consumer.Enabled && (len(c.Kafka.Brokers) == 0 || c.ClickHouse.Host == "") {
		return fmt.Errorf("kafka.consumer needs kafka.brokers and clickhouse.host")
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	return c.Strategy.Validate()
}

// Validate rejects negative or inconsistent thresholds.
func (s StrategyConfig) Validate() error {
	nonNeg := map[string]float64{
		"min_roi_pct":          s.MinROIPct,
		"min_exit_ratio":       s.MinExitRatio,
		"long_hold_roi_pct":    s.LongHoldROIPct,
		"min_liquidity":        s.MinLiquidity,
		"stability_ceiling":    s.StabilityCeiling,
		"quality_roi_pct":      s.QualityROIPct,
		"min_discount_pct":     s.MinDiscountPct,
		"min_bot_pct":          s.MinBotPct,
		"max_drift_pct":        s.MaxDriftPct,
		"quality_liquidity":    s.QualityLiquidity,
		"min_confidence":       s.MinConfidence,
		"min_spread_pct":       s.MinSpreadPct,
		"volume_slice":         s.VolumeSlice,
		"stop_loss_pct":        s.StopLossPct,
		"hold_confidence":      s.HoldConfidence,
		"sell_soon_profit_pct": s.SellSoonProfit,
		"sell_soon_progress":   s.SellSoonRatio,
	}
	for name, v := range nonNeg {
		if v < 0 {
			return fmt.Errorf("strategy.%s must not be negative, got %v", name, v)
		}
	}
	if s.MaxHoldWeeks < 0 || s.StableDays < 0 || s.MinRecoveryWeeks < 0 || s.MaxRecoveryWeeks < 0 {
		return fmt.Errorf("strategy week/day thresholds must not be negative")
	}
	if s.MinRecoveryWeeks > s.MaxRecoveryWeeks {
		return fmt.Errorf("strategy.min_recovery_weeks (%d) exceeds max_recovery_weeks (%d)", s.MinRecoveryWeeks, s.MaxRecoveryWeeks)
	}
	if s.PerFlipCapGP <= 0 {
		return fmt.Errorf("strategy.per_flip_cap_gp must be positive")
	}
	if s.QueueSize < 1 || s.VisibleSize < 1 {
		return fmt.Errorf("strategy.queue_size and visible_size must be at least 1")
	}
	if s.QueueSize > s.VisibleSize {
		return fmt.Errorf("strategy.queue_size (%d) exceeds visible_size (%d)", s.QueueSize, s.VisibleSize)
	}
	if s.StaleOrderAge < 0 {
		return fmt.Errorf("strategy.stale_order_age must not be negative")
	}
	if s.FetchTimeout <= 0 {
		return fmt.Errorf("strategy.fetch_timeout must be positive, got %s", s.FetchTimeout)
	}
	if s.MinConfidence > 100 || s.HoldConfidence > 100 {
		return fmt.Errorf("strategy confidence thresholds must be at most 100")
	}
	return nil
}
