package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the engine's file configuration. Environment variables override the
// file; a .env file in the working directory is loaded first when present.
type Config struct {
	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
		File     string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port            int    `yaml:"port"`
		SnapshotPushRaw string `yaml:"snapshot_push_interval"`
	} `yaml:"server"`
	Storage struct {
		DBPath           string `yaml:"db_path"`
		PivotsMaxAgeRaw  string `yaml:"pivots_max_age"`
		OIMaxAgeRaw      string `yaml:"oi_max_age"`
		CandlesMaxAgeRaw string `yaml:"candles_max_age"`
	} `yaml:"storage"`
	Engine struct {
		OiPollIntervalRaw string  `yaml:"oi_poll_interval"`
		SourceTimeoutRaw  string  `yaml:"source_timeout"`
		MinOiConfidence   float64 `yaml:"min_oi_confidence"`
		DefaultDelta      float64 `yaml:"default_delta"`
		CandleTimeframe   string  `yaml:"candle_timeframe"`
		CandleLimit       int     `yaml:"candle_limit"`
		MinSwingCandles   int     `yaml:"min_swing_candles"`
		AllocationWeights []int   `yaml:"allocation_weights"`
		ClusterPct        float64 `yaml:"cluster_pct"`
		PivotPct          float64 `yaml:"pivot_pct"`
		SwingPct          float64 `yaml:"swing_pct"`
		RoundPct          float64 `yaml:"round_pct"`
	} `yaml:"engine"`
	Feed struct {
		WSEndpoint string `yaml:"ws_endpoint"`
	} `yaml:"feed"`

	SnapshotPushInterval time.Duration `yaml:"-"`
	PivotsMaxAge         time.Duration `yaml:"-"`
	OIMaxAge             time.Duration `yaml:"-"`
	CandlesMaxAge        time.Duration `yaml:"-"`
	OiPollInterval       time.Duration `yaml:"-"`
	SourceTimeout        time.Duration `yaml:"-"`
}

// Load reads path (optional, may be empty), applies environment overrides, fills
// defaults and validates.
func Load(path string) (*Config, error) {
	// Ignore error so the engine still starts without a .env file.
	_ = godotenv.Load()

	// 0 is a valid confidence floor, so its default is seeded before decoding.
	cfg := &Config{}
	cfg.Engine.MinOiConfidence = 0.3
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Encoding = getEnv("LOG_ENCODING", c.Logging.Encoding)
	c.Logging.File = getEnv("LOG_FILE", c.Logging.File)
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Storage.DBPath = getEnv("DB_PATH", c.Storage.DBPath)
	c.Engine.OiPollIntervalRaw = getEnv("OI_POLL_INTERVAL", c.Engine.OiPollIntervalRaw)
	c.Engine.SourceTimeoutRaw = getEnv("SOURCE_TIMEOUT", c.Engine.SourceTimeoutRaw)
	c.Engine.MinOiConfidence = getEnvFloat("MIN_OI_CONFIDENCE", c.Engine.MinOiConfidence)
	c.Engine.DefaultDelta = getEnvFloat("DEFAULT_DELTA", c.Engine.DefaultDelta)
	c.Feed.WSEndpoint = getEnv("FEED_WS_ENDPOINT", c.Feed.WSEndpoint)
	if v := os.Getenv("ALLOCATION_WEIGHTS"); v != "" {
		if weights, err := splitInts(v); err == nil {
			c.Engine.AllocationWeights = weights
		}
	}
}

func (c *Config) applyDefaults() {
	setString(&c.Logging.Level, "info")
	setString(&c.Logging.Encoding, "json")
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	setString(&c.Server.SnapshotPushRaw, "2s")
	setString(&c.Storage.DBPath, "exitengine.db")
	setString(&c.Storage.PivotsMaxAgeRaw, "2h")
	setString(&c.Storage.OIMaxAgeRaw, "3m")
	setString(&c.Storage.CandlesMaxAgeRaw, "5m")
	setString(&c.Engine.OiPollIntervalRaw, "1m")
	setString(&c.Engine.SourceTimeoutRaw, "50ms")
	setString(&c.Engine.CandleTimeframe, "1m")
	if c.Engine.DefaultDelta == 0 {
		c.Engine.DefaultDelta = 0.5
	}
	if c.Engine.CandleLimit == 0 {
		c.Engine.CandleLimit = 60
	}
	if c.Engine.MinSwingCandles == 0 {
		c.Engine.MinSwingCandles = 30
	}
	if len(c.Engine.AllocationWeights) == 0 {
		c.Engine.AllocationWeights = []int{40, 30, 20, 10}
	}
	if c.Engine.ClusterPct == 0 {
		c.Engine.ClusterPct = 0.02
	}
	if c.Engine.PivotPct == 0 {
		c.Engine.PivotPct = 0.02
	}
	if c.Engine.SwingPct == 0 {
		c.Engine.SwingPct = 0.02
	}
	if c.Engine.RoundPct == 0 {
		c.Engine.RoundPct = 0.01
	}
}

func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.snapshot_push_interval", c.Server.SnapshotPushRaw, &c.SnapshotPushInterval},
		{"storage.pivots_max_age", c.Storage.PivotsMaxAgeRaw, &c.PivotsMaxAge},
		{"storage.oi_max_age", c.Storage.OIMaxAgeRaw, &c.OIMaxAge},
		{"storage.candles_max_age", c.Storage.CandlesMaxAgeRaw, &c.CandlesMaxAge},
		{"engine.oi_poll_interval", c.Engine.OiPollIntervalRaw, &c.OiPollInterval},
		{"engine.source_timeout", c.Engine.SourceTimeoutRaw, &c.SourceTimeout},
	}
	for _, f := range fields {
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	case c.OiPollInterval <= 0:
		return fmt.Errorf("engine.oi_poll_interval must be positive")
	case c.Engine.MinOiConfidence < 0 || c.Engine.MinOiConfidence > 1:
		return fmt.Errorf("engine.min_oi_confidence must be within [0, 1], got %v", c.Engine.MinOiConfidence)
	case c.Engine.DefaultDelta <= 0 || c.Engine.DefaultDelta > 1:
		return fmt.Errorf("engine.default_delta must be within (0, 1], got %v", c.Engine.DefaultDelta)
	case len(c.Engine.AllocationWeights) != 4:
		return fmt.Errorf("engine.allocation_weights needs 4 values, got %d", len(c.Engine.AllocationWeights))
	}
	for _, w := range c.Engine.AllocationWeights {
		if w < 0 {
			return fmt.Errorf("engine.allocation_weights must not be negative")
		}
	}
	return nil
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func splitInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
