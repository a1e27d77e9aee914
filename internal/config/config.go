// Package config loads service configuration from defaults, an optional
// YAML file and PAT_-prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"pat-settlement/internal/domain"
	"pat-settlement/internal/settlement"
)

// EnvPrefix prefixes every environment override. Nested keys use "__",
// e.g. PAT_STORAGE__POSTGRES_DSN sets storage.postgres_dsn.
const EnvPrefix = "PAT_"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	NATS      NATSConfig      `koanf:"nats"`
	Stream    StreamConfig    `koanf:"stream"`
	Genesis   GenesisConfig   `koanf:"genesis"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	SignatureWindow time.Duration `koanf:"signature_window"`
	IdempotencyTTL  time.Duration `koanf:"idempotency_ttl"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

// StorageConfig selects the state store.
type StorageConfig struct {
	Driver      string `koanf:"driver"`
	PostgresDSN string `koanf:"postgres_dsn"`
	MaxConns    int32  `koanf:"max_conns"`   // 0 = driver default
	LogQueries  bool   `koanf:"log_queries"` // trace SQL at debug level
}

// AnalyticsConfig configures the ClickHouse event archive.
type AnalyticsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	ClickHouseDSN string `koanf:"clickhouse_dsn"`
}

// NATSConfig configures the event bus publisher.
type NATSConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// StreamConfig configures the websocket event stream.
type StreamConfig struct {
	Enabled      bool          `koanf:"enabled"`
	BufferSize   int           `koanf:"buffer_size"`
	PingInterval time.Duration `koanf:"ping_interval"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// GenesisConfig initialises an empty store at startup when Auto is set.
// TotalSupply is in whole tokens.
type GenesisConfig struct {
	Auto         bool   `koanf:"auto"`
	Operator     string `koanf:"operator"`
	TokenName    string `koanf:"token_name"`
	TokenSymbol  string `koanf:"token_symbol"`
	Decimals     int32  `koanf:"decimals"`
	TotalSupply  string `koanf:"total_supply"`
	SpreadBps    uint32 `koanf:"spread_bps"`
	BrokerWallet string `koanf:"broker_wallet"`
	BrokerPool   string `koanf:"broker_pool"`
	ProgramID    string `koanf:"program_id"`
	Version      string `koanf:"version"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			SignatureWindow: 5 * time.Minute,
			IdempotencyTTL:  24 * time.Hour,
			MaxBodyBytes:    1 << 20,
		},
		Storage: StorageConfig{Driver: DriverMemory},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "pat.events",
		},
		Stream: StreamConfig{
			Enabled:      true,
			BufferSize:   256,
			PingInterval: 30 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Genesis: GenesisConfig{
			TokenName:   "Pattern Token",
			TokenSymbol: "PAT",
			Decimals:    domain.TokenDecimals,
			TotalSupply: "555222888",
			SpreadBps:   3000,
			Version:     settlement.DefaultVersion,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads defaults, then path (if not empty), then the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps PAT_STORAGE__POSTGRES_DSN to storage.postgres_dsn.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.SignatureWindow <= 0 {
		errs = append(errs, errors.New("server.signature_window must be positive"))
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not one of memory, postgres", c.Storage.Driver))
	}
	if c.Storage.MaxConns < 0 {
		errs = append(errs, errors.New("storage.max_conns must not be negative"))
	}

	if c.Analytics.Enabled && c.Analytics.ClickHouseDSN == "" {
		errs = append(errs, errors.New("analytics.clickhouse_dsn is required when analytics is enabled"))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url is required when nats is enabled"))
	}
	if c.Stream.Enabled && c.Stream.BufferSize <= 0 {
		errs = append(errs, errors.New("stream.buffer_size must be positive"))
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}

	if c.Genesis.Auto {
		if _, _, err := c.Genesis.Params(); err != nil {
			errs = append(errs, err)
		}
	} else if _, err := c.Genesis.OperatorAddress(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// OperatorAddress returns the only caller allowed to run genesis over HTTP.
// An empty operator yields the zero address, which keeps the route closed.
func (g GenesisConfig) OperatorAddress() (domain.Address, error) {
	if g.Operator == "" {
		return domain.ZeroAddress, nil
	}
	addr, err := domain.ParseAddress(g.Operator)
	if err != nil {
		return addr, fmt.Errorf("genesis.operator: %w", err)
	}
	return addr, nil
}

// Params converts the genesis section into engine parameters and the
// operator identity.
func (g GenesisConfig) Params() (settlement.GenesisParams, domain.Address, error) {
	var p settlement.GenesisParams

	operator, err := domain.ParseAddress(g.Operator)
	if err != nil {
		return p, operator, fmt.Errorf("genesis.operator: %w", err)
	}
	supply, err := domain.ParseTokens(g.TotalSupply, g.Decimals)
	if err != nil {
		return p, operator, fmt.Errorf("genesis.total_supply: %w", err)
	}
	broker, err := domain.ParseAddress(g.BrokerWallet)
	if err != nil {
		return p, operator, fmt.Errorf("genesis.broker_wallet: %w", err)
	}
	var brokerPool domain.Address
	if g.BrokerPool != "" {
		if brokerPool, err = domain.ParseAddress(g.BrokerPool); err != nil {
			return p, operator, fmt.Errorf("genesis.broker_pool: %w", err)
		}
	}
	programID, err := domain.ParseAddress(g.ProgramID)
	if err != nil {
		return p, operator, fmt.Errorf("genesis.program_id: %w", err)
	}
	if g.SpreadBps > domain.MaxSpreadBps {
		return p, operator, fmt.Errorf("genesis.spread_bps %d exceeds %d", g.SpreadBps, domain.MaxSpreadBps)
	}

	p = settlement.GenesisParams{
		TokenName:    g.TokenName,
		TokenSymbol:  g.TokenSymbol,
		Decimals:     g.Decimals,
		TotalSupply:  supply,
		SpreadBps:    g.SpreadBps,
		BrokerWallet: broker,
		BrokerPool:   brokerPool,
		ProgramID:    programID,
		Version:      g.Version,
	}
	return p, operator, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// NewLogger builds the root logger described by the log section.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
