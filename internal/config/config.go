package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all configuration for the application
type Config struct {
	Environment string          `mapstructure:"environment" yaml:"environment"`
	Server      ServerConfig    `mapstructure:"server" yaml:"server"`
	Solana      SolanaConfig    `mapstructure:"solana" yaml:"solana"`
	Treasury    TreasuryConfig  `mapstructure:"treasury" yaml:"treasury"`
	Fees        FeeConfig       `mapstructure:"fees" yaml:"fees"`
	Supply      SupplyConfig    `mapstructure:"supply" yaml:"supply"`
	Database    DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Uploader    UploaderConfig  `mapstructure:"uploader" yaml:"uploader"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Reconcile   ReconcileConfig `mapstructure:"reconcile" yaml:"reconcile"`
	Metrics     MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Log         LogConfig       `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// SolanaConfig holds Solana-specific configuration
type SolanaConfig struct {
	RPC        string `mapstructure:"rpc" yaml:"rpc"`
	WS         string `mapstructure:"ws" yaml:"ws"`
	Network    string `mapstructure:"network" yaml:"network"`
	Timeout    int    `mapstructure:"timeout" yaml:"timeout"` // in seconds
	Commitment string `mapstructure:"commitment" yaml:"commitment"`
}

// TreasuryConfig tells the service where to find the treasury keypair.
// Sources are tried in order: secret_key, keypair_file, secret_manager.
type TreasuryConfig struct {
	SecretKey     string              `mapstructure:"secret_key" yaml:"secret_key"` // base58
	KeypairFile   string              `mapstructure:"keypair_file" yaml:"keypair_file"`
	PublicKey     string              `mapstructure:"public_key" yaml:"public_key"`
	SecretManager SecretManagerConfig `mapstructure:"secret_manager" yaml:"secret_manager"`
}

// SecretManagerConfig points at a GCP Secret Manager secret version.
type SecretManagerConfig struct {
	Project string `mapstructure:"project" yaml:"project"`
	Secret  string `mapstructure:"secret" yaml:"secret"`
	Version string `mapstructure:"version" yaml:"version"`
}

// Enabled reports whether a secret is configured.
func (c SecretManagerConfig) Enabled() bool {
	return c.Project != "" && c.Secret != ""
}

// ResourceName returns the full secret version resource name.
func (c SecretManagerConfig) ResourceName() string {
	version := c.Version
	if version == "" {
		version = "latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", c.Project, c.Secret, version)
}

// FeeConfig holds the service fee schedule, in SOL.
type FeeConfig struct {
	Base         string `mapstructure:"base" yaml:"base"`
	RevokeMint   string `mapstructure:"revoke_mint" yaml:"revoke_mint"`
	RevokeFreeze string `mapstructure:"revoke_freeze" yaml:"revoke_freeze"`
	RevokeUpdate string `mapstructure:"revoke_update" yaml:"revoke_update"`
}

// Supply scale modes.
const (
	ScaleModeFixed    = "fixed"
	ScaleModeDecimals = "decimals"
)

// SupplyConfig holds phase-two minting configuration
type SupplyConfig struct {
	ScaleMode string `mapstructure:"scale_mode" yaml:"scale_mode"`
}

// Database types.
const (
	DatabaseMemory   = "memory"
	DatabaseMongoDB  = "mongodb"
	DatabasePostgres = "postgres"
	DatabaseMySQL    = "mysql"
)

// DatabaseConfig selects and configures the record store.
type DatabaseConfig struct {
	Type     string         `mapstructure:"type" yaml:"type"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb" yaml:"mongodb"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	MySQL    MySQLConfig    `mapstructure:"mysql" yaml:"mysql"`
}

// MongoDBConfig holds MongoDB connection settings.
type MongoDBConfig struct {
	URI            string `mapstructure:"uri" yaml:"uri"`
	Database       string `mapstructure:"database" yaml:"database"`
	MaxPoolSize    uint64 `mapstructure:"max_pool_size" yaml:"max_pool_size"`
	MinPoolSize    uint64 `mapstructure:"min_pool_size" yaml:"min_pool_size"`
	ConnectTimeout int    `mapstructure:"connect_timeout" yaml:"connect_timeout"` // in seconds
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	User            string `mapstructure:"user" yaml:"user"`
	Password        string `mapstructure:"password" yaml:"password"`
	Database        string `mapstructure:"database" yaml:"database"`
	SSLMode         string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"` // in seconds
}

// DSN returns the connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host            string `mapstructure:"host" yaml:"host"`
	Port            int    `mapstructure:"port" yaml:"port"`
	User            string `mapstructure:"user" yaml:"user"`
	Password        string `mapstructure:"password" yaml:"password"`
	Database        string `mapstructure:"database" yaml:"database"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"` // in seconds
}

// DSN returns the driver data source name.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Uploader types.
const (
	UploaderMemory = "memory"
	UploaderGCS    = "gcs"
)

// UploaderConfig selects the metadata content store.
type UploaderConfig struct {
	Type          string `mapstructure:"type" yaml:"type"`
	Bucket        string `mapstructure:"bucket" yaml:"bucket"`
	Prefix        string `mapstructure:"prefix" yaml:"prefix"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url"`
	MaxLogoBytes  int    `mapstructure:"max_logo_bytes" yaml:"max_logo_bytes"`
	LogoMaxSide   int    `mapstructure:"logo_max_side" yaml:"logo_max_side"`
	// SourceMaxSide bounds the edge of a logo accepted for resizing.
	SourceMaxSide int    `mapstructure:"source_max_side" yaml:"source_max_side"`
}

// RateLimitConfig holds the per-client request limiter settings.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" yaml:"burst"`
}

// ReconcileConfig holds the lifecycle reconciler schedule.
type ReconcileConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	Schedule     string        `mapstructure:"schedule" yaml:"schedule"`
	AbandonAfter time.Duration `mapstructure:"abandon_after" yaml:"abandon_after"`
	StuckAfter   time.Duration `mapstructure:"stuck_after" yaml:"stuck_after"`
	BatchSize    int           `mapstructure:"batch_size" yaml:"batch_size"`
}

// MetricsConfig selects the metrics backends.
type MetricsConfig struct {
	// Backend is a comma separated list of prometheus, log or none.
	Backend   string `mapstructure:"backend" yaml:"backend"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// Backends returns the configured backends in order, without "none" and
// duplicates.
func (c MetricsConfig) Backends() []string {
	var out []string
	seen := make(map[string]bool)
	for _, b := range strings.Split(c.Backend, ",") {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" || b == "none" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json or text
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			MaxBodyBytes:    8 << 20,
		},
		Solana: SolanaConfig{
			RPC:        "https://api.devnet.solana.com",
			Network:    "devnet",
			Timeout:    30,
			Commitment: "confirmed",
		},
		Fees: FeeConfig{
			Base:         "0.1",
			RevokeMint:   "0.05",
			RevokeFreeze: "0.05",
			RevokeUpdate: "0.05",
		},
		Supply: SupplyConfig{
			ScaleMode: ScaleModeFixed,
		},
		Database: DatabaseConfig{
			Type: DatabaseMemory,
			MongoDB: MongoDBConfig{
				URI:            "mongodb://localhost:27017",
				Database:       "swapforge",
				MaxPoolSize:    50,
				MinPoolSize:    5,
				ConnectTimeout: 10,
			},
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				User:            "postgres",
				Database:        "swapforge",
				SSLMode:         "disable",
				MaxOpenConns:    20,
				MaxIdleConns:    5,
				ConnMaxLifetime: 3600,
			},
			MySQL: MySQLConfig{
				Host:            "localhost",
				Port:            3306,
				User:            "root",
				Database:        "swapforge",
				MaxOpenConns:    20,
				MaxIdleConns:    5,
				ConnMaxLifetime: 3600,
			},
		},
		Uploader: UploaderConfig{
			Type:          UploaderMemory,
			Prefix:        "tokens",
			MaxLogoBytes:  5 << 20,
			LogoMaxSide:   512,
			SourceMaxSide: 4096,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Reconcile: ReconcileConfig{
			Enabled:      true,
			Schedule:     "@every 1m",
			AbandonAfter: 5 * time.Minute,
			StuckAfter:   10 * time.Minute,
			BatchSize:    100,
		},
		Metrics: MetricsConfig{
			Backend:   "prometheus",
			Namespace: "swapforge",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file and environment using the global viper
// instance, so that flags bound by the CLI take effect.
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.GetViper(), configPath)
}

// LoadWith loads configuration into the given viper instance.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".swapforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables
	v.SetEnvPrefix("SWAPFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key with viper so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("environment", cfg.Environment)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.max_body_bytes", cfg.Server.MaxBodyBytes)

	v.SetDefault("solana.rpc", cfg.Solana.RPC)
	v.SetDefault("solana.ws", cfg.Solana.WS)
	v.SetDefault("solana.network", cfg.Solana.Network)
	v.SetDefault("solana.timeout", cfg.Solana.Timeout)
	v.SetDefault("solana.commitment", cfg.Solana.Commitment)

	v.SetDefault("treasury.secret_key", "")
	v.SetDefault("treasury.keypair_file", "")
	v.SetDefault("treasury.public_key", "")
	v.SetDefault("treasury.secret_manager.project", "")
	v.SetDefault("treasury.secret_manager.secret", "")
	v.SetDefault("treasury.secret_manager.version", "")

	v.SetDefault("fees.base", cfg.Fees.Base)
	v.SetDefault("fees.revoke_mint", cfg.Fees.RevokeMint)
	v.SetDefault("fees.revoke_freeze", cfg.Fees.RevokeFreeze)
	v.SetDefault("fees.revoke_update", cfg.Fees.RevokeUpdate)

	v.SetDefault("supply.scale_mode", cfg.Supply.ScaleMode)

	v.SetDefault("database.type", cfg.Database.Type)
	v.SetDefault("database.mongodb.uri", cfg.Database.MongoDB.URI)
	v.SetDefault("database.mongodb.database", cfg.Database.MongoDB.Database)
	v.SetDefault("database.mongodb.max_pool_size", cfg.Database.MongoDB.MaxPoolSize)
	v.SetDefault("database.mongodb.min_pool_size", cfg.Database.MongoDB.MinPoolSize)
	v.SetDefault("database.mongodb.connect_timeout", cfg.Database.MongoDB.ConnectTimeout)
	v.SetDefault("database.postgres.host", cfg.Database.Postgres.Host)
	v.SetDefault("database.postgres.port", cfg.Database.Postgres.Port)
	v.SetDefault("database.postgres.user", cfg.Database.Postgres.User)
	v.SetDefault("database.postgres.password", cfg.Database.Postgres.Password)
	v.SetDefault("database.postgres.database", cfg.Database.Postgres.Database)
	v.SetDefault("database.postgres.ssl_mode", cfg.Database.Postgres.SSLMode)
	v.SetDefault("database.postgres.max_open_conns", cfg.Database.Postgres.MaxOpenConns)
	v.SetDefault("database.postgres.max_idle_conns", cfg.Database.Postgres.MaxIdleConns)
	v.SetDefault("database.postgres.conn_max_lifetime", cfg.Database.Postgres.ConnMaxLifetime)
	v.SetDefault("database.mysql.host", cfg.Database.MySQL.Host)
	v.SetDefault("database.mysql.port", cfg.Database.MySQL.Port)
	v.SetDefault("database.mysql.user", cfg.Database.MySQL.User)
	v.SetDefault("database.mysql.password", cfg.Database.MySQL.Password)
	v.SetDefault("database.mysql.database", cfg.Database.MySQL.Database)
	v.SetDefault("database.mysql.max_open_conns", cfg.Database.MySQL.MaxOpenConns)
	v.SetDefault("database.mysql.max_idle_conns", cfg.Database.MySQL.MaxIdleConns)
	v.SetDefault("database.mysql.conn_max_lifetime", cfg.Database.MySQL.ConnMaxLifetime)

	v.SetDefault("uploader.type", cfg.Uploader.Type)
	v.SetDefault("uploader.bucket", cfg.Uploader.Bucket)
	v.SetDefault("uploader.prefix", cfg.Uploader.Prefix)
	v.SetDefault("uploader.public_base_url", cfg.Uploader.PublicBaseURL)
	v.SetDefault("uploader.max_logo_bytes", cfg.Uploader.MaxLogoBytes)
	v.SetDefault("uploader.logo_max_side", cfg.Uploader.LogoMaxSide)
	v.SetDefault("uploader.source_max_side", cfg.Uploader.SourceMaxSide)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.requests_per_second", cfg.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)

	v.SetDefault("reconcile.enabled", cfg.Reconcile.Enabled)
	v.SetDefault("reconcile.schedule", cfg.Reconcile.Schedule)
	v.SetDefault("reconcile.abandon_after", cfg.Reconcile.AbandonAfter)
	v.SetDefault("reconcile.stuck_after", cfg.Reconcile.StuckAfter)
	v.SetDefault("reconcile.batch_size", cfg.Reconcile.BatchSize)

	v.SetDefault("metrics.backend", cfg.Metrics.Backend)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// IsProduction reports whether fees are charged and balances checked.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate checks the configuration for values the services cannot run with.
// The treasury is not checked here: a missing keypair is reported per request.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("invalid environment %q", c.Environment)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	for name, value := range map[string]string{
		"fees.base":          c.Fees.Base,
		"fees.revoke_mint":   c.Fees.RevokeMint,
		"fees.revoke_freeze": c.Fees.RevokeFreeze,
		"fees.revoke_update": c.Fees.RevokeUpdate,
	} {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	switch c.Supply.ScaleMode {
	case ScaleModeFixed, ScaleModeDecimals:
	default:
		return fmt.Errorf("invalid supply.scale_mode %q", c.Supply.ScaleMode)
	}

	switch c.Database.Type {
	case DatabaseMemory, DatabaseMongoDB, DatabasePostgres, DatabaseMySQL:
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	switch c.Uploader.Type {
	case UploaderMemory:
	case UploaderGCS:
		if c.Uploader.Bucket == "" {
			return fmt.Errorf("uploader.bucket is required for gcs")
		}
	default:
		return fmt.Errorf("unsupported uploader type: %s", c.Uploader.Type)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate_limit requires positive requests_per_second and burst")
	}

	for _, b := range c.Metrics.Backends() {
		switch b {
		case "prometheus", "log":
		default:
			return fmt.Errorf("unsupported metrics backend: %s", b)
		}
	}

	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Treasury.SecretKey = mask(c.Treasury.SecretKey)
	out.Database.MongoDB.URI = mask(c.Database.MongoDB.URI)
	out.Database.Postgres.Password = mask(c.Database.Postgres.Password)
	out.Database.MySQL.Password = mask(c.Database.MySQL.Password)
	return &out
}

// GetRPCEndpoint returns the RPC endpoint for the configured network
func (c *SolanaConfig) GetRPCEndpoint() string {
	if c.RPC != "" {
		return c.RPC
	}

	switch c.Network {
	case "mainnet", "mainnet-beta":
		return "https://api.mainnet-beta.solana.com"
	case "testnet":
		return "https://api.testnet.solana.com"
	case "localnet", "localhost":
		return "http://localhost:8899"
	default:
		return "https://api.devnet.solana.com"
	}
}

// GetWSEndpoint returns the websocket endpoint, derived from the RPC endpoint
// when not set explicitly.
func (c *SolanaConfig) GetWSEndpoint() string {
	if c.WS != "" {
		return c.WS
	}

	rpcURL := c.GetRPCEndpoint()
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		ws := "ws://" + strings.TrimPrefix(rpcURL, "http://")
		// solana-test-validator serves websockets on rpc port + 1
		return strings.Replace(ws, ":8899", ":8900", 1)
	default:
		return rpcURL
	}
}

// RequestTimeout returns the RPC timeout as a duration.
func (c *SolanaConfig) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}
