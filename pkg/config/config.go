package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the optimizer application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Chains   ChainsConfig   `mapstructure:"chains"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Gas      GasConfig      `mapstructure:"gas"`
	Cost     CostConfig     `mapstructure:"cost"`
	Swap     SwapConfig     `mapstructure:"swap"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Shutdown ShutdownConfig `mapstructure:"shutdown"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig contains database connection settings for the archive
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// AuthConfig contains API token settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// ChainsConfig points at the chain registry file and names the home chain
type ChainsConfig struct {
	RegistryFile string `mapstructure:"registry_file"`
	HomeChainID  uint64 `mapstructure:"home_chain_id"`
}

// FeedConfig describes one price feed: either an HTTP endpoint or a pinned
// static price (stablecoins quoted at par).
type FeedConfig struct {
	ChainID     uint64        `mapstructure:"chain_id"`
	Token       string        `mapstructure:"token"`
	URL         string        `mapstructure:"url"`
	StaticPrice string        `mapstructure:"static_price"`
	Heartbeat   time.Duration `mapstructure:"heartbeat"`
}

// OracleConfig contains price feed settings
type OracleConfig struct {
	DefaultHeartbeat time.Duration `mapstructure:"default_heartbeat"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	NativeFeeds      []FeedConfig  `mapstructure:"native_feeds"`
	TokenFeeds       []FeedConfig  `mapstructure:"token_feeds"`
}

// GasConfig contains gas price tracker settings
type GasConfig struct {
	// StalenessThreshold is how old a gas price record may be before the
	// chain is considered unreliable for quoting.
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	// MaxGasPrice is the sanity upper bound (native gas units) catching
	// obviously malformed keeper input.
	MaxGasPrice uint64 `mapstructure:"max_gas_price"`
	// SameChainEstimate is the gas usage estimate for a local swap.
	SameChainEstimate uint64 `mapstructure:"same_chain_estimate"`
	// CrossChainSourceEstimate covers the source-chain bridge leg.
	CrossChainSourceEstimate uint64 `mapstructure:"cross_chain_source_estimate"`
	// CrossChainDestEstimate covers destination execution plus return leg.
	CrossChainDestEstimate uint64 `mapstructure:"cross_chain_dest_estimate"`
}

// CostConfig contains the initial cost parameters and their admissible
// bounds. Bounds are deployment configuration, not hard-coded constants.
type CostConfig struct {
	BaseBridgeFeeUSD    string `mapstructure:"base_bridge_fee_usd"`
	BridgeFeeBps        int64  `mapstructure:"bridge_fee_bps"`
	MaxSlippageBps      int64  `mapstructure:"max_slippage_bps"`
	MEVProtectionFeeBps int64  `mapstructure:"mev_protection_fee_bps"`
	GasMultiplierBps    int64  `mapstructure:"gas_multiplier_bps"`

	MaxBaseBridgeFeeUSD string `mapstructure:"max_base_bridge_fee_usd"`
	MaxBridgeFeeBps     int64  `mapstructure:"max_bridge_fee_bps"`
	MaxSlippageBpsLimit int64  `mapstructure:"max_slippage_bps_limit"`
	MaxMEVFeeBps        int64  `mapstructure:"max_mev_fee_bps"`
	GasMultiplierMinBps int64  `mapstructure:"gas_multiplier_min_bps"`
	GasMultiplierMaxBps int64  `mapstructure:"gas_multiplier_max_bps"`
}

// SwapConfig contains orchestrator settings and per-user preference defaults
type SwapConfig struct {
	// RecoveryTimeout gates emergencyRecovery: last resort, not a cancel path.
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout"`

	DefaultMinSavingsBps    int64         `mapstructure:"default_min_savings_bps"`
	DefaultMinAbsoluteUSD   string        `mapstructure:"default_min_absolute_usd"`
	DefaultMaxBridgeTime    time.Duration `mapstructure:"default_max_bridge_time"`
	DefaultEnableCrossChain bool          `mapstructure:"default_enable_cross_chain"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ShutdownConfig contains graceful shutdown settings
type ShutdownConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "swap_archive")

	// Oracle defaults
	viper.SetDefault("oracle.default_heartbeat", "1h")
	viper.SetDefault("oracle.request_timeout", "10s")

	// Gas defaults
	viper.SetDefault("gas.staleness_threshold", "1h")
	viper.SetDefault("gas.max_gas_price", uint64(10_000_000_000_000)) // 10,000 gwei
	viper.SetDefault("gas.same_chain_estimate", uint64(150_000))
	viper.SetDefault("gas.cross_chain_source_estimate", uint64(250_000))
	viper.SetDefault("gas.cross_chain_dest_estimate", uint64(400_000))

	// Cost parameter defaults and bounds
	viper.SetDefault("cost.base_bridge_fee_usd", "2.00")
	viper.SetDefault("cost.bridge_fee_bps", 30)
	viper.SetDefault("cost.max_slippage_bps", 50)
	viper.SetDefault("cost.mev_protection_fee_bps", 10)
	viper.SetDefault("cost.gas_multiplier_bps", 12000) // 1.2x safety
	viper.SetDefault("cost.max_base_bridge_fee_usd", "100.00")
	viper.SetDefault("cost.max_bridge_fee_bps", 1000) // 10%
	viper.SetDefault("cost.max_slippage_bps_limit", 1000)
	viper.SetDefault("cost.max_mev_fee_bps", 500)
	viper.SetDefault("cost.gas_multiplier_min_bps", 10000) // 1.0x
	viper.SetDefault("cost.gas_multiplier_max_bps", 30000) // 3.0x

	// Swap defaults
	viper.SetDefault("swap.recovery_timeout", "1h")
	viper.SetDefault("swap.default_min_savings_bps", 500)
	viper.SetDefault("swap.default_min_absolute_usd", "10.00")
	viper.SetDefault("swap.default_max_bridge_time", "30m")
	viper.SetDefault("swap.default_enable_cross_chain", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")

	// Shutdown defaults
	viper.SetDefault("shutdown.timeout", "30s")
}

func validate(config *Config) error {
	if config.Chains.RegistryFile == "" {
		return fmt.Errorf("chains.registry_file is required")
	}
	if config.Chains.HomeChainID == 0 {
		return fmt.Errorf("chains.home_chain_id is required")
	}
	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if config.Gas.MaxGasPrice == 0 {
		return fmt.Errorf("gas.max_gas_price must be positive")
	}
	if config.Swap.RecoveryTimeout <= 0 {
		return fmt.Errorf("swap.recovery_timeout must be positive")
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when the archive is enabled")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
