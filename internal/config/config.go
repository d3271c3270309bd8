// Package config provides configuration management for the trading agent.
package config

import (
	"fmt"
	"net/mail"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Defaults that Normalize applies when the corresponding config value is
// zero or absent; a non-zero config value overrides them.
const (
	defaultMinNetCredit = 4.60
	defaultSlippage     = 0.10
	defaultRiskPct      = 0.03
	defaultMinContracts = 1
	defaultMaxContracts = 50
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Broker      BrokerConfig      `yaml:"broker"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Risk        RiskConfig        `yaml:"risk"`
	Storage     StorageConfig     `yaml:"storage"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore"`
	Notify      NotifyConfig      `yaml:"notify"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	DryRun            bool   `yaml:"dry_run"`
	EnableLiveTrading bool   `yaml:"enable_live_trading"`
	LogLevel          string `yaml:"log_level"` // debug | info | warn | error

	// dryRunSet tracks whether dry_run was present in the decoded YAML, so
	// Normalize can distinguish "absent" from "explicitly false" on a field
	// whose zero value is also its insecure setting.
	dryRunSet bool
}

// UnmarshalYAML decodes DryRun through a *bool so Normalize can tell an
// absent dry_run key from one explicitly set to false.
func (e *EnvironmentConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("environment: expected a mapping")
	}
	allowed := map[string]bool{"dry_run": true, "enable_live_trading": true, "log_level": true}
	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if !allowed[key] {
			return fmt.Errorf("environment: unknown field %q", key)
		}
	}

	var raw struct {
		DryRun            *bool  `yaml:"dry_run"`
		EnableLiveTrading bool   `yaml:"enable_live_trading"`
		LogLevel          string `yaml:"log_level"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	e.EnableLiveTrading = raw.EnableLiveTrading
	e.LogLevel = raw.LogLevel
	if raw.DryRun != nil {
		e.DryRun = *raw.DryRun
		e.dryRunSet = true
	}
	return nil
}

// BrokerConfig defines brokerage API and OAuth2 settings.
type BrokerConfig struct {
	Provider     string `yaml:"provider"`
	BaseURL      string `yaml:"base_url"`
	AccountID    string `yaml:"account_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
}

// StrategyConfig defines the 0DTE credit-spread strategy constants.
type StrategyConfig struct {
	Underlying     string  `yaml:"underlying"`      // e.g. "SPX"
	MinNetCredit   float64 `yaml:"min_net_credit"`  // MIN_NET_CREDIT, default 4.60
	SlippageBuffer float64 `yaml:"slippage_buffer"` // SLIPPAGE_BUFFER, default 0.10
}

// RiskConfig defines daily risk budgeting and contract bounds.
type RiskConfig struct {
	DailyRiskPct float64 `yaml:"daily_risk_pct"` // DAILY_RISK_PCT, default 0.03
	MinContracts int     `yaml:"min_contracts"`  // MIN_CONTRACTS, default 1
	MaxContracts int     `yaml:"max_contracts"`  // MAX_CONTRACTS, default 50
}

// ScheduleConfig defines the exchange time zone the Clock operates in.
// Trading-day milestones (09:30/10:00/12:00/16:00) are strategy constants,
// not configuration (spec §6), so only the zone itself is here.
type ScheduleConfig struct {
	Timezone string `yaml:"timezone"` // e.g. "America/New_York"
}

// StorageConfig defines storage settings for the day's TradeRecord.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ObjectStoreConfig defines the S3-compatible config/token/artifact store.
type ObjectStoreConfig struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
}

// NotifyConfig defines SMTP end-of-day report delivery.
type NotifyConfig struct {
	SMTPHost  string `yaml:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port"`
	From      string `yaml:"from"`
	Recipient string `yaml:"recipient"`
}

// DashboardConfig defines web dashboard settings.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// MetricsConfig defines the prometheus metrics route.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads and parses the configuration file from the specified path.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", configPath, err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", configPath, err)
	}

	config.Normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Location returns the configured time zone or the NY fallback.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Schedule.Timezone
	if strings.TrimSpace(tz) == "" {
		tz = "America/New_York"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	return loc, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Environment.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("environment.log_level must be one of: debug, info, warn, error")
	}

	if strings.TrimSpace(c.Broker.Provider) == "" {
		return fmt.Errorf("broker.provider is required")
	}
	if strings.TrimSpace(c.Broker.BaseURL) == "" {
		return fmt.Errorf("broker.base_url is required")
	}
	if strings.TrimSpace(c.Broker.AccountID) == "" {
		return fmt.Errorf("broker.account_id is required")
	}
	if strings.TrimSpace(c.Broker.ClientID) == "" {
		return fmt.Errorf("broker.client_id is required")
	}
	if strings.TrimSpace(c.Broker.ClientSecret) == "" {
		return fmt.Errorf("broker.client_secret is required")
	}
	if strings.TrimSpace(c.Broker.TokenURL) == "" {
		return fmt.Errorf("broker.token_url is required")
	}

	if strings.TrimSpace(c.Strategy.Underlying) == "" {
		return fmt.Errorf("strategy.underlying is required")
	}
	if c.Strategy.MinNetCredit <= 0 {
		return fmt.Errorf("strategy.min_net_credit must be > 0")
	}
	if c.Strategy.SlippageBuffer < 0 {
		return fmt.Errorf("strategy.slippage_buffer must be >= 0")
	}

	if c.Risk.DailyRiskPct <= 0 || c.Risk.DailyRiskPct > 1.0 {
		return fmt.Errorf("risk.daily_risk_pct must be in (0,1]")
	}
	if c.Risk.MinContracts <= 0 {
		return fmt.Errorf("risk.min_contracts must be > 0")
	}
	if c.Risk.MaxContracts < c.Risk.MinContracts {
		return fmt.Errorf("risk.max_contracts (%d) must be >= risk.min_contracts (%d)",
			c.Risk.MaxContracts, c.Risk.MinContracts)
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("timezone resolution failed: %w", err)
	}

	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}

	if strings.TrimSpace(c.ObjectStore.Bucket) == "" {
		return fmt.Errorf("objectstore.bucket is required")
	}

	if strings.TrimSpace(c.Notify.Recipient) == "" {
		return fmt.Errorf("notify.recipient is required")
	}
	if _, err := mail.ParseAddress(c.Notify.Recipient); err != nil {
		return fmt.Errorf("notify.recipient is not a valid address: %w", err)
	}
	if strings.TrimSpace(c.Notify.SMTPHost) == "" {
		return fmt.Errorf("notify.smtp_host is required")
	}
	if c.Notify.SMTPPort <= 0 || c.Notify.SMTPPort > 65535 {
		return fmt.Errorf("notify.smtp_port must be between 1 and 65535")
	}

	if c.Dashboard.Enabled {
		if c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535 {
			return fmt.Errorf("dashboard.port must be between 1 and 65535")
		}
	}

	return nil
}

// Normalize sets default values for configuration fields. DryRun defaults
// true when the config file does not set it, and EnableLiveTrading stays
// false unless set, since a zero-valued Config must never resolve to live
// trading (spec §7 SafetyGate): a config file that sets neither key gets
// the safe default; an explicit value in the file is kept.
func (c *Config) Normalize() {
	if !c.Environment.dryRunSet {
		c.Environment.DryRun = true
	}
	if strings.TrimSpace(c.Environment.LogLevel) == "" {
		c.Environment.LogLevel = "info"
	}
	if c.Strategy.MinNetCredit == 0 {
		c.Strategy.MinNetCredit = defaultMinNetCredit
	}
	if c.Strategy.SlippageBuffer == 0 {
		c.Strategy.SlippageBuffer = defaultSlippage
	}
	if c.Risk.DailyRiskPct == 0 {
		c.Risk.DailyRiskPct = defaultRiskPct
	}
	if c.Risk.MinContracts == 0 {
		c.Risk.MinContracts = defaultMinContracts
	}
	if c.Risk.MaxContracts == 0 {
		c.Risk.MaxContracts = defaultMaxContracts
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 9847
	}
	if c.Notify.SMTPPort == 0 {
		c.Notify.SMTPPort = 587
	}
}
