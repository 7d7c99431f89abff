package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for boxsync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ProviderConfig contains the operator account and HTTP service endpoints.
type ProviderConfig struct {
	// Country selects the default endpoint set (see countryEndpoints).
	Country  string `yaml:"country"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// APIURL is the base URL of the session, token, channel and listings services.
	// Empty means the country default.
	APIURL string `yaml:"api_url"`

	// PersonalizationURL is the set-top box enumeration endpoint.
	// The literal "{household_id}" is replaced with the session household.
	PersonalizationURL string `yaml:"personalization_url"`

	// RequestTimeout bounds every HTTP call (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// LookupTimeout bounds a single title/image lookup made while
	// reconciling a status message (seconds).
	LookupTimeout int `yaml:"lookup_timeout"`
}

// MQTTConfig contains message broker connection settings.
// Credentials are not configured here; they come from the session service.
type MQTTConfig struct {
	Broker         MQTTBrokerConfig    `yaml:"broker"`
	QoS            int                 `yaml:"qos"`
	ConnectTimeout int                 `yaml:"connect_timeout"`
	Reconnect      MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains broker connection details.
type MQTTBrokerConfig struct {
	// URL is the full broker URL, e.g. "wss://host:443/mqtt".
	// Empty means the country default.
	URL string `yaml:"url"`

	// ClientID is optional; a random 30 character ID is generated when empty.
	ClientID string `yaml:"client_id"`
}

// MQTTReconnectConfig contains the supervisor's reconnection settings.
// The engine itself never reconnects; cmd/boxsync does.
type MQTTReconnectConfig struct {
	Enabled      bool `yaml:"enabled"`
	InitialDelay int  `yaml:"initial_delay"`
	MaxDelay     int  `yaml:"max_delay"`
}

// CatalogConfig contains channel catalog settings.
type CatalogConfig struct {
	// RefreshSchedule is a cron expression (or @every descriptor).
	// Empty disables periodic refresh.
	RefreshSchedule string `yaml:"refresh_schedule"`

	// ExtraChannels are appended to every fetched catalog.
	ExtraChannels []ExtraChannelConfig `yaml:"extra_channels"`
}

// ExtraChannelConfig describes a channel that the catalog service does not list,
// such as an app the box can switch to.
type ExtraChannelConfig struct {
	ServiceID     string `yaml:"service_id"`
	Title         string `yaml:"title"`
	ChannelNumber string `yaml:"channel_number"`
}

// APIConfig contains HTTP control API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings for engine telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// countryEndpoint holds the operator endpoints for one country.
type countryEndpoint struct {
	APIURL             string
	BrokerURL          string
	PersonalizationURL string
}

// countryEndpoints are the known operator endpoint sets.
var countryEndpoints = map[string]countryEndpoint{
	"nl": {
		APIURL:             "https://web-api-prod-obo.horizon.tv/oesp/v3/NL/nld/web",
		BrokerURL:          "wss://obomsg.prod.nl.horizon.tv:443/mqtt",
		PersonalizationURL: "https://prod.spark.ziggogo.tv/nld/web/personalization-service/v1/customer/{household_id}/devices",
	},
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Country endpoint defaults for any endpoint still empty
//
// Environment variables follow the pattern: BOXSYNC_SECTION_KEY
// For example: BOXSYNC_PROVIDER_USERNAME, BOXSYNC_MQTT_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyCountryDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Country:        "nl",
			RequestTimeout: 10,
			LookupTimeout:  5,
		},
		MQTT: MQTTConfig{
			QoS:            0,
			ConnectTimeout: 10,
			Reconnect: MQTTReconnectConfig{
				Enabled:      true,
				InitialDelay: 5,
				MaxDelay:     300,
			},
		},
		Catalog: CatalogConfig{
			RefreshSchedule: "@every 6h",
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BOXSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Provider - credentials should always come from the environment
	if v := os.Getenv("BOXSYNC_PROVIDER_COUNTRY"); v != "" {
		cfg.Provider.Country = v
	}
	if v := os.Getenv("BOXSYNC_PROVIDER_USERNAME"); v != "" {
		cfg.Provider.Username = v
	}
	if v := os.Getenv("BOXSYNC_PROVIDER_PASSWORD"); v != "" {
		cfg.Provider.Password = v
	}
	if v := os.Getenv("BOXSYNC_PROVIDER_API_URL"); v != "" {
		cfg.Provider.APIURL = v
	}

	// MQTT
	if v := os.Getenv("BOXSYNC_MQTT_URL"); v != "" {
		cfg.MQTT.Broker.URL = v
	}

	// API
	if v := os.Getenv("BOXSYNC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("BOXSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyCountryDefaults fills empty endpoints from the selected country.
func applyCountryDefaults(cfg *Config) {
	ep, ok := countryEndpoints[strings.ToLower(cfg.Provider.Country)]
	if !ok {
		return
	}
	if cfg.Provider.APIURL == "" {
		cfg.Provider.APIURL = ep.APIURL
	}
	if cfg.Provider.PersonalizationURL == "" {
		cfg.Provider.PersonalizationURL = ep.PersonalizationURL
	}
	if cfg.MQTT.Broker.URL == "" {
		cfg.MQTT.Broker.URL = ep.BrokerURL
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Provider.Username == "" {
		errs = append(errs, "provider.username is required (set BOXSYNC_PROVIDER_USERNAME)")
	}
	if c.Provider.Password == "" {
		errs = append(errs, "provider.password is required (set BOXSYNC_PROVIDER_PASSWORD)")
	}
	if c.Provider.APIURL == "" {
		errs = append(errs, fmt.Sprintf("provider.api_url is required for country %q", c.Provider.Country))
	}
	if c.Provider.LookupTimeout <= 0 {
		errs = append(errs, "provider.lookup_timeout must be positive")
	}

	if c.MQTT.Broker.URL == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker.url is required for country %q", c.Provider.Country))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	for i, ch := range c.Catalog.ExtraChannels {
		if ch.ServiceID == "" || ch.Title == "" {
			errs = append(errs, fmt.Sprintf("catalog.extra_channels[%d] needs service_id and title", i))
		}
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetRequestTimeout returns the provider HTTP timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Provider.RequestTimeout) * time.Second
}

// GetLookupTimeout returns the per-lookup timeout as a Duration.
func (c *Config) GetLookupTimeout() time.Duration {
	return time.Duration(c.Provider.LookupTimeout) * time.Second
}

// GetConnectTimeout returns the broker connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.MQTT.ConnectTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
