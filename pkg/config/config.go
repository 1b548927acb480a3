package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// DefaultPort is used when no explicit port is configured.
const DefaultPort = 3000

// Config represents the REST server configuration. It is assembled once at
// the entry point (file + COMPOSER_* environment variables) and treated as
// immutable for the lifetime of a bootstrap.
type Config struct {
	Connection Connection    `yaml:"connection" envconfig:"CONNECTION"`
	Server     ServerConfig  `yaml:"server" envconfig:"SERVER"`
	Logging    LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
	Auth       AuthConfig    `yaml:"auth" envconfig:"AUTH"`

	// Datasources maps a datasource name to its connector settings. It is
	// populated from the COMPOSER_DATASOURCES environment variable (a JSON
	// object) in addition to any file-configured entries.
	Datasources DatasourceMap `yaml:"datasources" envconfig:"DATASOURCES"`

	// Providers maps a login-provider key to its strategy configuration,
	// populated from COMPOSER_PROVIDERS (a JSON object).
	Providers ProviderMap `yaml:"providers" envconfig:"PROVIDERS"`

	// FS is the filesystem used for TLS certificate and key reads. Tests
	// inject an in-memory filesystem; nil means the OS filesystem.
	FS afero.Fs `yaml:"-" ignored:"true"`
}

// Connection identifies the business network the server fronts.
type Connection struct {
	ConnectionProfileName     string `yaml:"connection_profile_name" envconfig:"CONNECTION_PROFILE_NAME"`
	BusinessNetworkIdentifier string `yaml:"business_network_identifier" envconfig:"BUSINESS_NETWORK_IDENTIFIER"`
	ParticipantID             string `yaml:"participant_id" envconfig:"PARTICIPANT_ID"`
	ParticipantSecret         string `yaml:"participant_secret" envconfig:"PARTICIPANT_SECRET"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host       string `yaml:"host" envconfig:"HOST"`
	Port       int    `yaml:"port" envconfig:"PORT"`
	TLS        bool   `yaml:"tls" envconfig:"TLS"`
	TLSCert    string `yaml:"tlscert" envconfig:"TLSCERT"`
	TLSKey     string `yaml:"tlskey" envconfig:"TLSKEY"`
	Security   bool   `yaml:"security" envconfig:"SECURITY"`
	WebSockets bool   `yaml:"websockets" envconfig:"WEBSOCKETS"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json, text
}

// AuthConfig contains settings shared by all authentication strategies.
type AuthConfig struct {
	// SessionSecret signs the session cookie.
	SessionSecret string `yaml:"session_secret" envconfig:"SESSION_SECRET"`
	// JWTSecret signs access tokens issued by the local strategy.
	JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	// JWTExpiryHours bounds the lifetime of issued access tokens.
	JWTExpiryHours int `yaml:"jwt_expiry_hours" envconfig:"JWT_EXPIRY_HOURS"`
}

// DatasourceConfig holds connector settings for one named datasource.
// Settings are passed through to the connector verbatim.
type DatasourceConfig struct {
	Name      string                 `yaml:"name" json:"name"`
	Connector string                 `yaml:"connector" json:"connector"`
	Settings  map[string]interface{} `yaml:"settings" json:"-"`
}

// UnmarshalJSON keeps unrecognized keys as connector settings, matching the
// flat shape of COMPOSER_DATASOURCES entries.
func (d *DatasourceConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if name, ok := raw["name"].(string); ok {
		d.Name = name
	}
	if connector, ok := raw["connector"].(string); ok {
		d.Connector = connector
	}
	delete(raw, "name")
	delete(raw, "connector")
	d.Settings = raw
	return nil
}

// DatasourceMap decodes from a JSON object so COMPOSER_DATASOURCES can be
// processed by envconfig directly.
type DatasourceMap map[string]DatasourceConfig

// Decode implements envconfig.Decoder.
func (m *DatasourceMap) Decode(value string) error {
	if err := json.Unmarshal([]byte(value), m); err != nil {
		return fmt.Errorf("invalid datasource JSON: %w", err)
	}
	return nil
}

// Load loads configuration from an optional YAML file and the COMPOSER_*
// environment variables. Environment reading happens here and nowhere else;
// the bootstrap only ever sees the resulting Config.
func Load(configFile string) (*Config, error) {
	cfg := defaultConfig()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - defaults and env vars apply.
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Environment variables win over file values.
	if err := envconfig.Process("COMPOSER", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: DefaultPort,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			JWTExpiryHours: 24,
		},
	}
}

// Filesystem returns the filesystem TLS material is read from.
func (c *Config) Filesystem() afero.Fs {
	if c.FS != nil {
		return c.FS
	}
	return afero.NewOsFs()
}

// ResolvedPort returns the explicit port when set, the default otherwise.
func (c *Config) ResolvedPort() int {
	if c.Server.Port > 0 {
		return c.Server.Port
	}
	return DefaultPort
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Connection.BusinessNetworkIdentifier == "" {
		return fmt.Errorf("business network identifier is required")
	}

	if c.Server.TLS {
		if c.Server.TLSCert == "" {
			return fmt.Errorf("tlscert is required when tls is enabled")
		}
		if c.Server.TLSKey == "" {
			return fmt.Errorf("tlskey is required when tls is enabled")
		}
	}

	for name, ds := range c.Datasources {
		if ds.Connector == "" {
			return fmt.Errorf("datasource %q has no connector", name)
		}
	}

	for _, key := range c.Providers.Keys() {
		p, _ := c.Providers.Get(key)
		if p.AuthPath == "" || p.CallbackURL == "" {
			return fmt.Errorf("provider %q needs authPath and callbackURL", key)
		}
		if p.ClientID == "" || p.ClientSecret == "" {
			return fmt.Errorf("provider %q needs client credentials", key)
		}
	}

	return nil
}
