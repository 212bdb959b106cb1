package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tejusbharadwaj/elecview/internal/api"
	"github.com/tejusbharadwaj/elecview/internal/models"
)

// EnvPrefix prefixes environment overrides: ELECVIEW_MARKET_API_KEY sets
// market.api_key.
const EnvPrefix = "ELECVIEW"

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Market    MarketConfig     `mapstructure:"market"`
	Weather   WeatherConfig    `mapstructure:"weather"`
	Zones     ZonesConfig      `mapstructure:"zones"`
	Queries   QueriesConfig    `mapstructure:"queries"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
	Cache     CacheConfig      `mapstructure:"cache"`
	Countries []models.Country `mapstructure:"countries"`
}

type ServerConfig struct {
	Port        int     `mapstructure:"port"`
	Host        string  `mapstructure:"host"`
	MetricsPort int     `mapstructure:"metrics_port"`
	RateLimit   float64 `mapstructure:"rate_limit"`
	RateBurst   int     `mapstructure:"rate_burst"`
	// Timezone is the calendar charts are bucketed in.
	Timezone string `mapstructure:"timezone"`
}

type MarketConfig struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	Pairing   string        `mapstructure:"pairing"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type WeatherConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ArchiveURL  string `mapstructure:"archive_url"`
	ForecastURL string `mapstructure:"forecast_url"`
}

type ZonesConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type QueriesConfig struct {
	// Driver is file, sqlite or postgres.
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type DatabaseConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Name              string `mapstructure:"name"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	SSLMode           string `mapstructure:"ssl_mode"`
	ConnectionTimeout int    `mapstructure:"connection_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Spec      string   `mapstructure:"spec"`
	Countries []string `mapstructure:"countries"`
}

type CacheConfig struct {
	Size int `mapstructure:"size"`
}

// ConfigError reports a configuration the service cannot start with.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// Load reads configuration from file and environment variables. $VARS in the
// file are expanded, then ELECVIEW_* variables override individual keys.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// First unmarshal into a map to handle type conversions
		var rawConfig map[string]interface{}
		if err := yaml.Unmarshal(data, &rawConfig); err != nil {
			return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
		}

		// Convert the map to YAML again
		data, err = yaml.Marshal(rawConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal raw config: %w", err)
		}

		// Expand environment variables
		expandedData := os.ExpandEnv(string(data))

		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewBufferString(expandedData)); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(config.Countries) == 0 {
		config.Countries = api.DefaultCountries()
	}

	return &config, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Market.APIKey) == "" {
		return &ConfigError{Field: "market.api_key", Reason: "missing market API key (set " + EnvPrefix + "_MARKET_API_KEY)"}
	}
	if _, err := api.ParsePairing(c.Market.Pairing); err != nil {
		return &ConfigError{Field: "market.pairing", Reason: err.Error()}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Reason: fmt.Sprintf("port %d out of range", c.Server.Port)}
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return &ConfigError{Field: "server.timezone", Reason: err.Error()}
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return &ConfigError{Field: "logging.level", Reason: err.Error()}
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return &ConfigError{Field: "logging.format", Reason: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	switch strings.ToLower(c.Queries.Driver) {
	case "file", "csv", "sqlite":
	case "postgres":
		if c.Queries.Path == "" && c.Database.Host == "" {
			return &ConfigError{Field: "database.host", Reason: "postgres query store needs queries.path or database settings"}
		}
	default:
		return &ConfigError{Field: "queries.driver", Reason: fmt.Sprintf("unknown driver %q", c.Queries.Driver)}
	}
	if c.Scheduler.Enabled && c.Scheduler.Spec == "" {
		return &ConfigError{Field: "scheduler.spec", Reason: "schedule is required when the scheduler is enabled"}
	}
	for _, country := range c.Countries {
		if country.Name == "" || len(country.Zones) == 0 {
			return &ConfigError{Field: "countries", Reason: fmt.Sprintf("country %q needs a name and at least one zone", country.Name)}
		}
		if _, err := time.LoadLocation(country.Timezone); err != nil {
			return &ConfigError{Field: "countries", Reason: fmt.Sprintf("country %q: unknown timezone %q", country.Name, country.Timezone)}
		}
	}
	return nil
}

// QueriesDSN returns the data source of the saved-query store. An empty
// path defaults per driver; for postgres it is built from the database
// section.
func (c *Config) QueriesDSN() string {
	if c.Queries.Path != "" {
		return c.Queries.Path
	}
	switch strings.ToLower(c.Queries.Driver) {
	case "sqlite":
		return "savedQueries.db"
	case "postgres":
		return c.Database.URL()
	default:
		return "savedQueries.csv"
	}
}

// URL renders the database section as a postgres:// connection string.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	q.Set("sslmode", d.SSLMode)
	if d.ConnectionTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprint(d.ConnectionTimeout))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NewLogger builds the process logger from the logging section.
func (l LoggingConfig) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, &ConfigError{Field: "logging.level", Reason: err.Error()}
	}
	logger.SetLevel(level)
	if l.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 50051)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)
	v.SetDefault("server.timezone", "UTC")

	v.SetDefault("market.url", api.DefaultMarketURL)
	v.SetDefault("market.api_key", "")
	v.SetDefault("market.pairing", string(api.PairByIndex))
	v.SetDefault("market.rate_limit", 4.0)
	v.SetDefault("market.rate_burst", 4)
	v.SetDefault("market.timeout", "30s")

	v.SetDefault("weather.enabled", true)
	v.SetDefault("weather.archive_url", api.DefaultArchiveURL)
	v.SetDefault("weather.forecast_url", api.DefaultForecastURL)

	v.SetDefault("zones.enabled", false)
	v.SetDefault("zones.url", api.DefaultZonesURL)

	v.SetDefault("queries.driver", "file")
	v.SetDefault("queries.path", "")

	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "elecview")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.connection_timeout", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.spec", "@hourly")
	v.SetDefault("scheduler.countries", []string{"Finland"})

	v.SetDefault("cache.size", 1000)
}
