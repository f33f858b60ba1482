package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/javieronasis1-eng/administracion-rentas/internal/core"
	"github.com/javieronasis1-eng/administracion-rentas/internal/log"
)

// Remote backends
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendSheets = "sheets"
)

// Sync transports
const (
	TransportQueue = "queue"
	TransportAMQP  = "amqp"
)

type Config struct {
	// HTTP Server
	Port               string `mapstructure:"port"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`

	// Local cache
	CachePath string `mapstructure:"cache_path"`

	// Remote store
	RemoteBackend string `mapstructure:"remote_backend"`
	SQLiteDBPath  string `mapstructure:"sqlite_db_path"`

	// Sync
	SyncTransport  string `mapstructure:"sync_transport"`
	SyncMaxRetries int    `mapstructure:"sync_max_retries"`
	SyncQueueSize  int    `mapstructure:"sync_queue_size"`

	// AMQP
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`
	AMQPQueue    string `mapstructure:"amqp_queue"`

	// Google Sheets
	GoogleSpreadsheetID      string `mapstructure:"google_spreadsheet_id"`
	GoogleUnitsSheet         string `mapstructure:"google_units_sheet"`
	GooglePaymentsSheet      string `mapstructure:"google_payments_sheet"`
	GoogleServicesSheet      string `mapstructure:"google_services_sheet"`
	GoogleServiceAccountJSON string `mapstructure:"google_service_account_json"`
	GoogleServiceAccountFile string `mapstructure:"google_service_account_file"`
	GoogleOAuthClientFile    string `mapstructure:"google_oauth_client_file"`
	GoogleOAuthTokenFile     string `mapstructure:"google_oauth_token_file"`
	GoogleOAuthClientJSON    string `mapstructure:"google_oauth_client_json"`
	GoogleOAuthTokenJSON     string `mapstructure:"google_oauth_token_json"`

	// Bootstrap ledger
	DefaultRoomRent      string `mapstructure:"default_room_rent"`
	DefaultApartmentRent string `mapstructure:"default_apartment_rent"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8081")
	v.SetDefault("rate_limit_per_minute", 120)

	v.SetDefault("cache_path", "./data/rentas.db")

	v.SetDefault("remote_backend", BackendNone)
	v.SetDefault("sqlite_db_path", "./data/remote.db")

	v.SetDefault("sync_transport", TransportQueue)
	v.SetDefault("sync_max_retries", 3)
	v.SetDefault("sync_queue_size", 256)

	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "rentas")
	v.SetDefault("amqp_queue", "sync_ledger")

	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_units_sheet", "Units")
	v.SetDefault("google_payments_sheet", "Payments")
	v.SetDefault("google_services_sheet", "Services")
	v.SetDefault("google_service_account_json", "")
	v.SetDefault("google_service_account_file", "")
	v.SetDefault("google_oauth_client_file", "")
	v.SetDefault("google_oauth_token_file", "")
	v.SetDefault("google_oauth_client_json", "")
	v.SetDefault("google_oauth_token_json", "")

	v.SetDefault("default_room_rent", "1500")
	v.SetDefault("default_apartment_rent", "4500")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads defaults, then the optional config file (rentas.yaml in the
// working directory when path is empty), then environment variables such as
// PORT or REMOTE_BACKEND.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rentas")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		slog.Debug("Loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}

	if strings.TrimSpace(c.CachePath) == "" {
		errs = append(errs, "cache path cannot be empty")
	}

	validBackends := []string{BackendNone, BackendMemory, BackendSQLite, BackendSheets}
	if !contains(validBackends, c.RemoteBackend) {
		errs = append(errs, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, validBackends))
	}

	if c.RemoteBackend == BackendSQLite && c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.RemoteBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errs = append(errs, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasServiceAccount := c.GoogleServiceAccountJSON != "" || c.GoogleServiceAccountFile != ""
		hasClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
		if !hasServiceAccount && (!hasClient || !hasToken) {
			errs = append(errs, "sheets backend needs GOOGLE_SERVICE_ACCOUNT_JSON/FILE or an OAuth client and token")
		}
	}

	validTransports := []string{TransportQueue, TransportAMQP}
	if !contains(validTransports, c.SyncTransport) {
		errs = append(errs, fmt.Sprintf("invalid sync transport '%s': must be one of %v", c.SyncTransport, validTransports))
	}
	if c.SyncTransport == TransportAMQP && c.AMQPURL == "" {
		errs = append(errs, "AMQP URL is required when sync transport is amqp")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SyncMaxRetries < 0 || c.SyncMaxRetries > 20 {
		errs = append(errs, fmt.Sprintf("invalid sync max retries %d: must be between 0 and 20", c.SyncMaxRetries))
	}
	if c.SyncQueueSize < 1 || c.SyncQueueSize > 100000 {
		errs = append(errs, fmt.Sprintf("invalid sync queue size %d: must be between 1 and 100000", c.SyncQueueSize))
	}

	if _, err := core.ParseMoney(c.DefaultRoomRent); err != nil {
		errs = append(errs, fmt.Sprintf("invalid default room rent '%s'", c.DefaultRoomRent))
	}
	if _, err := core.ParseMoney(c.DefaultApartmentRent); err != nil {
		errs = append(errs, fmt.Sprintf("invalid default apartment rent '%s'", c.DefaultApartmentRent))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := log.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Rents returns the bootstrap rents. Call after Validate.
func (c *Config) Rents() (room, apartment core.Money) {
	room, _ = core.ParseMoney(c.DefaultRoomRent)
	apartment, _ = core.ParseMoney(c.DefaultApartmentRent)
	return room, apartment
}

// RemoteEnabled reports whether a remote store is configured.
func (c *Config) RemoteEnabled() bool {
	return c.RemoteBackend != "" && c.RemoteBackend != BackendNone
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return lvl, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
