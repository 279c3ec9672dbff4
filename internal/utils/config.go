package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/benmeehan/whoo-agent/pkg/file"
	"github.com/benmeehan/whoo-agent/pkg/whoo"
)

// Location provider types.
const (
	ProviderStatic = "static"
	ProviderGoogle = "google"
	ProviderGPS    = "gps"
)

// Battery sources.
const (
	BatterySysfs  = "sysfs"
	BatteryStatic = "static"
)

// envPrefix namespaces the environment overrides, e.g. WHOO_PASSWORD.
const envPrefix = "WHOO"

// Config represents the structure of the configuration file.
type Config struct {
	LogLevel string `yaml:"log_level"` // zerolog level name

	Whoo struct {
		BaseURL     string        `yaml:"base_url"`     // API host, defaults to production
		Timeout     time.Duration `yaml:"timeout"`      // Per-request timeout
		AppVersion  string        `yaml:"app_version"`  // App version advertised in the User-Agent
		OSVersion   string        `yaml:"os_version"`   // iOS version advertised in the User-Agent
		Language    string        `yaml:"language"`     // Accept-Language
		AccessToken string        `yaml:"access_token"` // Optional fixed token
		Email       string        `yaml:"email"`        // Login email
		Password    string        `yaml:"password"`     // Login password
	} `yaml:"whoo"`

	TokenCache struct {
		Enabled    bool   `yaml:"enabled"`    // Cache the access token between runs
		File       string `yaml:"file"`       // Path to the encrypted token file
		Passphrase string `yaml:"passphrase"` // Key derivation passphrase
	} `yaml:"token_cache"`

	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID prefix
		Username      string `yaml:"username"`       // Optional broker username
		Password      string `yaml:"password"`       // Optional broker password
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate
	} `yaml:"mqtt"`

	Services struct {
		Reporter struct {
			Enabled        bool          `yaml:"enabled"`         // Enable/disable the reporter
			Interval       time.Duration `yaml:"interval"`        // Interval between location updates
			RequestTimeout time.Duration `yaml:"request_timeout"` // Timeout for one cycle
			StayRadius     float64       `yaml:"stay_radius_m"`   // Radius in meters for stayed_at, 0 disables

			Provider struct {
				Type              string  `yaml:"type"`            // static, google or gps
				Latitude          float64 `yaml:"latitude"`        // Static latitude
				Longitude         float64 `yaml:"longitude"`       // Static longitude
				Accuracy          float64 `yaml:"accuracy"`        // Static accuracy in meters
				MapsAPIKey        string  `yaml:"maps_api_key"`    // Google maps API Key
				ModemIndex        int     `yaml:"modem_index"`     // ModemManager modem for cell lookup
				GPSDevicePort     string  `yaml:"gps_device_port"` // UNIX Port where the GPS sensor is mounted
				GPSDeviceBaudRate int     `yaml:"gps_baud_rate"`   // The Baud rate for GPS sensor
			} `yaml:"provider"`

			Battery struct {
				Source string  `yaml:"source"` // sysfs or static
				Level  float64 `yaml:"level"`  // Static level, 0-100
				State  int     `yaml:"state"`  // Static state, 0-3
			} `yaml:"battery"`
		} `yaml:"reporter"`

		Relay struct {
			Enabled        bool          `yaml:"enabled"`         // Enable/disable the relay
			Topic          string        `yaml:"topic"`           // MQTT topic prefix
			Interval       time.Duration `yaml:"interval"`        // Interval between fetches
			RequestTimeout time.Duration `yaml:"request_timeout"` // Timeout for one fetch
			QOS            int           `yaml:"qos"`             // MQTT QoS level
			Retained       bool          `yaml:"retained"`        // Publish retained messages
			MinDistance    float64       `yaml:"min_distance_m"`  // Minimum move in meters before republishing
			Usernames      []string      `yaml:"usernames"`       // Allowlist, empty means all friends
		} `yaml:"relay"`
	} `yaml:"services"`
}

// NewOverrides returns a viper instance that resolves WHOO_* environment
// variables and, when flags is non-nil, its "log-level" flag.
func NewOverrides(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"access_token", "email", "password", "token_passphrase", "log_level"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if flags != nil {
		if flag := flags.Lookup("log-level"); flag != nil {
			if err := v.BindPFlag("log_level", flag); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// LoadConfig loads the YAML configuration from the specified file, applies
// overrides (which may be nil), fills defaults and validates the result.
func LoadConfig(filename string, fileClient file.FileOperations, overrides *viper.Viper) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	if overrides != nil {
		config.applyOverrides(overrides)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return &config, nil
}

func (c *Config) applyOverrides(v *viper.Viper) {
	set := func(target *string, key string) {
		if value := v.GetString(key); value != "" {
			*target = value
		}
	}
	set(&c.Whoo.AccessToken, "access_token")
	set(&c.Whoo.Email, "email")
	set(&c.Whoo.Password, "password")
	set(&c.TokenCache.Passphrase, "token_passphrase")
	set(&c.LogLevel, "log_level")
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Whoo.Timeout <= 0 {
		c.Whoo.Timeout = whoo.DefaultTimeout
	}
	if c.Whoo.AppVersion == "" {
		c.Whoo.AppVersion = "0.13.4"
	}
	if c.Whoo.OSVersion == "" {
		c.Whoo.OSVersion = "17.0"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "whoo-agent"
	}

	reporter := &c.Services.Reporter
	if reporter.Interval <= 0 {
		reporter.Interval = time.Minute
	}
	if reporter.RequestTimeout <= 0 {
		reporter.RequestTimeout = c.Whoo.Timeout
	}
	if reporter.Provider.Type == "" {
		reporter.Provider.Type = ProviderStatic
	}
	if reporter.Provider.GPSDeviceBaudRate == 0 {
		reporter.Provider.GPSDeviceBaudRate = 9600
	}
	if reporter.Battery.Source == "" {
		reporter.Battery.Source = BatteryStatic
		if reporter.Battery.Level == 0 {
			reporter.Battery.Level = whoo.DefaultBatteryLevel
		}
	}

	relay := &c.Services.Relay
	if relay.Interval <= 0 {
		relay.Interval = time.Minute
	}
	if relay.RequestTimeout <= 0 {
		relay.RequestTimeout = c.Whoo.Timeout
	}
	if relay.Topic == "" {
		relay.Topic = "whoo/friends"
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.UserAgent(); err != nil {
		errs = append(errs, err)
	}

	hasToken := c.Whoo.AccessToken != ""
	hasLogin := c.Whoo.Email != "" && c.Whoo.Password != ""
	if !hasToken && !hasLogin {
		errs = append(errs, errors.New("whoo.access_token or whoo.email and whoo.password are required"))
	}
	if c.TokenCache.Enabled && (c.TokenCache.File == "" || c.TokenCache.Passphrase == "") {
		errs = append(errs, errors.New("token_cache needs file and passphrase"))
	}

	reporter := c.Services.Reporter
	if reporter.Enabled {
		switch reporter.Provider.Type {
		case ProviderStatic:
			if reporter.Provider.Latitude < -90 || reporter.Provider.Latitude > 90 ||
				reporter.Provider.Longitude < -180 || reporter.Provider.Longitude > 180 {
				errs = append(errs, errors.New("reporter.provider coordinates out of range"))
			}
		case ProviderGoogle:
			if reporter.Provider.MapsAPIKey == "" {
				errs = append(errs, errors.New("reporter.provider.maps_api_key is required for google"))
			}
		case ProviderGPS:
			if reporter.Provider.GPSDevicePort == "" {
				errs = append(errs, errors.New("reporter.provider.gps_device_port is required for gps"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown reporter.provider.type %q", reporter.Provider.Type))
		}

		switch reporter.Battery.Source {
		case BatterySysfs, BatteryStatic:
		default:
			errs = append(errs, fmt.Errorf("unknown reporter.battery.source %q", reporter.Battery.Source))
		}
		if reporter.Battery.Level < 0 || reporter.Battery.Level > 100 {
			errs = append(errs, errors.New("reporter.battery.level must be within 0-100"))
		}
		if !whoo.BatteryState(reporter.Battery.State).Valid() {
			errs = append(errs, fmt.Errorf("unknown reporter.battery.state %d", reporter.Battery.State))
		}
	}

	relay := c.Services.Relay
	if relay.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when the relay is enabled"))
		}
		if relay.QOS < 0 || relay.QOS > 2 {
			errs = append(errs, fmt.Errorf("relay.qos %d must be 0, 1 or 2", relay.QOS))
		}
		if relay.MinDistance < 0 {
			errs = append(errs, errors.New("relay.min_distance_m must not be negative"))
		}
	}

	return errors.Join(errs...)
}

// UserAgent builds the client identification string from the configured
// app and OS versions.
func (c *Config) UserAgent() (string, error) {
	app, err := semver.NewVersion(c.Whoo.AppVersion)
	if err != nil {
		return "", fmt.Errorf("whoo.app_version %q: %w", c.Whoo.AppVersion, err)
	}
	osVersion, err := semver.NewVersion(c.Whoo.OSVersion)
	if err != nil {
		return "", fmt.Errorf("whoo.os_version %q: %w", c.Whoo.OSVersion, err)
	}
	return fmt.Sprintf("app.whoo/%s iOS/%s", app.Original(), osVersion.Original()), nil
}

// ClientConfig converts the whoo section to a client configuration.
func (c *Config) ClientConfig() (whoo.Config, error) {
	userAgent, err := c.UserAgent()
	if err != nil {
		return whoo.Config{}, err
	}
	return whoo.Config{
		BaseURL:     c.Whoo.BaseURL,
		Timeout:     c.Whoo.Timeout,
		UserAgent:   userAgent,
		Language:    c.Whoo.Language,
		AccessToken: c.Whoo.AccessToken,
		Email:       c.Whoo.Email,
		Password:    c.Whoo.Password,
	}, nil
}
