package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Location providers.
const (
	ProviderNone   = "none"
	ProviderStatic = "static"
	ProviderIP     = "ip"
)

// Config holds all application configuration.
type Config struct {
	Places   PlacesConfig   `mapstructure:"places"`
	Location LocationConfig `mapstructure:"location"`
	Device   DeviceConfig   `mapstructure:"device"`
	Auth     AuthConfig     `mapstructure:"auth"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type PlacesConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Location string        `mapstructure:"location"`
	Radius   int           `mapstructure:"radius"`
	APIKey   string        `mapstructure:"api_key"`
	Type     string        `mapstructure:"type"`
	Timeout  time.Duration `mapstructure:"timeout"`
	// UseResolved centres the search on the resolved coordinates instead
	// of the configured location.
	UseResolved bool `mapstructure:"use_resolved"`
}

type LocationConfig struct {
	Provider   string        `mapstructure:"provider"`
	Timeout    time.Duration `mapstructure:"timeout"`
	IPEndpoint string        `mapstructure:"ip_endpoint"`
}

// DeviceConfig is the fixed reading used by the static provider.
type DeviceConfig struct {
	Lat float64 `mapstructure:"lat"`
	Lng float64 `mapstructure:"lng"`
}

type AuthConfig struct {
	ClientID      string        `mapstructure:"client_id"`
	ClientSecret  string        `mapstructure:"client_secret"`
	IDToken       string        `mapstructure:"id_token"`
	AuthURL       string        `mapstructure:"auth_url"`
	TokenURL      string        `mapstructure:"token_url"`
	Scopes        []string      `mapstructure:"scopes"`
	RedirectPort  int           `mapstructure:"redirect_port"`
	SignInTimeout time.Duration `mapstructure:"sign_in_timeout"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	PushURL string `mapstructure:"push_url"`
	Job     string `mapstructure:"job"`
}

// Load reads configuration from an optional .env file and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found (using environment variables)")
	}

	v := viper.New()

	// Defaults
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place")
	v.SetDefault("places.location", "-33.8670522,151.1957362")
	v.SetDefault("places.radius", 1500)
	v.SetDefault("places.api_key", "YOUR_API_KEY")
	v.SetDefault("places.type", "")
	v.SetDefault("places.timeout", 10*time.Second)
	v.SetDefault("places.use_resolved", true)
	v.SetDefault("location.provider", ProviderIP)
	v.SetDefault("location.timeout", 10*time.Second)
	v.SetDefault("location.ip_endpoint", "http://ip-api.com/json/?fields=status,message,lat,lon")
	v.SetDefault("device.lat", 0.0)
	v.SetDefault("device.lng", 0.0)
	v.SetDefault("auth.client_id", "YOUR_CLIENT_ID")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.id_token", "")
	v.SetDefault("auth.auth_url", "https://accounts.google.com/o/oauth2/auth")
	v.SetDefault("auth.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("auth.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("auth.redirect_port", 0)
	v.SetDefault("auth.sign_in_timeout", 2*time.Minute)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "urbanlens")
	v.SetDefault("mqtt.topic", "urbanlens/diagnostics")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("metrics.push_url", "")
	v.SetDefault("metrics.job", "urbanlens")

	// Environment variables: URBANLENS_PLACES_API_KEY → places.api_key
	v.SetEnvPrefix("URBANLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Places.BaseURL == "" {
		errs = append(errs, "places.base_url is required")
	}
	if c.Places.Radius <= 0 {
		errs = append(errs, fmt.Sprintf("places.radius must be positive, got %d", c.Places.Radius))
	}
	if c.Places.Timeout <= 0 {
		errs = append(errs, "places.timeout must be positive")
	}
	if !c.Places.UseResolved && c.Places.Location == "" {
		errs = append(errs, "places.location is required when places.use_resolved is false")
	}

	switch c.Location.Provider {
	case ProviderNone, ProviderIP:
	case ProviderStatic:
		if math.Abs(c.Device.Lat) > 90 || math.Abs(c.Device.Lng) > 180 {
			errs = append(errs, fmt.Sprintf("device position %v,%v is out of range", c.Device.Lat, c.Device.Lng))
		}
	default:
		errs = append(errs, fmt.Sprintf("location.provider must be one of none, static, ip; got %q", c.Location.Provider))
	}
	if c.Location.Timeout <= 0 {
		errs = append(errs, "location.timeout must be positive")
	}

	if c.Auth.IDToken == "" && c.Auth.ClientID == "" {
		errs = append(errs, "auth.client_id is required when no auth.id_token is set")
	}
	if c.Auth.RedirectPort < 0 || c.Auth.RedirectPort > 65535 {
		errs = append(errs, fmt.Sprintf("auth.redirect_port must be 0-65535, got %d", c.Auth.RedirectPort))
	}

	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when mqtt.broker is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
