// Package config handles configuration for the roommatch server: defaults,
// then a .env file and the process environment, then command-line flags.
package config

import "time"

// Config holds runtime settings.
type Config struct {
	Port            string
	GinMode         string
	MongoURI        string
	MongoDatabase   string
	JWTSecret       string
	RedisURL        string
	GeocoderURL     string
	GeocodeTimeout  time.Duration
	GeocodeCacheTTL time.Duration
	SyncInterval    time.Duration
	UnreadDBPath    string
	CloudinaryURL   string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string
	AllowedOrigins  []string
}

// LoadDefaults populates Config with development defaults.
// NOTE: JWTSecret must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.Port = "8080"
	c.GinMode = "debug"
	c.MongoURI = "mongodb://127.0.0.1:27017"
	c.MongoDatabase = "roommatch"
	c.JWTSecret = "your-secret-key-change-this-in-production"
	c.RedisURL = ""
	c.GeocoderURL = ""
	c.GeocodeTimeout = 3 * time.Second
	c.GeocodeCacheTTL = 24 * time.Hour
	c.SyncInterval = 30 * time.Second
	c.UnreadDBPath = "roommatch-unread.db"
	c.CloudinaryURL = ""
	c.VAPIDSubscriber = "mailto:admin@roommatch.app"
	c.AllowedOrigins = []string{"http://localhost:8080", "http://127.0.0.1:8080", "http://localhost:5500", "http://127.0.0.1:5500", "http://localhost:3000"}
}

// Release reports whether gin runs in release mode.
func (c *Config) Release() bool {
	return c.GinMode == "release"
}

// LoadConfig builds a Config by applying defaults, then overlaying the
// environment (including an optional .env file) and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
