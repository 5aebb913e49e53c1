package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables read when building a Config. The backend address and
// key are required; the others override values from the TOML file.
const (
	EnvBackendURL   = "DASHBOARD_BACKEND_URL"
	EnvBackendKey   = "DASHBOARD_BACKEND_KEY"
	EnvCookieSecret = "DASHBOARD_COOKIE_SECRET"
	EnvGuardBypass  = "DASHBOARD_GUARD_BYPASS"
)

// ErrConfigurationMissing is returned when the backend address or public API
// key has not been provided. It is fatal at startup.
var ErrConfigurationMissing = errors.New("configuration missing")

// Config has the options required for running the dashboard and dashctl.
type Config struct {
	Backend   Backend    `toml:"backend"`
	Cookie    Cookie     `toml:"cookie"`
	Guard     Guard      `toml:"guard"`
	Storage   Storage    `toml:"storage"`
	Callback  Callback   `toml:"callback"`
	Providers []Provider `toml:"provider"`
}

// Backend locates the hosted auth API.
type Backend struct {
	URL string `toml:"url"`
	Key string `toml:"key"`
}

// Cookie configures the session cookie written by the server.
type Cookie struct {
	// Secret is stretched into the signing and encryption keys for cookies, it
	// must be kept private.
	Secret string `toml:"secret"`
	Name   string `toml:"name"`
	Secure bool   `toml:"secure"`
}

// Guard configures route protection in the client runtime.
type Guard struct {
	// Bypass renders protected views without a session. It exists for local
	// development only and is logged whenever it is enabled.
	Bypass bool `toml:"bypass"`

	// Debounce delays the redirect to login so that quick state transitions do
	// not cause a flicker.
	Debounce Duration `toml:"debounce"`
}

// Storage chooses where the client runtime persists its session.
type Storage struct {
	// Driver is one of "sqlite", "redis" or "memory".
	Driver string `toml:"driver"`

	// Path is the sqlite database file. It defaults to a file in the user's
	// configuration directory; an empty path keeps the session in memory.
	Path string `toml:"path"`

	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisKey      string   `toml:"redis_key"`
	TTL           Duration `toml:"ttl"`
}

// Callback configures the callback resolver.
type Callback struct {
	// Timeout bounds each backend call made while resolving a callback.
	Timeout Duration `toml:"timeout"`

	// Remember is how long a resolved callback is kept so that a repeated
	// request for the same address does not exchange again.
	Remember Duration `toml:"remember"`
}

// Provider is an OAuth provider enabled on the backend.
type Provider struct {
	Name  string `toml:"name"`
	Label string `toml:"label"`
}

// Duration is a time.Duration that can be decoded from strings like "10s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Cookie: Cookie{
			Name:   "dashboard-session",
			Secure: true,
		},
		Guard: Guard{
			Debounce: Duration{100 * time.Millisecond},
		},
		Storage: Storage{
			Driver:   "sqlite",
			Path:     defaultSessionPath(),
			RedisKey: "dashboard:session",
			TTL:      Duration{30 * 24 * time.Hour},
		},
		Callback: Callback{
			Timeout:  Duration{10 * time.Second},
			Remember: Duration{5 * time.Minute},
		},
	}
}

// defaultSessionPath is the sqlite file dashctl keeps its session in, under
// the user's configuration directory.
func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dashboard", "session.db")
}

// Read a TOML formatted configuration file on top of the defaults.
func Read(path string) (Config, error) {
	conf := Default()
	_, err := toml.DecodeFile(path, &conf)
	return conf, err
}

// Load builds the Config for a process. Variables from a .env file in the
// working directory are loaded first, then the TOML file at path (if it
// exists), then environment overrides. An error wrapping
// ErrConfigurationMissing is returned if the backend is not configured.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Println("config could not load .env:", err)
	}

	conf := Default()
	if path != "" {
		var err error
		conf, err = Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return conf, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err != nil {
			conf = Default()
		}
	}

	conf.applyEnv()

	return conf, conf.Backend.Validate()
}

// BackendFromEnv reads only the backend section from the environment.
func BackendFromEnv() (Backend, error) {
	b := Backend{
		URL: os.Getenv(EnvBackendURL),
		Key: os.Getenv(EnvBackendKey),
	}

	return b, b.Validate()
}

// Validate checks that both required backend values are present.
func (b Backend) Validate() error {
	if b.URL == "" {
		return fmt.Errorf("%w: %s is not set", ErrConfigurationMissing, EnvBackendURL)
	}
	if b.Key == "" {
		return fmt.Errorf("%w: %s is not set", ErrConfigurationMissing, EnvBackendKey)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(EnvBackendKey); v != "" {
		c.Backend.Key = v
	}
	if v := os.Getenv(EnvCookieSecret); v != "" {
		c.Cookie.Secret = v
	}
	if v := os.Getenv(EnvGuardBypass); v != "" {
		bypass, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("config ignoring %s=%q: %v\n", EnvGuardBypass, v, err)
		} else {
			c.Guard.Bypass = bypass
		}
	}
}

// Find returns the provider with the given name.
func (c Config) Find(name string) (Provider, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}
