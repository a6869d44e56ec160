package httpweb

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds everything the front-end needs to listen and serve: the
// listen address, where static web files and uploads live, the shared
// password, and the tuning knobs the firmware hardcodes as constants.
type Config struct {
	ListenAddr   string
	WebRoot      string
	UploadRoot   string
	Password     string
	CorsSite     string
	SessionTimeout time.Duration
	SPIDevice    string
}

// fileConfig is the on-disk TOML shape; keys absent from the file fall back
// to DefaultConfig's values, while a key present with an empty value
// overrides the default with that empty value.
type fileConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	WebRoot        string `toml:"web_root"`
	UploadRoot     string `toml:"upload_root"`
	Password       string `toml:"password"`
	CorsSite       string `toml:"cors_site"`
	SessionTimeout string `toml:"session_timeout"`
	SPIDevice      string `toml:"spi_device"`
}

// DefaultConfig returns the out-of-the-box settings, matching the firmware's
// open-network-with-no-password default.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":80",
		WebRoot:        "www",
		UploadRoot:     "gcodes",
		Password:       "",
		CorsSite:       "",
		SessionTimeout: DefaultSessionTimeout,
		SPIDevice:      "/dev/spidev0.0",
	}
}

// LoadConfig reads a TOML file and overlays it onto DefaultConfig, the way
// loadServiceConfig overlays fileConfig onto a Default*Config value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("httpweb: load config %s: %w", path, err)
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("web_root") {
		cfg.WebRoot = strings.TrimSpace(raw.WebRoot)
	}
	if meta.IsDefined("upload_root") {
		cfg.UploadRoot = strings.TrimSpace(raw.UploadRoot)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("cors_site") {
		cfg.CorsSite = strings.TrimSpace(raw.CorsSite)
	}
	if meta.IsDefined("session_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.SessionTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("httpweb: load config %s: bad session_timeout: %w", path, err)
		}
		cfg.SessionTimeout = d
	}
	if meta.IsDefined("spi_device") {
		cfg.SPIDevice = strings.TrimSpace(raw.SPIDevice)
	}

	return cfg, nil
}

// noPasswordSet reports whether anonymous clients should be auto-logged-in,
// matching NoPasswordSet's effect in SendJsonResponse.
func (c Config) noPasswordSet() bool {
	return c.Password == ""
}

// checkPassword compares attempt against the configured shared password.
func (c Config) checkPassword(attempt string) bool {
	return c.Password == "" || attempt == c.Password
}
