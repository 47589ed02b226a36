// Package config loads runtime configuration for the ticket server.
//
// Sources, later ones win:
//
//  1. Built-in defaults (LoadDefaults).
//  2. A JSON file named by -c or -config, or ./config.json when present.
//  3. Command-line flags.
//
// Durations in JSON are strings like "90m" or integer nanoseconds:
//
//	{
//	  "listen_addr": ":8080",
//	  "store_backend": "sqlite",
//	  "store_path": "tickets.db",
//	  "validity_window": "72h"
//	}
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/harrylevesque/qrticket/internal/crypto"
	"github.com/harrylevesque/qrticket/internal/logging"
)

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultFile is read when no -config flag is given and the file exists.
const DefaultFile = "config.json"

type Config struct {
	ListenAddr       string
	QRDir            string
	StoreBackend     string
	StorePath        string
	SecretsDir       string
	AEAD             string
	ValidityWindow   time.Duration
	CitizenIDPattern string
	QRSize           int
	LogLevel         string
	LogFile          string
	ShutdownTimeout  time.Duration
	TLSCertFile      string
	TLSKeyFile       string
}

func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.QRDir = "static/qr_codes"
	c.StoreBackend = BackendJSON
	c.StorePath = "tickets.json"
	c.SecretsDir = "."
	c.AEAD = string(crypto.AESGCM)
	c.ValidityWindow = 0
	c.CitizenIDPattern = `^[0-9]{13}$`
	c.QRSize = 256
	c.LogLevel = "info"
	c.LogFile = ""
	c.ShutdownTimeout = 10 * time.Second
}

// LoadConfig applies defaults, then the JSON file, then flags from args
// (normally os.Args[1:]).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.StoreBackend)
	}
	if c.StorePath == "" {
		return fmt.Errorf("config: store path is empty")
	}
	if _, err := crypto.ParseAlgorithm(c.AEAD); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := regexp.Compile(c.CitizenIDPattern); err != nil {
		return fmt.Errorf("config: citizen id pattern: %w", err)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.ValidityWindow < 0 {
		return fmt.Errorf("config: validity window must not be negative")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("config: shutdown timeout must not be negative")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("config: tls cert and key must be set together")
	}
	if c.QRSize < 0 {
		return fmt.Errorf("config: qr size must not be negative")
	}
	return nil
}
