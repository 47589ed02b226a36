package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Duration unmarshals from "1h30m" or from integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case string:
		p, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = p
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// JSONConfig mirrors Config for unmarshalling only.
type JSONConfig struct {
	ListenAddr       string   `json:"listen_addr"`
	QRDir            string   `json:"qr_dir"`
	StoreBackend     string   `json:"store_backend"`
	StorePath        string   `json:"store_path"`
	SecretsDir       string   `json:"secrets_dir"`
	AEAD             string   `json:"aead"`
	ValidityWindow   Duration `json:"validity_window"`
	CitizenIDPattern string   `json:"citizen_id_pattern"`
	QRSize           int      `json:"qr_size"`
	LogLevel         string   `json:"log_level"`
	LogFile          string   `json:"log_file"`
	ShutdownTimeout  Duration `json:"shutdown_timeout"`
	TLSCertFile      string   `json:"tls_cert_file"`
	TLSKeyFile       string   `json:"tls_key_file"`
}

// parseJSON overlays cfg with the keys present in the JSON file. Keys that
// are absent keep their current value.
func parseJSON(cfg *Config, args []string) error {
	path, explicit := configPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	jc := JSONConfig{
		ListenAddr:       cfg.ListenAddr,
		QRDir:            cfg.QRDir,
		StoreBackend:     cfg.StoreBackend,
		StorePath:        cfg.StorePath,
		SecretsDir:       cfg.SecretsDir,
		AEAD:             cfg.AEAD,
		ValidityWindow:   Duration{cfg.ValidityWindow},
		CitizenIDPattern: cfg.CitizenIDPattern,
		QRSize:           cfg.QRSize,
		LogLevel:         cfg.LogLevel,
		LogFile:          cfg.LogFile,
		ShutdownTimeout:  Duration{cfg.ShutdownTimeout},
		TLSCertFile:      cfg.TLSCertFile,
		TLSKeyFile:       cfg.TLSKeyFile,
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ListenAddr = jc.ListenAddr
	cfg.QRDir = jc.QRDir
	cfg.StoreBackend = strings.ToLower(jc.StoreBackend)
	cfg.StorePath = jc.StorePath
	cfg.SecretsDir = jc.SecretsDir
	cfg.AEAD = jc.AEAD
	cfg.ValidityWindow = jc.ValidityWindow.Duration
	cfg.CitizenIDPattern = jc.CitizenIDPattern
	cfg.QRSize = jc.QRSize
	cfg.LogLevel = jc.LogLevel
	cfg.LogFile = jc.LogFile
	cfg.ShutdownTimeout = jc.ShutdownTimeout.Duration
	cfg.TLSCertFile = jc.TLSCertFile
	cfg.TLSKeyFile = jc.TLSKeyFile
	return nil
}

// configPath returns the -c/-config value, or DefaultFile when neither flag
// is given. explicit reports whether a flag named the file.
func configPath(args []string) (path string, explicit bool) {
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(strings.TrimLeft(args[i], "-"), "=")
		if !strings.HasPrefix(args[i], "-") || (name != "c" && name != "config") {
			continue
		}
		if hasValue {
			return value, true
		}
		if i+1 < len(args) {
			return args[i+1], true
		}
		return "", true
	}
	return DefaultFile, false
}
