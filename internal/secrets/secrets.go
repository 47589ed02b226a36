// Package secrets loads the master key and the server secret at process
// start. Values are hex strings from the environment, falling back to key
// files written by cmd/genkeys.
package secrets

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	MasterKeyEnv    = "QRTICKET_MASTER_KEY_HEX"
	ServerSecretEnv = "QRTICKET_SERVER_SECRET_HEX"

	MasterKeyFile    = "master.key"
	ServerSecretFile = "server.secret"

	MinLen = 32
)

var (
	ErrMissing  = errors.New("secret not configured")
	ErrTooShort = errors.New("secret too short")
	ErrReused   = errors.New("master key and server secret must differ")
)

// Material is the pair of long-lived secrets handed to the crypto engine.
type Material struct {
	MasterKey    []byte
	ServerSecret []byte
}

// String never prints key bytes.
func (m Material) String() string { return "secrets.Material{redacted}" }

func (m Material) GoString() string { return m.String() }

type Source interface {
	Load() (Material, error)
}

// EnvFileSource reads hex values from the environment first and from files
// in Dir second.
type EnvFileSource struct {
	Dir    string
	Getenv func(string) string
}

func NewEnvFileSource(dir string) *EnvFileSource {
	return &EnvFileSource{Dir: dir, Getenv: os.Getenv}
}

func (s *EnvFileSource) Load() (Material, error) {
	master, err := s.read("master key", MasterKeyEnv, MasterKeyFile)
	if err != nil {
		return Material{}, err
	}
	secret, err := s.read("server secret", ServerSecretEnv, ServerSecretFile)
	if err != nil {
		return Material{}, err
	}
	if subtle.ConstantTimeCompare(master, secret) == 1 {
		return Material{}, ErrReused
	}
	return Material{MasterKey: master, ServerSecret: secret}, nil
}

func (s *EnvFileSource) read(name, env, file string) ([]byte, error) {
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	h := getenv(env)
	if h == "" {
		data, err := os.ReadFile(filepath.Join(s.Dir, file))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s (%s not set and %s not found)", ErrMissing, name, env, file)
			}
			return nil, fmt.Errorf("read %s file: %w", name, err)
		}
		h = string(data)
	}
	b, err := hex.DecodeString(strings.TrimSpace(h))
	if err != nil {
		// hex errors quote the offending byte; keep them out of logs
		return nil, fmt.Errorf("%s is not valid hex", name)
	}
	if len(b) < MinLen {
		return nil, fmt.Errorf("%w: %s must be at least %d bytes (hex %d chars)", ErrTooShort, name, MinLen, MinLen*2)
	}
	return b, nil
}

// Static is a Source for tests and embedders that already hold the secrets.
type Static Material

func (s Static) Load() (Material, error) {
	if len(s.MasterKey) < MinLen || len(s.ServerSecret) < MinLen {
		return Material{}, ErrTooShort
	}
	return Material(s), nil
}
