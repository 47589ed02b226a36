package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harrylevesque/qrticket/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteKeys(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")
	paths, err := writeKeys(dir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	m, err := (&secrets.EnvFileSource{Dir: dir, Getenv: func(string) string { return "" }}).Load()
	require.NoError(t, err)
	assert.Len(t, m.MasterKey, secrets.MinLen)
	assert.NotEqual(t, m.MasterKey, m.ServerSecret)
}

func TestWriteKeys_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, secrets.ServerSecretFile)
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o600))

	_, err := writeKeys(dir)
	assert.ErrorContains(t, err, "Refusing to overwrite")

	_, err = os.Stat(filepath.Join(dir, secrets.MasterKeyFile))
	assert.True(t, os.IsNotExist(err), "no partial output")
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}
