package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrylevesque/qrticket/internal/config"
	"github.com/harrylevesque/qrticket/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{}
	c.LoadDefaults()
	c.ListenAddr = "127.0.0.1:0"
	c.QRDir = filepath.Join(dir, "qr")
	c.StoreBackend = backend
	c.StorePath = filepath.Join(dir, "tickets."+backend)
	c.LogFile = filepath.Join(dir, "server.log")
	c.ShutdownTimeout = time.Second
	return c
}

func testSecrets() secrets.Source {
	return secrets.Static{MasterKey: bytes.Repeat([]byte{7}, 32), ServerSecret: bytes.Repeat([]byte{9}, 32)}
}

func TestNewApp_IssueAndVerify(t *testing.T) {
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			app, err := NewApp(context.Background(), testConfig(t, backend), testSecrets())
			require.NoError(t, err)
			t.Cleanup(func() { _ = app.Close() })

			srv := httptest.NewServer(app.Handler())
			defer srv.Close()

			resp, err := http.PostForm(srv.URL+"/generate_ticket", url.Values{
				"full_name": {"Jane Doe"}, "email": {"jane@example.com"}, "citizen_id": {"1234567890123"},
				"birth_date": {"1990-05-17"}, "gender": {"F"}, "district": {"Central"}, "city": {"Springfield"},
			})
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusCreated, resp.StatusCode)
		})
	}
}

func TestNewApp_Errors(t *testing.T) {
	_, err := NewApp(context.Background(), testConfig(t, config.BackendJSON), secrets.Static{})
	assert.ErrorIs(t, err, secrets.ErrTooShort)

	c := testConfig(t, config.BackendJSON)
	c.AEAD = "rc4"
	_, err = NewApp(context.Background(), c, testSecrets())
	assert.Error(t, err)

	c = testConfig(t, "redis")
	_, err = NewApp(context.Background(), c, testSecrets())
	assert.Error(t, err)
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t, config.BackendJSON), testSecrets())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApp_RunReportsListenError(t *testing.T) {
	c := testConfig(t, config.BackendJSON)
	c.ListenAddr = "256.0.0.1:bad"
	app, err := NewApp(context.Background(), c, testSecrets())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Error(t, app.Run(context.Background()))
}
