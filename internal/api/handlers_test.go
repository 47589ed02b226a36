package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrylevesque/qrticket/internal/crypto"
	"github.com/harrylevesque/qrticket/internal/logging"
	"github.com/harrylevesque/qrticket/internal/qr"
	"github.com/harrylevesque/qrticket/internal/store"
	"github.com/harrylevesque/qrticket/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv   *httptest.Server
	store store.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	e, err := crypto.NewEngine(bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 32), crypto.AESGCM)
	require.NoError(t, err)

	dir := t.TempDir()
	sink, err := qr.NewPNGSink(filepath.Join(dir, "qr_codes"), "/tickets", 128)
	require.NoError(t, err)
	st, err := store.NewJSONStore(filepath.Join(dir, "tickets.json"))
	require.NoError(t, err)

	h := NewHandler(ticket.NewIssuer(e, sink), ticket.NewVerifier(e), st, sink, logging.Nop())
	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: st}
}

func janeForm() url.Values {
	return url.Values{
		"full_name":  {"Jane Doe"},
		"email":      {"jane@example.com"},
		"citizen_id": {"1234567890123"},
		"birth_date": {"1990-05-17"},
		"gender":     {"F"},
		"district":   {"Central"},
		"city":       {"Springfield"},
	}
}

func (s *testServer) issue(t *testing.T, path string) CreateTicketResponse {
	t.Helper()
	resp, err := http.PostForm(s.srv.URL+path, janeForm())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out CreateTicketResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *testServer) verify(t *testing.T, path string, form url.Values) (int, bool) {
	t.Helper()
	resp, err := http.PostForm(s.srv.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, false
	}
	var out map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out["valid"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateTicket_Form(t *testing.T) {
	s := newTestServer(t)
	out := s.issue(t, "/tickets")

	assert.True(t, strings.HasPrefix(out.TicketRef, "t-"))
	assert.Equal(t, "/tickets/"+out.TicketRef+"/qr.png", out.QRURL)
	assert.Equal(t, "Jane Doe", out.Ticket.FullName)
	assert.Equal(t, "Springfield", out.Ticket.City)

	rec, err := s.store.Get(context.Background(), out.TicketRef)
	require.NoError(t, err)
	assert.Equal(t, out.ServerPayload, rec.ServerPayload)
	assert.FileExists(t, rec.QRImage)
}

func TestCreateTicket_JSON(t *testing.T) {
	s := newTestServer(t)
	body := `{"full_name":"Jane Doe","email":"jane@example.com","citizen_id":"1234567890123",
		"birth_date":"1990-05-17","gender":"F","district":"Central","city":"Springfield"}`
	resp, err := http.Post(s.srv.URL+"/tickets", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestCreateTicket_ValidationError(t *testing.T) {
	s := newTestServer(t)
	form := janeForm()
	form.Set("email", "not-an-email")

	resp, err := http.PostForm(s.srv.URL+"/tickets", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "email", out["field"])

	list, err := s.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateTicket_BadJSON(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Post(s.srv.URL+"/tickets", "application/json", strings.NewReader(`{"nick":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyTicket(t *testing.T) {
	s := newTestServer(t)
	a := s.issue(t, "/tickets")
	b := s.issue(t, "/generate_ticket")

	tests := []struct {
		name   string
		form   url.Values
		status int
		valid  bool
	}{
		{"server payload", url.Values{"qr_data": {a.QRPayload}, "server_data": {a.ServerPayload}}, 200, true},
		{"ticket ref", url.Values{"qr_data": {a.QRPayload}, "ticket_ref": {a.TicketRef}}, 200, true},
		{"scanner whitespace", url.Values{"qr_data": {" " + a.QRPayload + "\r\n"}, "ticket_ref": {a.TicketRef}}, 200, true},
		{"other ticket's server payload", url.Values{"qr_data": {a.QRPayload}, "server_data": {b.ServerPayload}}, 200, false},
		{"other ticket's ref", url.Values{"qr_data": {b.QRPayload}, "ticket_ref": {a.TicketRef}}, 200, false},
		{"wrong server payload", url.Values{"qr_data": {a.QRPayload}, "server_data": {"not-the-real-server-payload"}}, 200, false},
		{"corrupted qr", url.Values{"qr_data": {"corrupted-payload-string"}, "server_data": {a.ServerPayload}}, 200, false},
		{"not base64", url.Values{"qr_data": {"a+b/c="}, "server_data": {a.ServerPayload}}, 200, false},
		{"unknown ref", url.Values{"qr_data": {a.QRPayload}, "ticket_ref": {"t-nope"}}, 200, false},
		{"missing qr", url.Values{"server_data": {a.ServerPayload}}, 400, false},
		{"missing server side", url.Values{"qr_data": {a.QRPayload}}, 400, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/tickets/verify", "/verify_card"} {
				status, valid := s.verify(t, path, tt.form)
				assert.Equal(t, tt.status, status, path)
				assert.Equal(t, tt.valid, valid, path)
			}
		})
	}
}

func TestVerifyTicket_JSON(t *testing.T) {
	s := newTestServer(t)
	a := s.issue(t, "/tickets")

	body, err := json.Marshal(VerifyTicketRequest{QRData: a.QRPayload, TicketRef: a.TicketRef})
	require.NoError(t, err)
	resp, err := http.Post(s.srv.URL+"/tickets/verify", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, map[string]any{"valid": true}, out)
}

func TestQRImage(t *testing.T) {
	s := newTestServer(t)
	a := s.issue(t, "/tickets")

	resp, err := http.Get(s.srv.URL + a.QRURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp2, err := http.Get(s.srv.URL + "/tickets/t-unknown/qr.png")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	resp, err := http.Get(s.srv.URL + "/tickets/verify")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
