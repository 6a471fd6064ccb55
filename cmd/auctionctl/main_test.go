package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/crypto"
)

const testKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

type captured struct {
	method string
	path   string
	query  string
	body   map[string]string
	signer common.Address
}

// fakeDaemon verifies request signatures the way the daemon does and echoes
// a fixed response.
func fakeDaemon(t *testing.T, status int, response string, got *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got.method, got.path, got.query = r.Method, r.URL.Path, r.URL.RawQuery
		got.body = nil
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &got.body))
		}
		if addr := r.Header.Get(crypto.HeaderAddress); addr != "" {
			ts, err := strconv.ParseInt(r.Header.Get(crypto.HeaderTimestamp), 10, 64)
			require.NoError(t, err)
			claimed := common.HexToAddress(addr)
			require.NoError(t, crypto.VerifyRequest(claimed, r.Method, r.URL.Path, ts, raw, r.Header.Get(crypto.HeaderSignature)))
			got.signer = claimed
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, response)
	}))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"auctionctl"}, args...))
	return out.String(), err
}

func TestOpenSignsRequest(t *testing.T) {
	var got captured
	srv := fakeDaemon(t, http.StatusCreated, `{"bidder":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","active":true}`, &got)
	defer srv.Close()

	out, err := run(t, "--url", srv.URL, "--key", testKey, "open", "--account", "0xa001", "--amount", "12.5")
	require.NoError(t, err)

	signer, err := crypto.NewSigner(testKey)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/bids", got.path)
	assert.Equal(t, map[string]string{"account": "0xa001", "amount": "12.5"}, got.body)
	assert.Equal(t, signer.Address(), got.signer)
	assert.Contains(t, out, `"active": true`)
}

func TestCloseSendsSignedDelete(t *testing.T) {
	var got captured
	srv := fakeDaemon(t, http.StatusOK, `{"refunded_deposit":1000}`, &got)
	defer srv.Close()

	_, err := run(t, "--url", srv.URL, "--key", testKey, "close")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, got.method)
	assert.NotEqual(t, common.Address{}, got.signer)
}

func TestMutationWithoutKeyFails(t *testing.T) {
	var got captured
	srv := fakeDaemon(t, http.StatusOK, `{}`, &got)
	defer srv.Close()

	_, err := run(t, "--url", srv.URL, "settle", "--winner", "0x0b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key")
	assert.Empty(t, got.method, "nothing sent")
}

func TestReadsAreUnsignedWithQuery(t *testing.T) {
	var got captured
	srv := fakeDaemon(t, http.StatusOK, `{"bids":[],"count":0}`, &got)
	defer srv.Close()

	_, err := run(t, "--url", srv.URL, "bids", "--active", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, "/api/bids", got.path)
	assert.Equal(t, "active=true&limit=5", got.query)
	assert.Equal(t, common.Address{}, got.signer)
}

func TestAuditSendsAPIKey(t *testing.T) {
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-API-Key")
		assert.Equal(t, "/api/audit", r.URL.Path)
		assert.Equal(t, "limit=10&offset=20", r.URL.RawQuery)
		io.WriteString(w, `{"entries":[],"count":0}`)
	}))
	defer srv.Close()

	out, err := run(t, "--url", srv.URL, "--api-key", "secret", "audit", "--limit", "10", "--offset", "20")
	require.NoError(t, err)
	assert.Equal(t, "secret", key)
	assert.Contains(t, out, `"count": 0`)
}

func TestAPIErrorSurfacesCode(t *testing.T) {
	var got captured
	srv := fakeDaemon(t, http.StatusForbidden, `{"error":"only the agent can perform this action","code":"OnlyAgent"}`, &got)
	defer srv.Close()

	_, err := run(t, "--url", srv.URL, "--key", testKey, "set-minimum", "--amount", "2")
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "OnlyAgent", apiErr.Code)
	assert.Equal(t, map[string]string{"minimum_bid": "2"}, got.body)
}

func TestKeygenWritesUsableKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bidder.key")

	out, err := run(t, "--password", "hunter2", "keygen", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "keyfile: "+path)

	addr, err := run(t, "--keyfile", path, "--password", "hunter2", "address")
	require.NoError(t, err)
	assert.Contains(t, out, "address: "+addr[:len(addr)-1])

	_, err = run(t, "--keyfile", path, "--password", "wrong", "address")
	assert.Error(t, err)
}

func TestMissingRequiredFlag(t *testing.T) {
	_, err := run(t, "--key", testKey, "open", "--account", "0xa001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--amount is required")
}
