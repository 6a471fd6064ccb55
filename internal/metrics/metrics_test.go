package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	m := New()
	m.Operation("open_bid", "ok")
	m.Operation("open_bid", "ok")
	m.Operation("open_bid", "BidTooLow")
	m.ActiveBids(3)
	m.Escrow(1_500_000)
	m.Request(http.MethodPost, http.StatusConflict)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("open_bid", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("open_bid", "BidTooLow")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeBids))
	assert.Equal(t, 1_500_000.0, testutil.ToFloat64(m.escrow))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "Conflict")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Operation("settle", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `auction_operations_total{op="settle",outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
