package observability

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func setupOpsServer(t *testing.T, db Pinger) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	Routes(r, db)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := setupOpsServer(t, stubPinger{})

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("database down", func(t *testing.T) {
		srv := setupOpsServer(t, stubPinger{err: errors.New("connection refused")})

		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "unavailable", body["status"])
		assert.Equal(t, "connection refused", body["database"])
	})
}

func TestMetricsExposesCounters(t *testing.T) {
	NotificationsTotal.WithLabelValues(ResultSuccess).Inc()
	BirthdayOutcomesTotal.WithLabelValues("SUCCESS").Inc()

	srv := setupOpsServer(t, nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `loyaltycast_notifications_total{result="success"}`)
	assert.Contains(t, string(raw), `loyaltycast_birthday_outcomes_total{status="SUCCESS"}`)
}
