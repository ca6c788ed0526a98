package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.DonationsConfirmed.Inc()
	m.DonationsRejected.WithLabelValues("duplicate").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.DonationsConfirmed))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DonationsRejected.WithLabelValues("duplicate")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "roulette_donations_confirmed_total 1")
	assert.Contains(t, string(body), `roulette_donations_rejected_total{reason="duplicate"} 2`)
}
