package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertwitch/filebox/internal/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestObserveResolve tests the recording of resolutions.
func TestObserveResolve(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveResolve(schema.KindUnknown, true, time.Millisecond)
	m.ObserveResolve(schema.KindUnknown, true, time.Millisecond)
	m.ObserveResolve(schema.KindNotFound, false, time.Millisecond)
	m.ObserveResolve(schema.KindContainmentViolation, false, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.ResolvesTotal.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ResolvesTotal.WithLabelValues("NotFound")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ResolvesTotal.WithLabelValues("ContainmentViolation")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Violations), 0)
}

// TestHandler tests that the metrics are exposed in the text format.
func TestHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordHTTPRequest(http.MethodGet, "/api/list", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `filebox_http_requests_total{method="GET",route="/api/list",status="200"} 1`))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

// TestNew_Independent tests that several [Metrics] can coexist.
func TestNew_Independent(t *testing.T) {
	t.Parallel()

	a := New()
	b := New()

	a.ObserveResolve(schema.KindContainmentViolation, false, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(a.Violations), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.Violations), 0)
}
