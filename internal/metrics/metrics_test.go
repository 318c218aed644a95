package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingMetrics struct {
	NoopMetrics
}

func (f *failingMetrics) IncrementCounter(ctx context.Context, name string, value uint64) error {
	return errors.New("backend down")
}

func TestCollectionFansOut(t *testing.T) {
	ctx := context.Background()
	a := NewLogMetrics(nil)
	b := NewLogMetrics(nil)
	c := NewCollection(a, &failingMetrics{})
	c.Add(b)

	assert.Equal(t, 3, c.Len())

	err := c.IncrementCounter(ctx, MetricSupplyMinted, 2)
	require.Error(t, err)
	assert.Equal(t, uint64(2), a.Counter(MetricSupplyMinted))
	assert.Equal(t, uint64(2), b.Counter(MetricSupplyMinted), "later backends still receive the call")

	require.NoError(t, c.UpdateGauge(ctx, MetricReconcileStuck, 4))
	assert.Equal(t, float64(4), a.Gauge(MetricReconcileStuck))

	require.NoError(t, c.RecordHistogram(ctx, MetricPhaseTwoSeconds, 1.5))
	assert.Equal(t, 1, b.Observations(MetricPhaseTwoSeconds))
}

func TestPrometheusMetricsHandler(t *testing.T) {
	ctx := context.Background()
	p := NewPrometheusMetrics("swapforge_test")

	require.NoError(t, p.IncrementCounter(ctx, MetricTokenTxBuilt, 3))
	require.NoError(t, p.IncrementCounter(ctx, MetricTokenTxBuilt, 1))
	require.NoError(t, p.UpdateGauge(ctx, MetricReconcileStuck, 2))
	require.NoError(t, p.RecordHistogram(ctx, MetricHTTPRequestSeconds, 0.02))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "swapforge_test_token_tx_built_total 4")
	assert.Contains(t, string(body), "swapforge_test_reconcile_stuck 2")
	assert.Contains(t, string(body), "swapforge_test_http_request_seconds_count 1")
}
