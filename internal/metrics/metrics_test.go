package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSyncDelivery(t *testing.T) {
	before := testutil.ToFloat64(syncDeliveries.WithLabelValues("fastapi", ResultadoReintento))

	RecordSyncDelivery("fastapi", ResultadoReintento, 20*time.Millisecond)

	after := testutil.ToFloat64(syncDeliveries.WithLabelValues("fastapi", ResultadoReintento))
	assert.Equal(t, before+1, after)
}

func TestRecordHTTPRequest(t *testing.T) {
	RecordHTTPRequest("GET", "/api/personas", 200, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/personas", "200")))
}
