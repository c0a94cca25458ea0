package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	QueriesTotal.WithLabelValues("bbox").Inc()
	DecodeFailuresTotal.WithLabelValues("out_of_range").Inc()
	ZonesDecodedTotal.Add(3)
	DecodeDurationMs.Observe(0.2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	out := string(body)
	require.Contains(t, out, `zonebuf_queries_total{kind="bbox"}`)
	require.Contains(t, out, `zonebuf_decode_failures_total{reason="out_of_range"}`)
	require.Contains(t, out, "zonebuf_zones_decoded_total")
	require.Contains(t, out, "zonebuf_decode_duration_ms_bucket")
	require.Contains(t, out, "zonebuf_cache_hits_total")
}
