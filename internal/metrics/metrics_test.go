package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestHandlerExposesCounters(t *testing.T) {
	before := testutil.ToFloat64(FeedCache.WithLabelValues("hit"))
	FeedCache.WithLabelValues("hit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FeedCache.WithLabelValues("hit")))

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `spot_feed_cache_total{result="hit"}`)
}
