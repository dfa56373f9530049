package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spot_interactions_total",
		Help: "Like, unlike, comment and follow mutations by outcome",
	}, []string{"action", "outcome"})

	InvariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spot_invariant_violations_total",
		Help: "Counter mutations rejected because they would break a counter invariant",
	}, []string{"entity"})

	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spot_posts_created_total",
		Help: "The total number of created posts",
	})

	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spot_gateway_calls_total",
		Help: "Outbound gateway calls by service and outcome",
	}, []string{"service", "outcome"})

	FeedCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spot_feed_cache_total",
		Help: "Feed cache lookups by result",
	}, []string{"result"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spot_events_published_total",
		Help: "Domain events handed to the publisher by type and outcome",
	}, []string{"type", "outcome"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spot_http_request_duration_seconds",
		Help:    "HTTP request latency by route, method and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
