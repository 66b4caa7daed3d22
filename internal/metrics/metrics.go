package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ranking metrics
	RankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_rank_requests_total",
			Help: "Total number of ranking requests",
		},
		[]string{"status"}, // success, partial, error
	)

	RankRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polyrank_rank_request_duration_seconds",
			Help:    "Duration of ranking requests end to end",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	WalletsRanked = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polyrank_wallets_ranked",
			Help:    "Distribution of distinct wallets per ranking request",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	// Per-wallet activity fetch metrics
	ActivityFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_activity_fetches_total",
			Help: "Total number of per-wallet activity fetches",
		},
		[]string{"status"}, // success, error
	)

	// Market scoring metrics
	ScoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_score_requests_total",
			Help: "Total number of market scoring requests",
		},
		[]string{"status"}, // success, error
	)

	MarketScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polyrank_market_scores",
			Help:    "Distribution of market scores (0-100 scale)",
			Buckets: []float64{10, 20, 30, 45, 55, 65, 70, 80, 90, 100},
		},
	)

	// Alert metrics
	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_alerts_triggered_total",
			Help: "Total number of alerts triggered",
		},
		[]string{"severity"}, // alert, warn
	)

	AlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_alerts_sent_total",
			Help: "Total number of alerts sent",
		},
		[]string{"status", "type"}, // success/error, discord/smtp/log
	)

	AlertsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polyrank_alerts_suppressed_total",
			Help: "Total number of alerts suppressed due to cooldown",
		},
	)

	// Upstream API metrics
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_api_requests_total",
			Help: "Total number of upstream API requests",
		},
		[]string{"api", "endpoint", "status"}, // data/gamma, /trades, success/error
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyrank_api_request_duration_seconds",
			Help:    "Duration of upstream API requests",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "endpoint"},
	)

	// Database metrics
	DatabaseQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"}, // get/insert, success/error
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyrank_database_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// System health
	HealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyrank_health_checks_total",
			Help: "Total number of health check requests",
		},
		[]string{"status"}, // healthy/unhealthy
	)
)

// RecordRankRequest records one ranking request end to end
func RecordRankRequest(duration time.Duration, wallets int, status string) {
	RankRequests.WithLabelValues(status).Inc()
	RankRequestDuration.Observe(duration.Seconds())
	WalletsRanked.Observe(float64(wallets))
}

// RecordActivityFetch records the outcome of one per-wallet activity fetch
func RecordActivityFetch(status string) {
	ActivityFetches.WithLabelValues(status).Inc()
}

// RecordScoreRequest records a market scoring request and the scores it produced
func RecordScoreRequest(scores []int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ScoreRequests.WithLabelValues(status).Inc()
	for _, s := range scores {
		MarketScores.Observe(float64(s))
	}
}

// RecordAlert records alert metrics
func RecordAlert(severity, sendStatus, alertType string, suppressed bool) {
	if suppressed {
		AlertsSuppressed.Inc()
		return
	}

	AlertsTriggered.WithLabelValues(severity).Inc()
	AlertsSent.WithLabelValues(sendStatus, alertType).Inc()
}

// RecordAPIRequest records upstream API request metrics
func RecordAPIRequest(api, endpoint string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	APIRequests.WithLabelValues(api, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(api, endpoint).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseQueries.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHealthCheck records health check status
func RecordHealthCheck(healthy bool) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	HealthChecks.WithLabelValues(status).Inc()
}
