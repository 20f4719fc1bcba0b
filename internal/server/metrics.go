package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestTotal counts API requests by route and status code
	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "changelog_http_requests_total",
		Help: "Total API requests by route and status code",
	}, []string{"route", "status"})

	// requestDuration tracks API latency
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "changelog_http_request_duration_seconds",
		Help:    "API request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"route"})

	// resolveTotal counts ref resolutions by outcome
	resolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "changelog_resolve_total",
		Help: "Ref resolutions by outcome",
	}, []string{"outcome"})

	rangeCommits = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "changelog_range_commits",
		Help:    "Number of commits returned by changelog range queries",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)
