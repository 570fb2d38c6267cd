// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorloop_submissions_total",
			Help: "Total number of accepted submissions",
		},
		[]string{"status"},
	)

	ReviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorloop_reviews_total",
			Help: "Total number of reviews by decision",
		},
		[]string{"decision"},
	)

	XPGrantedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mentorloop_xp_granted_total",
			Help: "Total XP granted through approvals",
		},
	)

	GradeHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mentorloop_review_grade",
			Help:    "Distribution of grades given on approval",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	EnrollmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorloop_enrollments_total",
			Help: "Course enrollments by event",
		},
		[]string{"event"},
	)

	EngineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentorloop_engine_errors_total",
			Help: "Failed engine operations by kind",
		},
		[]string{"op", "kind"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)
