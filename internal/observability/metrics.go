// Package observability holds the process-wide metrics and tracing setup.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parentslist_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// MembershipOperations counts lifecycle operations by name and outcome code.
	MembershipOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parentslist_membership_operations_total",
		Help: "Membership lifecycle operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// UnitOfWorkDuration records how long each transactional operation held its transaction.
	UnitOfWorkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parentslist_unit_of_work_duration_seconds",
		Help:    "Duration of transactional units of work in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// ListLockWait records how long callers waited to acquire a per-list lock.
	ListLockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parentslist_list_lock_wait_seconds",
		Help:    "Time spent waiting for a per-list lock",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"backend"})

	// NotificationsPublished counts published notifications by type and result.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parentslist_notifications_published_total",
		Help: "Notifications published to Redis by type and result",
	}, []string{"type", "result"})
)
