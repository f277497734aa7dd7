// Package metrics exposes Prometheus counters for credential and session
// events.  Collectors register with the default registry and are served by
// the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

var (
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Registration attempts by result.",
	}, []string{"result"})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Refresh-token rotations by result.",
	}, []string{"result"})

	PasswordResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Password reset requests and consumptions by stage and result.",
	}, []string{"stage", "result"})

	Promotions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promotions_total",
		Help:      "Role promotion attempts by result.",
	}, []string{"result"})

	MailDispatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_dispatch_failures_total",
		Help:      "Outbound mail messages that could not be handed to the mail transport.",
	})

	RateLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_hits_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"route"})

	ResetsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_requests_purged_total",
		Help:      "Expired password reset requests removed by the purge job.",
	})
)
