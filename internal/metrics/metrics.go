package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts login outcomes by result label
	// (success, rate_limited, locked, invalid_credentials, inactive, restricted).
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})

	// Lockouts counts accounts entering the locked state.
	Lockouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "identity",
		Subsystem: "auth",
		Name:      "lockouts_total",
		Help:      "Accounts locked after exceeding the failed-attempt threshold.",
	})

	// RateLimitRejections counts requests rejected by the fixed-window limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Requests rejected by the rate limiter, by endpoint.",
	}, []string{"endpoint"})

	// Registrations counts registration outcomes.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"outcome"})

	// RiskEscalations counts automated risk-level escalations.
	RiskEscalations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "identity",
		Subsystem: "risk",
		Name:      "escalations_total",
		Help:      "Automated risk escalations, by trigger.",
	}, []string{"trigger"})
)
