package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_decisions_issued_total",
		Help: "Moderator decisions recorded, by decision.",
	}, []string{"decision"})

	joinEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_join_evaluations_total",
		Help: "Join requests evaluated, by outcome (admitted or rejection reason).",
	}, []string{"outcome"})

	reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_reconciliations_total",
		Help: "Post-admission reconciliation outcomes.",
	}, []string{"outcome"})
)
