package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsCreated counts created requests by leave type.
	RequestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outpass_requests_created_total",
		Help: "Total number of leave requests created",
	}, []string{"leave_type"})

	// Decisions counts applied decisions by slot and outcome.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outpass_decisions_total",
		Help: "Total number of approval decisions applied",
	}, []string{"role", "decision"})

	// DecideConflicts counts conditional writes lost to a concurrent decision.
	DecideConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outpass_decide_conflicts_total",
		Help: "Total number of decide attempts retried after a concurrent modification",
	})

	// GateTransitions counts check-outs and check-ins.
	GateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outpass_gate_transitions_total",
		Help: "Total number of gate check-outs and check-ins",
	}, []string{"cause"})
)
