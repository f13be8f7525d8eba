package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts orchestrator state transitions by edge.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_state_transitions_total",
		Help: "Number of transaction state transitions, labeled by edge.",
	}, []string{"from", "to"})

	// Dispatches counts leg dispatches by participant and result.
	Dispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_leg_dispatches_total",
		Help: "Number of dispatched legs, labeled by participant and result.",
	}, []string{"participant", "result"})

	// Reversals counts compensation reversal attempts by participant and result.
	Reversals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_reversal_attempts_total",
		Help: "Number of compensation reversal attempts.",
	}, []string{"participant", "result"})

	// StaleOutcomes counts outcomes dropped because the record had moved on.
	StaleOutcomes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_stale_outcomes_total",
		Help: "Number of participant outcomes ignored as stale or duplicate.",
	})

	// DuplicateSubmissions counts submissions answered from the idempotency ledger.
	DuplicateSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_duplicate_submissions_total",
		Help: "Number of submissions short-circuited by the idempotency ledger.",
	})

	// CompensationAlerts counts reversals that exhausted retries.
	CompensationAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orchestrator_compensation_alerts_total",
		Help: "Number of compensations escalated to an operator alert.",
	})
)
