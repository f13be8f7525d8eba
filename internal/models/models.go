package models

import (
	"time"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
)

// State is the orchestrator state of a transaction record.
type State string

const (
	StateReceived           State = "RECEIVED"
	StateDispatched         State = "DISPATCHED"
	StatePartiallyConfirmed State = "PARTIALLY_CONFIRMED"
	StateConfirmed          State = "CONFIRMED"
	StateCompensating       State = "COMPENSATING"
	StateCompensated        State = "COMPENSATED"
	StateFailed             State = "FAILED"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateCompensated || s == StateFailed
}

// Leg is one participant-directed sub-operation of a transaction.
type Leg struct {
	Participant string           `json:"participant"`
	Account     string           `json:"account"`
	Operation   events.Operation `json:"operation"`
}

// TransactionRecord is the orchestrator-owned aggregate for one correlation
// id. Revision increases by one on every state transition; DispatchRevision
// is the revision the leg commands were stamped with, so outcomes echoing an
// older revision can be dropped as stale.
type TransactionRecord struct {
	EventID          string                               `json:"eventId"`
	Request          events.TransactionRequest            `json:"request"`
	Legs             []Leg                                `json:"legs"`
	Outcomes         map[string]events.ParticipantOutcome `json:"outcomes"`
	State            State                                `json:"state"`
	Reason           string                               `json:"reason,omitempty"`
	Revision         uint64                               `json:"revision"`
	DispatchRevision uint64                               `json:"dispatchRevision"`
	CreatedAt        time.Time                            `json:"createdTimestamp"`
	UpdatedAt        time.Time                            `json:"updatedTimestamp"`
}

// NewTransactionRecord builds the initial RECEIVED record for a request.
func NewTransactionRecord(req events.TransactionRequest, legs []Leg) *TransactionRecord {
	now := time.Now().UTC()
	return &TransactionRecord{
		EventID:   req.EventID,
		Request:   req,
		Legs:      legs,
		Outcomes:  make(map[string]events.ParticipantOutcome),
		State:     StateReceived,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SucceededOutcomes returns the outcomes of legs that were applied by their
// participant, in leg order.
func (r *TransactionRecord) SucceededOutcomes() []events.ParticipantOutcome {
	var succeeded []events.ParticipantOutcome
	for _, leg := range r.Legs {
		if out, ok := r.Outcomes[leg.Participant]; ok && out.Result == events.ResultSuccess {
			succeeded = append(succeeded, out)
		}
	}
	return succeeded
}

// LegFor returns the leg dispatched to the given participant.
func (r *TransactionRecord) LegFor(participant string) (Leg, bool) {
	for _, leg := range r.Legs {
		if leg.Participant == participant {
			return leg, true
		}
	}
	return Leg{}, false
}

// Clone returns a deep copy safe to hand outside the record's critical
// section.
func (r *TransactionRecord) Clone() *TransactionRecord {
	cp := *r
	cp.Legs = append([]Leg(nil), r.Legs...)
	cp.Outcomes = make(map[string]events.ParticipantOutcome, len(r.Outcomes))
	for k, v := range r.Outcomes {
		cp.Outcomes[k] = v
	}
	return &cp
}
