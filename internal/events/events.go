package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	TransactionRequested = "transaction.requested"
	LegCommanded         = "leg.commanded"
	LegReversed          = "leg.reversed"
	StateChanged         = "transaction.state_changed"
	CompensationAlerted  = "compensation.alerted"
)

// Stream names
const (
	RequestStream    = "transaction.requests"
	TransitionStream = "transaction.transitions"
	AlertStream      = "alerts.compensation"
)

// CommandStream returns the stream a participant consumes leg commands from.
func CommandStream(participant string) string {
	return "commands." + participant
}

// OutcomeKey returns the Redis list key a participant pushes its outcome to.
func OutcomeKey(eventID, participant string) string {
	return "outcome:" + eventID + ":" + participant
}

// ReversalOutcomeKey is the reply key for a compensating reversal.
func ReversalOutcomeKey(eventID, participant string) string {
	return "outcome:" + eventID + ":" + participant + ":reversal"
}

// TransactionType enumerates the supported transaction kinds.
type TransactionType string

const (
	TypeDeposit    TransactionType = "DEPOSIT"
	TypeWithdrawal TransactionType = "WITHDRAWAL"
	TypeTransfer   TransactionType = "TRANSFER"
)

// Operation is the posting a leg applies to the participant's account.
type Operation string

const (
	OpDebit  Operation = "DEBIT"
	OpCredit Operation = "CREDIT"
)

// Reverse returns the operation that undoes op.
func (o Operation) Reverse() Operation {
	if o == OpDebit {
		return OpCredit
	}
	return OpDebit
}

// Result is a participant's answer to a dispatched leg.
type Result string

const (
	ResultSuccess           Result = "SUCCESS"
	ResultInsufficientFunds Result = "INSUFFICIENT_FUNDS"
	ResultAccountNotFound   Result = "ACCOUNT_NOT_FOUND"
	ResultTimeout           Result = "TIMEOUT"
	ResultRejected          Result = "REJECTED"
)

// Failure reports whether the result is a definitive leg failure.
func (r Result) Failure() bool {
	return r != ResultSuccess
}

// Base event structure
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DecodeData re-decodes the loosely typed Data payload of an event into a
// concrete contract type.
func DecodeData[T any](e Event) (T, error) {
	var v T
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return v, fmt.Errorf("failed to encode event data: %w", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode event data: %w", err)
	}
	return v, nil
}

// TransactionRequest is the unit of work submitted by an originating service.
// EventID is the correlation id shared by every leg, retry and reversal of
// the transaction.
type TransactionRequest struct {
	EventID            string          `json:"eventId"`
	Type               TransactionType `json:"type"`
	Amount             decimal.Decimal `json:"amount"`
	SourceAccount      string          `json:"sourceAccount"`
	DestinationAccount string          `json:"destinationAccount,omitempty"`
	ClientID           string          `json:"clientId"`
	OriginatingService string          `json:"originatingService"`
	Timestamp          time.Time       `json:"timestamp"`
}

// LegCommand orders one participant to apply one posting of a transaction.
type LegCommand struct {
	EventID     string          `json:"eventId"`
	Participant string          `json:"participant"`
	Account     string          `json:"account"`
	Operation   Operation       `json:"operation"`
	Amount      decimal.Decimal `json:"amount"`
	ClientID    string          `json:"clientId"`
	Revision    uint64          `json:"revision"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ReversalCommand orders a participant to undo a previously applied leg.
// The compensation token is the opaque handle the participant returned when
// it applied the leg; receivers must treat reversals as idempotent.
type ReversalCommand struct {
	EventID           string          `json:"eventId"`
	Participant       string          `json:"participant"`
	Account           string          `json:"account"`
	Operation         Operation       `json:"operation"`
	Amount            decimal.Decimal `json:"amount"`
	CompensationToken string          `json:"compensationToken"`
	Attempt           int             `json:"attempt"`
	Timestamp         time.Time       `json:"timestamp"`
}

// ParticipantOutcome is a participant's response to a dispatched leg.
// Revision echoes the record revision carried by the leg command so late
// deliveries can be recognised as stale.
type ParticipantOutcome struct {
	EventID           string    `json:"eventId"`
	Participant       string    `json:"participant"`
	Result            Result    `json:"result"`
	CompensationToken string    `json:"compensationToken,omitempty"`
	Revision          uint64    `json:"revision"`
	Timestamp         time.Time `json:"timestamp"`
}

// StateTransition is the structured observability event emitted on every
// orchestrator state change.
type StateTransition struct {
	EventID  string    `json:"eventId"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Revision uint64    `json:"revision"`
	At       time.Time `json:"at"`
}

// CompensationAlert is raised when a reversal exhausted its retries and an
// operator has to reconcile the stuck balance by hand.
type CompensationAlert struct {
	EventID     string    `json:"eventId"`
	Participant string    `json:"participant"`
	Account     string    `json:"account"`
	Reason      string    `json:"reason"`
	Attempts    int       `json:"attempts"`
	At          time.Time `json:"at"`
}
