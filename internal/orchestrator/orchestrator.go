// Package orchestrator drives a transaction from submission to a single
// terminal state. Each correlation id owns one record; all transitions for a
// record run under that record's lock (single-writer discipline) while
// unrelated transactions proceed concurrently.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/metrics"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/repository"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/validation"
)

// Dispatcher sends one leg command and blocks until its outcome (or a
// synthesized TIMEOUT) is available.
type Dispatcher interface {
	Send(ctx context.Context, cmd events.LegCommand) events.ParticipantOutcome
}

// Compensator reverses the succeeded legs of a partially failed record.
type Compensator interface {
	Compensate(ctx context.Context, rec *models.TransactionRecord) error
}

// Directory resolves the participant service owning an account.
type Directory interface {
	ResolveParticipant(accountNumber string) (string, error)
}

// Ledger is the idempotency ledger holding terminal record snapshots.
type Ledger interface {
	RecordIfAbsent(ctx context.Context, eventID string, rec *models.TransactionRecord) (bool, *models.TransactionRecord, error)
	Lookup(ctx context.Context, eventID string) (*models.TransactionRecord, error)
}

// RecordStore is the durable store for in-flight records.
type RecordStore interface {
	Save(ctx context.Context, rec *models.TransactionRecord) error
	Load(ctx context.Context, eventID string) (*models.TransactionRecord, error)
	CompareAndSwap(ctx context.Context, rec *models.TransactionRecord, expectedRevision uint64) error
}

// TransitionObserver receives every state transition for the observability
// layer.
type TransitionObserver interface {
	StateChanged(eventID string, from, to models.State, revision uint64)
}

// SubmitResult is the outcome handle returned to the inbound surface.
// Duplicate marks submissions answered from the idempotency ledger without
// any new dispatch.
type SubmitResult struct {
	Record    *models.TransactionRecord
	Duplicate bool
}

// Orchestrator owns TransactionRecord aggregates for the duration of
// processing.
type Orchestrator struct {
	store       RecordStore
	ledger      Ledger
	dispatcher  Dispatcher
	compensator Compensator
	directory   Directory
	observer    TransitionObserver

	mu      sync.Mutex
	handles map[string]*recordHandle
}

// recordHandle serializes all updates for one correlation id.
type recordHandle struct {
	mu  sync.Mutex
	rec *models.TransactionRecord
}

func New(store RecordStore, ledger Ledger, dispatcher Dispatcher, compensator Compensator, directory Directory, observer TransitionObserver) *Orchestrator {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Orchestrator{
		store:       store,
		ledger:      ledger,
		dispatcher:  dispatcher,
		compensator: compensator,
		directory:   directory,
		observer:    observer,
		handles:     make(map[string]*recordHandle),
	}
}

// Submit runs one transaction to its terminal state. Re-submitting an event
// id that already finalized returns the cached terminal record and dispatches
// nothing.
func (o *Orchestrator) Submit(ctx context.Context, req events.TransactionRequest) (*SubmitResult, error) {
	if cached, err := o.ledger.Lookup(ctx, req.EventID); err != nil {
		return nil, err
	} else if cached != nil {
		metrics.DuplicateSubmissions.Inc()
		return &SubmitResult{Record: cached, Duplicate: true}, nil
	}

	validated, verr := validation.Validate(req)
	if verr != nil {
		return nil, verr
	}
	req = validated.Request()
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	legs, err := o.legsFor(req)
	if err != nil {
		return nil, err
	}

	rec := models.NewTransactionRecord(req, legs)
	if err := o.store.Save(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			// A concurrent submission of the same event id won the insert.
			existing, loadErr := o.store.Load(ctx, req.EventID)
			if loadErr != nil {
				return nil, loadErr
			}
			metrics.DuplicateSubmissions.Inc()
			return &SubmitResult{Record: existing, Duplicate: true}, nil
		}
		return nil, err
	}

	handle := o.handleFor(rec)
	defer o.dropHandle(req.EventID)

	handle.mu.Lock()
	o.transition(ctx, handle.rec, models.StateDispatched, "")
	handle.rec.DispatchRevision = handle.rec.Revision
	commands := o.legCommands(handle.rec)
	handle.mu.Unlock()

	outcomes := make(chan events.ParticipantOutcome, len(commands))
	for _, cmd := range commands {
		cmd := cmd
		go func() {
			outcomes <- o.dispatcher.Send(ctx, cmd)
		}()
	}
	for range commands {
		o.applyOutcome(ctx, handle, <-outcomes)
	}

	handle.mu.Lock()
	needsCompensation := handle.rec.State == models.StateCompensating
	snapshot := handle.rec.Clone()
	handle.mu.Unlock()

	if needsCompensation {
		compErr := o.compensator.Compensate(ctx, snapshot)
		handle.mu.Lock()
		if compErr != nil {
			o.transition(ctx, handle.rec, models.StateFailed, "compensation failed: "+compErr.Error())
		} else {
			o.transition(ctx, handle.rec, models.StateCompensated, handle.rec.Reason)
		}
		handle.mu.Unlock()
	}

	handle.mu.Lock()
	final := handle.rec.Clone()
	handle.mu.Unlock()

	if isNew, existing, err := o.ledger.RecordIfAbsent(ctx, req.EventID, final); err != nil {
		log.Printf("Failed to finalize ledger entry for %s: %v", req.EventID, err)
	} else if !isNew && existing != nil {
		// Another worker finalized first; its snapshot is authoritative.
		return &SubmitResult{Record: existing, Duplicate: true}, nil
	}

	return &SubmitResult{Record: final}, nil
}

// HandleOutcome applies an outcome delivered outside the Submit wait path,
// e.g. a late duplicate from the messaging layer. Outcomes for unknown or
// already terminal records are dropped.
func (o *Orchestrator) HandleOutcome(ctx context.Context, out events.ParticipantOutcome) {
	o.mu.Lock()
	handle, ok := o.handles[out.EventID]
	o.mu.Unlock()
	if !ok {
		metrics.StaleOutcomes.Inc()
		log.Printf("Dropping outcome for unknown or finalized transaction %s", out.EventID)
		return
	}
	o.applyOutcome(ctx, handle, out)
}

// GetTransaction returns the current or terminal record for an event id.
func (o *Orchestrator) GetTransaction(ctx context.Context, eventID string) (*models.TransactionRecord, error) {
	if cached, err := o.ledger.Lookup(ctx, eventID); err == nil && cached != nil {
		return cached, nil
	}
	return o.store.Load(ctx, eventID)
}

// legsFor computes the participant set: one leg for deposits and
// withdrawals, a debit and a credit leg for transfers.
func (o *Orchestrator) legsFor(req events.TransactionRequest) ([]models.Leg, error) {
	source, err := o.directory.ResolveParticipant(req.SourceAccount)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case events.TypeDeposit:
		return []models.Leg{{Participant: source, Account: req.SourceAccount, Operation: events.OpCredit}}, nil
	case events.TypeWithdrawal:
		return []models.Leg{{Participant: source, Account: req.SourceAccount, Operation: events.OpDebit}}, nil
	case events.TypeTransfer:
		destination, err := o.directory.ResolveParticipant(req.DestinationAccount)
		if err != nil {
			return nil, err
		}
		return []models.Leg{
			{Participant: source, Account: req.SourceAccount, Operation: events.OpDebit},
			{Participant: destination, Account: req.DestinationAccount, Operation: events.OpCredit},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported transaction type %q", req.Type)
	}
}

func (o *Orchestrator) legCommands(rec *models.TransactionRecord) []events.LegCommand {
	commands := make([]events.LegCommand, 0, len(rec.Legs))
	for _, leg := range rec.Legs {
		commands = append(commands, events.LegCommand{
			EventID:     rec.EventID,
			Participant: leg.Participant,
			Account:     leg.Account,
			Operation:   leg.Operation,
			Amount:      rec.Request.Amount,
			ClientID:    rec.Request.ClientID,
			Revision:    rec.Revision,
			Timestamp:   time.Now().UTC(),
		})
	}
	return commands
}

// applyOutcome feeds one participant outcome through the state machine. The
// decision depends only on the set of outcomes received so far, never on
// arrival order.
func (o *Orchestrator) applyOutcome(ctx context.Context, handle *recordHandle, out events.ParticipantOutcome) {
	handle.mu.Lock()
	defer handle.mu.Unlock()

	rec := handle.rec
	if rec.State.Terminal() || out.Revision < rec.DispatchRevision {
		metrics.StaleOutcomes.Inc()
		log.Printf("Ignoring stale outcome for %s from %s (state=%s, revision=%d)",
			out.EventID, out.Participant, rec.State, out.Revision)
		return
	}
	if _, dup := rec.Outcomes[out.Participant]; dup {
		metrics.StaleOutcomes.Inc()
		log.Printf("Ignoring duplicate outcome for %s from %s", out.EventID, out.Participant)
		return
	}
	if _, known := rec.LegFor(out.Participant); !known {
		log.Printf("Ignoring outcome for %s from unexpected participant %s", out.EventID, out.Participant)
		return
	}

	rec.Outcomes[out.Participant] = out
	succeeded := len(rec.SucceededOutcomes())

	if len(rec.Outcomes) < len(rec.Legs) {
		// The sibling leg is still pending (bounded by the leg timeout).
		// Deciding FAILED here could strand an already-applied leg without
		// compensation, so only a confirmed success advances the state.
		if out.Result == events.ResultSuccess && rec.State == models.StateDispatched {
			o.transition(ctx, rec, models.StatePartiallyConfirmed, "")
		}
		return
	}

	switch {
	case succeeded == len(rec.Legs):
		o.transition(ctx, rec, models.StateConfirmed, "")
	case succeeded == 0:
		// Nothing was applied anywhere; fail without compensation.
		o.transition(ctx, rec, models.StateFailed, failureReason(rec))
	default:
		o.transition(ctx, rec, models.StateCompensating, failureReason(rec))
	}
}

// failureReason names the first failed leg in dispatch order.
func failureReason(rec *models.TransactionRecord) string {
	for _, leg := range rec.Legs {
		if out, ok := rec.Outcomes[leg.Participant]; ok && out.Result.Failure() {
			return fmt.Sprintf("%s at %s", out.Result, leg.Participant)
		}
	}
	return "participant failure"
}

// transition advances the record state, bumps the revision, persists via CAS
// and notifies the observer. Callers hold the record lock.
func (o *Orchestrator) transition(ctx context.Context, rec *models.TransactionRecord, to models.State, reason string) {
	from := rec.State
	expected := rec.Revision

	rec.State = to
	rec.Reason = reason
	rec.Revision++
	rec.UpdatedAt = time.Now().UTC()

	if err := o.store.CompareAndSwap(ctx, rec, expected); err != nil {
		// Single-writer discipline makes this unreachable in practice; a
		// conflict here means the store was mutated behind our back.
		log.Printf("Failed to persist transition %s -> %s for %s: %v", from, to, rec.EventID, err)
	}

	metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	o.observer.StateChanged(rec.EventID, from, to, rec.Revision)
}

func (o *Orchestrator) handleFor(rec *models.TransactionRecord) *recordHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	handle, ok := o.handles[rec.EventID]
	if !ok {
		handle = &recordHandle{rec: rec}
		o.handles[rec.EventID] = handle
	}
	return handle
}

func (o *Orchestrator) dropHandle(eventID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.handles, eventID)
}
