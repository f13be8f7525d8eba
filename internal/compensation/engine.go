// Package compensation undoes already-applied legs when a sibling leg of a
// multi-leg transaction fails. Reversals are retried a bounded number of
// times with exponential backoff; exhausting the retries is promoted to an
// operator-visible alert because money may be stuck in an inconsistent
// state. Indefinite retry of a financial operation is deliberately not
// supported.
package compensation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/metrics"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
)

// ErrReversalExhausted marks a reversal that did not succeed within the
// configured attempts.
var ErrReversalExhausted = errors.New("compensation retries exhausted")

// Reverser dispatches reversal commands; the dispatch channel implements it.
type Reverser interface {
	SendReversal(ctx context.Context, cmd events.ReversalCommand) events.ParticipantOutcome
}

// Alerter is the operator alert channel, distinct from the normal response
// path.
type Alerter interface {
	Alert(ctx context.Context, alert events.CompensationAlert)
}

// Engine issues reversing operations for the succeeded legs of a record in
// COMPENSATING state.
type Engine struct {
	reverser    Reverser
	alerter     Alerter
	maxAttempts int
	backoffBase time.Duration
}

func NewEngine(reverser Reverser, alerter Alerter, maxAttempts int, backoffBase time.Duration) *Engine {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Engine{
		reverser:    reverser,
		alerter:     alerter,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Compensate reverses every succeeded leg of rec using the compensation
// token captured in that leg's outcome. Returns ErrReversalExhausted after
// raising the operator alert when any reversal fails all its attempts.
func (e *Engine) Compensate(ctx context.Context, rec *models.TransactionRecord) error {
	for _, outcome := range rec.SucceededOutcomes() {
		leg, ok := rec.LegFor(outcome.Participant)
		if !ok {
			return fmt.Errorf("no leg recorded for participant %s on %s", outcome.Participant, rec.EventID)
		}
		if err := e.reverseLeg(ctx, rec, leg, outcome); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reverseLeg(ctx context.Context, rec *models.TransactionRecord, leg models.Leg, outcome events.ParticipantOutcome) error {
	cmd := events.ReversalCommand{
		EventID:           rec.EventID,
		Participant:       leg.Participant,
		Account:           leg.Account,
		Operation:         leg.Operation.Reverse(),
		Amount:            rec.Request.Amount,
		CompensationToken: outcome.CompensationToken,
	}

	var last events.Result
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		cmd.Attempt = attempt
		cmd.Timestamp = time.Now().UTC()

		out := e.reverser.SendReversal(ctx, cmd)
		if out.Result == events.ResultSuccess {
			return nil
		}
		last = out.Result
		log.Printf("compensation: reversal %s/%s attempt %d/%d returned %s",
			rec.EventID, leg.Participant, attempt, e.maxAttempts, out.Result)

		if attempt < e.maxAttempts {
			if err := sleepBackoff(ctx, e.backoffBase, attempt); err != nil {
				break
			}
		}
	}

	metrics.CompensationAlerts.Inc()
	e.alerter.Alert(ctx, events.CompensationAlert{
		EventID:     rec.EventID,
		Participant: leg.Participant,
		Account:     leg.Account,
		Reason:      string(last),
		Attempts:    e.maxAttempts,
		At:          time.Now().UTC(),
	})
	return fmt.Errorf("%w: participant %s", ErrReversalExhausted, leg.Participant)
}

// sleepBackoff waits base*2^(attempt-1), honouring context cancellation.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base << (attempt - 1)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
