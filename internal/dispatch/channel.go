// Package dispatch carries leg commands to participant services and collects
// their outcomes. The channel bounds the wait per leg and caps concurrent
// dispatches per participant so a slow service cannot be overrun.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/metrics"
)

// Transport delivers a single command and blocks for the participant's reply.
// Receivers deduplicate by event id + participant, so at-least-once delivery
// is safe.
type Transport interface {
	Deliver(ctx context.Context, cmd events.LegCommand) (events.ParticipantOutcome, error)
	DeliverReversal(ctx context.Context, cmd events.ReversalCommand) (events.ParticipantOutcome, error)
}

// Channel is the dispatch/outcome channel used by the orchestrator and the
// compensation engine.
type Channel struct {
	transport   Transport
	legTimeout  time.Duration
	maxInFlight int

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewChannel(transport Transport, legTimeout time.Duration, maxInFlight int) *Channel {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Channel{
		transport:   transport,
		legTimeout:  legTimeout,
		maxInFlight: maxInFlight,
		slots:       make(map[string]chan struct{}),
	}
}

// Send dispatches one leg and waits for its outcome. A transport error or an
// elapsed leg timeout yields a TIMEOUT outcome rather than blocking the
// record forever.
func (c *Channel) Send(ctx context.Context, cmd events.LegCommand) events.ParticipantOutcome {
	release, ok := c.acquire(ctx, cmd.Participant)
	if !ok {
		return c.timeoutOutcome(cmd.EventID, cmd.Participant, cmd.Revision)
	}
	defer release()

	legCtx, cancel := context.WithTimeout(ctx, c.legTimeout)
	defer cancel()

	out, err := c.transport.Deliver(legCtx, cmd)
	if err != nil {
		log.Printf("dispatch: leg %s/%s failed: %v", cmd.EventID, cmd.Participant, err)
		out = c.timeoutOutcome(cmd.EventID, cmd.Participant, cmd.Revision)
	}
	metrics.Dispatches.WithLabelValues(cmd.Participant, string(out.Result)).Inc()
	return out
}

// SendReversal dispatches a compensating reversal and waits for its outcome.
func (c *Channel) SendReversal(ctx context.Context, cmd events.ReversalCommand) events.ParticipantOutcome {
	release, ok := c.acquire(ctx, cmd.Participant)
	if !ok {
		return c.timeoutOutcome(cmd.EventID, cmd.Participant, 0)
	}
	defer release()

	legCtx, cancel := context.WithTimeout(ctx, c.legTimeout)
	defer cancel()

	out, err := c.transport.DeliverReversal(legCtx, cmd)
	if err != nil {
		log.Printf("dispatch: reversal %s/%s attempt %d failed: %v", cmd.EventID, cmd.Participant, cmd.Attempt, err)
		out = c.timeoutOutcome(cmd.EventID, cmd.Participant, 0)
	}
	metrics.Reversals.WithLabelValues(cmd.Participant, string(out.Result)).Inc()
	return out
}

// acquire takes a concurrency slot for the participant, waiting until one
// frees up or ctx ends.
func (c *Channel) acquire(ctx context.Context, participant string) (func(), bool) {
	sem := c.semaphore(participant)
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (c *Channel) semaphore(participant string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.slots[participant]
	if !ok {
		sem = make(chan struct{}, c.maxInFlight)
		c.slots[participant] = sem
	}
	return sem
}

func (c *Channel) timeoutOutcome(eventID, participant string, revision uint64) events.ParticipantOutcome {
	return events.ParticipantOutcome{
		EventID:     eventID,
		Participant: participant,
		Result:      events.ResultTimeout,
		Revision:    revision,
		Timestamp:   time.Now().UTC(),
	}
}
