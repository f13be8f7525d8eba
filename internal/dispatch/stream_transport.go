package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
)

// StreamTransport delivers commands over Redis Streams and waits for the
// participant's reply on a per-leg outcome list. Participants consume their
// command stream through a consumer group, apply the leg, and RPUSH the
// outcome JSON to the reply key.
type StreamTransport struct {
	client    *goredis.Client
	publisher *events.Publisher
}

func NewStreamTransport(client *goredis.Client) *StreamTransport {
	return &StreamTransport{
		client:    client,
		publisher: events.NewPublisher(client),
	}
}

func (t *StreamTransport) Deliver(ctx context.Context, cmd events.LegCommand) (events.ParticipantOutcome, error) {
	stream := events.CommandStream(cmd.Participant)
	if err := t.publisher.Publish(ctx, stream, events.LegCommanded, cmd); err != nil {
		return events.ParticipantOutcome{}, err
	}
	return t.awaitOutcome(ctx, events.OutcomeKey(cmd.EventID, cmd.Participant))
}

func (t *StreamTransport) DeliverReversal(ctx context.Context, cmd events.ReversalCommand) (events.ParticipantOutcome, error) {
	stream := events.CommandStream(cmd.Participant)
	if err := t.publisher.Publish(ctx, stream, events.LegReversed, cmd); err != nil {
		return events.ParticipantOutcome{}, err
	}
	return t.awaitOutcome(ctx, events.ReversalOutcomeKey(cmd.EventID, cmd.Participant))
}

// awaitOutcome blocks on the reply key until the context deadline.
func (t *StreamTransport) awaitOutcome(ctx context.Context, key string) (events.ParticipantOutcome, error) {
	wait := time.Second
	if deadline, ok := ctx.Deadline(); ok {
		wait = time.Until(deadline)
		if wait <= 0 {
			return events.ParticipantOutcome{}, context.DeadlineExceeded
		}
	}

	values, err := t.client.BLPop(ctx, wait, key).Result()
	if err == goredis.Nil {
		return events.ParticipantOutcome{}, context.DeadlineExceeded
	}
	if err != nil {
		return events.ParticipantOutcome{}, fmt.Errorf("failed to read outcome: %w", err)
	}
	if len(values) != 2 {
		return events.ParticipantOutcome{}, fmt.Errorf("unexpected outcome payload on %s", key)
	}

	var out events.ParticipantOutcome
	if err := json.Unmarshal([]byte(values[1]), &out); err != nil {
		return events.ParticipantOutcome{}, fmt.Errorf("failed to decode outcome: %w", err)
	}
	return out, nil
}
