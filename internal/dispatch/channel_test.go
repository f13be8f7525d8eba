package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
)

// ---- mock implementations ----

type mockTransport struct {
	mu         sync.Mutex
	delay      time.Duration
	err        error
	inFlight   int32
	maxSeen    int32
	deliveries int
}

func (m *mockTransport) Deliver(ctx context.Context, cmd events.LegCommand) (events.ParticipantOutcome, error) {
	current := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		max := atomic.LoadInt32(&m.maxSeen)
		if current <= max || atomic.CompareAndSwapInt32(&m.maxSeen, max, current) {
			break
		}
	}

	m.mu.Lock()
	m.deliveries++
	delay, err := m.delay, m.err
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return events.ParticipantOutcome{}, ctx.Err()
		}
	}
	if err != nil {
		return events.ParticipantOutcome{}, err
	}
	return events.ParticipantOutcome{
		EventID:     cmd.EventID,
		Participant: cmd.Participant,
		Result:      events.ResultSuccess,
		Revision:    cmd.Revision,
	}, nil
}

func (m *mockTransport) DeliverReversal(ctx context.Context, cmd events.ReversalCommand) (events.ParticipantOutcome, error) {
	m.mu.Lock()
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return events.ParticipantOutcome{}, err
	}
	return events.ParticipantOutcome{
		EventID:     cmd.EventID,
		Participant: cmd.Participant,
		Result:      events.ResultSuccess,
	}, nil
}

func legCommand(participant string) events.LegCommand {
	return events.LegCommand{
		EventID:     "11111111-1111-1111-1111-111111111111",
		Participant: participant,
		Account:     "01234567",
		Operation:   events.OpDebit,
		Amount:      decimal.NewFromFloat(10),
		Revision:    2,
	}
}

// ---- tests ----

func TestSendReturnsParticipantOutcome(t *testing.T) {
	channel := NewChannel(&mockTransport{}, time.Second, 4)

	out := channel.Send(context.Background(), legCommand("service-user"))
	if out.Result != events.ResultSuccess {
		t.Errorf("expected SUCCESS got %s", out.Result)
	}
	if out.Revision != 2 {
		t.Errorf("outcome must echo the command revision, got %d", out.Revision)
	}
}

func TestSendSynthesizesTimeout(t *testing.T) {
	tests := []struct {
		name      string
		transport *mockTransport
	}{
		{name: "slow participant", transport: &mockTransport{delay: 200 * time.Millisecond}},
		{name: "transport error", transport: &mockTransport{err: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			channel := NewChannel(tt.transport, 30*time.Millisecond, 4)

			out := channel.Send(context.Background(), legCommand("service-agence"))
			if out.Result != events.ResultTimeout {
				t.Errorf("expected synthesized TIMEOUT got %s", out.Result)
			}
			if out.Participant != "service-agence" {
				t.Errorf("synthesized outcome must name the participant, got %q", out.Participant)
			}
		})
	}
}

func TestSendCapsConcurrencyPerParticipant(t *testing.T) {
	transport := &mockTransport{delay: 30 * time.Millisecond}
	channel := NewChannel(transport, time.Second, 2)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			channel.Send(context.Background(), legCommand("service-user"))
		}()
	}
	wg.Wait()

	if max := atomic.LoadInt32(&transport.maxSeen); max > 2 {
		t.Errorf("participant ceiling is 2, observed %d concurrent deliveries", max)
	}
	if transport.deliveries != 8 {
		t.Errorf("all dispatches must eventually run, got %d", transport.deliveries)
	}
}

func TestSendReversal(t *testing.T) {
	channel := NewChannel(&mockTransport{}, time.Second, 4)

	out := channel.SendReversal(context.Background(), events.ReversalCommand{
		EventID:           "11111111-1111-1111-1111-111111111111",
		Participant:       "service-user",
		Operation:         events.OpCredit,
		Amount:            decimal.NewFromFloat(10),
		CompensationToken: "tok-1",
		Attempt:           1,
	})
	if out.Result != events.ResultSuccess {
		t.Errorf("expected SUCCESS got %s", out.Result)
	}
}

func TestPrefixDirectory(t *testing.T) {
	directory := NewPrefixDirectory(map[string]string{
		"01":  "service-user",
		"02":  "service-agence",
		"029": "bank-card-service", // longer prefix wins
	})

	tests := []struct {
		account string
		want    string
		wantErr bool
	}{
		{account: "01234567", want: "service-user"},
		{account: "02345678", want: "service-agence"},
		{account: "02912345", want: "bank-card-service"},
		{account: "99999999", wantErr: true},
	}
	for _, tt := range tests {
		got, err := directory.ResolveParticipant(tt.account)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownAccount) {
				t.Errorf("account %s: expected ErrUnknownAccount, got %v", tt.account, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("account %s: unexpected error %v", tt.account, err)
			continue
		}
		if got != tt.want {
			t.Errorf("account %s: expected %s got %s", tt.account, tt.want, got)
		}
	}
}
