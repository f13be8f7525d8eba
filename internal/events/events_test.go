package events

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOperationReverse(t *testing.T) {
	if OpDebit.Reverse() != OpCredit {
		t.Error("reversing a debit must yield a credit")
	}
	if OpCredit.Reverse() != OpDebit {
		t.Error("reversing a credit must yield a debit")
	}
}

func TestResultFailure(t *testing.T) {
	if ResultSuccess.Failure() {
		t.Error("SUCCESS is not a failure")
	}
	for _, r := range []Result{ResultInsufficientFunds, ResultAccountNotFound, ResultTimeout, ResultRejected} {
		if !r.Failure() {
			t.Errorf("%s must be a failure", r)
		}
	}
}

func TestDecodeData(t *testing.T) {
	// Subscribers receive Data as a generic map after the JSON round trip.
	event := Event{
		Type:      TransactionRequested,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"eventId":       "11111111-1111-1111-1111-111111111111",
			"type":          "TRANSFER",
			"amount":        "100.50",
			"sourceAccount": "01234567",
		},
	}

	req, err := DecodeData[TransactionRequest](event)
	if err != nil {
		t.Fatalf("DecodeData returned error: %v", err)
	}
	if req.Type != TypeTransfer {
		t.Errorf("expected TRANSFER got %s", req.Type)
	}
	if !req.Amount.Equal(decimal.RequireFromString("100.50")) {
		t.Errorf("expected amount 100.50 got %s", req.Amount)
	}
}

func TestStreamNaming(t *testing.T) {
	if CommandStream("service-agence") != "commands.service-agence" {
		t.Errorf("unexpected command stream: %s", CommandStream("service-agence"))
	}
	if OutcomeKey("e1", "p1") != "outcome:e1:p1" {
		t.Errorf("unexpected outcome key: %s", OutcomeKey("e1", "p1"))
	}
	if ReversalOutcomeKey("e1", "p1") != "outcome:e1:p1:reversal" {
		t.Errorf("unexpected reversal key: %s", ReversalOutcomeKey("e1", "p1"))
	}
}
