package compensation

import (
	"context"
	"log"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
)

// StreamAlerter publishes operator alerts to the alert stream so the
// monitoring stack can page on stuck balances.
type StreamAlerter struct {
	publisher *events.Publisher
}

func NewStreamAlerter(publisher *events.Publisher) *StreamAlerter {
	return &StreamAlerter{publisher: publisher}
}

func (a *StreamAlerter) Alert(ctx context.Context, alert events.CompensationAlert) {
	log.Printf("ALERT: compensation failed for %s at %s after %d attempts (%s)",
		alert.EventID, alert.Participant, alert.Attempts, alert.Reason)
	if err := a.publisher.Publish(ctx, events.AlertStream, events.CompensationAlerted, alert); err != nil {
		log.Printf("Failed to publish compensation alert for %s: %v", alert.EventID, err)
	}
}
