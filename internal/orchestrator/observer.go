package orchestrator

import (
	"context"
	"log"
	"time"

	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/events"
	"github.com/ProjetM1fondamicroservices2024-2026/NIKOUM-Modeste-21T2580-ENSF.Wallet/internal/models"
)

// NopObserver discards transitions.
type NopObserver struct{}

func (NopObserver) StateChanged(string, models.State, models.State, uint64) {}

// LogObserver writes transitions to the service log.
type LogObserver struct{}

func (LogObserver) StateChanged(eventID string, from, to models.State, revision uint64) {
	log.Printf("transaction %s: %s -> %s (revision %d)", eventID, from, to, revision)
}

// StreamObserver publishes transitions to the transition stream for the
// metrics/audit consumers.
type StreamObserver struct {
	publisher *events.Publisher
}

func NewStreamObserver(publisher *events.Publisher) *StreamObserver {
	return &StreamObserver{publisher: publisher}
}

func (s *StreamObserver) StateChanged(eventID string, from, to models.State, revision uint64) {
	transition := events.StateTransition{
		EventID:  eventID,
		From:     string(from),
		To:       string(to),
		Revision: revision,
		At:       time.Now().UTC(),
	}
	if err := s.publisher.Publish(context.Background(), events.TransitionStream, events.StateChanged, transition); err != nil {
		log.Printf("Failed to publish transition for %s: %v", eventID, err)
	}
}

// MultiObserver fans a transition out to several observers.
type MultiObserver []TransitionObserver

func (m MultiObserver) StateChanged(eventID string, from, to models.State, revision uint64) {
	for _, obs := range m {
		obs.StateChanged(eventID, from, to, revision)
	}
}
