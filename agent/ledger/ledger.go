// Package ledger publishes completed money movements to downstream
// consumers such as reconciliation and notification services.
package ledger

import (
	"context"
	"sync"
	"time"
)

const EventTransferCompleted = "transfer.completed"

type TransferEvent struct {
	Type          string    `json:"type"`
	TransactionID string    `json:"transaction_id"`
	CustomerID    string    `json:"customer_id"`
	FromAccount   string    `json:"from_account"`
	RecipientID   string    `json:"recipient_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Description   string    `json:"description,omitempty"`
	ExecutedAt    time.Time `json:"executed_at"`
}

type Publisher interface {
	PublishTransfer(ctx context.Context, ev TransferEvent) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishTransfer(context.Context, TransferEvent) error { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []TransferEvent
}

func (r *Recorder) PublishTransfer(_ context.Context, ev TransferEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Events() []TransferEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TransferEvent(nil), r.events...)
}
