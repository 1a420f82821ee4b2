// Package events is the seam between the transaction core and its
// collaborators. The inventory side restores stock from LedgerCancelled.
package events

import (
	"context"
	"sync"

	"apartado/backend/internal/domain"
)

type Publisher interface {
	PublishLedgerCancelled(ctx context.Context, event domain.LedgerCancelledEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishLedgerCancelled(_ context.Context, _ domain.LedgerCancelledEvent) error {
	return nil
}

// Recorder keeps published events in memory for tests and single-process
// deployments that poll instead of subscribing.
type Recorder struct {
	mu     sync.Mutex
	events []domain.LedgerCancelledEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) PublishLedgerCancelled(_ context.Context, event domain.LedgerCancelledEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.Items = append([]domain.LineItem(nil), event.Items...)
	event.DeliveredItems = append([]domain.LineItem(nil), event.DeliveredItems...)
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []domain.LedgerCancelledEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.LedgerCancelledEvent(nil), r.events...)
}
