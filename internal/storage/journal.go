package storage

import (
	"context"
	"sync"

	"github.com/example/fleet-booking/internal/models"
)

// Journal is the append-only record of booking events. The in-memory
// ledger stays authoritative; journals are write-behind and best-effort.
type Journal interface {
	Record(ctx context.Context, ev models.BookingEvent) error
}

type MemoryJournal struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (m *MemoryJournal) Record(ctx context.Context, ev models.BookingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryJournal) Events() []models.BookingEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.BookingEvent, len(m.events))
	copy(out, m.events)
	return out
}
