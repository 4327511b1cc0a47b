package booking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/fleet-booking/internal/fleet"
	"github.com/example/fleet-booking/internal/models"
	"github.com/example/fleet-booking/internal/storage"
)

type fakeSink struct {
	mu     sync.Mutex
	events []models.BookingEvent
}

func (f *fakeSink) PublishEvent(ev models.BookingEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeDeposits struct {
	mu       sync.Mutex
	held     int
	released []string
}

func (f *fakeDeposits) Hold(ctx context.Context, amount int64, currency string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held++
	return "pi_test", nil
}

func (f *fakeDeposits) Release(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, id)
	return nil
}

func newLedger() *Service {
	return NewService(fleet.NewRegistry(fleet.DefaultFleet()))
}

func TestReserveCancelRoundTrip(t *testing.T) {
	s := newLedger()
	ctx := context.Background()

	res, err := s.Reserve(ctx, "ECHO-01", "Giovanni Tropea", "Milan")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if res.Code == "" {
		t.Fatal("expected a reservation code")
	}
	if car, _ := s.Fleet.Get("ECHO-01"); car.Available {
		t.Fatal("expected car unavailable after reserve")
	}

	removed, err := s.Cancel(ctx, res.Code)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if removed.Code != res.Code || removed.CarID != "ECHO-01" {
		t.Fatalf("cancel returned wrong record: %+v", removed)
	}
	if car, _ := s.Fleet.Get("ECHO-01"); !car.Available {
		t.Fatal("expected car available after cancel")
	}
	if len(s.Active()) != 0 {
		t.Fatal("expected empty ledger after cancel")
	}
}

func TestReserveUnknownCar(t *testing.T) {
	s := newLedger()
	if _, err := s.Reserve(context.Background(), "NOPE-99", "u", "d"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDoubleReserveFails(t *testing.T) {
	s := newLedger()
	ctx := context.Background()
	if _, err := s.Reserve(ctx, "ECHO-01", "a", "x"); err != nil {
		t.Fatalf("first reserve failed: %v", err)
	}
	_, err := s.Reserve(ctx, "ECHO-01", "b", "y")
	if !errors.Is(err, ErrVehicleUnavailable) {
		t.Fatalf("expected ErrVehicleUnavailable, got %v", err)
	}
	// callers matching only on NotFound keep working
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unavailable to wrap ErrNotFound, got %v", err)
	}
}

func TestCancelUnknownReservation(t *testing.T) {
	s := newLedger()
	if _, err := s.Cancel(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if car, _ := s.Fleet.Get("ECHO-01"); !car.Available {
		t.Fatal("failed cancel must not touch availability")
	}
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	s := newLedger()
	ctx := context.Background()
	const n = 16
	var wg sync.WaitGroup
	wins := make(chan models.Reservation, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, err := s.Reserve(ctx, "DELTA-02", "racer", "x"); err == nil {
				wins <- res
			}
		}()
	}
	wg.Wait()
	close(wins)
	var got int
	for range wins {
		got++
	}
	if got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
}

func TestUnavailableSetMatchesLedger(t *testing.T) {
	s := newLedger()
	ctx := context.Background()

	r1, _ := s.Reserve(ctx, "ECHO-01", "a", "x")
	r2, _ := s.Reserve(ctx, "ALFA-03", "b", "y")
	s.Reserve(ctx, "CHARLIE-05", "c", "z")
	s.Cancel(ctx, r2.Code)

	reserved := map[string]bool{}
	for _, r := range s.Active() {
		reserved[r.CarID] = true
	}
	fa := false
	for _, c := range s.Fleet.List(&fa) {
		if !reserved[c.ID] {
			t.Fatalf("car %s unavailable without a reservation", c.ID)
		}
		delete(reserved, c.ID)
	}
	if len(reserved) != 0 {
		t.Fatalf("reservations without unavailable cars: %v", reserved)
	}
	if _, err := s.Cancel(ctx, r1.Code); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
}

func TestEventFanout(t *testing.T) {
	s := newLedger()
	sink := &fakeSink{}
	journal := storage.NewMemoryJournal()
	s.Events = sink
	s.Journal = journal
	ctx := context.Background()

	res, _ := s.Reserve(ctx, "ECHO-01", "a", "x")
	s.Cancel(ctx, res.Code)

	if len(sink.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(sink.events))
	}
	if sink.events[0].Type != models.EventReserved || sink.events[0].Available {
		t.Fatalf("bad reserved event: %+v", sink.events[0])
	}
	if sink.events[1].Type != models.EventCancelled || !sink.events[1].Available {
		t.Fatalf("bad cancelled event: %+v", sink.events[1])
	}
	if len(journal.Events()) != 2 {
		t.Fatalf("expected journal to mirror events, got %d", len(journal.Events()))
	}
}

func TestDepositHoldAndRelease(t *testing.T) {
	s := newLedger()
	dep := &fakeDeposits{}
	s.Deposits = dep
	s.DepositCents = 500
	s.Currency = "eur"
	ctx := context.Background()

	res, err := s.Reserve(ctx, "ECHO-01", "a", "x")
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if dep.held != 1 {
		t.Fatalf("expected one hold, got %d", dep.held)
	}
	if _, err := s.Cancel(ctx, res.Code); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if len(dep.released) != 1 || dep.released[0] != "pi_test" {
		t.Fatalf("expected hold released, got %v", dep.released)
	}
}
