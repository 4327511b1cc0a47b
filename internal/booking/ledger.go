// Package booking owns the reservation ledger. Each car moves between
// exactly two states, available and reserved, and the set of unavailable
// cars is always exactly the set of cars with an active reservation.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/fleet-booking/internal/fleet"
	"github.com/example/fleet-booking/internal/models"
	"github.com/example/fleet-booking/internal/observability"
	"github.com/example/fleet-booking/internal/storage"
)

// ErrNotFound reports that the car or reservation the operation targets
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrVehicleUnavailable reports that the car exists but already carries an
// active reservation. It wraps ErrNotFound so callers that only care about
// "could not reserve" keep working with errors.Is(err, ErrNotFound).
var ErrVehicleUnavailable = fmt.Errorf("vehicle unavailable: %w", ErrNotFound)

// EventSink receives booking events, typically a Kafka producer.
type EventSink interface {
	PublishEvent(ev models.BookingEvent) error
}

// Notifier pushes booking events to the affected car's driver.
type Notifier interface {
	Notify(carID string, ev models.BookingEvent) error
}

// DepositClient places and releases fare deposit holds.
type DepositClient interface {
	Hold(ctx context.Context, amount int64, currency string) (string, error)
	Release(ctx context.Context, paymentIntentID string) error
}

// Service is the reservation ledger. Fleet is required; the remaining
// dependencies are optional best-effort side channels and never affect
// whether a reservation succeeds.
type Service struct {
	Fleet        *fleet.Registry
	Journal      storage.Journal
	Events       EventSink
	Notify       Notifier
	Deposits     DepositClient
	DepositCents int64
	Currency     string
	Logger       *slog.Logger

	mu           sync.Mutex
	reservations map[string]models.Reservation
	holds        map[string]string // reservation code -> payment intent id
}

func NewService(reg *fleet.Registry) *Service {
	return &Service{
		Fleet:        reg,
		reservations: make(map[string]models.Reservation),
		holds:        make(map[string]string),
	}
}

// Reserve books the car for the rider. It succeeds only when the car
// exists and is available; the check and the availability flip happen
// under the ledger mutex so two concurrent calls can never both win the
// same car.
func (s *Service) Reserve(ctx context.Context, carID, user, destination string) (models.Reservation, error) {
	s.mu.Lock()
	car, ok := s.Fleet.Get(carID)
	if !ok {
		s.mu.Unlock()
		return models.Reservation{}, fmt.Errorf("car %s: %w", carID, ErrNotFound)
	}
	if !car.Available {
		s.mu.Unlock()
		return models.Reservation{}, fmt.Errorf("car %s: %w", carID, ErrVehicleUnavailable)
	}
	res := models.Reservation{
		Code:        uuid.NewString(),
		CarID:       carID,
		User:        user,
		Destination: destination,
		CreatedAt:   time.Now().UTC(),
	}
	car, _ = s.Fleet.SetAvailable(carID, false)
	s.reservations[res.Code] = res
	s.mu.Unlock()

	observability.ReservationsTotal.Inc()
	observability.CarsAvailable.Dec()

	ev := models.BookingEvent{
		Type:            models.EventReserved,
		CarID:           carID,
		ReservationCode: res.Code,
		User:            user,
		Available:       car.Available,
		Ranking:         car.Ranking,
		Coords:          car.Coords,
		At:              res.CreatedAt,
	}
	s.fanout(ctx, ev)
	s.placeHold(ctx, res.Code)
	return res, nil
}

// Cancel removes the reservation, frees its car and returns the removed
// record.
func (s *Service) Cancel(ctx context.Context, code string) (models.Reservation, error) {
	s.mu.Lock()
	res, ok := s.reservations[code]
	if !ok {
		s.mu.Unlock()
		return models.Reservation{}, fmt.Errorf("reservation %s: %w", code, ErrNotFound)
	}
	delete(s.reservations, code)
	car, _ := s.Fleet.SetAvailable(res.CarID, true)
	hold := s.holds[code]
	delete(s.holds, code)
	s.mu.Unlock()

	observability.CancellationsTotal.Inc()
	observability.CarsAvailable.Inc()

	if hold != "" && s.Deposits != nil {
		if err := s.Deposits.Release(ctx, hold); err != nil {
			s.logWarn("deposit release failed", "reservation", code, "error", err)
		}
	}
	s.fanout(ctx, models.BookingEvent{
		Type:            models.EventCancelled,
		CarID:           res.CarID,
		ReservationCode: code,
		User:            res.User,
		Available:       car.Available,
		Ranking:         car.Ranking,
		Coords:          car.Coords,
		At:              time.Now().UTC(),
	})
	return res, nil
}

// Active returns the current reservations in no particular order.
func (s *Service) Active() []models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		out = append(out, r)
	}
	return out
}

func (s *Service) placeHold(ctx context.Context, code string) {
	if s.Deposits == nil || s.DepositCents <= 0 {
		return
	}
	pi, err := s.Deposits.Hold(ctx, s.DepositCents, s.Currency)
	if err != nil {
		s.logWarn("deposit hold failed", "reservation", code, "error", err)
		return
	}
	s.mu.Lock()
	// the reservation may already be cancelled; release rather than leak
	if _, live := s.reservations[code]; live {
		s.holds[code] = pi
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if err := s.Deposits.Release(ctx, pi); err != nil {
		s.logWarn("deposit release failed", "reservation", code, "error", err)
	}
}

func (s *Service) fanout(ctx context.Context, ev models.BookingEvent) {
	if s.Journal != nil {
		if err := s.Journal.Record(ctx, ev); err != nil {
			s.logWarn("journal record failed", "type", ev.Type, "error", err)
		}
	}
	if s.Events != nil {
		if err := s.Events.PublishEvent(ev); err != nil {
			s.logWarn("event publish failed", "type", ev.Type, "error", err)
		}
	}
	if s.Notify != nil {
		_ = s.Notify.Notify(ev.CarID, ev) // drivers without a session are fine
	}
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}
