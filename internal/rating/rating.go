// Package rating appends post-trip votes and keeps each car's ranking in
// step with its vote history.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/example/fleet-booking/internal/fleet"
	"github.com/example/fleet-booking/internal/models"
	"github.com/example/fleet-booking/internal/observability"
	"github.com/example/fleet-booking/internal/storage"
)

var (
	ErrNotFound     = errors.New("car not found")
	ErrInvalidScore = errors.New("invalid score")
)

// EventSink receives vote events, typically a Kafka producer.
type EventSink interface {
	PublishEvent(ev models.BookingEvent) error
}

type Service struct {
	Fleet   *fleet.Registry
	Journal storage.Journal
	Events  EventSink
	Logger  *slog.Logger
}

// Cast appends a vote for the car and returns the car with its recomputed
// ranking. Any finite score is accepted, including negative and fractional
// values; there is deliberately no 1-5 clamp.
func (s *Service) Cast(ctx context.Context, carID, voter string, score float64) (models.Car, error) {
	if math.IsNaN(score) {
		return models.Car{}, fmt.Errorf("score for car %s: %w", carID, ErrInvalidScore)
	}
	v := models.Vote{
		UserName: voter,
		Date:     time.Now().UTC().Format("2006-01-02"),
		Score:    score,
	}
	car, ok := s.Fleet.AppendVote(carID, v)
	if !ok {
		return models.Car{}, fmt.Errorf("car %s: %w", carID, ErrNotFound)
	}
	observability.VotesTotal.Inc()
	ev := models.BookingEvent{
		Type:      models.EventVoted,
		CarID:     carID,
		User:      voter,
		Score:     score,
		Available: car.Available,
		Ranking:   car.Ranking,
		Coords:    car.Coords,
		At:        time.Now().UTC(),
	}
	if s.Journal != nil {
		if err := s.Journal.Record(ctx, ev); err != nil {
			s.logWarn("journal record failed", "car", carID, "error", err)
		}
	}
	if s.Events != nil {
		if err := s.Events.PublishEvent(ev); err != nil {
			s.logWarn("event publish failed", "car", carID, "error", err)
		}
	}
	return car, nil
}

func (s *Service) logWarn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}
