package fleet

import (
	"sync"

	"github.com/example/fleet-booking/internal/models"
)

// Registry is the authoritative in-memory fleet. The set of cars is fixed
// at construction; only availability, votes and ranking mutate afterwards,
// and only through SetAvailable and AppendVote. Reads return copies so
// callers never hold a reference into guarded state.
type Registry struct {
	mu    sync.RWMutex
	order []string
	cars  map[string]*models.Car
}

func NewRegistry(seed []models.Car) *Registry {
	r := &Registry{cars: make(map[string]*models.Car, len(seed))}
	for i := range seed {
		c := seed[i]
		r.order = append(r.order, c.ID)
		r.cars[c.ID] = &c
	}
	return r
}

// DefaultFleet returns the fixed fleet the service is seeded with. All
// vehicles start available so the availability/reservation invariant holds
// from the first request.
func DefaultFleet() []models.Car {
	return []models.Car{
		{ID: "ECHO-01", Model: "Tesla Model 3", Driver: "Lena Rossi", Coords: models.Coord{Lat: 1, Lon: 1}, Available: true},
		{ID: "DELTA-02", Model: "Toyota Prius", Driver: "Marco Bianchi", Coords: models.Coord{Lat: 4, Lon: -2}, Available: true},
		{ID: "ALFA-03", Model: "Fiat 500", Driver: "Sara Conti", Coords: models.Coord{Lat: 10, Lon: 12}, Available: true},
		{ID: "BRAVO-04", Model: "VW Golf", Driver: "Paolo Greco", Coords: models.Coord{Lat: -5, Lon: 3}, Available: true},
		{ID: "CHARLIE-05", Model: "Renault Zoe", Driver: "Anna Ferri", Coords: models.Coord{Lat: 20, Lon: 20}, Available: true},
		{ID: "FOXTROT-06", Model: "Dacia Sandero", Driver: "Luca Marini", Coords: models.Coord{Lat: -14, Lon: -9}, Available: true},
	}
}

// List returns cars in seed order. With a non-nil filter only cars whose
// availability matches are returned.
func (r *Registry) List(filter *bool) []models.Car {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Car, 0, len(r.order))
	for _, id := range r.order {
		c := r.cars[id]
		if filter != nil && c.Available != *filter {
			continue
		}
		out = append(out, clone(c))
	}
	return out
}

func (r *Registry) Get(id string) (models.Car, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cars[id]
	if !ok {
		return models.Car{}, false
	}
	return clone(c), true
}

// GetAvailable matches only when the car exists and is currently available.
func (r *Registry) GetAvailable(id string) (models.Car, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cars[id]
	if !ok || !c.Available {
		return models.Car{}, false
	}
	return clone(c), true
}

// SetAvailable flips the availability flag and reports whether the car
// exists. Callers (the reservation ledger) are responsible for serializing
// their own check-then-flip sequences.
func (r *Registry) SetAvailable(id string, available bool) (models.Car, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cars[id]
	if !ok {
		return models.Car{}, false
	}
	c.Available = available
	return clone(c), true
}

// AppendVote appends a vote and recomputes the ranking as the mean of all
// scores in one critical section, so a concurrent reader never observes a
// vote sequence and a ranking that disagree.
func (r *Registry) AppendVote(id string, v models.Vote) (models.Car, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cars[id]
	if !ok {
		return models.Car{}, false
	}
	c.Votes = append(c.Votes, v)
	var sum float64
	for _, vv := range c.Votes {
		sum += vv.Score
	}
	c.Ranking = sum / float64(len(c.Votes))
	return clone(c), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func clone(c *models.Car) models.Car {
	out := *c
	if c.Votes != nil {
		out.Votes = make([]models.Vote, len(c.Votes))
		copy(out.Votes, c.Votes)
	}
	return out
}
