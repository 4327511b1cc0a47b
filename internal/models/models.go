package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"long"`
}

// Car is a fleet vehicle. Availability, votes and ranking are the only
// fields that change after seeding; everything else is fixed for the
// lifetime of the process.
type Car struct {
	ID        string  `json:"id"`
	Model     string  `json:"model"`
	Driver    string  `json:"driver"`
	Coords    Coord   `json:"coords"`
	Available bool    `json:"available"`
	Votes     []Vote  `json:"votes"`
	Ranking   float64 `json:"ranking"`
}

// Vote is append-only; Date carries the calendar day only (YYYY-MM-DD).
type Vote struct {
	UserName string  `json:"userName"`
	Date     string  `json:"date"`
	Score    float64 `json:"vote"`
}

type Reservation struct {
	Code        string    `json:"reservationCode"`
	CarID       string    `json:"car_id"`
	User        string    `json:"user"`
	Destination string    `json:"destination"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	EventReserved  = "reserved"
	EventCancelled = "cancelled"
	EventVoted     = "voted"
)

// BookingEvent is the fan-out record published to Kafka, journaled to
// Postgres and pushed to driver sessions after every ledger or rating
// mutation. It carries the car state observed inside the mutating
// critical section.
type BookingEvent struct {
	Type            string    `json:"type"`
	CarID           string    `json:"car_id"`
	ReservationCode string    `json:"reservation_code,omitempty"`
	User            string    `json:"user,omitempty"`
	Score           float64   `json:"score,omitempty"`
	Available       bool      `json:"available"`
	Ranking         float64   `json:"ranking"`
	Coords          Coord     `json:"coords"`
	At              time.Time `json:"at"`
}
