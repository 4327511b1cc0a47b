package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/example/fleet-booking/internal/models"
)

type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresJournal{db: db}, nil
}

func (p *PostgresJournal) Record(ctx context.Context, ev models.BookingEvent) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO booking_events(event_type, car_id, reservation_code, rider, score, available, ranking, occurred_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		ev.Type, ev.CarID, ev.ReservationCode, ev.User, ev.Score, ev.Available, ev.Ranking, ev.At)
	return err
}

func (p *PostgresJournal) Close() error {
	return p.db.Close()
}
