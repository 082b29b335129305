package repository

import (
	"context"
	"database/sql"

	"github.com/dvaldes/gradgala/internal/model"
)

// EventRepo provides data access to the events table.  Events are
// created by admins at setup time and read by nearly every other
// handler for pricing, deadlines and thresholds.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event and populates the generated ID on the
// provided record.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events
		 (name, date, venue, capacity, ticket_price_cents, initial_payment_cents, months_duration,
		  thermo_threshold, meals_deadline, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.Name, e.Date, e.Venue, e.Capacity, e.TicketPriceCents, e.InitialPaymentCents,
		e.MonthsDuration, e.ThermoThreshold, e.MealsDeadline, e.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// GetByID fetches an event by id.  Returns ErrEventNotFound when the id
// matches no row.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT id, name, date, venue, capacity, ticket_price_cents, initial_payment_cents,
	                  months_duration, thermo_threshold, meals_deadline, status, created_at, updated_at
	           FROM events WHERE id = ?`
	var e model.Event
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.Name, &e.Date, &e.Venue, &e.Capacity, &e.TicketPriceCents,
		&e.InitialPaymentCents, &e.MonthsDuration, &e.ThermoThreshold, &e.MealsDeadline,
		&e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
