package repository

import (
	"context"
	"database/sql"

	"github.com/dvaldes/gradgala/internal/model"
)

// TicketRepo provides data access to the ticket_orders table.  Each
// graduate has at most one order; adding guests later updates the counts
// on the same row.  The seat ledger reads the tickets_count from here and
// never mutates it.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// GetByGraduate returns the graduate's ticket order, or sql.ErrNoRows
// when none exists yet.
func (r *TicketRepo) GetByGraduate(ctx context.Context, graduateID uint64) (*model.TicketOrder, error) {
	const q = `SELECT id, graduate_id, tickets_count, base_price_cents, total_amount_cents, created_at, updated_at
	           FROM ticket_orders WHERE graduate_id = ?`
	var t model.TicketOrder
	err := r.db.QueryRowContext(ctx, q, graduateID).Scan(
		&t.ID, &t.GraduateID, &t.TicketsCount, &t.BasePriceCents, &t.TotalAmountCents,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// RequiredSeatsTx returns the number of seats the graduate's ticket
// purchase entitles them to claim, read within the allocation
// transaction.  Zero means no purchase exists; orders always hold at
// least one ticket.
func (r *TicketRepo) RequiredSeatsTx(ctx context.Context, tx *sql.Tx, graduateID uint64) (uint32, error) {
	var count uint32
	err := tx.QueryRowContext(ctx,
		`SELECT tickets_count FROM ticket_orders WHERE graduate_id = ?`, graduateID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Create inserts a new ticket order and populates the generated ID on the
// provided record.
func (r *TicketRepo) Create(ctx context.Context, t *model.TicketOrder) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO ticket_orders (graduate_id, tickets_count, base_price_cents, total_amount_cents) VALUES (?, ?, ?, ?)`,
		t.GraduateID, t.TicketsCount, t.BasePriceCents, t.TotalAmountCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// UpdateCounts raises the order's ticket count and total after guests
// are added.  Capacity on an already held table is deliberately NOT
// re-validated here; the consequence of growing past the table's room is
// billing-only until the graduate's next explicit table selection.
func (r *TicketRepo) UpdateCounts(ctx context.Context, id uint64, ticketsCount uint32, totalAmountCents uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE ticket_orders SET tickets_count = ?, total_amount_cents = ? WHERE id = ?`,
		ticketsCount, totalAmountCents, id)
	return err
}

// DeleteByGraduate removes the graduate's order as part of a ticket
// reset.  Deleting zero rows is not an error.
func (r *TicketRepo) DeleteByGraduate(ctx context.Context, graduateID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM ticket_orders WHERE graduate_id = ?`, graduateID)
	return err
}
