package repository

import (
	"context"
	"database/sql"

	"github.com/dvaldes/gradgala/internal/model"
)

// TableRepo provides data access to the venue_tables table.  Tables are
// created in bulk when an admin lays out an event and are never deleted
// while selections reference them; only their status flips between
// available and blocked.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo returns a new TableRepo bound to the given database.
func NewTableRepo(db *sql.DB) *TableRepo { return &TableRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span tables, selections and graduate progress flags.
func (r *TableRepo) DB() *sql.DB { return r.db }

// GetForUpdateTx loads a table row within the provided transaction and
// locks it with FOR UPDATE.  Every allocation attempt on the same table
// serializes on this lock, so the occupancy read that follows and the
// selection insert commit as one unit with respect to concurrent
// attempts.  Returns ErrTableNotFound when the id matches no row.
func (r *TableRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Table, error) {
	const q = `SELECT id, event_id, label, capacity, status, position_x, position_y
	           FROM venue_tables WHERE id = ? FOR UPDATE`
	var t model.Table
	err := tx.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.EventID, &t.Label, &t.Capacity, &t.Status, &t.PositionX, &t.PositionY,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByID loads a table outside any transaction.  Used by admin
// endpoints where no allocation race exists.
func (r *TableRepo) GetByID(ctx context.Context, id uint64) (*model.Table, error) {
	const q = `SELECT id, event_id, label, capacity, status, position_x, position_y
	           FROM venue_tables WHERE id = ?`
	var t model.Table
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.EventID, &t.Label, &t.Capacity, &t.Status, &t.PositionX, &t.PositionY,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateBulk inserts multiple tables in a single statement.  Used when an
// admin generates the grid for an event.  Passing an empty slice has no
// effect and returns nil.
func (r *TableRepo) CreateBulk(ctx context.Context, tables []model.Table) error {
	if len(tables) == 0 {
		return nil
	}
	query := `INSERT INTO venue_tables (event_id, label, capacity, status, position_x, position_y) VALUES `
	args := make([]interface{}, 0, len(tables)*6)
	for i, t := range tables {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, t.EventID, t.Label, t.Capacity, t.Status, t.PositionX, t.PositionY)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// UpdateStatus flips a table between available and blocked.  Existing
// selections on a newly blocked table are left in place; the allocation
// path simply refuses to add new ones.  Returns ErrTableNotFound when
// the id matches no row.
func (r *TableRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE venue_tables SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// status may already equal the requested value; distinguish from a
		// missing row with a cheap existence check
		var one int
		if err := r.db.QueryRowContext(ctx,
			`SELECT 1 FROM venue_tables WHERE id = ?`, id).Scan(&one); err == sql.ErrNoRows {
			return ErrTableNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}

// OverviewRow is one table in the layout overview, with its occupancy
// already aggregated.  OccupiedSeats is the sum of tickets_count over all
// graduates currently holding a selection on the table; it is derived on
// every read and never cached in the database.
type OverviewRow struct {
	ID            uint64
	Label         string
	Capacity      uint32
	Status        string
	PositionX     int32
	PositionY     int32
	OccupiedSeats uint32
	SelectedByMe  bool
}

// ListOverviewByEvent returns every table of an event together with its
// derived occupancy, in a single aggregate query so all rows reflect one
// consistent snapshot.  viewerID marks the caller's own selection in the
// result; pass zero for unauthenticated callers.
func (r *TableRepo) ListOverviewByEvent(ctx context.Context, eventID, viewerID uint64) ([]OverviewRow, error) {
	const q = `SELECT t.id, t.label, t.capacity, t.status, t.position_x, t.position_y,
	                  COALESCE(SUM(o.tickets_count), 0),
	                  COALESCE(MAX(CASE WHEN s.graduate_id = ? THEN 1 ELSE 0 END), 0)
	           FROM venue_tables t
	           LEFT JOIN table_selections s ON s.table_id = t.id
	           LEFT JOIN ticket_orders o ON o.graduate_id = s.graduate_id
	           WHERE t.event_id = ?
	           GROUP BY t.id, t.label, t.capacity, t.status, t.position_x, t.position_y
	           ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, q, viewerID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]OverviewRow, 0)
	for rows.Next() {
		var row OverviewRow
		var mine int
		if err := rows.Scan(
			&row.ID, &row.Label, &row.Capacity, &row.Status,
			&row.PositionX, &row.PositionY, &row.OccupiedSeats, &mine,
		); err != nil {
			return nil, err
		}
		row.SelectedByMe = mine == 1
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
