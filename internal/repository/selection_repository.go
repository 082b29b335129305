package repository

import (
	"context"
	"database/sql"
)

// SelectionRepo provides data access to the table_selections table.  A
// selection binds one graduate to one table; the unique key on
// graduate_id makes at-most-one-selection-per-graduate a database
// invariant rather than an application convention.  All mutations happen
// through the Tx variants inside the allocation transaction owned by the
// layout handler.
type SelectionRepo struct {
	db *sql.DB
}

// NewSelectionRepo returns a new SelectionRepo bound to the given database.
func NewSelectionRepo(db *sql.DB) *SelectionRepo { return &SelectionRepo{db: db} }

// SelectionDetail is a graduate's current selection joined with its
// table's display fields, returned for the overview response.
type SelectionDetail struct {
	TableID    uint64 `json:"table_id"`
	TableLabel string `json:"table_label"`
}

// GetByGraduate returns the graduate's current selection with the table
// label, or sql.ErrNoRows when the graduate holds none.
func (r *SelectionRepo) GetByGraduate(ctx context.Context, graduateID uint64) (*SelectionDetail, error) {
	const q = `SELECT s.table_id, t.label
	           FROM table_selections s
	           JOIN venue_tables t ON t.id = s.table_id
	           WHERE s.graduate_id = ?`
	var d SelectionDetail
	if err := r.db.QueryRowContext(ctx, q, graduateID).Scan(&d.TableID, &d.TableLabel); err != nil {
		return nil, err
	}
	return &d, nil
}

// OccupiedSeatsTx computes the occupancy of a table within the provided
// transaction: the sum of tickets_count over every graduate holding a
// selection on it, excluding the requesting graduate's own claim so that
// re-selecting the current table counts only the seats taken by others.
// The caller must hold the table row lock before calling this, otherwise
// the value can go stale between the read and the insert.
func (r *SelectionRepo) OccupiedSeatsTx(ctx context.Context, tx *sql.Tx, tableID, excludeGraduateID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(o.tickets_count), 0)
	           FROM table_selections s
	           JOIN ticket_orders o ON o.graduate_id = s.graduate_id
	           WHERE s.table_id = ? AND s.graduate_id <> ?`
	var occupied uint32
	if err := tx.QueryRowContext(ctx, q, tableID, excludeGraduateID).Scan(&occupied); err != nil {
		return 0, err
	}
	return occupied, nil
}

// DeleteByGraduateTx removes the graduate's current selection, if any,
// within the provided transaction.  Deleting zero rows is not an error;
// first-time selections have nothing to release.
func (r *SelectionRepo) DeleteByGraduateTx(ctx context.Context, tx *sql.Tx, graduateID uint64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM table_selections WHERE graduate_id = ?`, graduateID)
	return err
}

// DeleteByGraduate removes the graduate's selection outside a transaction.
// Used by the ticket reset flow, where releasing seats can never conflict.
func (r *SelectionRepo) DeleteByGraduate(ctx context.Context, graduateID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM table_selections WHERE graduate_id = ?`, graduateID)
	return err
}

// CreateTx inserts a new selection within the provided transaction.  The
// unique key on graduate_id rejects a second concurrent insert for the
// same graduate even if delete-then-insert interleaves across sessions.
func (r *SelectionRepo) CreateTx(ctx context.Context, tx *sql.Tx, graduateID, tableID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO table_selections (graduate_id, table_id) VALUES (?, ?)`,
		graduateID, tableID)
	return err
}

// RosterEntry is one selection in the admin roster for an event.
type RosterEntry struct {
	TableID       uint64 `json:"table_id"`
	TableLabel    string `json:"table_label"`
	GraduateID    uint64 `json:"graduate_id"`
	GraduateName  string `json:"graduate_name"`
	RequiredSeats uint32 `json:"required_seats"`
}

// ListRosterByEvent returns every selection of an event with the holder's
// name and seat requirement, ordered by table.  Used by the admin
// selections endpoint.
func (r *SelectionRepo) ListRosterByEvent(ctx context.Context, eventID uint64) ([]RosterEntry, error) {
	const q = `SELECT t.id, t.label, g.id, g.full_name, COALESCE(o.tickets_count, 0)
	           FROM table_selections s
	           JOIN venue_tables t ON t.id = s.table_id
	           JOIN graduates g ON g.id = s.graduate_id
	           LEFT JOIN ticket_orders o ON o.graduate_id = g.id
	           WHERE t.event_id = ?
	           ORDER BY t.id, g.full_name`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]RosterEntry, 0)
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.TableID, &e.TableLabel, &e.GraduateID, &e.GraduateName, &e.RequiredSeats); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
