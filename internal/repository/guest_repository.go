package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dvaldes/gradgala/internal/model"
)

// GuestRepo provides data access to the guests table.  Guest rows are
// created alongside the ticket order (the first row being the graduate
// themselves) and extended when additional guests are bought.
type GuestRepo struct {
	db *sql.DB
}

// NewGuestRepo returns a new GuestRepo bound to the given database.
func NewGuestRepo(db *sql.DB) *GuestRepo { return &GuestRepo{db: db} }

// CreateBulk inserts multiple guests in a single statement.  Passing an
// empty slice has no effect and returns nil.
func (r *GuestRepo) CreateBulk(ctx context.Context, guests []model.Guest) error {
	if len(guests) == 0 {
		return nil
	}
	query := `INSERT INTO guests (graduate_id, type, full_name, meal_type) VALUES `
	args := make([]interface{}, 0, len(guests)*4)
	for i, g := range guests {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, g.GraduateID, g.Type, g.FullName, g.MealType)
	}
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

// ListByGraduate returns the graduate's guest roster ordered by creation
// time so the graduate themselves comes first.
func (r *GuestRepo) ListByGraduate(ctx context.Context, graduateID uint64) ([]model.Guest, error) {
	const q = `SELECT id, graduate_id, type, full_name, meal_type, seat_number, created_at
	           FROM guests WHERE graduate_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, graduateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	guests := make([]model.Guest, 0)
	for rows.Next() {
		var g model.Guest
		var seat sql.NullInt32
		if err := rows.Scan(&g.ID, &g.GraduateID, &g.Type, &g.FullName, &g.MealType, &seat, &g.CreatedAt); err != nil {
			return nil, err
		}
		if seat.Valid {
			n := uint32(seat.Int32)
			g.SeatNumber = &n
		}
		guests = append(guests, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return guests, nil
}

// GetForGraduate returns a single guest, enforcing that it belongs to the
// given graduate.  Returns sql.ErrNoRows otherwise.
func (r *GuestRepo) GetForGraduate(ctx context.Context, guestID, graduateID uint64) (*model.Guest, error) {
	const q = `SELECT id, graduate_id, type, full_name, meal_type, seat_number, created_at
	           FROM guests WHERE id = ? AND graduate_id = ?`
	var g model.Guest
	var seat sql.NullInt32
	err := r.db.QueryRowContext(ctx, q, guestID, graduateID).Scan(
		&g.ID, &g.GraduateID, &g.Type, &g.FullName, &g.MealType, &seat, &g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if seat.Valid {
		n := uint32(seat.Int32)
		g.SeatNumber = &n
	}
	return &g, nil
}

// Update applies the non-nil fields to a guest row.  Callers must verify
// ownership first via GetForGraduate.
func (r *GuestRepo) Update(ctx context.Context, guestID uint64, fullName, mealType *string) error {
	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if fullName != nil {
		sets = append(sets, "full_name = ?")
		args = append(args, strings.TrimSpace(*fullName))
	}
	if mealType != nil {
		sets = append(sets, "meal_type = ?")
		args = append(args, *mealType)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, guestID)
	_, err := r.db.ExecContext(ctx,
		"UPDATE guests SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	return err
}

// CountByGraduate returns the number of guest rows for a graduate.
func (r *GuestRepo) CountByGraduate(ctx context.Context, graduateID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM guests WHERE graduate_id = ?`, graduateID).Scan(&n)
	return n, err
}

// CountMealsByGraduate returns how many guests chose each meal type.
func (r *GuestRepo) CountMealsByGraduate(ctx context.Context, graduateID uint64) (traditional, vegan int, err error) {
	const q = `SELECT
	             COALESCE(SUM(CASE WHEN meal_type = 'traditional' THEN 1 ELSE 0 END), 0),
	             COALESCE(SUM(CASE WHEN meal_type = 'vegan' THEN 1 ELSE 0 END), 0)
	           FROM guests WHERE graduate_id = ?`
	err = r.db.QueryRowContext(ctx, q, graduateID).Scan(&traditional, &vegan)
	return traditional, vegan, err
}

// DeleteByGraduate removes all guest rows for a graduate as part of a
// ticket reset.
func (r *GuestRepo) DeleteByGraduate(ctx context.Context, graduateID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM guests WHERE graduate_id = ?`, graduateID)
	return err
}
