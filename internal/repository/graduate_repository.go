package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/dvaldes/gradgala/internal/model"
	"github.com/dvaldes/gradgala/internal/utils"
)

// GraduateRepo provides data access to the graduates table, including
// the per-step progress flags that drive the onboarding flow.
type GraduateRepo struct {
	db *sql.DB
}

// NewGraduateRepo returns a new GraduateRepo bound to the given database.
func NewGraduateRepo(db *sql.DB) *GraduateRepo { return &GraduateRepo{db: db} }

const graduateColumns = `id, event_id, full_name, email, phone, career, generation, group_name,
	password_hash, role, status, tickets_step, layout_step, meals_step, payments_step, thermo_step,
	thermo_prefix, thermo_name, created_at, updated_at`

func scanGraduate(row *sql.Row) (*model.Graduate, error) {
	var g model.Graduate
	var group, prefix, name sql.NullString
	err := row.Scan(
		&g.ID, &g.EventID, &g.FullName, &g.Email, &g.Phone, &g.Career, &g.Generation, &group,
		&g.PasswordHash, &g.Role, &g.Status, &g.TicketsStep, &g.LayoutStep, &g.MealsStep,
		&g.PaymentsStep, &g.ThermoStep, &prefix, &name, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if group.Valid {
		v := group.String
		g.GroupName = &v
	}
	if prefix.Valid {
		v := prefix.String
		g.ThermoPrefix = &v
	}
	if name.Valid {
		v := name.String
		g.ThermoName = &v
	}
	return &g, nil
}

// Create inserts a graduate with a freshly hashed password and returns
// the generated ID.  New registrations start with the tickets step
// pending and the downstream steps locked.  Returns ErrEmailExists when
// the unique email constraint is violated.
func (r *GraduateRepo) Create(ctx context.Context, g *model.Graduate, password string, bcryptCost int) (uint64, error) {
	g.Email = strings.ToLower(strings.TrimSpace(g.Email))
	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO graduates
		 (event_id, full_name, email, phone, career, generation, group_name, password_hash, role, status,
		  tickets_step, layout_step, meals_step, payments_step, thermo_step)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		g.EventID, g.FullName, g.Email, g.Phone, g.Career, g.Generation, g.GroupName, hash,
		model.RoleGraduate, "pending",
		model.StepPending, model.StepLocked, model.StepLocked, model.StepPending, model.StepLocked)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a graduate by normalized email.
func (r *GraduateRepo) GetByEmail(ctx context.Context, email string) (*model.Graduate, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRowContext(ctx,
		`SELECT `+graduateColumns+` FROM graduates WHERE email = ? LIMIT 1`, email)
	return scanGraduate(row)
}

// GetByID fetches a graduate by id.
func (r *GraduateRepo) GetByID(ctx context.Context, id uint64) (*model.Graduate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+graduateColumns+` FROM graduates WHERE id = ? LIMIT 1`, id)
	return scanGraduate(row)
}

// MarkLayoutCompletedTx sets the layout step to completed within the
// allocation transaction, so the progress flag is never observed without
// a corresponding selection row.
func (r *GraduateRepo) MarkLayoutCompletedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE graduates SET layout_step = ? WHERE id = ?`, model.StepCompleted, id)
	return err
}

// SetTicketsCompleted marks the ticket step done, activates the account
// and unlocks the layout and meals steps.
func (r *GraduateRepo) SetTicketsCompleted(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE graduates SET tickets_step = ?, layout_step = ?, meals_step = ?, status = 'active' WHERE id = ?`,
		model.StepCompleted, model.StepPending, model.StepPending, id)
	return err
}

// ResetTicketFlow returns the step flags to their post-registration state
// after a ticket reset.
func (r *GraduateRepo) ResetTicketFlow(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE graduates SET tickets_step = ?, layout_step = ?, meals_step = ? WHERE id = ?`,
		model.StepPending, model.StepLocked, model.StepLocked, id)
	return err
}

// SetMealsCompleted marks the meals step done, once.
func (r *GraduateRepo) SetMealsCompleted(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE graduates SET meals_step = ? WHERE id = ? AND meals_step <> ?`,
		model.StepCompleted, id, model.StepCompleted)
	return err
}

// SetPaymentProgress updates the payments step and, when unlockThermo is
// true, flips a locked thermo step to unlocked.  Called after a payment
// settles.
func (r *GraduateRepo) SetPaymentProgress(ctx context.Context, id uint64, paymentsStep string, unlockThermo bool) error {
	if unlockThermo {
		_, err := r.db.ExecContext(ctx,
			`UPDATE graduates SET payments_step = ?,
			        thermo_step = CASE WHEN thermo_step = ? THEN ? ELSE thermo_step END
			 WHERE id = ?`,
			paymentsStep, model.StepLocked, model.StepUnlocked, id)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE graduates SET payments_step = ? WHERE id = ?`, paymentsStep, id)
	return err
}

// SetThermo stores the customization and completes the thermo step.
func (r *GraduateRepo) SetThermo(ctx context.Context, id uint64, prefix, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE graduates SET thermo_prefix = ?, thermo_name = ?, thermo_step = ? WHERE id = ?`,
		prefix, name, model.StepCompleted, id)
	return err
}
