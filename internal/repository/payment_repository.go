package repository

import (
	"context"
	"database/sql"

	"github.com/dvaldes/gradgala/internal/model"
)

// PaymentRepo provides data access to the payments table.  Rows are
// created pending, tagged with the gateway transaction id once the
// charge is placed, and settled (paid/failed) by the webhook or, for
// cards, synchronously after the charge call.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, graduate_id, amount_cents, type, status, month_number, gateway_tx_id, payment_date, created_at`

func scanPayment(scan func(dest ...interface{}) error) (*model.Payment, error) {
	var p model.Payment
	var month sql.NullInt32
	var txID sql.NullString
	var paid sql.NullTime
	if err := scan(&p.ID, &p.GraduateID, &p.AmountCents, &p.Type, &p.Status, &month, &txID, &paid, &p.CreatedAt); err != nil {
		return nil, err
	}
	if month.Valid {
		n := uint32(month.Int32)
		p.MonthNumber = &n
	}
	if txID.Valid {
		v := txID.String
		p.GatewayTxID = &v
	}
	if paid.Valid {
		t := paid.Time
		p.PaymentDate = &t
	}
	return &p, nil
}

// Create inserts a pending payment and populates the generated ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (graduate_id, amount_cents, type, status, month_number) VALUES (?,?,?,?,?)`,
		p.GraduateID, p.AmountCents, p.Type, p.Status, p.MonthNumber)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return nil
}

// GetByID fetches a payment by id.
func (r *PaymentRepo) GetByID(ctx context.Context, id uint64) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	return scanPayment(row.Scan)
}

// GetByGatewayTxID fetches a payment by the gateway's charge id.  The
// webhook handler uses this to correlate deliveries; sql.ErrNoRows means
// the charge is unknown to us.
func (r *PaymentRepo) GetByGatewayTxID(ctx context.Context, txID string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_tx_id = ?`, txID)
	return scanPayment(row.Scan)
}

// SetGatewayTxID records the gateway's charge id on a payment.
func (r *PaymentRepo) SetGatewayTxID(ctx context.Context, id uint64, txID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET gateway_tx_id = ? WHERE id = ?`, txID, id)
	return err
}

// MarkPaid settles a payment.  The status guard makes settlement
// idempotent across duplicate webhook deliveries: only a row that is not
// yet paid is updated, and the affected-row count tells the caller
// whether this delivery actually settled anything.
func (r *PaymentRepo) MarkPaid(ctx context.Context, id uint64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'paid', payment_date = UTC_TIMESTAMP() WHERE id = ? AND status <> 'paid'`,
		id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkFailed flags a payment as failed unless it already settled.
func (r *PaymentRepo) MarkFailed(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'failed' WHERE id = ? AND status <> 'paid'`, id)
	return err
}

// SumPaidByGraduate returns the total settled amount in cents.
func (r *PaymentRepo) SumPaidByGraduate(ctx context.Context, graduateID uint64) (uint64, error) {
	var total uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE graduate_id = ? AND status = 'paid'`,
		graduateID).Scan(&total)
	return total, err
}

// CountPaidByGraduate returns how many payments have settled, and how
// many of those were monthly installments.
func (r *PaymentRepo) CountPaidByGraduate(ctx context.Context, graduateID uint64) (paid, paidMonthly int, err error) {
	const q = `SELECT COUNT(*),
	                  COALESCE(SUM(CASE WHEN type = 'monthly' THEN 1 ELSE 0 END), 0)
	           FROM payments WHERE graduate_id = ? AND status = 'paid'`
	err = r.db.QueryRowContext(ctx, q, graduateID).Scan(&paid, &paidMonthly)
	return paid, paidMonthly, err
}

// HasPaid reports whether a settled payment of the given type exists,
// optionally scoped to a month number for monthly installments.
func (r *PaymentRepo) HasPaid(ctx context.Context, graduateID uint64, paymentType string, monthNumber *uint32) (bool, error) {
	q := `SELECT COUNT(*) FROM payments WHERE graduate_id = ? AND type = ? AND status = 'paid'`
	args := []interface{}{graduateID, paymentType}
	if monthNumber != nil {
		q += ` AND month_number = ?`
		args = append(args, *monthNumber)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByGraduate returns all payments newest first.
func (r *PaymentRepo) ListByGraduate(ctx context.Context, graduateID uint64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE graduate_id = ? ORDER BY created_at DESC, id DESC`,
		graduateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := make([]model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows.Scan)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}
