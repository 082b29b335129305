package model

import "time"

// Payment type and status values stored in the `payments` table.
// Retroactive payments are created when guests are added after monthly
// installments have already been collected.
const (
	PaymentInitial     = "initial"
	PaymentMonthly     = "monthly"
	PaymentRetroactive = "retroactive"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
)

// Payment represents a single installment as stored in the `payments`
// table.  GatewayTxID is the charge identifier assigned by the payment
// gateway; it is unique so webhook deliveries settle each charge at most
// once.
type Payment struct {
	ID          uint64     // payments.id
	GraduateID  uint64     // payments.graduate_id
	AmountCents uint64     // payments.amount_cents
	Type        string     // payments.type
	Status      string     // payments.status
	MonthNumber *uint32    // payments.month_number (nullable, monthly only)
	GatewayTxID *string    // payments.gateway_tx_id (nullable, unique)
	PaymentDate *time.Time // payments.payment_date (nullable)
	CreatedAt   time.Time  // payments.created_at
}
