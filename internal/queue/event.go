// Package queue defines message payloads exchanged over the message broker.
package queue

// TableSelectedEvent is published when a graduate secures seats at a venue
// table.  It carries enough context for downstream consumers to log or notify
// without querying the primary database.
type TableSelectedEvent struct {
	GraduateID    uint64 `json:"graduate_id"`
	GraduateName  string `json:"graduate_name"`
	EventID       uint64 `json:"event_id"`
	TableID       uint64 `json:"table_id"`
	TableLabel    string `json:"table_label"`
	SeatsTaken    uint32 `json:"seats_taken"`
	SeatsCapacity uint32 `json:"seats_capacity"`
	SelectedAt    string `json:"selected_at"`
}

// PaymentSucceededEvent is published after a payment settles, either through
// the gateway webhook or a direct card charge.
type PaymentSucceededEvent struct {
	PaymentID   uint64 `json:"payment_id"`
	GraduateID  uint64 `json:"graduate_id"`
	EventID     uint64 `json:"event_id"`
	Type        string `json:"type"`
	AmountCents uint32 `json:"amount_cents"`
	MonthNumber uint32 `json:"month_number,omitempty"`
	GatewayTxID string `json:"gateway_tx_id,omitempty"`
	PaidAt      string `json:"paid_at"`
}
