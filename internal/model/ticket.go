package model

import "time"

// Guest type and meal values stored in the `guests` table.
const (
	GuestTypeGraduate = "graduate"
	GuestTypeGuest    = "guest"

	MealTraditional = "traditional"
	MealVegan       = "vegan"
)

// TicketOrder represents a graduate's ticket purchase as stored in the
// `ticket_orders` table.  There is at most one order per graduate; adding
// guests later updates the same row.  TicketsCount is the number of seats
// the order entitles the graduate to claim (self plus guests), which is
// exactly the figure the seat ledger charges against table capacity.
type TicketOrder struct {
	ID               uint64    // ticket_orders.id
	GraduateID       uint64    // ticket_orders.graduate_id (unique)
	TicketsCount     uint32    // ticket_orders.tickets_count
	BasePriceCents   uint64    // ticket_orders.base_price_cents
	TotalAmountCents uint64    // ticket_orders.total_amount_cents
	CreatedAt        time.Time // ticket_orders.created_at
	UpdatedAt        time.Time // ticket_orders.updated_at
}

// Guest represents one attendee covered by a ticket order.  The first
// guest row created for an order is the graduate themselves.
type Guest struct {
	ID         uint64    // guests.id
	GraduateID uint64    // guests.graduate_id
	Type       string    // guests.type (graduate|guest)
	FullName   string    // guests.full_name
	MealType   string    // guests.meal_type (traditional|vegan)
	SeatNumber *uint32   // guests.seat_number (nullable, assigned at the venue)
	CreatedAt  time.Time // guests.created_at
}
