package model

import "time"

// Event represents a graduation event as stored in the `events` table.
// Pricing fields are kept in cents to avoid floating point arithmetic on
// money. The thermo threshold is the payment-progress percentage at which
// the personalized thermo becomes customizable.
//
// Fields:
//  ID                  – primary key identifier.
//  Name                – display name of the event.
//  Date                – date and time of the ceremony (UTC).
//  Venue               – venue name.
//  Capacity            – total venue capacity, informational only.
//  TicketPriceCents    – price per seat in cents.
//  InitialPaymentCents – required down payment in cents.
//  MonthsDuration      – number of monthly installments after the down payment.
//  ThermoThreshold     – percent of total paid that unlocks the thermo.
//  MealsDeadline       – cut-off after which meal choices are frozen.
//  Status              – event lifecycle status (e.g. active).
type Event struct {
	ID                  uint64    // events.id
	Name                string    // events.name
	Date                time.Time // events.date
	Venue               string    // events.venue
	Capacity            uint32    // events.capacity
	TicketPriceCents    uint64    // events.ticket_price_cents
	InitialPaymentCents uint64    // events.initial_payment_cents
	MonthsDuration      uint32    // events.months_duration
	ThermoThreshold     uint32    // events.thermo_threshold
	MealsDeadline       time.Time // events.meals_deadline
	Status              string    // events.status
	CreatedAt           time.Time // events.created_at
	UpdatedAt           time.Time // events.updated_at
}
