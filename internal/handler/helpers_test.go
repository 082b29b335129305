package handler

import (
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// Shared fixtures for handler tests.  The event prices seats at 250000
// cents with a 50000 down payment over 10 months, a 60 percent thermo
// threshold, and a meals deadline far in the future.

func eventRows(id uint64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "name", "date", "venue", "capacity", "ticket_price_cents", "initial_payment_cents",
		"months_duration", "thermo_threshold", "meals_deadline", "status", "created_at", "updated_at",
	}).AddRow(id, "Gala 2026", now.Add(90*24*time.Hour), "Salon Diamante", 500,
		250000, 50000, 10, 60, now.Add(60*24*time.Hour), "active", now, now)
}

func pastDeadlineEventRows(id uint64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "name", "date", "venue", "capacity", "ticket_price_cents", "initial_payment_cents",
		"months_duration", "thermo_threshold", "meals_deadline", "status", "created_at", "updated_at",
	}).AddRow(id, "Gala 2026", now.Add(24*time.Hour), "Salon Diamante", 500,
		250000, 50000, 10, 60, now.Add(-24*time.Hour), "active", now, now)
}

func graduateRows(id, eventID uint64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "event_id", "full_name", "email", "phone", "career", "generation", "group_name",
		"password_hash", "role", "status", "tickets_step", "layout_step", "meals_step",
		"payments_step", "thermo_step", "thermo_prefix", "thermo_name", "created_at", "updated_at",
	}).AddRow(id, eventID, "Ana Torres", "ana@example.com", "5511223344", "Derecho", "2022-2026", nil,
		"$2a$10$hash", "GRADUATE", "active", "completed", "pending", "pending",
		"in_progress", "locked", nil, nil, now, now)
}

func ticketOrderRows(id, graduateID uint64, count uint32, base, total uint64) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "graduate_id", "tickets_count", "base_price_cents", "total_amount_cents", "created_at", "updated_at",
	}).AddRow(id, graduateID, count, base, total, now, now)
}
