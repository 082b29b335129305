package model

import "time"

// Table status values.  A blocked table is never assignable regardless of
// occupancy; only an admin flips the flag.
const (
	TableAvailable = "available"
	TableBlocked   = "blocked"
)

// Table represents a seating table on the venue layout as stored in the
// `venue_tables` table.  Capacity is fixed at creation.  Position is
// display-only and has no bearing on allocation.
//
// Fields:
//  ID        – primary key identifier.
//  EventID   – event this table belongs to.
//  Label     – display label (e.g. "Mesa 12").
//  Capacity  – number of seats at the table, fixed at creation.
//  Status    – available or blocked.
//  PositionX – horizontal position on the layout canvas.
//  PositionY – vertical position on the layout canvas.
type Table struct {
	ID        uint64    // venue_tables.id
	EventID   uint64    // venue_tables.event_id
	Label     string    // venue_tables.label
	Capacity  uint32    // venue_tables.capacity
	Status    string    // venue_tables.status
	PositionX int32     // venue_tables.position_x
	PositionY int32     // venue_tables.position_y
	CreatedAt time.Time // venue_tables.created_at
	UpdatedAt time.Time // venue_tables.updated_at
}

// Selection binds one graduate to one table.  The unique key on
// graduate_id guarantees a graduate holds at most one selection at any
// time; replacement happens as delete-then-insert inside the allocation
// transaction, never leaving a dangling row.
type Selection struct {
	ID         uint64    // table_selections.id
	GraduateID uint64    // table_selections.graduate_id (unique)
	TableID    uint64    // table_selections.table_id
	CreatedAt  time.Time // table_selections.created_at
}
