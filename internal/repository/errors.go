// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrTableBlocked indicates that an allocation targeted a
// table an administrator has taken out of service, while
// ErrInsufficientSeats signals that the remaining capacity cannot
// cover the requested party size.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrEmailExists is returned by GraduateRepo.Create when the email is
// already registered. Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

// ErrEventNotFound is returned when an event lookup matches no row.
var ErrEventNotFound = errors.New("event not found")

// ErrTableNotFound is returned when a table lookup matches no row.
var ErrTableNotFound = errors.New("table not found")

// ErrTableBlocked is returned by the allocation path when the target
// table has status "blocked". Blocked tables are never assignable
// regardless of their occupancy. Handlers translate this into HTTP 409.
var ErrTableBlocked = errors.New("table is blocked")

// ErrNoTickets is returned by the allocation path when the graduate has
// no ticket order yet and therefore no seats to claim. Handlers
// translate this into the precondition_failed error kind.
var ErrNoTickets = errors.New("no tickets purchased")

// ErrInsufficientSeats is returned by the allocation path when the
// table's remaining capacity cannot cover the requested party. The
// concrete InsufficientSeatsError value carries the actual counts.
var ErrInsufficientSeats = errors.New("insufficient seats")

// InsufficientSeatsError reports how many seats were free on the table
// at the moment the allocation was attempted versus how many the
// graduate required. It unwraps to ErrInsufficientSeats so callers can
// match with errors.Is while still reading the counts.
type InsufficientSeatsError struct {
	Available int
	Required  int
}

func (e *InsufficientSeatsError) Error() string { return ErrInsufficientSeats.Error() }

// Unwrap lets errors.Is(err, ErrInsufficientSeats) succeed.
func (e *InsufficientSeatsError) Unwrap() error { return ErrInsufficientSeats }
