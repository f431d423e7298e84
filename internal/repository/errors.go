// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrScheduleConflict signals that a requested
// time window collides with an existing placement on the same stage
// and date.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// reserved for another role, such as a stage account resetting a
// sector. Handlers should translate this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as scheduling a competition that is already
// placed in the sector or reusing a taken email. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrScheduleConflict is returned when a candidate time window overlaps
// an existing placement on the same stage and date.
var ErrScheduleConflict = errors.New("schedule conflict")

// ErrStatusConflict is returned when a status transition would violate
// the single-ongoing or single-reporting rule for a stage and date.
var ErrStatusConflict = errors.New("status conflict")
