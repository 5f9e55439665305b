package database

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the operation target (booking, service) does
// not exist or is not in the expected state.
var ErrNotFound = errors.New("not found")

// RejectionKind enumerates the expected business reasons a booking attempt
// can be refused. Callers match on the kind instead of comparing messages.
type RejectionKind string

const (
	// RejectClientAlreadyBooked - the client already holds an active booking.
	RejectClientAlreadyBooked RejectionKind = "client_already_booked"
	// RejectDayUnavailable - the working day is missing or closed.
	RejectDayUnavailable RejectionKind = "day_unavailable"
	// RejectSlotMissing - a required slot does not exist.
	RejectSlotMissing RejectionKind = "slot_missing"
	// RejectSlotTaken - a required slot is already booked.
	RejectSlotTaken RejectionKind = "slot_taken"
)

// Rejection is a business refusal of a booking operation. SlotTime identifies
// the offending slot for the slot-level kinds; empty otherwise.
type Rejection struct {
	Kind     RejectionKind
	SlotTime string
}

func (r *Rejection) Error() string {
	if r.SlotTime != "" {
		return fmt.Sprintf("booking rejected: %s (%s)", r.Kind, r.SlotTime)
	}
	return fmt.Sprintf("booking rejected: %s", r.Kind)
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

func reject(kind RejectionKind) *Rejection {
	return &Rejection{Kind: kind}
}

func rejectSlot(kind RejectionKind, slotTime string) *Rejection {
	return &Rejection{Kind: kind, SlotTime: slotTime}
}
