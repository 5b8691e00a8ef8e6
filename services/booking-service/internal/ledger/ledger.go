// Package ledger is the authoritative record of booked slots per doctor.
// It is the only component allowed to mutate occupancy; claims are atomic so
// two concurrent bookings of the same (doctor, date, time) cannot both win.
package ledger

import (
	"context"
	"errors"
)

var (
	// ErrSlotTaken is the expected business outcome when a slot is already
	// claimed, not an infrastructure fault.
	ErrSlotTaken = errors.New("slot already booked")

	ErrDoctorNotFound = errors.New("doctor not found")
)

type Ledger interface {
	// Claim atomically checks-and-inserts the slot. Returns ErrSlotTaken if
	// the coordinate is occupied and ErrDoctorNotFound for an unknown doctor.
	Claim(ctx context.Context, doctorID, dateKey, timeKey string) error

	// Release removes the slot if present. Releasing an absent slot is a no-op.
	Release(ctx context.Context, doctorID, dateKey, timeKey string) error

	// Booked returns the doctor's occupancy as slot_date -> slot_times.
	Booked(ctx context.Context, doctorID string) (map[string][]string, error)
}
