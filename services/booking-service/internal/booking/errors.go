package booking

import "errors"

// Expected business rejections. Handlers translate these to HTTP statuses;
// anything else propagating out of the service is an infrastructure fault.
var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrDoctorUnavailable   = errors.New("doctor not accepting bookings")
	ErrSlotUnavailable     = errors.New("slot not available")
	ErrInvalidSlot         = errors.New("invalid slot date or time")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNotOwner            = errors.New("appointment belongs to another patient")
	ErrAlreadyCancelled    = errors.New("appointment already cancelled")
	ErrAlreadyPaid         = errors.New("appointment already paid")
	// ErrAppointmentCancelled rejects payment-side operations on a cancelled
	// appointment: cancelled-then-paid must never be reachable.
	ErrAppointmentCancelled = errors.New("appointment is cancelled")
)
