package model

import "time"

// Doctor is the booking-service view of a provider: the fields bookings need
// (fee, availability), kept in sync from doctor-service events. Profile display
// fields live in doctor-service and are re-derived at read time, not copied here.
type Doctor struct {
	ID         string
	Name       string
	Speciality string
	FeeMinor   int64
	Currency   string
	Available  bool
	UpdatedAt  time.Time
}

// Appointment references a (doctor, slot_date, slot_time) coordinate.
// AmountMinor is the doctor's fee frozen at booking time; later fee changes
// never affect an existing appointment. Appointments are never deleted —
// cancellation is a soft, one-way flag.
type Appointment struct {
	ID          string
	PatientID   string
	DoctorID    string
	SlotDate    string // YYYY-MM-DD
	SlotTime    string // HH:MM
	AmountMinor int64
	Currency    string
	Cancelled   bool
	CancelledAt *time.Time
	Paid        bool
	PaidAt      *time.Time
	Completed   bool
	CreatedAt   time.Time
}

const (
	DateKeyLayout = "2006-01-02"
	TimeKeyLayout = "15:04"
)

// DateKey returns the canonical slot date key for t.
func DateKey(t time.Time) string { return t.Format(DateKeyLayout) }

// TimeKey returns the canonical slot time-of-day key for t.
func TimeKey(t time.Time) string { return t.Format(TimeKeyLayout) }
