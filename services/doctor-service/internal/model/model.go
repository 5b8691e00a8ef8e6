package model

import "time"

// Doctor is the authoritative provider record. booking-service keeps a
// trimmed copy of it, fed by published snapshots.
type Doctor struct {
	ID         string
	Name       string
	Email      string
	Speciality string
	Degree     string
	About      string
	FeeMinor   int64
	Currency   string
	Available  bool

	// Clinic hours served to booking-service over gRPC.
	OpenHour        int
	OpenMinute      int
	CloseHour       int
	CloseMinute     int
	SlotStepMinutes int
	HorizonDays     int

	CreatedAt time.Time
	UpdatedAt time.Time
}
