//go:build !protogen

package hours

import "context"

// Schedule describes a doctor's bookable window as maintained by
// doctor-service. Zero StepMinutes means the caller's default applies.
type Schedule struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	StepMinutes int
	HorizonDays int
}

type Provider interface {
	GetSchedule(ctx context.Context, doctorID string) (Schedule, error)
}

func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
