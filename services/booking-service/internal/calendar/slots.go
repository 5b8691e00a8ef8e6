package calendar

import (
	"iter"
	"time"

	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

// Slot is a bookable (date, time-of-day) coordinate for a doctor.
type Slot struct {
	Date string // YYYY-MM-DD
	Time string // HH:MM
	At   time.Time
}

// Config holds the clinic scheduling parameters. It is passed in explicitly;
// there is no package-level default state.
type Config struct {
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int
	Step        time.Duration
	Lead        time.Duration // minimum notice before a slot can be booked
	HorizonDays int
}

// DefaultConfig mirrors the clinic's published hours: 10:00-21:00 at
// 30-minute steps over a 7-day booking horizon.
func DefaultConfig() Config {
	return Config{
		OpenHour:    10,
		CloseHour:   21,
		Step:        30 * time.Minute,
		HorizonDays: 7,
	}
}

// Occupancy reports whether a (date, time) coordinate is already booked.
type Occupancy func(dateKey, timeKey string) bool

// AvailableSlots yields, in chronological order, the free slots for a doctor
// over cfg.HorizonDays starting at now's calendar day. For the current day the
// first candidate is now+Lead rounded up to the next Step boundary; later days
// start at opening time. The sequence is finite, has no side effects, and can
// be ranged over more than once. An unavailable doctor yields nothing.
func AvailableSlots(cfg Config, available bool, occupied Occupancy, now time.Time) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if !available || cfg.Step <= 0 || cfg.HorizonDays <= 0 {
			return
		}

		for day := 0; day < cfg.HorizonDays; day++ {
			date := now.AddDate(0, 0, day)
			open := time.Date(date.Year(), date.Month(), date.Day(), cfg.OpenHour, cfg.OpenMinute, 0, 0, now.Location())
			close := time.Date(date.Year(), date.Month(), date.Day(), cfg.CloseHour, cfg.CloseMinute, 0, 0, now.Location())
			if !close.After(open) {
				continue
			}

			start := open
			if day == 0 {
				earliest := roundUp(now.Add(cfg.Lead), cfg.Step)
				if earliest.After(start) {
					start = earliest
				}
			}

			for t := start; t.Before(close); t = t.Add(cfg.Step) {
				dateKey := model.DateKey(t)
				timeKey := model.TimeKey(t)
				if occupied != nil && occupied(dateKey, timeKey) {
					continue
				}
				if !yield(Slot{Date: dateKey, Time: timeKey, At: t}) {
					return
				}
			}
		}
	}
}

// OccupancyFromMap adapts a slot_date -> slot_times occupancy snapshot.
// A nil map or missing date key means fully free.
func OccupancyFromMap(booked map[string][]string) Occupancy {
	return func(dateKey, timeKey string) bool {
		for _, t := range booked[dateKey] {
			if t == timeKey {
				return true
			}
		}
		return false
	}
}

func roundUp(t time.Time, step time.Duration) time.Time {
	rounded := t.Truncate(step)
	if rounded.Before(t) {
		rounded = rounded.Add(step)
	}
	return rounded
}
