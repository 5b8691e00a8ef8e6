package calendar

import (
	"testing"
	"time"
)

func collect(seq func(yield func(Slot) bool)) []Slot {
	var out []Slot
	seq(func(s Slot) bool {
		out = append(out, s)
		return true
	})
	return out
}

func TestAvailableSlots_FullDay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizonDays = 1

	// Before opening, so the whole day is offered.
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	slots := collect(AvailableSlots(cfg, true, nil, now))

	// 10:00 .. 20:30 at 30-minute steps.
	if len(slots) != 22 {
		t.Fatalf("expected 22 slots, got %d", len(slots))
	}
	if slots[0].Time != "10:00" || slots[0].Date != "2024-03-01" {
		t.Fatalf("unexpected first slot %+v", slots[0])
	}
	if slots[len(slots)-1].Time != "20:30" {
		t.Fatalf("unexpected last slot %+v", slots[len(slots)-1])
	}
}

func TestAvailableSlots_TodayStartsAfterNow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizonDays = 1
	cfg.Lead = 15 * time.Minute

	// 13:40 + 15m lead = 13:55, rounded up to 14:00.
	now := time.Date(2024, 3, 1, 13, 40, 0, 0, time.UTC)
	slots := collect(AvailableSlots(cfg, true, nil, now))
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	if slots[0].Time != "14:00" {
		t.Fatalf("expected first slot 14:00, got %s", slots[0].Time)
	}
}

func TestAvailableSlots_FutureDaysStartAtOpening(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizonDays = 2

	now := time.Date(2024, 3, 1, 20, 45, 0, 0, time.UTC)
	slots := collect(AvailableSlots(cfg, true, nil, now))
	// Today is exhausted (20:45 rounds up to 21:00 which is past closing),
	// so the first candidate is tomorrow at opening.
	if slots[0].Date != "2024-03-02" || slots[0].Time != "10:00" {
		t.Fatalf("unexpected first slot %+v", slots[0])
	}
}

func TestAvailableSlots_SkipsBooked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizonDays = 1

	booked := map[string][]string{
		"2024-03-01": {"10:00", "10:30"},
	}
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	slots := collect(AvailableSlots(cfg, true, OccupancyFromMap(booked), now))
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	if slots[0].Time != "11:00" {
		t.Fatalf("expected first slot 11:00, got %s", slots[0].Time)
	}
}

func TestAvailableSlots_UnavailableDoctor(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if slots := collect(AvailableSlots(cfg, false, nil, now)); len(slots) != 0 {
		t.Fatalf("expected no slots for an unavailable doctor, got %d", len(slots))
	}
}

func TestAvailableSlots_Restartable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HorizonDays = 1
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	seq := AvailableSlots(cfg, true, nil, now)
	first := collect(seq)
	second := collect(seq)
	if len(first) != len(second) {
		t.Fatalf("sequence not restartable: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("slot %d differs between passes: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestAvailableSlots_EarlyStop(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	var got []Slot
	AvailableSlots(cfg, true, nil, now)(func(s Slot) bool {
		got = append(got, s)
		return len(got) < 3
	})
	if len(got) != 3 {
		t.Fatalf("expected early stop after 3 slots, got %d", len(got))
	}
}
