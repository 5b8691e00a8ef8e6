package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process Ledger guarded by one mutex per doctor, so claims
// for different doctors never contend with each other. Used by tests and by
// local runs without Postgres.
type Memory struct {
	mu      sync.Mutex // guards the doctors map itself
	doctors map[string]*doctorSlots
}

type doctorSlots struct {
	mu     sync.Mutex
	booked map[string]map[string]struct{} // dateKey -> timeKey set
}

func NewMemory(doctorIDs ...string) *Memory {
	m := &Memory{doctors: make(map[string]*doctorSlots)}
	for _, id := range doctorIDs {
		m.doctors[id] = &doctorSlots{booked: make(map[string]map[string]struct{})}
	}
	return m
}

// AddDoctor registers a doctor with an empty occupancy record.
func (m *Memory) AddDoctor(doctorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.doctors[doctorID]; !ok {
		m.doctors[doctorID] = &doctorSlots{booked: make(map[string]map[string]struct{})}
	}
}

func (m *Memory) get(doctorID string) *doctorSlots {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doctors[doctorID]
}

func (m *Memory) Claim(_ context.Context, doctorID, dateKey, timeKey string) error {
	ds := m.get(doctorID)
	if ds == nil {
		return ErrDoctorNotFound
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	times, ok := ds.booked[dateKey]
	if !ok {
		times = make(map[string]struct{})
		ds.booked[dateKey] = times
	}
	if _, taken := times[timeKey]; taken {
		return ErrSlotTaken
	}
	times[timeKey] = struct{}{}
	return nil
}

func (m *Memory) Release(_ context.Context, doctorID, dateKey, timeKey string) error {
	ds := m.get(doctorID)
	if ds == nil {
		return nil
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if times, ok := ds.booked[dateKey]; ok {
		delete(times, timeKey)
		if len(times) == 0 {
			delete(ds.booked, dateKey)
		}
	}
	return nil
}

func (m *Memory) Booked(_ context.Context, doctorID string) (map[string][]string, error) {
	ds := m.get(doctorID)
	if ds == nil {
		return nil, ErrDoctorNotFound
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	out := make(map[string][]string, len(ds.booked))
	for date, times := range ds.booked {
		for t := range times {
			out[date] = append(out[date], t)
		}
	}
	return out, nil
}
