package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/warin-ch/mediq/libs/auth"
	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/calendar"
	"github.com/warin-ch/mediq/services/booking-service/internal/ledger"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

const testSecret = "test-secret"

type fakeDirectory struct {
	mu      sync.Mutex
	doctors map[string]model.Doctor
}

func (d *fakeDirectory) Get(_ context.Context, id string) (model.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.doctors[id]
	if !ok {
		return model.Doctor{}, booking.ErrDoctorNotFound
	}
	return doc, nil
}

func (d *fakeDirectory) List(context.Context) ([]model.Doctor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Doctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		out = append(out, doc)
	}
	return out, nil
}

type fakeAppointments struct {
	mu    sync.Mutex
	byID  map[string]model.Appointment
	order []string
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{byID: map[string]model.Appointment{}}
}

func (f *fakeAppointments) Insert(_ context.Context, appt model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[appt.ID] = appt
	f.order = append(f.order, appt.ID)
	return nil
}

func (f *fakeAppointments) Get(_ context.Context, id string) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.byID[id]
	if !ok {
		return model.Appointment{}, booking.ErrAppointmentNotFound
	}
	return appt, nil
}

func (f *fakeAppointments) Cancel(_ context.Context, id string, at time.Time) (model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.byID[id]
	if !ok {
		return model.Appointment{}, booking.ErrAppointmentNotFound
	}
	if appt.Cancelled {
		return model.Appointment{}, booking.ErrAlreadyCancelled
	}
	appt.Cancelled = true
	appt.CancelledAt = &at
	f.byID[id] = appt
	return appt, nil
}

func (f *fakeAppointments) MarkPaid(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.byID[id]
	if !ok {
		return booking.ErrAppointmentNotFound
	}
	if appt.Cancelled {
		return booking.ErrAppointmentCancelled
	}
	if appt.Paid {
		return booking.ErrAlreadyPaid
	}
	appt.Paid = true
	appt.PaidAt = &at
	f.byID[id] = appt
	return nil
}

func (f *fakeAppointments) ListByPatient(_ context.Context, patientID string) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, id := range f.order {
		if f.byID[id].PatientID == patientID {
			out = append(out, f.byID[id])
		}
	}
	return out, nil
}

func (f *fakeAppointments) ListByDoctor(_ context.Context, doctorID string) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, id := range f.order {
		if f.byID[id].DoctorID == doctorID {
			out = append(out, f.byID[id])
		}
	}
	return out, nil
}

type testEnv struct {
	handler  *BookingHandler
	verifier *Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := &fakeDirectory{doctors: map[string]model.Doctor{
		"doc-1": {ID: "doc-1", Name: "Dr. Aom", Speciality: "dermatology", FeeMinor: 50000, Currency: "thb", Available: true},
	}}
	slots := ledger.NewMemory("doc-1")
	svc := booking.NewService(dir, newFakeAppointments(), slots, nil, slog.New(slog.DiscardHandler))
	return &testEnv{
		handler:  NewBookingHandler(svc, dir, slots, nil, calendar.DefaultConfig(), slog.New(slog.DiscardHandler)),
		verifier: NewVerifier(testSecret, nil),
	}
}

func signToken(t *testing.T, sub, role string) string {
	t.Helper()
	token, err := auth.SignHS256(auth.Claims{
		Sub:  sub,
		Role: role,
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(1 * time.Hour).Unix(),
	}, testSecret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	return token
}

func TestRequireAuthHS256(t *testing.T) {
	env := newTestEnv(t)
	h := env.verifier.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims == nil || claims.Sub != "patient-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "patient-1", "patient"))
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}
}

func TestSlotsListsOpenDay(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/public/slots?doctor_id=doc-1", nil)
	rw := httptest.NewRecorder()
	env.handler.Slots(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}

	var items []slotItem
	if err := json.Unmarshal(rw.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected at least one free slot")
	}
	for _, item := range items {
		if _, err := time.Parse(model.DateKeyLayout, item.Date); err != nil {
			t.Fatalf("bad date key %q: %v", item.Date, err)
		}
		if _, err := time.Parse(model.TimeKeyLayout, item.Time); err != nil {
			t.Fatalf("bad time key %q: %v", item.Time, err)
		}
	}
}

func TestSlotsUnknownDoctor(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/public/slots?doctor_id=ghost", nil)
	rw := httptest.NewRecorder()
	env.handler.Slots(rw, req)
	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
}

func bookSlot(t *testing.T, env *testEnv, token, doctorID, date, timeKey string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"doctor_id":"` + doctorID + `","slot_date":"` + date + `","slot_time":"` + timeKey + `"}`
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/appointments", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	env.verifier.RequireAuth(env.handler.Create)(rw, req)
	return rw
}

func TestCreateThenConflict(t *testing.T) {
	env := newTestEnv(t)
	date := time.Now().UTC().AddDate(0, 0, 1).Format(model.DateKeyLayout)

	rw := bookSlot(t, env, signToken(t, "patient-1", "patient"), "doc-1", date, "10:30")
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	var created appointmentItem
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.AmountMinor != 50000 || created.Currency != "thb" {
		t.Fatalf("expected fee snapshot 50000 thb, got %d %s", created.AmountMinor, created.Currency)
	}

	rw2 := bookSlot(t, env, signToken(t, "patient-2", "patient"), "doc-1", date, "10:30")
	if rw2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken slot, got %d", rw2.Code)
	}
}

func TestCreateRejectsBadSlotKeys(t *testing.T) {
	env := newTestEnv(t)
	rw := bookSlot(t, env, signToken(t, "patient-1", "patient"), "doc-1", "31-12-2026", "10:30")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed date, got %d", rw.Code)
	}
}

func TestCancelOwnershipAndRebook(t *testing.T) {
	env := newTestEnv(t)
	date := time.Now().UTC().AddDate(0, 0, 2).Format(model.DateKeyLayout)

	rw := bookSlot(t, env, signToken(t, "patient-1", "patient"), "doc-1", date, "11:00")
	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rw.Code)
	}
	var created appointmentItem
	if err := json.Unmarshal(rw.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	cancel := func(token string) *httptest.ResponseRecorder {
		body := `{"appointment_id":"` + created.AppointmentID + `"}`
		req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/appointments/cancel", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.verifier.RequireAuth(env.handler.Cancel)(rec, req)
		return rec
	}

	if rec := cancel(signToken(t, "patient-2", "patient")); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign patient, got %d", rec.Code)
	}
	if rec := cancel(signToken(t, "patient-1", "patient")); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := cancel(signToken(t, "patient-1", "patient")); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for repeat cancel, got %d", rec.Code)
	}

	// The freed slot is bookable again.
	rw2 := bookSlot(t, env, signToken(t, "patient-3", "patient"), "doc-1", date, "11:00")
	if rw2.Code != http.StatusCreated {
		t.Fatalf("expected freed slot to rebook, got %d", rw2.Code)
	}
}

func TestListScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	date := time.Now().UTC().AddDate(0, 0, 3).Format(model.DateKeyLayout)

	bookSlot(t, env, signToken(t, "patient-1", "patient"), "doc-1", date, "12:00")
	bookSlot(t, env, signToken(t, "patient-2", "patient"), "doc-1", date, "12:30")

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/appointments/list", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "patient-1", "patient"))
	rw := httptest.NewRecorder()
	env.verifier.RequireAuth(env.handler.List)(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	var items []appointmentItem
	if err := json.Unmarshal(rw.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].PatientID != "patient-1" {
		t.Fatalf("expected only patient-1's appointment, got %+v", items)
	}

	reqDoc := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/appointments/list", nil)
	reqDoc.Header.Set("Authorization", "Bearer "+signToken(t, "doc-1", "doctor"))
	rwDoc := httptest.NewRecorder()
	env.verifier.RequireAuth(env.handler.List)(rwDoc, reqDoc)
	var docItems []appointmentItem
	if err := json.Unmarshal(rwDoc.Body.Bytes(), &docItems); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(docItems) != 2 {
		t.Fatalf("expected doctor to see both appointments, got %d", len(docItems))
	}
}
