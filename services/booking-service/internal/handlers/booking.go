package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/calendar"
	"github.com/warin-ch/mediq/services/booking-service/internal/hours"
	"github.com/warin-ch/mediq/services/booking-service/internal/ledger"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

// DoctorDirectory is the handler's read view of the local doctor cache.
type DoctorDirectory interface {
	Get(ctx context.Context, id string) (model.Doctor, error)
	List(ctx context.Context) ([]model.Doctor, error)
}

type BookingHandler struct {
	svc     *booking.Service
	doctors DoctorDirectory
	slots   ledger.Ledger
	hours   hours.Provider
	slotCfg calendar.Config
	logger  *slog.Logger
}

func NewBookingHandler(svc *booking.Service, doctors DoctorDirectory, slots ledger.Ledger, hoursProvider hours.Provider, slotCfg calendar.Config, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		svc:     svc,
		doctors: doctors,
		slots:   slots,
		hours:   hoursProvider,
		slotCfg: slotCfg,
		logger:  logger,
	}
}

type doctorItem struct {
	DoctorID   string `json:"doctor_id"`
	Name       string `json:"name"`
	Speciality string `json:"speciality"`
	FeeMinor   int64  `json:"fee_minor"`
	Currency   string `json:"currency"`
	Available  bool   `json:"available"`
}

type slotItem struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type createAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	SlotDate string `json:"slot_date"`
	SlotTime string `json:"slot_time"`
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id"`
	SlotDate      string `json:"slot_date"`
	SlotTime      string `json:"slot_time"`
	AmountMinor   int64  `json:"amount_minor"`
	Currency      string `json:"currency"`
	Cancelled     bool   `json:"cancelled"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	Paid          bool   `json:"paid"`
	PaidAt        string `json:"paid_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type cancelAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func toAppointmentItem(appt model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		SlotDate:      appt.SlotDate,
		SlotTime:      appt.SlotTime,
		AmountMinor:   appt.AmountMinor,
		Currency:      appt.Currency,
		Cancelled:     appt.Cancelled,
		Paid:          appt.Paid,
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CancelledAt != nil {
		item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	if appt.PaidAt != nil {
		item.PaidAt = appt.PaidAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Doctors lists the cached provider directory. Public, no auth.
func (h *BookingHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctors, err := h.doctors.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list doctors", http.StatusInternalServerError)
		return
	}

	items := make([]doctorItem, 0, len(doctors))
	for _, doc := range doctors {
		items = append(items, doctorItem{
			DoctorID:   doc.ID,
			Name:       doc.Name,
			Speciality: doc.Speciality,
			FeeMinor:   doc.FeeMinor,
			Currency:   doc.Currency,
			Available:  doc.Available,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Slots lists the free slots for a doctor over the booking horizon. Public.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))
	if doctorID == "" {
		http.Error(w, "doctor_id required", http.StatusBadRequest)
		return
	}

	doctor, err := h.doctors.Get(r.Context(), doctorID)
	if err != nil {
		if errors.Is(err, booking.ErrDoctorNotFound) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load doctor", http.StatusInternalServerError)
		return
	}

	booked, err := h.slots.Booked(r.Context(), doctorID)
	if err != nil && !errors.Is(err, ledger.ErrDoctorNotFound) {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	cfg := h.resolveSlotConfig(r.Context(), doctorID)

	items := make([]slotItem, 0, 64)
	for slot := range calendar.AvailableSlots(cfg, doctor.Available, calendar.OccupancyFromMap(booked), time.Now().UTC()) {
		items = append(items, slotItem{Date: slot.Date, Time: slot.Time})
	}
	writeJSON(w, http.StatusOK, items)
}

// resolveSlotConfig asks doctor-service for per-doctor clinic hours when the
// gRPC provider is wired, falling back to the static config on any failure.
func (h *BookingHandler) resolveSlotConfig(ctx context.Context, doctorID string) calendar.Config {
	if h.hours == nil {
		return h.slotCfg
	}

	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	sched, err := h.hours.GetSchedule(reqCtx, doctorID)
	if err != nil {
		h.logger.Warn("clinic hours fetch failed; using defaults", "err", err, "doctor_id", doctorID)
		return h.slotCfg
	}
	if sched.CloseHour*60+sched.CloseMinute <= sched.OpenHour*60+sched.OpenMinute {
		return h.slotCfg
	}

	cfg := h.slotCfg
	cfg.OpenHour = sched.OpenHour
	cfg.OpenMinute = sched.OpenMinute
	cfg.CloseHour = sched.CloseHour
	cfg.CloseMinute = sched.CloseMinute
	if sched.StepMinutes > 0 {
		cfg.Step = time.Duration(sched.StepMinutes) * time.Minute
	}
	if sched.HorizonDays > 0 {
		cfg.HorizonDays = sched.HorizonDays
	}
	return cfg
}

// Create books a slot for the authenticated patient.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFrom(r)

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	req.SlotDate = strings.TrimSpace(req.SlotDate)
	req.SlotTime = strings.TrimSpace(req.SlotTime)
	if req.DoctorID == "" || req.SlotDate == "" || req.SlotTime == "" {
		http.Error(w, "doctor_id, slot_date, and slot_time are required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Create(r.Context(), claims.Sub, req.DoctorID, req.SlotDate, req.SlotTime)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

// Cancel soft-cancels an appointment. Patients may cancel their own;
// admins may cancel any.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFrom(r)

	var req cancelAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Cancel(r.Context(), claims.Sub, claims.Role, req.AppointmentID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

// List returns the caller's appointments: patients see their bookings,
// doctors see their schedule.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFrom(r)

	var appts []model.Appointment
	var err error
	switch claims.Role {
	case "doctor":
		appts, err = h.svc.ListByDoctor(r.Context(), claims.Sub)
	default:
		appts, err = h.svc.ListByPatient(r.Context(), claims.Sub)
	}
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentItem(appt))
	}
	writeJSON(w, http.StatusOK, items)
}

func writeBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidSlot):
		http.Error(w, "invalid slot_date or slot_time", http.StatusBadRequest)
	case errors.Is(err, booking.ErrDoctorNotFound):
		http.Error(w, "doctor not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, booking.ErrNotOwner):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, booking.ErrDoctorUnavailable):
		http.Error(w, "doctor is not taking bookings", http.StatusConflict)
	case errors.Is(err, booking.ErrSlotUnavailable):
		http.Error(w, "slot already booked", http.StatusConflict)
	case errors.Is(err, booking.ErrAlreadyCancelled):
		http.Error(w, "appointment already cancelled", http.StatusConflict)
	case errors.Is(err, booking.ErrAppointmentCancelled):
		http.Error(w, "appointment is cancelled", http.StatusConflict)
	case errors.Is(err, booking.ErrAlreadyPaid):
		http.Error(w, "appointment already paid", http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
