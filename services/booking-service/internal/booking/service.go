package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warin-ch/mediq/services/booking-service/internal/ledger"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

// Doctors is the service's read view of the provider directory.
type Doctors interface {
	Get(ctx context.Context, id string) (model.Doctor, error)
}

// Appointments persists appointment records. The mutating operations are
// atomic state transitions: Cancel flips the cancelled flag exactly once and
// MarkPaid re-checks the cancelled and paid flags inside the same update, so
// a cancel racing a payment resolves to first-writer-wins on cancellation.
type Appointments interface {
	Insert(ctx context.Context, appt model.Appointment) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	// Cancel transitions cancelled=false -> true and returns the updated
	// record. ErrAlreadyCancelled on repeats, ErrAppointmentNotFound if absent.
	Cancel(ctx context.Context, id string, at time.Time) (model.Appointment, error)
	// MarkPaid transitions paid=false -> true. ErrAppointmentCancelled if the
	// appointment was cancelled first, ErrAlreadyPaid on repeats.
	MarkPaid(ctx context.Context, id string, at time.Time) error
	ListByPatient(ctx context.Context, patientID string) ([]model.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]model.Appointment, error)
}

// EventSink receives lifecycle events (transactional outbox in production).
type EventSink interface {
	Publish(ctx context.Context, eventType, aggregateID string, payload []byte) error
}

// Service owns the appointment lifecycle: create (claim a slot), cancel
// (release the slot), payment transition, queries.
type Service struct {
	doctors Doctors
	appts   Appointments
	slots   ledger.Ledger
	events  EventSink
	logger  *slog.Logger
}

func NewService(doctors Doctors, appts Appointments, slots ledger.Ledger, events EventSink, logger *slog.Logger) *Service {
	return &Service{
		doctors: doctors,
		appts:   appts,
		slots:   slots,
		events:  events,
		logger:  logger,
	}
}

// Create books the (doctorID, dateKey, timeKey) slot for the patient. The
// ledger claim is the linearization point: of N concurrent Creates for the
// same coordinate exactly one passes it. The doctor's fee is snapshotted onto
// the appointment; later fee changes never reprice an existing booking.
func (s *Service) Create(ctx context.Context, patientID, doctorID, dateKey, timeKey string) (model.Appointment, error) {
	if _, err := time.Parse(model.DateKeyLayout, dateKey); err != nil {
		return model.Appointment{}, ErrInvalidSlot
	}
	if _, err := time.Parse(model.TimeKeyLayout, timeKey); err != nil {
		return model.Appointment{}, ErrInvalidSlot
	}

	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return model.Appointment{}, err
	}
	if !doctor.Available {
		return model.Appointment{}, ErrDoctorUnavailable
	}

	if err := s.slots.Claim(ctx, doctorID, dateKey, timeKey); err != nil {
		switch {
		case errors.Is(err, ledger.ErrSlotTaken):
			return model.Appointment{}, ErrSlotUnavailable
		case errors.Is(err, ledger.ErrDoctorNotFound):
			return model.Appointment{}, ErrDoctorNotFound
		default:
			return model.Appointment{}, fmt.Errorf("claim slot: %w", err)
		}
	}

	appt := model.Appointment{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		DoctorID:    doctorID,
		SlotDate:    dateKey,
		SlotTime:    timeKey,
		AmountMinor: doctor.FeeMinor,
		Currency:    doctor.Currency,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.appts.Insert(ctx, appt); err != nil {
		// The claim must not outlive a failed insert.
		if relErr := s.slots.Release(ctx, doctorID, dateKey, timeKey); relErr != nil {
			s.logger.Error("slot release after failed insert", "err", relErr, "doctor_id", doctorID)
		}
		return model.Appointment{}, fmt.Errorf("insert appointment: %w", err)
	}

	s.emit(ctx, "booking.appointment.booked.v1", appt)
	return appt, nil
}

// Cancel soft-cancels the appointment and frees its slot. Only the owning
// patient or an admin may cancel; ownership is a plain string comparison of
// patient ids. The slot is released exactly once, on the first successful
// cancel — repeats are rejected before the release runs.
func (s *Service) Cancel(ctx context.Context, requesterID, role, appointmentID string) (model.Appointment, error) {
	appt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return model.Appointment{}, err
	}
	if role != "admin" && appt.PatientID != requesterID {
		return model.Appointment{}, ErrNotOwner
	}

	cancelled, err := s.appts.Cancel(ctx, appointmentID, time.Now().UTC())
	if err != nil {
		return model.Appointment{}, err
	}

	if err := s.slots.Release(ctx, cancelled.DoctorID, cancelled.SlotDate, cancelled.SlotTime); err != nil {
		return model.Appointment{}, fmt.Errorf("release slot: %w", err)
	}

	s.emit(ctx, "booking.appointment.cancelled.v1", cancelled)
	return cancelled, nil
}

// MarkPaid records a confirmed payment. Rejects with ErrAppointmentCancelled
// when cancellation won the race, ErrAlreadyPaid on repeats.
func (s *Service) MarkPaid(ctx context.Context, appointmentID string) error {
	if err := s.appts.MarkPaid(ctx, appointmentID, time.Now().UTC()); err != nil {
		return err
	}

	appt, err := s.appts.Get(ctx, appointmentID)
	if err == nil {
		s.emit(ctx, "booking.appointment.paid.v1", appt)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, appointmentID string) (model.Appointment, error) {
	return s.appts.Get(ctx, appointmentID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return s.appts.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]model.Appointment, error) {
	return s.appts.ListByDoctor(ctx, doctorID)
}

func (s *Service) emit(ctx context.Context, eventType string, appt model.Appointment) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"patient_id":     appt.PatientID,
		"doctor_id":      appt.DoctorID,
		"slot_date":      appt.SlotDate,
		"slot_time":      appt.SlotTime,
		"amount_minor":   appt.AmountMinor,
		"currency":       appt.Currency,
	})
	if err != nil {
		s.logger.Error("event payload marshal", "err", err, "event_type", eventType)
		return
	}
	if err := s.events.Publish(ctx, eventType, appt.ID, payload); err != nil {
		s.logger.Error("event publish", "err", err, "event_type", eventType, "appointment_id", appt.ID)
	}
}
