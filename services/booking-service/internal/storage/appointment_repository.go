package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/warin-ch/mediq/libs/db"
	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, doctor_id, slot_date, slot_time,
	amount_minor, currency, cancelled, cancelled_at, paid, paid_at, completed, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.SlotDate,
		&appt.SlotTime,
		&appt.AmountMinor,
		&appt.Currency,
		&appt.Cancelled,
		&appt.CancelledAt,
		&appt.Paid,
		&appt.PaidAt,
		&appt.Completed,
		&appt.CreatedAt,
	)
	return appt, err
}

func (r *AppointmentRepository) Insert(ctx context.Context, appt model.Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, slot_date, slot_time, amount_minor, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.SlotDate, appt.SlotTime,
		appt.AmountMinor, appt.Currency, appt.CreatedAt)
	return err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Appointment{}, booking.ErrAppointmentNotFound
		}
		return model.Appointment{}, err
	}
	return appt, nil
}

// Cancel flips the cancelled flag in a single guarded update, so only one
// caller ever observes the transition.
func (r *AppointmentRepository) Cancel(ctx context.Context, id string, at time.Time) (model.Appointment, error) {
	appt, err := scanAppointment(r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET cancelled = TRUE, cancelled_at = $2
		WHERE id = $1 AND NOT cancelled
		RETURNING `+appointmentColumns+`
	`, id, at))
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, err
	}

	// Nothing updated: distinguish missing from already cancelled.
	if _, err := r.Get(ctx, id); err != nil {
		return model.Appointment{}, err
	}
	return model.Appointment{}, booking.ErrAlreadyCancelled
}

// MarkPaid re-checks the cancelled flag inside the update itself; a payment
// racing a cancellation can never land after the cancel wins.
func (r *AppointmentRepository) MarkPaid(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET paid = TRUE, paid_at = $2
		WHERE id = $1 AND NOT cancelled AND NOT paid
	`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	appt, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if appt.Cancelled {
		return booking.ErrAppointmentCancelled
	}
	return booking.ErrAlreadyPaid
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string) ([]model.Appointment, error) {
	return r.list(ctx, `patient_id = $1`, patientID)
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID string) ([]model.Appointment, error) {
	return r.list(ctx, `doctor_id = $1`, doctorID)
}

func (r *AppointmentRepository) list(ctx context.Context, where string, arg any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+where+`
		ORDER BY created_at, id
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}
