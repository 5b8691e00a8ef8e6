package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/warin-ch/mediq/libs/db"
	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

// DoctorRepository is the local doctor cache, kept current from
// doctor-service events. Booking only needs fee and availability; display
// fields are re-derived from doctor-service at read time.
type DoctorRepository struct {
	pool *db.Pool
}

func NewDoctorRepository(pool *db.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

func (r *DoctorRepository) Get(ctx context.Context, id string) (model.Doctor, error) {
	var doc model.Doctor
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, speciality, fee_minor, currency, available, updated_at
		FROM doctors
		WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Name, &doc.Speciality, &doc.FeeMinor, &doc.Currency, &doc.Available, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Doctor{}, booking.ErrDoctorNotFound
		}
		return model.Doctor{}, err
	}
	return doc, nil
}

func (r *DoctorRepository) Upsert(ctx context.Context, doc model.Doctor) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO doctors (id, name, speciality, fee_minor, currency, available, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			speciality = EXCLUDED.speciality,
			fee_minor = EXCLUDED.fee_minor,
			currency = EXCLUDED.currency,
			available = EXCLUDED.available,
			updated_at = now()
	`, doc.ID, doc.Name, doc.Speciality, doc.FeeMinor, doc.Currency, doc.Available)
	return err
}

func (r *DoctorRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors SET available = $2, updated_at = now() WHERE id = $1
	`, id, available)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrDoctorNotFound
	}
	return nil
}

func (r *DoctorRepository) List(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, speciality, fee_minor, currency, available, updated_at
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []model.Doctor
	for rows.Next() {
		var doc model.Doctor
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Speciality, &doc.FeeMinor, &doc.Currency, &doc.Available, &doc.UpdatedAt); err != nil {
			return nil, err
		}
		doctors = append(doctors, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return doctors, nil
}
