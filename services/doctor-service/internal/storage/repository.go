package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/warin-ch/mediq/libs/db"
	"github.com/warin-ch/mediq/services/doctor-service/internal/model"
)

var (
	ErrNotFound   = errors.New("doctor not found")
	ErrEmailTaken = errors.New("email already registered")
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const doctorColumns = `
	id, name, email, speciality, degree, about, fee_minor, currency, available,
	open_hour, open_minute, close_hour, close_minute, slot_step_minutes, horizon_days,
	created_at, updated_at`

func scanDoctor(row pgx.Row) (model.Doctor, error) {
	var doc model.Doctor
	err := row.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Email,
		&doc.Speciality,
		&doc.Degree,
		&doc.About,
		&doc.FeeMinor,
		&doc.Currency,
		&doc.Available,
		&doc.OpenHour,
		&doc.OpenMinute,
		&doc.CloseHour,
		&doc.CloseMinute,
		&doc.SlotStepMinutes,
		&doc.HorizonDays,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	return doc, err
}

func (r *Repository) Create(ctx context.Context, tx pgx.Tx, doc model.Doctor) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO doctors
			(id, name, email, speciality, degree, about, fee_minor, currency, available,
			 open_hour, open_minute, close_hour, close_minute, slot_step_minutes, horizon_days)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, doc.ID, doc.Name, doc.Email, doc.Speciality, doc.Degree, doc.About,
		doc.FeeMinor, doc.Currency, doc.Available,
		doc.OpenHour, doc.OpenMinute, doc.CloseHour, doc.CloseMinute,
		doc.SlotStepMinutes, doc.HorizonDays)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *Repository) UpdateFee(ctx context.Context, tx pgx.Tx, id string, feeMinor int64) (model.Doctor, error) {
	doc, err := scanDoctor(tx.QueryRow(ctx, `
		UPDATE doctors
		SET fee_minor = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+doctorColumns+`
	`, id, feeMinor))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Doctor{}, ErrNotFound
		}
		return model.Doctor{}, err
	}
	return doc, nil
}

func (r *Repository) SetAvailability(ctx context.Context, tx pgx.Tx, id string, available bool) (model.Doctor, error) {
	doc, err := scanDoctor(tx.QueryRow(ctx, `
		UPDATE doctors
		SET available = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+doctorColumns+`
	`, id, available))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Doctor{}, ErrNotFound
		}
		return model.Doctor{}, err
	}
	return doc, nil
}

func (r *Repository) Get(ctx context.Context, id string) (model.Doctor, error) {
	doc, err := scanDoctor(r.pool.QueryRow(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Doctor{}, ErrNotFound
		}
		return model.Doctor{}, err
	}
	return doc, nil
}

func (r *Repository) List(ctx context.Context) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorColumns+`
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var doctors []model.Doctor
	for rows.Next() {
		doc, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		doctors = append(doctors, doc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return doctors, nil
}
