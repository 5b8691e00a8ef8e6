package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/warin-ch/mediq/libs/db"
)

// Postgres implements Ledger as a compare-and-set at the storage layer: the
// primary key on (doctor_id, slot_date, slot_time) makes Claim linearizable
// per coordinate without any application-level lock.
type Postgres struct {
	pool *db.Pool
}

func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (l *Postgres) Claim(ctx context.Context, doctorID, dateKey, timeKey string) error {
	tag, err := l.pool.Exec(ctx, `
		INSERT INTO booked_slots (doctor_id, slot_date, slot_time)
		VALUES ($1, $2, $3)
		ON CONFLICT (doctor_id, slot_date, slot_time) DO NOTHING
	`, doctorID, dateKey, timeKey)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrDoctorNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotTaken
	}
	return nil
}

func (l *Postgres) Release(ctx context.Context, doctorID, dateKey, timeKey string) error {
	_, err := l.pool.Exec(ctx, `
		DELETE FROM booked_slots
		WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
	`, doctorID, dateKey, timeKey)
	return err
}

func (l *Postgres) Booked(ctx context.Context, doctorID string) (map[string][]string, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT slot_date, slot_time
		FROM booked_slots
		WHERE doctor_id = $1
		ORDER BY slot_date, slot_time
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := make(map[string][]string)
	for rows.Next() {
		var date, t string
		if err := rows.Scan(&date, &t); err != nil {
			return nil, err
		}
		booked[date] = append(booked[date], t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return booked, nil
}
