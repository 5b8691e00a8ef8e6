package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

// TopicDoctorUpdated carries full doctor snapshots from doctor-service.
// Every change (new doctor, fee change, availability toggle) is published as
// a fresh snapshot, so the handler is a plain upsert.
const TopicDoctorUpdated = "doctor.profile.updated.v1"

type doctorEvent struct {
	DoctorID   string `json:"doctor_id"`
	Name       string `json:"name"`
	Speciality string `json:"speciality"`
	FeeMinor   int64  `json:"fee_minor"`
	Currency   string `json:"currency"`
	Available  bool   `json:"available"`
}

type DoctorWriter interface {
	Upsert(ctx context.Context, doc model.Doctor) error
}

func DoctorHandler(logger *slog.Logger, doctors DoctorWriter) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt doctorEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("malformed doctor event dropped", "err", err)
			return nil
		}
		if evt.DoctorID == "" {
			logger.Error("doctor event missing doctor_id, dropped")
			return nil
		}

		err := doctors.Upsert(ctx, model.Doctor{
			ID:         evt.DoctorID,
			Name:       evt.Name,
			Speciality: evt.Speciality,
			FeeMinor:   evt.FeeMinor,
			Currency:   evt.Currency,
			Available:  evt.Available,
		})
		if err != nil {
			return err
		}
		logger.Info("doctor cache updated", "doctor_id", evt.DoctorID, "available", evt.Available)
		return nil
	}
}
