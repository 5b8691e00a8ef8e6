package consumer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

type captureWriter struct {
	upserts []model.Doctor
}

func (c *captureWriter) Upsert(_ context.Context, doc model.Doctor) error {
	c.upserts = append(c.upserts, doc)
	return nil
}

func TestDoctorHandlerUpserts(t *testing.T) {
	writer := &captureWriter{}
	handle := DoctorHandler(slog.New(slog.DiscardHandler), writer)

	msg := kafka.Message{
		Topic: TopicDoctorUpdated,
		Value: []byte(`{"doctor_id":"doc-1","name":"Dr. Aom","speciality":"dermatology","fee_minor":50000,"currency":"thb","available":true}`),
	}
	if err := handle(context.Background(), msg); err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	if len(writer.upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %d", len(writer.upserts))
	}
	doc := writer.upserts[0]
	if doc.ID != "doc-1" || doc.FeeMinor != 50000 || !doc.Available {
		t.Fatalf("unexpected upsert: %+v", doc)
	}
}

func TestDoctorHandlerDropsMalformed(t *testing.T) {
	writer := &captureWriter{}
	handle := DoctorHandler(slog.New(slog.DiscardHandler), writer)

	// Malformed payloads are dropped, not retried.
	if err := handle(context.Background(), kafka.Message{Value: []byte(`{`)}); err != nil {
		t.Fatalf("malformed payload should not error: %v", err)
	}
	if err := handle(context.Background(), kafka.Message{Value: []byte(`{"name":"no id"}`)}); err != nil {
		t.Fatalf("missing doctor_id should not error: %v", err)
	}
	if len(writer.upserts) != 0 {
		t.Fatalf("expected no upserts, got %d", len(writer.upserts))
	}
}
