package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/warin-ch/mediq/services/doctor-service/internal/model"
	"github.com/warin-ch/mediq/services/doctor-service/internal/outbox"
	"github.com/warin-ch/mediq/services/doctor-service/internal/storage"
)

// TopicDoctorUpdated carries full doctor snapshots. booking-service keeps
// its local cache current from this topic.
const TopicDoctorUpdated = "doctor.profile.updated.v1"

type Handler struct {
	repo       *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func New(repo *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:       repo,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

type createDoctorRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Speciality string `json:"speciality"`
	Degree     string `json:"degree"`
	About      string `json:"about"`
	FeeMinor   int64  `json:"fee_minor"`
	Currency   string `json:"currency"`
}

type setAvailabilityRequest struct {
	DoctorID  string `json:"doctor_id"`
	Available bool   `json:"available"`
}

type updateFeeRequest struct {
	DoctorID string `json:"doctor_id"`
	FeeMinor int64  `json:"fee_minor"`
}

type doctorResponse struct {
	DoctorID   string `json:"doctor_id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Speciality string `json:"speciality"`
	Degree     string `json:"degree,omitempty"`
	About      string `json:"about,omitempty"`
	FeeMinor   int64  `json:"fee_minor"`
	Currency   string `json:"currency"`
	Available  bool   `json:"available"`
}

func toDoctorResponse(doc model.Doctor) doctorResponse {
	return doctorResponse{
		DoctorID:   doc.ID,
		Name:       doc.Name,
		Email:      doc.Email,
		Speciality: doc.Speciality,
		Degree:     doc.Degree,
		About:      doc.About,
		FeeMinor:   doc.FeeMinor,
		Currency:   doc.Currency,
		Available:  doc.Available,
	}
}

// Create registers a new doctor. Admin only. The doctor starts available
// with the clinic's default hours.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Speciality = strings.TrimSpace(req.Speciality)
	req.Currency = strings.TrimSpace(strings.ToLower(req.Currency))

	if req.Name == "" || req.Email == "" || req.Speciality == "" {
		http.Error(w, "name, email, and speciality are required", http.StatusBadRequest)
		return
	}
	if req.FeeMinor <= 0 {
		http.Error(w, "fee_minor must be positive", http.StatusBadRequest)
		return
	}
	if req.Currency == "" {
		req.Currency = "thb"
	}

	doc := model.Doctor{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		Speciality: req.Speciality,
		Degree:     strings.TrimSpace(req.Degree),
		About:      strings.TrimSpace(req.About),
		FeeMinor:   req.FeeMinor,
		Currency:   req.Currency,
		Available:  true,

		OpenHour:        10,
		CloseHour:       21,
		SlotStepMinutes: 30,
		HorizonDays:     7,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Create(ctx, tx, doc); err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			http.Error(w, "email already registered", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create doctor", http.StatusInternalServerError)
		return
	}
	if err := h.publishSnapshot(ctx, tx, doc); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.logger.Info("doctor created", "doctor_id", doc.ID, "speciality", doc.Speciality)
	writeJSON(w, http.StatusCreated, toDoctorResponse(doc))
}

// SetAvailability toggles whether a doctor accepts bookings. Doctors may
// only toggle themselves; admins may toggle anyone.
func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFrom(r)

	var req setAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.DoctorID == "" {
		req.DoctorID = claims.Sub
	}
	if claims.Role != "admin" && req.DoctorID != claims.Sub {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	doc, err := h.repo.SetAvailability(ctx, tx, req.DoctorID, req.Available)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update availability", http.StatusInternalServerError)
		return
	}
	if err := h.publishSnapshot(ctx, tx, doc); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponse(doc))
}

// UpdateFee changes a doctor's consultation fee. Admin only. Existing
// appointments keep the fee they were booked at.
func (h *Handler) UpdateFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.DoctorID == "" {
		http.Error(w, "doctor_id required", http.StatusBadRequest)
		return
	}
	if req.FeeMinor <= 0 {
		http.Error(w, "fee_minor must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	doc, err := h.repo.UpdateFee(ctx, tx, req.DoctorID, req.FeeMinor)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "doctor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update fee", http.StatusInternalServerError)
		return
	}
	if err := h.publishSnapshot(ctx, tx, doc); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toDoctorResponse(doc))
}

// List returns the full directory. Public.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	doctors, err := h.repo.List(r.Context())
	if err != nil {
		http.Error(w, "failed to list doctors", http.StatusInternalServerError)
		return
	}

	items := make([]doctorResponse, 0, len(doctors))
	for _, doc := range doctors {
		items = append(items, toDoctorResponse(doc))
	}
	writeJSON(w, http.StatusOK, items)
}

// publishSnapshot writes the event inside the caller's transaction so the
// snapshot commits with the change it describes.
func (h *Handler) publishSnapshot(ctx context.Context, tx pgx.Tx, doc model.Doctor) error {
	payload, err := json.Marshal(map[string]any{
		"doctor_id":  doc.ID,
		"name":       doc.Name,
		"speciality": doc.Speciality,
		"fee_minor":  doc.FeeMinor,
		"currency":   doc.Currency,
		"available":  doc.Available,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "doctor",
		AggregateID:   doc.ID,
		EventType:     TopicDoctorUpdated,
		Payload:       payload,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
