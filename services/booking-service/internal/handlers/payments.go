package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/payments"
)

type PaymentHandler struct {
	coord            *payments.Coordinator
	svc              *booking.Service
	logger           *slog.Logger
	webhookSecret    string
	webhookTolerance time.Duration
}

type PaymentConfig struct {
	StripeWebhookSecret           string
	StripeWebhookToleranceSeconds int
}

func NewPaymentHandler(coord *payments.Coordinator, svc *booking.Service, logger *slog.Logger, cfg PaymentConfig) *PaymentHandler {
	tolSeconds := cfg.StripeWebhookToleranceSeconds
	if tolSeconds <= 0 {
		tolSeconds = 300
	}
	return &PaymentHandler{
		coord:            coord,
		svc:              svc,
		logger:           logger,
		webhookSecret:    strings.TrimSpace(cfg.StripeWebhookSecret),
		webhookTolerance: time.Duration(tolSeconds) * time.Second,
	}
}

type checkoutRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// Checkout opens a Stripe Checkout session for the appointment's frozen fee.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFrom(r)

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Get(r.Context(), req.AppointmentID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if claims.Role != "admin" && appt.PatientID != claims.Sub {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	sess, err := h.coord.Initiate(r.Context(), req.AppointmentID)
	if err != nil {
		if errors.Is(err, payments.ErrGatewayUnavailable) {
			http.Error(w, "payment gateway unavailable", http.StatusServiceUnavailable)
			return
		}
		writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{SessionID: sess.ID, CheckoutURL: sess.URL})
}

// StripeWebhook handles Stripe webhooks (no JWT auth; signature verification
// is the auth). The webhook, not the browser return URL, is what marks
// appointments paid.
func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.webhookSecret == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.webhookSecret, h.webhookTolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	switch evtType {
	case "checkout.session.completed", "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		appointmentID := strings.TrimSpace(session.Metadata["appointment_id"])
		if appointmentID == "" {
			appointmentID = strings.TrimSpace(session.ClientReferenceID)
		}
		if appointmentID == "" {
			h.logger.Warn("stripe: missing appointment_id on checkout session")
			break
		}

		outcome := payments.OutcomeFailed
		if evtType == "checkout.session.completed" {
			outcome = payments.OutcomeSucceeded
		}
		if err := h.coord.Reconcile(r.Context(), appointmentID, outcome); err != nil {
			if errors.Is(err, booking.ErrAppointmentCancelled) {
				h.logger.Warn("payment arrived after cancellation", "appointment_id", appointmentID)
				break
			}
			// Let Stripe retry the delivery.
			http.Error(w, "failed to reconcile payment", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type verifyResponse struct {
	AppointmentID string `json:"appointment_id"`
	Paid          bool   `json:"paid"`
	Cancelled     bool   `json:"cancelled"`
}

// Verify reports payment state for the browser return URL. It only reads;
// the webhook is the source of truth for the paid transition.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	claims := claimsFrom(r)

	appointmentID := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if appointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	appt, err := h.svc.Get(r.Context(), appointmentID)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if claims.Role != "admin" && appt.PatientID != claims.Sub {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		AppointmentID: appt.ID,
		Paid:          appt.Paid,
		Cancelled:     appt.Cancelled,
	})
}
