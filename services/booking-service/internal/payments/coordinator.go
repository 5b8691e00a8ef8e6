// Package payments orchestrates the handoff to the external payment gateway
// and reconciles its outcome with the appointment lifecycle.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

// ErrGatewayUnavailable covers transport failures and timeouts talking to the
// payment provider. The appointment stays payable; retrying is the caller's
// decision, never this package's.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Session is the opaque redirect handle returned by the gateway.
type Session struct {
	ID  string
	URL string
}

type CheckoutParams struct {
	AppointmentID string
	AmountMinor   int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// Gateway is the narrow contract with the external payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (Session, error)
}

// Outcome of a payment attempt as reported back by the gateway.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeSucceeded
)

// Store is the slice of the appointment service the coordinator needs.
type Store interface {
	Get(ctx context.Context, appointmentID string) (model.Appointment, error)
	MarkPaid(ctx context.Context, appointmentID string) error
}

type Config struct {
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

type Coordinator struct {
	store   Store
	gateway Gateway
	cfg     Config
	logger  *slog.Logger
}

func NewCoordinator(store Store, gateway Gateway, cfg Config, logger *slog.Logger) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Coordinator{store: store, gateway: gateway, cfg: cfg, logger: logger}
}

// Initiate opens a checkout session for the appointment's frozen amount. The
// charge is never recomputed from the doctor's current fee. No appointment
// state changes here; payment is recorded only on Reconcile.
func (c *Coordinator) Initiate(ctx context.Context, appointmentID string) (Session, error) {
	appt, err := c.store.Get(ctx, appointmentID)
	if err != nil {
		return Session{}, err
	}
	if appt.Cancelled {
		return Session{}, booking.ErrAppointmentCancelled
	}
	if appt.Paid {
		return Session{}, booking.ErrAlreadyPaid
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	sess, err := c.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		AppointmentID: appt.ID,
		AmountMinor:   appt.AmountMinor,
		Currency:      appt.Currency,
		SuccessURL:    c.cfg.SuccessURL,
		CancelURL:     c.cfg.CancelURL,
	})
	if err != nil {
		c.logger.Error("checkout session create failed", "err", err, "appointment_id", appt.ID)
		return Session{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return sess, nil
}

// Reconcile applies the gateway's verdict. Succeeded marks the appointment
// paid; seeing it already paid is fine (webhook plus return-URL both report).
// Failed changes nothing — the appointment remains payable.
func (c *Coordinator) Reconcile(ctx context.Context, appointmentID string, outcome Outcome) error {
	if outcome != OutcomeSucceeded {
		c.logger.Info("payment failed, appointment left payable", "appointment_id", appointmentID)
		return nil
	}

	err := c.store.MarkPaid(ctx, appointmentID)
	if errors.Is(err, booking.ErrAlreadyPaid) {
		return nil
	}
	return err
}
