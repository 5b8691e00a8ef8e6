package payments

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/warin-ch/mediq/services/booking-service/internal/booking"
	"github.com/warin-ch/mediq/services/booking-service/internal/model"
)

type fakeStore struct {
	appts map[string]*model.Appointment
}

func (s *fakeStore) Get(_ context.Context, id string) (model.Appointment, error) {
	appt, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, booking.ErrAppointmentNotFound
	}
	return *appt, nil
}

func (s *fakeStore) MarkPaid(_ context.Context, id string) error {
	appt, ok := s.appts[id]
	if !ok {
		return booking.ErrAppointmentNotFound
	}
	if appt.Cancelled {
		return booking.ErrAppointmentCancelled
	}
	if appt.Paid {
		return booking.ErrAlreadyPaid
	}
	appt.Paid = true
	return nil
}

type fakeGateway struct {
	lastParams CheckoutParams
	err        error
	calls      int
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, p CheckoutParams) (Session, error) {
	g.calls++
	g.lastParams = p
	if g.err != nil {
		return Session{}, g.err
	}
	return Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func newCoordinator(store *fakeStore, gw *fakeGateway) *Coordinator {
	return NewCoordinator(store, gw, Config{
		SuccessURL: "https://clinic.example/my-appointments?success=true",
		CancelURL:  "https://clinic.example/my-appointments?success=false",
		Timeout:    time.Second,
	}, slog.New(slog.DiscardHandler))
}

func TestInitiateUsesFrozenAmount(t *testing.T) {
	store := &fakeStore{appts: map[string]*model.Appointment{
		"appt-1": {ID: "appt-1", AmountMinor: 50000, Currency: "thb"},
	}}
	gw := &fakeGateway{}
	c := newCoordinator(store, gw)

	sess, err := c.Initiate(context.Background(), "appt-1")
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if sess.URL == "" {
		t.Fatal("expected a redirect URL")
	}
	if gw.lastParams.AmountMinor != 50000 || gw.lastParams.Currency != "thb" {
		t.Fatalf("gateway called with wrong charge: %+v", gw.lastParams)
	}
	if gw.lastParams.AppointmentID != "appt-1" {
		t.Fatalf("gateway missing appointment reference: %+v", gw.lastParams)
	}
}

func TestInitiateRejectsCancelled(t *testing.T) {
	store := &fakeStore{appts: map[string]*model.Appointment{
		"appt-1": {ID: "appt-1", AmountMinor: 50000, Currency: "thb", Cancelled: true},
	}}
	gw := &fakeGateway{}
	c := newCoordinator(store, gw)

	if _, err := c.Initiate(context.Background(), "appt-1"); !errors.Is(err, booking.ErrAppointmentCancelled) {
		t.Fatalf("expected ErrAppointmentCancelled, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatal("gateway must not be called for a cancelled appointment")
	}
}

func TestInitiateGatewayDown(t *testing.T) {
	store := &fakeStore{appts: map[string]*model.Appointment{
		"appt-1": {ID: "appt-1", AmountMinor: 50000, Currency: "thb"},
	}}
	gw := &fakeGateway{err: errors.New("connection refused")}
	c := newCoordinator(store, gw)

	if _, err := c.Initiate(context.Background(), "appt-1"); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	// No partial state: the appointment stays payable.
	if store.appts["appt-1"].Paid {
		t.Fatal("gateway failure must not mark the appointment paid")
	}
}

func TestReconcileSucceededIdempotent(t *testing.T) {
	store := &fakeStore{appts: map[string]*model.Appointment{
		"appt-1": {ID: "appt-1", AmountMinor: 50000, Currency: "thb"},
	}}
	c := newCoordinator(store, &fakeGateway{})
	ctx := context.Background()

	if err := c.Reconcile(ctx, "appt-1", OutcomeSucceeded); err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	if !store.appts["appt-1"].Paid {
		t.Fatal("appointment should be paid")
	}
	// Webhook and return-URL can both report success; the second is a no-op.
	if err := c.Reconcile(ctx, "appt-1", OutcomeSucceeded); err != nil {
		t.Fatalf("repeated Reconcile should not error: %v", err)
	}
}

func TestReconcileFailedLeavesPayable(t *testing.T) {
	store := &fakeStore{appts: map[string]*model.Appointment{
		"appt-1": {ID: "appt-1", AmountMinor: 50000, Currency: "thb"},
	}}
	c := newCoordinator(store, &fakeGateway{})

	if err := c.Reconcile(context.Background(), "appt-1", OutcomeFailed); err != nil {
		t.Fatalf("Reconcile(Failed) errored: %v", err)
	}
	if store.appts["appt-1"].Paid {
		t.Fatal("failed payment must not mark the appointment paid")
	}
}

func TestReconcileAfterCancelRejected(t *testing.T) {
	store := &fakeStore{appts: map[string]*model.Appointment{
		"appt-1": {ID: "appt-1", AmountMinor: 50000, Currency: "thb", Cancelled: true},
	}}
	c := newCoordinator(store, &fakeGateway{})

	if err := c.Reconcile(context.Background(), "appt-1", OutcomeSucceeded); !errors.Is(err, booking.ErrAppointmentCancelled) {
		t.Fatalf("expected ErrAppointmentCancelled, got %v", err)
	}
	if store.appts["appt-1"].Paid {
		t.Fatal("cancelled appointment must never become paid")
	}
}
