package payments

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

// StripeGateway implements Gateway on Stripe Checkout in one-time payment
// mode, the way the clinic charges consultation fees.
type StripeGateway struct {
	secretKey string
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{secretKey: strings.TrimSpace(secretKey)}
}

func (g *StripeGateway) CreateCheckoutSession(_ context.Context, p CheckoutParams) (Session, error) {
	// Stripe uses a global API key; keep usage limited to this call.
	stripe.Key = g.secretKey

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withAppointmentParam(p.SuccessURL, p.AppointmentID)),
		CancelURL:         stripe.String(withAppointmentParam(p.CancelURL, p.AppointmentID)),
		ClientReferenceID: stripe.String(p.AppointmentID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(p.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Appointment fee"),
					},
					UnitAmount: stripe.Int64(p.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"appointment_id": p.AppointmentID,
		},
	}
	// Stripe-level idempotency: retried Initiate calls reuse the session.
	params.IdempotencyKey = stripe.String("appointment:" + p.AppointmentID)

	sess, err := checkoutsession.New(params)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

func withAppointmentParam(rawURL, appointmentID string) string {
	if rawURL == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "appointmentId=" + appointmentID
}
