package payments

import (
	"context"
	"math"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/ride-pooling/internal/models"
)

// StripeClient wraps stripe-go for the booking fare hold/capture/cancel flow.
// Fares are held when a rider books a matched offer and captured once the
// trip completes.
type StripeClient struct{}

// NewStripeClient initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeClient() *StripeClient {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeClient{}
}

// HoldFare creates a manual-capture PaymentIntent for the booking's fare
// and returns the intent ID.
func (s *StripeClient) HoldFare(ctx context.Context, b *models.Booking, currency string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(fareCents(b.FareAmount)),
		Currency: stripe.String(currency),
	}
	if b.RiderID != "" {
		params.AddMetadata("rider_id", b.RiderID)
	}
	params.AddMetadata("booking_id", b.ID)
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// CaptureFare finalizes a previously-held fare.
func (s *StripeClient) CaptureFare(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Capture(paymentIntentID, nil)
	return err
}

// ReleaseFare cancels the hold, e.g. when the driver declines the booking.
func (s *StripeClient) ReleaseFare(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}

func fareCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
