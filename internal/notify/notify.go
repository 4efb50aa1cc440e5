// Package notify delivers post-commit booking notifications. Delivery is
// best effort: the orchestrator logs failures and never lets them roll back
// or fail a committed booking.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Booking carries everything a sender needs to notify the client and the
// contractor about a committed booking.
type Booking struct {
	TenantID             string
	JobID                string
	ServiceName          string
	ContactName          string
	ContactEmail         string
	Start                time.Time
	End                  time.Time
	Occurrences          int
	RequiresConfirmation bool
}

type Notifier interface {
	BookingCreated(ctx context.Context, b Booking) error
}

// LogNotifier records notifications in the structured log. It stands in for
// a real mail/SMS sender in development and tests.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) BookingCreated(_ context.Context, b Booking) error {
	n.Log.Info("booking notification",
		zap.String("tenant_id", b.TenantID),
		zap.String("job_id", b.JobID),
		zap.String("service", b.ServiceName),
		zap.String("contact_email", b.ContactEmail),
		zap.Time("start", b.Start),
		zap.Int("occurrences", b.Occurrences),
		zap.Bool("requires_confirmation", b.RequiresConfirmation),
	)
	return nil
}

// Noop discards notifications.
type Noop struct{}

func (Noop) BookingCreated(context.Context, Booking) error { return nil }
