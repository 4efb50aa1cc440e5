package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldline/internal/domain"
	"fieldline/internal/events"
	"fieldline/internal/notify"
	"fieldline/internal/repo"
	"fieldline/internal/schedule"
)

// BookSlotOptions are the parameters of a public slot booking. Either
// ContactID or inline Contact details must be supplied; inline details are
// matched to an existing contact by email before a new one is created.
type BookSlotOptions struct {
	ServiceID  string
	ContactID  string
	Contact    ContactDetails
	Start      time.Time
	Recurrence *RecurrenceOptions
}

// BookingResult is what a successful booking created.
type BookingResult struct {
	Jobs       []domain.Job
	Recurrence *domain.JobRecurrence
	Contact    domain.Contact
	Service    domain.Service
}

// BookSlot books a slot on a service's public calendar. The whole booking
// runs on one transaction: slot checks, contact upsert, conflict counting,
// and job creation commit together or not at all. Unlike tenant-initiated
// scheduling, conflicts veto a slot only once its capacity is exhausted.
func (e Engine) BookSlot(ctx context.Context, opts BookSlotOptions) (BookingResult, error) {
	var res BookingResult
	svc, err := e.Repo.GetService(ctx, opts.ServiceID)
	if err != nil {
		return res, mapRepoErr(err, "service", opts.ServiceID)
	}
	if !svc.Active {
		return res, UnavailableError{Msg: "service is not accepting bookings"}
	}
	now := e.now().UTC()
	start := opts.Start.UTC()
	end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
	if err := checkSlotBookable(svc, start, now); err != nil {
		return res, err
	}
	if err := checkSlotInWorkingHours(svc, start); err != nil {
		return res, err
	}
	if opts.ContactID == "" && opts.Contact.Email == "" {
		return res, ValidationError{Msg: "a contact id or contact email is required"}
	}

	instances := []schedule.TimeRange{{Start: start, End: end}}
	if opts.Recurrence != nil {
		if err := validateRecurrence(*opts.Recurrence, start); err != nil {
			return res, err
		}
		anchor := schedule.TimeRange{Start: start, End: end}
		instances = schedule.Expand(anchor, specFromOptions(*opts.Recurrence))
		if len(instances) == 0 {
			return res, ValidationError{Msg: "recurrence produces no occurrences"}
		}
		// Only the requested slot itself must be bookable. Later
		// occurrences landing outside working hours (a closed day, an
		// off-grid start) are skipped, like break days in direct
		// scheduling, instead of failing the booking.
		kept := make([]schedule.TimeRange, 0, len(instances))
		for _, inst := range instances {
			if checkSlotInWorkingHours(svc, inst.Start) == nil {
				kept = append(kept, inst)
			}
		}
		instances = kept
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	contact, err := e.upsertContactTx(ctx, tx, svc.TenantID, opts.ContactID, opts.Contact)
	if err != nil {
		return res, err
	}

	// Capacity-aware veto: a slot is full only when existing active jobs
	// already occupy every seat.
	for _, inst := range instances {
		hits, err := e.Repo.FindOverlappingJobsTx(ctx, tx, svc.TenantID, inst.Start, inst.End, domain.ActiveJobStatuses, "")
		if err != nil {
			return res, err
		}
		if len(hits) >= svc.Capacity() {
			return res, newConflictError(hits)
		}
	}

	status := domain.JobStatusScheduled
	if svc.Booking.RequireConfirmation {
		status = domain.JobStatusPendingConfirmation
	}
	nowStr := formatTime(now)
	title := fmt.Sprintf("%s: %s", svc.Name, contact.Name)

	var rec *domain.JobRecurrence
	if opts.Recurrence != nil {
		r := *opts.Recurrence
		rec = &domain.JobRecurrence{
			ID:         uuid.New().String(),
			TenantID:   svc.TenantID,
			ContactID:  &contact.ID,
			ServiceID:  &svc.ID,
			Frequency:  r.Frequency,
			Interval:   r.Interval,
			Count:      r.Count,
			DaysOfWeek: r.DaysOfWeek,
			StartTime:  formatTime(start),
			EndTime:    formatTime(end),
			Timezone:   r.Timezone,
			CreatedAt:  nowStr,
		}
		if r.UntilDate != nil {
			until := formatTime(*r.UntilDate)
			rec.UntilDate = &until
		}
		if err := e.Repo.InsertJobRecurrenceTx(ctx, tx, *rec); err != nil {
			return res, fmt.Errorf("insert recurrence: %w", err)
		}
		if err := e.Events.Append(ctx, tx, "job.recurrence.created", svc.TenantID, "job_recurrence", rec.ID, contact.ID, events.EventPayload{
			"frequency": rec.Frequency,
			"interval":  rec.Interval,
			"instances": len(instances),
		}); err != nil {
			return res, err
		}
	}

	for _, inst := range instances {
		startStr := formatTime(inst.Start)
		endStr := formatTime(inst.End)
		j := domain.Job{
			ID:        uuid.New().String(),
			TenantID:  svc.TenantID,
			ContactID: &contact.ID,
			ServiceID: &svc.ID,
			Title:     title,
			StartTime: &startStr,
			EndTime:   &endStr,
			Status:    status,
			CreatedAt: nowStr,
			UpdatedAt: nowStr,
		}
		if rec != nil {
			j.RecurrenceID = &rec.ID
		}
		if err := e.Repo.InsertJobTx(ctx, tx, j); err != nil {
			return res, fmt.Errorf("insert job: %w", err)
		}
		if err := e.Events.Append(ctx, tx, "job.booked", svc.TenantID, "job", j.ID, contact.ID, events.EventPayload{
			"service_id": svc.ID,
			"start":      startStr,
			"status":     status,
		}); err != nil {
			return res, err
		}
		res.Jobs = append(res.Jobs, j)
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	res.Recurrence = rec
	res.Contact = contact
	res.Service = svc

	e.notifyBooking(ctx, svc, contact, res.Jobs)
	return res, nil
}

// upsertContactTx resolves a booking's contact: by id when given, then by
// the tenant-scoped email, creating a new contact as a last resort.
func (e Engine) upsertContactTx(ctx context.Context, tx *sql.Tx, tenantID, contactID string, details ContactDetails) (domain.Contact, error) {
	if contactID != "" {
		c, err := e.Repo.GetContactTx(ctx, tx, tenantID, contactID)
		if err != nil {
			return c, mapRepoErr(err, "contact", contactID)
		}
		return c, nil
	}
	c, err := e.Repo.GetContactByEmailTx(ctx, tx, tenantID, details.Email)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return c, err
	}
	c = domain.Contact{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      details.Name,
		Email:     details.Email,
		CreatedAt: formatTime(e.now()),
	}
	if details.Phone != "" {
		c.Phone = &details.Phone
	}
	if err := e.Repo.InsertContactTx(ctx, tx, c); err != nil {
		return c, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

// notifyBooking runs after commit. A notification failure never unwinds the
// booking; it is logged and the caller still gets a success.
func (e Engine) notifyBooking(ctx context.Context, svc domain.Service, contact domain.Contact, jobs []domain.Job) {
	if e.Notifier == nil || len(jobs) == 0 {
		return
	}
	first := jobs[0]
	b := notify.Booking{
		TenantID:             svc.TenantID,
		JobID:                first.ID,
		ServiceName:          svc.Name,
		ContactName:          contact.Name,
		ContactEmail:         contact.Email,
		Occurrences:          len(jobs),
		RequiresConfirmation: first.Status == domain.JobStatusPendingConfirmation,
	}
	if first.StartTime != nil {
		if t, err := time.Parse(time.RFC3339, *first.StartTime); err == nil {
			b.Start = t
		}
	}
	if first.EndTime != nil {
		if t, err := time.Parse(time.RFC3339, *first.EndTime); err == nil {
			b.End = t
		}
	}
	if err := e.Notifier.BookingCreated(ctx, b); err != nil {
		e.Log.Warn("booking notification failed",
			zap.String("job_id", first.ID),
			zap.Error(err),
		)
	}
}
