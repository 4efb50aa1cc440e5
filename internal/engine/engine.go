// Package engine orchestrates booking and scheduling. Every operation that
// both checks and writes runs on a single transaction; SQLite admits one
// writer at a time, so a conflict check and its dependent inserts cannot
// interleave with a competing booking. A concurrent-writer backend would
// need SERIALIZABLE isolation or a range lock to keep this property.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fieldline/internal/config"
	"fieldline/internal/domain"
	"fieldline/internal/events"
	"fieldline/internal/notify"
	"fieldline/internal/repo"
	"fieldline/internal/schedule"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Notifier notify.Notifier
	Log      *zap.Logger
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config, log *zap.Logger) Engine {
	if log == nil {
		log = zap.NewNop()
	}
	var notifier notify.Notifier = notify.Noop{}
	if cfg == nil || cfg.Notifications.Enabled {
		notifier = notify.LogNotifier{Log: log}
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{DB: db},
		Config:   cfg,
		Notifier: notifier,
		Log:      log,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) CreateTenant(ctx context.Context, id, name, actorID string) (domain.Tenant, error) {
	if name == "" {
		return domain.Tenant{}, ValidationError{Msg: "tenant name is required"}
	}
	if id == "" {
		id = uuid.New().String()
	}
	t := domain.Tenant{
		ID:        id,
		Name:      name,
		CreatedAt: formatTime(e.now()),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Tenant{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTenantTx(ctx, tx, t); err != nil {
		return domain.Tenant{}, fmt.Errorf("insert tenant: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "tenant.created", t.ID, "tenant", t.ID, actorID, events.EventPayload{"name": t.Name}); err != nil {
		return domain.Tenant{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Tenant{}, err
	}
	return t, nil
}

// ContactDetails are the inline contact fields a caller may supply instead
// of an existing contact id.
type ContactDetails struct {
	Name  string
	Email string
	Phone string
}

func (e Engine) CreateContact(ctx context.Context, tenantID string, details ContactDetails, actorID string) (domain.Contact, error) {
	if details.Email == "" {
		return domain.Contact{}, ValidationError{Msg: "contact email is required"}
	}
	if details.Name == "" {
		return domain.Contact{}, ValidationError{Msg: "contact name is required"}
	}
	if _, err := e.Repo.GetTenant(ctx, tenantID); err != nil {
		return domain.Contact{}, mapRepoErr(err, "tenant", tenantID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Contact{}, err
	}
	defer tx.Rollback()
	c, err := e.upsertContactTx(ctx, tx, tenantID, "", details)
	if err != nil {
		return domain.Contact{}, err
	}
	if err := e.Events.Append(ctx, tx, "contact.created", tenantID, "contact", c.ID, actorID, events.EventPayload{"email": c.Email}); err != nil {
		return domain.Contact{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Contact{}, err
	}
	return c, nil
}

// ServiceOptions are the fields for creating a bookable service.
type ServiceOptions struct {
	TenantID     string
	Name         string
	Duration     int
	Availability domain.AvailabilitySettings
	Booking      domain.BookingSettings
	ActorID      string
}

func (e Engine) CreateService(ctx context.Context, opts ServiceOptions) (domain.Service, error) {
	if opts.Name == "" {
		return domain.Service{}, ValidationError{Msg: "service name is required"}
	}
	if opts.Duration <= 0 {
		return domain.Service{}, ValidationError{Msg: "service duration must be positive minutes"}
	}
	for day, wh := range opts.Availability.Weekdays {
		if day < 0 || day > 6 {
			return domain.Service{}, validationErrf("weekday %d out of range 0..6", day)
		}
		if !wh.Enabled {
			continue
		}
		if _, err := parseClockMinutes(wh.Start); err != nil {
			return domain.Service{}, validationErrf("weekday %d start: %v", day, err)
		}
		if _, err := parseClockMinutes(wh.End); err != nil {
			return domain.Service{}, validationErrf("weekday %d end: %v", day, err)
		}
	}
	if _, err := e.Repo.GetTenant(ctx, opts.TenantID); err != nil {
		return domain.Service{}, mapRepoErr(err, "tenant", opts.TenantID)
	}
	s := domain.Service{
		ID:              uuid.New().String(),
		TenantID:        opts.TenantID,
		Name:            opts.Name,
		DurationMinutes: opts.Duration,
		Active:          true,
		Availability:    opts.Availability,
		Booking:         opts.Booking,
		CreatedAt:       formatTime(e.now()),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Service{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertServiceTx(ctx, tx, s); err != nil {
		return domain.Service{}, fmt.Errorf("insert service: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "service.created", s.TenantID, "service", s.ID, opts.ActorID, events.EventPayload{"name": s.Name}); err != nil {
		return domain.Service{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Service{}, err
	}
	return s, nil
}

// RecurrenceOptions describe a repeating pattern anchored at the request's
// time range.
type RecurrenceOptions struct {
	Frequency  string
	Interval   int
	Count      *int
	UntilDate  *time.Time
	DaysOfWeek []int
	Timezone   string
}

// ScheduleJobOptions are parameters for tenant-initiated scheduling.
type ScheduleJobOptions struct {
	TenantID   string
	ContactID  string
	ServiceID  string
	Title      string
	Start      *time.Time
	End        *time.Time
	Breaks     []schedule.BreakPeriod
	Recurrence *RecurrenceOptions
	ActorID    string
}

// ScheduleResult is what a successful scheduling request created.
type ScheduleResult struct {
	Jobs       []domain.Job
	Recurrence *domain.JobRecurrence
}

// ScheduleJob creates one job, or a full recurring family, for a tenant.
// Direct scheduling uses the strict single-overlap veto: any active job
// overlapping any requested instance rejects the whole request, and nothing
// is persisted.
func (e Engine) ScheduleJob(ctx context.Context, opts ScheduleJobOptions) (ScheduleResult, error) {
	var res ScheduleResult
	if opts.TenantID == "" {
		return res, ValidationError{Msg: "tenant is required"}
	}
	if opts.Title == "" {
		return res, ValidationError{Msg: "title is required"}
	}
	anchor, err := optionalRange(opts.Start, opts.End)
	if err != nil {
		return res, err
	}
	if opts.Recurrence != nil {
		if anchor == nil {
			return res, ValidationError{Msg: "recurrence requires start_time and end_time"}
		}
		if err := validateRecurrence(*opts.Recurrence, anchor.Start); err != nil {
			return res, err
		}
	}
	if _, err := e.Repo.GetTenant(ctx, opts.TenantID); err != nil {
		return res, mapRepoErr(err, "tenant", opts.TenantID)
	}
	if opts.ContactID != "" {
		if _, err := e.Repo.GetContact(ctx, opts.TenantID, opts.ContactID); err != nil {
			return res, mapRepoErr(err, "contact", opts.ContactID)
		}
	}
	if opts.ServiceID != "" {
		svc, err := e.Repo.GetService(ctx, opts.ServiceID)
		if err != nil {
			return res, mapRepoErr(err, "service", opts.ServiceID)
		}
		if svc.TenantID != opts.TenantID {
			return res, NotFoundError{Kind: "service", ID: opts.ServiceID}
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	now := formatTime(e.now())
	breaksJSON, err := marshalBreaks(opts.Breaks)
	if err != nil {
		return res, err
	}

	instances := []schedule.TimeRange{}
	if anchor != nil {
		instances = []schedule.TimeRange{*anchor}
	}
	var rec *domain.JobRecurrence
	if opts.Recurrence != nil {
		instances = schedule.FilterBreaks(schedule.Expand(*anchor, specFromOptions(*opts.Recurrence)), opts.Breaks)
		if len(instances) == 0 {
			return res, ValidationError{Msg: "recurrence produces no occurrences"}
		}
		rec = e.recurrenceRecord(opts, now)
	}

	// All-or-nothing: collect conflicts across every instance before any
	// insert happens, still inside the transaction.
	var conflicts []domain.Job
	for _, inst := range instances {
		hits, err := e.Repo.FindOverlappingJobsTx(ctx, tx, opts.TenantID, inst.Start, inst.End, domain.ActiveJobStatuses, "")
		if err != nil {
			return res, err
		}
		conflicts = append(conflicts, hits...)
	}
	if conflicts = dedupeJobs(conflicts); len(conflicts) > 0 {
		return res, newConflictError(conflicts)
	}

	if rec != nil {
		if err := e.Repo.InsertJobRecurrenceTx(ctx, tx, *rec); err != nil {
			return res, fmt.Errorf("insert recurrence: %w", err)
		}
		if err := e.Events.Append(ctx, tx, "job.recurrence.created", opts.TenantID, "job_recurrence", rec.ID, opts.ActorID, events.EventPayload{
			"frequency": rec.Frequency,
			"interval":  rec.Interval,
			"instances": len(instances),
		}); err != nil {
			return res, err
		}
	}

	if len(instances) == 0 {
		// To-be-scheduled job: no time range yet.
		j := e.newJob(opts, nil, rec, breaksJSON, domain.JobStatusScheduled, now)
		if err := e.insertJobWithEvent(ctx, tx, j, opts.ActorID); err != nil {
			return res, err
		}
		res.Jobs = append(res.Jobs, j)
	}
	for i := range instances {
		j := e.newJob(opts, &instances[i], rec, breaksJSON, domain.JobStatusScheduled, now)
		if err := e.insertJobWithEvent(ctx, tx, j, opts.ActorID); err != nil {
			return res, err
		}
		res.Jobs = append(res.Jobs, j)
	}
	if err := tx.Commit(); err != nil {
		return res, err
	}
	res.Recurrence = rec
	e.Log.Info("jobs scheduled",
		zap.String("tenant_id", opts.TenantID),
		zap.Int("count", len(res.Jobs)),
		zap.Bool("recurring", rec != nil),
	)
	return res, nil
}

func (e Engine) recurrenceRecord(opts ScheduleJobOptions, now string) *domain.JobRecurrence {
	r := opts.Recurrence
	rec := &domain.JobRecurrence{
		ID:         uuid.New().String(),
		TenantID:   opts.TenantID,
		Frequency:  r.Frequency,
		Interval:   r.Interval,
		Count:      r.Count,
		DaysOfWeek: r.DaysOfWeek,
		StartTime:  formatTime(*opts.Start),
		EndTime:    formatTime(*opts.End),
		Timezone:   r.Timezone,
		CreatedAt:  now,
	}
	if opts.ContactID != "" {
		rec.ContactID = &opts.ContactID
	}
	if opts.ServiceID != "" {
		rec.ServiceID = &opts.ServiceID
	}
	if r.UntilDate != nil {
		until := formatTime(*r.UntilDate)
		rec.UntilDate = &until
	}
	return rec
}

func (e Engine) newJob(opts ScheduleJobOptions, inst *schedule.TimeRange, rec *domain.JobRecurrence, breaksJSON *string, status, now string) domain.Job {
	j := domain.Job{
		ID:         uuid.New().String(),
		TenantID:   opts.TenantID,
		Title:      opts.Title,
		Status:     status,
		BreaksJSON: breaksJSON,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if opts.ContactID != "" {
		j.ContactID = &opts.ContactID
	}
	if opts.ServiceID != "" {
		j.ServiceID = &opts.ServiceID
	}
	if rec != nil {
		j.RecurrenceID = &rec.ID
	}
	if inst != nil {
		start := formatTime(inst.Start)
		end := formatTime(inst.End)
		j.StartTime = &start
		j.EndTime = &end
	}
	return j
}

func (e Engine) insertJobWithEvent(ctx context.Context, tx *sql.Tx, j domain.Job, actorID string) error {
	if err := e.Repo.InsertJobTx(ctx, tx, j); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return e.Events.Append(ctx, tx, "job.created", j.TenantID, "job", j.ID, actorID, events.EventPayload{
		"title":  j.Title,
		"status": j.Status,
	})
}

func ensureJobTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case domain.JobStatusPendingConfirmation:
		if newStatus == domain.JobStatusScheduled || newStatus == domain.JobStatusCancelled {
			return nil
		}
	case domain.JobStatusScheduled:
		if newStatus == domain.JobStatusInProgress || newStatus == domain.JobStatusCompleted || newStatus == domain.JobStatusCancelled {
			return nil
		}
	case domain.JobStatusInProgress:
		if newStatus == domain.JobStatusCompleted || newStatus == domain.JobStatusCancelled {
			return nil
		}
	}
	return validationErrf("invalid job status transition %s -> %s", oldStatus, newStatus)
}

// SetJobStatus applies one lifecycle transition. Completed and cancelled
// are terminal.
func (e Engine) SetJobStatus(ctx context.Context, tenantID, jobID, status, actorID string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return j, mapRepoErr(err, "job", jobID)
	}
	if j.ArchivedAt != nil {
		return j, ValidationError{Msg: "archived jobs cannot change status"}
	}
	if err := ensureJobTransition(j.Status, status); err != nil {
		return j, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	from := j.Status
	j.Status = status
	j.UpdatedAt = formatTime(e.now())
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return j, err
	}
	if err := e.Events.Append(ctx, tx, "job.status", tenantID, "job", j.ID, actorID, events.EventPayload{
		"from": from,
		"to":   status,
	}); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// ConfirmJob resolves a pending booking. The slot was reserved when the
// booking was created, so confirmation does not re-run conflict detection.
func (e Engine) ConfirmJob(ctx context.Context, tenantID, jobID, actorID string) (domain.Job, error) {
	return e.SetJobStatus(ctx, tenantID, jobID, domain.JobStatusScheduled, actorID)
}

// DeclineJob cancels a pending booking, releasing the slot.
func (e Engine) DeclineJob(ctx context.Context, tenantID, jobID, actorID string) (domain.Job, error) {
	return e.SetJobStatus(ctx, tenantID, jobID, domain.JobStatusCancelled, actorID)
}

// RescheduleJob moves a job to a new time range, re-running the
// single-overlap veto against everything except the job itself.
func (e Engine) RescheduleJob(ctx context.Context, tenantID, jobID string, start, end time.Time, actorID string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return j, mapRepoErr(err, "job", jobID)
	}
	if j.ArchivedAt != nil {
		return j, ValidationError{Msg: "archived jobs cannot be rescheduled"}
	}
	if j.Status == domain.JobStatusCompleted || j.Status == domain.JobStatusCancelled {
		return j, validationErrf("%s jobs cannot be rescheduled", j.Status)
	}
	newRange, err := schedule.NewTimeRange(start, end)
	if err != nil {
		return j, ValidationError{Msg: err.Error()}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	hits, err := e.Repo.FindOverlappingJobsTx(ctx, tx, tenantID, newRange.Start, newRange.End, domain.ActiveJobStatuses, j.ID)
	if err != nil {
		return j, err
	}
	if len(hits) > 0 {
		return j, newConflictError(hits)
	}
	startStr := formatTime(start)
	endStr := formatTime(end)
	prevStart := j.StartTime
	j.StartTime = &startStr
	j.EndTime = &endStr
	j.UpdatedAt = formatTime(e.now())
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return j, err
	}
	payload := events.EventPayload{"start": startStr, "end": endStr}
	if prevStart != nil {
		payload["previous_start"] = *prevStart
	}
	if err := e.Events.Append(ctx, tx, "job.rescheduled", tenantID, "job", j.ID, actorID, payload); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// ArchiveJob soft-deletes a job. Archived jobs drop out of conflict
// detection and listings but remain queryable.
func (e Engine) ArchiveJob(ctx context.Context, tenantID, jobID, actorID string) (domain.Job, error) {
	j, err := e.Repo.GetJob(ctx, tenantID, jobID)
	if err != nil {
		return j, mapRepoErr(err, "job", jobID)
	}
	if j.ArchivedAt != nil {
		return j, nil
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return j, err
	}
	defer tx.Rollback()
	now := formatTime(e.now())
	j.ArchivedAt = &now
	j.UpdatedAt = now
	if err := e.Repo.UpdateJobTx(ctx, tx, j); err != nil {
		return j, err
	}
	if err := e.Events.Append(ctx, tx, "job.archived", tenantID, "job", j.ID, actorID, nil); err != nil {
		return j, err
	}
	if err := tx.Commit(); err != nil {
		return j, err
	}
	return j, nil
}

// --- helpers ---

func optionalRange(start, end *time.Time) (*schedule.TimeRange, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	if start == nil || end == nil {
		return nil, ValidationError{Msg: "start_time and end_time must be provided together"}
	}
	r, err := schedule.NewTimeRange(start.UTC(), end.UTC())
	if err != nil {
		return nil, ValidationError{Msg: err.Error()}
	}
	return &r, nil
}

func validateRecurrence(r RecurrenceOptions, anchorStart time.Time) error {
	switch r.Frequency {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly:
	default:
		return validationErrf("frequency %q not one of daily|weekly|monthly", r.Frequency)
	}
	if r.Interval < 1 {
		return ValidationError{Msg: "recurrence interval must be at least 1"}
	}
	if r.Count != nil && *r.Count < 1 {
		return ValidationError{Msg: "recurrence count must be at least 1"}
	}
	if r.UntilDate != nil && !r.UntilDate.After(anchorStart) {
		return ValidationError{Msg: "recurrence until_date must be after the start time"}
	}
	for _, d := range r.DaysOfWeek {
		if d < 0 || d > 6 {
			return validationErrf("day of week %d out of range 0..6", d)
		}
	}
	return nil
}

func specFromOptions(r RecurrenceOptions) schedule.Spec {
	return schedule.Spec{
		Frequency:  r.Frequency,
		Interval:   r.Interval,
		Count:      r.Count,
		Until:      r.UntilDate,
		DaysOfWeek: r.DaysOfWeek,
	}
}

func marshalBreaks(breaks []schedule.BreakPeriod) (*string, error) {
	if len(breaks) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(breaks)
	if err != nil {
		return nil, fmt.Errorf("marshal breaks: %w", err)
	}
	s := string(b)
	return &s, nil
}

func dedupeJobs(jobs []domain.Job) []domain.Job {
	if len(jobs) < 2 {
		return jobs
	}
	seen := make(map[string]bool, len(jobs))
	out := jobs[:0]
	for _, j := range jobs {
		if seen[j.ID] {
			continue
		}
		seen[j.ID] = true
		out = append(out, j)
	}
	return out
}

func mapRepoErr(err error, kind, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return NotFoundError{Kind: kind, ID: id}
	}
	return err
}
