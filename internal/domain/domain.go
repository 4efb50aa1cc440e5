package domain

// Job statuses. A job counts toward slot capacity while it is in one of the
// active statuses; completed and cancelled jobs never block a slot.
const (
	JobStatusPendingConfirmation = "pending_confirmation"
	JobStatusScheduled           = "scheduled"
	JobStatusInProgress          = "in_progress"
	JobStatusCompleted           = "completed"
	JobStatusCancelled           = "cancelled"
)

// ActiveJobStatuses are the statuses that reserve a slot.
var ActiveJobStatuses = []string{
	JobStatusScheduled,
	JobStatusInProgress,
	JobStatusPendingConfirmation,
}

// Recurrence frequencies.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

type Tenant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Contact struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenant_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// WorkingHours is one weekday's bookable window in business-local time.
type WorkingHours struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // HH:mm
	End     string `json:"end"`   // HH:mm
}

// AvailabilitySettings configure slot generation for a service. Weekdays are
// keyed 0=Sunday..6=Saturday. TimezoneOffset is a fixed signed hour offset
// from UTC; DST transitions are not modelled.
type AvailabilitySettings struct {
	Weekdays           map[int]WorkingHours `json:"weekdays"`
	BufferMinutes      int                  `json:"buffer_minutes"`
	AdvanceBookingDays int                  `json:"advance_booking_days"`
	SameDayBooking     bool                 `json:"same_day_booking"`
	TimezoneOffset     int                  `json:"timezone_offset"`
}

// BookingSettings configure the public booking path for a service.
type BookingSettings struct {
	RequireConfirmation bool `json:"require_confirmation"`
	MaxBookingsPerSlot  int  `json:"max_bookings_per_slot"`
}

type Service struct {
	ID              string               `json:"id"`
	TenantID        string               `json:"tenant_id"`
	Name            string               `json:"name"`
	DurationMinutes int                  `json:"duration_minutes"`
	Active          bool                 `json:"active"`
	Availability    AvailabilitySettings `json:"availability"`
	Booking         BookingSettings      `json:"booking"`
	CreatedAt       string               `json:"created_at" format:"date-time"`
}

// Capacity returns the configured per-slot capacity, defaulting to 1.
func (s Service) Capacity() int {
	if s.Booking.MaxBookingsPerSlot > 0 {
		return s.Booking.MaxBookingsPerSlot
	}
	return 1
}

type JobRecurrence struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	ContactID  *string `json:"contact_id,omitempty"`
	ServiceID  *string `json:"service_id,omitempty"`
	Frequency  string  `json:"frequency" enum:"daily,weekly,monthly"`
	Interval   int     `json:"interval"`
	Count      *int    `json:"count,omitempty"`
	UntilDate  *string `json:"until_date,omitempty" format:"date-time"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	StartTime  string  `json:"start_time" format:"date-time"`
	EndTime    string  `json:"end_time" format:"date-time"`
	Timezone   string  `json:"timezone,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

// Job is one tenant-scoped calendar entry. StartTime and EndTime are both
// nil for to-be-scheduled jobs; when present, end is strictly after start.
type Job struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenant_id"`
	ContactID    *string `json:"contact_id,omitempty"`
	ServiceID    *string `json:"service_id,omitempty"`
	RecurrenceID *string `json:"recurrence_id,omitempty"`
	Title        string  `json:"title"`
	StartTime    *string `json:"start_time,omitempty" format:"date-time"`
	EndTime      *string `json:"end_time,omitempty" format:"date-time"`
	Status       string  `json:"status" enum:"pending_confirmation,scheduled,in_progress,completed,cancelled"`
	BreaksJSON   *string `json:"-"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
	ArchivedAt   *string `json:"archived_at,omitempty" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	TenantID   string `json:"tenant_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
