package server

import (
	"encoding/json"
	"time"

	"fieldline/internal/domain"
	"fieldline/internal/engine"
	"fieldline/internal/schedule"
)

// Request payloads

type CreateTenantRequest struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

type CreateContactRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone,omitempty"`
}

type WorkingHoursRequest struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start,omitempty" example:"09:00"`
	End     string `json:"end,omitempty" example:"17:00"`
}

type AvailabilityRequest struct {
	Weekdays           map[int]WorkingHoursRequest `json:"weekdays,omitempty"`
	BufferMinutes      int                         `json:"buffer_minutes,omitempty"`
	AdvanceBookingDays int                         `json:"advance_booking_days,omitempty"`
	SameDayBooking     bool                        `json:"same_day_booking,omitempty"`
	TimezoneOffset     int                         `json:"timezone_offset,omitempty"`
}

type BookingSettingsRequest struct {
	RequireConfirmation bool `json:"require_confirmation,omitempty"`
	MaxBookingsPerSlot  int  `json:"max_bookings_per_slot,omitempty"`
}

type CreateServiceRequest struct {
	Name            string                  `json:"name"`
	DurationMinutes int                     `json:"duration_minutes"`
	Availability    *AvailabilityRequest    `json:"availability,omitempty"`
	Booking         *BookingSettingsRequest `json:"booking,omitempty"`
}

type RecurrenceRequest struct {
	Frequency  string     `json:"frequency" enum:"daily,weekly,monthly"`
	Interval   int        `json:"interval,omitempty"`
	Count      *int       `json:"count,omitempty"`
	UntilDate  *time.Time `json:"until_date,omitempty" format:"date-time"`
	DaysOfWeek []int      `json:"days_of_week,omitempty"`
	Timezone   string     `json:"timezone,omitempty"`
}

type BreakRequest struct {
	Start  time.Time `json:"start" format:"date-time"`
	End    time.Time `json:"end" format:"date-time"`
	Reason string    `json:"reason,omitempty"`
}

type CreateJobRequest struct {
	Title      string             `json:"title"`
	ContactID  *string            `json:"contact_id,omitempty"`
	ServiceID  *string            `json:"service_id,omitempty"`
	StartTime  *time.Time         `json:"start_time,omitempty" format:"date-time"`
	EndTime    *time.Time         `json:"end_time,omitempty" format:"date-time"`
	Breaks     []BreakRequest     `json:"breaks,omitempty"`
	Recurrence *RecurrenceRequest `json:"recurrence,omitempty"`
}

type SetJobStatusRequest struct {
	Status string `json:"status" enum:"scheduled,in_progress,completed,cancelled"`
}

type RescheduleJobRequest struct {
	StartTime time.Time `json:"start_time" format:"date-time"`
	EndTime   time.Time `json:"end_time" format:"date-time"`
}

type BookSlotRequest struct {
	StartTime  time.Time             `json:"start_time" format:"date-time"`
	ContactID  *string               `json:"contact_id,omitempty"`
	Contact    *CreateContactRequest `json:"contact,omitempty"`
	Recurrence *RecurrenceRequest    `json:"recurrence,omitempty"`
}

// Response payloads

type TenantResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ContactResponse struct {
	ID        string  `json:"id"`
	TenantID  string  `json:"tenant_id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type ServiceResponse struct {
	ID              string                      `json:"id"`
	TenantID        string                      `json:"tenant_id"`
	Name            string                      `json:"name"`
	DurationMinutes int                         `json:"duration_minutes"`
	Active          bool                        `json:"active"`
	Availability    domain.AvailabilitySettings `json:"availability"`
	Booking         domain.BookingSettings      `json:"booking"`
	CreatedAt       string                      `json:"created_at" format:"date-time"`
}

// PublicServiceResponse hides tenant configuration from the public
// booking page.
type PublicServiceResponse struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	DurationMinutes     int    `json:"duration_minutes"`
	RequireConfirmation bool   `json:"require_confirmation"`
}

type JobResponse struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	ContactID    *string         `json:"contact_id,omitempty"`
	ServiceID    *string         `json:"service_id,omitempty"`
	RecurrenceID *string         `json:"recurrence_id,omitempty"`
	Title        string          `json:"title"`
	StartTime    *string         `json:"start_time,omitempty" format:"date-time"`
	EndTime      *string         `json:"end_time,omitempty" format:"date-time"`
	Status       string          `json:"status" enum:"pending_confirmation,scheduled,in_progress,completed,cancelled"`
	Breaks       []BreakResponse `json:"breaks,omitempty"`
	CreatedAt    string          `json:"created_at" format:"date-time"`
	UpdatedAt    string          `json:"updated_at" format:"date-time"`
	ArchivedAt   *string         `json:"archived_at,omitempty" format:"date-time"`
}

type BreakResponse struct {
	Start  time.Time `json:"start" format:"date-time"`
	End    time.Time `json:"end" format:"date-time"`
	Reason string    `json:"reason,omitempty"`
}

type RecurrenceResponse struct {
	ID         string  `json:"id"`
	Frequency  string  `json:"frequency" enum:"daily,weekly,monthly"`
	Interval   int     `json:"interval"`
	Count      *int    `json:"count,omitempty"`
	UntilDate  *string `json:"until_date,omitempty" format:"date-time"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	StartTime  string  `json:"start_time" format:"date-time"`
	EndTime    string  `json:"end_time" format:"date-time"`
}

type ScheduleResponse struct {
	Jobs       []JobResponse       `json:"jobs"`
	Recurrence *RecurrenceResponse `json:"recurrence,omitempty"`
}

type SlotResponse struct {
	StartTime time.Time `json:"start_time" format:"date-time"`
	EndTime   time.Time `json:"end_time" format:"date-time"`
}

type DayAvailabilityResponse struct {
	Date  string         `json:"date" example:"2026-03-04"`
	Slots []SlotResponse `json:"slots"`
}

type BookingResponse struct {
	Jobs       []JobResponse       `json:"jobs"`
	Recurrence *RecurrenceResponse `json:"recurrence,omitempty"`
	Contact    ContactResponse     `json:"contact"`
	Status     string              `json:"status" enum:"pending_confirmation,scheduled"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Mappers

func tenantResponse(t domain.Tenant) TenantResponse {
	return TenantResponse{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

func contactResponse(c domain.Contact) ContactResponse {
	return ContactResponse{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}
}

func serviceResponse(s domain.Service) ServiceResponse {
	return ServiceResponse{
		ID:              s.ID,
		TenantID:        s.TenantID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Active:          s.Active,
		Availability:    s.Availability,
		Booking:         s.Booking,
		CreatedAt:       s.CreatedAt,
	}
}

func publicServiceResponse(s domain.Service) PublicServiceResponse {
	return PublicServiceResponse{
		ID:                  s.ID,
		Name:                s.Name,
		DurationMinutes:     s.DurationMinutes,
		RequireConfirmation: s.Booking.RequireConfirmation,
	}
}

func jobResponse(j domain.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID,
		TenantID:     j.TenantID,
		ContactID:    j.ContactID,
		ServiceID:    j.ServiceID,
		RecurrenceID: j.RecurrenceID,
		Title:        j.Title,
		StartTime:    j.StartTime,
		EndTime:      j.EndTime,
		Status:       j.Status,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		ArchivedAt:   j.ArchivedAt,
	}
	if j.BreaksJSON != nil {
		var breaks []schedule.BreakPeriod
		if err := json.Unmarshal([]byte(*j.BreaksJSON), &breaks); err == nil {
			for _, b := range breaks {
				resp.Breaks = append(resp.Breaks, BreakResponse{Start: b.Start, End: b.End, Reason: b.Reason})
			}
		}
	}
	return resp
}

func mapJobs(jobs []domain.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, jobResponse(j))
	}
	return out
}

func recurrenceResponse(r *domain.JobRecurrence) *RecurrenceResponse {
	if r == nil {
		return nil
	}
	return &RecurrenceResponse{
		ID:         r.ID,
		Frequency:  r.Frequency,
		Interval:   r.Interval,
		Count:      r.Count,
		UntilDate:  r.UntilDate,
		DaysOfWeek: r.DaysOfWeek,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
	}
}

func availabilityResponse(days []engine.DayAvailability) []DayAvailabilityResponse {
	out := make([]DayAvailabilityResponse, 0, len(days))
	for _, d := range days {
		dr := DayAvailabilityResponse{Date: d.Date, Slots: make([]SlotResponse, 0, len(d.Slots))}
		for _, s := range d.Slots {
			dr.Slots = append(dr.Slots, SlotResponse{StartTime: s.Start, EndTime: s.End})
		}
		out = append(out, dr)
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	resp := EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
	}
	if e.Payload != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(e.Payload), &payload); err == nil {
			resp.Payload = payload
		}
	}
	return resp
}

func recurrenceOptions(r *RecurrenceRequest) *engine.RecurrenceOptions {
	if r == nil {
		return nil
	}
	interval := r.Interval
	if interval == 0 {
		interval = 1
	}
	return &engine.RecurrenceOptions{
		Frequency:  r.Frequency,
		Interval:   interval,
		Count:      r.Count,
		UntilDate:  r.UntilDate,
		DaysOfWeek: r.DaysOfWeek,
		Timezone:   r.Timezone,
	}
}

func breakPeriods(breaks []BreakRequest) []schedule.BreakPeriod {
	out := make([]schedule.BreakPeriod, 0, len(breaks))
	for _, b := range breaks {
		out = append(out, schedule.BreakPeriod{Start: b.Start, End: b.End, Reason: b.Reason})
	}
	return out
}

func availabilitySettings(r *AvailabilityRequest) domain.AvailabilitySettings {
	if r == nil {
		return domain.AvailabilitySettings{}
	}
	settings := domain.AvailabilitySettings{
		BufferMinutes:      r.BufferMinutes,
		AdvanceBookingDays: r.AdvanceBookingDays,
		SameDayBooking:     r.SameDayBooking,
		TimezoneOffset:     r.TimezoneOffset,
	}
	if len(r.Weekdays) > 0 {
		settings.Weekdays = make(map[int]domain.WorkingHours, len(r.Weekdays))
		for day, wh := range r.Weekdays {
			settings.Weekdays[day] = domain.WorkingHours{Enabled: wh.Enabled, Start: wh.Start, End: wh.End}
		}
	}
	return settings
}

func bookingSettings(r *BookingSettingsRequest) domain.BookingSettings {
	if r == nil {
		return domain.BookingSettings{}
	}
	return domain.BookingSettings{
		RequireConfirmation: r.RequireConfirmation,
		MaxBookingsPerSlot:  r.MaxBookingsPerSlot,
	}
}
