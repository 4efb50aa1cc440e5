package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldline/internal/domain"
)

// Slot is a bookable window, expressed in UTC.
type Slot struct {
	Start time.Time
	End   time.Time
}

// DayAvailability groups the open slots of one business-local day.
type DayAvailability struct {
	Date  string
	Slots []Slot
}

const defaultAvailabilityDays = 14

// Availability computes open slots for a service over a date range. Days
// without any open slot are omitted. The range defaults to today through
// the service's advance-booking horizon when unset.
func (e Engine) Availability(ctx context.Context, serviceID string, rangeStart, rangeEnd *time.Time) ([]DayAvailability, error) {
	svc, err := e.Repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, mapRepoErr(err, "service", serviceID)
	}
	if !svc.Active {
		return nil, UnavailableError{Msg: "service is not accepting bookings"}
	}
	if !hasWorkingHours(svc.Availability) {
		return nil, UnavailableError{Msg: "service has no working hours configured"}
	}

	now := e.now().UTC()
	loc := businessLocation(svc.Availability.TimezoneOffset)

	from := now
	if rangeStart != nil && rangeStart.After(from) {
		from = rangeStart.UTC()
	}
	horizon := defaultAvailabilityDays
	if svc.Availability.AdvanceBookingDays > 0 {
		horizon = svc.Availability.AdvanceBookingDays
	}
	to := now.AddDate(0, 0, horizon)
	if rangeEnd != nil && rangeEnd.Before(to) {
		to = rangeEnd.UTC()
	}
	if !to.After(from) {
		return nil, nil
	}

	// One query for the whole window; slots are counted against the
	// result in memory instead of hitting the database per slot.
	busy, err := e.Repo.FindOverlappingJobs(ctx, svc.TenantID, from, to, domain.ActiveJobStatuses, "")
	if err != nil {
		return nil, err
	}

	var days []DayAvailability
	localFrom := from.In(loc)
	localTo := to.In(loc)
	for day := startOfDay(localFrom); !day.After(localTo); day = day.AddDate(0, 0, 1) {
		slots := e.daySlots(svc, day, now, busy)
		open := slots[:0]
		for _, s := range slots {
			if !s.Start.Before(from) && !s.End.After(to) {
				open = append(open, s)
			}
		}
		if len(open) > 0 {
			days = append(days, DayAvailability{
				Date:  day.Format("2006-01-02"),
				Slots: open,
			})
		}
	}
	return days, nil
}

// daySlots walks one business-local day in duration+buffer steps and keeps
// the slots that pass every booking rule.
func (e Engine) daySlots(svc domain.Service, day time.Time, now time.Time, busy []domain.Job) []Slot {
	wh, ok := svc.Availability.Weekdays[int(day.Weekday())]
	if !ok || !wh.Enabled {
		return nil
	}
	openMin, err := parseClockMinutes(wh.Start)
	if err != nil {
		return nil
	}
	closeMin, err := parseClockMinutes(wh.End)
	if err != nil || closeMin <= openMin {
		return nil
	}
	step := svc.DurationMinutes + svc.Availability.BufferMinutes
	if step <= 0 {
		return nil
	}

	var slots []Slot
	for m := openMin; m+svc.DurationMinutes <= closeMin; m += step {
		start := day.Add(time.Duration(m) * time.Minute).UTC()
		end := start.Add(time.Duration(svc.DurationMinutes) * time.Minute)
		if err := checkSlotBookable(svc, start, now); err != nil {
			continue
		}
		if countOverlaps(busy, start, end) >= svc.Capacity() {
			continue
		}
		slots = append(slots, Slot{Start: start, End: end})
	}
	return slots
}

// checkSlotBookable enforces the time-based booking rules shared by the
// availability listing and slot booking: no past slots, the same-day
// policy, and the advance-booking horizon.
func checkSlotBookable(svc domain.Service, start time.Time, now time.Time) error {
	if !start.After(now) {
		return UnavailableError{Msg: "slot is in the past"}
	}
	loc := businessLocation(svc.Availability.TimezoneOffset)
	localNow := now.In(loc)
	localStart := start.In(loc)
	if !svc.Availability.SameDayBooking && sameDay(localNow, localStart) {
		return UnavailableError{Msg: "same-day booking is not allowed for this service"}
	}
	if svc.Availability.AdvanceBookingDays > 0 {
		horizon := startOfDay(localNow).AddDate(0, 0, svc.Availability.AdvanceBookingDays+1)
		if !localStart.Before(horizon) {
			return UnavailableError{Msg: fmt.Sprintf("slot is beyond the %d-day booking horizon", svc.Availability.AdvanceBookingDays)}
		}
	}
	return nil
}

// checkSlotInWorkingHours verifies that a requested slot lands exactly on
// the service's slot grid for that day.
func checkSlotInWorkingHours(svc domain.Service, start time.Time) error {
	loc := businessLocation(svc.Availability.TimezoneOffset)
	local := start.In(loc)
	wh, ok := svc.Availability.Weekdays[int(local.Weekday())]
	if !ok || !wh.Enabled {
		return UnavailableError{Msg: "service is closed on the requested day"}
	}
	openMin, err := parseClockMinutes(wh.Start)
	if err != nil {
		return UnavailableError{Msg: "service working hours are misconfigured"}
	}
	closeMin, err := parseClockMinutes(wh.End)
	if err != nil || closeMin <= openMin {
		return UnavailableError{Msg: "service working hours are misconfigured"}
	}
	slotMin := local.Hour()*60 + local.Minute()
	if slotMin < openMin || slotMin+svc.DurationMinutes > closeMin {
		return UnavailableError{Msg: "slot is outside working hours"}
	}
	step := svc.DurationMinutes + svc.Availability.BufferMinutes
	if step <= 0 || (slotMin-openMin)%step != 0 {
		return UnavailableError{Msg: "slot does not align with the booking grid"}
	}
	if local.Second() != 0 || local.Nanosecond() != 0 {
		return UnavailableError{Msg: "slot does not align with the booking grid"}
	}
	return nil
}

func countOverlaps(jobs []domain.Job, start, end time.Time) int {
	n := 0
	for _, j := range jobs {
		if j.StartTime == nil || j.EndTime == nil {
			continue
		}
		js, err1 := time.Parse(time.RFC3339, *j.StartTime)
		je, err2 := time.Parse(time.RFC3339, *j.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if js.Before(end) && je.After(start) {
			n++
		}
	}
	return n
}

func hasWorkingHours(a domain.AvailabilitySettings) bool {
	for _, wh := range a.Weekdays {
		if wh.Enabled {
			return true
		}
	}
	return false
}

// businessLocation builds a fixed-offset location from the service's signed
// hour offset. Named zones with DST are out of scope for slot math.
func businessLocation(offsetHours int) *time.Location {
	if offsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

func parseClockMinutes(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("clock time %q is not HH:mm", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock time %q has an invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q has an invalid minute", s)
	}
	return h*60 + m, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
