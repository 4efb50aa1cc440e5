package engine_test

import (
	"errors"
	"testing"
	"time"

	"fieldline/internal/domain"
	"fieldline/internal/engine"
)

func TestAvailabilityWorkingHours(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{})

	days, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Now is Monday 08:00 UTC with same-day booking off and a 7-day
	// horizon: Tuesday through Friday are open, the weekend is closed,
	// and the following Monday's slots end past the horizon.
	if len(days) != 4 {
		t.Fatalf("got %d days, want 4: %+v", len(days), days)
	}
	if days[0].Date != "2026-03-03" || days[3].Date != "2026-03-06" {
		t.Fatalf("unexpected dates: %s .. %s", days[0].Date, days[3].Date)
	}
	for _, d := range days {
		if len(d.Slots) != 8 {
			t.Fatalf("%s: got %d slots, want 8", d.Date, len(d.Slots))
		}
	}
	first := days[0].Slots[0]
	if !first.Start.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("first slot %v", first.Start)
	}
	last := days[0].Slots[7]
	if !last.Start.Equal(time.Date(2026, 3, 3, 16, 0, 0, 0, time.UTC)) {
		t.Fatalf("last slot %v", last.Start)
	}
}

func TestAvailabilityExcludesBookedSlots(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{})
	booked := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	mustSchedule(t, env, "existing visit", booked, booked.Add(time.Hour))

	days, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	var wednesday *engine.DayAvailability
	for i := range days {
		if days[i].Date == "2026-03-04" {
			wednesday = &days[i]
		}
	}
	if wednesday == nil {
		t.Fatal("wednesday missing")
	}
	if len(wednesday.Slots) != 7 {
		t.Fatalf("got %d slots, want 7", len(wednesday.Slots))
	}
	for _, s := range wednesday.Slots {
		if s.Start.Equal(booked) {
			t.Fatalf("booked slot still listed: %v", s.Start)
		}
	}
}

func TestAvailabilityBufferStretchesGrid(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{
		Availability: domain.AvailabilitySettings{
			Weekdays:           weekdayHours(2),
			BufferMinutes:      30,
			AdvanceBookingDays: 7,
		},
	})
	days, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 {
		t.Fatalf("got %d days", len(days))
	}
	// 09:00-17:00 with 60m slots stepped by 90m: 09:00 10:30 12:00 13:30 15:00
	if len(days[0].Slots) != 5 {
		t.Fatalf("got %d slots, want 5", len(days[0].Slots))
	}
	second := days[0].Slots[1]
	if !second.Start.Equal(time.Date(2026, 3, 3, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("second slot %v", second.Start)
	}
}

func TestAvailabilityCapacityKeepsSlotOpen(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{
		Booking: domain.BookingSettings{MaxBookingsPerSlot: 2},
	})
	slot := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	book := func(email string) {
		t.Helper()
		if _, err := env.Engine.BookSlot(env.Ctx, engine.BookSlotOptions{
			ServiceID: svc.ID,
			Start:     slot,
			Contact:   engine.ContactDetails{Name: "Client", Email: email},
		}); err != nil {
			t.Fatalf("book %s: %v", email, err)
		}
	}
	book("a@example.com")

	days, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slotListed(days, "2026-03-04", slot) {
		t.Fatal("slot with spare capacity should stay open")
	}

	book("b@example.com")
	days, err = env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if slotListed(days, "2026-03-04", slot) {
		t.Fatal("full slot should be hidden")
	}
}

func TestAvailabilityTimezoneOffset(t *testing.T) {
	env := newTestEnv(t)
	// Business runs at UTC-5: 09:00 local is 14:00 UTC.
	svc := env.createService(t, engine.ServiceOptions{
		Availability: domain.AvailabilitySettings{
			Weekdays:           weekdayHours(2),
			AdvanceBookingDays: 7,
			TimezoneOffset:     -5,
		},
	})
	days, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) == 0 {
		t.Fatal("no days")
	}
	first := days[0].Slots[0]
	if !first.Start.Equal(time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("first slot %v, want 14:00 UTC", first.Start)
	}
}

func TestAvailabilitySameDayBooking(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{
		Availability: domain.AvailabilitySettings{
			Weekdays:           weekdayHours(1, 2, 3, 4, 5),
			AdvanceBookingDays: 7,
			SameDayBooking:     true,
		},
	})
	days, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if days[0].Date != "2026-03-02" {
		t.Fatalf("same-day slots missing: first day %s", days[0].Date)
	}
	// Slots at or before 08:00 are already past.
	for _, s := range days[0].Slots {
		if !s.Start.After(testNow) {
			t.Fatalf("past slot listed: %v", s.Start)
		}
	}
}

func TestAvailabilityInactiveService(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{})
	if err := env.Engine.Repo.SetServiceActive(env.Ctx, env.Tenant.ID, svc.ID, false); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	var ue engine.UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("want UnavailableError, got %v", err)
	}
}

func TestAvailabilityNoWorkingHours(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{
		Availability: domain.AvailabilitySettings{
			Weekdays:           map[int]domain.WorkingHours{2: {Enabled: false, Start: "09:00", End: "17:00"}},
			AdvanceBookingDays: 7,
		},
	})
	_, err := env.Engine.Availability(env.Ctx, svc.ID, nil, nil)
	var ue engine.UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("want UnavailableError, got %v", err)
	}
}

func TestAvailabilityExplicitRange(t *testing.T) {
	env := newTestEnv(t)
	svc := env.createService(t, engine.ServiceOptions{})
	from := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	days, err := env.Engine.Availability(env.Ctx, svc.ID, &from, &to)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0].Date != "2026-03-04" {
		t.Fatalf("range should limit to wednesday: %+v", days)
	}
}

func slotListed(days []engine.DayAvailability, date string, start time.Time) bool {
	for _, d := range days {
		if d.Date != date {
			continue
		}
		for _, s := range d.Slots {
			if s.Start.Equal(start) {
				return true
			}
		}
	}
	return false
}
