package engine

import (
	"fmt"
	"strings"
	"time"

	"fieldline/internal/domain"
)

// ValidationError marks a malformed or incomplete request. Callers should
// fix the payload, not retry.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationErrf(format string, args ...any) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a missing referenced entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// UnavailableError marks a service that cannot currently take bookings:
// inactive, or no working hours configured.
type UnavailableError struct {
	Msg string
}

func (e UnavailableError) Error() string { return e.Msg }

// conflictDisplayCap bounds how many conflicting jobs a ConflictError
// enumerates; the rest collapse into a "+N more" suffix.
const conflictDisplayCap = 5

// ConflictError reports that a requested slot is already taken. Conflicts
// holds up to conflictDisplayCap offending jobs; Total counts all of them.
type ConflictError struct {
	Conflicts []domain.Job
	Total     int
}

func (e ConflictError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "requested time conflicts with %d existing job(s): ", e.Total)
	for i, j := range e.Conflicts {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(j.Title)
		if j.StartTime != nil && j.EndTime != nil {
			fmt.Fprintf(&b, " (%s - %s)", *j.StartTime, *j.EndTime)
		}
	}
	if rest := e.Total - len(e.Conflicts); rest > 0 {
		fmt.Fprintf(&b, " +%d more", rest)
	}
	return b.String()
}

func newConflictError(conflicts []domain.Job) ConflictError {
	total := len(conflicts)
	if total > conflictDisplayCap {
		conflicts = conflicts[:conflictDisplayCap]
	}
	return ConflictError{Conflicts: conflicts, Total: total}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
