package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Appointment is one committed booking. At most one Scheduled appointment
// may exist per (DoctorID, Date, TimeSlot); the ledger enforces this.
type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	Date           time.Time // calendar date, time-of-day truncated, UTC
	TimeSlot       string    // slot start, "HH:MM"
	Status         Status
	VideoCallID    string
	PatientVisible bool
	IsReviewed     bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DateOnly truncates t to its calendar date in UTC. Ledger keys compare
// dates, never instants.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SlotKey identifies one bookable unit for locking and conflict checks.
func SlotKey(doctorID uuid.UUID, date time.Time, timeSlot string) string {
	return doctorID.String() + ":" + DateOnly(date).Format("2006-01-02") + ":" + timeSlot
}
