package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/appointment-booking/internal/schedule"
)

var (
	ErrScheduleNotFound    = errors.New("doctor has no availability configured")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot already has a scheduled appointment")
)

// Repository is the booking ledger: the single authority for schedule and
// appointment state.
type Repository interface {
	GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) (schedule.Weekly, error)
	SaveWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, weekly schedule.Weekly) error

	// For availability resolution and conflict checks
	ListScheduledSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error)
	GetScheduledBySlot(ctx context.Context, doctorID uuid.UUID, date time.Time, timeSlot string) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Writes. CreateAppointment and MoveAppointment return ErrSlotTaken when
	// the scheduled-slot uniqueness constraint rejects the write.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	MoveAppointment(ctx context.Context, id uuid.UUID, newDate time.Time, newSlot string) (*Appointment, error)
	HideFromPatient(ctx context.Context, id uuid.UUID) error

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)
}
