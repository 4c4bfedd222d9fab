package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/medilink/appointment-booking/internal/redis"
	"github.com/medilink/appointment-booking/internal/schedule"
)

var (
	ErrSlotBeingBooked   = errors.New("slot is currently being booked, please retry")
	ErrNotAllowed        = errors.New("caller is not a party to this appointment")
	ErrInvalidTransition = errors.New("appointment status does not allow this operation")
	ErrBadSlot           = errors.New("time slot must be HH:MM")
)

// Notifier relays booking outcomes to connected clients. It observes the
// ledger, it never decides slot occupancy.
type Notifier interface {
	SlotTaken(doctorID uuid.UUID, date time.Time, timeSlot string)
	StatusChanged(userID uuid.UUID, appt *Appointment)
}

// NoopNotifier drops every event.
type NoopNotifier struct{}

func (NoopNotifier) SlotTaken(uuid.UUID, time.Time, string) {}
func (NoopNotifier) StatusChanged(uuid.UUID, *Appointment)  {}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier Notifier
	slotLen  time.Duration
	log      zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, slotLen time.Duration, log zerolog.Logger) *Service {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		slotLen:  slotLen,
		log:      log,
	}
}

// AvailableSlots resolves the open slot start times for a doctor on a date:
// the generated slots for that weekday minus the ones a Scheduled
// appointment already occupies. Read-only; the booking path re-checks
// occupancy at commit time.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	weekly, err := s.repo.GetWeeklyAvailability(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load availability: %w", err)
	}

	all := schedule.Slots(weekly, date, s.slotLen)
	if len(all) == 0 {
		return []string{}, nil
	}

	booked, err := s.repo.ListScheduledSlots(ctx, doctorID, DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}

	taken := make(map[string]bool, len(booked))
	for _, slot := range booked {
		taken[slot] = true
	}

	open := make([]string, 0, len(all))
	for _, slot := range all {
		if !taken[slot] {
			open = append(open, slot)
		}
	}
	return open, nil
}

// Book claims (doctorID, date, timeSlot) for a patient. The conflict check
// and insert run inside a per slot lock, and the ledger's uniqueness
// constraint backstops the residual race: of two concurrent bookers exactly
// one wins, the other gets ErrSlotTaken. externalRef carries the payment
// correlation id when a fee was paid; a fresh id is generated otherwise.
func (s *Service) Book(ctx context.Context, patientID, doctorID uuid.UUID, date time.Time, timeSlot, externalRef string) (*Appointment, error) {
	minutes, err := schedule.ParseClock(timeSlot)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadSlot, timeSlot)
	}
	// The conflict check, the lock key, and the unique index all compare the
	// string form, so "9:00" must collapse to the canonical "09:00".
	timeSlot = schedule.FormatClock(minutes)
	day := DateOnly(date)

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, SlotKey(doctorID, day, timeSlot), func(lockCtx context.Context) error {
		existing, err := s.repo.GetScheduledBySlot(lockCtx, doctorID, day, timeSlot)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check scheduled appointment: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		videoCallID := externalRef
		if videoCallID == "" {
			videoCallID = uuid.NewString()
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			ID:             uuid.New(),
			PatientID:      patientID,
			DoctorID:       doctorID,
			Date:           day,
			TimeSlot:       timeSlot,
			Status:         StatusScheduled,
			VideoCallID:    videoCallID,
			PatientVisible: true,
		})
		if err != nil {
			return err
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.notifier.SlotTaken(doctorID, day, timeSlot)
	return created, nil
}

// Reschedule moves the caller's Scheduled appointment to a new slot after
// re-running the conflict check against that slot. On ErrSlotTaken the
// original appointment is untouched.
func (s *Service) Reschedule(ctx context.Context, appointmentID, callerID uuid.UUID, newDate time.Time, newSlot string) (*Appointment, error) {
	minutes, err := schedule.ParseClock(newSlot)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadSlot, newSlot)
	}
	newSlot = schedule.FormatClock(minutes)

	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != callerID {
		return nil, ErrNotAllowed
	}
	if appt.Status != StatusScheduled {
		return nil, ErrInvalidTransition
	}

	day := DateOnly(newDate)
	var moved *Appointment

	err = s.locker.WithSlotLock(ctx, SlotKey(appt.DoctorID, day, newSlot), func(lockCtx context.Context) error {
		existing, err := s.repo.GetScheduledBySlot(lockCtx, appt.DoctorID, day, newSlot)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return fmt.Errorf("check target slot: %w", err)
		}
		if existing != nil && existing.ID != appt.ID {
			return ErrSlotTaken
		}

		moved, err = s.repo.MoveAppointment(lockCtx, appt.ID, day, newSlot)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrAppointmentNotFound) {
			// Guarded update found no Scheduled row: status changed underneath us.
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	s.notifier.SlotTaken(moved.DoctorID, day, newSlot)
	s.notifier.StatusChanged(moved.DoctorID, moved)
	return moved, nil
}

// Cancel is the patient-side transition Scheduled -> Cancelled. The freed
// slot reappears in availability immediately.
func (s *Service) Cancel(ctx context.Context, appointmentID, callerID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.PatientID != callerID {
		return nil, ErrNotAllowed
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCancelled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.notifier.StatusChanged(updated.DoctorID, updated)
	return updated, nil
}

// Complete is the doctor-side transition Scheduled -> Completed.
func (s *Service) Complete(ctx context.Context, appointmentID, callerID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.DoctorID != callerID {
		return nil, ErrNotAllowed
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusScheduled, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.notifier.StatusChanged(updated.PatientID, updated)
	return updated, nil
}

// Hide flips patientVisible off so the record leaves the patient's list
// without being deleted.
func (s *Service) Hide(ctx context.Context, appointmentID, callerID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.PatientID != callerID {
		return ErrNotAllowed
	}
	return s.repo.HideFromPatient(ctx, appt.ID)
}

// ListForPatient returns the patient's non-hidden appointments.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return appts, nil
}

// ListForDoctor returns every appointment on the doctor's book, hidden or not.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return appts, nil
}

// SetWeeklyAvailability replaces the doctor's recurring schedule wholesale.
// Malformed windows are rejected here, before they can ever reach the slot
// generator.
func (s *Service) SetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, weekly schedule.Weekly) error {
	if err := weekly.Validate(); err != nil {
		return err
	}
	if err := s.repo.SaveWeeklyAvailability(ctx, doctorID, weekly); err != nil {
		return fmt.Errorf("save availability: %w", err)
	}
	s.log.Info().Str("doctor_id", doctorID.String()).Int("days", len(weekly.Days)).Msg("weekly availability replaced")
	return nil
}

// WeeklyAvailability returns the doctor's current schedule.
func (s *Service) WeeklyAvailability(ctx context.Context, doctorID uuid.UUID) (schedule.Weekly, error) {
	return s.repo.GetWeeklyAvailability(ctx, doctorID)
}
