package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/appointment-booking/internal/schedule"
)

// MemoryRepository is a mutex-guarded in-memory ledger. It enforces the same
// scheduled-slot uniqueness as the Postgres partial index, so the booking
// service behaves identically on top of it. Used by tests and local runs
// without a database.
type MemoryRepository struct {
	mu           sync.Mutex
	schedules    map[uuid.UUID]schedule.Weekly
	appointments map[uuid.UUID]*Appointment
	scheduled    map[string]uuid.UUID // SlotKey -> appointment ID, Scheduled only
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		schedules:    make(map[uuid.UUID]schedule.Weekly),
		appointments: make(map[uuid.UUID]*Appointment),
		scheduled:    make(map[string]uuid.UUID),
	}
}

func (r *MemoryRepository) GetWeeklyAvailability(_ context.Context, doctorID uuid.UUID) (schedule.Weekly, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	weekly, ok := r.schedules[doctorID]
	if !ok || len(weekly.Days) == 0 {
		return schedule.Weekly{}, ErrScheduleNotFound
	}
	return weekly, nil
}

func (r *MemoryRepository) SaveWeeklyAvailability(_ context.Context, doctorID uuid.UUID, weekly schedule.Weekly) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schedules[doctorID] = weekly
	return nil
}

func (r *MemoryRepository) ListScheduledSlots(_ context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := DateOnly(date)
	var slots []string
	for _, appt := range r.appointments {
		if appt.Status == StatusScheduled && appt.DoctorID == doctorID && appt.Date.Equal(day) {
			slots = append(slots, appt.TimeSlot)
		}
	}
	sort.Strings(slots)
	return slots, nil
}

func (r *MemoryRepository) GetScheduledBySlot(_ context.Context, doctorID uuid.UUID, date time.Time, timeSlot string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.scheduled[SlotKey(doctorID, date, timeSlot)]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return copyOf(r.appointments[id]), nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return copyOf(appt), nil
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, appt *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := SlotKey(appt.DoctorID, appt.Date, appt.TimeSlot)
	if _, taken := r.scheduled[key]; taken {
		return nil, ErrSlotTaken
	}

	stored := copyOf(appt)
	stored.Date = DateOnly(appt.Date)
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.appointments[stored.ID] = stored
	r.scheduled[key] = stored.ID
	return copyOf(stored), nil
}

func (r *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok || appt.Status != from {
		return nil, ErrAppointmentNotFound
	}

	if from == StatusScheduled && to != StatusScheduled {
		delete(r.scheduled, SlotKey(appt.DoctorID, appt.Date, appt.TimeSlot))
	}
	appt.Status = to
	appt.UpdatedAt = time.Now()
	return copyOf(appt), nil
}

func (r *MemoryRepository) MoveAppointment(_ context.Context, id uuid.UUID, newDate time.Time, newSlot string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok || appt.Status != StatusScheduled {
		return nil, ErrAppointmentNotFound
	}

	newKey := SlotKey(appt.DoctorID, newDate, newSlot)
	if holder, taken := r.scheduled[newKey]; taken && holder != id {
		return nil, ErrSlotTaken
	}

	delete(r.scheduled, SlotKey(appt.DoctorID, appt.Date, appt.TimeSlot))
	appt.Date = DateOnly(newDate)
	appt.TimeSlot = newSlot
	appt.UpdatedAt = time.Now()
	r.scheduled[newKey] = id
	return copyOf(appt), nil
}

func (r *MemoryRepository) HideFromPatient(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	appt.PatientVisible = false
	appt.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, appt := range r.appointments {
		if appt.PatientID == patientID && appt.PatientVisible {
			result = append(result, *copyOf(appt))
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (r *MemoryRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, appt := range r.appointments {
		if appt.DoctorID == doctorID {
			result = append(result, *copyOf(appt))
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func copyOf(appt *Appointment) *Appointment {
	c := *appt
	return &c
}

func sortNewestFirst(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].Date.Equal(appts[j].Date) {
			return appts[i].Date.After(appts[j].Date)
		}
		return appts[i].TimeSlot > appts[j].TimeSlot
	})
}
