package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medilink/appointment-booking/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, time_slot, status,
	video_call_id, patient_visible, is_reviewed, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.TimeSlot,
		&a.Status,
		&a.VideoCallID,
		&a.PatientVisible,
		&a.IsReviewed,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOnly(a.Date)
	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Interface methods

func (r *PgRepository) GetWeeklyAvailability(ctx context.Context, doctorID uuid.UUID) (schedule.Weekly, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT day, start_time, end_time
		FROM doctor_availability
		WHERE doctor_id = $1
		ORDER BY day, ord
	`, doctorID)
	if err != nil {
		return schedule.Weekly{}, err
	}
	defer rows.Close()

	var weekly schedule.Weekly
	for rows.Next() {
		var day int
		var win schedule.TimeWindow
		if err := rows.Scan(&day, &win.Start, &win.End); err != nil {
			return schedule.Weekly{}, err
		}

		weekday := time.Weekday(day)
		if n := len(weekly.Days); n > 0 && weekly.Days[n-1].Day == weekday {
			weekly.Days[n-1].Windows = append(weekly.Days[n-1].Windows, win)
		} else {
			weekly.Days = append(weekly.Days, schedule.DayAvailability{
				Day:     weekday,
				Windows: []schedule.TimeWindow{win},
			})
		}
	}
	if err := rows.Err(); err != nil {
		return schedule.Weekly{}, err
	}
	if len(weekly.Days) == 0 {
		return schedule.Weekly{}, ErrScheduleNotFound
	}

	return weekly, nil
}

func (r *PgRepository) SaveWeeklyAvailability(ctx context.Context, doctorID uuid.UUID, weekly schedule.Weekly) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin availability tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM doctor_availability WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}

	for _, day := range weekly.Days {
		for ord, win := range day.Windows {
			_, err := tx.Exec(ctx, `
				INSERT INTO doctor_availability (doctor_id, day, ord, start_time, end_time)
				VALUES ($1, $2, $3, $4, $5)
			`, doctorID, int(day.Day), ord, win.Start, win.End)
			if err != nil {
				return fmt.Errorf("insert availability row: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) ListScheduledSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT time_slot
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND status = 'Scheduled'
	`, doctorID, DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (r *PgRepository) GetScheduledBySlot(ctx context.Context, doctorID uuid.UUID, date time.Time, timeSlot string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND appointment_date = $2 AND time_slot = $3 AND status = 'Scheduled'
	`, doctorID, DateOnly(date), timeSlot)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments
			(id, patient_id, doctor_id, appointment_date, time_slot, status,
			 video_call_id, patient_visible, is_reviewed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.PatientID, appt.DoctorID, DateOnly(appt.Date), appt.TimeSlot,
		appt.Status, appt.VideoCallID, appt.PatientVisible, appt.IsReviewed)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent insert won the partial unique index between our
			// existence check and this write.
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) MoveAppointment(ctx context.Context, id uuid.UUID, newDate time.Time, newSlot string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $2,
		    time_slot = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'Scheduled'
		RETURNING `+appointmentColumns+`
	`, id, DateOnly(newDate), newSlot)

	moved, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return moved, nil
}

func (r *PgRepository) HideFromPatient(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET patient_visible = FALSE,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1 AND patient_visible
		ORDER BY appointment_date DESC, time_slot DESC
	`, patientID)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return r.listAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY appointment_date DESC, time_slot DESC
	`, doctorID)
}

func (r *PgRepository) listAppointments(ctx context.Context, query string, arg any) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}
