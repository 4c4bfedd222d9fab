package api

import (
	"time"

	"github.com/medilink/appointment-booking/internal/booking"
)

const dateLayout = "2006-01-02"

type CreateAppointmentRequest struct {
	DoctorID    string `json:"doctor_id"`
	Date        string `json:"date"` // YYYY-MM-DD
	TimeSlot    string `json:"time_slot"`
	ExternalRef string `json:"external_ref,omitempty"` // payment correlation id
}

type RescheduleRequest struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

type TimeWindowPayload struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

type DayAvailabilityPayload struct {
	Day     string              `json:"day"` // weekday name, "Monday"
	Windows []TimeWindowPayload `json:"time_windows"`
}

type SetAvailabilityRequest struct {
	Days []DayAvailabilityPayload `json:"availability"`
}

type AppointmentResponse struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	DoctorID       string    `json:"doctor_id"`
	Date           string    `json:"appointment_date"`
	TimeSlot       string    `json:"time_slot"`
	Status         string    `json:"status"`
	VideoCallID    string    `json:"video_call_id,omitempty"`
	PatientVisible bool      `json:"patient_visible"`
	IsReviewed     bool      `json:"is_reviewed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID.String(),
		PatientID:      a.PatientID.String(),
		DoctorID:       a.DoctorID.String(),
		Date:           a.Date.Format(dateLayout),
		TimeSlot:       a.TimeSlot,
		Status:         string(a.Status),
		VideoCallID:    a.VideoCallID,
		PatientVisible: a.PatientVisible,
		IsReviewed:     a.IsReviewed,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type AvailabilityResponse struct {
	DoctorID string   `json:"doctor_id"`
	Date     string   `json:"date"`
	Slots    []string `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
