package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilink/appointment-booking/internal/auth"
	"github.com/medilink/appointment-booking/internal/booking"
	"github.com/medilink/appointment-booking/internal/schedule"
)

type handlers struct {
	svc *booking.Service
	log zerolog.Logger
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return
	}

	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), doctorID, date)
	if err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID: doctorID.String(),
		Date:     date.Format(dateLayout),
		Slots:    slots,
	})
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	if identity.Role != auth.RolePatient {
		writeError(w, http.StatusForbidden, "patients_only", "only patients can book appointments")
		return
	}

	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	appt, err := h.svc.Book(r.Context(), identity.UserID, doctorID, date, req.TimeSlot, req.ExternalRef)
	if err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var (
		appts []booking.Appointment
		err   error
	)
	switch identity.Role {
	case auth.RolePatient:
		appts, err = h.svc.ListForPatient(r.Context(), identity.UserID)
	case auth.RoleDoctor:
		appts, err = h.svc.ListForDoctor(r.Context(), identity.UserID)
	default:
		writeError(w, http.StatusForbidden, "unknown_role", "role has no appointment list")
		return
	}
	if err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), appointmentID, identity.UserID, date, req.TimeSlot)
	if err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *handlers) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *handlers) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, caller uuid.UUID) (*booking.Appointment, error)) {
	identity, _ := auth.FromContext(r.Context())
	appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := op(r.Context(), appointmentID, identity.UserID)
	if err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) hide(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	appointmentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	if err := h.svc.Hide(r.Context(), appointmentID, identity.UserID); err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "appointment hidden"})
}

func (h *handlers) getMyAvailability(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	if identity.Role != auth.RoleDoctor {
		writeError(w, http.StatusForbidden, "doctors_only", "only doctors have an availability schedule")
		return
	}

	weekly, err := h.svc.WeeklyAvailability(r.Context(), identity.UserID)
	if err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAvailabilityPayload(weekly))
}

func (h *handlers) setMyAvailability(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	if identity.Role != auth.RoleDoctor {
		writeError(w, http.StatusForbidden, "doctors_only", "only doctors can publish availability")
		return
	}

	var req SetAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	weekly, err := fromAvailabilityPayload(req.Days)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_availability", err.Error())
		return
	}

	if err := h.svc.SetWeeklyAvailability(r.Context(), identity.UserID, weekly); err != nil {
		h.handleBookingError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAvailabilityPayload(weekly))
}

func toAvailabilityPayload(weekly schedule.Weekly) SetAvailabilityRequest {
	out := SetAvailabilityRequest{Days: make([]DayAvailabilityPayload, 0, len(weekly.Days))}
	for _, day := range weekly.Days {
		p := DayAvailabilityPayload{Day: day.Day.String()}
		for _, win := range day.Windows {
			p.Windows = append(p.Windows, TimeWindowPayload{Start: win.Start, End: win.End})
		}
		out.Days = append(out.Days, p)
	}
	return out
}

func fromAvailabilityPayload(days []DayAvailabilityPayload) (schedule.Weekly, error) {
	var weekly schedule.Weekly
	for _, day := range days {
		weekday, err := schedule.ParseWeekday(day.Day)
		if err != nil {
			return schedule.Weekly{}, err
		}
		d := schedule.DayAvailability{Day: weekday}
		for _, win := range day.Windows {
			d.Windows = append(d.Windows, schedule.TimeWindow{Start: win.Start, End: win.End})
		}
		weekly.Days = append(weekly.Days, d)
	}
	return weekly, nil
}

// handleBookingError maps domain errors to HTTP outcomes. A slot conflict
// tells the caller to re-fetch availability: the slot they saw is stale.
func (h *handlers) handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_conflict", "this time slot is no longer available, re-fetch availability")
	case errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "not_allowed", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, booking.ErrBadSlot),
		errors.Is(err, schedule.ErrBadTime),
		errors.Is(err, schedule.ErrWindowInverted),
		errors.Is(err, schedule.ErrWindowsOverlap),
		errors.Is(err, schedule.ErrDuplicateDay),
		errors.Is(err, schedule.ErrUnknownDay):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Str("request_id", GetRequestID(r.Context())).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected failure, please retry")
	}
}
