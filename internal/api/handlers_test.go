package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilink/appointment-booking/internal/auth"
	"github.com/medilink/appointment-booking/internal/booking"
	"github.com/medilink/appointment-booking/internal/notify"
	redisclient "github.com/medilink/appointment-booking/internal/redis"
	"github.com/medilink/appointment-booking/internal/schedule"
)

type testEnv struct {
	router   http.Handler
	verifier *auth.Verifier
	svc      *booking.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	verifier := auth.NewVerifier("test-secret")
	hub := notify.NewHub(zerolog.Nop())
	svc := booking.NewService(booking.NewMemoryRepository(), redisclient.NoopLocker{}, hub, 30*time.Minute, zerolog.Nop())

	router := NewRouter(RouterConfig{
		Service:  svc,
		Hub:      hub,
		Verifier: verifier,
		Logger:   zerolog.Nop(),
		Env:      "test",
		Version:  "test",
	})
	return &testEnv{router: router, verifier: verifier, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, as uuid.UUID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if role != "" {
		token, err := e.verifier.Sign(as, role)
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) setSchedule(t *testing.T, doctorID uuid.UUID) {
	t.Helper()
	weekly := schedule.Weekly{Days: []schedule.DayAvailability{{
		Day:     time.Monday,
		Windows: []schedule.TimeWindow{{Start: "09:00", End: "10:00"}},
	}}}
	if err := e.svc.SetWeeklyAvailability(context.Background(), doctorID, weekly); err != nil {
		t.Fatalf("SetWeeklyAvailability: %v", err)
	}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv(t)
	doctorID := uuid.New()
	patient := uuid.New()
	env.setSchedule(t, doctorID)

	rec := env.do(t, http.MethodGet, "/api/doctors/"+doctorID.String()+"/availability?date=2026-01-05", patient, auth.RolePatient, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[AvailabilityResponse](t, rec)
	if len(resp.Slots) != 2 || resp.Slots[0] != "09:00" || resp.Slots[1] != "09:30" {
		t.Fatalf("slots = %v, want [09:00 09:30]", resp.Slots)
	}
}

func TestAvailabilityEndpoint_BadDate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/doctors/"+uuid.NewString()+"/availability?date=tomorrow", uuid.New(), auth.RolePatient, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAvailabilityEndpoint_NoSchedule(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/doctors/"+uuid.NewString()+"/availability?date=2026-01-05", uuid.New(), auth.RolePatient, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAvailabilityEndpoint_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/doctors/"+uuid.NewString()+"/availability?date=2026-01-05", uuid.Nil, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateAppointment(t *testing.T) {
	env := newTestEnv(t)
	doctorID := uuid.New()
	patient := uuid.New()
	env.setSchedule(t, doctorID)

	body := CreateAppointmentRequest{DoctorID: doctorID.String(), Date: "2026-01-05", TimeSlot: "09:00"}
	rec := env.do(t, http.MethodPost, "/api/appointments", patient, auth.RolePatient, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[AppointmentResponse](t, rec)
	if resp.Status != "Scheduled" || resp.TimeSlot != "09:00" {
		t.Fatalf("response = %+v, want Scheduled 09:00", resp)
	}

	// Same slot again: conflict, with the re-fetch hint.
	rec = env.do(t, http.MethodPost, "/api/appointments", uuid.New(), auth.RolePatient, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking status = %d, want 409", rec.Code)
	}
	errResp := decodeBody[ErrorResponse](t, rec)
	if errResp.Error != "slot_conflict" {
		t.Fatalf("error code = %q, want slot_conflict", errResp.Error)
	}
}

func TestCreateAppointment_DoctorsCannotBook(t *testing.T) {
	env := newTestEnv(t)

	body := CreateAppointmentRequest{DoctorID: uuid.NewString(), Date: "2026-01-05", TimeSlot: "09:00"}
	rec := env.do(t, http.MethodPost, "/api/appointments", uuid.New(), auth.RoleDoctor, body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRescheduleEndpoint_Conflict(t *testing.T) {
	env := newTestEnv(t)
	doctorID := uuid.New()
	alice := uuid.New()
	bob := uuid.New()
	env.setSchedule(t, doctorID)

	rec := env.do(t, http.MethodPost, "/api/appointments", alice, auth.RolePatient,
		CreateAppointmentRequest{DoctorID: doctorID.String(), Date: "2026-01-05", TimeSlot: "09:00"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("book alice: %d %s", rec.Code, rec.Body.String())
	}
	aliceAppt := decodeBody[AppointmentResponse](t, rec)

	rec = env.do(t, http.MethodPost, "/api/appointments", bob, auth.RolePatient,
		CreateAppointmentRequest{DoctorID: doctorID.String(), Date: "2026-01-05", TimeSlot: "09:30"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("book bob: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPut, "/api/appointments/"+aliceAppt.ID+"/reschedule", alice, auth.RolePatient,
		RescheduleRequest{Date: "2026-01-05", TimeSlot: "09:30"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("reschedule into taken slot status = %d, want 409", rec.Code)
	}
}

func TestCancelEndpoint_RestoresAvailability(t *testing.T) {
	env := newTestEnv(t)
	doctorID := uuid.New()
	alice := uuid.New()
	env.setSchedule(t, doctorID)

	rec := env.do(t, http.MethodPost, "/api/appointments", alice, auth.RolePatient,
		CreateAppointmentRequest{DoctorID: doctorID.String(), Date: "2026-01-05", TimeSlot: "09:00"})
	appt := decodeBody[AppointmentResponse](t, rec)

	rec = env.do(t, http.MethodPut, "/api/appointments/"+appt.ID+"/cancel", alice, auth.RolePatient, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/doctors/"+doctorID.String()+"/availability?date=2026-01-05", alice, auth.RolePatient, nil)
	resp := decodeBody[AvailabilityResponse](t, rec)
	if len(resp.Slots) != 2 {
		t.Fatalf("slots after cancel = %v, want both open again", resp.Slots)
	}
}

func TestCompleteEndpoint_WrongDoctor(t *testing.T) {
	env := newTestEnv(t)
	doctorID := uuid.New()
	alice := uuid.New()
	env.setSchedule(t, doctorID)

	rec := env.do(t, http.MethodPost, "/api/appointments", alice, auth.RolePatient,
		CreateAppointmentRequest{DoctorID: doctorID.String(), Date: "2026-01-05", TimeSlot: "09:00"})
	appt := decodeBody[AppointmentResponse](t, rec)

	rec = env.do(t, http.MethodPut, "/api/appointments/"+appt.ID+"/complete", uuid.New(), auth.RoleDoctor, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("complete by other doctor status = %d, want 403", rec.Code)
	}
}

func TestMyAvailabilityRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	doctorID := uuid.New()

	set := SetAvailabilityRequest{Days: []DayAvailabilityPayload{{
		Day:     "Monday",
		Windows: []TimeWindowPayload{{Start: "09:00", End: "12:00"}},
	}}}
	rec := env.do(t, http.MethodPut, "/api/doctors/me/availability", doctorID, auth.RoleDoctor, set)
	if rec.Code != http.StatusOK {
		t.Fatalf("set availability status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/doctors/me/availability", doctorID, auth.RoleDoctor, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get availability status = %d", rec.Code)
	}
	got := decodeBody[SetAvailabilityRequest](t, rec)
	if len(got.Days) != 1 || got.Days[0].Day != "Monday" || len(got.Days[0].Windows) != 1 {
		t.Fatalf("availability = %+v, want the Monday window back", got)
	}
}

func TestMyAvailability_RejectsInvertedWindow(t *testing.T) {
	env := newTestEnv(t)

	set := SetAvailabilityRequest{Days: []DayAvailabilityPayload{{
		Day:     "Monday",
		Windows: []TimeWindowPayload{{Start: "12:00", End: "09:00"}},
	}}}
	rec := env.do(t, http.MethodPut, "/api/doctors/me/availability", uuid.New(), auth.RoleDoctor, set)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestMyAvailability_PatientsForbidden(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/doctors/me/availability", uuid.New(), auth.RolePatient, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
