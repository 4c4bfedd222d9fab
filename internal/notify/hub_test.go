package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilink/appointment-booking/internal/booking"
)

var testDate = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func drain(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.Send:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	default:
		t.Fatal("expected an event, send queue is empty")
		return Event{}
	}
}

func TestSlotTaken_ReachesEveryViewer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctorID := uuid.New()

	viewer1 := hub.NewClient()
	viewer2 := hub.NewClient()
	bystander := hub.NewClient()
	hub.Join(viewer1, doctorID)
	hub.Join(viewer2, doctorID)
	hub.Join(bystander, uuid.New())

	hub.SlotTaken(doctorID, testDate, "09:00")

	for _, viewer := range []*Client{viewer1, viewer2} {
		ev := drain(t, viewer)
		if ev.Type != EventSlotBooked || ev.TimeSlot != "09:00" || ev.Date != "2026-01-05" {
			t.Fatalf("viewer got %+v, want slotBooked 09:00 on 2026-01-05", ev)
		}
	}
	if len(bystander.Send) != 0 {
		t.Fatal("viewer of a different doctor received the event")
	}
}

func TestJoinLeave_Idempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctorID := uuid.New()
	c := hub.NewClient()

	hub.Join(c, doctorID)
	hub.Join(c, doctorID)
	if got := hub.RoomCount(doctorID); got != 1 {
		t.Fatalf("RoomCount after double join = %d, want 1", got)
	}

	hub.Leave(c, doctorID)
	hub.Leave(c, doctorID)
	if got := hub.RoomCount(doctorID); got != 0 {
		t.Fatalf("RoomCount after double leave = %d, want 0", got)
	}
}

func TestStatusChanged_DirectPush(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()
	c := hub.NewClient()
	hub.RegisterUser(c, userID)

	appt := &booking.Appointment{
		ID:        uuid.New(),
		PatientID: userID,
		DoctorID:  uuid.New(),
		Date:      testDate,
		TimeSlot:  "09:00",
		Status:    booking.StatusCancelled,
	}
	hub.StatusChanged(userID, appt)

	ev := drain(t, c)
	if ev.Type != EventStatusChanged {
		t.Fatalf("event type = %q, want %q", ev.Type, EventStatusChanged)
	}
	if ev.Appointment == nil || ev.Appointment.Status != "Cancelled" {
		t.Fatalf("event appointment = %+v, want Cancelled payload", ev.Appointment)
	}
}

func TestStatusChanged_OfflineUserDropped(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// Must not panic or block when nobody is registered.
	hub.StatusChanged(uuid.New(), &booking.Appointment{ID: uuid.New(), Date: testDate})
}

func TestRegisterUser_LastConnectionWins(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()

	old := hub.NewClient()
	hub.RegisterUser(old, userID)
	replacement := hub.NewClient()
	hub.RegisterUser(replacement, userID)

	hub.StatusChanged(userID, &booking.Appointment{ID: uuid.New(), Date: testDate, Status: booking.StatusCompleted})

	if len(old.Send) != 0 {
		t.Fatal("superseded connection received the push")
	}
	if len(replacement.Send) != 1 {
		t.Fatalf("replacement connection has %d queued events, want 1", len(replacement.Send))
	}
}

func TestDisconnect_CleansUpEverything(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctorA := uuid.New()
	doctorB := uuid.New()
	userID := uuid.New()

	c := hub.NewClient()
	hub.Join(c, doctorA)
	hub.Join(c, doctorB)
	hub.RegisterUser(c, userID)

	hub.Disconnect(c)

	if hub.RoomCount(doctorA) != 0 || hub.RoomCount(doctorB) != 0 {
		t.Fatal("disconnected client still counted in a room")
	}
	if hub.UserOnline(userID) {
		t.Fatal("disconnected client still registered for direct pushes")
	}
	if _, open := <-c.Send; open {
		t.Fatal("send queue still open after disconnect")
	}
}

func TestDisconnect_DoesNotEvictNewerConnection(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	userID := uuid.New()

	old := hub.NewClient()
	hub.RegisterUser(old, userID)
	replacement := hub.NewClient()
	hub.RegisterUser(replacement, userID)

	// The old socket finally times out; the user is still online through the
	// replacement.
	hub.Disconnect(old)

	if !hub.UserOnline(userID) {
		t.Fatal("user went offline when a stale connection closed")
	}
}

func TestSlotTaken_SlowClientSkipped(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doctorID := uuid.New()
	c := hub.NewClient()
	hub.Join(c, doctorID)

	// Fill the buffer; further broadcasts must not block the hub.
	for i := 0; i < cap(c.Send); i++ {
		c.Send <- []byte("{}")
	}

	done := make(chan struct{})
	go func() {
		hub.SlotTaken(doctorID, testDate, "09:00")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
