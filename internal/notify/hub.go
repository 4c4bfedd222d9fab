// Package notify pushes booking events to connected clients over
// WebSockets: "slot taken" broadcasts to everyone watching a doctor's
// calendar, and "status changed" pushes addressed to a single user. The hub
// only relays what the booking ledger already committed; it is never the
// authority for slot state.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilink/appointment-booking/internal/booking"
)

const (
	EventSlotBooked    = "slotBooked"
	EventStatusChanged = "appointmentStatusChanged"
)

// Event is the wire form of a push notification.
type Event struct {
	Type        string              `json:"type"`
	DoctorID    string              `json:"doctorId,omitempty"`
	Date        string              `json:"date,omitempty"`
	TimeSlot    string              `json:"timeSlot,omitempty"`
	Appointment *AppointmentPayload `json:"appointment,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// AppointmentPayload is the client-facing appointment shape.
type AppointmentPayload struct {
	ID        string `json:"id"`
	PatientID string `json:"patientId"`
	DoctorID  string `json:"doctorId"`
	Date      string `json:"appointmentDate"`
	TimeSlot  string `json:"timeSlot"`
	Status    string `json:"status"`
}

func payloadFor(appt *booking.Appointment) *AppointmentPayload {
	return &AppointmentPayload{
		ID:        appt.ID.String(),
		PatientID: appt.PatientID.String(),
		DoctorID:  appt.DoctorID.String(),
		Date:      appt.Date.Format("2006-01-02"),
		TimeSlot:  appt.TimeSlot,
		Status:    string(appt.Status),
	}
}

// Client is one connected WebSocket peer.
type Client struct {
	Send chan []byte

	hub    *Hub
	userID uuid.UUID // zero until the client identifies itself
}

// Hub tracks per-doctor viewer rooms and per-user direct connections.
// It is created at process start and injected wherever events originate;
// there is no package-level instance. All maps are guarded by mu.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]map[*Client]struct{} // doctorID -> calendar viewers
	users   map[uuid.UUID]*Client              // userID -> latest connection
	watched map[*Client]map[uuid.UUID]struct{} // reverse index for cleanup
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:   make(map[uuid.UUID]map[*Client]struct{}),
		users:   make(map[uuid.UUID]*Client),
		watched: make(map[*Client]map[uuid.UUID]struct{}),
		log:     log,
	}
}

// NewClient allocates a client with a buffered send queue. The caller owns
// the transport; the hub only writes into Send.
func (h *Hub) NewClient() *Client {
	return &Client{
		Send: make(chan []byte, 64),
		hub:  h,
	}
}

// Join subscribes the client to a doctor's booking room. Idempotent.
func (h *Hub) Join(c *Client, doctorID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[doctorID] == nil {
		h.rooms[doctorID] = make(map[*Client]struct{})
	}
	h.rooms[doctorID][c] = struct{}{}

	if h.watched[c] == nil {
		h.watched[c] = make(map[uuid.UUID]struct{})
	}
	h.watched[c][doctorID] = struct{}{}
}

// Leave removes the client from a doctor's booking room. Idempotent.
func (h *Hub) Leave(c *Client, doctorID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, doctorID)
}

func (h *Hub) leaveLocked(c *Client, doctorID uuid.UUID) {
	if viewers, ok := h.rooms[doctorID]; ok {
		delete(viewers, c)
		if len(viewers) == 0 {
			delete(h.rooms, doctorID)
		}
	}
	if watched, ok := h.watched[c]; ok {
		delete(watched, doctorID)
	}
}

// RegisterUser records the client as userID's active connection for direct
// pushes. A later registration from the same user supersedes this one:
// reconnect semantics, not multi-device fan-out.
func (h *Hub) RegisterUser(c *Client, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.userID = userID
	h.users[userID] = c
}

// Disconnect tears down every room membership and the direct registration
// held by this client, then closes its send queue.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for doctorID := range h.watched[c] {
		h.leaveLocked(c, doctorID)
	}
	delete(h.watched, c)

	if c.userID != uuid.Nil && h.users[c.userID] == c {
		delete(h.users, c.userID)
	}

	close(c.Send)
}

// SlotTaken broadcasts to every viewer of the doctor's calendar, the booker
// included. Clients treat it as "remove this slot from the list", so
// re-delivery is harmless.
func (h *Hub) SlotTaken(doctorID uuid.UUID, date time.Time, timeSlot string) {
	h.broadcast(doctorID, Event{
		Type:      EventSlotBooked,
		DoctorID:  doctorID.String(),
		Date:      date.Format("2006-01-02"),
		TimeSlot:  timeSlot,
		Timestamp: time.Now(),
	})
}

// StatusChanged pushes to the user's registered connection if there is one.
// Silently dropped otherwise: the ledger shows the change on next load, the
// push is only an accelerator.
func (h *Hub) StatusChanged(userID uuid.UUID, appt *booking.Appointment) {
	data, err := json.Marshal(Event{
		Type:        EventStatusChanged,
		Appointment: payloadFor(appt),
		Timestamp:   time.Now(),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal status-changed event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.users[userID]
	if !ok {
		return
	}
	send(c, data)
}

func (h *Hub) broadcast(doctorID uuid.UUID, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal slot-taken event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[doctorID] {
		send(c, data)
	}
}

func send(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		// Client buffer full; skip to avoid blocking.
	}
}

// RoomCount returns how many clients are watching a doctor's calendar.
func (h *Hub) RoomCount(doctorID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[doctorID])
}

// UserOnline reports whether userID has a registered connection.
func (h *Hub) UserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.users[userID]
	return ok
}
