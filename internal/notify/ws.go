package notify

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientMessage is an inbound control message mirroring the booking UI
// protocol: identify yourself, or start/stop watching a doctor's calendar.
type ClientMessage struct {
	Action   string `json:"action"` // addUser, join, leave
	UserID   string `json:"userId,omitempty"`
	DoctorID string `json:"doctorId,omitempty"`
}

// Handler upgrades HTTP connections and pumps messages between the socket
// and the hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler builds the /ws endpoint. allowedOrigin is the exact Origin
// permitted to upgrade; empty keeps the permissive dev behavior.
func NewHandler(hub *Hub, allowedOrigin string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigin),
		},
	}
}

// checkOrigin still admits requests without an Origin header: those come
// from non-browser clients, which the browser same-origin policy does not
// protect anyway.
func checkOrigin(allowed string) func(*http.Request) bool {
	if allowed == "" {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowed
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := h.hub.NewClient()

	go h.writePump(client, ws)
	h.readPump(client, ws)
}

func (h *Handler) readPump(client *Client, ws *websocket.Conn) {
	defer func() {
		h.hub.Disconnect(client)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}
		h.dispatch(client, msg)
	}
}

func (h *Handler) dispatch(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "addUser":
		userID, err := uuid.Parse(msg.UserID)
		if err != nil {
			return
		}
		h.hub.RegisterUser(client, userID)
	case "join":
		doctorID, err := uuid.Parse(msg.DoctorID)
		if err != nil {
			return
		}
		h.hub.Join(client, doctorID)
	case "leave":
		doctorID, err := uuid.Parse(msg.DoctorID)
		if err != nil {
			return
		}
		h.hub.Leave(client, doctorID)
	}
}

func (h *Handler) writePump(client *Client, ws *websocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
