package websocket

import (
	"context"
	"sync"
	"time"

	"carebow/models"
	"carebow/services"

	"github.com/sirupsen/logrus"
)

// Hub tracks connected devices per user. It pushes safety events down to
// devices and relays position requests up to them, implementing
// services.PositionRequester for the device location bridge.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// User to clients mapping; one user may have several devices connected
	userClients map[string][]*Client

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Send message to all of a user's devices
	sendToUser chan UserMessage

	geo    *services.GeolocationService
	bridge *services.DeviceLocationBridge

	stats HubStats

	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

type UserMessage struct {
	UserID  string
	Message WSMessage
}

// WSMessage is the wire envelope for both directions.
type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Inbound and outbound message types.
const (
	MessageTypePositionRequest = "position_request"
	MessageTypePositionReport  = "position_report"
	MessageTypeSafetyEvent     = "safety_event"
	MessageTypePing            = "ping"
	MessageTypePong            = "pong"
)

type HubStats struct {
	TotalConnections  int64
	ActiveConnections int
	MessagesSent      int64
	MessagesReceived  int64
	StartTime         time.Time

	mutex sync.RWMutex
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		sendToUser:  make(chan UserMessage, 64),
		stats: HubStats{
			StartTime: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// BindLocation attaches the geolocation service and device bridge. Called once
// during wiring; the bridge itself is constructed with this hub as its
// requester.
func (h *Hub) BindLocation(geo *services.GeolocationService, bridge *services.DeviceLocationBridge) {
	h.geo = geo
	h.bridge = bridge
}

// Run processes register/unregister and outbound messages until Shutdown.
func (h *Hub) Run() {
	logrus.Info("🔌 WebSocket hub started")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.sendToUser:
			h.deliverToUser(msg.UserID, msg.Message)

		case <-h.ctx.Done():
			h.closeAll()
			logrus.Info("🔌 WebSocket hub stopped")
			return
		}
	}
}

func (h *Hub) Shutdown() {
	h.cancel()
}

// SendToUser queues a message for every connected device of the user. Returns
// false when the queue is full or no device is connected.
func (h *Hub) SendToUser(userID string, message WSMessage) bool {
	if !h.IsUserConnected(userID) {
		return false
	}

	select {
	case h.sendToUser <- UserMessage{UserID: userID, Message: message}:
		return true
	default:
		logrus.Warnf("WebSocket send queue full, dropping message for user %s", userID)
		return false
	}
}

// BroadcastEvent pushes a safety event to the user's own devices so every open
// session reflects it immediately.
func (h *Hub) BroadcastEvent(userID string, event models.SafetyEvent) {
	h.SendToUser(userID, WSMessage{
		Type: MessageTypeSafetyEvent,
		Data: event,
	})
}

// RequestPosition asks the user's devices for a fresh position fix. The reply
// arrives asynchronously as a position_report and resolves the bridge waiters.
func (h *Hub) RequestPosition(userID string) error {
	if !h.SendToUser(userID, WSMessage{Type: MessageTypePositionRequest}) {
		return services.ErrNoPositionSource
	}
	return nil
}

func (h *Hub) IsUserConnected(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.userClients[userID]) > 0
}

func (h *Hub) ConnectedUsers() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.userClients)
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.userClients[client.userID] = append(h.userClients[client.userID], client)
	h.mutex.Unlock()

	h.stats.mutex.Lock()
	h.stats.TotalConnections++
	h.stats.ActiveConnections = len(h.clients)
	h.stats.mutex.Unlock()

	logrus.Debugf("WebSocket client connected: user %s", client.userID)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)

		remaining := h.userClients[client.userID][:0]
		for _, c := range h.userClients[client.userID] {
			if c != client {
				remaining = append(remaining, c)
			}
		}
		if len(remaining) == 0 {
			delete(h.userClients, client.userID)
		} else {
			h.userClients[client.userID] = remaining
		}
	}
	h.mutex.Unlock()

	h.stats.mutex.Lock()
	h.stats.ActiveConnections = len(h.clients)
	h.stats.mutex.Unlock()

	logrus.Debugf("WebSocket client disconnected: user %s", client.userID)
}

func (h *Hub) deliverToUser(userID string, message WSMessage) {
	h.mutex.RLock()
	clients := make([]*Client, len(h.userClients[userID]))
	copy(clients, h.userClients[userID])
	h.mutex.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- message:
			h.stats.mutex.Lock()
			h.stats.MessagesSent++
			h.stats.mutex.Unlock()
		default:
			// Slow consumer, drop the connection
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

// handlePositionReport records a device-reported fix and resolves any pending
// location requests waiting on it.
func (h *Hub) handlePositionReport(userID string, fix models.LocationFix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	if h.geo != nil {
		h.geo.ReportPosition(userID, fix)
	}
	if h.bridge != nil {
		h.bridge.Deliver(userID, fix)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.userClients = make(map[string][]*Client)
}
