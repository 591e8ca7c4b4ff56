package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"carebow/models"
	"carebow/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for client send channel
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// In production, implement proper origin checking
		return true
	},
}

type Client struct {
	// WebSocket connection
	conn *websocket.Conn

	userID string

	// Connection metadata
	connectionID string
	connectedAt  time.Time

	// Buffered channel of outbound messages
	send chan WSMessage

	hub *Hub
}

// ServeWS upgrades an authenticated request to a websocket connection and
// registers it with the hub. Runs behind the auth middleware, which has
// already set userID.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := utils.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.Errorf("WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:         conn,
			userID:       userID,
			connectionID: utils.GenerateUUID(),
			connectedAt:  time.Now(),
			send:         make(chan WSMessage, sendBufferSize),
			hub:          hub,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Warnf("WebSocket read error for user %s: %v", c.userID, err)
			}
			return
		}

		c.hub.stats.mutex.Lock()
		c.hub.stats.MessagesReceived++
		c.hub.stats.mutex.Unlock()

		c.handleMessage(raw)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		logrus.Debugf("Dropping malformed WebSocket message from user %s: %v", c.userID, err)
		return
	}

	switch envelope.Type {
	case MessageTypePositionReport:
		var fix models.LocationFix
		if err := json.Unmarshal(envelope.Data, &fix); err != nil {
			logrus.Debugf("Dropping malformed position report from user %s: %v", c.userID, err)
			return
		}
		c.hub.handlePositionReport(c.userID, fix)

	case MessageTypePing:
		select {
		case c.send <- WSMessage{Type: MessageTypePong}:
		default:
		}

	default:
		logrus.Debugf("Unknown WebSocket message type %q from user %s", envelope.Type, c.userID)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Debugf("WebSocket write error for user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
