package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"wastelink-backend/internal/geoloc"
	"wastelink-backend/internal/models"
	"wastelink-backend/internal/services"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048
)

// Client represents a WebSocket client connection
type Client struct {
	UserID   string
	UserRole string // "collector", "admin" or "resident"
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
	locSvc   *services.LocationService
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type      string                 `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewClient creates a new WebSocket client
func NewClient(userID, userRole string, conn *websocket.Conn, hub *Hub, locSvc *services.LocationService) *Client {
	return &Client{
		UserID:   userID,
		UserRole: userRole,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		locSvc:   locSvc,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.markAsDisconnected()
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
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		switch msg.Type {
		case "ping":
			response := map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Format(time.RFC3339),
			}
			responseData, _ := json.Marshal(response)
			c.send <- responseData

		case "location_update":
			c.handleLocationUpdate(msg.Data)

		case "location_error":
			c.handleLocationError(msg.Data)

		case "focus_grievance":
			// Collector opened a grievance; relay to admin dashboards
			c.hub.BroadcastToRole("admin", map[string]interface{}{
				"type": "collector_focus",
				"data": map[string]interface{}{
					"collector_id": c.UserID,
					"grievance_id": msg.Data["grievance_id"],
				},
			})
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// handleLocationUpdate processes collector position samples received over
// the socket and fans them out to the admin fleet view
func (c *Client) handleLocationUpdate(data map[string]interface{}) {
	if c.UserRole != "collector" || c.locSvc == nil {
		return
	}

	latitude, ok := data["latitude"].(float64)
	if !ok {
		log.Printf("❌ Invalid latitude in location update")
		return
	}

	longitude, ok := data["longitude"].(float64)
	if !ok {
		log.Printf("❌ Invalid longitude in location update")
		return
	}

	var heading, speed, accuracy *float64
	if h, ok := data["heading"].(float64); ok {
		heading = &h
	}
	if s, ok := data["speed"].(float64); ok {
		speed = &s
	}
	if a, ok := data["accuracy"].(float64); ok {
		accuracy = &a
	}

	var timestamp int64
	if ts, ok := data["timestamp"].(float64); ok {
		timestamp = int64(ts)
	}

	updatedAt, err := c.locSvc.Ingest(c.UserID, models.CollectorLocation{
		Latitude:  latitude,
		Longitude: longitude,
		Heading:   heading,
		Speed:     speed,
		Accuracy:  accuracy,
		Timestamp: timestamp,
	})
	if err != nil {
		log.Printf("❌ Error saving location for collector %s: %v", c.UserID, err)
		return
	}

	c.hub.BroadcastToRole("admin", map[string]interface{}{
		"type": "collector_location_update",
		"data": map[string]interface{}{
			"collector_id": c.UserID,
			"latitude":     latitude,
			"longitude":    longitude,
			"heading":      heading,
			"speed":        speed,
			"accuracy":     accuracy,
			"timestamp":    timestamp,
			"updated_at":   updatedAt,
		},
	})
}

// handleLocationError forwards device-side geolocation failures. Timeouts
// are retryable; a permission denial shuts down the collector's watches.
func (c *Client) handleLocationError(data map[string]interface{}) {
	if c.UserRole != "collector" || c.locSvc == nil {
		return
	}

	code, _ := data["code"].(string)
	detail, _ := data["message"].(string)

	switch code {
	case "permission_denied":
		c.locSvc.ReportFailure(c.UserID, geoloc.FailurePermissionDenied, detail)
	default:
		c.locSvc.ReportFailure(c.UserID, geoloc.FailureTimeout, detail)
	}
}

// markAsDisconnected preserves the collector's last position when the
// socket closes so the fleet view keeps showing it
func (c *Client) markAsDisconnected() {
	if c.UserRole != "collector" || c.locSvc == nil {
		return
	}

	if err := c.locSvc.Disconnect(c.UserID); err != nil {
		log.Printf("❌ Error marking collector as disconnected: %v", err)
		return
	}

	log.Printf("🔴 Collector %s marked as disconnected (last position preserved)", c.UserID)
}
