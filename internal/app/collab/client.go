/*
Package collab contains the core logic of the real-time collaboration hub.

This file defines the Client struct, representing an active WebSocket connection.
It manages the connection's lifecycle, the message communication loops (ReadPump
and WritePump), and the dispatch of inbound events to the Directory.
*/
package collab

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"collabhub/internal/app/user"
	"collabhub/internal/pkg/logx"
	"collabhub/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 65536

	// sendQueueSize buffers outbound events per connection.
	sendQueueSize = 256
)

// Client represents an active WebSocket connection and the participant
// identity it carries. It implements Subscriber for room fan-out.
type Client struct {
	// unique transport-level connection identifier.
	connID string

	// the Directory routing this connection's events.
	directory *Directory

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// identity of the authenticated caller, used to seed join requests.
	identity user.User

	// a buffered channel used to queue events waiting to be sent to the client.
	send chan []byte

	// closeOnce guards the send channel against double close.
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded WebSocket connection.
func NewClient(directory *Directory, conn *websocket.Conn, identity user.User) *Client {
	connID := randx.ConnID()

	clientLogger := logx.Logger().With().
		Str("conn_id", connID).
		Str("user_id", identity.ID).
		Logger()

	return &Client{
		connID:    connID,
		directory: directory,
		conn:      conn,
		identity:  identity,
		send:      make(chan []byte, sendQueueSize),
		logger:    clientLogger,
	}
}

// ConnID implements Subscriber.
func (c *Client) ConnID() string {
	return c.connID
}

// Enqueue implements Subscriber: it offers a marshaled event to the send queue
// without blocking and reports whether the event was accepted.
func (c *Client) Enqueue(ev Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Error marshaling event for client.")
		return false
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump handles reading events from the WebSocket connection. It handles
// heartbeats (Pong), event dispatch, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		c.processInboundEvent(messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
// The Directory leave path runs for any room this connection still occupies.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.directory.Disconnect(c)

	c.closeOnce.Do(func() {
		close(c.send)
	})

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundEvent handles raw byte messages received from the client.
// Malformed frames are dropped without tearing down the connection.
func (c *Client) processInboundEvent(messageBytes []byte) {
	var inbound Event

	if err := json.Unmarshal(messageBytes, &inbound); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		return
	}

	switch inbound.Type {
	case EventJoinRoom:
		var p JoinRoomPayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		// Identity fields come from the authenticated connection; clients may
		// only suggest an id for reconnect continuity.
		if p.User.ID == "" {
			p.User.ID = c.identity.ID
		}
		p.User.DisplayName = c.identity.DisplayName
		p.User.Email = c.identity.Email
		c.directory.Join(c, p)

	case EventLeaveRoom:
		var p LeaveRoomPayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.Leave(c, p.RoomID)

	case EventCursorMove:
		var p CursorMovePayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.CursorMove(c, p)

	case EventElementSelect:
		var p ElementSelectPayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.ElementSelect(c, p)

	case EventDocumentChange:
		var p DocumentChangePayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.DocumentChange(c, p)

	case EventWhiteboardStroke:
		var p WhiteboardStrokePayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.WhiteboardStroke(c, p)

	case EventWhiteboardShape:
		var p WhiteboardShapePayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.WhiteboardShape(c, p)

	case EventAddAnnotation:
		var p AddAnnotationPayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.AddAnnotation(c, p)

	case EventRemoveAnnotation:
		var p RemoveAnnotationPayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.RemoveAnnotation(c, p)

	case EventRequestSync:
		var p RequestSyncPayload
		if !c.bindPayload(inbound, &p) {
			return
		}
		c.directory.RequestSync(c, p.RoomID)

	default:
		c.logger.Warn().Str("event_type", string(inbound.Type)).Msg("Client sent unsupported event type")
	}
}

// bindPayload unmarshals the event payload into dst, dropping the event with a
// warning when the payload is malformed.
func (c *Client) bindPayload(ev Event, dst any) bool {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		c.logger.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Client sent invalid payload")
		return false
	}
	return true
}

// WritePump handles writing events from the Client.send channel to the
// WebSocket connection, interleaved with heartbeat pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles events pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
