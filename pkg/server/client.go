package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// side gives up; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// maxFrameSize caps inbound frames. The websocket library closes the
	// connection with code 1009 when a frame exceeds it.
	maxFrameSize = 64 << 10

	// maxMalformed is how many undecodable frames a session may send
	// before the connection is dropped.
	maxMalformed = 8

	// sendBuffer is the per-session outbound queue. A client that cannot
	// drain it is evicted rather than allowed to stall the room.
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientConn owns one WebSocket. All outbound frames funnel through the
// send channel so a single writer goroutine serializes socket writes.
type clientConn struct {
	id   ident.SessionID
	ws   *websocket.Conn
	send chan []byte

	mu          sync.Mutex
	closed      bool
	closeReason []byte

	// Identity the session has declared. Guarded by the Server mutex,
	// not c.mu: the connection just carries the fields, the room
	// manager owns them.
	playerID ident.PlayerID
	name     string
	roomID   ident.RoomID
}

func newClientConn(id ident.SessionID, ws *websocket.Conn) *clientConn {
	return &clientConn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
}

// enqueue queues one frame for writing. It reports false when the buffer
// is full; writes after close are swallowed.
func (c *clientConn) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// shut closes the send channel so the write pump flushes queued frames,
// emits a close frame with the given code and reason, and exits. Safe to
// call more than once.
func (c *clientConn) shut(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeReason = websocket.FormatCloseMessage(code, reason)
	close(c.send)
}

// readPump decodes inbound frames and hands them to the server's
// dispatcher. It runs on the connection's own goroutine and exits on any
// read error, taking the session down with it.
func (s *Server) readPump(c *clientConn) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Criticalf("session %s: panic in handler: %v", c.id, r)
		}
		s.dropSession(c.id)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxFrameSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	malformed := 0
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debugf("session %s read: %v", c.id, err)
			}
			return
		}
		msg, err := wire.Decode(data)
		if err != nil {
			malformed++
			s.log.Debugf("session %s: dropping malformed frame (%d/%d): %v",
				c.id, malformed, maxMalformed, err)
			if malformed >= maxMalformed {
				return
			}
			continue
		}
		s.dispatch(c, msg)
	}
}

// writePump is the sole writer on the socket. It drains the send channel,
// emits keepalive pings, and finishes with the close frame recorded by
// shut.
func (c *clientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, c.closeReason)
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
