// Package client implements a non-interactive card room client. It speaks
// the WebSocket wire vocabulary, demultiplexes inbound frames onto a
// message stream, and can answer prompts through a pluggable hook. The
// end-to-end tests and cardroomctl are its consumers.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/gorilla/websocket"

	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

// writeWait bounds a single frame write.
const writeWait = 10 * time.Second

// ErrClosed is returned by Next once the session is gone and the inbound
// queue has drained.
var ErrClosed = errors.New("client: connection closed")

// Message is one inbound server frame plus its decoded type tag.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// Into unmarshals the frame into a concrete wire struct.
func (m Message) Into(v any) error {
	return json.Unmarshal(m.Raw, v)
}

// PromptFunc answers a prompt as it arrives. Returning ok=false leaves the
// prompt unanswered for the consumer to resolve through Respond.
type PromptFunc func(p wire.Prompt) (value any, ok bool)

// Config configures one session.
type Config struct {
	// URL is the ws:// endpoint.
	URL string

	// Log receives client-side diagnostics. Nil disables logging.
	Log slog.Logger

	// OnPrompt, when set, auto-answers prompts from the read loop. The
	// prompt is still delivered on the message stream afterwards.
	OnPrompt PromptFunc

	// Buffer sizes the inbound queue. Zero means 128.
	Buffer int
}

// Client is one live session against a card room server.
type Client struct {
	ws       *websocket.Conn
	log      slog.Logger
	onPrompt PromptFunc

	// writeMu serializes socket writes; reads stay on the read loop.
	writeMu sync.Mutex

	recv chan Message
	quit chan struct{}
	done chan struct{}
	once sync.Once

	readErr error

	// SessionID comes from the connected handshake. PlayerID and Name
	// are populated by Identify.
	SessionID ident.SessionID
	PlayerID  ident.PlayerID
	Name      string
}

// Dial connects and consumes the connected handshake frame.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	buffer := cfg.Buffer
	if buffer == 0 {
		buffer = 128
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	c := &Client{
		ws:       ws,
		log:      log,
		onPrompt: cfg.OnPrompt,
		recv:     make(chan Message, buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	ws.SetReadDeadline(time.Now().Add(writeWait))
	var hello wire.Connected
	if err := ws.ReadJSON(&hello); err != nil {
		ws.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	if hello.Type != wire.TypeConnected {
		ws.Close()
		return nil, fmt.Errorf("handshake: unexpected first frame %q", hello.Type)
	}
	c.SessionID = hello.SessionID
	ws.SetReadDeadline(time.Time{})
	log.Debugf("connected, session %s", c.SessionID)

	go c.readLoop()
	return c, nil
}

// readLoop owns the socket's read side until it dies. Frames are delivered
// in order and never dropped; a consumer that stops reading exerts
// backpressure instead.
func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warnf("dropping malformed frame: %v", err)
			continue
		}
		c.log.Tracef("recv %s: %s", env.Type, data)

		msg := Message{Type: env.Type, Raw: append([]byte(nil), data...)}

		if env.Type == wire.TypePrompt && c.onPrompt != nil {
			var p wire.Prompt
			if err := msg.Into(&p); err == nil {
				if value, ok := c.onPrompt(p); ok {
					if err := c.Respond(value); err != nil {
						c.log.Errorf("auto-answer: %v", err)
					}
				}
			}
		}

		select {
		case c.recv <- msg:
		case <-c.quit:
			return
		}
	}
}

// Next returns the next inbound message. Once the session is gone it keeps
// returning queued messages until the backlog drains, then reports the
// close.
func (c *Client) Next(ctx context.Context) (Message, error) {
	select {
	case msg := <-c.recv:
		return msg, nil
	case <-c.done:
		select {
		case msg := <-c.recv:
			return msg, nil
		default:
			return Message{}, c.closeErr()
		}
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// WaitFor discards messages until one of the wanted type arrives.
func (c *Client) WaitFor(ctx context.Context, typ string) (Message, error) {
	for {
		msg, err := c.Next(ctx)
		if err != nil {
			return Message{}, err
		}
		if msg.Type == typ {
			return msg, nil
		}
		c.log.Tracef("skipping %s while waiting for %s", msg.Type, typ)
	}
}

// await is WaitFor with room_error surfaced as an error, for the
// request/confirm pairs of the lobby vocabulary.
func (c *Client) await(ctx context.Context, typ string) (Message, error) {
	for {
		msg, err := c.Next(ctx)
		if err != nil {
			return Message{}, err
		}
		switch msg.Type {
		case typ:
			return msg, nil
		case wire.TypeRoomError:
			var e wire.RoomError
			if err := msg.Into(&e); err != nil {
				return Message{}, err
			}
			return Message{}, fmt.Errorf("room error: %s", e.Error)
		}
	}
}

func (c *Client) send(msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(msg)
}

// Identify declares a display name and records the minted player id.
func (c *Client) Identify(ctx context.Context, name string) error {
	if err := c.send(wire.Identify{Type: wire.TypeIdentify, Name: name}); err != nil {
		return err
	}
	msg, err := c.await(ctx, wire.TypeIdentified)
	if err != nil {
		return err
	}
	var id wire.Identified
	if err := msg.Into(&id); err != nil {
		return err
	}
	c.PlayerID = id.PlayerID
	c.Name = id.Name
	c.log.Debugf("identified as %s (%s)", id.Name, id.PlayerID)
	return nil
}

// ListRooms fetches the public room list.
func (c *Client) ListRooms(ctx context.Context) ([]wire.RoomSummary, error) {
	if err := c.send(wire.RoomListRequest{Type: wire.TypeRoomList}); err != nil {
		return nil, err
	}
	msg, err := c.await(ctx, wire.TypeRoomList)
	if err != nil {
		return nil, err
	}
	var list wire.RoomList
	if err := msg.Into(&list); err != nil {
		return nil, err
	}
	return list.Rooms, nil
}

// ListGames fetches the registered game metadata.
func (c *Client) ListGames(ctx context.Context) ([]wire.GameInfo, error) {
	if err := c.send(wire.GameListRequest{Type: wire.TypeGameList}); err != nil {
		return nil, err
	}
	msg, err := c.await(ctx, wire.TypeGameList)
	if err != nil {
		return nil, err
	}
	var list wire.GameList
	if err := msg.Into(&list); err != nil {
		return nil, err
	}
	return list.Games, nil
}

// CreateRoom creates a room; zero fields take server defaults.
func (c *Client) CreateRoom(ctx context.Context, req wire.RoomCreate) (wire.RoomJoined, error) {
	req.Type = wire.TypeRoomCreate
	if err := c.send(req); err != nil {
		return wire.RoomJoined{}, err
	}
	return c.awaitJoined(ctx)
}

// JoinRoom joins by code; the server forgives case and padding.
func (c *Client) JoinRoom(ctx context.Context, code string) (wire.RoomJoined, error) {
	if err := c.send(wire.RoomJoin{Type: wire.TypeRoomJoin, RoomID: code}); err != nil {
		return wire.RoomJoined{}, err
	}
	return c.awaitJoined(ctx)
}

func (c *Client) awaitJoined(ctx context.Context) (wire.RoomJoined, error) {
	msg, err := c.await(ctx, wire.TypeRoomJoined)
	if err != nil {
		return wire.RoomJoined{}, err
	}
	var joined wire.RoomJoined
	if err := msg.Into(&joined); err != nil {
		return wire.RoomJoined{}, err
	}
	c.log.Debugf("in room %s (%s)", joined.Room.ID, joined.Room.Name)
	return joined, nil
}

// LeaveRoom leaves the current room and waits for the confirmation.
func (c *Client) LeaveRoom(ctx context.Context) error {
	if err := c.send(wire.RoomLeave{Type: wire.TypeRoomLeave}); err != nil {
		return err
	}
	_, err := c.await(ctx, wire.TypeRoomLeft)
	return err
}

// SetReady flips the readiness flag. The resulting room_players broadcast
// arrives on the message stream.
func (c *Client) SetReady(ready bool) error {
	return c.send(wire.RoomReady{Type: wire.TypeRoomReady, Ready: ready})
}

// StartGame asks the server to start; only the host's request is honored.
// Confirmation is the game_starting broadcast.
func (c *Client) StartGame() error {
	return c.send(wire.RoomStart{Type: wire.TypeRoomStart})
}

// Respond answers the outstanding prompt.
func (c *Client) Respond(value any) error {
	return c.send(wire.PromptResponse{Value: value})
}

// CancelPrompt backs out of the outstanding prompt.
func (c *Client) CancelPrompt() error {
	return c.send(wire.PromptResponse{Cancel: true})
}

// Done is closed once the read side has shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close performs the closing handshake and tears the session down.
func (c *Client) Close() error {
	c.once.Do(func() {
		close(c.quit)
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		c.ws.Close()
	})
	return nil
}

// Abort drops the socket with no closing handshake, the way a crashed
// client would.
func (c *Client) Abort() {
	c.once.Do(func() {
		close(c.quit)
		c.ws.Close()
	})
}

func (c *Client) closeErr() error {
	if c.readErr == nil || websocket.IsCloseError(c.readErr,
		websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.readErr)
}
