package server

import (
	"context"
	"fmt"

	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

// promptSink is the reply slot for one in-flight prompt. The channel is
// buffered so whoever resolves the prompt never blocks, and removal from
// the table under pmu makes resolution one-shot.
type promptSink struct {
	ch       chan game.Response
	validate func(string) error
}

// promptPlayer puts one question to a player and blocks until an answer
// arrives, the prompt is cancelled by a departure, or ctx expires. At most
// one prompt may be in flight per session; installing a second is a
// programming error in a driver and panics.
func (s *Server) promptPlayer(ctx context.Context, roomID ident.RoomID, id ident.PlayerID, p game.Prompt) game.Response {
	c := s.memberConn(roomID, id)
	if c == nil {
		return game.Response{Cancelled: true}
	}

	sink := &promptSink{ch: make(chan game.Response, 1), validate: p.Validate}
	s.pmu.Lock()
	if s.prompts[c.id] != nil {
		s.pmu.Unlock()
		panic(fmt.Sprintf("prompt already pending for session %s", c.id))
	}
	s.prompts[c.id] = sink
	s.pmu.Unlock()

	// The player may have left or dropped between the lookup and the
	// install, in which case the departure ran before there was a sink to
	// cancel. Recheck now: a departure after this point serializes behind
	// s.mu and will find the sink.
	s.mu.RLock()
	_, live := s.sessions[c.id]
	member := s.playerRooms[id] == roomID
	s.mu.RUnlock()
	if !live || !member {
		s.removeSink(c.id)
		return game.Response{Cancelled: true}
	}

	s.reply(c, wire.Prompt{
		Type:        wire.TypePrompt,
		PromptType:  p.Kind,
		Message:     p.Message,
		Placeholder: p.Placeholder,
		Default:     p.Default,
		Options:     p.Options,
		Initial:     p.Initial,
	})

	select {
	case resp := <-sink.ch:
		return resp
	case <-ctx.Done():
		s.removeSink(c.id)
		return game.Response{Cancelled: true}
	}
}

// memberConn resolves a player's connection through their room membership.
func (s *Server) memberConn(roomID ident.RoomID, id ident.PlayerID) *clientConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	rp, ok := room.players[id]
	if !ok {
		return nil
	}
	return s.sessions[rp.Session]
}

// removeSink drops a sink without resolving it.
func (s *Server) removeSink(id ident.SessionID) {
	s.pmu.Lock()
	delete(s.prompts, id)
	s.pmu.Unlock()
}

// resolvePrompt feeds an inbound answer to the sink waiting on it. An
// answer with no prompt outstanding is dropped. A text-validator rejection
// emits validation_error to the answering session but the raw value is
// still delivered: the driver re-validates and re-prompts.
func (s *Server) resolvePrompt(c *clientConn, m *wire.PromptResponse) {
	s.pmu.Lock()
	sink, ok := s.prompts[c.id]
	if ok {
		delete(s.prompts, c.id)
	}
	s.pmu.Unlock()
	if !ok {
		s.log.Debugf("session %s: prompt response with nothing pending", c.id)
		return
	}

	if !m.Cancel && sink.validate != nil {
		if v, isStr := m.Value.(string); isStr {
			if err := sink.validate(v); err != nil {
				s.reply(c, wire.ValidationError{Type: wire.TypeValidationError, Message: err.Error()})
			}
		}
	}
	sink.ch <- game.Response{Value: m.Value, Cancelled: m.Cancel}
}

// cancelPromptFor resolves any pending prompt against a session as
// cancelled. The leave and disconnect paths call it under s.mu, so a
// driver woken by the cancellation checks membership only after the
// departure has fully landed.
func (s *Server) cancelPromptFor(id ident.SessionID) {
	s.pmu.Lock()
	sink, ok := s.prompts[id]
	if ok {
		delete(s.prompts, id)
	}
	s.pmu.Unlock()
	if ok {
		sink.ch <- game.Response{Cancelled: true}
	}
}
