package server

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
	"github.com/vctt94/cardroom/pkg/wire"
)

// ask runs promptPlayer on its own goroutine, the way a driver would.
func ask(ctx context.Context, s *Server, roomID ident.RoomID, pid ident.PlayerID, p game.Prompt) chan game.Response {
	out := make(chan game.Response, 1)
	go func() {
		out <- s.promptPlayer(ctx, roomID, pid, p)
	}()
	return out
}

func awaitResponse(t *testing.T, out chan game.Response) game.Response {
	t.Helper()
	select {
	case resp := <-out:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("prompt never resolved")
		return game.Response{}
	}
}

func promptRoom(t *testing.T, s *Server) (*clientConn, ident.PlayerID, ident.RoomID) {
	t.Helper()
	c := connect(t, s)
	pid := identify(t, s, c, "alice")
	roomID := createRoom(t, s, c, wire.RoomCreate{})
	return c, pid, roomID
}

func TestPromptRoundTrip(t *testing.T) {
	s := newTestServer(t)
	c, pid, roomID := promptRoom(t, s)

	out := ask(context.Background(), s, roomID, pid, game.Prompt{
		Kind:    wire.PromptSelect,
		Message: "Your turn",
		Options: []wire.SelectOption{{Label: "Hit", Value: "hit"}, {Label: "Stand", Value: "stand"}},
	})

	m := recvWait(t, c)
	require.Equal(t, "prompt", m["type"])
	require.Equal(t, "select", m["promptType"])
	require.Equal(t, "Your turn", m["message"])
	require.Len(t, m["options"].([]any), 2)

	s.resolvePrompt(c, &wire.PromptResponse{Value: "stand"})
	resp := awaitResponse(t, out)
	require.False(t, resp.Cancelled)
	require.Equal(t, "stand", resp.Value)

	s.pmu.Lock()
	require.Empty(t, s.prompts, "sink must be gone after resolution")
	s.pmu.Unlock()
}

func TestPromptValidationAdvisory(t *testing.T) {
	s := newTestServer(t)
	c, pid, roomID := promptRoom(t, s)

	numeric := func(v string) error {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("enter a number")
		}
		return nil
	}

	out := ask(context.Background(), s, roomID, pid, game.Prompt{
		Kind:     wire.PromptText,
		Message:  "Place your bet",
		Validate: numeric,
	})
	recvWait(t, c)

	// A rejected value still reaches the driver; the client just gets
	// told about the rejection.
	s.resolvePrompt(c, &wire.PromptResponse{Value: "all of it"})
	m := recvWait(t, c)
	require.Equal(t, "validation_error", m["type"])
	require.Contains(t, m["message"], "number")

	resp := awaitResponse(t, out)
	require.False(t, resp.Cancelled)
	require.Equal(t, "all of it", resp.Value)

	// An accepted value passes silently.
	out = ask(context.Background(), s, roomID, pid, game.Prompt{
		Kind:     wire.PromptText,
		Message:  "Place your bet",
		Validate: numeric,
	})
	recvWait(t, c)
	s.resolvePrompt(c, &wire.PromptResponse{Value: "50"})
	resp = awaitResponse(t, out)
	require.Equal(t, "50", resp.Value)
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame after valid answer: %s", frame)
	default:
	}
}

func TestPromptClientCancel(t *testing.T) {
	s := newTestServer(t)
	c, pid, roomID := promptRoom(t, s)

	out := ask(context.Background(), s, roomID, pid, game.Prompt{Kind: wire.PromptConfirm, Message: "Sure?"})
	recvWait(t, c)
	s.resolvePrompt(c, &wire.PromptResponse{Cancel: true})
	resp := awaitResponse(t, out)
	require.True(t, resp.Cancelled)
}

func TestPromptCancelledOnLeave(t *testing.T) {
	s := newTestServer(t)
	c, pid, roomID := promptRoom(t, s)
	io := &roomIO{s: s, roomID: roomID}

	// A driver woken by the cancellation must observe the departure.
	memberAfter := make(chan bool, 1)
	go func() {
		resp := s.promptPlayer(context.Background(), roomID, pid, game.Prompt{
			Kind:    wire.PromptText,
			Message: "Place your bet",
		})
		if resp.Cancelled {
			memberAfter <- io.Member(pid)
		}
	}()
	recvWait(t, c)

	s.dispatch(c, &wire.RoomLeave{Type: wire.TypeRoomLeave})

	select {
	case still := <-memberAfter:
		require.False(t, still, "membership check must see the post-leave state")
	case <-time.After(2 * time.Second):
		t.Fatal("prompt was not cancelled by the leave")
	}
}

func TestPromptCancelledOnDisconnect(t *testing.T) {
	s := newTestServer(t)
	c, pid, roomID := promptRoom(t, s)

	out := ask(context.Background(), s, roomID, pid, game.Prompt{Kind: wire.PromptText, Message: "Bet"})
	recvWait(t, c)
	s.dropSession(c.id)
	resp := awaitResponse(t, out)
	require.True(t, resp.Cancelled)
}

func TestPromptContextExpiry(t *testing.T) {
	s := newTestServer(t)
	c, pid, roomID := promptRoom(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	out := ask(ctx, s, roomID, pid, game.Prompt{Kind: wire.PromptText, Message: "Bet"})
	recvWait(t, c)
	cancel()
	resp := awaitResponse(t, out)
	require.True(t, resp.Cancelled)

	s.pmu.Lock()
	require.Empty(t, s.prompts, "expired prompt must not leak its sink")
	s.pmu.Unlock()
}

func TestPromptNonMember(t *testing.T) {
	s := newTestServer(t)
	_, pid, roomID := promptRoom(t, s)

	resp := s.promptPlayer(context.Background(), roomID, "nobody", game.Prompt{Kind: wire.PromptText})
	require.True(t, resp.Cancelled)

	resp = s.promptPlayer(context.Background(), "ZZZZZZ", pid, game.Prompt{Kind: wire.PromptText})
	require.True(t, resp.Cancelled)
}

func TestPromptSecondInstallPanics(t *testing.T) {
	s := newTestServer(t)
	c, pid, roomID := promptRoom(t, s)

	out := ask(context.Background(), s, roomID, pid, game.Prompt{Kind: wire.PromptText, Message: "first"})
	recvWait(t, c)

	require.Panics(t, func() {
		s.promptPlayer(context.Background(), roomID, pid, game.Prompt{Kind: wire.PromptText, Message: "second"})
	})

	s.resolvePrompt(c, &wire.PromptResponse{Value: "done"})
	awaitResponse(t, out)
}

func TestPromptResponseUnsolicited(t *testing.T) {
	s := newTestServer(t)
	c, _, _ := promptRoom(t, s)

	// Nothing pending: the answer is dropped on the floor.
	s.resolvePrompt(c, &wire.PromptResponse{Value: "surprise"})
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}
