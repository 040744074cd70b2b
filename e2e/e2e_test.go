// This file contains end-to-end tests that spin up a full card room server
// and drive it through real WebSocket clients. The tests exercise realistic
// lobby and gameplay flows with minimal mocking (only the listener is
// in-process via httptest).
//
// To keep the tests self-contained and independent they **must** be executed
// with `go test ./...` and **should not** depend on external resources.

package e2e

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vctt94/cardroom/pkg/blackjack"
	"github.com/vctt94/cardroom/pkg/client"
	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/server"
	"github.com/vctt94/cardroom/pkg/wire"
)

// testEnv holds the runtime components that make up a fully functional
// card room server instance. Each E2E test spins up its own env so tests
// are completely isolated and can run in parallel.
type testEnv struct {
	t   *testing.T
	srv *server.Server
	ts  *httptest.Server
	url string
}

// newTestEnv creates, starts and returns a ready-to-use environment. The
// shoe RNG is seeded so gameplay is reproducible.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := game.NewRegistry()
	require.NoError(t, reg.Register(blackjack.NewFactory()))

	srv := server.NewServer(reg, server.Config{Seed: 1})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown()
		ts.Close()
	})

	return &testEnv{
		t:   t,
		srv: srv,
		ts:  ts,
		url: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (e *testEnv) dial(hook client.PromptFunc) *client.Client {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := client.Dial(ctx, client.Config{URL: e.url, OnPrompt: hook})
	require.NoError(e.t, err)
	e.t.Cleanup(func() { c.Close() })
	return c
}

// player dials and identifies in one step.
func (e *testEnv) player(ctx context.Context, name string, hook client.PromptFunc) *client.Client {
	e.t.Helper()
	c := e.dial(hook)
	require.NoError(e.t, c.Identify(ctx, name))
	return c
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// nextPlayers requires the next inbound frame to be a membership broadcast
// and returns its player list. Used where the exact frame order matters.
func nextPlayers(ctx context.Context, t *testing.T, c *client.Client) []wire.RoomPlayerInfo {
	t.Helper()
	msg, err := c.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, wire.TypeRoomPlayers, msg.Type)
	var rp wire.RoomPlayers
	require.NoError(t, msg.Into(&rp))
	return rp.Players
}

// TestCreateAndJoinSequence walks the canonical two-session lobby exchange
// and checks every frame a client observes, in order.
func TestCreateAndJoinSequence(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := testCtx(t)

	alice := env.dial(nil)
	require.NotEmpty(t, alice.SessionID)

	require.NoError(t, alice.Identify(ctx, "Alice"))
	require.NotEmpty(t, alice.PlayerID)
	assert.Equal(t, "Alice", alice.Name)

	joined, err := alice.CreateRoom(ctx, wire.RoomCreate{})
	require.NoError(t, err)
	require.True(t, joined.IsHost)
	room := joined.Room
	assert.Equal(t, "Alice's Room", room.Name)
	assert.Equal(t, 1, room.PlayerCount)
	assert.Equal(t, 6, room.MaxPlayers)
	assert.False(t, room.IsPrivate)
	assert.False(t, room.IsPlaying)
	assert.Equal(t, "blackjack", room.GameType)

	// The membership broadcast follows the join confirmation directly.
	players := nextPlayers(ctx, t, alice)
	require.Len(t, players, 1)
	assert.Equal(t, alice.PlayerID, players[0].PlayerID)
	assert.Equal(t, "Alice", players[0].Name)
	assert.False(t, players[0].IsReady)
	assert.True(t, players[0].IsHost)

	bob := env.player(ctx, "Bob", nil)
	got, err := bob.JoinRoom(ctx, string(room.ID))
	require.NoError(t, err)
	require.False(t, got.IsHost)
	assert.Equal(t, 2, got.Room.PlayerCount)

	// Both sessions now see the two members in join order.
	for _, c := range []*client.Client{alice, bob} {
		players := nextPlayers(ctx, t, c)
		require.Len(t, players, 2)
		assert.Equal(t, "Alice", players[0].Name)
		assert.True(t, players[0].IsHost)
		assert.Equal(t, "Bob", players[1].Name)
		assert.False(t, players[1].IsHost)
	}
}

// TestHostSuccession leaves the host out of a three-member room and checks
// the remaining members observe the departure and the new host in order.
func TestHostSuccession(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := testCtx(t)

	alice := env.player(ctx, "Alice", nil)
	joined, err := alice.CreateRoom(ctx, wire.RoomCreate{})
	require.NoError(t, err)
	code := string(joined.Room.ID)

	bob := env.player(ctx, "Bob", nil)
	_, err = bob.JoinRoom(ctx, code)
	require.NoError(t, err)

	carol := env.player(ctx, "Carol", nil)
	_, err = carol.JoinRoom(ctx, code)
	require.NoError(t, err)

	// Drain the membership broadcasts each session has seen so far: the
	// creator saw all three, each joiner their own plus later ones.
	for i := 0; i < 3; i++ {
		nextPlayers(ctx, t, alice)
	}
	for i := 0; i < 2; i++ {
		nextPlayers(ctx, t, bob)
	}
	nextPlayers(ctx, t, carol)

	require.NoError(t, alice.LeaveRoom(ctx))

	for _, c := range []*client.Client{bob, carol} {
		msg, err := c.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, wire.TypePlayerLeft, msg.Type)
		var left wire.PlayerLeft
		require.NoError(t, msg.Into(&left))
		assert.Equal(t, alice.PlayerID, left.PlayerID)
		assert.Equal(t, "Alice", left.PlayerName)

		players := nextPlayers(ctx, t, c)
		require.Len(t, players, 2)
		assert.Equal(t, "Bob", players[0].Name)
		assert.True(t, players[0].IsHost, "oldest remaining member becomes host")
		assert.Equal(t, "Carol", players[1].Name)
		assert.False(t, players[1].IsHost)
	}
}

// TestDisconnectDuringBetPrompt kills a socket while its bet prompt is
// outstanding. The game must move on to the next seat, not end.
func TestDisconnectDuringBetPrompt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := testCtx(t)

	alice := env.player(ctx, "Alice", nil)
	joined, err := alice.CreateRoom(ctx, wire.RoomCreate{})
	require.NoError(t, err)

	bob := env.player(ctx, "Bob", nil)
	_, err = bob.JoinRoom(ctx, string(joined.Room.ID))
	require.NoError(t, err)

	require.NoError(t, alice.SetReady(true))
	require.NoError(t, bob.SetReady(true))
	require.NoError(t, alice.StartGame())

	_, err = bob.WaitFor(ctx, wire.TypeGameStarting)
	require.NoError(t, err)

	// Seats run in join order, so the first bet prompt is Alice's.
	msg, err := alice.WaitFor(ctx, wire.TypePrompt)
	require.NoError(t, err)
	var p wire.Prompt
	require.NoError(t, msg.Into(&p))
	assert.Equal(t, wire.PromptText, p.PromptType)
	assert.Contains(t, p.Message, "Alice")

	// Alice's socket dies mid-prompt. The router cancels her sink, the
	// room removes her, and the driver moves on to Bob.
	alice.Abort()

	msg, err = bob.WaitFor(ctx, wire.TypePlayerLeft)
	require.NoError(t, err)
	var left wire.PlayerLeft
	require.NoError(t, msg.Into(&left))
	assert.Equal(t, "Alice", left.PlayerName)

	msg, err = bob.WaitFor(ctx, wire.TypePrompt)
	require.NoError(t, err)
	require.NoError(t, msg.Into(&p))
	assert.Equal(t, wire.PromptText, p.PromptType)
	assert.Contains(t, p.Message, "Bob")
}

// autoAnswer plays any prompt a blackjack round can produce: flat bets,
// stand on every turn, and decline another round.
func autoAnswer(p wire.Prompt) (any, bool) {
	switch p.PromptType {
	case wire.PromptText:
		return "10", true
	case wire.PromptSelect:
		for _, o := range p.Options {
			if o.Value == "new_round" {
				return "quit", true
			}
		}
		for _, o := range p.Options {
			if o.Value == "stand" {
				return "stand", true
			}
		}
		if len(p.Options) > 0 {
			return p.Options[0].Value, true
		}
	case wire.PromptConfirm:
		return false, true
	}
	return nil, false
}

// TestSeededRoundToCompletion plays one full two-player round over real
// sockets and checks the round summary, the final standings, and the
// post-game readiness reset.
func TestSeededRoundToCompletion(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := testCtx(t)

	alice := env.player(ctx, "Alice", autoAnswer)
	joined, err := alice.CreateRoom(ctx, wire.RoomCreate{})
	require.NoError(t, err)

	bob := env.player(ctx, "Bob", autoAnswer)
	_, err = bob.JoinRoom(ctx, string(joined.Room.ID))
	require.NoError(t, err)

	require.NoError(t, alice.SetReady(true))
	require.NoError(t, bob.SetReady(true))
	_, err = alice.WaitFor(ctx, wire.TypeRoomReadyToStart)
	require.NoError(t, err)

	require.NoError(t, alice.StartGame())
	_, err = alice.WaitFor(ctx, wire.TypeGameStarting)
	require.NoError(t, err)

	// The hooks answer every bet, every turn, and the host's round-over
	// prompt, so the round runs to its natural end.
	msg, err := alice.WaitFor(ctx, wire.TypeNote)
	require.NoError(t, err)
	var note wire.Notice
	require.NoError(t, msg.Into(&note))
	assert.Equal(t, "Round Results", note.Title)

	msg, err = alice.WaitFor(ctx, wire.TypeNote)
	require.NoError(t, err)
	require.NoError(t, msg.Into(&note))
	assert.Equal(t, "Final Standings", note.Title)

	for _, c := range []*client.Client{alice, bob} {
		_, err = c.WaitFor(ctx, wire.TypeGameEnded)
		require.NoError(t, err)

		msg, err := c.WaitFor(ctx, wire.TypeRoomPlayers)
		require.NoError(t, err)
		var rp wire.RoomPlayers
		require.NoError(t, msg.Into(&rp))
		require.Len(t, rp.Players, 2)
		for _, pl := range rp.Players {
			assert.False(t, pl.IsReady, "readiness resets when the game ends")
		}
	}
}

// TestShutdownFarewell checks every session gets a disconnected frame and
// a clean close when the server shuts down.
func TestShutdownFarewell(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ctx := testCtx(t)

	alice := env.player(ctx, "Alice", nil)
	joined, err := alice.CreateRoom(ctx, wire.RoomCreate{})
	require.NoError(t, err)

	bob := env.player(ctx, "Bob", nil)
	_, err = bob.JoinRoom(ctx, string(joined.Room.ID))
	require.NoError(t, err)

	env.srv.Shutdown()

	for _, c := range []*client.Client{alice, bob} {
		sawFarewell := false
		for {
			msg, err := c.Next(ctx)
			if err != nil {
				require.ErrorIs(t, err, client.ErrClosed)
				break
			}
			if msg.Type == wire.TypeDisconnected {
				sawFarewell = true
			}
		}
		assert.True(t, sawFarewell, "expected a disconnected farewell before the close")
	}
}
