package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/vctt94/cardroom/pkg/client"
	"github.com/vctt94/cardroom/pkg/logging"
	"github.com/vctt94/cardroom/pkg/wire"
)

// Common flags
var (
	serverURL  = flag.String("url", "ws://localhost:3000/ws", "WebSocket endpoint of the card room server")
	playerName = flag.String("name", "ctl", "Display name to identify with")
	debugLevel = flag.String("debug", "", "Debug level for client logging")
	dumpFrames = flag.Bool("dump", false, "Dump streamed frames with go-spew instead of raw JSON")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [global flags] <command> [args]\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  games                            List registered games (JSON)")
		fmt.Fprintln(os.Stderr, "  rooms                            List public rooms (JSON)")
		fmt.Fprintln(os.Stderr, "  create [opts]                    Create a room, print its code, stream frames")
		fmt.Fprintln(os.Stderr, "  join --room CODE [--ready]       Join a room and stream frames")
		fmt.Fprintln(os.Stderr, "  play [--room CODE] [opts]        Join or create, then autoplay rounds")
		fmt.Fprintln(os.Stderr, "\nGlobal flags:")
		flag.PrintDefaults()
	}

	// Suppress default flag errors to avoid noisy usage on subcommands
	flag.CommandLine.SetOutput(io.Discard)
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cmd := flag.Arg(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch cmd {
	case "games":
		if err := handleGames(ctx); err != nil {
			fatalErr(err)
		}

	case "rooms":
		if err := handleRooms(ctx); err != nil {
			fatalErr(err)
		}

	case "create":
		if err := handleCreate(ctx, flag.Args()[1:]); err != nil {
			fatalErr(err)
		}

	case "join":
		if err := handleJoin(ctx, flag.Args()[1:]); err != nil {
			fatalErr(err)
		}

	case "play":
		if err := handlePlay(ctx, flag.Args()[1:]); err != nil {
			fatalErr(err)
		}

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func fatalErr(err error) {
	fatal(err.Error())
}

func dial(ctx context.Context) (*client.Client, error) {
	cfg := client.Config{URL: *serverURL}
	if *debugLevel != "" {
		backend, err := logging.NewLogBackend(logging.LogConfig{DebugLevel: *debugLevel})
		if err != nil {
			return nil, err
		}
		cfg.Log = backend.Logger("CTRL")
	}
	return client.Dial(ctx, cfg)
}

func handleGames(ctx context.Context) error {
	cli, err := dial(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	games, err := cli.ListGames(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(games)
}

func handleRooms(ctx context.Context) error {
	cli, err := dial(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	rooms, err := cli.ListRooms(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rooms)
}

func handleCreate(ctx context.Context, args []string) error {
	// Use sub-FlagSet to avoid global flag confusion
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	roomName := fs.String("room-name", "", "Room display name")
	gameType := fs.String("game", "", "Game type tag")
	private := fs.Bool("private", false, "Hide the room from listings")
	maxPlayers := fs.Int("max-players", 0, "Seat cap (0=game default)")
	minBet := fs.Int64("min-bet", 0, "Minimum bet (0=default)")
	maxBet := fs.Int64("max-bet", 0, "Maximum bet (0=default)")
	deckCount := fs.Int("deck-count", 0, "Packs in the shoe (0=default)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("create: %w", err)
	}

	cli, err := dial(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := cli.Identify(ctx, *playerName); err != nil {
		return err
	}
	joined, err := cli.CreateRoom(ctx, wire.RoomCreate{
		Name:       *roomName,
		IsPrivate:  *private,
		MaxPlayers: *maxPlayers,
		GameType:   *gameType,
		MinBet:     *minBet,
		MaxBet:     *maxBet,
		DeckCount:  *deckCount,
	})
	if err != nil {
		return err
	}
	fmt.Println(joined.Room.ID)

	// The room dies with its last member, so hold the session open.
	return stream(ctx, cli)
}

func handleJoin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	roomCode := fs.String("room", "", "Room code")
	ready := fs.Bool("ready", false, "Mark ready after joining")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	if *roomCode == "" {
		return errors.New("join: --room is required")
	}

	cli, err := dial(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := cli.Identify(ctx, *playerName); err != nil {
		return err
	}
	if _, err := cli.JoinRoom(ctx, *roomCode); err != nil {
		return err
	}
	if *ready {
		if err := cli.SetReady(true); err != nil {
			return err
		}
	}
	return stream(ctx, cli)
}

// stream prints every inbound frame until the session or the context
// dies.
func stream(ctx context.Context, cli *client.Client) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for {
		msg, err := cli.Next(ctx)
		if err != nil {
			if errors.Is(err, client.ErrClosed) {
				return nil
			}
			return err
		}
		if *dumpFrames {
			var decoded map[string]any
			if err := msg.Into(&decoded); err == nil {
				spew.Fdump(os.Stdout, decoded)
				continue
			}
		}
		if err := enc.Encode(msg.Raw); err != nil {
			return err
		}
	}
}
