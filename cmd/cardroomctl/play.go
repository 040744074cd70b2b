package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vctt94/cardroom/pkg/client"
	"github.com/vctt94/cardroom/pkg/wire"
)

// strategy is the fixed autoplay policy: bet a flat amount, hit below 17,
// stand otherwise, and quit once the configured number of rounds is done.
type strategy struct {
	bet    int64
	chips  int64
	value  int
	rounds int
}

func (s *strategy) answer(p wire.Prompt) (any, bool) {
	switch p.PromptType {
	case wire.PromptText:
		bet := s.bet
		if s.chips > 0 && bet > s.chips {
			bet = s.chips
		}
		return bet, true
	case wire.PromptSelect:
		if hasOption(p.Options, "new_round") {
			s.rounds--
			if s.rounds > 0 {
				return "new_round", true
			}
			return "quit", true
		}
		if hasOption(p.Options, "hit") && s.value < 17 {
			return "hit", true
		}
		if hasOption(p.Options, "stand") {
			return "stand", true
		}
		if len(p.Options) > 0 {
			return p.Options[0].Value, true
		}
	case wire.PromptConfirm:
		return false, true
	}
	return nil, false
}

func hasOption(opts []wire.SelectOption, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

func handlePlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	roomCode := fs.String("room", "", "Room code to join (empty creates a fresh room)")
	bet := fs.Int64("bet", 10, "Flat bet per round")
	rounds := fs.Int("rounds", 1, "Rounds to play before quitting")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 4*time.Minute)
	defer cancel()

	cli, err := dial(ctx)
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := cli.Identify(ctx, *playerName); err != nil {
		return err
	}

	var joined wire.RoomJoined
	if *roomCode != "" {
		joined, err = cli.JoinRoom(ctx, *roomCode)
	} else {
		joined, err = cli.CreateRoom(ctx, wire.RoomCreate{})
	}
	if err != nil {
		return err
	}
	fmt.Println(joined.Room.ID)

	if err := cli.SetReady(true); err != nil {
		return err
	}
	if joined.IsHost {
		if err := cli.StartGame(); err != nil {
			return err
		}
	}

	// Answer prompts from the frame loop so the tracked chips and hand
	// value are current when the answer is chosen.
	strat := &strategy{bet: *bet, rounds: *rounds}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for {
		msg, err := cli.Next(ctx)
		if err != nil {
			if errors.Is(err, client.ErrClosed) {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return errors.New("autoplay timeout")
			}
			return err
		}
		if err := enc.Encode(msg.Raw); err != nil {
			return err
		}

		switch msg.Type {
		case wire.TypeGameState:
			var st wire.GameState
			if err := msg.Into(&st); err != nil {
				continue
			}
			for _, pv := range st.Players {
				if pv.PlayerID == cli.PlayerID {
					strat.chips = pv.Chips
					strat.value = pv.HandValue
				}
			}

		case wire.TypePrompt:
			var p wire.Prompt
			if err := msg.Into(&p); err != nil {
				continue
			}
			if v, ok := strat.answer(p); ok {
				if err := cli.Respond(v); err != nil {
					return err
				}
			}

		case wire.TypeGameEnded:
			return cli.LeaveRoom(ctx)
		}
	}
}
