// Package ident defines the typed identifiers shared across the server and
// the room-code format players type in by hand.
package ident

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// PlayerID identifies an identified player. A fresh one is minted every
// identify, so it is stable for the life of one session at most.
type PlayerID string

// SessionID identifies one connection from open to close.
type SessionID string

// RoomID is a human-enterable room code.
type RoomID string

// HandID distinguishes a primary hand from a split hand derived from it.
type HandID string

const (
	// DealerID is the reserved sentinel for the house dealer.
	DealerID PlayerID = "dealer"

	// DealerName is the reserved display name. Identify rejects it
	// case-insensitively.
	DealerName = "Dealer"
)

// RoomCodeAlphabet omits glyphs that read ambiguously when spoken or
// scribbled down (0/O, 1/I/L).
const RoomCodeAlphabet = "23456789ABCDEFGHKLMNPQRSTUVWXYZ"

// RoomCodeLength is the fixed length of a room code.
const RoomCodeLength = 6

var roomCodeRE = regexp.MustCompile("^[" + RoomCodeAlphabet + "]{" + fmt.Sprint(RoomCodeLength) + "}$")

// NewPlayerID mints a player id.
func NewPlayerID() PlayerID { return PlayerID(uuid.NewString()) }

// NewSessionID mints a session id.
func NewSessionID() SessionID { return SessionID(uuid.NewString()) }

// NewHandID mints a hand id.
func NewHandID() HandID { return HandID(uuid.NewString()) }

// NewRoomID generates a crypto-random room code. Collision checking against
// live rooms is the caller's job.
func NewRoomID() RoomID {
	id, err := roomCodeFrom(rand.Reader)
	if err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return id
}

// roomCodeFrom draws alphabet indices from r by rejection sampling: 256 is
// not a multiple of the alphabet size, so bytes past the last full multiple
// are redrawn instead of wrapped onto the low letters.
func roomCodeFrom(r io.Reader) (RoomID, error) {
	const max = byte(255 - (256 % len(RoomCodeAlphabet)))

	out := make([]byte, 0, RoomCodeLength)
	buf := make([]byte, RoomCodeLength*2)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b > max {
				continue
			}
			out = append(out, RoomCodeAlphabet[int(b)%len(RoomCodeAlphabet)])
			if len(out) == RoomCodeLength {
				return RoomID(out), nil
			}
		}
	}
}

// NormalizeRoomCode canonicalizes user input into a RoomID: surrounding
// whitespace is trimmed, letters are upper-cased, and the result must match
// the room-code alphabet exactly.
func NormalizeRoomCode(s string) (RoomID, error) {
	code := strings.ToUpper(strings.TrimSpace(s))
	if !roomCodeRE.MatchString(code) {
		return "", fmt.Errorf("invalid room code %q", s)
	}
	return RoomID(code), nil
}
