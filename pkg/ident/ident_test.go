package ident

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRoomIDFormat(t *testing.T) {
	seen := make(map[RoomID]bool)
	for i := 0; i < 200; i++ {
		id := NewRoomID()
		if len(id) != RoomCodeLength {
			t.Fatalf("room id %q has length %d, want %d", id, len(id), RoomCodeLength)
		}
		for _, c := range string(id) {
			if !strings.ContainsRune(RoomCodeAlphabet, c) {
				t.Fatalf("room id %q contains %q outside the alphabet", id, c)
			}
		}
		seen[id] = true
	}
	if len(seen) < 150 {
		t.Fatalf("only %d distinct ids out of 200 mints", len(seen))
	}
}

func TestRoomCodeRejectionSampling(t *testing.T) {
	// The 31-letter alphabet leaves 256%31 = 8 unusable byte values:
	// 248..255 must be redrawn, not wrapped onto '2'..'9'. 247 is the
	// largest acceptable byte and maps to the last letter.
	in := []byte{255, 248, 247, 0, 30, 62, 1, 2, 3, 9, 9, 9}
	id, err := roomCodeFrom(bytes.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if id != "Z2Z234" {
		t.Fatalf("roomCodeFrom = %q, want %q", id, "Z2Z234")
	}
}

func TestRoomCodeEntropyError(t *testing.T) {
	if id, err := roomCodeFrom(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatalf("exhausted entropy source minted %q, want error", id)
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    RoomID
		wantErr bool
	}{
		{"lower case accepted", "abc234", "ABC234", false},
		{"already canonical", "QRS678", "QRS678", false},
		{"surrounding whitespace trimmed", "  qrs678\t", "QRS678", false},
		{"ambiguous zero rejected", "ABC01D", "", true},
		{"ambiguous letter I rejected", "ABCIDE", "", true},
		{"too short", "ABC23", "", true},
		{"too long", "ABC2345", "", true},
		{"empty", "", "", true},
		{"interior whitespace rejected", "ABC 23", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRoomCode(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeRoomCode(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeRoomCode(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeRoomCode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeRoomCodeIdempotent(t *testing.T) {
	code, err := NormalizeRoomCode("abc234")
	if err != nil {
		t.Fatal(err)
	}
	again, err := NormalizeRoomCode(string(code))
	if err != nil {
		t.Fatal(err)
	}
	if again != code {
		t.Fatalf("normalize not idempotent: %q then %q", code, again)
	}
}

func TestMintedIDsAreUnique(t *testing.T) {
	if NewPlayerID() == NewPlayerID() {
		t.Fatal("two player ids collided")
	}
	if NewSessionID() == NewSessionID() {
		t.Fatal("two session ids collided")
	}
	if NewHandID() == NewHandID() {
		t.Fatal("two hand ids collided")
	}
}
