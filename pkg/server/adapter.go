package server

import (
	"context"

	"github.com/vctt94/cardroom/pkg/game"
	"github.com/vctt94/cardroom/pkg/ident"
)

// roomIO is the game.RoomIO handed to a driver, binding it to one room.
// Every call goes through the server, so membership and host facts are
// read fresh and serialize behind the room manager's own handlers.
type roomIO struct {
	s      *Server
	roomID ident.RoomID
}

var _ game.RoomIO = (*roomIO)(nil)

func (io *roomIO) Broadcast(msg any) {
	io.s.broadcastRoom(io.roomID, msg)
}

func (io *roomIO) Prompt(ctx context.Context, id ident.PlayerID, p game.Prompt) game.Response {
	return io.s.promptPlayer(ctx, io.roomID, id, p)
}

func (io *roomIO) Member(id ident.PlayerID) bool {
	io.s.mu.RLock()
	defer io.s.mu.RUnlock()
	return io.s.playerRooms[id] == io.roomID
}

func (io *roomIO) Host() ident.PlayerID {
	io.s.mu.RLock()
	defer io.s.mu.RUnlock()
	if r, ok := io.s.rooms[io.roomID]; ok {
		return r.hostID
	}
	return ""
}
