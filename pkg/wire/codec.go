package wire

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an outbound message to a single-line JSON frame.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// MustEncode is Encode for messages built from plain structs that cannot
// fail to marshal. It panics on error.
func MustEncode(msg any) []byte {
	data, err := Encode(msg)
	if err != nil {
		panic(fmt.Sprintf("wire: encode %T: %v", msg, err))
	}
	return data
}

// envelope is the minimal probe for classifying an inbound frame.
type envelope struct {
	Type *string `json:"type"`
}

// Decode parses one inbound frame into its typed client message. Non-JSON
// input fails. A frame with no "type" field, or a type the vocabulary does
// not know, is classified as a *PromptResponse: prompt answers carry no
// type at all.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var typ string
	if env.Type != nil {
		typ = *env.Type
	}

	switch typ {
	case TypeIdentify:
		return decodeInto(data, &Identify{})
	case TypeRoomList:
		return decodeInto(data, &RoomListRequest{})
	case TypeGameList:
		return decodeInto(data, &GameListRequest{})
	case TypeRoomCreate:
		return decodeInto(data, &RoomCreate{})
	case TypeRoomJoin:
		return decodeInto(data, &RoomJoin{})
	case TypeRoomLeave:
		return decodeInto(data, &RoomLeave{})
	case TypeRoomReady:
		return decodeInto(data, &RoomReady{})
	case TypeRoomStart:
		return decodeInto(data, &RoomStart{})
	default:
		return decodeInto(data, &PromptResponse{})
	}
}

func decodeInto[T any](data []byte, msg *T) (*T, error) {
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	return msg, nil
}
