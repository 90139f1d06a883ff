package server

import (
	"tafl-server/internal/store"
	"tafl-server/internal/tafl"
)

// ClientMessage is the inbound envelope. One type discriminator, flat fields;
// unused fields are simply absent for a given type.
//
//	join_game   {type, gameId, userId}
//	make_move   {type, gameId, move}
//	send_chat   {type, gameId, message}
//	resign_game {type, gameId, userId}
type ClientMessage struct {
	Type    string       `json:"type"`
	GameID  string       `json:"gameId,omitempty"`
	UserID  string       `json:"userId,omitempty"`
	Message string       `json:"message,omitempty"`
	Move    *MovePayload `json:"move,omitempty"`
}

type MovePayload struct {
	From  tafl.Position `json:"from"`
	To    tafl.Position `json:"to"`
	Piece tafl.Piece    `json:"piece,omitempty"`
}

// ServerMessage is the outbound envelope. The Message field carries a chat
// message object for chat_message and a plain string for error, matching the
// client protocol.
type ServerMessage struct {
	Type     string              `json:"type"`
	Game     *store.GameState    `json:"game,omitempty"`
	Message  any                 `json:"message,omitempty"`
	Messages []store.ChatMessage `json:"messages,omitempty"`
}

func gameUpdateMessage(game *store.GameState) ServerMessage {
	return ServerMessage{Type: "game_update", Game: game}
}

func chatMessageEvent(msg *store.ChatMessage) ServerMessage {
	return ServerMessage{Type: "chat_message", Message: msg}
}

func chatHistoryMessage(msgs []store.ChatMessage) ServerMessage {
	if msgs == nil {
		msgs = []store.ChatMessage{}
	}
	return ServerMessage{Type: "chat_history", Messages: msgs}
}

func errorMessage(text string) ServerMessage {
	return ServerMessage{Type: "error", Message: text}
}
