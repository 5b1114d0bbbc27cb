package websocket

import "encoding/json"

// Message is an inbound client frame: an action name plus its payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is an outbound frame.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound actions.
const (
	ActionJoinGame = "joinGame"
	ActionMakeMove = "makeMove"
	ActionPassTurn = "passTurn"
	ActionReset    = "resetGame"
	ActionSendChat = "sendChatMessage"
)

type JoinPayload struct {
	RoomID string `json:"room_id"`
}

type MovePayload struct {
	RoomID string `json:"room_id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type ChatPayload struct {
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}
