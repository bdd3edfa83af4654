// Package protocol defines the WebSocket message protocol between chess
// clients and the relay.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/Feddakalkun/chess-platform/internal/adapter/rules"
	"github.com/Feddakalkun/chess-platform/internal/domain"
)

// Message types from client to relay
const (
	TypeCreateGame   = "create_game"
	TypeJoinGame     = "join_game"
	TypeMakeMove     = "make_move"
	TypeResign       = "resign"
	TypeOfferDraw    = "offer_draw"
	TypeAcceptDraw   = "accept_draw"
	TypeDeclineDraw  = "decline_draw"
	TypeGetGameState = "get_game_state"
)

// Message types from relay to client. Pushed events use the domain event
// type names (game_start, move_made, draw_offered, draw_declined, game_over).
const (
	TypeGameCreated  = "game_created"
	TypeGameJoined   = "game_joined"
	TypeMoveAccepted = "move_accepted"
	TypeGameState    = "game_state"
	TypeAck          = "ack"
	TypeError        = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Reply returns the base of a response of type typ to b.
func (b BaseMessage) Reply(typ string, sessionID string) BaseMessage {
	if sessionID == "" {
		sessionID = b.SessionID
	}
	return BaseMessage{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		RequestID: b.RequestID,
		SessionID: sessionID,
	}
}

// CreateGameMessage asks the relay to open a new game.
type CreateGameMessage struct {
	BaseMessage
	PlayerName string            `json:"player_name,omitempty"`
	Config     domain.GameConfig `json:"config"`
}

// JoinGameMessage joins the game named by session_id.
type JoinGameMessage struct {
	BaseMessage
	PlayerName string `json:"player_name,omitempty"`
}

// MakeMoveMessage submits a move. Move is either a SAN string ("Nf3") or an
// object {"from":"g1","to":"f3","promotion":"q"}.
type MakeMoveMessage struct {
	BaseMessage
	Move json.RawMessage `json:"move"`
}

// ErrInvalidMove is returned by DecodeMove for payloads that are neither form.
var ErrInvalidMove = errors.New("move must be a SAN string or an object with from and to")

// DecodeMove parses the move field of a make_move message.
func DecodeMove(raw json.RawMessage) (rules.Move, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return rules.Move{}, ErrInvalidMove
	}

	if raw[0] == '"' {
		var san string
		if err := json.Unmarshal(raw, &san); err != nil || san == "" {
			return rules.Move{}, ErrInvalidMove
		}
		return rules.Move{SAN: san}, nil
	}

	var mv rules.Move
	if err := json.Unmarshal(raw, &mv); err != nil {
		return rules.Move{}, ErrInvalidMove
	}
	if (mv.From == "" || mv.To == "") && mv.SAN == "" {
		return rules.Move{}, ErrInvalidMove
	}
	return mv, nil
}

// GameCreatedMessage answers create_game.
type GameCreatedMessage struct {
	BaseMessage
	Side          domain.Side          `json:"side"`
	Config        domain.GameConfig    `json:"config"`
	StartPosition domain.StartPosition `json:"start_position"`
}

// GameJoinedMessage answers join_game with the caller's role and a snapshot.
type GameJoinedMessage struct {
	BaseMessage
	Role  domain.Role     `json:"role"`
	State domain.Snapshot `json:"state"`
}

// MoveAcceptedMessage confirms a move to its mover.
type MoveAcceptedMessage struct {
	BaseMessage
	Move     rules.Applied   `json:"move"`
	FEN      string          `json:"fen"`
	Turn     domain.Side     `json:"turn"`
	Clocks   domain.Clocks   `json:"clocks"`
	Ply      int             `json:"ply"`
	GameOver bool            `json:"game_over"`
	Result   *domain.Outcome `json:"result,omitempty"`
}

// GameStateMessage answers get_game_state.
type GameStateMessage struct {
	BaseMessage
	State domain.Snapshot `json:"state"`
}

// AckMessage answers requests whose effects arrive as events.
type AckMessage struct {
	BaseMessage
}

// ErrorMessage is sent by the relay when a request fails. Code is one of the
// domain error codes.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventMessage carries a pushed event.
type EventMessage struct {
	BaseMessage
	Data any `json:"data"`
}

// EncodeEvent renders ev as it is written to the wire.
func EncodeEvent(ev domain.Event) ([]byte, error) {
	return json.Marshal(EventMessage{
		BaseMessage: BaseMessage{
			Type:      string(ev.Type),
			Ts:        time.Now().UnixMilli(),
			SessionID: ev.SessionID,
		},
		Data: ev.Payload,
	})
}
