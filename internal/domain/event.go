package domain

import "github.com/Feddakalkun/chess-platform/internal/adapter/rules"

// Event is a push notification for the members of a session's room.
type Event struct {
	Type      EventType
	SessionID string
	// Recipients are the connection ids to deliver to, resolved while the
	// session lock was held.
	Recipients []string
	Payload    any
}

// Clocks are the remaining times in milliseconds at the last debit.
type Clocks struct {
	White int64 `json:"white"`
	Black int64 `json:"black"`
}

// MoveMadePayload is the incremental delta sent after an accepted move.
type MoveMadePayload struct {
	Move   rules.Applied `json:"move"`
	FEN    string        `json:"fen"`
	Turn   Side          `json:"turn"`
	Clocks Clocks        `json:"clocks"`
	Ply    int           `json:"ply"`
}

// DrawPayload names the side that offered or declined a draw.
type DrawPayload struct {
	By Side `json:"by"`
}

// Players are the display states of both sides.
type Players struct {
	White *Participant `json:"white"`
	Black *Participant `json:"black"`
}

// Snapshot is a self-sufficient description of a session's current state.
type Snapshot struct {
	ID            string        `json:"id"`
	FEN           string        `json:"fen"`
	PGN           string        `json:"pgn"`
	Turn          Side          `json:"turn"`
	Phase         Phase         `json:"phase"`
	MoveHistory   []MoveRecord  `json:"move_history"`
	Players       Players       `json:"players"`
	Observers     int           `json:"observers"`
	Config        GameConfig    `json:"config"`
	StartPosition StartPosition `json:"start_position"`
	Clocks        Clocks        `json:"clocks"`
	ClockRunning  *Side         `json:"clock_running"`
	GameOver      bool          `json:"game_over"`
	Result        *Outcome      `json:"result"`
	DrawOfferedBy *Side         `json:"draw_offered_by"`
	InCheck       bool          `json:"in_check"`
	IsCheckmate   bool          `json:"is_checkmate"`
	IsDraw        bool          `json:"is_draw"`
	IsStalemate   bool          `json:"is_stalemate"`
	ServerTime    int64         `json:"server_time"`
}
