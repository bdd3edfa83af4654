package domain

import "errors"

// ErrorCode is a stable, machine-checkable error category surfaced to callers.
type ErrorCode string

const (
	CodeGameNotFound     ErrorCode = "GameNotFound"
	CodeGameIsFull       ErrorCode = "GameIsFull"
	CodeGameOver         ErrorCode = "GameOver"
	CodeNotYourTurn      ErrorCode = "NotYourTurn"
	CodeIllegalMove      ErrorCode = "IllegalMove"
	CodeTimeRanOut       ErrorCode = "TimeRanOut"
	CodeRoomCodeRequired ErrorCode = "RoomCodeRequired"
	CodeGameNotStarted   ErrorCode = "GameNotStarted"
	CodeNotAParticipant  ErrorCode = "NotAParticipant"
	CodeNoDrawOffer      ErrorCode = "NoDrawOffer"
	CodeInvalidConfig    ErrorCode = "InvalidConfig"
	CodePolicyDenied     ErrorCode = "PolicyDenied"
	CodeNoCapacity       ErrorCode = "NoCapacity"
	CodeInvalidMessage   ErrorCode = "InvalidMessage"
	CodeInternal         ErrorCode = "InternalError"
)

// Error is a domain error with a stable code.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrGameNotFound     = &Error{Code: CodeGameNotFound, Message: "Game not found"}
	ErrGameIsFull       = &Error{Code: CodeGameIsFull, Message: "Game is full"}
	ErrGameOver         = &Error{Code: CodeGameOver, Message: "Game is over"}
	ErrNotYourTurn      = &Error{Code: CodeNotYourTurn, Message: "Not your turn"}
	ErrIllegalMove      = &Error{Code: CodeIllegalMove, Message: "Illegal move"}
	ErrTimeRanOut       = &Error{Code: CodeTimeRanOut, Message: "Time ran out"}
	ErrRoomCodeRequired = &Error{Code: CodeRoomCodeRequired, Message: "Room code required"}
	ErrGameNotStarted   = &Error{Code: CodeGameNotStarted, Message: "Waiting for an opponent"}
	ErrNotAParticipant  = &Error{Code: CodeNotAParticipant, Message: "Not a participant"}
	ErrNoDrawOffer      = &Error{Code: CodeNoDrawOffer, Message: "No draw offer to answer"}
	ErrInvalidConfig    = &Error{Code: CodeInvalidConfig, Message: "Invalid game configuration"}
	ErrPolicyDenied     = &Error{Code: CodePolicyDenied, Message: "Game configuration not allowed"}
	ErrNoCapacity       = &Error{Code: CodeNoCapacity, Message: "No free room codes"}
)

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
