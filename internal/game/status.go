package game

import (
	"errors"
	"fmt"
)

// Code is the stable status code reported to clients.
type Code int

const (
	CodeOK Code = 0

	// 1xx: related to a game
	CodeGameInProgress  Code = 101
	CodeGameNotStarted  Code = 102
	CodeGameFinished    Code = 103
	CodeSessionNotFound Code = 104
	CodeRoundClosed     Code = 105

	// 2xx: told to a player
	CodeAlreadyAnswered Code = 201
	CodePlayerExists    Code = 202
	CodeNotInSession    Code = 203
	CodeNotCreator      Code = 204

	CodeInternal Code = 500
)

type StatusError struct {
	Code Code
	msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (%d)", e.msg, e.Code)
}

var (
	ErrGameInProgress  = &StatusError{CodeGameInProgress, "game already in progress"}
	ErrGameNotStarted  = &StatusError{CodeGameNotStarted, "game not started yet"}
	ErrGameFinished    = &StatusError{CodeGameFinished, "game already finished"}
	ErrSessionNotFound = &StatusError{CodeSessionNotFound, "session not found"}
	ErrRoundClosed     = &StatusError{CodeRoundClosed, "round is not accepting answers"}
	ErrAlreadyAnswered = &StatusError{CodeAlreadyAnswered, "player has already submitted an answer"}
	ErrPlayerExists    = &StatusError{CodePlayerExists, "player already in the game"}
	ErrNotInSession    = &StatusError{CodeNotInSession, "player is not in game"}
	ErrNotCreator      = &StatusError{CodeNotCreator, "action requires the game creator"}
)

// CodeOf maps an error returned by this package to its status code. A nil
// error is CodeOK; unknown errors are CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}
