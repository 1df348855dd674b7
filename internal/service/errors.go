package service

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/docchat/internal/graph"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// TurnError reports a failed turn. Nothing was committed for it.
type TurnError struct {
	ThreadID string
	Step     graph.Step // empty when the turn failed before the graph ran
	Err      error
}

func (e *TurnError) Error() string {
	switch {
	case e.ThreadID == "":
		return fmt.Sprintf("turn: %v", e.Err)
	case e.Step == "":
		return fmt.Sprintf("turn %s: %v", e.ThreadID, e.Err)
	default:
		return fmt.Sprintf("turn %s at %s: %v", e.ThreadID, e.Step, e.Err)
	}
}

func (e *TurnError) Unwrap() error {
	return e.Err
}
