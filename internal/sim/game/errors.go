package game

import (
	"errors"

	"territory.ai/internal/protocol"
)

var (
	// ErrInvalidNode means a command referenced a node id the board does not have.
	ErrInvalidNode = errors.New("invalid node")
	// ErrValidation covers malformed command input (empty team name, bad battle values).
	ErrValidation = errors.New("validation error")
)

// ErrorCode maps a command error to its wire code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidNode):
		return protocol.ErrInvalidNode
	case errors.Is(err, ErrValidation):
		return protocol.ErrValidation
	default:
		return protocol.ErrInternal
	}
}
