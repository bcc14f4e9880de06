package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Specific failures wrap one of these so transports can map
// them to protocol codes without string matching.
var (
	// ErrNotFound is returned when a session, player, quiz or question is absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition is returned when an action is illegal for the current state.
	ErrInvalidTransition = errors.New("action cannot be applied in the current state")
	// ErrValidation is returned for malformed or out-of-order input.
	ErrValidation = errors.New("invalid input")
	// ErrPermissionDenied is returned when a session does not belong to the invoking quiz.
	ErrPermissionDenied = errors.New("permission denied")
)

// Frequently tested specific failures.
var (
	ErrSessionNotFound  = fmt.Errorf("quiz session %w", ErrNotFound)
	ErrPlayerNotFound   = fmt.Errorf("player %w", ErrNotFound)
	ErrQuizNotFound     = fmt.Errorf("quiz %w", ErrNotFound)
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
)
