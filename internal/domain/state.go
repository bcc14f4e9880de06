package domain

import "fmt"

// SessionState is one step of the fixed session lifecycle.
//
//	LOBBY: players can join, nothing has started
//	QUESTION_COUNTDOWN: short countdown before a question opens
//	QUESTION_OPEN: players see the question and may submit answers
//	QUESTION_CLOSE: question visible, submissions rejected
//	ANSWER_SHOW: correct answers and per-question results visible
//	FINAL_RESULTS: overall ranking visible
//	END: terminal, session inactive
type SessionState string

const (
	StateLobby             SessionState = "LOBBY"
	StateQuestionCountdown SessionState = "QUESTION_COUNTDOWN"
	StateQuestionOpen      SessionState = "QUESTION_OPEN"
	StateQuestionClose     SessionState = "QUESTION_CLOSE"
	StateAnswerShow        SessionState = "ANSWER_SHOW"
	StateFinalResults      SessionState = "FINAL_RESULTS"
	StateEnd               SessionState = "END"
)

// SessionAction is a host-driven (or timer-driven) lifecycle transition.
type SessionAction string

const (
	ActionNextQuestion     SessionAction = "NEXT_QUESTION"
	ActionSkipCountdown    SessionAction = "SKIP_COUNTDOWN"
	ActionGoToAnswer       SessionAction = "GO_TO_ANSWER"
	ActionGoToFinalResults SessionAction = "GO_TO_FINAL_RESULTS"
	ActionEnd              SessionAction = "END"
	// ActionCloseQuestion is normally fired by the question timer rather
	// than a host, but remains a valid action for manual use.
	ActionCloseQuestion SessionAction = "CLOSE_QUESTION"
)

// ParseAction validates a wire-level action string.
func ParseAction(raw string) (SessionAction, error) {
	switch a := SessionAction(raw); a {
	case ActionNextQuestion, ActionSkipCountdown, ActionGoToAnswer,
		ActionGoToFinalResults, ActionEnd, ActionCloseQuestion:
		return a, nil
	}
	return "", fmt.Errorf("%q is not a valid action: %w", raw, ErrValidation)
}
