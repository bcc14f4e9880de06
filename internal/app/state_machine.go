package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"quiz-session-service/internal/domain"
)

// countdownDuration is how long QUESTION_COUNTDOWN lasts before the question
// opens automatically.
const countdownDuration = 3 * time.Second

// Scheduler defers a callback. Implementations must run fn asynchronously;
// the engine arms timers while holding the session lock.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// applyLocked dispatches one lifecycle action. Callers hold s.mu.
func (svc *SessionService) applyLocked(s *Session, action domain.SessionAction) error {
	switch action {
	case domain.ActionNextQuestion:
		return svc.nextQuestionLocked(s)
	case domain.ActionSkipCountdown:
		return svc.skipCountdownLocked(s)
	case domain.ActionCloseQuestion:
		return svc.closeQuestionLocked(s)
	case domain.ActionGoToAnswer:
		return goToAnswerLocked(s)
	case domain.ActionGoToFinalResults:
		return goToFinalResultsLocked(s)
	case domain.ActionEnd:
		return endLocked(s)
	default:
		return fmt.Errorf("%q is not a valid action: %w", action, domain.ErrValidation)
	}
}

func (svc *SessionService) nextQuestionLocked(s *Session) error {
	switch s.state {
	case domain.StateLobby, domain.StateQuestionClose, domain.StateAnswerShow:
	default:
		return invalidTransition(s.state, domain.ActionNextQuestion)
	}

	// Already at the last question: stay put without erroring.
	if s.atQuestion+1 > len(s.metadata.Questions) {
		return nil
	}

	s.state = domain.StateQuestionCountdown
	s.atQuestion++
	svc.scheduleTransition(s.id, domain.StateQuestionCountdown, domain.ActionSkipCountdown, countdownDuration)
	return nil
}

func (svc *SessionService) skipCountdownLocked(s *Session) error {
	if s.state != domain.StateQuestionCountdown {
		return invalidTransition(s.state, domain.ActionSkipCountdown)
	}

	s.state = domain.StateQuestionOpen
	s.openTime[s.atQuestion] = s.now()
	question := s.metadata.Questions[s.atQuestion-1]
	svc.scheduleTransition(s.id, domain.StateQuestionOpen, domain.ActionCloseQuestion, time.Duration(question.Duration)*time.Second)
	return nil
}

func (svc *SessionService) closeQuestionLocked(s *Session) error {
	if s.state != domain.StateQuestionOpen {
		return invalidTransition(s.state, domain.ActionCloseQuestion)
	}
	scoreCurrentQuestionLocked(s)
	s.state = domain.StateQuestionClose
	return nil
}

func goToAnswerLocked(s *Session) error {
	if s.state != domain.StateQuestionOpen && s.state != domain.StateQuestionClose {
		return invalidTransition(s.state, domain.ActionGoToAnswer)
	}
	scoreCurrentQuestionLocked(s)
	s.state = domain.StateAnswerShow
	return nil
}

func goToFinalResultsLocked(s *Session) error {
	if s.state != domain.StateQuestionClose && s.state != domain.StateAnswerShow {
		return invalidTransition(s.state, domain.ActionGoToFinalResults)
	}
	scoreCurrentQuestionLocked(s)
	s.state = domain.StateFinalResults
	return nil
}

func endLocked(s *Session) error {
	if s.state == domain.StateEnd {
		return invalidTransition(s.state, domain.ActionEnd)
	}
	s.state = domain.StateEnd
	return nil
}

func invalidTransition(state domain.SessionState, action domain.SessionAction) error {
	return fmt.Errorf("%s in state %s: %w", action, state, domain.ErrInvalidTransition)
}

// scheduleTransition arms a deferred transition bound to the session and the
// state it was armed in. No cancellation handle is kept: when the timer
// fires, the session is reloaded and the transition is dropped unless the
// state still matches. A manual transition racing ahead simply wins.
func (svc *SessionService) scheduleTransition(sessionID int64, from domain.SessionState, action domain.SessionAction, delay time.Duration) {
	svc.sched.AfterFunc(delay, func() {
		ctx := context.Background()
		s, ok := svc.sessions.Get(ctx, sessionID)
		if !ok {
			return
		}

		s.mu.Lock()
		if s.state != from {
			state := s.state
			s.mu.Unlock()
			log.Printf("session %d: dropping stale %s timer, state is now %s", sessionID, action, state)
			return
		}
		err := svc.applyLocked(s, action)
		s.mu.Unlock()
		if err != nil {
			log.Printf("session %d: deferred %s failed: %v", sessionID, action, err)
			return
		}
		if err := svc.sessions.Save(ctx, s); err != nil {
			log.Printf("session %d: save after deferred %s failed: %v", sessionID, action, err)
		}
	})
}
