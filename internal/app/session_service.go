package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"quiz-session-service/internal/domain"
)

const (
	maxActiveSessions = 10
	maxAutoStartNum   = 50
	maxMessageLength  = 100
)

// SessionRepository abstracts how live sessions are stored (in-memory,
// Redis, etc). Get returns the live aggregate; Save persists its snapshot
// after each completed unit of work.
type SessionRepository interface {
	NextID(ctx context.Context) (int64, error)
	Add(ctx context.Context, s *Session) error
	Get(ctx context.Context, sessionID int64) (*Session, bool)
	GetByPlayer(ctx context.Context, playerID int64) (*Session, bool)
	All(ctx context.Context) []*Session
	Save(ctx context.Context, s *Session) error
}

// QuizRepository loads quiz content (from cache/backing store). It stands in
// for the content-management side of the system: the engine only ever reads
// a quiz once, at session creation.
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionService contains the live session use cases.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
	sched    Scheduler
	now      func() time.Time
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository) *SessionService {
	return NewSessionServiceWithDeps(sessions, quizzes, clockScheduler{}, time.Now)
}

// NewSessionServiceWithDeps allows tests to control time and timer firing.
func NewSessionServiceWithDeps(sessions SessionRepository, quizzes QuizRepository, sched Scheduler, now func() time.Time) *SessionService {
	return &SessionService{sessions: sessions, quizzes: quizzes, sched: sched, now: now}
}

// CreateSession snapshots the quiz and opens a LOBBY for it.
func (svc *SessionService) CreateSession(ctx context.Context, quizID string, autoStartNum int) (int64, error) {
	if autoStartNum < 0 || autoStartNum > maxAutoStartNum {
		return 0, fmt.Errorf("autoStartNum must be between 0 and %d: %w", maxAutoStartNum, domain.ErrValidation)
	}

	quiz, err := svc.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return 0, err
	}

	active := 0
	for _, s := range svc.sessions.All(ctx) {
		if s.QuizID() == quizID && s.State() != domain.StateEnd {
			active++
		}
	}
	if active >= maxActiveSessions {
		return 0, fmt.Errorf("quiz already has %d sessions not in END state: %w", maxActiveSessions, domain.ErrValidation)
	}

	id, err := svc.sessions.NextID(ctx)
	if err != nil {
		return 0, err
	}
	s := newSessionWithClock(id, quizID, quiz, autoStartNum, svc.now)
	if err := svc.sessions.Add(ctx, s); err != nil {
		return 0, err
	}
	return id, svc.sessions.Save(ctx, s)
}

// ApplyAction validates and applies one lifecycle action on behalf of the
// quiz identified by quizID. An empty quizID skips the ownership check (for
// callers that already resolved it).
func (svc *SessionService) ApplyAction(ctx context.Context, quizID string, sessionID int64, action domain.SessionAction) error {
	s, err := svc.ownedSession(ctx, quizID, sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = svc.applyLocked(s, action)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return svc.sessions.Save(ctx, s)
}

// Join admits a player into a LOBBY session. An empty name is replaced with
// a generated one; a supplied name must be unique within the session.
func (svc *SessionService) Join(ctx context.Context, sessionID int64, name string) (domain.JoinedPlayer, error) {
	s, ok := svc.sessions.Get(ctx, sessionID)
	if !ok {
		return domain.JoinedPlayer{}, domain.ErrSessionNotFound
	}

	playerID, err := svc.sessions.NextID(ctx)
	if err != nil {
		return domain.JoinedPlayer{}, err
	}

	s.mu.Lock()
	if s.state != domain.StateLobby {
		s.mu.Unlock()
		return domain.JoinedPlayer{}, fmt.Errorf("session is not in LOBBY state: %w", domain.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		name = s.randomNameLocked()
	} else if s.nameTakenLocked(name) {
		s.mu.Unlock()
		return domain.JoinedPlayer{}, fmt.Errorf("name %q is already taken in this session: %w", name, domain.ErrValidation)
	}

	n := len(s.metadata.Questions)
	s.players = append(s.players, &domain.Player{
		ID:         playerID,
		Name:       name,
		AnswerIDs:  make([][]int64, n+1),
		AnswerTime: make([]time.Duration, n+1),
		Points:     make([]float64, n+1),
	})

	// Reaching the auto-start threshold fires NEXT_QUESTION inline. The
	// session leaves LOBBY right here, so a racing join fails its own
	// LOBBY check instead of double-starting.
	if s.autoStartNum != 0 && len(s.players) >= s.autoStartNum {
		if err := svc.nextQuestionLocked(s); err != nil {
			s.mu.Unlock()
			return domain.JoinedPlayer{}, err
		}
	}
	s.mu.Unlock()

	if err := svc.sessions.Save(ctx, s); err != nil {
		return domain.JoinedPlayer{}, err
	}
	return domain.JoinedPlayer{ID: playerID, Name: name}, nil
}

// SubmitAnswer records a player's choice for the currently open question.
// Every precondition is checked before any mutation; resubmission while the
// question is still open overwrites the previous choice.
func (svc *SessionService) SubmitAnswer(ctx context.Context, playerID int64, position int, answerIDs []int64) error {
	s, ok := svc.sessions.GetByPlayer(ctx, playerID)
	if !ok {
		return domain.ErrPlayerNotFound
	}

	s.mu.Lock()
	p := s.playerLocked(playerID)
	if p == nil {
		s.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	if position < 1 || position > len(s.metadata.Questions) {
		s.mu.Unlock()
		return fmt.Errorf("question position %d is not valid for this session: %w", position, domain.ErrValidation)
	}
	if s.state != domain.StateQuestionOpen {
		s.mu.Unlock()
		return fmt.Errorf("session is not in QUESTION_OPEN state: %w", domain.ErrValidation)
	}
	if s.atQuestion != position {
		s.mu.Unlock()
		return fmt.Errorf("session is not up to question %d: %w", position, domain.ErrValidation)
	}
	if len(answerIDs) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("at least one answer id is required: %w", domain.ErrValidation)
	}
	if hasDuplicates(answerIDs) {
		s.mu.Unlock()
		return fmt.Errorf("duplicate answer ids provided: %w", domain.ErrValidation)
	}
	if !validAnswerIDs(s.metadata.Questions[position-1], answerIDs) {
		s.mu.Unlock()
		return fmt.Errorf("answer ids are not valid for this question: %w", domain.ErrValidation)
	}

	p.AnswerIDs[position] = append([]int64(nil), answerIDs...)
	p.AnswerTime[position] = s.now().Sub(s.openTime[position])
	s.mu.Unlock()

	return svc.sessions.Save(ctx, s)
}

// Status reports the host-facing view of a session.
func (svc *SessionService) Status(ctx context.Context, quizID string, sessionID int64) (domain.SessionStatus, error) {
	s, err := svc.ownedSession(ctx, quizID, sessionID)
	if err != nil {
		return domain.SessionStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.players))
	for _, p := range s.players {
		names = append(names, p.Name)
	}
	return domain.SessionStatus{
		State:      s.state,
		AtQuestion: s.atQuestion,
		Players:    names,
		Metadata:   copyQuiz(s.metadata),
	}, nil
}

// PlayerStatus reports where the session a player joined is up to.
func (svc *SessionService) PlayerStatus(ctx context.Context, playerID int64) (domain.PlayerStatus, error) {
	s, ok := svc.sessions.GetByPlayer(ctx, playerID)
	if !ok {
		return domain.PlayerStatus{}, domain.ErrPlayerNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.PlayerStatus{
		State:        s.state,
		NumQuestions: len(s.metadata.Questions),
		AtQuestion:   s.atQuestion,
	}, nil
}

// QuestionInfo returns the question the player's session is currently on.
func (svc *SessionService) QuestionInfo(ctx context.Context, playerID int64, position int) (domain.Question, error) {
	s, ok := svc.sessions.GetByPlayer(ctx, playerID)
	if !ok {
		return domain.Question{}, domain.ErrPlayerNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateLobby || s.state == domain.StateEnd {
		return domain.Question{}, fmt.Errorf("session is in %s state: %w", s.state, domain.ErrValidation)
	}
	if position < 1 || position > len(s.metadata.Questions) {
		return domain.Question{}, fmt.Errorf("question position %d is not valid for this session: %w", position, domain.ErrValidation)
	}
	if position != s.atQuestion {
		return domain.Question{}, fmt.Errorf("session is not on question %d: %w", position, domain.ErrValidation)
	}
	q := s.metadata.Questions[position-1]
	q.Answers = append([]domain.Answer(nil), q.Answers...)
	return q, nil
}

// QuestionResult returns the computed result for an already-shown question.
func (svc *SessionService) QuestionResult(ctx context.Context, playerID int64, position int) (domain.QuestionResult, error) {
	s, ok := svc.sessions.GetByPlayer(ctx, playerID)
	if !ok {
		return domain.QuestionResult{}, domain.ErrPlayerNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if position < 1 || position > len(s.metadata.Questions) {
		return domain.QuestionResult{}, fmt.Errorf("question position %d is not valid for this session: %w", position, domain.ErrValidation)
	}
	if s.state != domain.StateAnswerShow {
		return domain.QuestionResult{}, fmt.Errorf("session is not in ANSWER_SHOW state: %w", domain.ErrValidation)
	}
	if s.atQuestion < position {
		return domain.QuestionResult{}, fmt.Errorf("session is not yet up to question %d: %w", position, domain.ErrValidation)
	}
	r := s.results[position]
	if r == nil {
		return domain.QuestionResult{}, domain.ErrQuestionNotFound
	}
	return copyResult(r), nil
}

// FinalResults returns the ranking for a finished session, host side.
func (svc *SessionService) FinalResults(ctx context.Context, quizID string, sessionID int64) (domain.FinalResults, error) {
	s, err := svc.ownedSession(ctx, quizID, sessionID)
	if err != nil {
		return domain.FinalResults{}, err
	}
	return svc.finalResults(s)
}

// PlayerFinalResults returns the ranking for the session a player is in.
func (svc *SessionService) PlayerFinalResults(ctx context.Context, playerID int64) (domain.FinalResults, error) {
	s, ok := svc.sessions.GetByPlayer(ctx, playerID)
	if !ok {
		return domain.FinalResults{}, domain.ErrPlayerNotFound
	}
	return svc.finalResults(s)
}

func (svc *SessionService) finalResults(s *Session) (domain.FinalResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateFinalResults {
		return domain.FinalResults{}, fmt.Errorf("session is not in FINAL_RESULTS state: %w", domain.ErrValidation)
	}
	return finalResultsLocked(s), nil
}

// ResultsMatrix builds the score/rank export for a finished session. Writing
// it out as an artifact is left to storage collaborators.
func (svc *SessionService) ResultsMatrix(ctx context.Context, quizID string, sessionID int64) (domain.ResultsMatrix, error) {
	s, err := svc.ownedSession(ctx, quizID, sessionID)
	if err != nil {
		return domain.ResultsMatrix{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateFinalResults {
		return domain.ResultsMatrix{}, fmt.Errorf("session is not in FINAL_RESULTS state: %w", domain.ErrValidation)
	}
	return resultsMatrixLocked(s), nil
}

// SendMessage appends a chat message to the player's session.
func (svc *SessionService) SendMessage(ctx context.Context, playerID int64, body string) error {
	if len(body) < 1 || len(body) > maxMessageLength {
		return fmt.Errorf("message must be between 1 and %d characters: %w", maxMessageLength, domain.ErrValidation)
	}
	s, ok := svc.sessions.GetByPlayer(ctx, playerID)
	if !ok {
		return domain.ErrPlayerNotFound
	}

	s.mu.Lock()
	p := s.playerLocked(playerID)
	if p == nil {
		s.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	s.messages = append(s.messages, domain.Message{
		Body:       body,
		PlayerID:   playerID,
		PlayerName: p.Name,
		SentAt:     s.now(),
	})
	s.mu.Unlock()

	return svc.sessions.Save(ctx, s)
}

// Messages returns the session chat log in send order.
func (svc *SessionService) Messages(ctx context.Context, playerID int64) ([]domain.Message, error) {
	s, ok := svc.sessions.GetByPlayer(ctx, playerID)
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...), nil
}

// ListSessions reports a quiz's session ids split by liveness, ascending.
func (svc *SessionService) ListSessions(ctx context.Context, quizID string) (active, inactive []int64, err error) {
	for _, s := range svc.sessions.All(ctx) {
		if s.QuizID() != quizID {
			continue
		}
		if s.State() == domain.StateEnd {
			inactive = append(inactive, s.ID())
		} else {
			active = append(active, s.ID())
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i] < active[j] })
	sort.Slice(inactive, func(i, j int) bool { return inactive[i] < inactive[j] })
	return active, inactive, nil
}

func (svc *SessionService) ownedSession(ctx context.Context, quizID string, sessionID int64) (*Session, error) {
	s, ok := svc.sessions.Get(ctx, sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if quizID != "" && s.QuizID() != quizID {
		return nil, fmt.Errorf("session %d does not belong to quiz %q: %w", sessionID, quizID, domain.ErrPermissionDenied)
	}
	return s, nil
}

func hasDuplicates(ids []int64) bool {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// validAnswerIDs reports whether every submitted id belongs to the question.
func validAnswerIDs(q domain.Question, ids []int64) bool {
	known := make(map[int64]struct{}, len(q.Answers))
	for _, a := range q.Answers {
		known[a.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return false
		}
	}
	return true
}
