package app

import (
	"math/rand"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// Session is one live playthrough of a quiz. All mutation happens under mu,
// one run-to-completion unit at a time; timers re-enter through the service
// and take the same lock, so units never interleave mid-flight.
type Session struct {
	mu  sync.Mutex
	now func() time.Time

	id           int64
	quizID       string
	state        domain.SessionState
	atQuestion   int // 1-based position of the active question, 0 before start
	autoStartNum int
	players      []*domain.Player
	metadata     domain.Quiz
	results      []*domain.QuestionResult // position-indexed
	openTime     []time.Time              // position-indexed
	messages     []domain.Message
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id int64, quizID string, metadata domain.Quiz, autoStartNum int) *Session {
	return newSessionWithClock(id, quizID, metadata, autoStartNum, time.Now)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id int64, quizID string, metadata domain.Quiz, autoStartNum int, now func() time.Time) *Session {
	return newSessionWithClock(id, quizID, metadata, autoStartNum, now)
}

func newSessionWithClock(id int64, quizID string, metadata domain.Quiz, autoStartNum int, now func() time.Time) *Session {
	n := len(metadata.Questions)
	return &Session{
		now:          now,
		id:           id,
		quizID:       quizID,
		state:        domain.StateLobby,
		autoStartNum: autoStartNum,
		metadata:     copyQuiz(metadata),
		results:      make([]*domain.QuestionResult, n+1),
		openTime:     make([]time.Time, n+1),
	}
}

func (s *Session) ID() int64 { return s.id }

func (s *Session) QuizID() string { return s.quizID }

// State reads the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PlayerIDs returns the ids of every joined player, in join order.
func (s *Session) PlayerIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.players))
	for _, p := range s.players {
		ids = append(ids, p.ID)
	}
	return ids
}

// Document snapshots the whole session for document-replace persistence.
func (s *Session) Document() domain.SessionDocument {
	s.mu.Lock()
	defer s.mu.Unlock()

	players := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, copyPlayer(p))
	}
	results := make([]*domain.QuestionResult, len(s.results))
	for i, r := range s.results {
		if r != nil {
			cp := copyResult(r)
			results[i] = &cp
		}
	}
	return domain.SessionDocument{
		ID:               s.id,
		QuizID:           s.quizID,
		State:            s.state,
		AtQuestion:       s.atQuestion,
		AutoStartNum:     s.autoStartNum,
		Players:          players,
		Metadata:         copyQuiz(s.metadata),
		QuestionResults:  results,
		QuestionOpenTime: append([]time.Time(nil), s.openTime...),
		Messages:         append([]domain.Message(nil), s.messages...),
	}
}

// RestoreSession rebuilds a live session from a persisted document.
func RestoreSession(doc domain.SessionDocument) *Session {
	s := newSessionWithClock(doc.ID, doc.QuizID, doc.Metadata, doc.AutoStartNum, time.Now)
	s.state = doc.State
	s.atQuestion = doc.AtQuestion
	for i := range doc.Players {
		p := copyPlayer(&doc.Players[i])
		s.players = append(s.players, &p)
	}
	for i, r := range doc.QuestionResults {
		if r != nil && i < len(s.results) {
			cp := copyResult(r)
			s.results[i] = &cp
		}
	}
	copy(s.openTime, doc.QuestionOpenTime)
	s.messages = append(s.messages, doc.Messages...)
	return s
}

func (s *Session) playerLocked(playerID int64) *domain.Player {
	for _, p := range s.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

func (s *Session) hasPlayer(playerID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerLocked(playerID) != nil
}

func (s *Session) nameTakenLocked(name string) bool {
	for _, p := range s.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

const (
	nameLetters = "abcdefghijklmnopqrstuvwxyz"
	nameDigits  = "0123456789"
)

// randomNameLocked generates a [5 letters][3 digits] name with no repeated
// characters, retrying until it is unique within the session.
func (s *Session) randomNameLocked() string {
	for {
		name := shuffled(nameLetters)[:5] + shuffled(nameDigits)[:3]
		if !s.nameTakenLocked(name) {
			return name
		}
	}
}

func shuffled(alphabet string) string {
	chars := []byte(alphabet)
	rand.Shuffle(len(chars), func(i, j int) {
		chars[i], chars[j] = chars[j], chars[i]
	})
	return string(chars)
}

func copyQuiz(q domain.Quiz) domain.Quiz {
	cp := q
	cp.Questions = make([]domain.Question, len(q.Questions))
	for i, question := range q.Questions {
		qc := question
		qc.Answers = append([]domain.Answer(nil), question.Answers...)
		cp.Questions[i] = qc
	}
	return cp
}

func copyPlayer(p *domain.Player) domain.Player {
	cp := *p
	cp.AnswerIDs = make([][]int64, len(p.AnswerIDs))
	for i, ids := range p.AnswerIDs {
		if ids != nil {
			cp.AnswerIDs[i] = append([]int64(nil), ids...)
		}
	}
	cp.AnswerTime = append([]time.Duration(nil), p.AnswerTime...)
	cp.Points = append([]float64(nil), p.Points...)
	return cp
}

func copyResult(r *domain.QuestionResult) domain.QuestionResult {
	cp := *r
	cp.PlayersCorrect = append([]string(nil), r.PlayersCorrect...)
	return cp
}
