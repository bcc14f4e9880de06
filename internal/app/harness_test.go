package app

import (
	"context"
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// fakeRepo is a minimal in-package SessionRepository for engine tests.
type fakeRepo struct {
	mu       sync.Mutex
	lastID   int64
	sessions map[int64]*Session
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{sessions: make(map[int64]*Session)}
}

func (r *fakeRepo) NextID(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastID++
	return r.lastID, nil
}

func (r *fakeRepo) Add(_ context.Context, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	return nil
}

func (r *fakeRepo) Get(_ context.Context, sessionID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

func (r *fakeRepo) GetByPlayer(_ context.Context, playerID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.hasPlayer(playerID) {
			return s, true
		}
	}
	return nil, false
}

func (r *fakeRepo) All(_ context.Context) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	return all
}

func (r *fakeRepo) Save(_ context.Context, _ *Session) error { return nil }

type staticQuizzes map[string]domain.Quiz

func (q staticQuizzes) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := q[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// stubScheduler records armed timers; tests fire them by hand so no test
// depends on wall-clock coincidence.
type stubScheduler struct {
	mu     sync.Mutex
	timers []stubTimer
}

type stubTimer struct {
	delay time.Duration
	fn    func()
}

func (s *stubScheduler) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = append(s.timers, stubTimer{delay: d, fn: fn})
}

func (s *stubScheduler) armed() []stubTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stubTimer(nil), s.timers...)
}

// fireLast runs the most recently armed timer.
func (s *stubScheduler) fireLast() {
	s.mu.Lock()
	timer := s.timers[len(s.timers)-1]
	s.mu.Unlock()
	timer.fn()
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testQuiz() domain.Quiz {
	return domain.Quiz{
		ID:   "quiz-1",
		Name: "Test quiz",
		Questions: []domain.Question{
			{
				ID:       101,
				Prompt:   "First question",
				Duration: 30,
				Points:   5,
				Answers: []domain.Answer{
					{ID: 4, Text: "right", Correct: true},
					{ID: 5, Text: "wrong", Correct: false},
					{ID: 6, Text: "also wrong", Correct: false},
				},
			},
			{
				ID:       102,
				Prompt:   "Second question",
				Duration: 45,
				Points:   7,
				Answers: []domain.Answer{
					{ID: 7, Text: "right", Correct: true},
					{ID: 8, Text: "wrong", Correct: false},
					{ID: 9, Text: "also wrong", Correct: false},
				},
			},
		},
	}
}

func newTestEngine() (*SessionService, *fakeRepo, *stubScheduler, *fakeClock) {
	repo := newFakeRepo()
	sched := &stubScheduler{}
	clock := newFakeClock()
	svc := NewSessionServiceWithDeps(repo, staticQuizzes{"quiz-1": testQuiz()}, sched, clock.Now)
	return svc, repo, sched, clock
}
