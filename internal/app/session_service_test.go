package app

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

func TestCreateSessionValidatesAutoStartNum(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()

	for _, n := range []int{-1, maxAutoStartNum + 1} {
		if _, err := svc.CreateSession(ctx, "quiz-1", n); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("autoStartNum %d: expected validation error, got %v", n, err)
		}
	}
	if _, err := svc.CreateSession(ctx, "quiz-1", maxAutoStartNum); err != nil {
		t.Errorf("autoStartNum %d should be allowed: %v", maxAutoStartNum, err)
	}
}

func TestCreateSessionUnknownQuiz(t *testing.T) {
	svc, _, _, _ := newTestEngine()
	if _, err := svc.CreateSession(context.Background(), "nope", 0); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func TestCreateSessionCapsActiveSessionsPerQuiz(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()

	ids := make([]int64, 0, maxActiveSessions)
	for i := 0; i < maxActiveSessions; i++ {
		id, err := svc.CreateSession(ctx, "quiz-1", 0)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	if _, err := svc.CreateSession(ctx, "quiz-1", 0); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected cap at %d active sessions, got %v", maxActiveSessions, err)
	}

	// Ending one frees a slot.
	if err := svc.ApplyAction(ctx, "quiz-1", ids[0], domain.ActionEnd); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := svc.CreateSession(ctx, "quiz-1", 0); err != nil {
		t.Fatalf("expected slot after END, got %v", err)
	}
}

func TestJoinRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)

	if _, err := svc.Join(ctx, sid, "alice"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := svc.Join(ctx, sid, "alice"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected duplicate-name rejection, got %v", err)
	}
}

func TestJoinGeneratesNameWhenEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)

	namePattern := regexp.MustCompile(`^[a-z]{5}[0-9]{3}$`)
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		joined, err := svc.Join(ctx, sid, "  ")
		if err != nil {
			t.Fatalf("join %d: %v", i, err)
		}
		if !namePattern.MatchString(joined.Name) {
			t.Fatalf("generated name %q does not match [5 letters][3 digits]", joined.Name)
		}
		if seen[joined.Name] {
			t.Fatalf("generated name %q collides within the session", joined.Name)
		}
		seen[joined.Name] = true
	}
}

func TestJoinRejectedOutsideLobby(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)
	_ = svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionNextQuestion)

	if _, err := svc.Join(ctx, sid, "late"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected join rejection after start, got %v", err)
	}
}

func TestJoinAutoStartsAtThreshold(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 2)

	if _, err := svc.Join(ctx, sid, "one"); err != nil {
		t.Fatalf("join one: %v", err)
	}
	s, _ := repo.Get(ctx, sid)
	if s.State() != domain.StateLobby {
		t.Fatalf("session started before threshold: %s", s.State())
	}

	if _, err := svc.Join(ctx, sid, "two"); err != nil {
		t.Fatalf("join two: %v", err)
	}
	if s.State() != domain.StateQuestionCountdown {
		t.Fatalf("expected auto-start into QUESTION_COUNTDOWN, got %s", s.State())
	}
}

// openFirstQuestion drives a fresh session to QUESTION_OPEN on question 1
// and returns the joined players' ids.
func openFirstQuestion(t *testing.T, svc *SessionService, sid int64, names ...string) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, 0, len(names))
	for _, name := range names {
		joined, err := svc.Join(ctx, sid, name)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		ids = append(ids, joined.ID)
	}
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionNextQuestion); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionSkipCountdown); err != nil {
		t.Fatalf("skip countdown: %v", err)
	}
	return ids
}

func TestSubmitAnswerPreconditions(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)
	ids := openFirstQuestion(t, svc, sid, "alice")
	alice := ids[0]

	cases := []struct {
		name     string
		playerID int64
		position int
		answers  []int64
		wantErr  error
	}{
		{"unknown player", 999, 1, []int64{4}, domain.ErrPlayerNotFound},
		{"position zero", alice, 0, []int64{4}, domain.ErrValidation},
		{"position past end", alice, 3, []int64{4}, domain.ErrValidation},
		{"wrong position", alice, 2, []int64{7}, domain.ErrValidation},
		{"empty answer list", alice, 1, nil, domain.ErrValidation},
		{"duplicate ids", alice, 1, []int64{4, 4}, domain.ErrValidation},
		{"foreign answer id", alice, 1, []int64{4, 99}, domain.ErrValidation},
	}
	for _, tc := range cases {
		if err := svc.SubmitAnswer(ctx, tc.playerID, tc.position, tc.answers); !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}

	if err := svc.SubmitAnswer(ctx, alice, 1, []int64{4}); err != nil {
		t.Fatalf("valid submission: %v", err)
	}

	// Once the question closes, submissions for it are rejected.
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionGoToAnswer); err != nil {
		t.Fatalf("go to answer: %v", err)
	}
	if err := svc.SubmitAnswer(ctx, alice, 1, []int64{4}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected rejection outside QUESTION_OPEN, got %v", err)
	}
}

func TestSubmitAnswerResubmissionOverwrites(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, clock := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)
	ids := openFirstQuestion(t, svc, sid, "alice")

	clock.Advance(2 * time.Second)
	if err := svc.SubmitAnswer(ctx, ids[0], 1, []int64{5}); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	clock.Advance(3 * time.Second)
	if err := svc.SubmitAnswer(ctx, ids[0], 1, []int64{4}); err != nil {
		t.Fatalf("resubmission: %v", err)
	}

	s, _ := repo.Get(ctx, sid)
	s.mu.Lock()
	p := s.playerLocked(ids[0])
	answer := append([]int64(nil), p.AnswerIDs[1]...)
	elapsed := p.AnswerTime[1]
	s.mu.Unlock()

	if len(answer) != 1 || answer[0] != 4 {
		t.Errorf("expected resubmission to overwrite, got %v", answer)
	}
	if elapsed != 5*time.Second {
		t.Errorf("expected elapsed time from question open to last submission, got %v", elapsed)
	}
}

func TestFullGameFlow(t *testing.T) {
	ctx := context.Background()
	svc, _, _, clock := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)
	ids := openFirstQuestion(t, svc, sid, "p1", "p2")
	p1, p2 := ids[0], ids[1]

	// Question 1: p1 correct, p2 wrong.
	clock.Advance(2 * time.Second)
	if err := svc.SubmitAnswer(ctx, p1, 1, []int64{4}); err != nil {
		t.Fatalf("p1 q1: %v", err)
	}
	clock.Advance(time.Second)
	if err := svc.SubmitAnswer(ctx, p2, 1, []int64{5}); err != nil {
		t.Fatalf("p2 q1: %v", err)
	}
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionGoToAnswer); err != nil {
		t.Fatalf("go to answer: %v", err)
	}

	r1, err := svc.QuestionResult(ctx, p1, 1)
	if err != nil {
		t.Fatalf("question result: %v", err)
	}
	if len(r1.PlayersCorrect) != 1 || r1.PlayersCorrect[0] != "p1" {
		t.Errorf("q1 playersCorrect: got %v", r1.PlayersCorrect)
	}
	if r1.PercentCorrect != 50 {
		t.Errorf("q1 percentCorrect: got %v", r1.PercentCorrect)
	}

	// Question 2: p1 correct again, p2 wrong again.
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionNextQuestion); err != nil {
		t.Fatalf("next question: %v", err)
	}
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionSkipCountdown); err != nil {
		t.Fatalf("skip countdown: %v", err)
	}
	clock.Advance(4 * time.Second)
	if err := svc.SubmitAnswer(ctx, p1, 2, []int64{7}); err != nil {
		t.Fatalf("p1 q2: %v", err)
	}
	if err := svc.SubmitAnswer(ctx, p2, 2, []int64{8}); err != nil {
		t.Fatalf("p2 q2: %v", err)
	}
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionGoToAnswer); err != nil {
		t.Fatalf("go to answer: %v", err)
	}
	if err := svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionGoToFinalResults); err != nil {
		t.Fatalf("go to final results: %v", err)
	}

	fr, err := svc.FinalResults(ctx, "quiz-1", sid)
	if err != nil {
		t.Fatalf("final results: %v", err)
	}
	if len(fr.UsersRankedByScore) != 2 {
		t.Fatalf("expected 2 ranked players, got %d", len(fr.UsersRankedByScore))
	}
	if fr.UsersRankedByScore[0].Name != "p1" || fr.UsersRankedByScore[0].Score != 12 {
		t.Errorf("winner: got %+v, want p1 with 12", fr.UsersRankedByScore[0])
	}
	if fr.UsersRankedByScore[1].Name != "p2" || fr.UsersRankedByScore[1].Score != 0 {
		t.Errorf("runner-up: got %+v, want p2 with 0", fr.UsersRankedByScore[1])
	}
	for i, r := range fr.QuestionResults {
		if r.PercentCorrect != 50 {
			t.Errorf("question %d percentCorrect: got %v, want 50", i+1, r.PercentCorrect)
		}
	}

	// Players see the same ranking.
	playerView, err := svc.PlayerFinalResults(ctx, p2)
	if err != nil {
		t.Fatalf("player final results: %v", err)
	}
	if playerView.UsersRankedByScore[0].Name != "p1" {
		t.Errorf("player view winner: got %+v", playerView.UsersRankedByScore[0])
	}

	if _, err := svc.ResultsMatrix(ctx, "quiz-1", sid); err != nil {
		t.Fatalf("results matrix: %v", err)
	}
}

func TestResultsGatedOnFinalResultsState(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)

	if _, err := svc.FinalResults(ctx, "quiz-1", sid); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("final results in LOBBY: expected validation error, got %v", err)
	}
	if _, err := svc.ResultsMatrix(ctx, "quiz-1", sid); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("results matrix in LOBBY: expected validation error, got %v", err)
	}
}

func TestQuestionInfoGating(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)

	joined, _ := svc.Join(ctx, sid, "alice")
	if _, err := svc.QuestionInfo(ctx, joined.ID, 1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("question info in LOBBY: expected validation error, got %v", err)
	}

	_ = svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionNextQuestion)
	_ = svc.ApplyAction(ctx, "quiz-1", sid, domain.ActionSkipCountdown)

	q, err := svc.QuestionInfo(ctx, joined.ID, 1)
	if err != nil {
		t.Fatalf("question info: %v", err)
	}
	if q.ID != 101 || len(q.Answers) != 3 {
		t.Errorf("unexpected question payload: %+v", q)
	}
	if _, err := svc.QuestionInfo(ctx, joined.ID, 2); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("question info ahead of session: expected validation error, got %v", err)
	}
}

func TestPlayerStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)
	joined, _ := svc.Join(ctx, sid, "alice")

	st, err := svc.PlayerStatus(ctx, joined.ID)
	if err != nil {
		t.Fatalf("player status: %v", err)
	}
	if st.State != domain.StateLobby || st.NumQuestions != 2 || st.AtQuestion != 0 {
		t.Errorf("unexpected status: %+v", st)
	}

	if _, err := svc.PlayerStatus(ctx, 999); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("expected player not found, got %v", err)
	}
}

func TestHostStatusListsPlayersInJoinOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)
	_, _ = svc.Join(ctx, sid, "zoe")
	_, _ = svc.Join(ctx, sid, "adam")

	st, err := svc.Status(ctx, "quiz-1", sid)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(st.Players) != 2 || st.Players[0] != "zoe" || st.Players[1] != "adam" {
		t.Errorf("players not in join order: %v", st.Players)
	}
	if len(st.Metadata.Questions) != 2 {
		t.Errorf("expected quiz metadata in status, got %+v", st.Metadata)
	}
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()
	sid, _ := svc.CreateSession(ctx, "quiz-1", 0)
	alice, _ := svc.Join(ctx, sid, "alice")
	bob, _ := svc.Join(ctx, sid, "bob")

	if err := svc.SendMessage(ctx, alice.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("empty message: expected validation error, got %v", err)
	}
	long := make([]byte, maxMessageLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if err := svc.SendMessage(ctx, alice.ID, string(long)); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("oversized message: expected validation error, got %v", err)
	}

	if err := svc.SendMessage(ctx, alice.ID, "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.SendMessage(ctx, bob.ID, "hi alice"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs, err := svc.Messages(ctx, alice.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].PlayerName != "alice" || msgs[0].Body != "hello" {
		t.Errorf("first message: %+v", msgs[0])
	}
	if msgs[1].PlayerName != "bob" || msgs[1].Body != "hi alice" {
		t.Errorf("second message: %+v", msgs[1])
	}
}

func TestListSessionsSplitsByLiveness(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestEngine()

	first, _ := svc.CreateSession(ctx, "quiz-1", 0)
	second, _ := svc.CreateSession(ctx, "quiz-1", 0)
	third, _ := svc.CreateSession(ctx, "quiz-1", 0)
	_ = svc.ApplyAction(ctx, "quiz-1", second, domain.ActionEnd)

	active, inactive, err := svc.ListSessions(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(active) != 2 || active[0] != first || active[1] != third {
		t.Errorf("active: got %v", active)
	}
	if len(inactive) != 1 || inactive[0] != second {
		t.Errorf("inactive: got %v", inactive)
	}
}
