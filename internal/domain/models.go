package domain

import "time"

// Answer is one selectable option of a question.
type Answer struct {
	ID      int64  `json:"answerId"`
	Text    string `json:"answer"`
	Colour  string `json:"colour,omitempty"`
	Correct bool   `json:"correct"`
}

// Question models a timed multiple-choice question. Several answers may be
// flagged correct; a submission scores only when it matches all of them.
type Question struct {
	ID           int64    `json:"questionId"`
	Prompt       string   `json:"question"`
	Duration     int      `json:"duration"` // seconds the question stays open
	Points       int      `json:"points"`
	Answers      []Answer `json:"answers"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
}

// Quiz is the content a session is played against. Sessions hold their own
// deep copy taken at creation time, so later edits never reach a live game.
type Quiz struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Questions    []Question `json:"questions"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
}

// Player is a guest participant in one session. The per-question slices are
// indexed by question position (1-based); index 0 is never used.
type Player struct {
	ID         int64           `json:"playerId"`
	Name       string          `json:"name"`
	AnswerIDs  [][]int64       `json:"answerIds"`
	AnswerTime []time.Duration `json:"answerTime"`
	Points     []float64       `json:"points"`
}

// QuestionResult aggregates one question's outcome across all players.
type QuestionResult struct {
	QuestionID        int64    `json:"questionId"`
	PlayersCorrect    []string `json:"playersCorrectList"`
	AverageAnswerTime int      `json:"averageAnswerTime"` // whole seconds
	PercentCorrect    float64  `json:"percentCorrect"`
}

// PlayerScore is one row of the final ranking.
type PlayerScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// FinalResults is the aggregate returned once a session reaches FINAL_RESULTS.
type FinalResults struct {
	UsersRankedByScore []PlayerScore    `json:"usersRankedByScore"`
	QuestionResults    []QuestionResult `json:"questionResults"`
}

// Message is a chat message visible to everyone in the session.
type Message struct {
	Body       string    `json:"messageBody"`
	PlayerID   int64     `json:"playerId"`
	PlayerName string    `json:"playerName"`
	SentAt     time.Time `json:"timeSent"`
}

// SessionStatus is the host-facing view of a session.
type SessionStatus struct {
	State      SessionState `json:"state"`
	AtQuestion int          `json:"atQuestion"`
	Players    []string     `json:"players"`
	Metadata   Quiz         `json:"metadata"`
}

// PlayerStatus is the player-facing view of where the session is up to.
type PlayerStatus struct {
	State        SessionState `json:"state"`
	NumQuestions int          `json:"numQuestions"`
	AtQuestion   int          `json:"atQuestion"`
}

// ResultsMatrix is the per-player, per-question score/rank export. Rows are
// sorted alphabetically by player name; each row has 1 + 2*numQuestions cells.
type ResultsMatrix struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// JoinedPlayer is returned from a join, carrying the (possibly generated) name.
type JoinedPlayer struct {
	ID   int64  `json:"playerId"`
	Name string `json:"name"`
}

// SessionDocument is the whole-session snapshot persisted by stores that
// replace documents rather than individual fields.
type SessionDocument struct {
	ID               int64             `json:"sessionId"`
	QuizID           string            `json:"quizId"`
	State            SessionState      `json:"state"`
	AtQuestion       int               `json:"atQuestion"`
	AutoStartNum     int               `json:"autoStartNum"`
	Players          []Player          `json:"players"`
	Metadata         Quiz              `json:"metadata"`
	QuestionResults  []*QuestionResult `json:"questionResults"` // position-indexed, nil until scored
	QuestionOpenTime []time.Time       `json:"questionOpenTime"`
	Messages         []Message         `json:"messages"`
}
