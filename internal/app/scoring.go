package app

import (
	"math"
	"sort"

	"quiz-session-service/internal/domain"
)

// scoreCurrentQuestionLocked recomputes the result and point allocation for
// the question the session is currently on. Re-running it on unchanged
// inputs reproduces the same values, so scoring-triggering transitions may
// repeat it freely. Callers hold s.mu.
func scoreCurrentQuestionLocked(s *Session) {
	pos := s.atQuestion
	question := s.metadata.Questions[pos-1]
	correctSet := correctAnswerIDs(question)

	// Fully-correct players in join order, not answer order.
	var correctNames []string
	for _, p := range s.players {
		if answerSetsEqual(p.AnswerIDs[pos], correctSet) {
			correctNames = append(correctNames, p.Name)
		}
	}

	average := 0
	percent := 0.0
	if len(s.players) > 0 {
		var total float64
		for _, p := range s.players {
			// Players who never answered contribute their zero elapsed time.
			total += p.AnswerTime[pos].Seconds()
		}
		average = int(math.Round(total / float64(len(s.players))))
		percent = float64(len(correctNames)) / float64(len(s.players)) * 100
	}

	s.results[pos] = &domain.QuestionResult{
		QuestionID:        question.ID,
		PlayersCorrect:    correctNames,
		AverageAnswerTime: average,
		PercentCorrect:    percent,
	}

	// The i-th fastest fully-correct player earns points/i. Ranks are purely
	// positional in the stable time-sorted order, so tied times still get
	// distinct ranks. Everyone else earns 0 for this question.
	ranked := correctPlayersByTimeLocked(s, pos, correctSet)
	for _, p := range s.players {
		p.Points[pos] = 0
	}
	for i, p := range ranked {
		p.Points[pos] = float64(question.Points) * (1 / float64(i+1))
	}
}

// correctPlayersByTimeLocked returns the fully-correct players sorted
// ascending by elapsed answer time, preserving join order for ties.
func correctPlayersByTimeLocked(s *Session, pos int, correctSet []int64) []*domain.Player {
	var ranked []*domain.Player
	for _, p := range s.players {
		if p.AnswerIDs[pos] != nil && answerSetsEqual(p.AnswerIDs[pos], correctSet) {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AnswerTime[pos] < ranked[j].AnswerTime[pos]
	})
	return ranked
}

func correctAnswerIDs(q domain.Question) []int64 {
	var ids []int64
	for _, a := range q.Answers {
		if a.Correct {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// answerSetsEqual compares two answer-id sets regardless of order. A nil
// submission (never answered) never matches.
func answerSetsEqual(submitted, correct []int64) bool {
	if submitted == nil || len(submitted) != len(correct) {
		return false
	}
	a := append([]int64(nil), submitted...)
	b := append([]int64(nil), correct...)
	sort.Slice(a, func(i, j int) bool { return a[i] < a[j] })
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// roundScore rounds to one decimal place, the precision used for every
// surfaced score.
func roundScore(v float64) float64 {
	return math.Round(v*10) / 10
}
