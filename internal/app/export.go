package app

import (
	"fmt"
	"sort"
	"strconv"

	"quiz-session-service/internal/domain"
)

// finalResultsLocked builds the ranking and the per-question results for a
// session that has reached FINAL_RESULTS. Equal scores keep join order.
func finalResultsLocked(s *Session) domain.FinalResults {
	ranked := make([]domain.PlayerScore, 0, len(s.players))
	for _, p := range s.players {
		var total float64
		for _, pts := range p.Points {
			total += pts
		}
		ranked = append(ranked, domain.PlayerScore{Name: p.Name, Score: roundScore(total)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	var results []domain.QuestionResult
	for _, r := range s.results {
		if r != nil {
			results = append(results, copyResult(r))
		}
	}
	return domain.FinalResults{UsersRankedByScore: ranked, QuestionResults: results}
}

// resultsMatrixLocked builds the per-player, per-question score/rank export.
// For each question a player either never answered (score "0", rank "0"),
// answered fully correctly (score points/rank rounded to one decimal, rank
// their position in the time-sorted correct list), or answered incorrectly
// (score "0", rank one past the correct answerers).
func resultsMatrixLocked(s *Session) domain.ResultsMatrix {
	header := []string{"Player"}
	for i := range s.metadata.Questions {
		header = append(header, fmt.Sprintf("question%dscore", i+1), fmt.Sprintf("question%drank", i+1))
	}

	rows := make([][]string, 0, len(s.players))
	for _, p := range s.players {
		row := []string{p.Name}
		for pos := 1; pos <= len(s.metadata.Questions); pos++ {
			question := s.metadata.Questions[pos-1]
			if p.AnswerIDs[pos] == nil {
				row = append(row, "0", "0")
				continue
			}
			ranked := correctPlayersByTimeLocked(s, pos, correctAnswerIDs(question))
			rank := 0
			for i, rp := range ranked {
				if rp == p {
					rank = i + 1
					break
				}
			}
			if rank == 0 {
				row = append(row, "0", strconv.Itoa(len(ranked)+1))
				continue
			}
			score := roundScore(float64(question.Points) / float64(rank))
			row = append(row, strconv.FormatFloat(score, 'f', -1, 64), strconv.Itoa(rank))
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })

	return domain.ResultsMatrix{Header: header, Rows: rows}
}
