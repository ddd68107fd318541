package game

import (
	"strings"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

const (
	UniqueAnswerPoints    = 10
	DuplicateAnswerPoints = 5
)

// entryPasses reports whether an entry was voted valid by majority, received
// at least one vote and starts with the round letter.
func entryPasses(entry *internal.VotingEntry, letter string) bool {
	if entry.ValidVotes+entry.InvalidVotes == 0 {
		return false
	}
	if entry.ValidVotes <= entry.InvalidVotes {
		return false
	}
	return internal.StartsWithLetter(entry.Answer, letter)
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// ScoreRound computes the points earned in one round. Every participant is
// present in the result, at 0 when nothing they wrote passed. The result
// depends only on the final tallies, never on vote order.
func ScoreRound(entries map[string]*internal.VotingEntry, letter string, participants []string) map[string]int {
	scores := make(map[string]int, len(participants))
	for _, playerId := range participants {
		scores[playerId] = 0
	}

	// category -> normalized answer -> how many passing entries share it
	counts := make(map[string]map[string]int)
	passing := make([]*internal.VotingEntry, 0, len(entries))
	for _, entry := range entries {
		if !entryPasses(entry, letter) {
			continue
		}
		passing = append(passing, entry)
		byAnswer, ok := counts[entry.CategoryId]
		if !ok {
			byAnswer = make(map[string]int)
			counts[entry.CategoryId] = byAnswer
		}
		byAnswer[normalizeAnswer(entry.Answer)]++
	}

	// Authors who left mid-voting still score; totals outlive the roster.
	for _, entry := range passing {
		if counts[entry.CategoryId][normalizeAnswer(entry.Answer)] > 1 {
			scores[entry.PlayerId] += DuplicateAnswerPoints
		} else {
			scores[entry.PlayerId] += UniqueAnswerPoints
		}
	}
	return scores
}
