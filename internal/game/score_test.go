package game

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hiagocrazzy2017/letter-spin-stop-time/internal"
)

func entry(playerId, categoryId, answer string, valid, invalid int) *internal.VotingEntry {
	return &internal.VotingEntry{
		PlayerId:     playerId,
		CategoryId:   categoryId,
		Answer:       answer,
		Letter:       "C",
		ValidVotes:   valid,
		InvalidVotes: invalid,
		Voters:       map[string]struct{}{},
	}
}

func entries(list ...*internal.VotingEntry) map[string]*internal.VotingEntry {
	out := make(map[string]*internal.VotingEntry, len(list))
	for _, e := range list {
		out[internal.AnswerId(e.PlayerId, e.CategoryId)] = e
	}
	return out
}

func TestScoreRound(t *testing.T) {
	tests := []struct {
		name         string
		entries      map[string]*internal.VotingEntry
		participants []string
		want         map[string]int
	}{
		{
			name: "case insensitive duplicates share points",
			entries: entries(
				entry("p1", "animal", "Cachorro", 2, 0),
				entry("p2", "animal", "cachorro", 2, 1),
				entry("p3", "animal", "Cavalo", 3, 0),
				entry("p4", "animal", "Gato", 3, 0),
			),
			participants: []string{"p1", "p2", "p3", "p4"},
			want:         map[string]int{"p1": 5, "p2": 5, "p3": 10, "p4": 0},
		},
		{
			name:         "no votes scores nothing",
			entries:      entries(entry("p1", "animal", "Cavalo", 0, 0)),
			participants: []string{"p1", "p2"},
			want:         map[string]int{"p1": 0, "p2": 0},
		},
		{
			name:         "tie is not a majority",
			entries:      entries(entry("p1", "animal", "Cavalo", 1, 1)),
			participants: []string{"p1"},
			want:         map[string]int{"p1": 0},
		},
		{
			name: "failed duplicate does not halve the passing one",
			entries: entries(
				entry("p1", "animal", "Cobra", 2, 0),
				entry("p2", "animal", "cobra", 0, 2),
			),
			participants: []string{"p1", "p2"},
			want:         map[string]int{"p1": 10, "p2": 0},
		},
		{
			name: "same word in different categories is unique in each",
			entries: entries(
				entry("p1", "animal", "Cobra", 1, 0),
				entry("p2", "objeto", "Cobra", 1, 0),
				entry("p1", "nome", "Carla", 1, 0),
			),
			participants: []string{"p1", "p2"},
			want:         map[string]int{"p1": 20, "p2": 10},
		},
		{
			name: "surrounding spaces do not make answers unique",
			entries: entries(
				entry("p1", "comida", "Coxinha ", 1, 0),
				entry("p2", "comida", "coxinha", 1, 0),
			),
			participants: []string{"p1", "p2"},
			want:         map[string]int{"p1": 5, "p2": 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreRound(tt.entries, "C", tt.participants))
		})
	}
}

func TestScoreRound_IsPureAndOrderIndependent(t *testing.T) {
	build := func() map[string]*internal.VotingEntry {
		return entries(
			entry("p1", "animal", "Cachorro", 2, 0),
			entry("p2", "animal", "cachorro", 2, 0),
			entry("p3", "animal", "Cavalo", 2, 0),
		)
	}
	participants := []string{"p1", "p2", "p3"}

	first := build()
	want := ScoreRound(first, "C", participants)
	assert.Equal(t, want, ScoreRound(first, "C", participants), "scoring twice gives the same map")

	reversed := slices.Clone(participants)
	slices.Reverse(reversed)
	assert.Equal(t, want, ScoreRound(build(), "C", reversed))
	assert.Equal(t, 2, first[internal.AnswerId("p1", "animal")].ValidVotes, "entries are not mutated")
}
