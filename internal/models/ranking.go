package models

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
)

// CompareByScore is the canonical leaderboard ordering: higher totals first,
// ties broken by ascending participant ID so ranks never flap between reads.
// Every code path that sorts a ranking must go through this comparison.
func CompareByScore(scoreA int64, idA uuid.UUID, scoreB int64, idB uuid.UUID) int {
	if scoreA != scoreB {
		if scoreA > scoreB {
			return -1
		}
		return 1
	}
	return bytes.Compare(idA[:], idB[:])
}

// SortRanked sorts participants in place using the canonical ordering
func SortRanked(participants []Participant) {
	sort.Slice(participants, func(i, j int) bool {
		return CompareByScore(
			participants[i].TotalPoints, participants[i].ID,
			participants[j].TotalPoints, participants[j].ID,
		) < 0
	})
}
