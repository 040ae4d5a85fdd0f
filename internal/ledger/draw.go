package ledger

import (
	"cmp"
	"slices"
)

type RankedTap struct {
	User      User  `json:"user"`
	Timestamp int64 `json:"timestamp"`
	Diff      int64 `json:"diff"`
	Rank      int   `json:"rank"`
}

type DrawResult struct {
	WinningTime   int64
	WinningTap    RankedTap
	Results       []RankedTap
	Round         Round
	Jackpot       int
	WinnerBalance int
}

// Rank orders taps by distance to winningTime, closest first. Equal distances
// keep submission order. Rank 1 is the winner.
func Rank(taps []Tap, winningTime int64) []RankedTap {
	out := make([]RankedTap, len(taps))
	for i, t := range taps {
		out[i] = RankedTap{User: t.User, Timestamp: t.Timestamp, Diff: abs(t.Timestamp - winningTime)}
	}
	slices.SortStableFunc(out, func(a, b RankedTap) int { return cmp.Compare(a.Diff, b.Diff) })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
