package ledger

import "time"

// Round is the open window taps are accepted in. Times are epoch ms.
type Round struct {
	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`
}

func NewRound(start time.Time, d time.Duration) Round {
	s := start.UnixMilli()
	return Round{StartTime: s, EndTime: s + d.Milliseconds()}
}

func (r Round) DurationMs() int64 { return r.EndTime - r.StartTime }

// Accepts reports whether a tap stamped at ts belongs to the round. The end
// instant is inclusive.
func (r Round) Accepts(ts int64) bool {
	return ts >= r.StartTime && ts <= r.EndTime
}

func (r Round) Drawable(now int64) bool { return now >= r.EndTime }

func (r Round) Remaining(now int64) int64 {
	if left := r.EndTime - now; left > 0 {
		return left
	}
	return 0
}

type Tap struct {
	User      User  `json:"user"`
	Timestamp int64 `json:"timestamp"`
}
