package tasks

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
)

// RemainingText renders a row's remaining-time estimate from its tick count
// and the current tick duration, e.g. "2 minutes 10 seconds".
func RemainingText(r Row, tickDuration time.Duration) string {
	if r.Done {
		return "done"
	}
	if r.TicksLeft <= 0 || tickDuration <= 0 {
		return "working"
	}
	left := time.Duration(r.TicksLeft) * tickDuration
	return durafmt.Parse(left).LimitFirstN(2).String()
}

// Label renders the row's identity line, e.g. "decypher v3 -> 144.12.0.4".
func Label(r Row) string {
	if r.Target == "" {
		return fmt.Sprintf("%s v%d", r.Tool, r.Version)
	}
	return fmt.Sprintf("%s v%d -> %s", r.Tool, r.Version, r.Target)
}
