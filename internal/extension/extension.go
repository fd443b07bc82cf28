// Package extension implements the anti-snipe end-time extension policy as
// a pure function of an auction's current end time and the server clock.
// It owns no state and makes no I/O calls; internal/hotstate applies the
// decision atomically inside primitive P2.
package extension

import "time"

// Decision is the result of evaluating the extension policy.
type Decision struct {
	Extended   bool
	OldEndTime time.Time
	NewEndTime time.Time
	ExtendedBy time.Duration
}

// Evaluate implements the rule: if a bid arrives with 0 < endTime-serverTime
// <= threshold seconds remaining, push endTime out by duration seconds.
// Multiple consecutive late bids extend repeatedly and unboundedly, by
// design, since each call only ever looks at the current endTime.
func Evaluate(endTime, serverTime time.Time, thresholdSec, durationSec int) Decision {
	remaining := endTime.Sub(serverTime)
	threshold := time.Duration(thresholdSec) * time.Second

	if remaining <= 0 || remaining > threshold {
		return Decision{OldEndTime: endTime, NewEndTime: endTime}
	}

	duration := time.Duration(durationSec) * time.Second
	newEnd := endTime.Add(duration)
	return Decision{
		Extended:   true,
		OldEndTime: endTime,
		NewEndTime: newEnd,
		ExtendedBy: duration,
	}
}
