// Package schedule computes reminder delivery timestamps for a task.
package schedule

import (
	"errors"
	"fmt"

	"taskbot/internal/model"
)

var (
	// ErrInvalidRange indicates the deadline is not after the creation time.
	ErrInvalidRange = errors.New("deadline must be after creation time")

	// ErrInvalidCount indicates the reminder count is outside [1, 10].
	ErrInvalidCount = errors.New("reminder count out of range")
)

// Times returns exactly count reminder timestamps evenly spaced across
// (createdAtMs, deadlineMs]. The k-th reminder (1-based) lands at
// createdAt + span*k/count; the final reminder is always the deadline
// itself. Timestamps are milliseconds since the Unix epoch.
func Times(createdAtMs, deadlineMs int64, count int) ([]int64, error) {
	if deadlineMs <= createdAtMs {
		return nil, fmt.Errorf("%w: deadline %d <= created %d",
			ErrInvalidRange, deadlineMs, createdAtMs)
	}
	if count < model.MinReminderCount || count > model.MaxReminderCount {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]",
			ErrInvalidCount, count,
			model.MinReminderCount, model.MaxReminderCount)
	}

	span := deadlineMs - createdAtMs
	times := make([]int64, count)
	for k := 1; k <= count; k++ {
		// Multiply before dividing so the last reminder is exactly
		// the deadline with no integer-division drift.
		times[k-1] = createdAtMs + span*int64(k)/int64(count)
	}
	return times, nil
}
