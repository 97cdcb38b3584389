package schedule_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/schedule"
)

func TestTimesEvenSpacing(t *testing.T) {
	times, err := schedule.Times(0, 10000, 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{2500, 5000, 7500, 10000}, times)
}

func TestTimesSingleReminder(t *testing.T) {
	times, err := schedule.Times(5000, 90000, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{90000}, times)
}

func TestTimesLastEqualsDeadline(t *testing.T) {
	// Span not divisible by count; the last reminder must still land
	// exactly on the deadline.
	for count := 1; count <= 10; count++ {
		times, err := schedule.Times(1000, 1000+7777777, count)
		require.NoError(t, err)
		require.Len(t, times, count)
		assert.Equal(t, int64(1000+7777777), times[count-1],
			"count=%d", count)
	}
}

func TestTimesStrictlyIncreasing(t *testing.T) {
	createdAt := int64(1735689600000)
	deadline := createdAt + 36*60*60*1000

	for count := 1; count <= 10; count++ {
		times, err := schedule.Times(createdAt, deadline, count)
		require.NoError(t, err)
		require.Len(t, times, count)

		prev := createdAt
		for i, ts := range times {
			assert.Greater(t, ts, prev, "count=%d index=%d", count, i)
			assert.LessOrEqual(t, ts, deadline)
			prev = ts
		}
	}
}

func TestTimesInvalidRange(t *testing.T) {
	_, err := schedule.Times(10000, 10000, 3)
	assert.ErrorIs(t, err, schedule.ErrInvalidRange)

	_, err = schedule.Times(10000, 500, 3)
	assert.ErrorIs(t, err, schedule.ErrInvalidRange)
}

func TestTimesInvalidCount(t *testing.T) {
	for _, count := range []int{0, -1, 11, 100} {
		_, err := schedule.Times(0, 10000, count)
		assert.ErrorIs(t, err, schedule.ErrInvalidCount, "count=%d", count)
	}
}
