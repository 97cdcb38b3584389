package dispatch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/dispatch"
	"taskbot/internal/model"
	"taskbot/internal/store"
	"taskbot/tests/testutil"
)

// fakeSender records deliveries and fails on demand.
type fakeSender struct {
	mu    sync.Mutex
	sent  []int64
	fail  bool
	calls int
}

func (f *fakeSender) Send(ctx context.Context, task model.Task, r model.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return errors.New("webhook returned 500")
	}
	f.sent = append(f.sent, r.ID)
	return nil
}

func (f *fakeSender) sentIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.sent...)
}

func (f *fakeSender) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func newDispatcher(t *testing.T, s store.Repository, sender dispatch.Sender, url string) *dispatch.Dispatcher {
	t.Helper()
	return dispatch.New(s, sender, dispatch.Config{
		Interval:        time.Hour, // ticks never fire in tests; scans run explicitly
		DeliveryTimeout: time.Second,
		WebhookURL:      func() string { return url },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestScanDispatchesOnlyDueReminders(t *testing.T) {
	s := testutil.NewTestStore(t)
	sender := &fakeSender{}

	// Deadline 10s out, 4 reminders: +2.5s, +5s, +7.5s, +10s.
	task, err := s.CreateTask(context.Background(), store.CreateTaskInput{
		Title:         "demo",
		DeadlineMs:    time.Now().Add(10 * time.Second).UnixMilli(),
		ReminderCount: 4,
	})
	require.NoError(t, err)

	d := newDispatcher(t, s, sender, "https://discord.com/api/webhooks/1/x")
	d.SetNowFunc(func() time.Time {
		return time.UnixMilli(task.CreatedAtMs + 6000)
	})

	d.ScanOnce(context.Background())

	// Reminders 0 and 1 dispatched and marked sent; 2 and 3 untouched.
	assert.Equal(t, []int64{task.Reminders[0].ID, task.Reminders[1].ID}, sender.sentIDs())

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, got.Reminders[0].Sent)
	assert.True(t, got.Reminders[1].Sent)
	assert.False(t, got.Reminders[2].Sent)
	assert.False(t, got.Reminders[3].Sent)

	// A second scan at the same instant sends nothing new.
	d.ScanOnce(context.Background())
	assert.Len(t, sender.sentIDs(), 2)

	assert.Equal(t, 2, d.Status().Dispatched)
}

func TestDeliveryFailureLeavesUnsentAndRetries(t *testing.T) {
	s := testutil.NewTestStore(t)
	sender := &fakeSender{}
	sender.setFail(true)

	task, err := s.CreateTask(context.Background(), store.CreateTaskInput{
		Title:         "flaky",
		DeadlineMs:    time.Now().Add(time.Hour).UnixMilli(),
		ReminderCount: 1,
	})
	require.NoError(t, err)

	d := newDispatcher(t, s, sender, "https://discord.com/api/webhooks/1/x")
	d.SetNowFunc(func() time.Time { return time.UnixMilli(task.DeadlineMs + 1) })

	d.ScanOnce(context.Background())
	assert.Empty(t, sender.sentIDs())
	assert.Error(t, d.Status().LastError)

	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.False(t, got.Reminders[0].Sent)

	// Next tick retries and succeeds.
	sender.setFail(false)
	d.ScanOnce(context.Background())
	assert.Equal(t, []int64{task.Reminders[0].ID}, sender.sentIDs())

	got, err = s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.True(t, got.Reminders[0].Sent)
}

func TestCompletedTaskNeverDispatches(t *testing.T) {
	s := testutil.NewTestStore(t)
	sender := &fakeSender{}

	task, err := s.CreateTask(context.Background(), store.CreateTaskInput{
		Title:         "done already",
		DeadlineMs:    time.Now().Add(time.Hour).UnixMilli(),
		ReminderCount: 3,
	})
	require.NoError(t, err)
	require.NoError(t, s.CompleteTask(context.Background(), task.ID))

	d := newDispatcher(t, s, sender, "https://discord.com/api/webhooks/1/x")
	d.SetNowFunc(func() time.Time { return time.UnixMilli(task.DeadlineMs + 1) })

	d.ScanOnce(context.Background())
	assert.Empty(t, sender.sentIDs())
	assert.Zero(t, sender.calls)
}

func TestUnsetWebhookSkipsScan(t *testing.T) {
	s := testutil.NewTestStore(t)
	sender := &fakeSender{}

	task, err := s.CreateTask(context.Background(), store.CreateTaskInput{
		Title:         "no target",
		DeadlineMs:    time.Now().Add(time.Hour).UnixMilli(),
		ReminderCount: 2,
	})
	require.NoError(t, err)

	d := newDispatcher(t, s, sender, "")
	d.SetNowFunc(func() time.Time { return time.UnixMilli(task.DeadlineMs + 1) })

	d.ScanOnce(context.Background())

	// Nothing delivered, nothing marked sent.
	assert.Zero(t, sender.calls)
	got, err := s.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	for _, r := range got.Reminders {
		assert.False(t, r.Sent)
	}
}

func TestOverdueBacklogFiresOldestFirst(t *testing.T) {
	s := testutil.NewTestStore(t)
	sender := &fakeSender{}

	// Process was "offline" past the deadline: every reminder fires on
	// the next scan, oldest first.
	task, err := s.CreateTask(context.Background(), store.CreateTaskInput{
		Title:         "backlog",
		DeadlineMs:    time.Now().Add(time.Second).UnixMilli(),
		ReminderCount: 3,
	})
	require.NoError(t, err)

	d := newDispatcher(t, s, sender, "https://discord.com/api/webhooks/1/x")
	d.SetNowFunc(func() time.Time { return time.UnixMilli(task.DeadlineMs + 60000) })

	d.ScanOnce(context.Background())

	ids := sender.sentIDs()
	require.Len(t, ids, 3)
	assert.Equal(t, []int64{
		task.Reminders[0].ID,
		task.Reminders[1].ID,
		task.Reminders[2].ID,
	}, ids)
}

func TestStartStopSafety(t *testing.T) {
	s := testutil.NewTestStore(t)
	sender := &fakeSender{}

	d := dispatch.New(s, sender, dispatch.Config{
		Interval:   10 * time.Millisecond,
		WebhookURL: func() string { return "https://discord.com/api/webhooks/1/x" },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	d.Start()
	d.Start() // idempotent
	time.Sleep(30 * time.Millisecond)
	d.Stop()
	d.Stop() // idempotent

	// After Stop no further scans run.
	done := d.Status().LastScan
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, done, d.Status().LastScan)
}
