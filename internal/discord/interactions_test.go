package discord_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/discord"
	"taskbot/internal/model"
	"taskbot/internal/store"
	"taskbot/tests/testutil"
)

func strOption(name, value string) discord.InteractionOption {
	raw, _ := json.Marshal(value)
	return discord.InteractionOption{Name: name, Type: 3, Value: raw}
}

func intOpt(name string, value int) discord.InteractionOption {
	raw, _ := json.Marshal(value)
	return discord.InteractionOption{Name: name, Type: 4, Value: raw}
}

func taskInteraction(sub string, opts ...discord.InteractionOption) discord.Interaction {
	return discord.Interaction{
		Type: 2,
		Data: discord.InteractionData{
			Name: "task",
			Options: []discord.InteractionOption{
				{Name: sub, Type: 1, Options: opts},
			},
		},
	}
}

func TestHandlePing(t *testing.T) {
	h := discord.NewInteractionHandler(testutil.NewTestStore(t), nil)
	resp := h.Handle(context.Background(), discord.Interaction{Type: 1})
	assert.Equal(t, 1, resp.Type)
	assert.Nil(t, resp.Data)
}

func TestHandleAddCreatesTask(t *testing.T) {
	s := testutil.NewTestStore(t)
	h := discord.NewInteractionHandler(s, nil)

	deadline := time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04")
	resp := h.Handle(context.Background(), taskInteraction("add",
		strOption("title", "write thesis"),
		strOption("deadline", deadline),
		intOpt("reminders", 5),
	))

	assert.Equal(t, 4, resp.Type)
	assert.Contains(t, resp.Data.Content, "write thesis")

	tasks, err := s.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 5, tasks[0].ReminderCount)
	assert.Len(t, tasks[0].Reminders, 5)
}

func TestHandleAddDefaultsToThreeReminders(t *testing.T) {
	s := testutil.NewTestStore(t)
	h := discord.NewInteractionHandler(s, nil)

	deadline := time.Now().Add(24 * time.Hour).Format("2006-01-02 15:04")
	h.Handle(context.Background(), taskInteraction("add",
		strOption("title", "defaults"),
		strOption("deadline", deadline),
	))

	tasks, err := s.ListTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 3, tasks[0].ReminderCount)
}

func TestHandleAddRejectsPastDeadline(t *testing.T) {
	s := testutil.NewTestStore(t)
	h := discord.NewInteractionHandler(s, nil)

	resp := h.Handle(context.Background(), taskInteraction("add",
		strOption("title", "too late"),
		strOption("deadline", "2020-01-01 00:00"),
	))

	assert.Contains(t, resp.Data.Content, "future")
	assert.Equal(t, 64, resp.Data.Flags)

	// No mutation happened.
	count, err := s.CountTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleAddRejectsUnparseableDeadline(t *testing.T) {
	s := testutil.NewTestStore(t)
	h := discord.NewInteractionHandler(s, nil)

	resp := h.Handle(context.Background(), taskInteraction("add",
		strOption("title", "bad date"),
		strOption("deadline", "tomorrow-ish"),
	))

	assert.Contains(t, resp.Data.Content, "YYYY-MM-DD HH:MM")

	count, err := s.CountTasks(context.Background(), store.TaskFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleListCapsAtTenWithTotal(t *testing.T) {
	s := testutil.NewTestStore(t)
	h := discord.NewInteractionHandler(s, nil)
	ctx := context.Background()

	for i := 0; i < 13; i++ {
		_, err := s.CreateTask(ctx, store.CreateTaskInput{
			Title:         fmt.Sprintf("task %d", i),
			DeadlineMs:    time.Now().Add(time.Duration(i+1) * time.Hour).UnixMilli(),
			ReminderCount: 1,
		})
		require.NoError(t, err)
	}

	resp := h.Handle(ctx, taskInteraction("list", strOption("status", "all")))
	assert.Contains(t, resp.Data.Content, "10 of 13 tasks shown.")
}

func TestHandleListFiltersStatus(t *testing.T) {
	s := testutil.NewTestStore(t)
	h := discord.NewInteractionHandler(s, nil)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateTaskInput{
		Title: "a", DeadlineMs: time.Now().Add(time.Hour).UnixMilli(), ReminderCount: 1,
	})
	require.NoError(t, err)
	_, err = s.CreateTask(ctx, store.CreateTaskInput{
		Title: "b", DeadlineMs: time.Now().Add(time.Hour).UnixMilli(), ReminderCount: 1,
	})
	require.NoError(t, err)
	require.NoError(t, s.CompleteTask(ctx, task.ID))

	resp := h.Handle(ctx, taskInteraction("list", strOption("status", "completed")))
	assert.Contains(t, resp.Data.Content, "✅ #1 a")
	assert.Contains(t, resp.Data.Content, "1 of 1 tasks shown.")
}

func TestHandleComplete(t *testing.T) {
	s := testutil.NewTestStore(t)
	h := discord.NewInteractionHandler(s, nil)
	ctx := context.Background()

	task, err := s.CreateTask(ctx, store.CreateTaskInput{
		Title: "finish", DeadlineMs: time.Now().Add(time.Hour).UnixMilli(), ReminderCount: 1,
	})
	require.NoError(t, err)

	resp := h.Handle(ctx, taskInteraction("complete", intOpt("task_id", int(task.ID))))
	assert.Contains(t, resp.Data.Content, "completed")

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestHandleCompleteUnknownTask(t *testing.T) {
	h := discord.NewInteractionHandler(testutil.NewTestStore(t), nil)

	resp := h.Handle(context.Background(), taskInteraction("complete", intOpt("task_id", 404)))
	assert.Contains(t, resp.Data.Content, "not found")
	assert.Equal(t, 64, resp.Data.Flags)
}

func TestVerifySignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	body := []byte(`{"type":1}`)
	timestamp := "1700000000"
	sig := ed25519.Sign(priv, append([]byte(timestamp), body...))

	pubHex := hex.EncodeToString(pub)
	sigHex := hex.EncodeToString(sig)

	assert.True(t, discord.VerifySignature(pubHex, sigHex, timestamp, body))
	assert.False(t, discord.VerifySignature(pubHex, sigHex, "1700000001", body), "tampered timestamp")
	assert.False(t, discord.VerifySignature(pubHex, sigHex, timestamp, []byte(`{"type":2}`)), "tampered body")
	assert.False(t, discord.VerifySignature("zz", sigHex, timestamp, body), "bad public key")
}
