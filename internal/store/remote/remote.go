package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

// defaultFeedInterval is how often the change feed is polled when the
// store offers no push channel. Subscribers observe changes with at
// most this much lag.
const defaultFeedInterval = 5 * time.Second

// Store implements store.Repository against the remote live task store.
// The connection handle is created once in cmd and injected; change
// notifications are produced by polling the store's change feed and
// fanned out through an in-process hub.
type Store struct {
	client       *Client
	hub          *store.EventHub
	logger       *slog.Logger
	feedInterval time.Duration

	mu      sync.Mutex
	cursor  int64
	stopCh  chan struct{}
	polling bool
}

// New wraps an API client as a Repository.
func New(client *Client, logger *slog.Logger) *Store {
	return &Store{
		client:       client,
		hub:          store.NewEventHub(),
		logger:       logger,
		feedInterval: defaultFeedInterval,
	}
}

// changeFeedPage is one page of the store's change feed.
type changeFeedPage struct {
	Cursor int64         `json:"cursor"`
	Events []store.Event `json:"events"`
}

// listTasksResponse is the remote list envelope.
type listTasksResponse struct {
	Tasks []model.Task `json:"tasks"`
	Total int          `json:"total"`
}

// dueRemindersResponse is the remote due-reminder projection, the
// equivalent of the local adapter's joined query.
type dueRemindersResponse struct {
	Due []store.DueReminder `json:"due"`
}

// CreateTask submits the task for creation; validation and reminder
// scheduling run inside the remote store's insert, so creation and
// scheduling stay atomic there as well.
func (s *Store) CreateTask(
	ctx context.Context,
	in store.CreateTaskInput,
) (model.Task, error) {
	var task model.Task
	err := s.client.Post(ctx, "/tasks", map[string]interface{}{
		"title":          in.Title,
		"description":    in.Description,
		"deadline_ms":    in.DeadlineMs,
		"reminder_count": in.ReminderCount,
	}, &task)
	if err != nil {
		return model.Task{}, fmt.Errorf("creating remote task: %w", err)
	}
	return task, nil
}

// GetTask retrieves a single task with its reminders.
func (s *Store) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	if err := s.client.Get(ctx, fmt.Sprintf("/tasks/%d", id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasks retrieves tasks matching the filter.
func (s *Store) ListTasks(
	ctx context.Context,
	filter store.TaskFilter,
) ([]model.Task, error) {
	var resp listTasksResponse
	if err := s.client.Get(ctx, "/tasks"+filterQuery(filter), &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// CountTasks returns the number of tasks matching the filter.
func (s *Store) CountTasks(
	ctx context.Context,
	filter store.TaskFilter,
) (int, error) {
	// The list envelope carries the total irrespective of pagination.
	countFilter := filter
	countFilter.Limit = 1
	countFilter.Offset = 0

	var resp listTasksResponse
	if err := s.client.Get(ctx, "/tasks"+filterQuery(countFilter), &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// CompleteTask transitions a task to completed.
func (s *Store) CompleteTask(ctx context.Context, id int64) error {
	return s.client.Post(ctx, fmt.Sprintf("/tasks/%d/complete", id), nil, nil)
}

// DeleteTask removes a task and its reminders.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.client.Delete(ctx, fmt.Sprintf("/tasks/%d", id))
}

// DueReminders returns the store's due-reminder projection at nowMs.
func (s *Store) DueReminders(
	ctx context.Context,
	nowMs int64,
) ([]store.DueReminder, error) {
	var resp dueRemindersResponse
	path := fmt.Sprintf("/reminders/due?now_ms=%d", nowMs)
	if err := s.client.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Due, nil
}

// MarkReminderSent flips a reminder's sent flag. The remote store keeps
// this idempotent, which matters when two processes race on the same
// overdue reminder.
func (s *Store) MarkReminderSent(ctx context.Context, reminderID int64) error {
	return s.client.Post(ctx, fmt.Sprintf("/reminders/%d/sent", reminderID), nil, nil)
}

// Subscribe registers for change events. The first subscription starts
// the change-feed poller.
func (s *Store) Subscribe(kinds ...store.EventKind) *store.Subscription {
	s.mu.Lock()
	if !s.polling {
		s.polling = true
		s.stopCh = make(chan struct{})
		go s.pollFeed(s.stopCh)
	}
	s.mu.Unlock()

	return s.hub.Subscribe(kinds...)
}

// Close stops the feed poller and cancels all subscriptions.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.polling {
		close(s.stopCh)
		s.polling = false
	}
	s.mu.Unlock()

	s.hub.Close()
	return nil
}

// pollFeed polls the change feed and republishes its events. Feed
// errors are logged and retried on the next tick; the cursor only
// advances after a successful page.
func (s *Store) pollFeed(stopCh <-chan struct{}) {
	ticker := time.NewTicker(s.feedInterval)
	defer ticker.Stop()

	s.fetchChanges()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.fetchChanges()
		}
	}
}

func (s *Store) fetchChanges() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	var page changeFeedPage
	path := fmt.Sprintf("/changes?cursor=%d", cursor)
	if err := s.client.Get(ctx, path, &page); err != nil {
		s.logger.Warn("change feed poll failed", "error", err)
		return
	}

	for _, ev := range page.Events {
		s.hub.Publish(ev)
	}

	s.mu.Lock()
	s.cursor = page.Cursor
	s.mu.Unlock()
}

// filterQuery renders a TaskFilter as a query string.
func filterQuery(filter store.TaskFilter) string {
	q := url.Values{}
	if filter.Status != nil {
		q.Set("status", *filter.Status)
	}
	if filter.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", filter.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
