// Package dispatch runs the periodic scan that finds due, unsent
// reminders and delivers them to Discord.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

// State represents what the dispatch loop is currently doing.
type State int

const (
	Idle State = iota
	Scanning
)

// Sender delivers a single reminder message. Implemented by the Discord
// webhook sender; faked in tests.
type Sender interface {
	Send(ctx context.Context, task model.Task, reminder model.Reminder) error
}

// Status is a snapshot of the loop's progress, surfaced through the
// status endpoint.
type Status struct {
	State      State
	LastScan   time.Time
	LastError  error
	Dispatched int // reminders delivered since start
}

// Config tunes the dispatcher.
type Config struct {
	// Interval between scans. Defaults to 60s.
	Interval time.Duration

	// DeliveryTimeout bounds a single webhook call so one hung delivery
	// cannot stall the loop past its period. Defaults to 10s.
	DeliveryTimeout time.Duration

	// WebhookURL returns the current delivery target. When it returns
	// an empty string the scan is skipped entirely and nothing is
	// marked sent.
	WebhookURL func() string
}

// Dispatcher periodically scans the repository for due reminders and
// triggers delivery exactly once per reminder. Delivery failures leave
// the reminder unsent so the next tick retries it.
type Dispatcher struct {
	store  store.Repository
	sender Sender
	cfg    Config
	logger *slog.Logger

	// now is swappable in tests.
	now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	trigger chan struct{}
	status  Status
}

// New creates a dispatcher. It does not start scanning until Start.
func New(repo store.Repository, sender Sender, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	if cfg.WebhookURL == nil {
		cfg.WebhookURL = func() string { return "" }
	}

	return &Dispatcher{
		store:   repo,
		sender:  sender,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		trigger: make(chan struct{}, 1),
	}
}

// SetNowFunc overrides the wall clock used for scan snapshots. Intended
// for tests.
func (d *Dispatcher) SetNowFunc(now func() time.Time) {
	d.now = now
}

// Start launches the scan loop: one immediate scan, then one per tick.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.run()
}

// Stop halts the loop. Safe to call while a scan is in flight: the scan
// (including any delivery already initiated) completes, and no new scan
// starts afterwards. Returns once the loop goroutine has exited.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	done := d.doneCh
	d.mu.Unlock()

	<-done
}

// TriggerScan requests an immediate scan, used by synchronous
// user-facing paths such as bot commands. Non-blocking; a pending
// trigger is coalesced.
func (d *Dispatcher) TriggerScan() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the loop's progress.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

func (d *Dispatcher) run() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	// Immediate scan on startup.
	d.ScanOnce(context.Background())

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.ScanOnce(context.Background())
		case <-d.trigger:
			d.ScanOnce(context.Background())
		}
	}
}

// ScanOnce performs a single scan pass against one wall-clock snapshot.
// Errors never propagate out of a scan; a failing reminder or an
// unreachable store only affects this pass.
func (d *Dispatcher) ScanOnce(ctx context.Context) {
	d.setState(Scanning)
	defer d.setState(Idle)

	// No delivery target configured: skip entirely, mark nothing sent.
	if d.cfg.WebhookURL() == "" {
		return
	}

	now := d.now()
	due, err := d.store.DueReminders(ctx, now.UnixMilli())
	if err != nil {
		// Unavailable store means skip this scan and retry next tick.
		d.logger.Warn("due reminder scan failed", "error", err)
		d.recordScan(now, err)
		return
	}

	seen := make(map[int64]bool, len(due))
	delivered := 0
	var lastErr error

	for _, item := range due {
		// Dedupe by reminder id within the pass.
		if seen[item.Reminder.ID] {
			continue
		}
		seen[item.Reminder.ID] = true

		if err := d.deliver(ctx, item); err != nil {
			// Left unsent; the next tick retries. Never aborts the
			// rest of the scan.
			d.logger.Warn("reminder delivery failed",
				"task_id", item.Task.ID,
				"reminder_id", item.Reminder.ID,
				"error", err,
			)
			lastErr = err
			continue
		}
		delivered++
	}

	d.recordScan(now, lastErr)
	d.addDispatched(delivered)

	if delivered > 0 {
		d.logger.Info("reminders dispatched", "count", delivered)
	}
}

// deliver sends one reminder and marks it sent on success.
func (d *Dispatcher) deliver(ctx context.Context, item store.DueReminder) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
	defer cancel()

	if err := d.sender.Send(sendCtx, item.Task, item.Reminder); err != nil {
		return err
	}

	if err := d.store.MarkReminderSent(ctx, item.Reminder.ID); err != nil {
		// Delivery happened but the flag didn't stick; the reminder
		// will be re-sent next tick. markReminderSent is idempotent
		// precisely so this race stays harmless.
		return err
	}

	return nil
}

func (d *Dispatcher) setState(s State) {
	d.mu.Lock()
	d.status.State = s
	d.mu.Unlock()
}

func (d *Dispatcher) recordScan(at time.Time, err error) {
	d.mu.Lock()
	d.status.LastScan = at
	d.status.LastError = err
	d.mu.Unlock()
}

func (d *Dispatcher) addDispatched(n int) {
	d.mu.Lock()
	d.status.Dispatched += n
	d.mu.Unlock()
}
