package discord

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

// Interaction request and response types (the subset Discord sends to
// the /task command).
const (
	interactionPing    = 1
	interactionCommand = 2

	responsePong    = 1
	responseMessage = 4

	// flagEphemeral makes the reply visible only to the invoking user.
	flagEphemeral = 64
)

// deadlineLayout is the deadline format accepted by /task add.
const deadlineLayout = "2006-01-02 15:04"

// listLimit caps the entries shown by /task list; the total still
// reflects every matching task.
const listLimit = 10

// Interaction is an inbound interaction payload.
type Interaction struct {
	Type int             `json:"type"`
	Data InteractionData `json:"data"`
}

// InteractionData carries the invoked command and its options.
type InteractionData struct {
	Name    string              `json:"name"`
	Options []InteractionOption `json:"options"`
}

// InteractionOption is a command option value or a subcommand with
// nested options.
type InteractionOption struct {
	Name    string              `json:"name"`
	Type    int                 `json:"type"`
	Value   json.RawMessage     `json:"value,omitempty"`
	Options []InteractionOption `json:"options,omitempty"`
}

// InteractionResponse is the reply sent back to Discord.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

// InteractionResponseData is the message body of a response.
type InteractionResponseData struct {
	Content string `json:"content"`
	Flags   int    `json:"flags,omitempty"`
}

// VerifySignature checks the ed25519 interaction signature Discord
// attaches as X-Signature-Ed25519 over timestamp||body.
func VerifySignature(publicKeyHex, signatureHex, timestamp string, body []byte) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	msg := append([]byte(timestamp), body...)
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// ScanTrigger requests an immediate dispatch scan. Satisfied by the
// dispatch loop; bot commands use it so a freshly added task's overdue
// state is handled without waiting a full tick.
type ScanTrigger interface {
	TriggerScan()
}

// InteractionHandler executes /task subcommands against the repository.
type InteractionHandler struct {
	store   store.Repository
	trigger ScanTrigger
	now     func() time.Time
}

// NewInteractionHandler creates a handler. trigger may be nil.
func NewInteractionHandler(repo store.Repository, trigger ScanTrigger) *InteractionHandler {
	return &InteractionHandler{store: repo, trigger: trigger, now: time.Now}
}

// SetNowFunc overrides the clock used for deadline validation. Intended
// for tests.
func (h *InteractionHandler) SetNowFunc(now func() time.Time) {
	h.now = now
}

// Handle processes one interaction and returns the response to send.
func (h *InteractionHandler) Handle(ctx context.Context, in Interaction) InteractionResponse {
	if in.Type == interactionPing {
		return InteractionResponse{Type: responsePong}
	}
	if in.Type != interactionCommand || in.Data.Name != "task" {
		return errorResponse("Unknown command")
	}
	if len(in.Data.Options) == 0 {
		return errorResponse("Missing subcommand")
	}

	sub := in.Data.Options[0]
	switch sub.Name {
	case "add":
		return h.handleAdd(ctx, sub.Options)
	case "list":
		return h.handleList(ctx, sub.Options)
	case "complete":
		return h.handleComplete(ctx, sub.Options)
	default:
		return errorResponse(fmt.Sprintf("Unknown subcommand %q", sub.Name))
	}
}

// handleAdd creates a task. A deadline that does not parse or is not in
// the future is rejected before any mutation.
func (h *InteractionHandler) handleAdd(ctx context.Context, opts []InteractionOption) InteractionResponse {
	title := stringOption(opts, "title")
	description := stringOption(opts, "description")
	deadlineRaw := stringOption(opts, "deadline")

	reminders := defaultReminderCount
	if n, ok := intOption(opts, "reminders"); ok {
		reminders = n
	}

	deadline, err := time.ParseInLocation(deadlineLayout, deadlineRaw, time.Local)
	if err != nil {
		return errorResponse("Invalid deadline. Use the format YYYY-MM-DD HH:MM.")
	}
	if !deadline.After(h.now()) {
		return errorResponse("Deadline must be in the future.")
	}

	task, err := h.store.CreateTask(ctx, store.CreateTaskInput{
		Title:         title,
		Description:   description,
		DeadlineMs:    deadline.UnixMilli(),
		ReminderCount: reminders,
	})
	if err != nil {
		return storeErrorResponse(err)
	}

	if h.trigger != nil {
		h.trigger.TriggerScan()
	}

	return messageResponse(fmt.Sprintf(
		"Task #%d %q created with %d reminders, deadline %s.",
		task.ID, task.Title, task.ReminderCount,
		task.Deadline().Format(deadlineLayout),
	))
}

// handleList shows up to listLimit tasks plus the total count.
func (h *InteractionHandler) handleList(ctx context.Context, opts []InteractionOption) InteractionResponse {
	var filter store.TaskFilter
	switch stringOption(opts, "status") {
	case "active":
		status := model.StatusActive
		filter.Status = &status
	case "completed":
		status := model.StatusCompleted
		filter.Status = &status
	}
	filter.Limit = listLimit

	tasks, err := h.store.ListTasks(ctx, filter)
	if err != nil {
		return storeErrorResponse(err)
	}
	total, err := h.store.CountTasks(ctx, filter)
	if err != nil {
		return storeErrorResponse(err)
	}

	if total == 0 {
		return messageResponse("No tasks found.")
	}

	var b strings.Builder
	for _, t := range tasks {
		marker := "🔔"
		if t.Completed() {
			marker = "✅"
		}
		fmt.Fprintf(&b, "%s #%d %s — deadline %s\n",
			marker, t.ID, t.Title, t.Deadline().Format(deadlineLayout))
	}
	fmt.Fprintf(&b, "%d of %d tasks shown.", len(tasks), total)

	return messageResponse(b.String())
}

// handleComplete performs the one-way completed transition.
func (h *InteractionHandler) handleComplete(ctx context.Context, opts []InteractionOption) InteractionResponse {
	id, ok := intOption(opts, "task_id")
	if !ok {
		return errorResponse("task_id is required.")
	}

	if err := h.store.CompleteTask(ctx, int64(id)); err != nil {
		return storeErrorResponse(err)
	}

	return messageResponse(fmt.Sprintf("Task #%d marked as completed.", id))
}

// stringOption returns the named string option, or "".
func stringOption(opts []InteractionOption, name string) string {
	for _, o := range opts {
		if o.Name != name {
			continue
		}
		var v string
		if json.Unmarshal(o.Value, &v) == nil {
			return v
		}
	}
	return ""
}

// intOption returns the named integer option.
func intOption(opts []InteractionOption, name string) (int, bool) {
	for _, o := range opts {
		if o.Name != name {
			continue
		}
		var v int
		if json.Unmarshal(o.Value, &v) == nil {
			return v, true
		}
	}
	return 0, false
}

func messageResponse(content string) InteractionResponse {
	return InteractionResponse{
		Type: responseMessage,
		Data: &InteractionResponseData{Content: content},
	}
}

func errorResponse(content string) InteractionResponse {
	return InteractionResponse{
		Type: responseMessage,
		Data: &InteractionResponseData{Content: content, Flags: flagEphemeral},
	}
}

// storeErrorResponse maps repository errors onto user-visible messages.
func storeErrorResponse(err error) InteractionResponse {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errorResponse("Task not found.")
	case errors.Is(err, store.ErrInvalidInput):
		return errorResponse(fmt.Sprintf("Invalid input: %v", err))
	case errors.Is(err, store.ErrUnavailable):
		return errorResponse("The task store is unreachable, try again shortly.")
	default:
		return errorResponse("Something went wrong, try again shortly.")
	}
}
