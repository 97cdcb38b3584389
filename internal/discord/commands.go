package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Discord application command option types (subset used here).
const (
	optionTypeSubCommand = 1
	optionTypeString     = 3
	optionTypeInteger    = 4
)

// defaultReminderCount is applied when /task add omits the reminders option.
const defaultReminderCount = 3

// commandOption describes one option of an application command.
type commandOption struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        int             `json:"type"`
	Required    bool            `json:"required,omitempty"`
	MinValue    *int            `json:"min_value,omitempty"`
	MaxValue    *int            `json:"max_value,omitempty"`
	Choices     []commandChoice `json:"choices,omitempty"`
	Options     []commandOption `json:"options,omitempty"`
}

// commandChoice is a fixed choice for a string option.
type commandChoice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// command is a top-level application command definition.
type command struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Options     []commandOption `json:"options"`
}

// taskCommands returns the /task command tree registered with Discord.
func taskCommands() []command {
	one, ten := 1, 10
	return []command{
		{
			Name:        "task",
			Description: "Manage tasks",
			Options: []commandOption{
				{
					Name:        "add",
					Description: "Add a new task",
					Type:        optionTypeSubCommand,
					Options: []commandOption{
						{Name: "title", Description: "Task title", Type: optionTypeString, Required: true},
						{Name: "description", Description: "Task description", Type: optionTypeString},
						{Name: "deadline", Description: "Deadline in YYYY-MM-DD HH:MM format", Type: optionTypeString, Required: true},
						{Name: "reminders", Description: "Number of reminders (default: 3)", Type: optionTypeInteger, MinValue: &one, MaxValue: &ten},
					},
				},
				{
					Name:        "list",
					Description: "Show the task list",
					Type:        optionTypeSubCommand,
					Options: []commandOption{
						{
							Name:        "status",
							Description: "Task status",
							Type:        optionTypeString,
							Choices: []commandChoice{
								{Name: "Active", Value: "active"},
								{Name: "Completed", Value: "completed"},
								{Name: "All", Value: "all"},
							},
						},
					},
				},
				{
					Name:        "complete",
					Description: "Mark a task as completed",
					Type:        optionTypeSubCommand,
					Options: []commandOption{
						{Name: "task_id", Description: "Task id", Type: optionTypeInteger, Required: true},
					},
				},
			},
		},
	}
}

// RegisterClient registers the slash commands with the Discord API.
type RegisterClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRegisterClient returns a client against the public Discord API.
func NewRegisterClient() *RegisterClient {
	return &RegisterClient{
		baseURL:    "https://discord.com/api/v10",
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetBaseURL overrides the API root. Intended for tests.
func (c *RegisterClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(base, "/")
}

// RegisterCommands replaces the application's global command set with
// the /task command tree.
func (c *RegisterClient) RegisterCommands(ctx context.Context, applicationID, botToken string) error {
	if applicationID == "" || botToken == "" {
		return fmt.Errorf("application id and bot token are required")
	}

	data, err := json.Marshal(taskCommands())
	if err != nil {
		return fmt.Errorf("marshaling commands: %w", err)
	}

	url := fmt.Sprintf("%s/applications/%s/commands", c.baseURL, applicationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}
