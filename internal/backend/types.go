// Package backend is the HTTP/JSON client for the dashboard API.
package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// TaskTypeEmail marks email-derived tasks. Every other type is a general task.
const TaskTypeEmail = "email"

// Display is a stat value rendered verbatim. Numbers keep their JSON text,
// strings keep their content.
type Display string

// UnmarshalJSON accepts a JSON string, number, boolean or null.
func (d *Display) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*d = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Display(s)
		return nil
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("display value must be a scalar, got %s", b)
	}
	if !json.Valid(b) {
		return fmt.Errorf("invalid display value %q", b)
	}
	*d = Display(b)
	return nil
}

// String implements fmt.Stringer.
func (d Display) String() string { return string(d) }

// Stats is the snapshot returned by GET /stats.
type Stats struct {
	ActiveTasks    Display `json:"active_tasks"`
	Revenue        Display `json:"revenue"`
	CompletedTasks Display `json:"completed_tasks"`
	SystemHealth   Display `json:"system_health"`
	LastUpdated    float64 `json:"last_updated,omitempty"`
}

// TaskSummary is one entry of GET /tasks.
type TaskSummary struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Sender  string  `json:"sender,omitempty"`
	Snippet string  `json:"snippet,omitempty"`
	Time    float64 `json:"time"`
}

// IsEmail reports whether the task belongs to the email subset.
func (t TaskSummary) IsEmail() bool {
	return t.Type == TaskTypeEmail
}

// Timestamp converts the epoch-seconds Time to a time.Time.
func (t TaskSummary) Timestamp() time.Time {
	return epoch(t.Time)
}

// TaskDetail is the body of GET /task/{id}.
type TaskDetail struct {
	Subject string `json:"subject,omitempty"`
	From    string `json:"from"`
	Body    string `json:"body"`
}

// PingResponse is the body of GET /ping.
type PingResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type completeRequest struct {
	ID string `json:"id"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func epoch(sec float64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
