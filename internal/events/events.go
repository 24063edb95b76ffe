// Package events describes the run summary published after each run.
package events

import (
	"context"
	"time"
)

// TypeRunCompleted tags RunCompleted payloads.
const TypeRunCompleted = "screenshot.run.completed"

// Publisher sends an event payload and returns the broker message ID.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) (string, error)
}

// Image is one published screenshot.
type Image struct {
	SourceURL string `json:"source_url"`
	PublicURL string `json:"public_url"`
	FileName  string `json:"file_name"`
}

// Failure is one target that produced no image.
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// RunCompleted summarises one run.
type RunCompleted struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Mode       string    `json:"mode"`
	Total      int       `json:"total"`
	Reachable  int       `json:"reachable"`
	Succeeded  int       `json:"succeeded"`
	Images     []Image   `json:"images"`
	Failures   []Failure `json:"failures,omitempty"`
	Notified   bool      `json:"notified"`
	Error      string    `json:"error,omitempty"`
}
