package runner

import (
	"time"

	"github.com/JakeFAU/screenshot-daily/internal/capture"
	"github.com/JakeFAU/screenshot-daily/internal/events"
)

// Run modes.
const (
	ModeLocal      = "local"
	ModeDebugLocal = "debug-local"
	ModeCI         = "ci"
)

// PublishedImage pairs a captured file with its public URL.
type PublishedImage struct {
	SourceURL string
	FileName  string
	LocalPath string
	PublicURL string
}

// Summary describes what one run did.
type Summary struct {
	RunID      string
	Mode       string
	StartedAt  time.Time
	FinishedAt time.Time

	Total     int
	Reachable int
	Images    []PublishedImage
	Results   []capture.Result
	Skipped   []string

	Pushed          bool
	URLListSaved    bool
	NotifyAttempted bool
	Notified        bool
}

// Succeeded is the number of published images.
func (s Summary) Succeeded() int {
	return len(s.Images)
}

// URLs lists the public image URLs in target order.
func (s Summary) URLs() []string {
	out := make([]string, 0, len(s.Images))
	for _, img := range s.Images {
		out = append(out, img.PublicURL)
	}
	return out
}

// Event converts the summary into a RunCompleted payload.
func (s Summary) Event(runErr error) events.RunCompleted {
	ev := events.RunCompleted{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Mode:       s.Mode,
		Total:      s.Total,
		Reachable:  s.Reachable,
		Succeeded:  s.Succeeded(),
		Images:     make([]events.Image, 0, len(s.Images)),
		Notified:   s.Notified,
	}
	for _, img := range s.Images {
		ev.Images = append(ev.Images, events.Image{
			SourceURL: img.SourceURL,
			PublicURL: img.PublicURL,
			FileName:  img.FileName,
		})
	}
	for _, url := range s.Skipped {
		ev.Failures = append(ev.Failures, events.Failure{URL: url, Reason: "unreachable"})
	}
	for _, res := range s.Results {
		if res.Err != nil {
			ev.Failures = append(ev.Failures, events.Failure{URL: res.URL, Reason: res.Err.Error()})
		}
	}
	if runErr != nil {
		ev.Error = runErr.Error()
	}
	return ev
}
