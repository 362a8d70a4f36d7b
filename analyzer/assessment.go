// Package analyzer implements the buffered, interval-triggered analysis
// engine that consumes bus events and drives the summarization, assessment,
// and alert collaborators.
package analyzer

import (
	"context"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/errors"
	"github.com/ZhuYizhou2333/Market-insight-bot/event"
)

// Assessment is the combined market assessment returned by the Assessor.
// All five fields are required; a response missing any of them is discarded
// wholesale.
type Assessment struct {
	VolatilityIncreased bool     `json:"volatility_increased"`
	ActivityIncreased   bool     `json:"activity_increased"`
	Summary             string   `json:"summary"`
	HotTopics           []string `json:"hot_topics"`
	Confidence          float64  `json:"confidence"`
}

// Signaled reports whether the assessment calls for an alert.
func (a Assessment) Signaled() bool {
	return a.VolatilityIncreased || a.ActivityIncreased
}

// Validate rejects assessments outside the contract.
func (a Assessment) Validate() error {
	if a.Confidence < 0 || a.Confidence > 1 {
		return errors.WrapInvalid(errors.ErrMalformedResult, "Assessment", "Validate",
			"confidence out of range")
	}
	return nil
}

// Report is the composed alert handed to the dispatcher: the assessment plus
// the per-category summaries gathered at dispatch time.
type Report struct {
	Assessment  Assessment
	GeneratedAt time.Time
	BufferLen   int
	TotalEvents int64
	Summaries   map[event.Category]string
}

// Summarizer produces a free-text summary of recent events of one category.
// An empty result means no summary is available.
type Summarizer interface {
	Summarize(ctx context.Context, events []event.StreamEvent, category event.Category) (string, error)
}

// Assessor produces the combined assessment over a recent unfiltered sample.
type Assessor interface {
	Assess(ctx context.Context, events []event.StreamEvent) (Assessment, error)
}

// AlertDispatcher delivers one composed report. Failures are logged by the
// engine and never retried.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, report Report) error
}
