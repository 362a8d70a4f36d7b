package analyzer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ZhuYizhou2333/Market-insight-bot/event"
	"github.com/ZhuYizhou2333/Market-insight-bot/metric"
	"github.com/ZhuYizhou2333/Market-insight-bot/pkg/buffer"
)

// Config holds the engine's trigger cadences and sample sizes.
type Config struct {
	// BufferSize is the event ring capacity.
	BufferSize int
	// AnalysisInterval is the global event count between combined assessments.
	AnalysisInterval int
	// CategoryIntervals maps a category to its per-category summary cadence.
	// Categories absent from the map never trigger summaries on their own.
	CategoryIntervals map[event.Category]int
	// SummarySampleSize is how many recent events feed each summary.
	SummarySampleSize int
	// AssessmentSampleSize is how many recent events feed each assessment.
	AssessmentSampleSize int
}

// DefaultConfig mirrors the production cadences.
func DefaultConfig() Config {
	return Config{
		BufferSize:       1000,
		AnalysisInterval: 1000,
		CategoryIntervals: map[event.Category]int{
			event.CategoryChannel: 50,
			event.CategoryGroup:   1000,
		},
		SummarySampleSize:    100,
		AssessmentSampleSize: 500,
	}
}

// Engine buffers incoming events and fires its collaborators on count-based
// intervals. Ingest is one logical step: buffer append, counter updates, and
// any resulting trigger complete before the next event is processed. All
// collaborator calls are synchronous and block the ingest path; that
// backpressure is deliberate.
type Engine struct {
	cfg        Config
	summarizer Summarizer
	assessor   Assessor
	dispatcher AlertDispatcher
	logger     *slog.Logger
	metrics    *metric.Metrics
	now        func() time.Time

	mu        sync.Mutex
	buf       *buffer.Ring[event.StreamEvent]
	total     int64
	lastRun   int64
	counts    map[event.Category]int64
	baselines map[event.Category]int64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger.With("component", "analyzer")
		}
	}
}

// WithMetrics enables Prometheus instrumentation of analysis activity.
func WithMetrics(m *metric.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock replaces the report timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine with the given collaborators.
func NewEngine(cfg Config, summarizer Summarizer, assessor Assessor, dispatcher AlertDispatcher, opts ...EngineOption) *Engine {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	e := &Engine{
		cfg:        cfg,
		summarizer: summarizer,
		assessor:   assessor,
		dispatcher: dispatcher,
		logger:     slog.Default(),
		now:        time.Now,
		buf:        buffer.NewRing[event.StreamEvent](cfg.BufferSize),
		counts:     make(map[event.Category]int64),
		baselines:  make(map[event.Category]int64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest processes one event: append, count, and fire any due triggers.
// Collaborator failures never propagate; Ingest itself cannot fail.
func (e *Engine) Ingest(ctx context.Context, ev event.StreamEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.buf.Append(ev)
	e.total++
	e.counts[ev.Category]++

	if interval, ok := e.cfg.CategoryIntervals[ev.Category]; ok && interval > 0 {
		if e.counts[ev.Category]-e.baselines[ev.Category] >= int64(interval) {
			// Baseline advances before the collaborator runs so a slow or
			// re-entrant call can never double-fire the same crossing.
			e.baselines[ev.Category] = e.counts[ev.Category]
			e.summarizeCategory(ctx, ev.Category)
		}
	}

	if e.cfg.AnalysisInterval > 0 && e.total-e.lastRun >= int64(e.cfg.AnalysisInterval) {
		e.lastRun = e.total
		e.runAssessment(ctx)
	}
}

// summarizeCategory invokes the summarizer over the latest sample of one
// category. A failed or empty result is logged and treated as no summary;
// it never blocks further ingestion.
func (e *Engine) summarizeCategory(ctx context.Context, category event.Category) string {
	sample := e.buf.RecentFunc(e.cfg.SummarySampleSize, func(ev event.StreamEvent) bool {
		return ev.Category == category
	})
	if len(sample) == 0 {
		e.logger.Warn("no buffered events to summarize", "category", category)
		e.recordSummary(category, "empty")
		return ""
	}

	summary, err := e.summarizer.Summarize(ctx, sample, category)
	if err != nil {
		e.logger.Warn("summary generation failed", "category", category, "error", err)
		e.recordSummary(category, "error")
		return ""
	}
	if summary == "" {
		e.logger.Warn("no summary available", "category", category)
		e.recordSummary(category, "empty")
		return ""
	}
	e.logger.Info("summary generated", "category", category, "summary", summary)
	e.recordSummary(category, "ok")
	return summary
}

func (e *Engine) recordSummary(category event.Category, status string) {
	if e.metrics != nil {
		e.metrics.SummariesGenerated.WithLabelValues(category.String(), status).Inc()
	}
}

// runAssessment invokes the assessor over the latest unfiltered sample and,
// when the assessment signals, composes and dispatches exactly one report.
func (e *Engine) runAssessment(ctx context.Context) {
	start := e.now()
	e.logger.Info("starting combined assessment", "total_events", e.total, "buffer_len", e.buf.Len())

	sample := e.buf.Recent(e.cfg.AssessmentSampleSize)
	assessment, err := e.assessor.Assess(ctx, sample)
	if err == nil {
		err = assessment.Validate()
	}
	if err != nil {
		// A malformed result is discarded wholesale; no partial use.
		e.logger.Warn("assessment discarded", "error", err)
		if e.metrics != nil {
			e.metrics.AssessmentsRejected.Inc()
		}
		return
	}
	if e.metrics != nil {
		e.metrics.AssessmentsRun.Inc()
		e.metrics.RecordAnalysisDuration("assessment", e.now().Sub(start))
	}
	e.logger.Info("assessment complete",
		"volatility_increased", assessment.VolatilityIncreased,
		"activity_increased", assessment.ActivityIncreased,
		"confidence", assessment.Confidence)

	if !assessment.Signaled() {
		e.logger.Info("no significant volatility or activity increase detected")
		return
	}

	// Fresh per-category summaries accompany every alert, independent of
	// each category's own cadence.
	summaries := make(map[event.Category]string, len(e.cfg.CategoryIntervals))
	for category := range e.cfg.CategoryIntervals {
		summaries[category] = e.summarizeCategory(ctx, category)
	}

	report := Report{
		Assessment:  assessment,
		GeneratedAt: e.now(),
		BufferLen:   e.buf.Len(),
		TotalEvents: e.total,
		Summaries:   summaries,
	}
	if err := e.dispatcher.Dispatch(ctx, report); err != nil {
		e.logger.Error("alert dispatch failed", "error", err)
		if e.metrics != nil {
			e.metrics.AlertsDispatched.WithLabelValues("error").Inc()
		}
		return
	}
	e.logger.Info("alert dispatched", "confidence", assessment.Confidence)
	if e.metrics != nil {
		e.metrics.AlertsDispatched.WithLabelValues("ok").Inc()
	}
}

// Stats is a point-in-time snapshot of the engine's counters.
type Stats struct {
	TotalEvents    int64
	BufferLen      int
	LastAssessment int64
	NextAssessment int64
	Counts         map[event.Category]int64
	NextSummaries  map[event.Category]int64
}

// Snapshot returns the engine's current counters.
func (e *Engine) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[event.Category]int64, len(e.counts))
	for k, v := range e.counts {
		counts[k] = v
	}
	next := make(map[event.Category]int64, len(e.cfg.CategoryIntervals))
	for k, interval := range e.cfg.CategoryIntervals {
		next[k] = e.baselines[k] + int64(interval)
	}
	return Stats{
		TotalEvents:    e.total,
		BufferLen:      e.buf.Len(),
		LastAssessment: e.lastRun,
		NextAssessment: e.lastRun + int64(e.cfg.AnalysisInterval),
		Counts:         counts,
		NextSummaries:  next,
	}
}
