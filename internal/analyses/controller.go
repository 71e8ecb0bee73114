package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"trisenti-backend/internal/inference"
	"trisenti-backend/internal/shared/metrics"
	"trisenti-backend/internal/shared/telemetry"
)

const (
	// DefaultTickPeriod paces the cosmetic stage advance.
	DefaultTickPeriod = 1500 * time.Millisecond
	// DefaultRevealDelay is the dwell between receiving the classifier
	// outcome and exposing it, so the completion animation can land.
	DefaultRevealDelay = 700 * time.Millisecond
)

// Controller owns the current-analysis state machine. It drives the cosmetic
// stage ticker concurrently with the classifier call, applies the reveal
// delay, and commits finalized records to history. One submission is in
// flight at a time; a second Submit while one runs is rejected.
type Controller struct {
	History     Repo
	Classifier  inference.Classifier
	Watch       *Broadcaster
	TickPeriod  time.Duration
	RevealDelay time.Duration

	mu         sync.Mutex
	current    *AnalysisRecord
	inflightID string
	done       chan struct{}
}

// SubmitText starts an analysis of raw text. It returns immediately; the
// pipeline runs in the background until the record is finalized.
func (c *Controller) SubmitText(ctx context.Context, text string) (AnalysisRecord, error) {
	if strings.TrimSpace(text) == "" {
		return AnalysisRecord{}, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	record := NewRecord(ModalityText, TextLabel(text))
	return c.submit(ctx, record, func(ctx context.Context) (inference.Result, error) {
		return c.Classifier.ClassifyText(ctx, text)
	})
}

// SubmitFile starts an analysis of a video or audio payload.
func (c *Controller) SubmitFile(ctx context.Context, modality Modality, filename string, content []byte) (AnalysisRecord, error) {
	if modality != ModalityVideo && modality != ModalityAudio {
		return AnalysisRecord{}, fmt.Errorf("%w: modality %q does not accept files", ErrInvalidInput, modality)
	}
	if strings.TrimSpace(filename) == "" || len(content) == 0 {
		return AnalysisRecord{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	record := NewRecord(modality, filename)
	return c.submit(ctx, record, func(ctx context.Context) (inference.Result, error) {
		return c.Classifier.ClassifyFile(ctx, filename, content)
	})
}

// Recall re-surfaces a finalized history record as the current view. History
// is untouched and an in-flight pipeline keeps running toward history.
func (c *Controller) Recall(ctx context.Context, recordID string) (AnalysisRecord, error) {
	record, err := c.History.GetByID(ctx, recordID)
	if err != nil {
		return AnalysisRecord{}, err
	}
	c.mu.Lock()
	snapshot := record
	c.current = &snapshot
	c.mu.Unlock()
	c.broadcast(record)
	return record, nil
}

// Current returns a copy of the record currently in view.
func (c *Controller) Current() (AnalysisRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return AnalysisRecord{}, false
	}
	return *c.current, true
}

func (c *Controller) submit(ctx context.Context, record AnalysisRecord, classify func(context.Context) (inference.Result, error)) (AnalysisRecord, error) {
	c.mu.Lock()
	if c.inflightID != "" {
		c.mu.Unlock()
		return AnalysisRecord{}, ErrAnalysisInFlight
	}
	snapshot := record
	c.current = &snapshot
	c.inflightID = record.ID
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"analysis_id": record.ID,
		"modality":    record.Modality,
		"status":      record.Status,
		"stage":       record.Stage,
	})
	c.broadcast(record)

	// The pipeline outlives the submitting request; it must not die with
	// the request context.
	go func() {
		defer close(done)
		c.run(context.Background(), record, classify)
	}()

	return record, nil
}

type outcome struct {
	result inference.Result
	err    error
}

// run drives one submission to a terminal status. The classifier call is
// issued immediately and raced against the stage ticker; the outcome is
// applied only after the terminal stage is reached and the reveal delay has
// elapsed. All transitions for a submission happen on this goroutine.
func (c *Controller) run(ctx context.Context, record AnalysisRecord, classify func(context.Context) (inference.Result, error)) {
	defer func() {
		if r := recover(); r != nil {
			record.Status = StatusFailed
			record.FailureReason = fmt.Sprintf("internal error: %v", r)
			c.finalize(record)
		}
	}()

	outcomeCh := make(chan outcome, 1)
	go func() {
		result, err := classify(ctx)
		outcomeCh <- outcome{result: result, err: err}
	}()

	ticker := time.NewTicker(c.tickPeriod())
	defer ticker.Stop()

	var out *outcome
	for record.Stage < TerminalStage || out == nil {
		select {
		case <-ticker.C:
			if record.Stage < TerminalStage {
				record.Stage++
				c.publish(record)
			}
		case o := <-outcomeCh:
			out = &o
		}
	}

	time.Sleep(c.revealDelay())

	if out.err != nil {
		record.Status = StatusFailed
		record.FailureReason = failureMessage(out.err)
	} else {
		record.Status = StatusCompleted
		record.Stage = StageDone
		record.Result = buildResult(record.Modality, out.result)
	}
	c.finalize(record)
}

// publish updates the current view, but only while the in-flight record is
// still the one on display; a recalled record is never overwritten.
func (c *Controller) publish(record AnalysisRecord) {
	c.mu.Lock()
	if c.current != nil && c.current.ID == record.ID {
		snapshot := record
		c.current = &snapshot
	}
	c.mu.Unlock()

	telemetry.Info("analysis.stage", map[string]any{
		"analysis_id": record.ID,
		"stage":       record.Stage,
		"stage_name":  StageName(record.Stage),
	})
	c.broadcast(record)
}

func (c *Controller) finalize(record AnalysisRecord) {
	c.publish(record)

	// History must receive the record even if the submitting request's
	// context is long gone.
	if err := c.History.Append(context.Background(), record); err != nil {
		telemetry.Error("analysis.history_append_failed", map[string]any{
			"analysis_id": record.ID,
			"error":       err.Error(),
		})
	}

	c.mu.Lock()
	if c.inflightID == record.ID {
		c.inflightID = ""
	}
	c.mu.Unlock()

	duration := time.Since(record.CreatedAt)
	switch record.Status {
	case StatusCompleted:
		metrics.IncAnalysisCompleted()
	default:
		metrics.IncAnalysisFailed()
	}
	metrics.ObserveAnalysisDurationMs(float64(duration.Microseconds()) / 1000.0)
	telemetry.Info("analysis.status", map[string]any{
		"analysis_id":       record.ID,
		"modality":          record.Modality,
		"status":            record.Status,
		"status_transition": "processing->" + record.Status,
		"stage":             record.Stage,
		"failure_reason":    record.FailureReason,
		"duration_ms":       float64(duration.Microseconds()) / 1000.0,
	})
}

func (c *Controller) broadcast(record AnalysisRecord) {
	if c.Watch != nil {
		c.Watch.Publish(record)
	}
}

func (c *Controller) tickPeriod() time.Duration {
	if c.TickPeriod > 0 {
		return c.TickPeriod
	}
	return DefaultTickPeriod
}

func (c *Controller) revealDelay() time.Duration {
	if c.RevealDelay > 0 {
		return c.RevealDelay
	}
	return DefaultRevealDelay
}

// failureMessage maps gateway errors to user-visible text. Server-supplied
// detail is surfaced verbatim; unreachability gets actionable guidance.
func failureMessage(err error) string {
	var serverErr *inference.ServerError
	switch {
	case errors.Is(err, inference.ErrUnreachable):
		return "Could not reach the sentiment service. Is the backend running?"
	case errors.As(err, &serverErr):
		return serverErr.Error()
	case errors.Is(err, inference.ErrMalformedResponse):
		return "The sentiment service returned an unreadable response."
	default:
		return "Analysis failed: " + err.Error()
	}
}
