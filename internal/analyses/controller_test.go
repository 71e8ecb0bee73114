package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"trisenti-backend/internal/inference"
)

type fakeClassifier struct {
	classifyText func(ctx context.Context, text string) (inference.Result, error)
	classifyFile func(ctx context.Context, filename string, content []byte) (inference.Result, error)
}

func (f *fakeClassifier) ClassifyText(ctx context.Context, text string) (inference.Result, error) {
	if f.classifyText == nil {
		return positiveResult(), nil
	}
	return f.classifyText(ctx, text)
}

func (f *fakeClassifier) ClassifyFile(ctx context.Context, filename string, content []byte) (inference.Result, error) {
	if f.classifyFile == nil {
		return positiveResult(), nil
	}
	return f.classifyFile(ctx, filename, content)
}

func positiveResult() inference.Result {
	return inference.Result{
		Sentiment:  "Positive",
		Confidence: 0.92,
		Transcript: "what a great day",
		Breakdown:  inference.Breakdown{Video: 0.4, Audio: 0.3, Text: 0.3},
	}
}

func newTestController(classifier inference.Classifier) *Controller {
	return &Controller{
		History:     NewMemoryRepo(),
		Classifier:  classifier,
		Watch:       NewBroadcaster(),
		TickPeriod:  time.Millisecond,
		RevealDelay: time.Millisecond,
	}
}

// waitFinalized blocks until the pipeline started by the last Submit call has
// committed its record to history.
func waitFinalized(t *testing.T, ctrl *Controller) {
	t.Helper()
	ctrl.mu.Lock()
	done := ctrl.done
	ctrl.mu.Unlock()
	if done == nil {
		t.Fatalf("no pipeline in flight")
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("pipeline did not finalize in time")
	}
}

func TestSubmitTextCompletes(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})

	record, err := ctrl.SubmitText(context.Background(), "I really enjoyed this")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	if record.Status != StatusProcessing {
		t.Fatalf("expected processing on accept, got %q", record.Status)
	}
	if record.Stage != 0 {
		t.Fatalf("expected stage 0 on accept, got %d", record.Stage)
	}
	if record.Modality != ModalityText {
		t.Fatalf("expected text modality, got %q", record.Modality)
	}

	waitFinalized(t, ctrl)

	final, err := ctrl.History.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%s)", final.Status, final.FailureReason)
	}
	if final.Stage != StageDone {
		t.Fatalf("expected stage %d after completion, got %d", StageDone, final.Stage)
	}
	if final.Result == nil {
		t.Fatalf("expected a result on the completed record")
	}
	if final.Result.Label != "Positive" {
		t.Fatalf("expected Positive label, got %q", final.Result.Label)
	}
	if final.Result.Transcript != "" {
		t.Fatalf("expected transcript suppressed for text input, got %q", final.Result.Transcript)
	}

	current, ok := ctrl.Current()
	if !ok || current.ID != record.ID {
		t.Fatalf("expected finalized record in current view")
	}
	if current.Status != StatusCompleted {
		t.Fatalf("expected current view completed, got %q", current.Status)
	}
}

func TestSubmitEmptyTextRejected(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})

	_, err := ctrl.SubmitText(context.Background(), "   \n\t ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, ok := ctrl.Current(); ok {
		t.Fatalf("rejected submission must not become current")
	}
	records, err := ctrl.History.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("rejected submission must not reach history, got %d records", len(records))
	}
}

func TestSubmitFileRejectsTextModality(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})

	_, err := ctrl.SubmitFile(context.Background(), ModalityText, "note.txt", []byte("hi"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitFileFailureUnreachable(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{
		classifyFile: func(ctx context.Context, filename string, content []byte) (inference.Result, error) {
			return inference.Result{}, fmt.Errorf("%w: connection refused", inference.ErrUnreachable)
		},
	})

	record, err := ctrl.SubmitFile(context.Background(), ModalityVideo, "clip.mp4", []byte("payload"))
	if err != nil {
		t.Fatalf("SubmitFile: %v", err)
	}
	waitFinalized(t, ctrl)

	final, err := ctrl.History.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", final.Status)
	}
	if final.Result != nil {
		t.Fatalf("failed record must not carry a result")
	}
	if !strings.Contains(final.FailureReason, "Could not reach the sentiment service") {
		t.Fatalf("expected unreachable guidance, got %q", final.FailureReason)
	}
}

func TestSubmitFailureServerDetailVerbatim(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{
		classifyText: func(ctx context.Context, text string) (inference.Result, error) {
			return inference.Result{}, &inference.ServerError{Status: 500, Detail: "Could not extract audio from video"}
		},
	})

	record, err := ctrl.SubmitText(context.Background(), "some text to analyze")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	waitFinalized(t, ctrl)

	final, err := ctrl.History.GetByID(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.FailureReason != "Could not extract audio from video" {
		t.Fatalf("expected verbatim server detail, got %q", final.FailureReason)
	}
}

func TestConcurrentSubmitRejected(t *testing.T) {
	release := make(chan struct{})
	ctrl := newTestController(&fakeClassifier{
		classifyText: func(ctx context.Context, text string) (inference.Result, error) {
			<-release
			return positiveResult(), nil
		},
	})

	first, err := ctrl.SubmitText(context.Background(), "first submission text")
	if err != nil {
		t.Fatalf("first SubmitText: %v", err)
	}

	if _, err := ctrl.SubmitText(context.Background(), "second submission text"); !errors.Is(err, ErrAnalysisInFlight) {
		t.Fatalf("expected ErrAnalysisInFlight, got %v", err)
	}
	if _, err := ctrl.SubmitFile(context.Background(), ModalityAudio, "a.wav", []byte("x")); !errors.Is(err, ErrAnalysisInFlight) {
		t.Fatalf("expected ErrAnalysisInFlight for file submit, got %v", err)
	}

	close(release)
	waitFinalized(t, ctrl)

	// Once the first pipeline finalized the slot is free again.
	second, err := ctrl.SubmitText(context.Background(), "third submission text")
	if err != nil {
		t.Fatalf("SubmitText after finalize: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a fresh record")
	}
	waitFinalized(t, ctrl)
}

func TestStageNeverExceedsTerminalWhileProcessing(t *testing.T) {
	release := make(chan struct{})
	ctrl := newTestController(&fakeClassifier{
		classifyText: func(ctx context.Context, text string) (inference.Result, error) {
			<-release
			return positiveResult(), nil
		},
	})
	events, cancel := ctrl.Watch.Subscribe()
	defer cancel()

	if _, err := ctrl.SubmitText(context.Background(), "slow classifier text"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	// Let the ticker run far past six periods; the stage must saturate.
	time.Sleep(25 * time.Millisecond)
	close(release)
	waitFinalized(t, ctrl)

	sawTerminal := false
	for {
		select {
		case ev := <-events:
			if ev.Status == StatusProcessing && ev.Stage > TerminalStage {
				t.Fatalf("processing record exceeded terminal stage: %d", ev.Stage)
			}
			if ev.Status == StatusProcessing && ev.Stage == TerminalStage {
				sawTerminal = true
			}
		default:
			if !sawTerminal {
				t.Fatalf("expected the ticker to reach the terminal stage")
			}
			return
		}
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})

	first, err := ctrl.SubmitText(context.Background(), "first entry text here")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	waitFinalized(t, ctrl)

	second, err := ctrl.SubmitText(context.Background(), "second entry text here")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	waitFinalized(t, ctrl)

	records, err := ctrl.History.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != second.ID || records[1].ID != first.ID {
		t.Fatalf("expected newest-first order, got [%s, %s]", records[0].ID, records[1].ID)
	}
}

func TestRecallDoesNotMutateHistory(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})

	first, err := ctrl.SubmitText(context.Background(), "recall target text here")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	waitFinalized(t, ctrl)

	if _, err := ctrl.SubmitText(context.Background(), "another submission text"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	waitFinalized(t, ctrl)

	recalled, err := ctrl.Recall(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if recalled.ID != first.ID {
		t.Fatalf("expected recalled record %s, got %s", first.ID, recalled.ID)
	}

	current, ok := ctrl.Current()
	if !ok || current.ID != first.ID {
		t.Fatalf("expected recalled record in current view")
	}

	records, err := ctrl.History.List(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("recall must not change history length, got %d", len(records))
	}
}

func TestRecallUnknownID(t *testing.T) {
	ctrl := newTestController(&fakeClassifier{})
	if _, err := ctrl.Recall(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecallDuringFlightStillFinalizes(t *testing.T) {
	release := make(chan struct{})
	ctrl := newTestController(&fakeClassifier{})

	seed, err := ctrl.SubmitText(context.Background(), "seed history entry text")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	waitFinalized(t, ctrl)

	ctrl.Classifier = &fakeClassifier{
		classifyText: func(ctx context.Context, text string) (inference.Result, error) {
			<-release
			return positiveResult(), nil
		},
	}
	inflight, err := ctrl.SubmitText(context.Background(), "in-flight submission text")
	if err != nil {
		t.Fatalf("SubmitText: %v", err)
	}

	if _, err := ctrl.Recall(context.Background(), seed.ID); err != nil {
		t.Fatalf("Recall: %v", err)
	}
	current, ok := ctrl.Current()
	if !ok || current.ID != seed.ID {
		t.Fatalf("expected recalled record on display during flight")
	}

	close(release)
	waitFinalized(t, ctrl)

	// The recalled record stays on display; the pipeline finalizes into
	// history without clobbering it.
	current, ok = ctrl.Current()
	if !ok || current.ID != seed.ID {
		t.Fatalf("finalization overwrote the recalled view")
	}
	final, err := ctrl.History.GetByID(context.Background(), inflight.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != StatusCompleted {
		t.Fatalf("expected in-flight record completed in history, got %q", final.Status)
	}
}

func TestTextLabelTruncates(t *testing.T) {
	long := strings.Repeat("a", 80)
	label := TextLabel(long)
	if !strings.HasPrefix(label, "Text Input (") || !strings.HasSuffix(label, "...)") {
		t.Fatalf("unexpected label for long text: %q", label)
	}
	short := TextLabel("short text")
	if short != `Text Input (short text)` {
		t.Fatalf("unexpected label for short text: %q", short)
	}
}
