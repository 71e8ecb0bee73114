package analyses

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Modality identifies the kind of input an analysis was created from.
type Modality string

const (
	ModalityVideo Modality = "video"
	ModalityAudio Modality = "audio"
	ModalityText  Modality = "text"
)

// Valid reports whether m is one of the accepted modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityVideo, ModalityAudio, ModalityText:
		return true
	}
	return false
}

// ModalityScore is the per-modality contribution to a sentiment verdict.
type ModalityScore struct {
	Emotion string  `json:"emotion"`
	Score   float64 `json:"score"`
}

// SentimentResult is the verdict attached to a completed analysis.
type SentimentResult struct {
	Label      string                     `json:"label"`
	Confidence float64                    `json:"confidence"`
	Emotions   map[Modality]ModalityScore `json:"emotions"`
	// Transcript is empty when the input was text or no speech was detected.
	Transcript string `json:"transcript,omitempty"`
}

// AnalysisRecord tracks one submission through the pipeline and into history.
// Result is non-nil if and only if Status is completed. Stage is monotonically
// non-decreasing while processing and frozen once the record is finalized.
type AnalysisRecord struct {
	ID            string           `json:"id"`
	Label         string           `json:"label"`
	Modality      Modality         `json:"modality"`
	CreatedAt     time.Time        `json:"createdAt"`
	Status        string           `json:"status"`
	Stage         int              `json:"stage"`
	Result        *SentimentResult `json:"result,omitempty"`
	FailureReason string           `json:"failureReason,omitempty"`
}

// Finalized reports whether the record has reached a terminal status.
func (r AnalysisRecord) Finalized() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

const textLabelPreviewLen = 30

// NewRecord creates a record at stage zero in processing state.
func NewRecord(modality Modality, label string) AnalysisRecord {
	return AnalysisRecord{
		ID:        uuid.NewString(),
		Label:     label,
		Modality:  modality,
		CreatedAt: time.Now().UTC(),
		Status:    StatusProcessing,
		Stage:     0,
	}
}

// TextLabel derives a display label from raw text input, mirroring how file
// submissions use their filename.
func TextLabel(text string) string {
	preview := strings.TrimSpace(text)
	if len(preview) > textLabelPreviewLen {
		preview = preview[:textLabelPreviewLen] + "..."
	}
	return "Text Input (" + preview + ")"
}
