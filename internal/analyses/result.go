package analyses

import "trisenti-backend/internal/inference"

// The display vocabulary for per-modality emotion tags, per sentiment class.
// Tags are ordered by intensity so a score can pick one deterministically.
var emotionVocab = map[string][]string{
	"Positive": {"Content", "Happy", "Joyful", "Excited"},
	"Negative": {"Disappointed", "Sad", "Frustrated", "Angry"},
	"Neutral":  {"Indifferent", "Calm", "Neutral", "Thoughtful"},
}

// buildResult converts a classifier outcome into the stored verdict.
// Rendering the same record twice must produce identical fields, so the
// emotion tags are a pure function of the label and the modality score.
func buildResult(modality Modality, res inference.Result) *SentimentResult {
	result := &SentimentResult{
		Label:      res.Sentiment,
		Confidence: res.Confidence,
		Emotions: map[Modality]ModalityScore{
			ModalityVideo: modalityScore(res.Sentiment, res.Breakdown.Video),
			ModalityAudio: modalityScore(res.Sentiment, res.Breakdown.Audio),
			ModalityText:  modalityScore(res.Sentiment, res.Breakdown.Text),
		},
	}
	if modality != ModalityText {
		result.Transcript = res.Transcript
	}
	return result
}

func modalityScore(label string, score float64) ModalityScore {
	return ModalityScore{
		Emotion: emotionFor(label, score),
		Score:   score,
	}
}

func emotionFor(label string, score float64) string {
	vocab, ok := emotionVocab[label]
	if !ok {
		return label
	}
	if score < 0 {
		score = 0
	}
	idx := int(score * float64(len(vocab)))
	if idx >= len(vocab) {
		idx = len(vocab) - 1
	}
	return vocab[idx]
}
