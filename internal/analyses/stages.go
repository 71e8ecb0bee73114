package analyses

// The cosmetic pipeline shows six named stages. A record starts at stage 0,
// advances one stage per tick up to the terminal stage, and holds there until
// the classifier outcome is applied. Completion sets the post-terminal
// sentinel so observers can tell "prediction running" from "prediction done";
// failure freezes at the terminal stage.
var StageNames = []string{
	"upload",
	"video-processing",
	"audio-extraction",
	"speech-recognition",
	"feature-extraction",
	"sentiment-prediction",
}

const (
	StageCount    = 6
	TerminalStage = StageCount - 1
	StageDone     = TerminalStage + 1
)

// StageName returns the display name for a stage index. The post-terminal
// sentinel and out-of-range values map to the terminal stage name.
func StageName(stage int) string {
	if stage < 0 {
		stage = 0
	}
	if stage >= StageCount {
		stage = TerminalStage
	}
	return StageNames[stage]
}
