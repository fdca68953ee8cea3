package orchestrator

import "github.com/google/uuid"

// ProgressEvent is a cosmetic status update emitted between image polls.
// Events carry no correctness obligation; the engine drops them silently
// when no sink is attached.
type ProgressEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Phrase    string    `json:"phrase"`
	Percent   int       `json:"percent"`
}

// ProgressSink receives progress events. Publish must not block the caller
// for long; a slow or failing sink must never affect orchestration.
type ProgressSink interface {
	Publish(ProgressEvent)
}

// progressPhrases rotate while an image job is pending.
var progressPhrases = []string{
	"Preparing the initial setup for your image...",
	"Breaking the idea down into visual elements...",
	"Composing the design elements...",
	"Adjusting the fine details of the image...",
	"Polishing the final touches...",
	"Optimizing the generated image...",
}

// emitProgress publishes a progress event if a sink is attached.
func (e *Engine) emitProgress(sessionID uuid.UUID, tick, percent int) {
	if e.sink == nil {
		return
	}
	e.sink.Publish(ProgressEvent{
		SessionID: sessionID,
		Phrase:    progressPhrases[tick%len(progressPhrases)],
		Percent:   percent,
	})
}
