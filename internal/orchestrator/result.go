package orchestrator

// Status is the terminal outcome of one orchestration.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// CodeTimeout marks a failed Result caused by the image job exceeding the
// wait ceiling. It is a soft failure inviting retry, distinct from a hard
// failure.
const CodeTimeout = "timeout"

// Result is the only artifact the presentation layer consumes. ImageURLs is
// non-empty only when Status is StatusSuccess. Text is always a user-safe
// message; raw remote error detail is logged, never surfaced here.
type Result struct {
	Status    Status   `json:"status"`
	Text      string   `json:"text"`
	ImageURLs []string `json:"image_urls,omitempty"`
	Code      string   `json:"code,omitempty"`
}

// User-facing messages. Raw remote errors never reach these.
const (
	msgDesignReady     = "Your design is ready! Is there an option you like?"
	msgCancelled       = "Image generation was cancelled."
	msgFailed          = "Something went wrong while processing your request. Please try again."
	msgStillProcessing = "The image needs a little more time. Please try again shortly."
)

func successResult(text string, images []string) Result {
	return Result{Status: StatusSuccess, Text: text, ImageURLs: images}
}

func cancelledResult() Result {
	return Result{Status: StatusCancelled, Text: msgCancelled}
}

func failedResult() Result {
	return Result{Status: StatusFailed, Text: msgFailed}
}

func timeoutResult() Result {
	return Result{Status: StatusFailed, Text: msgStillProcessing, Code: CodeTimeout}
}
