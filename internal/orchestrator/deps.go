package orchestrator

import "context"

// RunState is the remote agent's view of one run.
type RunState string

const (
	RunQueued         RunState = "queued"
	RunInProgress     RunState = "in_progress"
	RunRequiresAction RunState = "requires_action"
	RunCompleted      RunState = "completed"
	RunFailed         RunState = "failed"
	RunCancelled      RunState = "cancelled"
)

// ToolCall is a delegation request emitted by the agent mid-run. Arguments
// is the raw JSON payload as sent by the agent.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Run is the engine's observed snapshot of one agent run. PendingCalls is
// populated only when State is RunRequiresAction.
type Run struct {
	ID           string
	State        RunState
	PendingCalls []ToolCall
}

// ToolOutput answers one ToolCall. Every pending call in a run must be
// answered in the same submission or the run stays stuck.
type ToolOutput struct {
	ToolCallID string
	Output     string
}

// AgentClient is the subset of the remote conversational-agent API the
// engine needs. Implementations wrap transport failures as *RemoteError.
type AgentClient interface {
	CreateConversation(ctx context.Context) (string, error)
	PostUserMessage(ctx context.Context, conversationID, text string) error
	StartRun(ctx context.Context, conversationID string) (Run, error)
	GetRunStatus(ctx context.Context, conversationID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, conversationID, runID string, outputs []ToolOutput) (Run, error)
	CancelRun(ctx context.Context, conversationID, runID string) error
	FinalAssistantText(ctx context.Context, conversationID string) (string, error)
}

// ImageService is the webhook pair driving the external image backend.
// Submit is fire-and-forget: one POST, no retry. Poll returns the image
// URLs for a correlation id, or an empty slice while the job is still
// pending; an empty slice is never an error.
type ImageService interface {
	Submit(ctx context.Context, correlationID, visualizationText string) error
	Poll(ctx context.Context, correlationID string) ([]string, error)
}
