// Package assistant adapts the OpenAI Assistants API (threads, runs, tool
// outputs) to the narrow contract the orchestration engine consumes. The
// engine never sees SDK types; everything is converted at this boundary.
package assistant

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog/log"

	"github.com/sf49-studio/designer/internal/config"
	"github.com/sf49-studio/designer/internal/orchestrator"
)

// instructions is the designer persona the assistant runs under.
const instructions = `You are a professional designer at SF49 Studio, helping users create images through conversation.
Speak with the perspective of a creative designer: polished, professional language with an expert tone.
Prioritize clarity, design aesthetics, and professionalism in every reply.
When the user describes an image they want, call the send_image_request function with a visualization text for it.`

// Client implements orchestrator.AgentClient on top of the OpenAI
// Assistants beta API.
type Client struct {
	api         openai.Client
	assistantID string
	model       string
}

// NewClient builds the adapter. When cfg.AssistantID is empty a fresh
// assistant with the send_image_request tool is created; otherwise the
// configured one is reused.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}

	c := &Client{
		api:         openai.NewClient(opts...),
		assistantID: cfg.AssistantID,
		model:       cfg.Model,
	}

	if c.assistantID == "" {
		id, err := c.createAssistant(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create assistant: %w", err)
		}
		c.assistantID = id
		log.Info().Str("assistant_id", id).Msg("Assistant created")
	}

	return c, nil
}

// createAssistant registers the designer assistant with the single tool the
// engine knows how to bridge.
func (c *Client) createAssistant(ctx context.Context) (string, error) {
	created, err := c.api.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        openai.ChatModel(c.model),
		Name:         openai.String("SF49 Studio Designer"),
		Instructions: openai.String(instructions),
		Tools: []openai.AssistantToolUnionParam{{
			OfFunction: &openai.FunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        "send_image_request",
					Description: openai.String("Send a visualization text and unique id to the image-generation webhook"),
					Parameters: openai.FunctionParameters{
						"type": "object",
						"properties": map[string]any{
							"visualization_text": map[string]any{
								"type":        "string",
								"description": "Visualization text describing the image to generate",
							},
							"unique_id": map[string]any{
								"type":        "string",
								"description": "Unique id for the image to generate",
							},
						},
						"required": []string{"visualization_text", "unique_id"},
					},
				},
			},
		}},
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// CreateConversation creates a fresh thread.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	thread, err := c.api.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", &orchestrator.RemoteError{Op: "create thread", Err: err}
	}
	return thread.ID, nil
}

// PostUserMessage appends a user turn to the thread.
func (c *Client) PostUserMessage(ctx context.Context, conversationID, text string) error {
	_, err := c.api.Beta.Threads.Messages.New(ctx, conversationID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return &orchestrator.RemoteError{Op: "post user message", Err: err}
	}
	return nil
}

// StartRun begins agent processing of the thread's unconsumed messages.
func (c *Client) StartRun(ctx context.Context, conversationID string) (orchestrator.Run, error) {
	run, err := c.api.Beta.Threads.Runs.New(ctx, conversationID, openai.BetaThreadRunNewParams{
		AssistantID: c.assistantID,
	})
	if err != nil {
		return orchestrator.Run{}, &orchestrator.RemoteError{Op: "start run", Err: err}
	}
	return convertRun(run), nil
}

// GetRunStatus fetches the current run snapshot, including pending tool
// calls when the run requires action.
func (c *Client) GetRunStatus(ctx context.Context, conversationID, runID string) (orchestrator.Run, error) {
	run, err := c.api.Beta.Threads.Runs.Get(ctx, conversationID, runID)
	if err != nil {
		return orchestrator.Run{}, &orchestrator.RemoteError{Op: "get run status", Err: err}
	}
	return convertRun(run), nil
}

// SubmitToolOutputs answers the full pending tool-call set of a run.
func (c *Client) SubmitToolOutputs(ctx context.Context, conversationID, runID string, outputs []orchestrator.ToolOutput) (orchestrator.Run, error) {
	params := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs)),
	}
	for _, out := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(out.ToolCallID),
			Output:     openai.String(out.Output),
		})
	}

	run, err := c.api.Beta.Threads.Runs.SubmitToolOutputs(ctx, conversationID, runID, params)
	if err != nil {
		return orchestrator.Run{}, &orchestrator.RemoteError{Op: "submit tool outputs", Err: err}
	}
	return convertRun(run), nil
}

// CancelRun cancels a run best-effort; the run may complete before the
// cancellation is observed remotely.
func (c *Client) CancelRun(ctx context.Context, conversationID, runID string) error {
	if _, err := c.api.Beta.Threads.Runs.Cancel(ctx, conversationID, runID); err != nil {
		return &orchestrator.RemoteError{Op: "cancel run", Err: err}
	}
	return nil
}

// FinalAssistantText returns the text of the latest assistant message in
// the thread.
func (c *Client) FinalAssistantText(ctx context.Context, conversationID string) (string, error) {
	page, err := c.api.Beta.Threads.Messages.List(ctx, conversationID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(1),
	})
	if err != nil {
		return "", &orchestrator.RemoteError{Op: "list messages", Err: err}
	}
	if len(page.Data) == 0 {
		return "", &orchestrator.ProtocolError{Reason: "thread has no messages after completed run"}
	}
	for _, content := range page.Data[0].Content {
		if content.Type == "text" {
			return content.Text.Value, nil
		}
	}
	return "", &orchestrator.ProtocolError{Reason: "assistant message has no text content"}
}

// convertRun maps an SDK run to the engine's snapshot type.
func convertRun(run *openai.Run) orchestrator.Run {
	out := orchestrator.Run{
		ID:    run.ID,
		State: convertStatus(run.Status),
	}
	if run.Status == openai.RunStatusRequiresAction {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.PendingCalls = append(out.PendingCalls, orchestrator.ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}
	return out
}

// convertStatus maps SDK run statuses onto the engine's state machine.
// Cancelling counts as still in progress (the terminal cancelled state
// follows); expired and incomplete are failures from the engine's point of
// view.
func convertStatus(status openai.RunStatus) orchestrator.RunState {
	switch status {
	case openai.RunStatusQueued:
		return orchestrator.RunQueued
	case openai.RunStatusInProgress, openai.RunStatusCancelling:
		return orchestrator.RunInProgress
	case openai.RunStatusRequiresAction:
		return orchestrator.RunRequiresAction
	case openai.RunStatusCompleted:
		return orchestrator.RunCompleted
	case openai.RunStatusCancelled:
		return orchestrator.RunCancelled
	default:
		return orchestrator.RunFailed
	}
}
