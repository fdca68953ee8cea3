package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sf49-studio/designer/internal/config"
	"github.com/sf49-studio/designer/internal/session"
)

// toolSendImageRequest is the only tool function the engine knows how to
// bridge. Any other function name in a pending tool call fails the run.
const toolSendImageRequest = "send_image_request"

// cancelCheckStep bounds how long a wait can go without re-checking the
// session's cancel flag.
const cancelCheckStep = time.Second

// Engine drives one agent run to completion: it polls run status, bridges
// send_image_request tool calls to the image webhook pair, reconciles the
// independently-paced image job into the user-facing result, and honors
// cancellation at every wait checkpoint.
//
// All remote calls within one orchestration are strictly sequential. The
// engine itself is stateless across requests; per-conversation state lives
// in the Session.
type Engine struct {
	agent  AgentClient
	images ImageService
	sink   ProgressSink

	runPollInterval   time.Duration
	imagePollInterval time.Duration
	imageWaitCeiling  time.Duration

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// New creates an engine with the poll cadence and wait ceiling from config.
func New(agent AgentClient, images ImageService, cfg *config.Config) *Engine {
	return &Engine{
		agent:             agent,
		images:            images,
		runPollInterval:   cfg.RunPollInterval,
		imagePollInterval: cfg.ImagePollInterval,
		imageWaitCeiling:  cfg.ImageWaitCeiling,
		sleep:             sleepContext,
		now:               time.Now,
	}
}

// SetProgressSink attaches an optional sink for cosmetic progress events.
func (e *Engine) SetProgressSink(sink ProgressSink) {
	e.sink = sink
}

// Process runs one user message through the agent and returns the terminal
// Result. It returns a non-nil error only when the session already has a
// request in flight; every other failure mode is expressed as a Result.
func (e *Engine) Process(ctx context.Context, sess *session.Session, userText string) (Result, error) {
	if err := sess.BeginRequest(); err != nil {
		return Result{}, err
	}
	defer sess.EndRequest()

	res := e.orchestrate(ctx, sess, userText)
	if res.Status == StatusSuccess {
		sess.Append("assistant", res.Text, res.ImageURLs)
	}

	log.Info().
		Str("session_id", sess.ID.String()).
		Str("status", string(res.Status)).
		Int("images", len(res.ImageURLs)).
		Msg("Orchestration finished")

	return res, nil
}

// orchestrate is the run-polling state machine.
func (e *Engine) orchestrate(ctx context.Context, sess *session.Session, userText string) Result {
	conversationID := sess.ConversationID()
	if conversationID == "" {
		id, err := e.agent.CreateConversation(ctx)
		if err != nil {
			log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to create conversation")
			return failedResult()
		}
		sess.SetConversationID(id)
		conversationID = id
	}

	sess.Append("user", userText, nil)

	if err := e.agent.PostUserMessage(ctx, conversationID, userText); err != nil {
		log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to post user message")
		return failedResult()
	}

	run, err := e.agent.StartRun(ctx, conversationID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to start run")
		return failedResult()
	}

	log.Debug().
		Str("session_id", sess.ID.String()).
		Str("run_id", run.ID).
		Msg("Run started")

	for {
		if sess.CancelRequested() || ctx.Err() != nil {
			e.abandonRun(conversationID, run.ID)
			return cancelledResult()
		}

		run, err = e.agent.GetRunStatus(ctx, conversationID, run.ID)
		if err != nil {
			log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to get run status")
			return failedResult()
		}

		switch run.State {
		case RunQueued, RunInProgress:
			// keep polling

		case RunRequiresAction:
			outputs, jobs, err := e.answerToolCalls(ctx, run)
			if err != nil {
				// No partial submission: a run acknowledged for only some
				// of its tool calls is unrecoverable, so abort before
				// submitting anything.
				log.Error().Err(err).Str("run_id", run.ID).Msg("Tool call dispatch failed")
				return failedResult()
			}
			if _, err := e.agent.SubmitToolOutputs(ctx, conversationID, run.ID, outputs); err != nil {
				log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to submit tool outputs")
				return failedResult()
			}
			// The run's own completion signal is not a proxy for "image
			// ready"; reconcile via the image poll loop instead.
			return e.awaitImages(ctx, sess, conversationID, run.ID, jobs)

		case RunCompleted:
			text, err := e.agent.FinalAssistantText(ctx, conversationID)
			if err != nil {
				log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to fetch final assistant text")
				return failedResult()
			}
			return successResult(text, nil)

		case RunFailed:
			log.Error().Str("run_id", run.ID).Msg("Run failed remotely")
			return failedResult()

		case RunCancelled:
			return cancelledResult()

		default:
			log.Error().Str("run_id", run.ID).Str("state", string(run.State)).Msg("Unexpected run state")
			return failedResult()
		}

		cancelled, err := e.wait(ctx, sess, e.runPollInterval)
		if cancelled || err != nil {
			e.abandonRun(conversationID, run.ID)
			return cancelledResult()
		}
	}
}

// imageJob tracks one submitted image request through the poll loop.
type imageJob struct {
	correlationID string
	urls          []string
	ready         bool
}

// answerToolCalls validates and dispatches every pending tool call,
// returning the complete output batch and the image jobs it created. A
// failure on any call aborts the whole batch.
func (e *Engine) answerToolCalls(ctx context.Context, run Run) ([]ToolOutput, []*imageJob, error) {
	if len(run.PendingCalls) == 0 {
		return nil, nil, &ProtocolError{Reason: "requires_action with no pending tool calls"}
	}

	outputs := make([]ToolOutput, 0, len(run.PendingCalls))
	jobs := make([]*imageJob, 0, len(run.PendingCalls))

	for _, call := range run.PendingCalls {
		if call.Name != toolSendImageRequest {
			return nil, nil, &ProtocolError{Reason: "unknown tool function " + call.Name}
		}

		var args struct {
			VisualizationText string `json:"visualization_text"`
			UniqueID          string `json:"unique_id"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, nil, &ProtocolError{Reason: "malformed tool arguments: " + err.Error()}
		}

		correlationID := CorrelationID(args.UniqueID)
		if err := e.images.Submit(ctx, correlationID, args.VisualizationText); err != nil {
			return nil, nil, &RemoteError{Op: "submit image request", Err: err}
		}

		payload, err := json.Marshal(map[string]string{
			"status":    "success",
			"unique_id": correlationID,
			"message":   "Image generation started",
		})
		if err != nil {
			return nil, nil, err
		}

		log.Info().
			Str("run_id", run.ID).
			Str("tool_call_id", call.ID).
			Str("correlation_id", correlationID).
			Msg("Image request submitted")

		outputs = append(outputs, ToolOutput{ToolCallID: call.ID, Output: string(payload)})
		jobs = append(jobs, &imageJob{correlationID: correlationID})
	}

	return outputs, jobs, nil
}

// awaitImages polls the image backend until every job is ready, the wait
// ceiling elapses, or cancellation is observed. Cancellation is checked
// before each poll, so it always wins a race with a pending Ready result.
func (e *Engine) awaitImages(ctx context.Context, sess *session.Session, conversationID, runID string, jobs []*imageJob) Result {
	start := e.now()
	tick := 0

	for {
		if sess.CancelRequested() || ctx.Err() != nil {
			e.abandonRun(conversationID, runID)
			return cancelledResult()
		}

		ready := true
		for _, job := range jobs {
			if job.ready {
				continue
			}
			urls, err := e.images.Poll(ctx, job.correlationID)
			if err != nil {
				// Transport errors on the result poll are retried until
				// the ceiling, same as a pending job.
				log.Warn().Err(err).Str("correlation_id", job.correlationID).Msg("Image poll failed")
				ready = false
				continue
			}
			if len(urls) == 0 {
				ready = false
				continue
			}
			job.urls = urls
			job.ready = true
		}

		if ready {
			var images []string
			for _, job := range jobs {
				images = append(images, job.urls...)
			}
			return successResult(msgDesignReady, images)
		}

		elapsed := e.now().Sub(start)
		if elapsed >= e.imageWaitCeiling {
			log.Warn().
				Str("session_id", sess.ID.String()).
				Dur("elapsed", elapsed).
				Msg("Image job exceeded wait ceiling")
			return timeoutResult()
		}

		percent := int(elapsed * 100 / e.imageWaitCeiling)
		if percent > 99 {
			percent = 99
		}
		e.emitProgress(sess.ID, tick, percent)
		tick++

		cancelled, err := e.wait(ctx, sess, e.imagePollInterval)
		if cancelled || err != nil {
			e.abandonRun(conversationID, runID)
			return cancelledResult()
		}
	}
}

// wait sleeps for d, re-checking the cancel flag at least once per
// cancelCheckStep so cancellation latency stays bounded regardless of the
// poll cadence. It reports true when cancellation was requested.
func (e *Engine) wait(ctx context.Context, sess *session.Session, d time.Duration) (bool, error) {
	for d > 0 {
		if sess.CancelRequested() {
			return true, nil
		}
		step := d
		if step > cancelCheckStep {
			step = cancelCheckStep
		}
		if err := e.sleep(ctx, step); err != nil {
			return false, err
		}
		d -= step
	}
	return sess.CancelRequested(), nil
}

// abandonRun cancels a run best-effort. The remote run may complete anyway;
// locally the orchestration is already decided.
func (e *Engine) abandonRun(conversationID, runID string) {
	if err := e.agent.CancelRun(context.Background(), conversationID, runID); err != nil {
		log.Debug().Err(err).Str("run_id", runID).Msg("Best-effort run cancel failed")
	}
}

// CorrelationID builds a fresh correlation id for one image submission. The
// agent-chosen seed is kept for traceability, but uniqueness comes from the
// random suffix: ids never collide across sessions or resubmissions even if
// the agent repeats a seed.
func CorrelationID(seed string) string {
	suffix := uuid.NewString()
	seed = sanitizeSeed(seed)
	if seed == "" {
		return suffix
	}
	return seed + "-" + suffix
}

// sanitizeSeed strips anything outside [A-Za-z0-9_-] and caps the length so
// the backend sees a well-behaved id component.
func sanitizeSeed(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
		if b.Len() >= 64 {
			break
		}
	}
	return b.String()
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
