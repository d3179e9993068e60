package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/pipeline"
	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/protocol"
)

// runCodeTimeout caps one ungraded run end to end; the executor's own time
// limit applies underneath it.
const runCodeTimeout = 30 * time.Second

// JudgeHandler adapts judge messages coming off a connection into pipeline
// calls. Registered on the hub so the client read pump stays transport-only.
type JudgeHandler struct {
	hub      *hub.Hub
	pipeline *pipeline.Pipeline
	logger   zerolog.Logger
}

func NewJudgeHandler(h *hub.Hub, p *pipeline.Pipeline, logger zerolog.Logger) *JudgeHandler {
	return &JudgeHandler{
		hub:      h,
		pipeline: p,
		logger:   logger.With().Str("component", "judge-handler").Logger(),
	}
}

func (jh *JudgeHandler) Register() {
	jh.hub.JudgeHandler = jh.Handle
}

// Handle runs off the read pump's goroutine: Submit can block on queue
// admission and RunCode blocks for the execution's duration.
func (jh *JudgeHandler) Handle(client *hub.Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgRunCode:
		go jh.handleRunCode(client, msg)
	case protocol.MsgSubmitSolution:
		go jh.handleSubmit(client, msg)
	case protocol.MsgCancelSubmit:
		jh.handleCancel(client, msg)
	}
}

func (jh *JudgeHandler) handleRunCode(client *hub.Client, msg *protocol.Message) {
	var payload protocol.RunCodePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		jh.sendError(client, "INVALID_PAYLOAD", "Invalid run code payload", msg.RequestID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runCodeTimeout)
	defer cancel()

	result, err := jh.pipeline.RunCode(ctx, payload.Code, payload.Language, payload.Stdin)
	if err != nil {
		jh.sendError(client, "INVALID_SUBMISSION", err.Error(), msg.RequestID)
		return
	}

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgRunResult, result, msg.RequestID)
	jh.hub.SendToClient(client, response)
}

func (jh *JudgeHandler) handleSubmit(client *hub.Client, msg *protocol.Message) {
	var payload protocol.SubmitSolutionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		jh.sendError(client, "INVALID_PAYLOAD", "Invalid submit payload", msg.RequestID)
		return
	}

	id, err := jh.pipeline.Submit(context.Background(), pipeline.SubmitRequest{
		SubmissionID: payload.SubmissionID,
		ProblemID:    payload.ProblemID,
		UserID:       client.UserID,
		Code:         payload.Code,
		Language:     payload.Language,
	})
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrDuplicateSubmission):
			jh.sendError(client, "DUPLICATE_SUBMISSION", err.Error(), msg.RequestID)
		case errors.Is(err, pipeline.ErrProblemNotFound):
			jh.sendError(client, "PROBLEM_NOT_FOUND", err.Error(), msg.RequestID)
		case errors.Is(err, pipeline.ErrInvalidSubmission):
			jh.sendError(client, "INVALID_SUBMISSION", err.Error(), msg.RequestID)
		default:
			jh.logger.Error().Err(err).Msg("Submit failed")
			jh.sendError(client, "SUBMIT_FAILED", "Internal error", msg.RequestID)
		}
		return
	}

	response, _ := protocol.NewMessageWithRequestID(protocol.MsgSubmissionAccepted, map[string]string{
		"submissionId": id,
	}, msg.RequestID)
	jh.hub.SendToClient(client, response)
}

func (jh *JudgeHandler) handleCancel(client *hub.Client, msg *protocol.Message) {
	var payload protocol.CancelSubmissionPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		jh.sendError(client, "INVALID_PAYLOAD", "Invalid cancel payload", msg.RequestID)
		return
	}

	if err := jh.pipeline.Cancel(payload.SubmissionID); err != nil {
		jh.sendError(client, "SUBMISSION_NOT_FOUND", err.Error(), msg.RequestID)
		return
	}

	ack, _ := protocol.NewMessageWithRequestID(protocol.MsgSubmissionCancelled, map[string]string{
		"submissionId": payload.SubmissionID,
	}, msg.RequestID)
	jh.hub.SendToClient(client, ack)
}

func (jh *JudgeHandler) sendError(client *hub.Client, code, message, requestID string) {
	errMsg, _ := protocol.NewErrorMessage(code, message, requestID)
	jh.hub.SendToClient(client, errMsg)
}
