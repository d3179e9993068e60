package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	statusOK           = "OK"
	statusTimeout      = "TIMEOUT"
	statusCompileError = "COMPILATION_ERROR"
	statusRuntimeError = "RUNTIME_ERROR"

	// Slack on top of the program's own time limit so the backend, not the
	// HTTP deadline, is the authoritative timeout.
	requestGrace = 3 * time.Second
)

// HTTPExecutor calls a remote runner service over JSON/HTTP.
type HTTPExecutor struct {
	url       string
	client    *http.Client
	languages map[string]bool
	logger    zerolog.Logger
}

type runRequest struct {
	Source      string `json:"source"`
	Language    string `json:"language"`
	Stdin       string `json:"stdin"`
	TimeLimitMs int64  `json:"timeLimitMs"`
}

type runResponse struct {
	Status     string `json:"status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exitCode"`
	TimeMillis int64  `json:"timeMillis"`
	MemoryKB   int64  `json:"memoryKb"`
}

func NewHTTPExecutor(url string, languages []string, logger zerolog.Logger) *HTTPExecutor {
	supported := make(map[string]bool, len(languages))
	for _, lang := range languages {
		supported[lang] = true
	}

	return &HTTPExecutor{
		url:       url,
		client:    &http.Client{},
		languages: supported,
		logger:    logger.With().Str("component", "executor").Logger(),
	}
}

func (e *HTTPExecutor) Supports(language string) bool {
	return e.languages[language]
}

func (e *HTTPExecutor) Execute(ctx context.Context, req Request) (*Result, error) {
	if !e.Supports(req.Language) {
		return nil, ErrUnsupportedLanguage
	}

	body, err := json.Marshal(runRequest{
		Source:      req.Source,
		Language:    req.Language,
		Stdin:       req.Stdin,
		TimeLimitMs: req.TimeLimit.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, req.TimeLimit+requestGrace)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build run request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("executor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("executor returned status %d", resp.StatusCode)
	}

	var runResp runResponse
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		return nil, fmt.Errorf("failed to decode executor response: %w", err)
	}

	e.logger.Debug().
		Str("language", req.Language).
		Str("status", runResp.Status).
		Int64("timeMs", runResp.TimeMillis).
		Msg("Execution finished")

	switch runResp.Status {
	case statusOK:
		return &Result{
			Stdout:     runResp.Stdout,
			Stderr:     runResp.Stderr,
			TimeMillis: runResp.TimeMillis,
			MemoryKB:   runResp.MemoryKB,
		}, nil
	case statusTimeout:
		return nil, ErrTimeout
	case statusCompileError, statusRuntimeError:
		return nil, &ExecError{Stderr: runResp.Stderr, ExitCode: runResp.ExitCode}
	default:
		return nil, fmt.Errorf("executor returned unknown status %q", runResp.Status)
	}
}
