package judge

import (
	"context"
	"errors"
	"time"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/executor"
	"github.com/rs/zerolog"
)

// Mode selects the judging policy: Run stops at the first failing test case,
// Submit grades every case regardless of failures.
type Mode string

const (
	ModeRun    Mode = "run"
	ModeSubmit Mode = "submit"
)

type Request struct {
	Code       string
	Language   string
	TestCases  []TestCase
	Mode       Mode
	TimeLimit  time.Duration
	Comparator Comparator
}

type Result struct {
	Verdict       Verdict
	Results       []TestCaseResult
	MaxTimeMillis int64
	MaxMemoryKB   int64
}

// Engine runs one submission's code against its test cases, sequentially and
// in test-case order, and aggregates the verdict.
type Engine struct {
	executor      executor.Executor
	systemRetries int
	logger        zerolog.Logger
}

func NewEngine(exec executor.Executor, systemRetries int, logger zerolog.Logger) *Engine {
	return &Engine{
		executor:      exec,
		systemRetries: systemRetries,
		logger:        logger.With().Str("component", "judge").Logger(),
	}
}

// Supports reports whether the backing executor accepts the language.
func (e *Engine) Supports(language string) bool {
	return e.executor.Supports(language)
}

// Judge never returns an error: every outcome, including infrastructure
// failure, maps to a verdict so the caller always gets a definite answer.
func (e *Engine) Judge(ctx context.Context, req Request) *Result {
	res := &Result{Verdict: VerdictAccepted}

	for i, tc := range req.TestCases {
		tcr := e.runTestCase(ctx, req, i, tc)
		res.Results = append(res.Results, tcr)

		if tcr.TimeMillis > res.MaxTimeMillis {
			res.MaxTimeMillis = tcr.TimeMillis
		}
		if tcr.MemoryKB > res.MaxMemoryKB {
			res.MaxMemoryKB = tcr.MemoryKB
		}

		if !tcr.Passed {
			// The first non-pass category decides the verdict.
			if res.Verdict == VerdictAccepted {
				res.Verdict = tcr.Verdict
			}
			if req.Mode == ModeRun {
				break
			}
		}
	}

	e.logger.Debug().
		Str("verdict", string(res.Verdict)).
		Int("testCases", len(res.Results)).
		Int64("maxTimeMs", res.MaxTimeMillis).
		Msg("Judging finished")

	return res
}

func (e *Engine) runTestCase(ctx context.Context, req Request, index int, tc TestCase) TestCaseResult {
	tcr := TestCaseResult{TestCaseIndex: index}

	out, err := e.executeWithRetry(ctx, executor.Request{
		Source:    req.Code,
		Language:  req.Language,
		Stdin:     tc.Input,
		TimeLimit: req.TimeLimit,
	})

	if err != nil {
		var execErr *executor.ExecError
		switch {
		case errors.Is(err, executor.ErrTimeout):
			tcr.Verdict = VerdictTimeLimitExceeded
			tcr.TimeMillis = req.TimeLimit.Milliseconds()
			tcr.Error = "time limit exceeded"
		case errors.As(err, &execErr):
			tcr.Verdict = VerdictRuntimeError
			tcr.Error = execErr.Stderr
		default:
			tcr.Verdict = VerdictSystemError
			tcr.Error = err.Error()
			e.logger.Error().Err(err).Int("testCase", index).Msg("Executor failure")
		}
		return tcr
	}

	tcr.ActualOutput = out.Stdout
	tcr.TimeMillis = out.TimeMillis
	tcr.MemoryKB = out.MemoryKB

	if req.Comparator.Equal(out.Stdout, tc.ExpectedOutput) {
		tcr.Passed = true
		tcr.Verdict = VerdictAccepted
	} else {
		tcr.Verdict = VerdictWrongAnswer
	}
	return tcr
}

// executeWithRetry retries infrastructure failures a bounded number of
// times. Timeouts and program errors are outcomes, never retried.
func (e *Engine) executeWithRetry(ctx context.Context, req executor.Request) (*executor.Result, error) {
	var lastErr error

	for attempt := 0; attempt <= e.systemRetries; attempt++ {
		out, err := e.executor.Execute(ctx, req)
		if err == nil {
			return out, nil
		}

		var execErr *executor.ExecError
		if errors.Is(err, executor.ErrTimeout) ||
			errors.Is(err, executor.ErrUnsupportedLanguage) ||
			errors.As(err, &execErr) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
		e.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("Retrying after executor failure")
	}
	return nil, lastErr
}
