package judge_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/executor"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/judge"
)

// scriptedStub maps stdin to an outcome, so tests control each test case
// through the real adapter contract.
func scriptedStub(outcomes map[string]func() (*executor.Result, error)) *executor.StubExecutor {
	return &executor.StubExecutor{
		Languages: []string{"python"},
		Handler: func(req executor.Request) (*executor.Result, error) {
			fn, ok := outcomes[req.Stdin]
			if !ok {
				return nil, errors.New("unscripted input")
			}
			return fn()
		},
	}
}

func ok(stdout string, timeMs, memKB int64) func() (*executor.Result, error) {
	return func() (*executor.Result, error) {
		return &executor.Result{Stdout: stdout, TimeMillis: timeMs, MemoryKB: memKB}, nil
	}
}

func newEngine(t *testing.T, exec executor.Executor, retries int) *judge.Engine {
	t.Helper()
	return judge.NewEngine(exec, retries, zerolog.Nop())
}

func TestJudgeAllPassing(t *testing.T) {
	stub := scriptedStub(map[string]func() (*executor.Result, error){
		"1": ok("one", 10, 100),
		"2": ok("TWO\n", 30, 250),
	})
	engine := newEngine(t, stub, 0)

	res := engine.Judge(context.Background(), judge.Request{
		Code:     "print(x)",
		Language: "python",
		TestCases: []judge.TestCase{
			{Input: "1", ExpectedOutput: "one"},
			{Input: "2", ExpectedOutput: "two"},
		},
		Mode:       judge.ModeSubmit,
		TimeLimit:  time.Second,
		Comparator: judge.DefaultComparator(),
	})

	assert.Equal(t, judge.VerdictAccepted, res.Verdict)
	require.Len(t, res.Results, 2)
	for i, r := range res.Results {
		assert.True(t, r.Passed)
		assert.Equal(t, i, r.TestCaseIndex)
	}
	assert.Equal(t, int64(30), res.MaxTimeMillis)
	assert.Equal(t, int64(250), res.MaxMemoryKB)
}

// The first non-pass category in test-case order decides the verdict:
// [pass, pass, timeout, fail] must aggregate to TIME_LIMIT_EXCEEDED.
func TestJudgeFirstFailureWins(t *testing.T) {
	stub := scriptedStub(map[string]func() (*executor.Result, error){
		"1": ok("a", 1, 1),
		"2": ok("b", 1, 1),
		"3": func() (*executor.Result, error) { return nil, executor.ErrTimeout },
		"4": ok("wrong", 1, 1),
	})
	engine := newEngine(t, stub, 0)

	res := engine.Judge(context.Background(), judge.Request{
		Code:     "code",
		Language: "python",
		TestCases: []judge.TestCase{
			{Input: "1", ExpectedOutput: "a"},
			{Input: "2", ExpectedOutput: "b"},
			{Input: "3", ExpectedOutput: "c"},
			{Input: "4", ExpectedOutput: "d"},
		},
		Mode:       judge.ModeSubmit,
		TimeLimit:  time.Second,
		Comparator: judge.DefaultComparator(),
	})

	assert.Equal(t, judge.VerdictTimeLimitExceeded, res.Verdict)
	require.Len(t, res.Results, 4, "submit mode grades every case")
	assert.True(t, res.Results[0].Passed)
	assert.True(t, res.Results[1].Passed)
	assert.False(t, res.Results[2].Passed)
	assert.Equal(t, judge.VerdictTimeLimitExceeded, res.Results[2].Verdict)
	assert.False(t, res.Results[3].Passed)
	assert.Equal(t, judge.VerdictWrongAnswer, res.Results[3].Verdict)
}

func TestJudgeVerdictMapping(t *testing.T) {
	tests := []struct {
		name      string
		fail      func() (*executor.Result, error)
		verdict   judge.Verdict
		wantError bool
	}{
		{
			name:      "timeout maps to TLE",
			fail:      func() (*executor.Result, error) { return nil, executor.ErrTimeout },
			verdict:   judge.VerdictTimeLimitExceeded,
			wantError: true,
		},
		{
			name: "exec error maps to runtime error",
			fail: func() (*executor.Result, error) {
				return nil, &executor.ExecError{Stderr: "IndexError: list index out of range", ExitCode: 1}
			},
			verdict:   judge.VerdictRuntimeError,
			wantError: true,
		},
		{
			name:      "infra failure maps to system error",
			fail:      func() (*executor.Result, error) { return nil, errors.New("connection refused") },
			verdict:   judge.VerdictSystemError,
			wantError: true,
		},
		{
			name:    "output mismatch maps to wrong answer",
			fail:    ok("unexpected", 1, 1),
			verdict: judge.VerdictWrongAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := scriptedStub(map[string]func() (*executor.Result, error){"in": tt.fail})
			engine := newEngine(t, stub, 0)

			res := engine.Judge(context.Background(), judge.Request{
				Code:       "code",
				Language:   "python",
				TestCases:  []judge.TestCase{{Input: "in", ExpectedOutput: "expected"}},
				Mode:       judge.ModeSubmit,
				TimeLimit:  time.Second,
				Comparator: judge.DefaultComparator(),
			})

			assert.Equal(t, tt.verdict, res.Verdict)
			require.Len(t, res.Results, 1)
			if tt.wantError {
				assert.NotEmpty(t, res.Results[0].Error)
			}
		})
	}
}

func TestJudgeRunModeStopsAtFirstFailure(t *testing.T) {
	stub := scriptedStub(map[string]func() (*executor.Result, error){
		"1": ok("a", 1, 1),
		"2": ok("nope", 1, 1),
		"3": ok("c", 1, 1),
	})
	engine := newEngine(t, stub, 0)

	res := engine.Judge(context.Background(), judge.Request{
		Code:     "code",
		Language: "python",
		TestCases: []judge.TestCase{
			{Input: "1", ExpectedOutput: "a"},
			{Input: "2", ExpectedOutput: "b"},
			{Input: "3", ExpectedOutput: "c"},
		},
		Mode:       judge.ModeRun,
		TimeLimit:  time.Second,
		Comparator: judge.DefaultComparator(),
	})

	assert.Equal(t, judge.VerdictWrongAnswer, res.Verdict)
	assert.Len(t, res.Results, 2, "run mode stops after the first failure")
	assert.Equal(t, int64(2), stub.Calls())
}

func TestJudgeRetriesInfraFailures(t *testing.T) {
	attempts := 0
	stub := &executor.StubExecutor{
		Languages: []string{"python"},
		Handler: func(req executor.Request) (*executor.Result, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("transient backend error")
			}
			return &executor.Result{Stdout: "ok", TimeMillis: 1, MemoryKB: 1}, nil
		},
	}
	engine := newEngine(t, stub, 2)

	res := engine.Judge(context.Background(), judge.Request{
		Code:       "code",
		Language:   "python",
		TestCases:  []judge.TestCase{{Input: "in", ExpectedOutput: "ok"}},
		Mode:       judge.ModeSubmit,
		TimeLimit:  time.Second,
		Comparator: judge.DefaultComparator(),
	})

	assert.Equal(t, judge.VerdictAccepted, res.Verdict)
	assert.Equal(t, 3, attempts)
}

func TestJudgeDoesNotRetryProgramFailures(t *testing.T) {
	stub := &executor.StubExecutor{
		Languages: []string{"python"},
		Handler: func(req executor.Request) (*executor.Result, error) {
			return nil, &executor.ExecError{Stderr: "boom", ExitCode: 2}
		},
	}
	engine := newEngine(t, stub, 5)

	res := engine.Judge(context.Background(), judge.Request{
		Code:       "code",
		Language:   "python",
		TestCases:  []judge.TestCase{{Input: "in", ExpectedOutput: "x"}},
		Mode:       judge.ModeSubmit,
		TimeLimit:  time.Second,
		Comparator: judge.DefaultComparator(),
	})

	assert.Equal(t, judge.VerdictRuntimeError, res.Verdict)
	assert.Equal(t, int64(1), stub.Calls(), "program failures are outcomes, not retried")
}
