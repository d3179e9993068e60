package executor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Executor wraps the external code-execution backend. Execute has no
// observable side effects beyond the backend call and is safe to retry;
// retry policy belongs to the caller.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
	Supports(language string) bool
}

type Request struct {
	Source    string
	Language  string
	Stdin     string
	TimeLimit time.Duration
}

type Result struct {
	Stdout     string
	Stderr     string
	TimeMillis int64
	MemoryKB   int64
}

var (
	// ErrTimeout means the program exceeded the request's time limit.
	ErrTimeout = errors.New("execution timed out")

	// ErrUnsupportedLanguage means the language is not in the supported set.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// ExecError is a compile or runtime failure of the submitted program.
// It is a legitimate judging outcome, not an infrastructure fault.
type ExecError struct {
	Stderr   string
	ExitCode int
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execution failed with exit code %d", e.ExitCode)
}
