package executor

import (
	"context"
	"strings"
	"sync/atomic"
)

// StubExecutor is a scriptable Executor for tests. It honors the same
// contract as the real adapter so engine and pipeline tests exercise the
// production error mapping.
type StubExecutor struct {
	Languages []string
	Handler   func(req Request) (*Result, error)

	calls atomic.Int64
}

// NewEchoStub returns a stub that echoes stdin back as stdout, which is
// enough for output-comparison tests.
func NewEchoStub(languages ...string) *StubExecutor {
	return &StubExecutor{
		Languages: languages,
		Handler: func(req Request) (*Result, error) {
			return &Result{
				Stdout:     strings.TrimSpace(req.Stdin) + "\n",
				TimeMillis: 5,
				MemoryKB:   1024,
			}, nil
		},
	}
}

func (s *StubExecutor) Supports(language string) bool {
	for _, lang := range s.Languages {
		if lang == language {
			return true
		}
	}
	return false
}

func (s *StubExecutor) Execute(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.Supports(req.Language) {
		return nil, ErrUnsupportedLanguage
	}

	s.calls.Add(1)
	return s.Handler(req)
}

// Calls reports how many executions ran, for retry and admission tests.
func (s *StubExecutor) Calls() int64 {
	return s.calls.Load()
}
