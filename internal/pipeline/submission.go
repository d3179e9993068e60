package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/judge"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/store"
)

const (
	submissionsCollection = "submissions"
	problemsCollection    = "problems"
)

// Submission is immutable once CompletedAt is set. Only the pipeline's own
// execution step mutates it; reruns create a new Submission under a new id.
type Submission struct {
	ID            string                  `json:"id"`
	ProblemID     string                  `json:"problemId"`
	UserID        string                  `json:"userId"`
	Code          string                  `json:"code"`
	Language      string                  `json:"language"`
	Verdict       judge.Verdict           `json:"verdict"`
	Results       []judge.TestCaseResult  `json:"testCaseResults"`
	MaxTimeMillis int64                   `json:"maxTimeMs"`
	MaxMemoryKB   int64                   `json:"maxMemoryKb"`
	Cancelled     bool                    `json:"cancelled"`
	CreatedAt     time.Time               `json:"createdAt"`
	CompletedAt   *time.Time              `json:"completedAt,omitempty"`
}

func (s *Submission) PassedCount() int {
	n := 0
	for _, r := range s.Results {
		if r.Passed {
			n++
		}
	}
	return n
}

// Problem carries what the judging path needs: test cases (hidden ones
// included) and the per-problem comparison policy. Read-only here.
type Problem struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	TimeLimitMs int64             `json:"timeLimitMs,omitempty"`
	Comparator  *judge.Comparator `json:"comparator,omitempty"`
	TestCases   []judge.TestCase  `json:"testCases"`
}

var ErrProblemNotFound = errors.New("problem not found")

func loadProblem(ctx context.Context, s store.Store, id string) (*Problem, error) {
	rec, err := s.Get(ctx, problemsCollection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}

	var p Problem
	if err := store.Unmarshal(rec, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pipeline) persistSubmission(ctx context.Context, sub *Submission) error {
	rec, err := store.Marshal(sub.ID, sub)
	if err != nil {
		return err
	}
	return p.store.Put(ctx, submissionsCollection, rec)
}

// GetSubmission reads a submission back for the platform's result views.
func (p *Pipeline) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	rec, err := p.store.Get(ctx, submissionsCollection, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}

	var sub Submission
	if err := store.Unmarshal(rec, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
