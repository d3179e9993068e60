package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/executor"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/judge"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Judge-Service/internal/store"
	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/events"
	"github.com/CDeX-Labs/CDeX-Judge-Service/pkg/protocol"
)

var (
	ErrInvalidSubmission   = errors.New("invalid submission")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrSubmissionNotFound  = errors.New("submission not found")
)

// RoomPublisher is the slice of the hub the pipeline needs to deliver
// verdicts.
type RoomPublisher interface {
	RoomsOfUser(userID string) []string
	PublishSystem(roomID string, ev hub.Event) (uint64, error)
	SendToUser(userID string, msg *protocol.Message)
}

// JudgedProducer emits terminal verdicts to the rest of the platform.
type JudgedProducer interface {
	PublishJudged(ctx context.Context, ev events.SubmissionJudgedEvent) error
}

type Config struct {
	Workers   int
	QueueSize int
	TimeLimit time.Duration
}

func (c *Config) withDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.TimeLimit <= 0 {
		c.TimeLimit = 10 * time.Second
	}
}

const (
	statePending int32 = iota
	stateRunning
	stateCancelledPending
	stateDone
)

type job struct {
	sub     *Submission
	problem *Problem

	state           atomic.Int32
	cancelRequested atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (j *job) setCancel(fn context.CancelFunc) {
	j.mu.Lock()
	j.cancel = fn
	j.mu.Unlock()
}

func (j *job) requestCancel() {
	j.cancelRequested.Store(true)
	j.mu.Lock()
	fn := j.cancel
	j.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Pipeline owns the submission state machine:
// Pending -> Running -> terminal verdict. A bounded worker pool judges
// submissions; its size bounds concurrent executor calls. One judging
// attempt runs per submission id at a time.
type Pipeline struct {
	store    store.Store
	engine   *judge.Engine
	exec     executor.Executor
	rooms    RoomPublisher
	producer JudgedProducer
	metrics  *metrics.Metrics
	cfg      Config

	queue    chan *job
	inflight *xsync.MapOf[string, *job]

	wg     sync.WaitGroup
	logger zerolog.Logger
}

func New(
	s store.Store,
	engine *judge.Engine,
	exec executor.Executor,
	rooms RoomPublisher,
	producer JudgedProducer,
	m *metrics.Metrics,
	cfg Config,
	logger zerolog.Logger,
) *Pipeline {
	cfg.withDefaults()
	return &Pipeline{
		store:    s,
		engine:   engine,
		exec:     exec,
		rooms:    rooms,
		producer: producer,
		metrics:  m,
		cfg:      cfg,
		queue:    make(chan *job, cfg.QueueSize),
		inflight: xsync.NewMapOf[string, *job](),
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// Start launches the judge workers; they stop when ctx is cancelled and
// Start returns once all of them have drained.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.logger.Info().Int("workers", p.cfg.Workers).Msg("Judge workers started")

	<-ctx.Done()
	p.wg.Wait()
}

func (p *Pipeline) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.queue:
			p.metrics.SetJudgeQueueDepth(len(p.queue))
			p.runJob(ctx, j)
		}
	}
}

type SubmitRequest struct {
	// SubmissionID is the idempotency key, generated once per client-initiated
	// submit. Left empty, the pipeline assigns one.
	SubmissionID string
	ProblemID    string
	UserID       string
	Code         string
	Language     string
}

func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.Code == "" {
		return "", errors.Join(ErrInvalidSubmission, errors.New("code is empty"))
	}
	if !p.exec.Supports(req.Language) {
		return "", errors.Join(ErrInvalidSubmission, errors.New("unsupported language "+req.Language))
	}

	problem, err := loadProblem(ctx, p.store, req.ProblemID)
	if err != nil {
		return "", err
	}

	id := req.SubmissionID
	if id == "" {
		id = uuid.New().String()
	}

	// Rejudging a persisted submission is not allowed either; a rerun is a
	// new submission under a new id.
	if _, err := p.store.Get(ctx, submissionsCollection, id); err == nil {
		return "", ErrDuplicateSubmission
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	sub := &Submission{
		ID:        id,
		ProblemID: req.ProblemID,
		UserID:    req.UserID,
		Code:      req.Code,
		Language:  req.Language,
		Verdict:   judge.VerdictPending,
		CreatedAt: time.Now().UTC(),
	}
	j := &job{sub: sub, problem: problem}

	if _, loaded := p.inflight.LoadOrStore(id, j); loaded {
		return "", ErrDuplicateSubmission
	}

	if err := p.persistSubmission(ctx, sub); err != nil {
		p.inflight.Delete(id)
		return "", err
	}

	select {
	case p.queue <- j:
		p.metrics.SetJudgeQueueDepth(len(p.queue))
	case <-ctx.Done():
		p.inflight.Delete(id)
		return "", ctx.Err()
	}

	p.logger.Info().
		Str("submissionId", id).
		Str("problemId", req.ProblemID).
		Str("userId", req.UserID).
		Msg("Submission enqueued")

	return id, nil
}

// Cancel dequeues a Pending submission synchronously. For a Running one it
// is advisory: the executor call carries the authoritative timeout, and a
// result that still completes is recorded with Cancelled set rather than
// discarded.
func (p *Pipeline) Cancel(id string) error {
	j, ok := p.inflight.Load(id)
	if !ok {
		return ErrSubmissionNotFound
	}

	if j.state.CompareAndSwap(statePending, stateCancelledPending) {
		j.cancelRequested.Store(true)
		p.logger.Info().Str("submissionId", id).Msg("Pending submission cancelled")
		return nil
	}

	j.requestCancel()
	p.logger.Info().Str("submissionId", id).Msg("Cancellation requested for running submission")
	return nil
}

func (p *Pipeline) runJob(ctx context.Context, j *job) {
	sub := j.sub
	defer p.inflight.Delete(sub.ID)

	if !j.state.CompareAndSwap(statePending, stateRunning) {
		// Cancelled while queued: freeze the submission as it stands.
		now := time.Now().UTC()
		sub.Cancelled = true
		sub.CompletedAt = &now
		if err := p.persistSubmission(ctx, sub); err != nil {
			p.logger.Error().Err(err).Str("submissionId", sub.ID).Msg("Failed to persist cancelled submission")
		}
		return
	}

	sub.Verdict = judge.VerdictRunning
	if err := p.persistSubmission(ctx, sub); err != nil {
		p.logger.Error().Err(err).Str("submissionId", sub.ID).Msg("Failed to persist running state")
	}

	judgeCtx, cancel := context.WithCancel(ctx)
	j.setCancel(cancel)
	defer cancel()

	timeLimit := p.cfg.TimeLimit
	if j.problem.TimeLimitMs > 0 {
		timeLimit = time.Duration(j.problem.TimeLimitMs) * time.Millisecond
	}
	comparator := judge.DefaultComparator()
	if j.problem.Comparator != nil {
		comparator = *j.problem.Comparator
	}

	started := time.Now()
	res := p.engine.Judge(judgeCtx, judge.Request{
		Code:       sub.Code,
		Language:   sub.Language,
		TestCases:  j.problem.TestCases,
		Mode:       judge.ModeSubmit,
		TimeLimit:  timeLimit,
		Comparator: comparator,
	})
	p.metrics.ObserveJudgeDuration(time.Since(started).Seconds())

	j.state.Store(stateDone)

	now := time.Now().UTC()
	sub.Verdict = res.Verdict
	sub.Results = res.Results
	sub.MaxTimeMillis = res.MaxTimeMillis
	sub.MaxMemoryKB = res.MaxMemoryKB
	sub.Cancelled = j.cancelRequested.Load()
	sub.CompletedAt = &now

	// Persist before publishing: verdict durability is independent of
	// delivery.
	if err := p.persistSubmission(context.WithoutCancel(ctx), sub); err != nil {
		p.logger.Error().Err(err).Str("submissionId", sub.ID).Msg("Failed to persist verdict")
	}

	p.metrics.IncJudgeVerdict(string(sub.Verdict))
	p.logger.Info().
		Str("submissionId", sub.ID).
		Str("verdict", string(sub.Verdict)).
		Bool("cancelled", sub.Cancelled).
		Int("passed", sub.PassedCount()).
		Int("total", len(sub.Results)).
		Msg("Submission judged")

	p.publishVerdict(sub)
	p.produceJudged(context.WithoutCancel(ctx), sub)
}

// VerdictReadyPayload is the room event body for a judged submission.
type VerdictReadyPayload struct {
	SubmissionID    string        `json:"submissionId"`
	ProblemID       string        `json:"problemId"`
	UserID          string        `json:"userId"`
	Verdict         judge.Verdict `json:"verdict"`
	Cancelled       bool          `json:"cancelled"`
	TestCasesPassed int           `json:"testCasesPassed"`
	TestCasesTotal  int           `json:"testCasesTotal"`
	MaxTimeMillis   int64         `json:"maxTimeMs"`
	MaxMemoryKB     int64         `json:"maxMemoryKb"`
}

func (p *Pipeline) publishVerdict(sub *Submission) {
	if p.rooms == nil {
		return
	}

	payload, err := json.Marshal(VerdictReadyPayload{
		SubmissionID:    sub.ID,
		ProblemID:       sub.ProblemID,
		UserID:          sub.UserID,
		Verdict:         sub.Verdict,
		Cancelled:       sub.Cancelled,
		TestCasesPassed: sub.PassedCount(),
		TestCasesTotal:  len(sub.Results),
		MaxTimeMillis:   sub.MaxTimeMillis,
		MaxMemoryKB:     sub.MaxMemoryKB,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to marshal verdict payload")
		return
	}

	// Assessment rooms for this problem that the submitter currently sits in.
	for _, roomID := range p.rooms.RoomsOfUser(sub.UserID) {
		if hub.ParseRoomKind(roomID) != hub.KindAssessment {
			continue
		}
		if hub.ExtractRoomEntityID(roomID) != sub.ProblemID {
			continue
		}
		if _, err := p.rooms.PublishSystem(roomID, hub.Event{
			Type:    hub.EventVerdictReady,
			Payload: payload,
		}); err != nil {
			// Delivery failure never rolls back the persisted verdict.
			p.logger.Warn().Err(err).
				Str("submissionId", sub.ID).
				Str("roomId", roomID).
				Msg("Failed to publish verdict to room")
		}
	}

	// Personal delivery to every connection of the submitter.
	msg, err := protocol.NewMessage(protocol.MsgVerdictReady, json.RawMessage(payload))
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to build verdict message")
		return
	}
	p.rooms.SendToUser(sub.UserID, msg)
}

func (p *Pipeline) produceJudged(ctx context.Context, sub *Submission) {
	if p.producer == nil {
		return
	}

	ev := events.SubmissionJudgedEvent{
		SubmissionID:    sub.ID,
		UserID:          sub.UserID,
		ProblemID:       sub.ProblemID,
		Verdict:         string(sub.Verdict),
		Cancelled:       sub.Cancelled,
		ExecutionTimeMs: sub.MaxTimeMillis,
		MemoryUsedKb:    sub.MaxMemoryKB,
		TestCasesPassed: sub.PassedCount(),
		TestCasesTotal:  len(sub.Results),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.producer.PublishJudged(ctx, ev); err != nil {
		p.logger.Warn().Err(err).Str("submissionId", sub.ID).Msg("Failed to produce judged event")
	}
}

// RunResult is the transient outcome of run_code; nothing is persisted.
// Statuses are execution outcomes, not verdicts: an ungraded run has no
// expected output to grade against.
type RunResult struct {
	Status     string `json:"status"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	TimeMillis int64  `json:"timeMs"`
	MemoryKB   int64  `json:"memoryKb"`
	Error      string `json:"error,omitempty"`
}

const (
	RunStatusOK           = "OK"
	RunStatusTimeout      = "TIME_LIMIT_EXCEEDED"
	RunStatusRuntimeError = "RUNTIME_ERROR"
	RunStatusSystemError  = "SYSTEM_ERROR"
)

// RunCode executes code against caller-provided stdin. Unlike Submit it is
// neither persisted nor single-flight guarded.
func (p *Pipeline) RunCode(ctx context.Context, code, language, stdin string) (*RunResult, error) {
	if code == "" {
		return nil, errors.Join(ErrInvalidSubmission, errors.New("code is empty"))
	}
	if !p.exec.Supports(language) {
		return nil, errors.Join(ErrInvalidSubmission, errors.New("unsupported language "+language))
	}

	out, err := p.exec.Execute(ctx, executor.Request{
		Source:    code,
		Language:  language,
		Stdin:     stdin,
		TimeLimit: p.cfg.TimeLimit,
	})
	if err != nil {
		var execErr *executor.ExecError
		switch {
		case errors.Is(err, executor.ErrTimeout):
			return &RunResult{Status: RunStatusTimeout, Error: "time limit exceeded"}, nil
		case errors.As(err, &execErr):
			return &RunResult{Status: RunStatusRuntimeError, Stderr: execErr.Stderr, Error: execErr.Error()}, nil
		default:
			p.logger.Error().Err(err).Msg("Executor failure during run_code")
			return &RunResult{Status: RunStatusSystemError, Error: err.Error()}, nil
		}
	}

	return &RunResult{
		Status:     RunStatusOK,
		Stdout:     out.Stdout,
		Stderr:     out.Stderr,
		TimeMillis: out.TimeMillis,
		MemoryKB:   out.MemoryKB,
	}, nil
}
