package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assetinventory/internal/logging"
)

// ServiceConfig holds import pacing and resource limits.
type ServiceConfig struct {
	BatchSize     int
	BatchDelay    time.Duration
	MaxFileSize   int64
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
	Retention     time.Duration
}

// Progress is a snapshot of a run, sent to subscribers after every step
// and every batch.
type Progress struct {
	RunID        string  `json:"run_id"`
	FileName     string  `json:"file_name"`
	State        State   `json:"state"`
	TotalRows    int     `json:"total_rows"`
	Valid        int     `json:"valid"`
	Warned       int     `json:"warned"`
	Rejected     int     `json:"rejected"`
	Batch        int     `json:"batch"`
	TotalBatches int     `json:"total_batches"`
	Succeeded    int     `json:"succeeded"`
	Failed       int     `json:"failed"`
	Percent      float64 `json:"percent"`
	BytesRead    int64   `json:"bytes_read"`
	Error        string  `json:"error,omitempty"`
	Code         string  `json:"code,omitempty"`
}

// Result is the final summary of a run. Once parsing succeeds a Result
// always carries the validation outcome, and the commit result when the
// commit started.
type Result struct {
	RunID     string        `json:"run_id"`
	FileName  string        `json:"file_name"`
	State     State         `json:"state"`
	Header    []string      `json:"header,omitempty"`
	Unknown   []string      `json:"unknown_columns,omitempty"`
	Outcome   *Outcome      `json:"outcome,omitempty"`
	Commit    *CommitResult `json:"commit,omitempty"`
	Error     string        `json:"error,omitempty"`
	User      *UserMessage  `json:"user_error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Preview is a parse and validation pass with no commit.
type Preview struct {
	Header  []string `json:"header"`
	Unknown []string `json:"unknown_columns,omitempty"`
	Outcome *Outcome `json:"outcome"`
}

type activeRun struct {
	id       string
	fileName string
	run      *Run
	cancel   context.CancelFunc
	started  time.Time
	done     chan struct{}
	result   *Result

	mu        sync.Mutex
	progress  Progress
	listeners []chan Progress
}

func (a *activeRun) snapshot() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress
}

// update applies fn to the progress and fans the new snapshot out without
// blocking on slow subscribers.
func (a *activeRun) update(fn func(p *Progress)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.progress)
	for _, ch := range a.listeners {
		select {
		case ch <- a.progress:
		default:
		}
	}
}

// closeListeners closes every subscriber and marks the run done. Both
// happen under a.mu so Subscribe never registers a channel that is not
// closed.
func (a *activeRun) closeListeners() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.listeners {
		close(ch)
	}
	a.listeners = nil
	close(a.done)
}

// Service runs imports in the background, one goroutine per run, with the
// number of concurrent runs bounded by a Limiter.
type Service struct {
	store   BulkCreator
	cfg     ServiceConfig
	limiter *Limiter
	metrics *Metrics

	mu   sync.RWMutex
	runs map[string]*activeRun
}

// NewService validates cfg and returns a Service committing to store.
func NewService(store BulkCreator, cfg ServiceConfig, metrics *Metrics) (*Service, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("import service: batch size must be positive (got %d)", cfg.BatchSize)
	}
	if cfg.BatchDelay < 0 {
		return nil, fmt.Errorf("import service: batch delay must be non-negative")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 10 * time.Minute
	}
	return &Service{
		store:   store,
		cfg:     cfg,
		limiter: NewLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		metrics: metrics,
		runs:    make(map[string]*activeRun),
	}, nil
}

// Metrics returns the metrics the service records to, possibly nil.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Preview parses and validates src without committing anything.
func (s *Service) Preview(ctx context.Context, src io.Reader, size int64) (*Preview, error) {
	r, _ := WrapForImport(src, size, s.cfg.MaxFileSize)
	run := NewRun()
	parsed, err := run.Parse(r)
	if err != nil {
		return nil, err
	}
	outcome, err := run.Validate()
	if err != nil {
		return nil, err
	}
	s.metrics.observeOutcome(outcome)
	logging.FromContext(ctx).Debug("import preview",
		"rows", outcome.Considered,
		"valid", outcome.ValidCount(),
		"rejected", len(outcome.Rejected),
	)
	return &Preview{Header: parsed.Header, Unknown: parsed.Unknown, Outcome: outcome}, nil
}

// Start reads src, registers a run and processes it in the background.
// The returned id is used with Subscribe, Progress, Result and Cancel.
//
// Start returns ErrTooManyImports when no slot frees up in time and
// ErrFileTooLarge when src exceeds the configured size.
func (s *Service) Start(ctx context.Context, fileName string, src io.Reader, size int64) (string, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	r, counter := WrapForImport(src, size, s.cfg.MaxFileSize)
	data, err := io.ReadAll(r)
	if err != nil {
		s.limiter.Release()
		return "", fmt.Errorf("read upload: %w", err)
	}

	id := uuid.New().String()
	runCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
	ar := &activeRun{
		id:       id,
		fileName: fileName,
		run:      NewRun(),
		cancel:   cancel,
		started:  time.Now(),
		done:     make(chan struct{}),
		progress: Progress{
			RunID:     id,
			FileName:  fileName,
			State:     StateIdle,
			BytesRead: counter.BytesRead(),
		},
	}

	s.mu.Lock()
	s.runs[id] = ar
	s.mu.Unlock()

	logger := logging.WithFields(ctx, "run_id", id, "file", fileName)
	logger.Info("import started", "bytes", len(data))
	s.metrics.runStarted()

	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("panic in import run", "panic", rec)
				s.finish(ar, logger, fmt.Errorf("internal error: %v", rec))
			}
		}()
		s.process(runCtx, ar, logger, data)
	}()

	return id, nil
}

func (s *Service) process(ctx context.Context, ar *activeRun, logger *slog.Logger, data []byte) {
	parsed, err := ar.run.Parse(bytes.NewReader(data))
	if err != nil {
		logger.Warn("import parse failed", "error", err)
		s.finish(ar, logger, err)
		return
	}
	ar.update(func(p *Progress) {
		p.State = StateParsed
		p.TotalRows = len(parsed.Rows)
	})

	outcome, err := ar.run.Validate()
	if err != nil {
		s.finish(ar, logger, err)
		return
	}
	s.metrics.observeOutcome(outcome)
	ar.update(func(p *Progress) {
		p.State = StateValidated
		p.Valid = outcome.ValidCount()
		p.Warned = len(outcome.Warned)
		p.Rejected = len(outcome.Rejected)
	})
	logger.Info("import validated",
		"rows", outcome.Considered,
		"clean", len(outcome.Clean),
		"warned", len(outcome.Warned),
		"rejected", len(outcome.Rejected),
	)

	committer, err := NewCommitter(s.store, CommitOptions{
		BatchSize:  s.cfg.BatchSize,
		BatchDelay: s.cfg.BatchDelay,
		Logger:     logger,
		Metrics:    s.metrics,
	})
	if err != nil {
		s.finish(ar, logger, err)
		return
	}

	ar.update(func(p *Progress) {
		p.State = StateCommitting
		p.TotalBatches = (outcome.ValidCount() + s.cfg.BatchSize - 1) / s.cfg.BatchSize
	})
	_, err = ar.run.Commit(ctx, committer, func(bp BatchProgress) {
		ar.update(func(p *Progress) {
			p.Batch = bp.Batch
			p.TotalBatches = bp.TotalBatches
			p.Percent = bp.Percent
			p.Succeeded = bp.Succeeded
			p.Failed = bp.Failed
		})
	})
	s.finish(ar, logger, err)
}

// finish records the result, notifies subscribers one last time, closes
// them and schedules eviction.
func (s *Service) finish(ar *activeRun, logger *slog.Logger, err error) {
	select {
	case <-ar.done:
		return
	default:
	}

	state := ar.run.State()
	if !state.Terminal() {
		state = StateFailed
	}

	res := &Result{
		RunID:     ar.id,
		FileName:  ar.fileName,
		State:     state,
		Outcome:   ar.run.Outcome(),
		Commit:    ar.run.Result(),
		StartedAt: ar.started,
		Duration:  time.Since(ar.started),
	}
	if parsed := ar.run.Parsed(); parsed != nil {
		res.Header = parsed.Header
		res.Unknown = parsed.Unknown
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = fmt.Errorf("import cancelled: %w", err)
		}
		msg := MapError(err)
		res.Error = err.Error()
		res.User = &msg
	}
	ar.result = res

	ar.update(func(p *Progress) {
		p.State = state
		if state == StateDone {
			p.Percent = 100
		}
		if res.User != nil {
			p.Error = res.User.Message
			p.Code = res.User.Code
		}
	})
	ar.closeListeners()

	s.metrics.runFinished(state, res.Duration)
	attrs := []any{"state", state, "duration", res.Duration}
	if c := res.Commit; c != nil {
		attrs = append(attrs, "succeeded", c.Succeeded, "failed", c.Failed, "not_attempted", c.NotAttempted)
	}
	if state == StateFailed {
		logger.Error("import failed", append(attrs, "error", err)...)
	} else {
		logger.Info("import finished", attrs...)
	}

	s.evictAfter(ar.id, s.cfg.Retention)
}

func (s *Service) evictAfter(id string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, id)
		s.mu.Unlock()
	})
}

func (s *Service) get(id string) (*activeRun, error) {
	s.mu.RLock()
	ar, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return ar, nil
}

// Subscribe returns a channel of progress snapshots. The current snapshot
// is delivered first; the channel is closed when the run finishes. A
// subscriber to a finished run receives the final snapshot and a closed
// channel.
func (s *Service) Subscribe(id string) (<-chan Progress, error) {
	ar, err := s.get(id)
	if err != nil {
		return nil, err
	}

	ch := make(chan Progress, 16)
	ar.mu.Lock()
	defer ar.mu.Unlock()
	ch <- ar.progress
	select {
	case <-ar.done:
		close(ch)
	default:
		ar.listeners = append(ar.listeners, ch)
	}
	return ch, nil
}

// Progress returns the current snapshot without blocking.
func (s *Service) Progress(id string) (Progress, error) {
	ar, err := s.get(id)
	if err != nil {
		return Progress{}, err
	}
	return ar.snapshot(), nil
}

// Cancel stops a run before its next batch.
func (s *Service) Cancel(id string) error {
	ar, err := s.get(id)
	if err != nil {
		return err
	}
	ar.cancel()
	return nil
}

// Result blocks until the run finishes or ctx ends.
func (s *Service) Result(ctx context.Context, id string) (*Result, error) {
	ar, err := s.get(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-ar.done:
		return ar.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until every in-flight run has released its slot.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// CancelAll cancels every in-flight run.
func (s *Service) CancelAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ar := range s.runs {
		ar.cancel()
	}
}
