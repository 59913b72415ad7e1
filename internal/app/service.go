package app

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ServiceConfig holds configuration for Service construction.
type ServiceConfig struct {
	Retry         RetryPolicy
	Defaults      BoardDefaults
	Notifier      Notifier
	NotifyTimeout time.Duration
	Logger        Logger
	InstanceID    string
}

// Service is the entry point every transport calls: normalize, queue, execute.
type Service struct {
	store  Store
	exec   *Executor
	queue  *Queue
	clock  Clock
	logger Logger
}

// NewService constructs a new service value for the package API.
func NewService(store Store, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	exec := NewExecutor(store, idGen, clock, ExecutorConfig{
		Retry:         cfg.Retry,
		Defaults:      cfg.Defaults,
		Notifier:      cfg.Notifier,
		NotifyTimeout: cfg.NotifyTimeout,
		Logger:        logger,
		InstanceID:    cfg.InstanceID,
	})
	return &Service{
		store:  store,
		exec:   exec,
		queue:  NewQueue(exec),
		clock:  clock,
		logger: logger,
	}
}

// Response is the outcome of one call. Batch responses carry one result per attempted operation.
type Response struct {
	Batch   bool       `json:"batch"`
	Results []OpResult `json:"results"`
}

// Payload returns the wire value: the single result, or the result list for batches.
func (r Response) Payload() any {
	if r.Batch || len(r.Results) != 1 {
		return r.Results
	}
	return r.Results[0]
}

// Failed returns the first failed result, if any.
func (r Response) Failed() (OpResult, bool) {
	for _, res := range r.Results {
		if !res.OK {
			return res, true
		}
	}
	return OpResult{}, false
}

// Execute normalizes input and runs the resulting operations in order.
// A blank actor falls back to the caller attached to ctx. The returned error
// is non-nil only when the input is rejected before any operation runs.
func (s *Service) Execute(ctx context.Context, input any, actor string) (Response, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		if caller, ok := CallerFromContext(ctx); ok {
			actor = caller.Actor
		}
	}
	ops, batch, err := Normalize(input)
	if err != nil {
		return Response{}, err
	}
	results, err := s.queue.Run(ctx, ops, actor)
	if err != nil {
		return Response{}, err
	}
	if len(ops) > 1 {
		s.logger.Debug("batch finished", "ops", len(ops), "attempted", len(results))
	}
	return Response{Batch: batch, Results: results}, nil
}

// ExecuteOp runs one already-canonical operation.
func (s *Service) ExecuteOp(ctx context.Context, op Operation, actor string) OpResult {
	return s.exec.Execute(ctx, op, actor)
}

// Vocabulary lists every supported operation.
func (s *Service) Vocabulary() []OpSpec {
	return Vocabulary()
}

// Ready reports whether the store has an initialized board.
func (s *Service) Ready(ctx context.Context) error {
	ok, err := s.store.BoardExists(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: board not initialized", ErrNotFound)
	}
	return nil
}
