package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hylla/kanfile/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// RetryPolicy bounds lock acquisition: exponential delays from BaseDelay doubling
// up to MaxDelay, giving up after MaxAttempts tries or MaxElapsed, whichever comes first.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	MaxElapsed  time.Duration
}

// DefaultRetryPolicy returns the package default lock retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   25 * time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 40,
		MaxElapsed:  10 * time.Second,
	}
}

// ErrorBody is the wire form of a failed operation.
type ErrorBody struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Fatal   bool      `json:"fatal,omitempty"`
}

// OpResult is the outcome of one operation.
type OpResult struct {
	Op    string     `json:"op,omitempty"`
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`

	err error
}

// Err returns the underlying error of a failed result.
func (r OpResult) Err() error {
	return r.err
}

func successResult(op string, data any) OpResult {
	return OpResult{Op: op, OK: true, Data: data}
}

func failureResult(op string, err error) OpResult {
	return OpResult{
		Op: op,
		Error: &ErrorBody{
			Kind:    KindOf(err),
			Message: err.Error(),
			Fatal:   IsFatal(err),
		},
		err: err,
	}
}

// ExecutorConfig holds executor dependencies and policy.
type ExecutorConfig struct {
	Retry         RetryPolicy
	Defaults      BoardDefaults
	Notifier      Notifier
	NotifyTimeout time.Duration
	Logger        Logger
	InstanceID    string
}

// Executor runs one operation at a time: build, lock, execute, log, release, notify.
type Executor struct {
	store         Store
	idGen         IDGenerator
	clock         Clock
	retry         RetryPolicy
	defaults      BoardDefaults
	notifier      Notifier
	notifyTimeout time.Duration
	logger        Logger
	instanceID    string
}

// NewExecutor constructs an executor over store.
func NewExecutor(store Store, idGen IDGenerator, clock Clock, cfg ExecutorConfig) *Executor {
	if clock == nil {
		clock = time.Now
	}
	if idGen == nil {
		idGen = NewULIDGenerator(clock)
	}
	if cfg.Retry == (RetryPolicy{}) {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Executor{
		store:         store,
		idGen:         idGen,
		clock:         clock,
		retry:         cfg.Retry,
		defaults:      cfg.Defaults,
		notifier:      cfg.Notifier,
		notifyTimeout: cfg.NotifyTimeout,
		logger:        cfg.Logger,
		instanceID:    cfg.InstanceID,
	}
}

// Execute runs op on behalf of actor and returns its result. An "actor" param
// on the operation itself takes precedence.
// Parse and validation failures are returned before any lock is taken and are never logged.
func (e *Executor) Execute(ctx context.Context, op Operation, actor string) OpResult {
	name := op.String()
	if own, ok := op.Params.String("actor"); ok && own != "" {
		actor = own
	}
	cmd, mutates, err := BuildCommand(op)
	if err != nil {
		return failureResult(name, err)
	}
	env := &Env{
		Store:    e.store,
		Now:      e.clock,
		NewID:    e.idGen,
		Actor:    actor,
		Defaults: e.defaults,
	}

	if !mutates {
		res, err := cmd.Execute(ctx, env)
		if err != nil {
			e.logger.Debug("read operation failed", "op", name, "err", err)
			return failureResult(name, err)
		}
		return successResult(name, res.Value)
	}

	res, entry, err := e.runLocked(ctx, op, cmd, env)
	if entry.ID != "" {
		e.notify(ctx, entry, res.Affected)
	}
	if err != nil {
		e.logger.Warn("operation failed", "op", name, "kind", KindOf(err), "err", err)
		return failureResult(name, err)
	}
	return successResult(name, res.Value)
}

// runLocked executes a mutating command while holding the store lock. The
// returned entry has an empty id when nothing was logged.
func (e *Executor) runLocked(ctx context.Context, op Operation, cmd Command, env *Env) (res Result, entry domain.LogEntry, err error) {
	guard, err := e.acquire(ctx)
	if err != nil {
		return Result{}, domain.LogEntry{}, err
	}
	defer func() {
		if releaseErr := guard.Release(); releaseErr != nil {
			e.logger.Error("release store lock", "op", op.String(), "err", releaseErr)
			if err == nil {
				err = errors.Join(ErrIO, releaseErr)
			}
		}
	}()

	started := e.clock()
	res, execErr := cmd.Execute(ctx, env)
	entry = domain.LogEntry{
		ID:         domain.LogEntryID(e.idGen()),
		Timestamp:  started.UTC(),
		Op:         op.String(),
		Input:      op.Params.Map(),
		Actor:      env.Actor,
		DurationMS: float64(e.clock().Sub(started).Microseconds()) / 1000,
	}
	if execErr != nil {
		entry.Error = &domain.LogError{Kind: string(KindOf(execErr)), Message: execErr.Error()}
		res.Affected = nil
	} else {
		entry.Output = res.Value
	}

	if logErr := e.appendLog(ctx, entry, res.Affected); logErr != nil {
		e.logger.Error("append log entry", "op", entry.Op, "entry", entry.ID, "err", logErr)
		if execErr == nil {
			return res, entry, logErr
		}
	}
	return res, entry, execErr
}

// appendLog writes entry to the activity log and to every affected entity's log.
func (e *Executor) appendLog(ctx context.Context, entry domain.LogEntry, affected []domain.EntityRef) error {
	if err := e.store.AppendActivity(ctx, entry); err != nil {
		return err
	}
	seen := map[domain.EntityRef]bool{}
	for _, ref := range affected {
		if seen[ref] {
			continue
		}
		seen[ref] = true
		if err := e.store.AppendEntityLog(ctx, ref, entry); err != nil {
			return err
		}
	}
	return nil
}

// acquire takes the store lock, retrying contention with exponential backoff.
func (e *Executor) acquire(ctx context.Context) (LockGuard, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.retry.BaseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0.1
	expo.MaxInterval = e.retry.MaxDelay
	expo.MaxElapsedTime = e.retry.MaxElapsed

	var policy backoff.BackOff = expo
	if e.retry.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(e.retry.MaxAttempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	var (
		guard    LockGuard
		attempts int
	)
	err := backoff.RetryNotify(func() error {
		attempts++
		g, err := e.store.Lock(ctx)
		if err != nil {
			if errors.Is(err, ErrLockBusy) {
				return err
			}
			return backoff.Permanent(err)
		}
		guard = g
		return nil
	}, policy, func(err error, wait time.Duration) {
		e.logger.Debug("store lock busy; retrying", "attempt", attempts, "wait", wait)
	})
	if err == nil {
		return guard, nil
	}
	if errors.Is(err, ErrLockBusy) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		e.logger.Warn("store lock not acquired", "attempts", attempts, "err", err)
		return nil, fmt.Errorf("%w: gave up after %d attempt(s): %v", ErrLockTimeout, attempts, err)
	}
	return nil, err
}

// notify emits a notification after the lock is released. Failures are logged only.
func (e *Executor) notify(ctx context.Context, entry domain.LogEntry, affected []domain.EntityRef) {
	if e.notifier == nil {
		return
	}
	n := Notification{
		Op:         entry.Op,
		OK:         entry.OK(),
		EntryID:    entry.ID,
		Actor:      entry.Actor,
		Affected:   affected,
		InstanceID: e.instanceID,
		At:         entry.Timestamp.Format(time.RFC3339Nano),
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(nctx, n); err != nil {
		e.logger.Warn("notification failed", "op", n.Op, "entry", n.EntryID, "err", err)
	}
}
