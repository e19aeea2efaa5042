// Package orchestrator runs one routine generation request: the model is
// asked first and the rule-based generator covers every failure, so a
// request that returns always carries a usable routine.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/skinroutine/internal/llm"
	"github.com/dshills/skinroutine/internal/logger"
	"github.com/dshills/skinroutine/internal/profile"
	"github.com/dshills/skinroutine/internal/review"
	"github.com/dshills/skinroutine/internal/routine"
	"github.com/dshills/skinroutine/internal/rules"
)

// Status is the state of one generation request.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusGenerating Status = "generating"
	StatusSucceeded  Status = "succeeded"
	StatusFallenBack Status = "fallen_back"
)

var (
	ErrGenerationInProgress = errors.New("a generation is already in progress")
	ErrInvalidProfile       = errors.New("invalid profile")

	// ErrEmptyPeriod is the fallback cause when the model answered with an
	// empty morning or evening list.
	ErrEmptyPeriod = errors.New("model returned an empty routine period")
	// ErrModelDisabled is the fallback cause when no model client is
	// configured.
	ErrModelDisabled = errors.New("model generation disabled")
)

// Fallback cause kinds that are not llm.Kind values.
const (
	CauseEmptyPeriod = "empty_period"
	CauseDisabled    = "disabled"
	CauseCanceled    = "canceled"
)

// Requester asks a model for a period-split routine. *llm.RoutineClient
// implements it.
type Requester interface {
	RequestRoutine(ctx context.Context, p *profile.Profile) (*llm.Periods, error)
}

// Persister is the durability boundary. *store.Gateway implements it.
// SaveGenerated stores the routine metadata and both periods as one unit.
type Persister interface {
	SaveProfile(ctx context.Context, p *profile.Profile) error
	SaveGenerated(ctx context.Context, r routine.Routine) error
}

// Options tune an Orchestrator. Zero values select the defaults.
type Options struct {
	// Timeout bounds each model attempt. Default 30s.
	Timeout time.Duration
	// Retries is the number of extra attempts after a transient failure.
	Retries int
	// Backoff is the fixed wait between attempts. Default 1s.
	Backoff time.Duration
	Logger  *logger.Logger
	Now     func() time.Time
}

const (
	DefaultTimeout = 30 * time.Second
	DefaultBackoff = time.Second
)

// Result is the outcome of one request. Routine is always usable.
type Result struct {
	Status   Status
	Routine  routine.Routine
	Findings []review.Finding
	// Cause is why the request fell back; nil on success.
	Cause    error
	Attempts int
	// Persisted receives the persistence outcome once and is then closed.
	// It is nil when no Persister was given.
	Persisted <-chan error
}

// CauseKind names the fallback cause: an llm.Kind or one of the Cause*
// constants. It is empty on success.
func (r *Result) CauseKind() string {
	switch {
	case r.Cause == nil:
		return ""
	case errors.Is(r.Cause, ErrEmptyPeriod):
		return CauseEmptyPeriod
	case errors.Is(r.Cause, ErrModelDisabled):
		return CauseDisabled
	case errors.Is(r.Cause, context.Canceled):
		return CauseCanceled
	}
	if k := llm.KindOf(r.Cause); k != "" {
		return string(k)
	}
	return string(llm.KindNetwork)
}

// Orchestrator is safe for concurrent use across users.
type Orchestrator struct {
	client  Requester
	rules   *rules.Generator
	timeout time.Duration
	retries int
	backoff time.Duration
	log     *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	inflight map[any]struct{}
}

// New builds an Orchestrator. A nil client disables the model and every
// request falls back; a nil gen uses a UUID-backed rules generator.
func New(client Requester, gen *rules.Generator, opts Options) *Orchestrator {
	if gen == nil {
		gen = rules.New(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		client:   client,
		rules:    gen,
		timeout:  opts.Timeout,
		retries:  opts.Retries,
		backoff:  opts.Backoff,
		log:      opts.Logger,
		now:      opts.Now,
		inflight: make(map[any]struct{}),
	}
}

// Generate produces a routine for p with no owning user. Concurrent calls
// are only rejected when they pass the same *profile.Profile.
func (o *Orchestrator) Generate(ctx context.Context, p *profile.Profile, save Persister) (*Result, error) {
	return o.GenerateFor(ctx, "", p, save)
}

// GenerateFor produces a routine for p on behalf of owner. The only errors
// are caller contract errors: ErrInvalidProfile and ErrGenerationInProgress.
// Every model failure is absorbed by the rule-based fallback and reported in
// Result.Cause.
//
// A second call for the same owner fails with ErrGenerationInProgress until
// the first one has returned and, when save is non-nil, until its saves have
// finished. The saves run in the background after the routine is built;
// canceling ctx does not cancel them.
func (o *Orchestrator) GenerateFor(ctx context.Context, owner string, p *profile.Profile, save Persister) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil profile", ErrInvalidProfile)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	var key any = p
	if owner != "" {
		key = owner
	}
	if !o.acquire(key) {
		return nil, ErrGenerationInProgress
	}
	if save == nil {
		defer o.release(key)
	}

	req := &request{log: o.log, state: StatusIdle}
	req.transition(StatusGenerating)

	res := &Result{}
	periods, attempts, err := o.requestWithRetry(ctx, p)
	res.Attempts = attempts
	if err == nil && (len(periods.Morning) == 0 || len(periods.Evening) == 0) {
		err = fmt.Errorf("%w: morning %d steps, evening %d steps", ErrEmptyPeriod, len(periods.Morning), len(periods.Evening))
	}

	if err == nil {
		res.Status = StatusSucceeded
		res.Routine = routine.Routine{
			Version:     routine.SchemaVersion,
			Source:      routine.SourceLLM,
			Model:       periods.Model,
			GeneratedAt: o.now().UTC(),
			Morning:     periods.Morning,
			Evening:     periods.Evening,
		}
		res.Findings = review.Check(p, res.Routine)
		req.transition(StatusSucceeded, "model", periods.Model, "attempts", attempts)
		if warn, info := review.Counts(res.Findings); warn+info > 0 {
			o.log.Info("routine review", "warn", warn, "info", info)
			for _, f := range res.Findings {
				o.log.Debug("routine finding", "severity", f.Severity, "code", f.Code, "period", f.Period, "message", f.Message)
			}
		}
	} else {
		res.Status = StatusFallenBack
		res.Cause = err
		res.Routine = o.fallback(p)
		req.transition(StatusFallenBack, "cause", res.CauseKind(), "error", err.Error(), "attempts", attempts)
	}

	if save != nil {
		res.Persisted = o.persistAsync(context.WithoutCancel(ctx), save, p, res.Routine, func() { o.release(key) })
	}
	return res, nil
}

// Fallback returns the rule-based routine for p, split by position.
func (o *Orchestrator) Fallback(p *profile.Profile) routine.Routine {
	return o.fallback(p)
}

func (o *Orchestrator) fallback(p *profile.Profile) routine.Routine {
	morning, evening := routine.Split(o.rules.Generate(p))
	return routine.Routine{
		Version:     routine.SchemaVersion,
		Source:      routine.SourceRules,
		GeneratedAt: o.now().UTC(),
		Morning:     morning,
		Evening:     evening,
	}
}

// requestWithRetry makes up to 1+retries attempts, each under its own
// timeout. Only transient failures are retried.
func (o *Orchestrator) requestWithRetry(ctx context.Context, p *profile.Profile) (*llm.Periods, int, error) {
	if o.client == nil {
		return nil, 0, ErrModelDisabled
	}
	for attempt := 1; ; attempt++ {
		actx, cancel := context.WithTimeout(ctx, o.timeout)
		periods, err := o.client.RequestRoutine(actx, p)
		cancel()
		if err == nil {
			if periods == nil {
				periods = &llm.Periods{}
			}
			return periods, attempt, nil
		}
		if ctx.Err() != nil && llm.KindOf(err) == "" {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}

		var ge *llm.GenerationError
		if attempt > o.retries || !errors.As(err, &ge) || !ge.Transient() || ctx.Err() != nil {
			return nil, attempt, err
		}
		o.log.Warn("model attempt failed, retrying", "attempt", attempt, "kind", ge.Kind, "error", err.Error())
		select {
		case <-ctx.Done():
			return nil, attempt, err
		case <-time.After(o.backoff):
		}
	}
}

// persistAsync saves the profile and the routine concurrently, then calls
// release. The two writes are independent: one failing does not cancel the
// other. The routine is stored whole or not at all. The first failure is
// delivered on the returned channel.
func (o *Orchestrator) persistAsync(ctx context.Context, save Persister, p *profile.Profile, r routine.Routine, release func()) <-chan error {
	done := make(chan error, 1)
	snapshot := p.Clone()
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		var g errgroup.Group
		g.Go(func() error { return save.SaveProfile(ctx, snapshot) })
		g.Go(func() error { return save.SaveGenerated(ctx, r) })
		err := g.Wait()
		if err != nil {
			o.log.Error("routine persistence failed", "error", err.Error())
		} else {
			o.log.Debug("routine persisted", "morning", len(r.Morning), "evening", len(r.Evening))
		}
		release()
		done <- err
	}()
	return done
}

func (o *Orchestrator) acquire(key any) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(key any) {
	o.mu.Lock()
	delete(o.inflight, key)
	o.mu.Unlock()
}

// request tracks the state of one Generate call.
type request struct {
	log   *logger.Logger
	state Status
}

func (r *request) transition(to Status, kv ...interface{}) {
	from := r.state
	r.state = to
	r.log.Info("generation state", append([]interface{}{"from", from, "to", to}, kv...)...)
}
