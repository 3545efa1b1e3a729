package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"github.com/seantiz/hamevo/internal/backend"
	"github.com/seantiz/hamevo/internal/circuit"
	"github.com/seantiz/hamevo/internal/definition"
	"github.com/seantiz/hamevo/internal/evolution"
	"github.com/seantiz/hamevo/internal/model"
	"github.com/seantiz/hamevo/internal/store"
)

// DefaultTimeoutS is the default timeout in seconds when none is specified.
const DefaultTimeoutS = 30

const (
	persistAttempts = 3
	persistDelay    = 50 * time.Millisecond
)

var (
	// ErrThrottled is returned by Submit when the admission rate is exceeded.
	ErrThrottled = errors.New("submission rate exceeded")

	// ErrUnknownBackend is returned when a document names an unregistered backend.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrKilled is the cancellation cause of runs stopped by Kill.
	ErrKilled = errors.New("run killed")
)

// Options tunes an Engine. Zero values select defaults.
type Options struct {
	// DefaultTimeoutS applies to runs submitted without a timeout.
	DefaultTimeoutS int

	// SubmitRate is the sustained number of async submissions admitted per
	// second. Zero or less disables throttling.
	SubmitRate float64

	// SubmitBurst is the number of submissions admitted at once. Defaults to 1.
	SubmitBurst int

	// MaxInstructions rejects documents whose evolution fragment would be
	// longer. Zero or less disables the limit.
	MaxInstructions int
}

// Engine executes evolution runs synchronously or in the background.
type Engine struct {
	store          store.Store
	registry       *backend.Registry
	logger         *slog.Logger
	broker         *EventBroker
	limiter        *rate.Limiter
	defaultTimeout int
	maxInstr       int

	wg       sync.WaitGroup
	mu       sync.Mutex
	inflight map[string]*job
}

// job is one admitted run. Everything but cancel and done is owned by the
// goroutine executing it.
type job struct {
	run     model.Run
	exp     *evolution.Experiment
	backend backend.Backend

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}
	seq    int
}

// NewEngine creates a new execution engine.
func NewEngine(s store.Store, reg *backend.Registry, logger *slog.Logger, opts Options) *Engine {
	e := &Engine{
		store:          s,
		registry:       reg,
		logger:         logger,
		broker:         NewEventBroker(),
		defaultTimeout: opts.DefaultTimeoutS,
		maxInstr:       opts.MaxInstructions,
		inflight:       make(map[string]*job),
	}
	if e.defaultTimeout <= 0 {
		e.defaultTimeout = DefaultTimeoutS
	}
	if opts.SubmitRate > 0 {
		burst := opts.SubmitBurst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(opts.SubmitRate), burst)
	}
	return e
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Run executes doc and blocks until the run reaches a terminal status. The
// returned error is non-nil only when the document is rejected or the run
// could not be recorded; execution failures are reported in the run itself.
func (e *Engine) Run(ctx context.Context, doc *definition.Document, timeoutS int) (*model.Run, error) {
	j, err := e.prepare(doc, timeoutS)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateRun(ctx, &j.run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	e.admit(ctx, j)
	e.execute(j)

	return e.store.GetRun(context.WithoutCancel(ctx), j.run.ID)
}

// Submit records doc as a pending run and executes it in the background. The
// returned run is a snapshot taken before execution starts.
func (e *Engine) Submit(ctx context.Context, doc *definition.Document, timeoutS int) (*model.Run, error) {
	j, err := e.prepare(doc, timeoutS)
	if err != nil {
		return nil, err
	}
	if e.limiter != nil && !e.limiter.Allow() {
		SubmissionsThrottled.Inc()
		return nil, ErrThrottled
	}
	if err := e.store.CreateRun(ctx, &j.run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	snapshot := j.run
	e.admit(context.Background(), j)
	e.wg.Go(func() {
		e.execute(j)
	})

	return &snapshot, nil
}

// Kill stops an in-flight run and waits for it to finish. Pending runs that
// are not in flight are marked killed directly. Killing a finished run
// returns store.ErrInvalidTransition.
func (e *Engine) Kill(ctx context.Context, id string) (*model.Run, error) {
	e.mu.Lock()
	j, ok := e.inflight[id]
	e.mu.Unlock()

	if !ok {
		if err := e.store.UpdateRunStatus(ctx, id, model.StatusKilled); err != nil {
			return nil, err
		}
		return e.store.GetRun(ctx, id)
	}

	j.cancel(ErrKilled)
	select {
	case <-j.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r, err := e.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != model.StatusKilled {
		return nil, fmt.Errorf("run already %s: %w", r.Status, store.ErrInvalidTransition)
	}
	return r, nil
}

// InFlight returns the number of admitted runs that have not finished.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}

// Wait blocks until all background runs complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// BuildCircuit returns the circuit doc describes without running it. It is
// subject to the same size limit as runs.
func (e *Engine) BuildCircuit(doc *definition.Document) (*circuit.Circuit, *evolution.Experiment, error) {
	exp, _, err := doc.NewExperiment(evolution.WithLogger(e.logger.With("component", "evolution")))
	if err != nil {
		return nil, nil, err
	}
	if err := definition.CheckCircuitSize(exp, e.maxInstr); err != nil {
		return nil, nil, err
	}
	qc, err := exp.BuildCircuit()
	if err != nil {
		return nil, nil, err
	}
	return qc, exp, nil
}

// prepare builds the experiment described by doc and resolves its backend.
func (e *Engine) prepare(doc *definition.Document, timeoutS int) (*job, error) {
	j := &job{done: make(chan struct{})}

	// The observer reports the single circuit built during execution.
	exp, built, err := doc.NewExperiment(
		evolution.WithLogger(e.logger.With("component", "evolution")),
		evolution.WithCircuitObserver(func(qc *circuit.Circuit) {
			e.emit(j, fmt.Sprintf("circuit built: %d qubits, %d instructions", qc.NumQubits, qc.Len()))
			e.emit(j, fmt.Sprintf("executing on %s backend", j.run.Backend))
		}),
	)
	if err != nil {
		return nil, err
	}
	if err := definition.CheckCircuitSize(exp, e.maxInstr); err != nil {
		return nil, err
	}

	b, err := e.registry.Resolve(built.Backend, built.Shots)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownBackend, err)
	}

	var shots *int
	if !b.IsStatevector() {
		n := b.Capabilities().Shots
		shots = &n
	}

	defJSON, err := doc.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode definition: %w", err)
	}

	if timeoutS <= 0 {
		timeoutS = e.defaultTimeout
	}

	cfg := exp.Config()
	j.run = model.Run{
		ID:             model.NewID(),
		Status:         model.StatusPending,
		Backend:        b.Capabilities().Name,
		NumQubits:      exp.NumQubits(),
		EvoTime:        cfg.EvoTime,
		NumTimeSlices:  cfg.NumTimeSlices,
		ExpansionMode:  string(cfg.ExpansionMode),
		ExpansionOrder: cfg.ExpansionOrder,
		Shots:          shots,
		Definition:     defJSON,
		TimeoutS:       &timeoutS,
		CreatedAt:      time.Now().UTC(),
	}
	j.exp = exp
	j.backend = b
	return j, nil
}

// admit registers j as in flight under a cancellable context derived from parent.
func (e *Engine) admit(parent context.Context, j *job) {
	j.ctx, j.cancel = context.WithCancelCause(parent)

	e.mu.Lock()
	e.inflight[j.run.ID] = j
	e.mu.Unlock()
	RunsInFlight.Inc()
}

// execute runs the job lifecycle: pending→running→completed/failed/killed.
func (e *Engine) execute(j *job) {
	id := j.run.ID
	defer func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		RunsInFlight.Dec()

		j.cancel(nil)
		e.broker.Close(id)
		close(j.done)
	}()

	if context.Cause(j.ctx) != nil {
		e.finish(j, nil, nil, e.cancelMessage(j))
		return
	}

	if err := e.store.UpdateRunStatus(context.Background(), id, model.StatusRunning); err != nil {
		e.logger.Error("failed to transition to running", "run_id", id, "error", err)
		e.finish(j, nil, nil, fmt.Sprintf("failed to start: %v", err))
		return
	}
	start := time.Now().UTC()

	timeout := time.Duration(*j.run.TimeoutS) * time.Second
	ctx, cancel := context.WithTimeout(j.ctx, timeout)
	defer cancel()

	res, err := j.exp.Run(ctx, j.backend)
	if err != nil {
		msg := err.Error()
		switch {
		case errors.Is(context.Cause(j.ctx), ErrKilled):
			msg = ErrKilled.Error()
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			msg = fmt.Sprintf("run timed out after %ds", *j.run.TimeoutS)
		}
		e.emit(j, msg)
		e.finish(j, &start, nil, msg)
		return
	}

	e.emit(j, fmt.Sprintf("mean=%g%+gi std_dev=%g", real(res.Mean), imag(res.Mean), res.StdDev))
	e.finish(j, &start, &res, "")
}

func (e *Engine) cancelMessage(j *job) string {
	if errors.Is(context.Cause(j.ctx), ErrKilled) {
		return ErrKilled.Error()
	}
	return context.Cause(j.ctx).Error()
}

// emit persists a progress line and publishes it to live subscribers.
func (e *Engine) emit(j *job, line string) {
	ev := model.Event{
		RunID:     j.run.ID,
		Seq:       j.seq,
		Line:      line,
		CreatedAt: time.Now().UTC(),
	}
	j.seq++

	if err := e.store.InsertEvent(context.Background(), ev.RunID, ev.Seq, ev.Line); err != nil {
		e.logger.Error("failed to persist event", "run_id", ev.RunID, "seq", ev.Seq, "error", err)
	}
	e.broker.Publish(ev)
}

// finish writes the terminal state of j. A nil res marks the run failed, or
// killed when Kill cancelled it.
func (e *Engine) finish(j *job, startedAt *time.Time, res *evolution.Result, errMsg string) {
	now := time.Now().UTC()
	r := j.run
	r.StartedAt = startedAt
	r.FinishedAt = &now
	r.Error = errMsg

	var durationMS int
	if startedAt != nil {
		durationMS = int(now.Sub(*startedAt).Milliseconds())
		RunDuration.WithLabelValues(r.Backend).Observe(now.Sub(*startedAt).Seconds())
	}
	r.DurationMS = &durationMS

	switch {
	case res != nil:
		re, im, std := real(res.Mean), imag(res.Mean), res.StdDev
		r.Status = model.StatusCompleted
		r.MeanReal, r.MeanImag, r.StdDev = &re, &im, &std
	case errors.Is(context.Cause(j.ctx), ErrKilled):
		r.Status = model.StatusKilled
	default:
		r.Status = model.StatusFailed
	}
	RunsTotal.WithLabelValues(r.Backend, r.Status).Inc()

	err := retry.Do(
		func() error {
			return e.store.UpdateRun(context.Background(), &r)
		},
		retry.Attempts(persistAttempts),
		retry.Delay(persistDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidTransition)
		}),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn("retrying run update", "run_id", r.ID, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		e.logger.Error("failed to record run result", "run_id", r.ID, "status", r.Status, "error", err)
		return
	}
	e.logger.Info("run finished", "run_id", r.ID, "status", r.Status, "backend", r.Backend, "duration_ms", durationMS)
}
