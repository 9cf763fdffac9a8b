// Package engine runs workflow graphs and streams their progress.
//
// A run walks a private snapshot of the submitted graph one node at a time.
// Each node produces exactly three events, in order: node-status "running",
// an execution-log line, and node-status "completed". After the last node the
// run emits a single workflow-status "completed" and is retired.
//
// Runs execute on their own goroutines. At most Options.MaxConcurrentRuns run
// at once; up to Options.MaxQueuedRuns more wait for a slot, and StartRun
// rejects anything beyond that with ErrTooManyRuns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meikuraledutech/flow"
	"github.com/meikuraledutech/flow/ctxlog"
	"golang.org/x/sync/semaphore"
)

var (
	ErrTooManyRuns    = errors.New("engine: too many runs in progress")
	ErrShuttingDown   = errors.New("engine: shutting down")
	errRunInterrupted = errors.New("engine: run interrupted")
)

// Publisher receives every event a run emits, keyed by execution id.
// Publish must not block.
type Publisher interface {
	Publish(topic string, ev flow.Event)
}

// Request is a run submission.
type Request struct {
	Graph      flow.Graph
	Order      Order  // empty uses the engine's configured order
	WorkflowID string // set when running a saved workflow
}

// Engine owns the arena of in-flight runs.
type Engine struct {
	opts   Options
	pub    Publisher
	store  flow.RunStore
	logger *slog.Logger
	slots  *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	runs   map[string]*activeRun
	closed bool
}

type activeRun struct {
	mu        sync.Mutex
	run       flow.Run
	plan      []flow.Node
	seq       int
	cancelled bool
	cancel    context.CancelFunc
}

// New creates an engine publishing to pub. store may be nil, in which case
// runs are not recorded.
func New(pub Publisher, store flow.RunStore, logger *slog.Logger, opts Options) *Engine {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctxlog.WithLogger(context.Background(), logger))
	return &Engine{
		opts:   opts,
		pub:    pub,
		store:  store,
		logger: logger,
		slots:  semaphore.NewWeighted(int64(opts.MaxConcurrentRuns)),
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]*activeRun),
	}
}

// StartRun snapshots req.Graph and starts executing it in the background.
// It returns the execution id without waiting for any node.
//
// Invalid graphs (flow.ErrInvalidGraph), cyclic graphs under topological
// order (flow.ErrCycleDetected), a full arena (ErrTooManyRuns), and a
// stopping engine (ErrShuttingDown) are rejected before an id is issued.
func (e *Engine) StartRun(req Request) (string, error) {
	if err := req.Graph.Validate(); err != nil {
		return "", err
	}

	snapshot := req.Graph.Clone()
	for i := range snapshot.Nodes {
		snapshot.Nodes[i].Status = ""
	}

	order := req.Order
	if order == "" {
		order = e.opts.Order
	}
	plan, err := Plan(snapshot, order)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrShuttingDown
	}
	if len(e.runs) >= e.opts.MaxConcurrentRuns+e.opts.MaxQueuedRuns {
		e.mu.Unlock()
		return "", ErrTooManyRuns
	}

	id := e.opts.NewID()
	ctx, cancel := context.WithCancel(e.ctx)
	ar := &activeRun{
		run: flow.Run{
			ExecutionID: id,
			WorkflowID:  req.WorkflowID,
			Status:      flow.RunPending,
			Nodes:       snapshot.Nodes,
			Edges:       snapshot.Edges,
			StartedAt:   e.opts.Now(),
		},
		plan:   plan,
		cancel: cancel,
	}
	e.runs[id] = ar
	e.wg.Add(1)
	e.mu.Unlock()

	logger := ctxlog.FromContext(ctx).With("executionId", id)
	logger.Info("Workflow started.", "nodes", len(plan), "order", order)

	go e.execute(ctxlog.WithLogger(ctx, logger), ar)
	return id, nil
}

func (e *Engine) execute(ctx context.Context, ar *activeRun) {
	defer e.wg.Done()
	defer ar.cancel()
	logger := ctxlog.FromContext(ctx)

	if e.store != nil {
		ar.mu.Lock()
		rec := cloneRun(ar.run)
		ar.mu.Unlock()
		if err := e.store.CreateRun(context.WithoutCancel(ctx), &rec); err != nil {
			logger.Error("Failed to record run start", "error", err)
		}
	}

	if err := e.slots.Acquire(ctx, 1); err != nil {
		e.finish(ctx, ar, flow.RunCancelled)
		return
	}
	defer e.slots.Release(1)

	if e.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunTimeout)
		defer cancel()
	}

	ar.mu.Lock()
	ar.run.Status = flow.RunRunning
	ar.mu.Unlock()

	for _, n := range ar.plan {
		if err := e.step(ctx, ar, n); err != nil {
			logger.Info("Workflow interrupted.", "nodeId", n.ID, "reason", context.Cause(ctx))
			e.finish(ctx, ar, flow.RunCancelled)
			return
		}
	}

	if err := e.emit(ctx, ar, flow.Event{Kind: flow.EventWorkflowStatus, Status: string(flow.RunCompleted)}); err != nil {
		e.finish(ctx, ar, flow.RunCancelled)
		return
	}
	logger.Info("Workflow completed.")
	e.finish(ctx, ar, flow.RunCompleted)
}

// step activates a single node. A node's own processing never fails the run;
// only cancellation interrupts it.
func (e *Engine) step(ctx context.Context, ar *activeRun, n flow.Node) error {
	if err := e.emit(ctx, ar, flow.Event{Kind: flow.EventNodeStatus, NodeID: n.ID, Status: string(flow.NodeRunning)}); err != nil {
		return err
	}

	switch n.Type {
	case flow.NodeAction:
		ctxlog.FromContext(ctx).Info("Action node", "nodeId", n.ID, "message", n.Data.Message)
	case flow.NodeStart, flow.NodeEnd:
	default:
		ctxlog.FromContext(ctx).Warn("Unrecognized node type", "nodeId", n.ID, "type", n.Type)
	}
	if err := e.emit(ctx, ar, flow.Event{
		Kind:      flow.EventExecutionLog,
		Message:   Message(n),
		Timestamp: e.opts.Now().Format(TimestampLayout),
	}); err != nil {
		return err
	}

	if e.opts.StepDelay > 0 {
		timer := time.NewTimer(e.opts.StepDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return errRunInterrupted
		}
	}

	return e.emit(ctx, ar, flow.Event{Kind: flow.EventNodeStatus, NodeID: n.ID, Status: string(flow.NodeCompleted)})
}

// emit stamps ev with the run's id and next sequence number and publishes it,
// unless the run has been cancelled or has overrun its deadline.
func (e *Engine) emit(ctx context.Context, ar *activeRun, ev flow.Event) error {
	ar.mu.Lock()
	if ar.cancelled || ctx.Err() != nil {
		ar.mu.Unlock()
		return errRunInterrupted
	}
	ar.seq++
	ev.Seq = ar.seq
	ev.ExecutionID = ar.run.ExecutionID
	e.pub.Publish(ev.ExecutionID, ev)
	ar.mu.Unlock()

	if e.store != nil {
		if err := e.store.AppendEvent(context.WithoutCancel(ctx), ev); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to record event", "seq", ev.Seq, "error", err)
		}
	}
	return nil
}

// finish marks the run terminal, records it and retires it from the arena.
func (e *Engine) finish(ctx context.Context, ar *activeRun, status flow.RunStatus) {
	now := e.opts.Now()

	ar.mu.Lock()
	ar.run.Status = status
	ar.run.FinishedAt = &now
	id := ar.run.ExecutionID
	ar.mu.Unlock()

	if e.store != nil {
		if err := e.store.FinishRun(context.WithoutCancel(ctx), id, status, now); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to record run finish", "status", status, "error", err)
		}
	}

	e.mu.Lock()
	delete(e.runs, id)
	e.mu.Unlock()
}

// Run returns a copy of an in-flight run. Retired runs are not found here;
// look them up in the RunStore.
func (e *Engine) Run(executionID string) (flow.Run, bool) {
	e.mu.Lock()
	ar, ok := e.runs[executionID]
	e.mu.Unlock()
	if !ok {
		return flow.Run{}, false
	}
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return cloneRun(ar.run), true
}

// Cancel stops an in-flight run. No further events are emitted for it and
// other runs are unaffected. It reports whether the run was found.
func (e *Engine) Cancel(executionID string) bool {
	e.mu.Lock()
	ar, ok := e.runs[executionID]
	e.mu.Unlock()
	if !ok {
		return false
	}

	ar.mu.Lock()
	ar.cancelled = true
	ar.mu.Unlock()
	ar.cancel()

	e.logger.Info("Workflow cancelled.", "executionId", executionID)
	return true
}

// Active returns the number of admitted runs, queued or running.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.runs)
}

// Shutdown stops accepting runs, cancels the in-flight ones and waits for
// them to wind down or for ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	for _, ar := range e.runs {
		ar.mu.Lock()
		ar.cancelled = true
		ar.mu.Unlock()
	}
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine: shutdown: %w", ctx.Err())
	}
}

func cloneRun(r flow.Run) flow.Run {
	g := flow.Graph{Nodes: r.Nodes, Edges: r.Edges}.Clone()
	r.Nodes, r.Edges = g.Nodes, g.Edges
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		r.FinishedAt = &t
	}
	return r
}
