// Package orchestrator sequences the verification pipeline: frame intake
// gating, candidate collection, embedding, and identity verification.
package orchestrator

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veriface/platform/internal/camera"
	"github.com/veriface/platform/internal/errors"
	"github.com/veriface/platform/internal/face"
	"github.com/veriface/platform/internal/syncx"
	"github.com/veriface/platform/internal/trace"
	"github.com/veriface/platform/internal/verify"
)

// eventBuffer bounds the state event stream. Slow consumers lose
// intermediate updates rather than stalling the pipeline.
const eventBuffer = 16

// Analyzer triages a frame into a scored candidate, or nothing.
type Analyzer interface {
	Analyze(frame camera.Frame) (face.Candidate, bool)
}

// Collector accumulates candidates and emits a window winner.
type Collector interface {
	Process(cand face.Candidate) (winner *face.Candidate, progress float64)
	Reset()
}

// Embedder turns a winning candidate into an identity embedding.
type Embedder interface {
	Process(ctx context.Context, frame camera.Frame, desc face.Descriptor) (face.Embedding, error)
}

// Deduper skips frames visually identical to recently seen ones.
type Deduper interface {
	IsDuplicate(img image.Image) bool
	Reset()
}

// Reporter receives one call per surfaced hard failure. Calls are
// fire-and-forget; implementations must not block.
type Reporter interface {
	ReportError(err error)
}

// Options wires the orchestrator's collaborators and session tuning.
type Options struct {
	Analyzer  Analyzer
	Collector Collector
	Embedder  Embedder
	Verifier  verify.Client

	// Deduper is optional; nil disables perceptual-hash frame skipping.
	Deduper Deduper
	// Reporter is optional; nil drops failure notifications.
	Reporter Reporter

	// EmployeeID is the claimed identity to verify against. Empty fails
	// every attempt before any model work is spent.
	EmployeeID string
	// VerifyTimeout bounds a single verification call. 0 disables.
	VerifyTimeout time.Duration
	// SessionTimeout surfaces TimedOut when a session window passes
	// without a match. 0 disables.
	SessionTimeout time.Duration
}

// Orchestrator runs at most one unit of work at a time. A unit is the
// full treatment of one admitted frame: triage, collection, and when a
// window winner emerges, embedding plus verification. Frames arriving
// while a unit is in flight are dropped, never queued, so the pipeline
// always works on fresh imagery.
type Orchestrator struct {
	opts Options

	busy    atomic.Bool
	started atomic.Bool
	matched atomic.Bool

	state  *syncx.RWGuard[State]
	events chan State

	mu           sync.Mutex
	cancelUnit   context.CancelFunc
	sessionTimer *time.Timer

	wg sync.WaitGroup
}

// New creates an orchestrator in the Detecting state. Call Start to begin
// admitting frames.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		opts:   opts,
		state:  syncx.NewGuard(State{Phase: PhaseDetecting}),
		events: make(chan State, eventBuffer),
	}
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	return o.state.Get()
}

// Events returns the state change stream. Only actual changes are emitted.
func (o *Orchestrator) Events() <-chan State {
	return o.events
}

// Start begins a verification session. Starting an already-started
// orchestrator is a no-op.
func (o *Orchestrator) Start() {
	if !o.started.CompareAndSwap(false, true) {
		return
	}
	o.matched.Store(false)
	o.opts.Collector.Reset()
	if o.opts.Deduper != nil {
		o.opts.Deduper.Reset()
	}
	o.publish(State{Phase: PhaseDetecting})
	o.armSessionTimer()
}

// Stop ends the session: cancels any in-flight unit of work, clears the
// intake gate, resets the collector, and returns the state to Detecting.
// A cancelled unit drives no further transitions.
func (o *Orchestrator) Stop() {
	o.started.Store(false)
	o.mu.Lock()
	if o.sessionTimer != nil {
		o.sessionTimer.Stop()
		o.sessionTimer = nil
	}
	if o.cancelUnit != nil {
		o.cancelUnit()
	}
	o.mu.Unlock()
	o.wg.Wait()
	o.opts.Collector.Reset()
	if o.opts.Deduper != nil {
		o.opts.Deduper.Reset()
	}
	o.matched.Store(false)
	o.busy.Store(false)
	o.publish(State{Phase: PhaseDetecting})
}

// OnFrame offers a frame to the pipeline and returns immediately. The
// returned bool reports whether the frame was admitted; frames offered
// while a unit is in flight, before Start, or after a match are dropped
// with no side effects.
func (o *Orchestrator) OnFrame(frame camera.Frame) bool {
	if !o.started.Load() || o.matched.Load() {
		return false
	}
	if !o.busy.CompareAndSwap(false, true) {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancelUnit = cancel
	o.mu.Unlock()
	o.wg.Add(1)
	go o.runUnit(ctx, cancel, frame)
	return true
}

// Run pumps frames from the source into the pipeline until ctx is done or
// the source closes its channel.
func (o *Orchestrator) Run(ctx context.Context, src camera.Source) error {
	if err := src.Start(ctx); err != nil {
		return err
	}
	defer src.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-src.Frames():
			if !ok {
				return nil
			}
			o.OnFrame(frame)
		}
	}
}

func (o *Orchestrator) runUnit(ctx context.Context, cancel context.CancelFunc, frame camera.Frame) {
	defer o.wg.Done()
	defer o.finishUnit(cancel)

	ctx, span := trace.StartSpan(ctx, "verification_unit")
	defer span.End()
	log := trace.Logger(ctx)

	if o.opts.Deduper != nil && frame.Image != nil && o.opts.Deduper.IsDuplicate(frame.Image) {
		return
	}

	cand, ok := o.opts.Analyzer.Analyze(frame)
	if ctx.Err() != nil {
		return
	}
	if !ok {
		// Face lost or unusable: a partial collection is stale imagery.
		o.opts.Collector.Reset()
		o.publishUnit(ctx, State{Phase: PhaseDetecting})
		return
	}

	winner, progress := o.opts.Collector.Process(cand)
	if ctx.Err() != nil {
		return
	}
	if winner == nil {
		o.publishUnit(ctx, State{Phase: PhaseDetecting, Progress: progress})
		return
	}
	span.SetAttr("winner_quality", winner.Quality)

	if o.opts.EmployeeID == "" {
		o.fail(ctx, log, errors.New(errors.CodeNoTargetIdentity, "no target employee configured"))
		return
	}

	o.publishUnit(ctx, State{Phase: PhaseProcessing, Progress: 1})

	emb, err := o.opts.Embedder.Process(ctx, winner.Frame, winner.Descriptor)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fail(ctx, log, err)
		return
	}

	vctx := ctx
	if o.opts.VerifyTimeout > 0 {
		var vcancel context.CancelFunc
		vctx, vcancel = context.WithTimeout(ctx, o.opts.VerifyTimeout)
		defer vcancel()
	}
	match, err := o.opts.Verifier.Verify(vctx, o.opts.EmployeeID, emb)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fail(ctx, log, err)
		return
	}

	o.matched.Store(true)
	o.stopSessionTimer()
	o.publishUnit(ctx, State{Phase: PhaseMatched, Progress: 1, Name: match.EmployeeName})
	log.Info("identity verified",
		"employee_id", match.EmployeeID,
		"confidence", match.Confidence,
		"frame_seq", frame.Seq)
}

// fail surfaces a hard failure exactly once, then returns to Detecting.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, err error) {
	o.opts.Collector.Reset()
	if o.opts.Reporter != nil {
		o.opts.Reporter.ReportError(err)
	}
	code := errors.CodeOf(err)
	log.Warn("verification attempt failed", "reason", code.String(), "error", err)
	o.publishUnit(ctx, State{Phase: PhaseError, Reason: code.String()})
	o.publishUnit(ctx, State{Phase: PhaseDetecting})
}

func (o *Orchestrator) finishUnit(cancel context.CancelFunc) {
	cancel()
	o.mu.Lock()
	o.cancelUnit = nil
	o.mu.Unlock()
	o.busy.Store(false)
}

// publishUnit publishes on behalf of a unit of work. A cancelled unit must
// not drive transitions, so the unit context is checked first.
func (o *Orchestrator) publishUnit(ctx context.Context, st State) {
	if ctx.Err() != nil {
		return
	}
	o.publish(st)
}

// publish records the state and emits it to the event stream when it
// actually changed.
func (o *Orchestrator) publish(st State) {
	changed := o.state.Update(func(cur *State) any {
		if *cur == st {
			return false
		}
		*cur = st
		return true
	}).(bool)
	if !changed {
		return
	}
	select {
	case o.events <- st:
	default:
	}
}

func (o *Orchestrator) armSessionTimer() {
	if o.opts.SessionTimeout <= 0 {
		return
	}
	o.mu.Lock()
	if o.sessionTimer != nil {
		o.sessionTimer.Stop()
	}
	o.sessionTimer = time.AfterFunc(o.opts.SessionTimeout, o.onSessionTimeout)
	o.mu.Unlock()
}

func (o *Orchestrator) stopSessionTimer() {
	o.mu.Lock()
	if o.sessionTimer != nil {
		o.sessionTimer.Stop()
		o.sessionTimer = nil
	}
	o.mu.Unlock()
}

// onSessionTimeout surfaces TimedOut once, discards in-flight work, and
// re-arms for the next session window.
func (o *Orchestrator) onSessionTimeout() {
	if !o.started.Load() || o.matched.Load() {
		return
	}
	o.mu.Lock()
	if o.cancelUnit != nil {
		o.cancelUnit()
	}
	o.mu.Unlock()
	o.opts.Collector.Reset()
	o.publish(State{Phase: PhaseTimedOut})
	o.publish(State{Phase: PhaseDetecting})
	o.armSessionTimer()
}
