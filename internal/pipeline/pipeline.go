// SPDX-License-Identifier: MIT

/*
Package pipeline composes analysis stages into one reproducible batch
transform. The complex/detected compatibility of consecutive stages is
checked when the pipeline is built, so a chain such as

	IncoherentStack -> PulseCompress

is rejected before any samples are read. Run executes the stages strictly in
order, each consuming the full output of the previous one.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"radar/internal/analysis"
	applog "radar/internal/log"
	"radar/internal/radar"
	"time"

	"github.com/google/uuid"
)

// StageError attaches the failing stage's position to a stage error.
type StageError struct {
	Index int
	Kind  analysis.Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline is an ordered, validated list of stages. It holds no buffer state
// and may be Run any number of times, including concurrently.
type Pipeline struct {
	stages   []analysis.Stage
	input    radar.Domain
	workers  int
	observer Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithInputDomain sets the domain of the buffers the pipeline will be run on
// (default complex). The type-state check starts from it.
func WithInputDomain(d radar.Domain) Option {
	return func(p *Pipeline) { p.input = d }
}

// WithWorkers bounds intra-stage parallelism. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithObserver registers an observer notified of stage and run completion.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// New builds every stage described by configs and verifies that each stage
// accepts the domain produced by its predecessor.
func New(configs []StageConfig, opts ...Option) (*Pipeline, error) {
	if len(configs) == 0 {
		return nil, radar.ErrEmptyPipeline
	}

	p := &Pipeline{input: radar.DomainComplex, observer: nopObserver{}}
	for _, opt := range opts {
		opt(p)
	}

	p.stages = make([]analysis.Stage, 0, len(configs))
	for i, c := range configs {
		s, err := c.Build(p.workers)
		if err != nil {
			return nil, &StageError{Index: i, Kind: c.Kind, Err: err}
		}
		p.stages = append(p.stages, s)
	}

	domain := p.input
	for i, s := range p.stages {
		if !s.Accepts(domain) {
			return nil, &StageError{Index: i, Kind: s.Kind(), Err: fmt.Errorf(
				"%w: %s cannot consume %s input", radar.ErrStageTypeMismatch, s.Kind(), domain)}
		}
		domain = s.Produces(domain)
	}

	return p, nil
}

// Stages returns the configured stages in execution order.
func (p *Pipeline) Stages() []analysis.Stage {
	return append([]analysis.Stage(nil), p.stages...)
}

// OutputDomain returns the domain of the buffers Run produces.
func (p *Pipeline) OutputDomain() radar.Domain {
	d := p.input
	for _, s := range p.stages {
		d = s.Produces(d)
	}
	return d
}

// Run applies every stage in order to in. On failure the error carries the
// failing stage's index and no partial result is returned. Cancelling ctx
// aborts the current stage between traces and reports radar.ErrCancelled.
func (p *Pipeline) Run(ctx context.Context, in *radar.SampleBuffer) (*Result, error) {
	res := &Result{ID: uuid.New(), Started: time.Now()}
	applog.Debugf("Pipeline: Run %s started (%d stages)", res.ID, len(p.stages))

	out, err := p.run(ctx, in, res)
	res.Elapsed = time.Since(res.Started)

	switch {
	case err == nil:
		res.Status = StatusFinished
		res.Buffer = out
	case errors.Is(err, radar.ErrCancelled):
		res.Status = StatusAborted
	default:
		res.Status = StatusFailed
	}
	p.observer.RunCompleted(res.ID, res.Status, res.Elapsed)

	if err != nil {
		applog.Warnf("Pipeline: Run %s %s after %s: %v", res.ID, res.Status, res.Elapsed, err)
		return nil, err
	}
	applog.Infof("Pipeline: Run %s finished in %s (%d traces x %d samples, %s)",
		res.ID, res.Elapsed, out.Len(), out.TraceLen(), out.Domain())
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, in *radar.SampleBuffer, res *Result) (*radar.SampleBuffer, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: nil input buffer", radar.ErrShapeMismatch)
	}
	if !p.stages[0].Accepts(in.Domain()) {
		return nil, &StageError{Index: 0, Kind: p.stages[0].Kind(), Err: fmt.Errorf(
			"%w: %s cannot consume %s input", radar.ErrStageTypeMismatch, p.stages[0].Kind(), in.Domain())}
	}

	buf := in
	for i, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Index: i, Kind: s.Kind(), Err: fmt.Errorf("%w: %w", radar.ErrCancelled, err)}
		}

		applog.Debugf("Pipeline: Stage %d %s (%s) on %d traces x %d samples", i, s.Kind(), s, buf.Len(), buf.TraceLen())
		start := time.Now()
		next, err := s.Apply(ctx, buf)
		if err != nil {
			return nil, &StageError{Index: i, Kind: s.Kind(), Err: err}
		}

		applied := AppliedStage{
			Index:     i,
			Kind:      s.Kind(),
			Params:    s.String(),
			InTraces:  buf.Len(),
			OutTraces: next.Len(),
			InLen:     buf.TraceLen(),
			OutLen:    next.TraceLen(),
			Duration:  time.Since(start),
		}
		if r, ok := s.(analysis.RemainderReporter); ok {
			applied.Dropped = r.Dropped(buf.Len())
		}
		if applied.Dropped > 0 {
			applog.Warnf("Pipeline: Stage %d %s dropped %d trailing traces", i, s.Kind(), applied.Dropped)
		}

		res.Stages = append(res.Stages, applied)
		p.observer.StageCompleted(res.ID, applied)
		buf = next
	}
	return buf, nil
}
