// SPDX-License-Identifier: MIT
/*
Package radar holds the canonical in-memory radargram representation shared by
every processing stage:
- Trace: one pulse worth of complex fast-time samples
- SampleBuffer: an ordered, immutable set of equal-length traces
- ChirpParameters / Synthesize: the transmitted LFM reference waveform

Buffers are never mutated after construction. Stages derive new buffers with
MapGroups, which fans independent trace groups out to a bounded worker pool.
*/
package radar

import (
	"context"
	"fmt"
	"math"
)

// SampleBuffer is an ordered collection of P traces (slow time) of R samples
// each (fast time), plus the sample rate and optional opaque per-trace keys.
type SampleBuffer struct {
	traces     []Trace
	keys       []any
	sampleRate float64
	length     int
	domain     Domain
}

// BufferOption customises NewSampleBuffer.
type BufferOption func(*SampleBuffer)

// WithKeys attaches one opaque key (timestamp, position fix, ...) per trace.
// Keys are passed through stages untouched; a stacked trace keeps the key of
// the first trace in its group.
func WithKeys(keys []any) BufferOption {
	return func(b *SampleBuffer) {
		b.keys = append([]any(nil), keys...)
	}
}

// WithDomain marks the buffer as complex (default) or detected.
func WithDomain(d Domain) BufferOption {
	return func(b *SampleBuffer) { b.domain = d }
}

// NewSampleBuffer copies traces into a new immutable buffer. All traces must be
// non-empty and of identical length.
func NewSampleBuffer(traces []Trace, sampleRate float64, opts ...BufferOption) (*SampleBuffer, error) {
	b := &SampleBuffer{sampleRate: sampleRate}
	for _, opt := range opts {
		opt(b)
	}

	if len(traces) == 0 {
		return nil, fmt.Errorf("%w: buffer needs at least one trace", ErrShapeMismatch)
	}
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %g", ErrShapeMismatch, sampleRate)
	}
	if b.keys != nil && len(b.keys) != len(traces) {
		return nil, fmt.Errorf("%w: %d keys for %d traces", ErrShapeMismatch, len(b.keys), len(traces))
	}

	b.length = len(traces[0])
	if b.length == 0 {
		return nil, fmt.Errorf("%w: trace 0 is empty", ErrShapeMismatch)
	}
	b.traces = make([]Trace, len(traces))
	for i, t := range traces {
		if len(t) != b.length {
			return nil, fmt.Errorf("%w: trace %d has %d samples, want %d", ErrShapeMismatch, i, len(t), b.length)
		}
		b.traces[i] = t.Clone()
	}

	return b, nil
}

// Len returns the trace count P.
func (b *SampleBuffer) Len() int { return len(b.traces) }

// TraceLen returns the per-trace sample count R.
func (b *SampleBuffer) TraceLen() int { return b.length }

// SampleRate returns the fast-time sample rate in Hz.
func (b *SampleBuffer) SampleRate() float64 { return b.sampleRate }

// Domain reports whether samples still carry phase.
func (b *SampleBuffer) Domain() Domain { return b.domain }

// Trace returns a copy of trace i.
func (b *SampleBuffer) Trace(i int) Trace { return b.traces[i].Clone() }

// At returns sample j of trace i without copying.
func (b *SampleBuffer) At(i, j int) complex128 { return b.traces[i][j] }

// Key returns the opaque key of trace i, or nil when the buffer has none.
func (b *SampleBuffer) Key(i int) any {
	if b.keys == nil {
		return nil
	}
	return b.keys[i]
}

// Magnitudes returns |sample| for trace i.
func (b *SampleBuffer) Magnitudes(i int) []float64 { return b.traces[i].Magnitudes() }

// GroupFunc reduces one group of consecutive traces to a single output trace.
// The group aliases the source buffer: implementations must neither modify nor
// retain it.
type GroupFunc func(group []Trace) (Trace, error)

// MapOptions controls how MapGroups partitions and parallelises work.
type MapOptions struct {
	GroupSize int    // consecutive traces per output trace (>= 1)
	Partial   bool   // emit the trailing incomplete group instead of dropping it
	Workers   int    // concurrent groups; <= 0 uses GOMAXPROCS
	Domain    Domain // domain of the produced buffer
}

// MapGroups partitions the buffer into consecutive non-overlapping groups and
// applies fn to each, producing a new buffer. Every output trace must have the
// same length. The receiver is left untouched; on error no buffer is returned.
func (b *SampleBuffer) MapGroups(ctx context.Context, opts MapOptions, fn GroupFunc) (*SampleBuffer, error) {
	if opts.GroupSize < 1 {
		return nil, fmt.Errorf("%w: group size %d", ErrInvalidStackFactor, opts.GroupSize)
	}

	groups, _ := Partition(len(b.traces), opts.GroupSize, opts.Partial)
	if groups == 0 {
		return nil, fmt.Errorf("%w: %d traces cannot fill a group of %d", ErrShapeMismatch, len(b.traces), opts.GroupSize)
	}

	out := make([]Trace, groups)
	err := forEach(ctx, groups, opts.Workers, func(g int) error {
		lo := g * opts.GroupSize
		hi := min(lo+opts.GroupSize, len(b.traces))
		t, err := fn(b.traces[lo:hi])
		if err != nil {
			return err
		}
		out[g] = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	length := len(out[0])
	for g, t := range out {
		if len(t) == 0 || len(t) != length {
			return nil, fmt.Errorf("%w: group %d produced %d samples, want %d", ErrShapeMismatch, g, len(t), length)
		}
	}

	var keys []any
	if b.keys != nil {
		keys = make([]any, groups)
		for g := range keys {
			keys[g] = b.keys[g*opts.GroupSize]
		}
	}

	return &SampleBuffer{
		traces:     out,
		keys:       keys,
		sampleRate: b.sampleRate,
		length:     length,
		domain:     opts.Domain,
	}, nil
}

// Partition returns how many output groups P traces yield for a group size N,
// and how many trailing traces are discarded. With partial set the trailing
// incomplete group is kept and nothing is discarded.
func Partition(p, n int, partial bool) (groups, dropped int) {
	if n < 1 || p < 1 {
		return 0, max(p, 0)
	}
	groups, dropped = p/n, p%n
	if partial && dropped > 0 {
		groups++
		dropped = 0
	}
	return groups, dropped
}
