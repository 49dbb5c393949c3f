// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"fmt"
	"radar/internal/radar"
)

// CoherentStacker sums N consecutive traces sample by sample, preserving
// phase. There is no 1/N normalisation: N phase-aligned copies of a trace
// stack to N times its amplitude, while uncorrelated noise grows only as
// sqrt(N). Callers that need amplitude-preserving output must scale it.
type CoherentStacker struct {
	factor int
	opts   stackOptions
}

// NewCoherentStacker returns a stacker for groups of factor traces.
func NewCoherentStacker(factor int, opts ...StackOption) (*CoherentStacker, error) {
	o, err := newStackOptions(factor, opts)
	if err != nil {
		return nil, err
	}
	return &CoherentStacker{factor: factor, opts: o}, nil
}

func (s *CoherentStacker) Kind() Kind { return KindCoherentStack }

// Accepts only complex input; summing detected samples would not be coherent.
func (s *CoherentStacker) Accepts(in radar.Domain) bool { return in == radar.DomainComplex }

func (s *CoherentStacker) Produces(radar.Domain) radar.Domain { return radar.DomainComplex }

// Factor returns N.
func (s *CoherentStacker) Factor() int { return s.factor }

// Dropped returns how many trailing traces of a traces-long buffer are
// discarded under the configured remainder policy.
func (s *CoherentStacker) Dropped(traces int) int {
	return dropped(traces, s.factor, s.opts.remainder)
}

func (s *CoherentStacker) String() string {
	return fmt.Sprintf("N=%d remainder=%s", s.factor, s.opts.remainder)
}

// Apply stacks in into floor(P/N) traces (one more with RemainderPartial).
func (s *CoherentStacker) Apply(ctx context.Context, in *radar.SampleBuffer) (*radar.SampleBuffer, error) {
	if !s.Accepts(in.Domain()) {
		return nil, fmt.Errorf("%w: coherent stacking needs complex input, got %s", radar.ErrStageTypeMismatch, in.Domain())
	}

	return in.MapGroups(ctx, radar.MapOptions{
		GroupSize: s.factor,
		Partial:   s.opts.remainder == RemainderPartial,
		Workers:   s.opts.workers,
		Domain:    radar.DomainComplex,
	}, sumTraces)
}

func sumTraces(group []radar.Trace) (radar.Trace, error) {
	out := group[0].Clone()
	for _, t := range group[1:] {
		for j, v := range t {
			out[j] += v
		}
	}
	return out, nil
}
