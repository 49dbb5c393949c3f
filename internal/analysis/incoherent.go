// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"fmt"
	"math/cmplx"
	"radar/internal/radar"
	"strings"
)

// Mode selects what an IncoherentStacker averages.
type Mode int

const (
	ModeMagnitude Mode = iota // mean of |s|
	ModePower                 // mean of |s|^2
)

func (m Mode) String() string {
	if m == ModePower {
		return "power"
	}
	return "magnitude"
}

// ParseMode converts "magnitude"/"power" to a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "", "magnitude", "mag", "amplitude":
		return ModeMagnitude, nil
	case "power", "pow":
		return ModePower, nil
	default:
		return ModeMagnitude, fmt.Errorf("unknown incoherent stacking mode: '%s'", name)
	}
}

// IncoherentStacker averages the magnitude or power of N consecutive traces,
// discarding phase. The output buffer is detected (real-valued samples stored
// with a zero imaginary part).
type IncoherentStacker struct {
	factor int
	mode   Mode
	opts   stackOptions
}

// NewIncoherentStacker returns a stacker for groups of factor traces.
func NewIncoherentStacker(factor int, mode Mode, opts ...StackOption) (*IncoherentStacker, error) {
	o, err := newStackOptions(factor, opts)
	if err != nil {
		return nil, err
	}
	if mode != ModeMagnitude && mode != ModePower {
		return nil, fmt.Errorf("unknown incoherent stacking mode %d", mode)
	}
	return &IncoherentStacker{factor: factor, mode: mode, opts: o}, nil
}

func (s *IncoherentStacker) Kind() Kind { return KindIncoherentStack }

// Accepts both domains: magnitude of a detected sample is the sample itself.
func (s *IncoherentStacker) Accepts(radar.Domain) bool { return true }

func (s *IncoherentStacker) Produces(radar.Domain) radar.Domain { return radar.DomainDetected }

// Factor returns N.
func (s *IncoherentStacker) Factor() int { return s.factor }

// Mode returns the averaging mode.
func (s *IncoherentStacker) Mode() Mode { return s.mode }

// Dropped returns how many trailing traces are discarded.
func (s *IncoherentStacker) Dropped(traces int) int {
	return dropped(traces, s.factor, s.opts.remainder)
}

func (s *IncoherentStacker) String() string {
	return fmt.Sprintf("N=%d mode=%s remainder=%s", s.factor, s.mode, s.opts.remainder)
}

// Apply averages each group of N traces at every range index.
func (s *IncoherentStacker) Apply(ctx context.Context, in *radar.SampleBuffer) (*radar.SampleBuffer, error) {
	power := s.mode == ModePower
	return in.MapGroups(ctx, radar.MapOptions{
		GroupSize: s.factor,
		Partial:   s.opts.remainder == RemainderPartial,
		Workers:   s.opts.workers,
		Domain:    radar.DomainDetected,
	}, func(group []radar.Trace) (radar.Trace, error) {
		acc := make([]float64, len(group[0]))
		for _, t := range group {
			for j, v := range t {
				if power {
					acc[j] += real(v)*real(v) + imag(v)*imag(v)
				} else {
					acc[j] += cmplx.Abs(v)
				}
			}
		}

		out := make(radar.Trace, len(acc))
		inv := 1 / float64(len(group))
		for j, a := range acc {
			out[j] = complex(a*inv, 0)
		}
		return out, nil
	})
}
