// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"radar/internal/radar"

	"gonum.org/v1/gonum/stat"
)

// RangeGate names a window of fast-time samples [Start, End), e.g. the
// expected surface or bed return.
type RangeGate struct {
	Name  string
	Start int
	End   int
}

// GateEnergy is the mean power of every gate for one trace.
type GateEnergy struct {
	Trace  int
	Key    any
	Energy map[string]float64
}

// GateEnergies calculates, for each trace of b, the mean |s|^2 inside every
// gate. Gates are clipped to the trace length; a gate that ends up empty
// reports zero.
func GateEnergies(b *radar.SampleBuffer, gates []RangeGate) ([]GateEnergy, error) {
	for _, g := range gates {
		if g.Name == "" {
			return nil, fmt.Errorf("range gate needs a name")
		}
		if g.Start < 0 || g.End < g.Start {
			return nil, fmt.Errorf("range gate '%s' has invalid bounds [%d, %d)", g.Name, g.Start, g.End)
		}
	}

	out := make([]GateEnergy, b.Len())
	power := make([]float64, 0, b.TraceLen())
	for i := range out {
		out[i] = GateEnergy{Trace: i, Key: b.Key(i), Energy: make(map[string]float64, len(gates))}
		for _, g := range gates {
			lo, hi := min(g.Start, b.TraceLen()), min(g.End, b.TraceLen())
			if hi <= lo {
				out[i].Energy[g.Name] = 0
				continue
			}

			power = power[:0]
			for j := lo; j < hi; j++ {
				v := b.At(i, j)
				power = append(power, real(v)*real(v)+imag(v)*imag(v))
			}
			out[i].Energy[g.Name] = stat.Mean(power, nil)
		}
	}
	return out, nil
}
