// SPDX-License-Identifier: MIT
package radar

import (
	"fmt"
	"math/cmplx"
	"strings"
)

// Trace is one pulse's fast-time sample sequence (an A-scope). Sample j sits at
// fast-time index j. Real-only captures are stored with a zero imaginary part.
type Trace []complex128

// Domain records whether the samples of a buffer still carry phase.
type Domain int

const (
	// DomainComplex buffers preserve amplitude and phase.
	DomainComplex Domain = iota
	// DomainDetected buffers hold magnitude or power; phase has been discarded.
	DomainDetected
)

func (d Domain) String() string {
	switch d {
	case DomainComplex:
		return "complex"
	case DomainDetected:
		return "detected"
	default:
		return "unknown"
	}
}

// ParseDomain converts a case-insensitive name to a Domain.
func ParseDomain(name string) (Domain, error) {
	switch strings.ToLower(name) {
	case "", "complex", "iq":
		return DomainComplex, nil
	case "detected", "real", "magnitude":
		return DomainDetected, nil
	default:
		return DomainComplex, fmt.Errorf("unknown sample domain: '%s'", name)
	}
}

// Clone returns an independent copy of t.
func (t Trace) Clone() Trace {
	out := make(Trace, len(t))
	copy(out, t)
	return out
}

// Magnitudes returns |t[j]| for every sample.
func (t Trace) Magnitudes() []float64 {
	out := make([]float64, len(t))
	for j, v := range t {
		out[j] = cmplx.Abs(v)
	}
	return out
}

// Energy returns the sum of |t[j]|^2.
func (t Trace) Energy() float64 {
	var e float64
	for _, v := range t {
		e += real(v)*real(v) + imag(v)*imag(v)
	}
	return e
}

// PeakIndex returns the index of the largest-magnitude sample, or -1 for an
// empty trace. Ties resolve to the earliest index.
func (t Trace) PeakIndex() int {
	peak, best := -1, -1.0
	for j, v := range t {
		if m := real(v)*real(v) + imag(v)*imag(v); m > best {
			peak, best = j, m
		}
	}
	return peak
}
