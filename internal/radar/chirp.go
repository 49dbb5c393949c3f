// SPDX-License-Identifier: MIT
package radar

import (
	"fmt"
	"math"
	"strings"
)

// Polarity selects the sweep direction of the transmitted chirp.
type Polarity int

const (
	// PolarityUp sweeps from StartFrequency to StartFrequency+Bandwidth.
	PolarityUp Polarity = iota
	// PolarityDown sweeps from StartFrequency+Bandwidth down to StartFrequency.
	PolarityDown
)

func (p Polarity) String() string {
	if p == PolarityDown {
		return "down"
	}
	return "up"
}

// ParsePolarity converts "up"/"down" (case-insensitive) to a Polarity.
func ParsePolarity(name string) (Polarity, error) {
	switch strings.ToLower(name) {
	case "", "up":
		return PolarityUp, nil
	case "down":
		return PolarityDown, nil
	default:
		return PolarityUp, fmt.Errorf("%w: unknown polarity '%s'", ErrInvalidChirpParameters, name)
	}
}

// ChirpParameters describe a linear frequency-modulated transmit pulse.
type ChirpParameters struct {
	StartFrequency float64  // Hz
	Bandwidth      float64  // Hz, > 0
	Duration       float64  // seconds, > 0
	SampleRate     float64  // Hz, > 0
	Polarity       Polarity // sweep direction
}

// Validate reports ErrInvalidChirpParameters for non-positive bandwidth,
// duration or sample rate, non-finite values, or a pulse shorter than one
// sample.
func (p ChirpParameters) Validate() error {
	for _, v := range []float64{p.StartFrequency, p.Bandwidth, p.Duration, p.SampleRate} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in %+v", ErrInvalidChirpParameters, p)
		}
	}
	if p.Bandwidth <= 0 {
		return fmt.Errorf("%w: bandwidth must be positive, got %g", ErrInvalidChirpParameters, p.Bandwidth)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalidChirpParameters, p.Duration)
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %g", ErrInvalidChirpParameters, p.SampleRate)
	}
	if p.Samples() == 0 {
		return fmt.Errorf("%w: %g s at %g Hz yields no samples", ErrInvalidChirpParameters, p.Duration, p.SampleRate)
	}
	return nil
}

// Samples returns floor(Duration*SampleRate), the natural pulse length. A
// product within 1e-9 of an integer counts as that integer.
func (p ChirpParameters) Samples() int {
	n := math.Floor(p.Duration*p.SampleRate + 1e-9)
	if n <= 0 || math.IsNaN(n) {
		return 0
	}
	return int(n)
}

// Synthesize generates the analytic LFM replica exp(j*phi(t)) with phi(0)=0,
// zero-padded or truncated to length samples. The phase of every sample is
// evaluated in closed form, so identical parameters give bit-identical output.
func Synthesize(p ChirpParameters, length int) (Trace, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, fmt.Errorf("%w: replica length must be positive, got %d", ErrInvalidChirpParameters, length)
	}

	f0, rate := p.StartFrequency, p.Bandwidth/p.Duration
	if p.Polarity == PolarityDown {
		f0, rate = p.StartFrequency+p.Bandwidth, -rate
	}

	out := make(Trace, length)
	n := min(p.Samples(), length)
	for i := range n {
		t := float64(i) / p.SampleRate
		phi := 2 * math.Pi * (f0*t + 0.5*rate*t*t)
		s, c := math.Sincos(phi)
		out[i] = complex(c, s)
	}
	return out, nil
}
