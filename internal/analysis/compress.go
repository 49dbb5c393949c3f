// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"fmt"
	applog "radar/internal/log"
	"radar/internal/radar"
	"radar/pkg/bitint"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Normalization selects how compressed output is scaled.
type Normalization int

const (
	// NormalizeNone returns the raw correlation sum.
	NormalizeNone Normalization = iota
	// NormalizeEnergy divides by the replica energy, so a trace that exactly
	// contains the replica compresses to a unit peak.
	NormalizeEnergy
)

func (n Normalization) String() string {
	if n == NormalizeEnergy {
		return "energy"
	}
	return "none"
}

// ParseNormalization converts "none"/"energy" to a Normalization.
func ParseNormalization(name string) (Normalization, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return NormalizeNone, nil
	case "energy", "replica":
		return NormalizeEnergy, nil
	default:
		return NormalizeNone, fmt.Errorf("unknown normalization mode: '%s'", name)
	}
}

// Padding selects the common transform length of trace and replica.
type Padding int

const (
	// PadLinear pads to the next power of two >= R+L-1, so the circular
	// correlation equals the linear one and echoes never wrap around.
	PadLinear Padding = iota
	// PadCircular pads to the next power of two >= R. Echoes closer than L
	// samples to the end of the window wrap to the start.
	PadCircular
)

func (p Padding) String() string {
	if p == PadCircular {
		return "circular"
	}
	return "linear"
}

// ParsePadding converts "linear"/"circular" to a Padding.
func ParsePadding(name string) (Padding, error) {
	switch strings.ToLower(name) {
	case "", "linear":
		return PadLinear, nil
	case "circular":
		return PadCircular, nil
	default:
		return PadLinear, fmt.Errorf("unknown padding mode: '%s'", name)
	}
}

// CompressOption configures a PulseCompressor.
type CompressOption func(*PulseCompressor)

// WithNormalization sets the output scaling (default NormalizeNone).
func WithNormalization(n Normalization) CompressOption {
	return func(c *PulseCompressor) { c.norm = n }
}

// WithPadding sets the transform length policy (default PadLinear).
func WithPadding(p Padding) CompressOption {
	return func(c *PulseCompressor) { c.padding = p }
}

// WithWindow tapers the replica before correlation (default Rectangular).
func WithWindow(w WindowFunc) CompressOption {
	return func(c *PulseCompressor) { c.window = w }
}

// WithCompressWorkers bounds the number of traces compressed concurrently.
func WithCompressWorkers(n int) CompressOption {
	return func(c *PulseCompressor) { c.workers = n }
}

// PulseCompressor range-compresses complex traces by circular
// cross-correlation with the transmitted replica, computed in the frequency
// domain as IFFT(FFT(trace) * conj(FFT(replica))). Lag 0 of the output
// corresponds to perfect alignment of the replica with the start of the
// trace, so an echo delayed by d samples peaks at index d.
type PulseCompressor struct {
	replica radar.Trace
	energy  float64
	norm    Normalization
	padding Padding
	window  WindowFunc
	workers int

	mu    sync.Mutex
	plans map[int]*spectrumPlan
}

// spectrumPlan caches the conjugated replica spectrum for one transform
// length. gonum FFT objects keep internal work space, so each worker borrows
// its own from the pool.
type spectrumPlan struct {
	n    int
	conj []complex128
	ffts sync.Pool
}

// NewPulseCompressor prepares a compressor for replica. The replica is copied
// and, if a window is configured, tapered across its full length.
func NewPulseCompressor(replica radar.Trace, opts ...CompressOption) (*PulseCompressor, error) {
	if len(replica) == 0 {
		return nil, fmt.Errorf("%w: empty replica", radar.ErrInvalidChirpParameters)
	}

	c := &PulseCompressor{plans: make(map[int]*spectrumPlan)}
	for _, opt := range opts {
		opt(c)
	}

	coeffs := windowCoefficients(len(replica), c.window)
	c.replica = make(radar.Trace, len(replica))
	for i, v := range replica {
		c.replica[i] = v * complex(coeffs[i], 0)
	}
	c.energy = c.replica.Energy()

	if c.norm == NormalizeEnergy && c.energy == 0 {
		return nil, fmt.Errorf("%w: replica has zero energy", radar.ErrInvalidChirpParameters)
	}

	applog.Debugf("Analysis: Initializing PulseCompressor (Replica: %d samples, Window: %s, Padding: %s, Normalization: %s)",
		len(c.replica), c.window, c.padding, c.norm)

	return c, nil
}

func (c *PulseCompressor) Kind() Kind { return KindPulseCompress }

// Accepts only complex input; matched filtering needs phase.
func (c *PulseCompressor) Accepts(in radar.Domain) bool { return in == radar.DomainComplex }

func (c *PulseCompressor) Produces(radar.Domain) radar.Domain { return radar.DomainComplex }

// ReplicaLen returns L.
func (c *PulseCompressor) ReplicaLen() int { return len(c.replica) }

// TransformLength returns the output trace length for input traces of
// traceLen samples.
func (c *PulseCompressor) TransformLength(traceLen int) int {
	if c.padding == PadCircular {
		return bitint.NextPowerOfTwo(traceLen)
	}
	return bitint.NextPowerOfTwo(traceLen + len(c.replica) - 1)
}

func (c *PulseCompressor) String() string {
	return fmt.Sprintf("replica=%d window=%s padding=%s normalization=%s",
		len(c.replica), c.window, c.padding, c.norm)
}

// Apply compresses every trace of in. The output traces are complex and
// TransformLength(R) samples long.
func (c *PulseCompressor) Apply(ctx context.Context, in *radar.SampleBuffer) (*radar.SampleBuffer, error) {
	if !c.Accepts(in.Domain()) {
		return nil, fmt.Errorf("%w: pulse compression needs complex input, got %s", radar.ErrStageTypeMismatch, in.Domain())
	}
	if len(c.replica) > in.TraceLen() {
		return nil, fmt.Errorf("%w: replica has %d samples, trace only %d", radar.ErrReplicaLengthMismatch, len(c.replica), in.TraceLen())
	}

	plan := c.plan(c.TransformLength(in.TraceLen()))
	scale := 1 / float64(plan.n)
	if c.norm == NormalizeEnergy {
		scale /= c.energy
	}

	return in.MapGroups(ctx, radar.MapOptions{
		GroupSize: 1,
		Workers:   c.workers,
		Domain:    radar.DomainComplex,
	}, func(group []radar.Trace) (radar.Trace, error) {
		return plan.correlate(group[0], scale), nil
	})
}

// plan returns the cached replica spectrum for transform length n.
func (c *PulseCompressor) plan(n int) *spectrumPlan {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.plans[n]; ok {
		return p
	}

	p := &spectrumPlan{n: n}
	p.ffts.New = func() any { return fourier.NewCmplxFFT(n) }

	fft := p.ffts.Get().(*fourier.CmplxFFT)
	padded := make([]complex128, n)
	copy(padded, c.replica)
	p.conj = fft.Coefficients(nil, padded)
	for k, v := range p.conj {
		p.conj[k] = complex(real(v), -imag(v))
	}
	p.ffts.Put(fft)

	c.plans[n] = p
	return p
}

// correlate zero-pads t to the plan length and returns its scaled circular
// cross-correlation with the replica.
func (p *spectrumPlan) correlate(t radar.Trace, scale float64) radar.Trace {
	fft := p.ffts.Get().(*fourier.CmplxFFT)
	defer p.ffts.Put(fft)

	buf := make([]complex128, p.n)
	copy(buf, t)
	spectrum := fft.Coefficients(nil, buf)
	for k := range spectrum {
		spectrum[k] *= p.conj[k]
	}

	out := fft.Sequence(buf, spectrum)
	s := complex(scale, 0)
	for j := range out {
		out[j] *= s
	}
	return radar.Trace(out)
}
