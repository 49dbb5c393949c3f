// SPDX-License-Identifier: MIT
package radar

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testChirp = ChirpParameters{
	StartFrequency: 2e6,
	Bandwidth:      10e6,
	Duration:       1e-6,
	SampleRate:     testSampleRate,
}

func TestSynthesizeDeterministic(t *testing.T) {
	a, err := Synthesize(testChirp, 64)
	require.NoError(t, err)
	b, err := Synthesize(testChirp, 64)
	require.NoError(t, err)

	require.Len(t, a, 64)
	for i := range a {
		if math.Float64bits(real(a[i])) != math.Float64bits(real(b[i])) ||
			math.Float64bits(imag(a[i])) != math.Float64bits(imag(b[i])) {
			t.Fatalf("sample %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSynthesizeShape(t *testing.T) {
	n := testChirp.Samples()
	require.Equal(t, 50, n)

	r, err := Synthesize(testChirp, 80)
	require.NoError(t, err)

	// Starting phase zero, unit amplitude inside the pulse, zero padding after.
	assert.Equal(t, complex(1, 0), r[0])
	for i := range n {
		assert.InDelta(t, 1.0, cmplx.Abs(r[i]), 1e-12)
	}
	for i := n; i < len(r); i++ {
		assert.Equal(t, complex(0, 0), r[i])
	}

	short, err := Synthesize(testChirp, 20)
	require.NoError(t, err)
	assert.Equal(t, r[:20], short)
}

// instantaneousFrequency estimates the frequency between samples i and i+1
// from the phase increment.
func instantaneousFrequency(r Trace, i int, fs float64) float64 {
	dphi := cmplx.Phase(r[i+1] * cmplx.Conj(r[i]))
	return dphi / (2 * math.Pi) * fs
}

func TestSynthesizePolarity(t *testing.T) {
	up, err := Synthesize(testChirp, testChirp.Samples())
	require.NoError(t, err)

	down := testChirp
	down.Polarity = PolarityDown
	dn, err := Synthesize(down, down.Samples())
	require.NoError(t, err)

	last := testChirp.Samples() - 2
	assert.Less(t, instantaneousFrequency(up, 0, testSampleRate), instantaneousFrequency(up, last, testSampleRate))
	assert.Greater(t, instantaneousFrequency(dn, 0, testSampleRate), instantaneousFrequency(dn, last, testSampleRate))

	// Both sweeps occupy the same band.
	assert.InDelta(t, testChirp.StartFrequency, instantaneousFrequency(up, 0, testSampleRate), 0.2e6)
	assert.InDelta(t, testChirp.StartFrequency+testChirp.Bandwidth, instantaneousFrequency(dn, 0, testSampleRate), 0.2e6)
}

func TestSynthesizeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ChirpParameters)
		length int
	}{
		{"Zero bandwidth", func(p *ChirpParameters) { p.Bandwidth = 0 }, 16},
		{"Negative bandwidth", func(p *ChirpParameters) { p.Bandwidth = -1 }, 16},
		{"Zero duration", func(p *ChirpParameters) { p.Duration = 0 }, 16},
		{"Zero sample rate", func(p *ChirpParameters) { p.SampleRate = 0 }, 16},
		{"Sub-sample pulse", func(p *ChirpParameters) { p.Duration = 1e-9 }, 16},
		{"NaN start", func(p *ChirpParameters) { p.StartFrequency = math.NaN() }, 16},
		{"Zero length", func(p *ChirpParameters) {}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testChirp
			tt.mutate(&p)
			r, err := Synthesize(p, tt.length)
			assert.Nil(t, r)
			assert.ErrorIs(t, err, ErrInvalidChirpParameters)
		})
	}
}

func TestParsePolarity(t *testing.T) {
	p, err := ParsePolarity("DOWN")
	require.NoError(t, err)
	assert.Equal(t, PolarityDown, p)

	_, err = ParsePolarity("sideways")
	assert.ErrorIs(t, err, ErrInvalidChirpParameters)
}

func TestAnalytic(t *testing.T) {
	const n = 256
	x := make(Trace, n)
	for i := range x {
		x[i] = complex(math.Cos(2*math.Pi*16*float64(i)/n), 0)
	}

	a := Analytic(x)
	require.Len(t, a, n)
	for i := range a {
		// Real part preserved, imaginary part is the quadrature (sine) term.
		assert.InDelta(t, math.Cos(2*math.Pi*16*float64(i)/n), real(a[i]), 1e-9)
		assert.InDelta(t, math.Sin(2*math.Pi*16*float64(i)/n), imag(a[i]), 1e-9)
	}
}
