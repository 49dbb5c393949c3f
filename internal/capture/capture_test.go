// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"math"
	"math/cmplx"
	"os"
	"path/filepath"
	"radar/internal/radar"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 48000

func iqBuffer(t *testing.T, traces, length int) *radar.SampleBuffer {
	t.Helper()
	tr := make([]radar.Trace, traces)
	for i := range tr {
		tr[i] = make(radar.Trace, length)
		for j := range tr[i] {
			phase := 2 * math.Pi * float64(i*length+j) / 16
			tr[i][j] = complex(0.5*math.Cos(phase), 0.5*math.Sin(phase))
		}
	}
	tr[0][0] = 1 // full scale
	b, err := radar.NewSampleBuffer(tr, testSampleRate)
	require.NoError(t, err)
	return b
}

func TestRecorderRoundTripIQ(t *testing.T) {
	for _, depth := range []int{16, 24, 32} {
		path := filepath.Join(t.TempDir(), "iq.wav")
		in := iqBuffer(t, 3, 8)

		gain, err := NewRecorder(path, depth).Write(in)
		require.NoError(t, err)
		assert.Equal(t, 1.0, gain)

		out, err := NewWAVSource(path, 8).Load(context.Background())
		require.NoError(t, err, "depth %d", depth)
		require.Equal(t, 3, out.Len())
		assert.Equal(t, 8, out.TraceLen())
		assert.Equal(t, float64(testSampleRate), out.SampleRate())
		assert.Equal(t, radar.DomainComplex, out.Domain())
		assert.Equal(t, 2, out.Key(2))

		tol := 2 / fullScale(depth)
		for i := range in.Len() {
			for j := range in.TraceLen() {
				assert.InDelta(t, 0, cmplx.Abs(in.At(i, j)-out.At(i, j)), tol, "depth %d trace %d sample %d", depth, i, j)
			}
		}
	}
}

func TestRecorderDetectedIsMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "detected.wav")
	tr := []radar.Trace{make(radar.Trace, 64)}
	for j := range tr[0] {
		tr[0][j] = complex(2*math.Cos(2*math.Pi*4*float64(j)/64), 0)
	}
	in, err := radar.NewSampleBuffer(tr, testSampleRate, radar.WithDomain(radar.DomainDetected))
	require.NoError(t, err)

	gain, err := NewRecorder(path, 16).Write(in)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, gain, 1e-12)

	f, err := os.Open(path)
	require.NoError(t, err)
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)
	require.NoError(t, f.Close())

	// A mono capture is read back as its analytic signal: the real part is
	// the recorded signal, the imaginary part its quadrature.
	out, err := NewWAVSource(path, 64).Load(context.Background())
	require.NoError(t, err)
	for j := range 64 {
		x := 2 * math.Pi * 4 * float64(j) / 64
		assert.InDelta(t, math.Cos(x), real(out.At(0, j)), 1e-3)
		assert.InDelta(t, math.Sin(x), imag(out.At(0, j)), 1e-3)
	}
}

func TestWAVSourceTrailingFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iq.wav")
	_, err := NewRecorder(path, 16).Write(iqBuffer(t, 3, 8))
	require.NoError(t, err)

	out, err := NewWAVSource(path, 5).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())
	assert.Equal(t, 5, out.TraceLen())

	_, err = NewWAVSource(path, 25).Load(context.Background())
	assert.ErrorIs(t, err, radar.ErrShapeMismatch)

	_, err = NewWAVSource(path, 0).Load(context.Background())
	assert.ErrorIs(t, err, radar.ErrShapeMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewWAVSource(path, 8).Load(ctx)
	assert.ErrorIs(t, err, radar.ErrCancelled)
}

func TestWAVSourceInvalid(t *testing.T) {
	dir := t.TempDir()
	_, err := NewWAVSource(filepath.Join(dir, "missing.wav"), 8).Load(context.Background())
	assert.Error(t, err)

	junk := filepath.Join(dir, "junk.wav")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not RIFF data"), 0644))
	_, err = NewWAVSource(junk, 8).Load(context.Background())
	assert.Error(t, err)
}

func TestRecorderBitDepth(t *testing.T) {
	_, err := NewRecorder(filepath.Join(t.TempDir(), "x.wav"), 12).Write(iqBuffer(t, 1, 4))
	assert.Error(t, err)
}

func TestSyntheticSource(t *testing.T) {
	src := &SyntheticSource{
		Chirp: radar.ChirpParameters{
			StartFrequency: 1e6,
			Bandwidth:      20e6,
			Duration:       0.4e-6,
			SampleRate:     50e6,
		},
		Traces:      6,
		TraceLength: 100,
		Delay:       25,
		Amplitude:   1,
		NoiseSigma:  0.05,
		Seed:        7,
	}

	a, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, a.Len())
	assert.Equal(t, 100, a.TraceLen())
	assert.Equal(t, 50e6, a.SampleRate())
	assert.Equal(t, 5, a.Key(5))

	b, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a.Trace(4), b.Trace(4))

	// Before the echo only noise is present.
	assert.Less(t, cmplx.Abs(a.At(0, 10)), 0.5)
	assert.InDelta(t, 1.0, cmplx.Abs(a.At(0, 25)), 0.3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx)
	assert.ErrorIs(t, err, radar.ErrCancelled)

	src.Traces = 0
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, radar.ErrShapeMismatch)

	src.Traces = 2
	src.Chirp.Bandwidth = 0
	_, err = src.Load(context.Background())
	assert.ErrorIs(t, err, radar.ErrInvalidChirpParameters)
}
