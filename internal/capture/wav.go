// SPDX-License-Identifier: MIT
package capture

import (
	"context"
	"fmt"
	"os"
	applog "radar/internal/log"
	"radar/internal/radar"

	"github.com/go-audio/wav"
)

// WAVSource reads a PCM WAV capture and cuts it into traces of TraceLength
// frames. A stereo file is taken as I (left) and Q (right); a mono file holds
// real samples and each trace is extended to its analytic signal. Frames past
// the last complete trace are discarded.
type WAVSource struct {
	Path        string
	TraceLength int
}

// NewWAVSource returns a source for the capture at path.
func NewWAVSource(path string, traceLength int) *WAVSource {
	return &WAVSource{Path: path, TraceLength: traceLength}
}

func (s *WAVSource) Load(ctx context.Context) (*radar.SampleBuffer, error) {
	if s.TraceLength < 1 {
		return nil, fmt.Errorf("%w: trace length must be positive, got %d", radar.ErrShapeMismatch, s.TraceLength)
	}

	file, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("'%s' is not a valid WAV file", s.Path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode '%s': %w", s.Path, err)
	}

	channels := int(dec.NumChans)
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("'%s' has %d channels, want 1 (real) or 2 (I/Q)", s.Path, channels)
	}

	frames := len(pcm.Data) / channels
	count := frames / s.TraceLength
	if count == 0 {
		return nil, fmt.Errorf("%w: '%s' holds %d frames, less than one trace of %d",
			radar.ErrShapeMismatch, s.Path, frames, s.TraceLength)
	}
	if rest := frames % s.TraceLength; rest > 0 {
		applog.Warnf("Capture: Discarding %d trailing frames of '%s'", rest, s.Path)
	}

	scale := 1 / fullScale(int(dec.BitDepth))
	traces := make([]radar.Trace, count)
	keys := make([]any, count)
	for i := range traces {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", radar.ErrCancelled, err)
		}

		t := make(radar.Trace, s.TraceLength)
		base := i * s.TraceLength * channels
		for j := range t {
			k := base + j*channels
			if channels == 2 {
				t[j] = complex(float64(pcm.Data[k])*scale, float64(pcm.Data[k+1])*scale)
			} else {
				t[j] = complex(float64(pcm.Data[k])*scale, 0)
			}
		}
		if channels == 1 {
			t = radar.Analytic(t)
		}
		traces[i] = t
		keys[i] = i
	}

	applog.Infof("Capture: Loaded %d traces x %d samples from '%s' (%d Hz, %d-bit, %d channels)",
		count, s.TraceLength, s.Path, dec.SampleRate, dec.BitDepth, channels)

	return radar.NewSampleBuffer(traces, float64(dec.SampleRate), radar.WithKeys(keys))
}

// fullScale returns the largest positive integer sample for bitDepth.
func fullScale(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return float64(int64(1)<<(bitDepth-1) - 1)
}
