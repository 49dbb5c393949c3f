// SPDX-License-Identifier: MIT

/*
Package capture is the boundary between stored or simulated radar data and
the processing core. A Source produces one validated radar.SampleBuffer; a
Recorder writes a processed buffer back out as WAV.
*/
package capture

import (
	"context"
	"fmt"
	"radar/internal/radar"
	"radar/pkg/utils"
)

// Source loads raw traces for one processing run.
type Source interface {
	Load(ctx context.Context) (*radar.SampleBuffer, error)
}

// SyntheticSource simulates a radargram: every trace holds the chirp replica
// delayed by Delay samples and scaled by Amplitude, plus circular Gaussian
// noise. Runs with the same Seed produce identical buffers.
type SyntheticSource struct {
	Chirp       radar.ChirpParameters
	Traces      int
	TraceLength int
	Delay       int
	Amplitude   complex128
	NoiseSigma  float64
	Seed        uint64
}

func (s *SyntheticSource) Load(ctx context.Context) (*radar.SampleBuffer, error) {
	if s.Traces < 1 || s.TraceLength < 1 {
		return nil, fmt.Errorf("%w: synthetic capture needs traces and samples, got %dx%d",
			radar.ErrShapeMismatch, s.Traces, s.TraceLength)
	}

	replica, err := radar.Synthesize(s.Chirp, s.Chirp.Samples())
	if err != nil {
		return nil, err
	}

	rng := utils.NewRand(s.Seed)
	echo := utils.EchoTrace(replica, s.TraceLength, s.Delay, s.Amplitude)
	traces := make([]radar.Trace, s.Traces)
	keys := make([]any, s.Traces)
	for i := range traces {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", radar.ErrCancelled, err)
		}
		traces[i] = utils.AddTraces(echo, utils.ComplexNoise(rng, s.TraceLength, s.NoiseSigma))
		keys[i] = i
	}

	return radar.NewSampleBuffer(traces, s.Chirp.SampleRate, radar.WithKeys(keys))
}
