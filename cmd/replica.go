// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"radar/internal/analysis"
	"radar/internal/capture"
	"radar/internal/config"
	"radar/internal/radar"
)

// ReplicaReport summarizes a synthesized replica and its matched-filter
// response against itself.
type ReplicaReport struct {
	Chirp     radar.ChirpParameters
	Length    int
	Energy    float64
	PeakLag   int
	PeakValue float64 // normalized; 1 for a perfectly matched replica
	Sidelobe  float64 // peak sidelobe level in dB relative to the main lobe
}

// Replica synthesizes the configured replica and compresses it against
// itself. When cfg.Output.Path is set the replica is written as I/Q WAV.
func Replica(ctx context.Context, w io.Writer, cfg *config.Config) (*ReplicaReport, error) {
	chirp, err := cfg.ChirpParameters()
	if err != nil {
		return nil, err
	}
	replica, err := cfg.Replica()
	if err != nil {
		return nil, err
	}

	buf, err := radar.NewSampleBuffer([]radar.Trace{replica}, chirp.SampleRate)
	if err != nil {
		return nil, err
	}
	compressor, err := analysis.NewPulseCompressor(replica, analysis.WithNormalization(analysis.NormalizeEnergy))
	if err != nil {
		return nil, err
	}
	out, err := compressor.Apply(ctx, buf)
	if err != nil {
		return nil, err
	}

	mags := out.Magnitudes(0)
	peak := out.Trace(0).PeakIndex()
	report := &ReplicaReport{
		Chirp:     chirp,
		Length:    len(replica),
		Energy:    replica.Energy(),
		PeakLag:   peak,
		PeakValue: mags[peak],
		Sidelobe:  sidelobeLevel(mags, peak),
	}

	fmt.Fprintf(w, "Chirp:     %s sweep %.6g Hz + %.6g Hz over %.6g s at %.6g Hz\n",
		chirp.Polarity, chirp.StartFrequency, chirp.Bandwidth, chirp.Duration, chirp.SampleRate)
	fmt.Fprintf(w, "Length:    %d samples (natural %d)\n", report.Length, chirp.Samples())
	fmt.Fprintf(w, "Energy:    %.6g\n", report.Energy)
	fmt.Fprintf(w, "Peak:      lag %d, %.6g\n", report.PeakLag, report.PeakValue)
	fmt.Fprintf(w, "Sidelobe:  %.2f dB\n", report.Sidelobe)

	if cfg.Output.Path != "" {
		if _, err := capture.NewRecorder(cfg.Output.Path, cfg.Output.BitDepth).Write(buf); err != nil {
			return report, fmt.Errorf("failed to write replica: %w", err)
		}
		fmt.Fprintf(w, "Saved:     %s\n", cfg.Output.Path)
	}
	return report, nil
}

// sidelobeLevel walks down both sides of the main lobe at peak (lags wrap
// around) and returns the largest remaining magnitude relative to the peak,
// in dB. A response with no sidelobes reports -Inf.
func sidelobeLevel(mags []float64, peak int) float64 {
	n := len(mags)
	if n == 0 || mags[peak] == 0 {
		return math.Inf(-1)
	}

	right, rightSteps := peak, 0
	for step := 1; step < n; step++ {
		next := (peak + step) % n
		if mags[next] > mags[right] {
			break
		}
		right, rightSteps = next, step
	}
	left, leftSteps := peak, 0
	for step := 1; step < n; step++ {
		next := (peak - step + n) % n
		if mags[next] > mags[left] {
			break
		}
		left, leftSteps = next, step
	}
	if rightSteps+leftSteps >= n-1 {
		return math.Inf(-1)
	}

	side := 0.0
	for i := (right + 1) % n; i != left; i = (i + 1) % n {
		side = math.Max(side, mags[i])
	}
	if side == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(side/mags[peak])
}
