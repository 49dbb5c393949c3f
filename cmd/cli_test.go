// SPDX-License-Identifier: MIT
package cmd

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"radar/internal/capture"
	"radar/internal/config"
	"radar/internal/pipeline"
	"radar/internal/radar"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	opts, err := ParseArgs([]string{"process", "-f", "radar.yaml", "--synthetic", "-o", "out.wav",
		"-w", "3", "--ws-addr", ":8080", "--udp", "127.0.0.1:9090", "--metrics-addr", ":2112", "-v"})
	require.NoError(t, err)
	require.NotNil(t, opts)
	assert.Equal(t, CommandProcess, opts.Command)
	assert.Equal(t, "radar.yaml", opts.ConfigPath)
	assert.True(t, opts.Synthetic)
	assert.Equal(t, "out.wav", opts.OutputFile)
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, ":8080", opts.WSAddr)
	assert.Equal(t, "127.0.0.1:9090", opts.UDPTarget)
	assert.Equal(t, ":2112", opts.MetricsAddr)
	assert.True(t, opts.Verbose)

	opts, err = ParseArgs([]string{"replica", "--duration", "4e-6", "--polarity", "down", "--length", "64"})
	require.NoError(t, err)
	assert.Equal(t, CommandReplica, opts.Command)
	assert.Equal(t, 4e-6, opts.Duration)
	assert.Equal(t, "down", opts.Polarity)
	assert.Equal(t, 64, opts.ReplicaLength)
	assert.Equal(t, config.DefaultWorkers, opts.Workers)

	opts, err = ParseArgs([]string{"version"})
	require.NoError(t, err)
	assert.Equal(t, CommandVersion, opts.Command)

	opts, err = ParseArgs([]string{"--help"})
	require.NoError(t, err)
	assert.Nil(t, opts)

	_, err = ParseArgs([]string{"focus"})
	assert.Error(t, err)
	_, err = ParseArgs([]string{"process", "--workers", "many"})
	assert.Error(t, err)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.LogLevel = "warn"
	cfg.Radar.TraceLength = 256
	cfg.Capture.Traces = 18
	cfg.Capture.EchoDelay = 50
	cfg.Capture.NoiseSigma = 0.1
	cfg.Pipeline.Workers = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestProcessSynthetic(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Path = filepath.Join(t.TempDir(), "radargram.wav")
	cfg.Metrics.Addr = "127.0.0.1:0"
	cfg.Transport.Gates = []config.GateSpec{{Name: "echo", Start: 45, End: 55}}

	res, err := Process(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, pipeline.StatusFinished, res.Status)
	require.Len(t, res.Stages, 3)
	assert.Equal(t, 2, res.Stages[0].Dropped, "18 traces stacked by 4")
	assert.Equal(t, radar.DomainDetected, res.Buffer.Domain())
	require.Equal(t, 2, res.Buffer.Len())
	for i := range res.Buffer.Len() {
		assert.Equal(t, 50, res.Buffer.Trace(i).PeakIndex())
	}

	info, err := os.Stat(cfg.Output.Path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestProcessCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Process(ctx, testConfig(t))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, radar.ErrCancelled)
}

func TestProcessBadSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Capture.Source = "wav"
	cfg.Capture.Path = filepath.Join(t.TempDir(), "missing.wav")

	_, err := Process(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to load traces")
}

// recordCapture writes the synthetic capture for cfg to a WAV file sampled at
// sampleRate and points cfg at it.
func recordCapture(t *testing.T, cfg *config.Config, sampleRate float64) {
	t.Helper()
	source, err := NewSource(cfg)
	require.NoError(t, err)
	in, err := source.Load(context.Background())
	require.NoError(t, err)

	traces := make([]radar.Trace, in.Len())
	for i := range traces {
		traces[i] = in.Trace(i)
	}
	buf, err := radar.NewSampleBuffer(traces, sampleRate)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "capture.wav")
	_, err = capture.NewRecorder(path, 16).Write(buf)
	require.NoError(t, err)

	cfg.Capture.Source = "wav"
	cfg.Capture.Path = path
}

func TestProcessWAV(t *testing.T) {
	cfg := testConfig(t)
	recordCapture(t, cfg, cfg.Radar.SampleRate)

	res, err := Process(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, 2, res.Buffer.Len())
	assert.Equal(t, cfg.Radar.SampleRate, res.Buffer.SampleRate())
	for i := range res.Buffer.Len() {
		assert.Equal(t, 50, res.Buffer.Trace(i).PeakIndex())
	}
}

func TestProcessWAVSampleRateMismatch(t *testing.T) {
	cfg := testConfig(t)
	recordCapture(t, cfg, 8000)

	res, err := Process(context.Background(), cfg)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, radar.ErrShapeMismatch)
	assert.ErrorContains(t, err, "8000 Hz")
}

func TestReplica(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Path = filepath.Join(t.TempDir(), "replica.wav")

	var out bytes.Buffer
	report, err := Replica(context.Background(), &out, cfg)
	require.NoError(t, err)

	assert.Equal(t, 100, report.Length)
	assert.InDelta(t, 100, report.Energy, 1e-9)
	assert.Equal(t, 0, report.PeakLag)
	assert.InDelta(t, 1, report.PeakValue, 1e-9)
	assert.Less(t, report.Sidelobe, -10.0)
	assert.Greater(t, report.Sidelobe, -40.0)

	assert.Contains(t, out.String(), "Length:    100 samples")
	assert.Contains(t, out.String(), "Saved:")
	_, err = os.Stat(cfg.Output.Path)
	assert.NoError(t, err)
}

func TestSidelobeLevel(t *testing.T) {
	mags := []float64{10, 5, 1, 3, 1, 0.5, 2, 6}
	assert.InDelta(t, 20*math.Log10(0.3), sidelobeLevel(mags, 0), 1e-12)

	assert.True(t, math.IsInf(sidelobeLevel([]float64{4, 3, 2, 1}, 0), -1))
	assert.True(t, math.IsInf(sidelobeLevel([]float64{0, 0}, 0), -1))
	assert.True(t, math.IsInf(sidelobeLevel([]float64{1, 0, 0, 0}, 0), -1))
}
