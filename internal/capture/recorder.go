// SPDX-License-Identifier: MIT
package capture

import (
	"fmt"
	"math"
	"os"
	applog "radar/internal/log"
	"radar/internal/radar"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes processed buffers as PCM WAV: traces are concatenated in
// order, complex buffers as two channels (I, Q) and detected buffers as one.
// Samples are scaled so the largest component reaches full scale.
type Recorder struct {
	Path     string
	BitDepth int
}

// NewRecorder returns a recorder writing bitDepth-bit PCM (16, 24 or 32).
func NewRecorder(path string, bitDepth int) *Recorder {
	return &Recorder{Path: path, BitDepth: bitDepth}
}

// Write records b, replacing any existing file. It returns the factor the
// samples were multiplied by before quantisation.
func (r *Recorder) Write(b *radar.SampleBuffer) (float64, error) {
	switch r.BitDepth {
	case 16, 24, 32:
	default:
		return 0, fmt.Errorf("unsupported bit depth %d", r.BitDepth)
	}

	channels := 1
	if b.Domain() == radar.DomainComplex {
		channels = 2
	}

	var peak float64
	for i := range b.Len() {
		for j := range b.TraceLen() {
			v := b.At(i, j)
			peak = math.Max(peak, math.Max(math.Abs(real(v)), math.Abs(imag(v))))
		}
	}
	full := fullScale(r.BitDepth)
	gain := 1.0
	if peak > 0 {
		gain = 1 / peak
	}

	file, err := os.Create(r.Path)
	if err != nil {
		return 0, err
	}

	enc := wav.NewEncoder(file, int(b.SampleRate()), r.BitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  int(b.SampleRate()),
		},
		Data:           make([]int, b.TraceLen()*channels),
		SourceBitDepth: r.BitDepth,
	}

	for i := range b.Len() {
		for j := range b.TraceLen() {
			v := b.At(i, j)
			buf.Data[j*channels] = quantize(real(v)*gain, full)
			if channels == 2 {
				buf.Data[j*channels+1] = quantize(imag(v)*gain, full)
			}
		}
		if err := enc.Write(buf); err != nil {
			file.Close()
			return 0, fmt.Errorf("failed to write trace %d: %w", i, err)
		}
	}

	if err := enc.Close(); err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}

	applog.Infof("Capture: Recorded %d traces x %d samples to '%s' (%d-bit, %d channels, gain %.4g)",
		b.Len(), b.TraceLen(), r.Path, r.BitDepth, channels, gain)
	return gain, nil
}

func quantize(v, full float64) int {
	return int(math.Round(math.Max(-1, math.Min(1, v)) * full))
}
