// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"fmt"
	"radar/internal/analysis"
	"radar/internal/pipeline"
	"radar/internal/radar"
	"time"
)

// Transport defines a generic interface for delivering processed results to
// consumers. Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Frame type tags.
const (
	FrameResult = "result"
	FrameTrace  = "trace"
)

// StageFrame is the wire form of pipeline.AppliedStage.
type StageFrame struct {
	Index      int     `json:"index"`
	Kind       string  `json:"kind"`
	Params     string  `json:"params"`
	InTraces   int     `json:"in_traces"`
	OutTraces  int     `json:"out_traces"`
	Dropped    int     `json:"dropped"`
	InLength   int     `json:"in_length"`
	OutLength  int     `json:"out_length"`
	DurationMs float64 `json:"duration_ms"`
}

// ResultFrame summarises a run. It is sent once, before the trace frames.
type ResultFrame struct {
	Type        string       `json:"type"`
	RunID       string       `json:"run_id"`
	Status      string       `json:"status"`
	Started     time.Time    `json:"started"`
	ElapsedMs   float64      `json:"elapsed_ms"`
	SampleRate  float64      `json:"sample_rate"`
	Domain      string       `json:"domain"`
	Traces      int          `json:"traces"`
	TraceLength int          `json:"trace_length"`
	Stages      []StageFrame `json:"stages"`
}

// TraceFrame carries the detected magnitude of one output trace.
type TraceFrame struct {
	Type       string             `json:"type"`
	RunID      string             `json:"run_id"`
	Index      int                `json:"index"`
	Key        any                `json:"key,omitempty"`
	Peak       int                `json:"peak"`
	Magnitudes []float32          `json:"magnitudes"`
	Gates      map[string]float64 `json:"gates,omitempty"`
}

// NewResultFrame builds the summary frame for res.
func NewResultFrame(res *pipeline.Result) ResultFrame {
	f := ResultFrame{
		Type:        FrameResult,
		RunID:       res.ID.String(),
		Status:      res.Status.String(),
		Started:     res.Started,
		ElapsedMs:   float64(res.Elapsed) / float64(time.Millisecond),
		SampleRate:  res.Buffer.SampleRate(),
		Domain:      res.Buffer.Domain().String(),
		Traces:      res.Buffer.Len(),
		TraceLength: res.Buffer.TraceLen(),
		Stages:      make([]StageFrame, len(res.Stages)),
	}
	for i, s := range res.Stages {
		f.Stages[i] = StageFrame{
			Index:      s.Index,
			Kind:       s.Kind.String(),
			Params:     s.Params,
			InTraces:   s.InTraces,
			OutTraces:  s.OutTraces,
			Dropped:    s.Dropped,
			InLength:   s.InLen,
			OutLength:  s.OutLen,
			DurationMs: float64(s.Duration) / float64(time.Millisecond),
		}
	}
	return f
}

// TraceFrames builds one frame per output trace. When gates are given every
// frame also carries the mean power inside each gate.
func TraceFrames(res *pipeline.Result, gates []analysis.RangeGate) ([]TraceFrame, error) {
	b := res.Buffer
	var energies []analysis.GateEnergy
	if len(gates) > 0 {
		var err error
		if energies, err = analysis.GateEnergies(b, gates); err != nil {
			return nil, err
		}
	}

	frames := make([]TraceFrame, b.Len())
	for i := range frames {
		frames[i] = TraceFrame{
			Type:       FrameTrace,
			RunID:      res.ID.String(),
			Index:      i,
			Key:        b.Key(i),
			Peak:       b.Trace(i).PeakIndex(),
			Magnitudes: float32s(b.Magnitudes(i)),
		}
		if energies != nil {
			frames[i].Gates = energies[i].Energy
		}
	}
	return frames, nil
}

// Publish sends the summary frame followed by every trace frame of res.
func Publish(ctx context.Context, t Transport, res *pipeline.Result, gates []analysis.RangeGate) error {
	if res == nil || res.Buffer == nil {
		return fmt.Errorf("%w: nothing to publish", radar.ErrShapeMismatch)
	}

	frames, err := TraceFrames(res, gates)
	if err != nil {
		return err
	}
	if err := t.Send(NewResultFrame(res)); err != nil {
		return err
	}
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", radar.ErrCancelled, err)
		}
		if err := t.Send(f); err != nil {
			return err
		}
	}
	return nil
}

func float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
