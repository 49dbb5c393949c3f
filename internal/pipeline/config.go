// SPDX-License-Identifier: MIT
package pipeline

import (
	"fmt"
	"radar/internal/analysis"
	"radar/internal/radar"
)

// StageConfig is a value description of one stage. It carries only the
// fields relevant to its Kind; the rest are ignored.
type StageConfig struct {
	Kind analysis.Kind

	// Stacking stages.
	StackFactor int
	Remainder   analysis.Remainder
	Mode        analysis.Mode // incoherent only

	// Pulse compression.
	Replica       radar.Trace
	Normalization analysis.Normalization
	Padding       analysis.Padding
	Window        analysis.WindowFunc
}

// CoherentStack describes a CoherentStacker of factor n.
func CoherentStack(n int) StageConfig {
	return StageConfig{Kind: analysis.KindCoherentStack, StackFactor: n}
}

// PulseCompress describes a PulseCompressor for replica. The replica is
// copied.
func PulseCompress(replica radar.Trace) StageConfig {
	return StageConfig{Kind: analysis.KindPulseCompress, Replica: replica.Clone()}
}

// IncoherentStack describes an IncoherentStacker of factor n.
func IncoherentStack(n int, mode analysis.Mode) StageConfig {
	return StageConfig{Kind: analysis.KindIncoherentStack, StackFactor: n, Mode: mode}
}

// Build constructs the stage. workers bounds intra-stage parallelism.
func (c StageConfig) Build(workers int) (analysis.Stage, error) {
	switch c.Kind {
	case analysis.KindCoherentStack:
		return analysis.NewCoherentStacker(c.StackFactor,
			analysis.WithRemainder(c.Remainder),
			analysis.WithStackWorkers(workers))
	case analysis.KindIncoherentStack:
		return analysis.NewIncoherentStacker(c.StackFactor, c.Mode,
			analysis.WithRemainder(c.Remainder),
			analysis.WithStackWorkers(workers))
	case analysis.KindPulseCompress:
		return analysis.NewPulseCompressor(c.Replica,
			analysis.WithNormalization(c.Normalization),
			analysis.WithPadding(c.Padding),
			analysis.WithWindow(c.Window),
			analysis.WithCompressWorkers(workers))
	default:
		return nil, fmt.Errorf("unknown stage kind %d", c.Kind)
	}
}
