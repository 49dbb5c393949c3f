// SPDX-License-Identifier: MIT
package analysis

import (
	"context"
	"fmt"
	"math"
	"radar/internal/radar"
	"strings"
)

// Kind identifies the processing performed by a Stage.
type Kind int

const (
	KindCoherentStack Kind = iota
	KindPulseCompress
	KindIncoherentStack
)

func (k Kind) String() string {
	switch k {
	case KindCoherentStack:
		return "coherent-stack"
	case KindPulseCompress:
		return "pulse-compress"
	case KindIncoherentStack:
		return "incoherent-stack"
	default:
		return "unknown"
	}
}

// ParseKind converts a stage name (case-insensitive) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "coherent", "coherent-stack", "cohstack":
		return KindCoherentStack, nil
	case "compress", "pulse-compress", "dechirp":
		return KindPulseCompress, nil
	case "incoherent", "incoherent-stack", "incohstack":
		return KindIncoherentStack, nil
	default:
		return KindCoherentStack, fmt.Errorf("unknown stage kind: '%s'", name)
	}
}

// Stage is one buffer-to-buffer step of a processing chain. Accepts and
// Produces describe the stage's domain contract so a chain can be checked
// before any samples are touched.
type Stage interface {
	Kind() Kind
	Accepts(in radar.Domain) bool
	Produces(in radar.Domain) radar.Domain
	Apply(ctx context.Context, in *radar.SampleBuffer) (*radar.SampleBuffer, error)
	String() string
}

// RemainderReporter is implemented by stages that discard trailing traces.
type RemainderReporter interface {
	Dropped(traces int) int
}

// Compile-time checks for interface implementations.
var (
	_ Stage             = (*CoherentStacker)(nil)
	_ Stage             = (*PulseCompressor)(nil)
	_ Stage             = (*IncoherentStacker)(nil)
	_ RemainderReporter = (*CoherentStacker)(nil)
	_ RemainderReporter = (*IncoherentStacker)(nil)
)

// Remainder selects what a stacking stage does with traces that do not fill
// a complete group.
type Remainder int

const (
	// RemainderDrop discards the incomplete trailing group.
	RemainderDrop Remainder = iota
	// RemainderPartial reduces the incomplete trailing group on its own.
	RemainderPartial
)

func (r Remainder) String() string {
	if r == RemainderPartial {
		return "partial"
	}
	return "drop"
}

// ParseRemainder converts "drop"/"partial" to a Remainder.
func ParseRemainder(name string) (Remainder, error) {
	switch strings.ToLower(name) {
	case "", "drop":
		return RemainderDrop, nil
	case "partial", "carry":
		return RemainderPartial, nil
	default:
		return RemainderDrop, fmt.Errorf("unknown remainder policy: '%s'", name)
	}
}

// ParseStackFactor validates a stack factor that arrived as a float (YAML,
// JSON, flags) and converts it to an int.
func ParseStackFactor(v float64) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %v is not an integer", radar.ErrInvalidStackFactor, v)
	}
	if v < 1 {
		return 0, fmt.Errorf("%w: %v is less than 1", radar.ErrInvalidStackFactor, v)
	}
	if v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v is too large", radar.ErrInvalidStackFactor, v)
	}
	return int(v), nil
}

type stackOptions struct {
	remainder Remainder
	workers   int
}

// StackOption configures a stacking stage.
type StackOption func(*stackOptions)

// WithRemainder sets the remainder policy (default RemainderDrop).
func WithRemainder(r Remainder) StackOption {
	return func(o *stackOptions) { o.remainder = r }
}

// WithStackWorkers bounds the number of groups reduced concurrently.
func WithStackWorkers(n int) StackOption {
	return func(o *stackOptions) { o.workers = n }
}

func newStackOptions(factor int, opts []StackOption) (stackOptions, error) {
	var o stackOptions
	if factor < 1 {
		return o, fmt.Errorf("%w: %d is less than 1", radar.ErrInvalidStackFactor, factor)
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o, nil
}

func dropped(traces, factor int, r Remainder) int {
	_, d := radar.Partition(traces, factor, r == RemainderPartial)
	return d
}
