// SPDX-License-Identifier: MIT
package pipeline

import (
	"radar/internal/analysis"
	"radar/internal/radar"
	"time"

	"github.com/google/uuid"
)

// Status is the terminal state of a run.
type Status int

const (
	StatusFinished Status = iota
	StatusFailed
	StatusAborted // cancelled by the caller
)

func (s Status) String() string {
	switch s {
	case StatusFinished:
		return "finished"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// AppliedStage records what one stage did during a run.
type AppliedStage struct {
	Index     int
	Kind      analysis.Kind
	Params    string
	InTraces  int
	OutTraces int
	Dropped   int // trailing traces discarded by the remainder policy
	InLen     int
	OutLen    int
	Duration  time.Duration
}

// Result is the output of a successful run. Consumers must treat Buffer as
// read-only; it is shared with anyone else holding the Result.
type Result struct {
	ID      uuid.UUID
	Status  Status
	Started time.Time
	Elapsed time.Duration
	Stages  []AppliedStage
	Buffer  *radar.SampleBuffer
}

// Observer is notified as a run progresses. Calls are made from the
// goroutine executing Run.
type Observer interface {
	StageCompleted(run uuid.UUID, stage AppliedStage)
	RunCompleted(run uuid.UUID, status Status, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StageCompleted(uuid.UUID, AppliedStage) {}
func (nopObserver) RunCompleted(uuid.UUID, Status, time.Duration) {}
