// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"math/rand/v2"
	"sync"
)

// MockTransport implements the transport.Transport interface for testing.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	Closed bool
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MockTransport) Messages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.Sent...)
}

// EchoTrace returns length samples holding amplitude*replica starting at
// delay. Samples that would fall past the end are cut off.
func EchoTrace(replica []complex128, length, delay int, amplitude complex128) []complex128 {
	out := make([]complex128, length)
	for i, v := range replica {
		if j := delay + i; j >= 0 && j < length {
			out[j] = amplitude * v
		}
	}
	return out
}

// ComplexNoise returns circular Gaussian noise with E|n|^2 = sigma^2.
func ComplexNoise(rng *rand.Rand, length int, sigma float64) []complex128 {
	out := make([]complex128, length)
	s := sigma / math.Sqrt2
	for i := range out {
		out[i] = complex(rng.NormFloat64()*s, rng.NormFloat64()*s)
	}
	return out
}

// AddTraces returns a+b sample by sample. Both slices must have equal length.
func AddTraces(a, b []complex128) []complex128 {
	out := make([]complex128, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// NewRand returns a deterministic generator for reproducible trials.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
