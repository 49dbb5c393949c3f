// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"math/cmplx"
	"os"
	"testing"
)

const (
	testSize  = 1024
	testSigma = 0.5
)

var (
	testMagnitudes []float64
	testReplica    []complex128
)

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// Create a peaked distribution with a known peak.
	for i := range testMagnitudes {
		// Creates a "hill" with peak at position testSize/4.
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	testReplica = []complex128{1, complex(0, 1), -1, complex(0, -1)}

	os.Exit(m.Run())
}

func TestMockTransport(t *testing.T) {
	tests := []struct {
		name string
		data []any
	}{
		{"Nothing", nil},
		{"Single Value", []any{0.5}},
		{"Mixed Values", []any{"frame", 3, []float64{0.1, 0.2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := &MockTransport{}
			for _, d := range tt.data {
				if err := mt.Send(d); err != nil {
					t.Errorf("MockTransport.Send() error = %v", err)
				}
			}

			if got := len(mt.Messages()); got != len(tt.data) {
				t.Errorf("MockTransport stored %d messages, want %d", got, len(tt.data))
			}

			if err := mt.Close(); err != nil || !mt.Closed {
				t.Errorf("MockTransport.Close() = %v, closed = %v", err, mt.Closed)
			}
		})
	}
}

func TestEchoTrace(t *testing.T) {
	tests := []struct {
		name   string
		length int
		delay  int
		want   int // number of non-zero samples
	}{
		{"Inside", 16, 3, 4},
		{"At Start", 16, 0, 4},
		{"Cut Off", 16, 14, 2},
		{"Past End", 16, 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := EchoTrace(testReplica, tt.length, tt.delay, 2)
			if len(tr) != tt.length {
				t.Fatalf("EchoTrace() length = %d, want %d", len(tr), tt.length)
			}

			nonZero := 0
			for _, v := range tr {
				if v != 0 {
					nonZero++
				}
			}
			if nonZero != tt.want {
				t.Errorf("EchoTrace() non-zero samples = %d, want %d", nonZero, tt.want)
			}
			if tt.want > 0 && tr[tt.delay] != 2 {
				t.Errorf("EchoTrace()[%d] = %v, want 2", tt.delay, tr[tt.delay])
			}
		})
	}
}

func TestComplexNoise(t *testing.T) {
	const n = 1 << 14
	noise := ComplexNoise(NewRand(1), n, testSigma)

	var sum complex128
	var power float64
	for _, v := range noise {
		sum += v
		power += real(v)*real(v) + imag(v)*imag(v)
	}
	power /= n

	if cmplx.Abs(sum/n) > 0.02 {
		t.Errorf("ComplexNoise() mean = %v, want ~0", sum/n)
	}
	if want := testSigma * testSigma; math.Abs(power-want) > 0.05*want {
		t.Errorf("ComplexNoise() power = %.4f, want %.4f±5%%", power, want)
	}

	again := ComplexNoise(NewRand(1), n, testSigma)
	for i := range noise {
		if noise[i] != again[i] {
			t.Fatalf("ComplexNoise() not reproducible at %d", i)
		}
	}
}

func TestAddTraces(t *testing.T) {
	got := AddTraces([]complex128{1, 2}, []complex128{complex(0, 1), -2})
	if got[0] != complex(1, 1) || got[1] != 0 {
		t.Errorf("AddTraces() = %v", got)
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindPeakBin(tt.mags, tt.start, tt.end)
			if result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})

	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkComplexNoise(b *testing.B) {
	rng := NewRand(7)
	b.ReportAllocs()
	for b.Loop() {
		ComplexNoise(rng, testSize, testSigma)
	}
}
