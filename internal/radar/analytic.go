// SPDX-License-Identifier: MIT
package radar

import "gonum.org/v1/gonum/dsp/fourier"

// Analytic returns the analytic signal of the real part of t: the negative
// frequencies are removed and the positive ones doubled (FFT Hilbert
// transform), so a real-only capture can be matched against a complex replica.
func Analytic(t Trace) Trace {
	n := len(t)
	if n < 2 {
		return t.Clone()
	}

	seq := make([]complex128, n)
	for i, v := range t {
		seq[i] = complex(real(v), 0)
	}

	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, seq)

	// Bin 0 (and n/2 for even n) stay at unit weight.
	half := (n + 1) / 2
	for k := 1; k < half; k++ {
		coeff[k] *= 2
	}
	for k := n/2 + 1; k < n; k++ {
		coeff[k] = 0
	}

	out := fft.Sequence(nil, coeff)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return Trace(out)
}
