package am

import (
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"
)

// FFT is a windowed forward complex FFT over i8-packed IQ input, with
// fftshift, EMA smoothing, and dB conversion folded into a single pass.
type FFT struct {
	n                     int
	smoothingTimeConstant float32
	scaledWindow          []float32
	prev                  []float32
	scratch               []complex128
}

// NewFFT constructs an FFT of size n (must be a power of two > 0) using
// window (length must equal n). Panics otherwise.
func NewFFT(n int, window []float32) *FFT {
	if n <= 0 {
		panic(fmt.Sprintf("am: FFT: size must be positive, got %d", n))
	}
	if n&(n-1) != 0 {
		panic(fmt.Sprintf("am: FFT: size must be a power of two, got %d", n))
	}
	if len(window) != n {
		panic(fmt.Sprintf("am: FFT: window size must match FFT size (expected %d, got %d)", n, len(window)))
	}

	scale := float32(1.0 / (128.0 * float64(n)))
	scaledWindow := make([]float32, n)
	for i, w := range window {
		scaledWindow[i] = w * scale
	}

	return &FFT{
		n:            n,
		scaledWindow: scaledWindow,
		prev:         make([]float32, n),
		scratch:      make([]complex128, n),
	}
}

// SetSmoothingTimeConstant sets the EMA smoothing coefficient alpha. Values
// outside [0, 1] are not rejected (best-effort per spec.md section 4.6);
// alpha == 0 disables smoothing entirely.
func (f *FFT) SetSmoothingTimeConstant(alpha float32) {
	f.smoothingTimeConstant = alpha
}

// N returns the configured FFT size.
func (f *FFT) N() int {
	return f.n
}

// Fft runs one windowed forward FFT. input is n*2 interleaved i8 (re, im)
// bytes; result must have length n. result[0:n/2] holds negative
// frequencies and result[n/2:n] non-negative frequencies (fftshift), each
// in dB with a -100dB floor.
func (f *FFT) Fft(input []int8, result []float32) {
	if len(input) != f.n*2 {
		panic(fmt.Sprintf("am: FFT.Fft: input length must be n*2 (expected %d, got %d)", f.n*2, len(input)))
	}
	if len(result) != f.n {
		panic(fmt.Sprintf("am: FFT.Fft: result length must be n (expected %d, got %d)", f.n, len(result)))
	}

	for i := 0; i < f.n; i++ {
		re := float64(input[2*i]) * float64(f.scaledWindow[i])
		im := float64(input[2*i+1]) * float64(f.scaledWindow[i])
		f.scratch[i] = complex(re, im)
	}

	fftInPlace(f.scratch)

	halfN := f.n / 2
	alpha := f.smoothingTimeConstant
	invAlpha := 1 - alpha

	for i := 0; i < f.n; i++ {
		src := i + halfN
		if i >= halfN {
			src = i - halfN
		}
		magnitude := float32(cmplx.Abs(f.scratch[src]))

		var smoothed float32
		if alpha > 0 {
			smoothed = alpha*f.prev[i] + invAlpha*magnitude
			f.prev[i] = smoothed
		} else {
			smoothed = magnitude
		}

		floored := smoothed
		if floored < 1e-10 {
			floored = 1e-10
		}
		result[i] = float32(10 * math.Log10(float64(floored)))
	}
}

// fftInPlace is an iterative radix-2 Cooley-Tukey forward transform. len(a)
// must be a power of two (guaranteed by NewFFT's contract).
func fftInPlace(a []complex128) {
	n := len(a)
	if n <= 1 {
		return
	}

	// bit-reversal permutation
	logN := bits.TrailingZeros(uint(n))
	for i := 0; i < n; i++ {
		j := reverseBits(i, logN)
		if j > i {
			a[i], a[j] = a[j], a[i]
		}
	}

	for size := 2; size <= n; size <<= 1 {
		half := size / 2
		angleStep := -2 * math.Pi / float64(size)
		for start := 0; start < n; start += size {
			for k := 0; k < half; k++ {
				w := cmplx.Rect(1, angleStep*float64(k))
				even := a[start+k]
				odd := a[start+k+half] * w
				a[start+k] = even + odd
				a[start+k+half] = even - odd
			}
		}
	}
}

func reverseBits(x, bitsN int) int {
	r := 0
	for i := 0; i < bitsN; i++ {
		r = (r << 1) | (x & 1)
		x >>= 1
	}
	return r
}
