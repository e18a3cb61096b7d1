package am

import (
	"fmt"

	"hz.tools/am/internal/window"
)

// DecimationFilter is an FIR low-pass or bandpass filter with integer
// downsampling by factor M. It retains history and a decimation phase
// across Process calls so that running it over any partition of the same
// input stream produces the same output (to within float rounding).
type DecimationFilter struct {
	factor  int
	phase   int
	history []complex64
	coeffs  []float32
}

// NewBoxcarDecimationFilter builds a simple moving-average decimator:
// coefficients all 1/factor, window length factor. Mostly useful as a
// cheap reference filter for tests.
func NewBoxcarDecimationFilter(factor int) *DecimationFilter {
	if factor <= 0 {
		panic(fmt.Sprintf("am: DecimationFilter: factor must be > 0, got %d", factor))
	}
	coeffs := make([]float32, factor)
	for i := range coeffs {
		coeffs[i] = 1 / float32(factor)
	}
	return &DecimationFilter{
		factor:  factor,
		history: make([]complex64, factor-1),
		coeffs:  coeffs,
	}
}

// NewLowpassDecimationFilter builds a windowed-sinc low-pass decimator.
// numTaps should be odd; cutoffNorm is normalized to the original
// (pre-decimation) sample rate, with Nyquist = 0.5.
func NewLowpassDecimationFilter(factor, numTaps int, cutoffNorm float64) *DecimationFilter {
	if factor <= 0 {
		panic(fmt.Sprintf("am: DecimationFilter: factor must be > 0, got %d", factor))
	}
	return &DecimationFilter{
		factor:  factor,
		history: make([]complex64, numTaps-1),
		coeffs:  lowpassCoeffs(numTaps, cutoffNorm),
	}
}

// NewBandpassDecimationFilter builds a decimator whose passband is
// [fMinNorm, fMaxNorm] (normalized to the original sample rate).
func NewBandpassDecimationFilter(factor, numTaps int, fMinNorm, fMaxNorm float64) *DecimationFilter {
	if factor <= 0 {
		panic(fmt.Sprintf("am: DecimationFilter: factor must be > 0, got %d", factor))
	}
	return &DecimationFilter{
		factor:  factor,
		history: make([]complex64, numTaps-1),
		coeffs:  bandpassCoeffs(numTaps, fMinNorm, fMaxNorm),
	}
}

// SetBandpass recomputes the filter's coefficients in place for a new
// passband, preserving history and decimation phase so the output stream
// has no discontinuity at the reconfiguration boundary.
func (f *DecimationFilter) SetBandpass(fMinNorm, fMaxNorm float64) {
	numTaps := len(f.history) + 1
	f.coeffs = bandpassCoeffs(numTaps, fMinNorm, fMaxNorm)
}

// lowpassCoeffs designs a windowed-sinc LPF, DC-gain normalized to 1. A
// cutoff of 0 yields the all-zero filter.
func lowpassCoeffs(numTaps int, cutoffNorm float64) []float32 {
	coeffs := make([]float64, numTaps)
	center := float64(numTaps-1) / 2
	sum := 0.0
	for i := range coeffs {
		n := float64(i) - center
		var sinc float64
		if n == 0 {
			sinc = 2 * cutoffNorm
		} else {
			sinc = window.Sinc(2 * cutoffNorm * n)
			sinc *= 2 * cutoffNorm
		}
		w := window.Hamming(numTaps)[i]
		coeffs[i] = sinc * w
		sum += coeffs[i]
	}
	if sum == 0 {
		sum = 1
	}
	out := make([]float32, numTaps)
	for i, c := range coeffs {
		out[i] = float32(c / sum)
	}
	return out
}

// bandpassCoeffs designs LPF(fMax) - LPF(fMin) under a shared Hamming
// window, with the analytical center-tap limit. Each constituent LPF keeps
// its own independent Sigma=1 normalization (spec.md section 9: this
// ambiguity is intentional and masked by downstream AGC).
func bandpassCoeffs(numTaps int, fMinNorm, fMaxNorm float64) []float32 {
	hi := lowpassCoeffs(numTaps, fMaxNorm)
	lo := lowpassCoeffs(numTaps, fMinNorm)
	out := make([]float32, numTaps)
	for i := range out {
		out[i] = hi[i] - lo[i]
	}
	center := (numTaps - 1) / 2
	out[center] = float32(2*fMaxNorm - 2*fMinNorm)
	return out
}

// Process filters and decimates input, returning a slice roughly
// len(input)/factor long. It does not clear or reuse a caller buffer: the
// returned slice is freshly allocated on every call, so the Receiver, which
// calls this once per block, allocates once per block here.
func (f *DecimationFilter) Process(input []complex64) []complex64 {
	if len(input) == 0 {
		return nil
	}

	output := make([]complex64, 0, len(input)/f.factor+1)

	currentIdx := 0
	if f.phase != 0 {
		currentIdx = f.factor - f.phase
	}

	histLen := len(f.history)
	for currentIdx < len(input) {
		var acc complex64
		for i, coeff := range f.coeffs {
			var val complex64
			if currentIdx >= i {
				val = input[currentIdx-i]
			} else {
				historyBack := i - currentIdx
				val = f.history[histLen-historyBack]
			}
			acc += val * complex(coeff, 0)
		}
		output = append(output, acc)
		currentIdx += f.factor
	}

	f.phase = (f.phase + len(input)) % f.factor

	if histLen == 0 {
		return output
	}
	if len(input) >= histLen {
		copy(f.history, input[len(input)-histLen:])
	} else {
		shift := len(input)
		copy(f.history, f.history[shift:])
		copy(f.history[histLen-shift:], input)
	}

	return output
}
