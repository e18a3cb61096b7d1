package am

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewDcCancellerRejectsZeroSampleRate(t *testing.T) {
	require.Panics(t, func() {
		NewDcCanceller(0, 20000)
	})
}

func TestNewDcCancellerRejectsInvalidQ(t *testing.T) {
	require.Panics(t, func() {
		NewDcCanceller(2000000, 1)
	})
}

func TestDcCancellerConstantConvergesToZero(t *testing.T) {
	canceller := NewDcCanceller(2000000, 20000)
	dc := complex64(complex(0.35, -0.17))

	var out []complex64
	for i := 0; i < 120000; i++ {
		out = append(out, canceller.Process(dc))
	}

	tail := out[90000:]
	var sum float64
	for _, v := range tail {
		sum += cmplxAbs(v)
	}
	meanNorm := sum / float64(len(tail))
	assert.Less(t, meanNorm, 1e-6)
}

func TestDcCancellerPreservesACComponent(t *testing.T) {
	const sampleRate = 2000000.0
	const toneHz = 8000.0
	canceller := NewDcCanceller(sampleRate, 20000)

	const length = 300000
	dc := complex64(complex(0.4, -0.25))

	input := make([]complex64, length)
	idealAC := make([]complex64, length)
	for i := 0; i < length; i++ {
		tt := float64(i) / sampleRate
		phase := 2 * math.Pi * toneHz * tt
		ac := complex64(complex(math.Cos(phase), math.Sin(phase)))
		idealAC[i] = ac
		input[i] = ac + dc
	}

	out := make([]complex64, length)
	for i, x := range input {
		out[i] = canceller.Process(x)
	}

	const skip = 160000
	outTail := out[skip:]
	acTail := idealAC[skip:]

	var sumRe, sumIm float64
	for _, v := range outTail {
		sumRe += float64(real(v))
		sumIm += float64(imag(v))
	}
	meanRe := sumRe / float64(len(outTail))
	meanIm := sumIm / float64(len(outTail))
	assert.Less(t, math.Abs(meanRe), 5e-3)
	assert.Less(t, math.Abs(meanIm), 5e-3)

	rmsOut := rmsComplex(outTail)
	rmsAC := rmsComplex(acTail)
	ratio := rmsOut / rmsAC
	assert.InDelta(t, 1.0, ratio, 0.005)
}

func TestDcCancellerExtremeQIsFiniteAndStable(t *testing.T) {
	canceller := NewDcCanceller(2000000, 1000000000)
	var maxNorm float64
	for i := 0; i < 200000; i++ {
		var x complex64
		if i%2 == 0 {
			x = complex(1, -1)
		} else {
			x = complex(-1, 1)
		}
		y := canceller.Process(x)
		require.False(t, math.IsNaN(float64(real(y))) || math.IsInf(float64(real(y)), 0))
		require.False(t, math.IsNaN(float64(imag(y))) || math.IsInf(float64(imag(y)), 0))
		n := cmplxAbs(y)
		if n > maxNorm {
			maxNorm = n
		}
	}
	assert.Less(t, maxNorm, 10.0)
}

func TestDcCancellerChunkInvariance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sampleRate := 2000000.0
		whole := NewDcCanceller(sampleRate, 20000)
		chunked := NewDcCanceller(sampleRate, 20000)

		n := rapid.IntRange(1, 4000).Draw(t, "n")
		input := make([]complex64, n)
		for i := range input {
			tt := float64(i) / sampleRate
			re := 0.7 + 0.8*math.Cos(2*math.Pi*1700*tt)
			im := -0.5 + 0.8*math.Sin(2*math.Pi*1700*tt)
			input[i] = complex64(complex(re, im))
		}

		wholeOut := make([]complex64, n)
		for i, x := range input {
			wholeOut[i] = whole.Process(x)
		}

		chunkSize := rapid.IntRange(1, n).Draw(t, "chunk_size")
		var chunkedOut []complex64
		for i := 0; i < n; i += chunkSize {
			end := i + chunkSize
			if end > n {
				end = n
			}
			for _, x := range input[i:end] {
				chunkedOut = append(chunkedOut, chunked.Process(x))
			}
		}

		require.Equal(t, len(wholeOut), len(chunkedOut))
		var maxErr float64
		for i := range wholeOut {
			d := wholeOut[i] - chunkedOut[i]
			e := cmplxAbs(d)
			if e > maxErr {
				maxErr = e
			}
		}
		assert.Less(t, maxErr, 1e-6)
	})
}

func cmplxAbs(c complex64) float64 {
	re, im := float64(real(c)), float64(imag(c))
	return math.Sqrt(re*re + im*im)
}

func rmsComplex(cs []complex64) float64 {
	var sum float64
	for _, c := range cs {
		re, im := float64(real(c)), float64(imag(c))
		sum += re*re + im*im
	}
	return math.Sqrt(sum / float64(len(cs)))
}
