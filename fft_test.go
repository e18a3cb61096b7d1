package am

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func onesWindow(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func TestFFTDC(t *testing.T) {
	f := NewFFT(8, onesWindow(8))
	f.SetSmoothingTimeConstant(0)

	input := make([]int8, 16)
	for i := 0; i < 8; i++ {
		input[2*i] = 64
		input[2*i+1] = 0
	}

	result := make([]float32, 8)
	f.Fft(input, result)

	assert.InDelta(t, -3.01, result[4], 0.1)

	argmax := 0
	for i, v := range result {
		if v > result[argmax] {
			argmax = i
		}
	}
	assert.Equal(t, 4, argmax)
}

func TestFFTZeros(t *testing.T) {
	f := NewFFT(8, onesWindow(8))
	f.SetSmoothingTimeConstant(0)

	input := make([]int8, 16)
	result := make([]float32, 8)
	f.Fft(input, result)

	for _, v := range result {
		assert.Equal(t, float32(-100), v)
	}
}

func TestFFTAlphaOneIsIdempotent(t *testing.T) {
	f := NewFFT(8, onesWindow(8))
	f.SetSmoothingTimeConstant(1)

	input := make([]int8, 16)
	for i := 0; i < 8; i++ {
		input[2*i] = 64
		input[2*i+1] = 0
	}

	result1 := make([]float32, 8)
	f.Fft(input, result1)

	result2 := make([]float32, 8)
	f.Fft(input, result2)

	assert.Equal(t, result1, result2)
}

func TestFFTAlphaZeroIsIdempotent(t *testing.T) {
	f := NewFFT(8, onesWindow(8))
	f.SetSmoothingTimeConstant(0)

	input := make([]int8, 16)
	for i := 0; i < 8; i++ {
		input[2*i] = 64
		input[2*i+1] = 0
	}

	result1 := make([]float32, 8)
	f.Fft(input, result1)

	result2 := make([]float32, 8)
	f.Fft(input, result2)

	assert.Equal(t, result1, result2)
}

func TestFFTBijectionAndBounds(t *testing.T) {
	for k := 0; k <= 6; k++ {
		n := 1 << k
		f := NewFFT(n, onesWindow(n))
		input := make([]int8, n*2)
		for i := range input {
			input[i] = int8((i*37 + 5) % 127)
		}
		result := make([]float32, n)
		f.Fft(input, result)

		require.Len(t, result, n)
		for _, v := range result {
			assert.False(t, isNaNOrInf(v))
			assert.GreaterOrEqual(t, v, float32(-100))
		}
	}
}

func isNaNOrInf(v float32) bool {
	return v != v || v > 1e30 || v < -1e30
}

func TestNewFFTPanicsOnBadSize(t *testing.T) {
	require.Panics(t, func() { NewFFT(0, nil) })
	require.Panics(t, func() { NewFFT(3, make([]float32, 3)) })
	require.Panics(t, func() { NewFFT(8, make([]float32, 4)) })
}
