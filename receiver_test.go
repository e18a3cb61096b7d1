package am

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseReceiverConfig() ReceiverConfig {
	return ReceiverConfig{
		SampleRate:       2000000,
		CenterFreq:       100000000,
		TargetFreq:       100010000,
		DecimationFactor: 40,
		OutputSampleRate: 48000,
		FFTSize:          1024,
		FFTVisibleStart:  0,
		FFTVisibleBins:   1024,
		IFMinHz:          0,
		IFMaxHz:          4500,
		DcCancelEnabled:  true,
		FFTUseProcessed:  false,
	}
}

func TestReceiverProcessAMShapes(t *testing.T) {
	r := NewReceiver(baseReceiverConfig())

	block := make([]int8, 131072*2)
	for i := range block {
		block[i] = int8((i % 200) - 100)
	}

	audio, spectrum := r.ProcessAM(block)
	require.Len(t, spectrum, 1024)
	for _, v := range spectrum {
		assert.GreaterOrEqual(t, v, float32(-100))
	}
	assert.NotEmpty(t, audio)
}

func TestReceiverRejectsBadConstruction(t *testing.T) {
	require.Panics(t, func() {
		cfg := baseReceiverConfig()
		cfg.SampleRate = 0
		NewReceiver(cfg)
	})
	require.Panics(t, func() {
		cfg := baseReceiverConfig()
		cfg.DecimationFactor = 0
		NewReceiver(cfg)
	})
	require.Panics(t, func() {
		cfg := baseReceiverConfig()
		cfg.FFTSize = 1000
		NewReceiver(cfg)
	})
}

func TestSanitizeIFBand(t *testing.T) {
	min, max := sanitizeIFBand(-10, 20000, 50000)
	assert.Equal(t, 0.0, min)
	assert.LessOrEqual(t, max, 50000*0.49)

	min2, max2 := sanitizeIFBand(100, 50, 50000)
	assert.Equal(t, 100.0, min2)
	assert.Equal(t, 200.0, max2)
}

func TestSanitizeFFTView(t *testing.T) {
	start, length := sanitizeFFTView(2000, 10, 1024)
	assert.Equal(t, 1023, start)
	assert.Equal(t, 1, length)

	start2, length2 := sanitizeFFTView(10, 2000, 1024)
	assert.Equal(t, 10, start2)
	assert.Equal(t, 1014, length2)
}

func TestReceiverRetuneResetsNCOPhase(t *testing.T) {
	r := NewReceiver(baseReceiverConfig())
	block := make([]int8, 1024*2)
	r.ProcessAM(block)
	require.NotZero(t, r.nco.phase)

	r.SetTargetFreq(100000000, 100020000)
	assert.Equal(t, float32(0), r.nco.phase)

	audio, spectrum := r.ProcessAM(block)
	assert.NotNil(t, audio)
	assert.Len(t, spectrum, 1024)
}

func TestReceiverSetFFTViewDefaultsToFloor(t *testing.T) {
	r := NewReceiver(baseReceiverConfig())
	r.SetFFTView(100, 50)
	assert.Len(t, r.visibleBuf, 50)
	for _, v := range r.visibleBuf {
		assert.Equal(t, float32(-120), v)
	}
}

func TestFloatToI8RoundTrip(t *testing.T) {
	assert.Equal(t, int8(127), floatToI8(2.0))
	assert.Equal(t, int8(-128), floatToI8(-2.0))
	assert.Equal(t, int8(0), floatToI8(0))
	assert.Equal(t, int8(64), floatToI8(0.5))
}
