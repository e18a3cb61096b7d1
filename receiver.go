package am

import (
	"fmt"

	"github.com/charmbracelet/log"

	"hz.tools/am/internal/window"
)

const (
	receiverFirTaps = 601
)

// ReceiverConfig holds the immutable structural parameters and initial
// reconfigurable values for a Receiver. All frequency values are in Hz.
type ReceiverConfig struct {
	SampleRate        float64
	CenterFreq        float64
	TargetFreq        float64
	DecimationFactor  int
	OutputSampleRate  float64
	FFTSize           int
	FFTVisibleStart   int
	FFTVisibleBins    int
	IFMinHz           float64
	IFMaxHz           float64
	DcCancelEnabled   bool
	FFTUseProcessed   bool

	// Logger receives Debug-level per-block traces and Info-level
	// reconfiguration events. A nil Logger disables logging (discard).
	Logger *log.Logger
}

// Receiver orchestrates the per-block AM demodulation pipeline: DC
// cancellation, NCO mix, decimating bandpass filter, envelope demod,
// fractional resample, and a parallel FFT spectrum slice. A Receiver owns all
// of its component state and scratch buffers; ProcessAM is not safe to call
// concurrently on the same instance.
type Receiver struct {
	cfg ReceiverConfig
	log *log.Logger

	sampleRate           float64
	decimatedSampleRate  float64

	nco         *Nco
	dcCanceller *DcCanceller
	filter      *DecimationFilter
	amDemod     *AMDemodulator
	resampler   *Resampler
	fft         *FFT

	fftVisibleStart int
	fftVisibleLen   int

	basebandBuf []complex64
	amBuf       []float32
	audioBuf    []float32
	fftBuf      []float32
	fftStaging  []int8
	visibleBuf  []float32
}

// NewReceiver validates cfg and constructs a Receiver. Panics on any
// construction-time contract violation (spec.md section 7): zero/negative
// rates, zero decimation factor, or an FFT size that is not a power of two.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	if cfg.SampleRate <= 0 {
		panic(fmt.Sprintf("am: Receiver: sample_rate must be > 0, got %v", cfg.SampleRate))
	}
	if cfg.DecimationFactor <= 0 {
		panic(fmt.Sprintf("am: Receiver: decimation_factor must be > 0, got %d", cfg.DecimationFactor))
	}
	if cfg.OutputSampleRate <= 0 {
		panic(fmt.Sprintf("am: Receiver: output_sample_rate must be > 0, got %v", cfg.OutputSampleRate))
	}
	if cfg.FFTSize <= 0 || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		panic(fmt.Sprintf("am: Receiver: fft_size must be a power of two > 0, got %d", cfg.FFTSize))
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(discardWriter{})
	}

	r := &Receiver{
		cfg: cfg,
		log: logger,
	}

	r.sampleRate = cfg.SampleRate
	r.decimatedSampleRate = cfg.SampleRate / float64(cfg.DecimationFactor)

	r.nco = NewNco(-(cfg.TargetFreq - cfg.CenterFreq), r.sampleRate)
	r.dcCanceller = NewDcCanceller(r.sampleRate, 20000)
	r.amDemod = NewAMDemodulator()
	r.resampler = NewResampler(uint32(r.decimatedSampleRate), uint32(cfg.OutputSampleRate))

	hannWindow := make([]float32, cfg.FFTSize)
	for i, w := range window.Hann(cfg.FFTSize) {
		hannWindow[i] = float32(w)
	}
	r.fft = NewFFT(cfg.FFTSize, hannWindow)

	ifMin, ifMax := sanitizeIFBand(cfg.IFMinHz, cfg.IFMaxHz, r.decimatedSampleRate)
	r.filter = NewBandpassDecimationFilter(cfg.DecimationFactor, receiverFirTaps, ifMin/r.sampleRate, ifMax/r.sampleRate)

	r.fftVisibleStart, r.fftVisibleLen = sanitizeFFTView(cfg.FFTVisibleStart, cfg.FFTVisibleBins, cfg.FFTSize)

	r.basebandBuf = make([]complex64, 0, 131072)
	r.amBuf = make([]float32, 0, 8192)
	r.audioBuf = make([]float32, 0, 8192)
	r.fftBuf = make([]float32, cfg.FFTSize)
	r.fftStaging = make([]int8, cfg.FFTSize*2)
	r.visibleBuf = make([]float32, r.fftVisibleLen)

	logger.Debug("receiver constructed",
		"sample_rate", cfg.SampleRate,
		"decimated_sample_rate", r.decimatedSampleRate,
		"fft_size", cfg.FFTSize,
		"if_min_hz", ifMin,
		"if_max_hz", ifMax,
	)

	return r
}

// sanitizeIFBand clamps an IF passband to a sane range relative to the
// decimated sample rate, per spec.md section 4.7.
func sanitizeIFBand(ifMin, ifMax, decimatedSampleRate float64) (float64, float64) {
	maxAllowed := decimatedSampleRate * 0.49
	if maxAllowed < 200 {
		maxAllowed = 200
	}

	if ifMin < 0 {
		ifMin = 0
	}
	if ifMin >= maxAllowed {
		ifMin = 0
	}
	if ifMax <= ifMin {
		ifMax = ifMin + 100
	}
	if ifMax > maxAllowed {
		ifMax = maxAllowed
	}
	if ifMax <= ifMin {
		ifMin = 0
		ifMax = maxAllowed
		if ifMax > 4500 {
			ifMax = 4500
		}
	}

	return ifMin, ifMax
}

// sanitizeFFTView clamps a requested visible-bin window to the FFT size,
// per spec.md section 4.7.
func sanitizeFFTView(startBin, visibleBins, fftSize int) (int, int) {
	start := startBin
	if start > fftSize-1 {
		start = fftSize - 1
	}
	if start < 0 {
		start = 0
	}

	length := visibleBins
	maxLen := fftSize - start
	if length > maxLen {
		length = maxLen
	}
	if length < 1 {
		length = 1
	}

	return start, length
}

// SetTargetFreq rebuilds the NCO for a new (centerFreq, targetFreq) pair.
// The NCO phase resets to 0; any resulting phase jump is masked by the AM
// demodulator's AGC.
func (r *Receiver) SetTargetFreq(centerFreq, targetFreq float64) {
	r.cfg.CenterFreq = centerFreq
	r.cfg.TargetFreq = targetFreq
	r.nco = NewNco(-(targetFreq - centerFreq), r.sampleRate)
	r.log.Info("retuned", "center_freq", centerFreq, "target_freq", targetFreq)
}

// SetIFBand recomputes the decimation filter's bandpass coefficients in
// place, retaining history and decimation phase to avoid an audible
// discontinuity.
func (r *Receiver) SetIFBand(ifMinHz, ifMaxHz float64) {
	ifMin, ifMax := sanitizeIFBand(ifMinHz, ifMaxHz, r.decimatedSampleRate)
	r.cfg.IFMinHz, r.cfg.IFMaxHz = ifMin, ifMax
	r.filter.SetBandpass(ifMin/r.sampleRate, ifMax/r.sampleRate)
	r.log.Info("if band changed", "if_min_hz", ifMin, "if_max_hz", ifMax)
}

// SetFFTView resizes the visible spectrum window, default-filling it to
// -120dB.
func (r *Receiver) SetFFTView(startBin, visibleBins int) {
	start, length := sanitizeFFTView(startBin, visibleBins, r.cfg.FFTSize)
	r.fftVisibleStart, r.fftVisibleLen = start, length
	r.visibleBuf = make([]float32, length)
	for i := range r.visibleBuf {
		r.visibleBuf[i] = -120
	}
	r.log.Info("fft view changed", "start_bin", start, "visible_bins", length)
}

// SetDcCancelEnabled toggles whether the DC-cancelled or raw baseband feeds
// the NCO mix and (optionally) the FFT.
func (r *Receiver) SetDcCancelEnabled(enabled bool) {
	r.cfg.DcCancelEnabled = enabled
}

// SetFFTUseProcessed toggles whether the FFT is fed from raw IQ bytes or
// from the processed (DC-cancelled if enabled, pre-NCO) baseband
// re-quantized to i8.
func (r *Receiver) SetFFTUseProcessed(use bool) {
	r.cfg.FFTUseProcessed = use
}

// floatToI8 clamps v to [-1, 0.9921875], scales by 128, rounds, and casts to
// int8 -- the inverse of the i8/128 normalization used on the way in.
func floatToI8(v float32) int8 {
	if v < -1 {
		v = -1
	} else if v > 0.9921875 {
		v = 0.9921875
	}
	scaled := v * 128
	if scaled >= 0 {
		return int8(scaled + 0.5)
	}
	return int8(scaled - 0.5)
}

// ProcessAM runs one block of interleaved i8 IQ samples through the full
// pipeline and returns the demodulated audio and a dB-scaled spectrum
// slice. iqBytes must have even length.
func (r *Receiver) ProcessAM(iqBytes []int8) (audio []float32, spectrum []float32) {
	numSamples := len(iqBytes) / 2

	r.basebandBuf = r.basebandBuf[:0]
	useStaging := r.cfg.FFTUseProcessed && len(iqBytes) >= r.cfg.FFTSize*2

	for i := 0; i < numSamples; i++ {
		iVal := float32(iqBytes[2*i]) / 128
		qVal := float32(iqBytes[2*i+1]) / 128
		raw := complex(iVal, qVal)

		dcCancelled := r.dcCanceller.Process(raw)

		selected := raw
		if r.cfg.DcCancelEnabled {
			selected = dcCancelled
		}

		if useStaging && i < r.cfg.FFTSize {
			r.fftStaging[2*i] = floatToI8(real(selected))
			r.fftStaging[2*i+1] = floatToI8(imag(selected))
		}

		r.basebandBuf = append(r.basebandBuf, selected*r.nco.Step())
	}

	decimated := r.filter.Process(r.basebandBuf)

	if cap(r.amBuf) < len(decimated) {
		r.amBuf = make([]float32, len(decimated))
	} else {
		r.amBuf = r.amBuf[:len(decimated)]
	}
	r.amDemod.Demodulate(decimated, r.amBuf)

	r.audioBuf = r.audioBuf[:0]
	r.resampler.Process(r.amBuf, &r.audioBuf)

	for i := range r.fftBuf {
		r.fftBuf[i] = -120
	}
	if useStaging {
		r.fft.Fft(r.fftStaging, r.fftBuf)
	} else if len(iqBytes) >= r.cfg.FFTSize*2 {
		r.fft.Fft(iqBytes[:r.cfg.FFTSize*2], r.fftBuf)
	}

	copy(r.visibleBuf, r.fftBuf[r.fftVisibleStart:r.fftVisibleStart+r.fftVisibleLen])

	r.log.Debug("processed block", "samples", numSamples, "audio_len", len(r.audioBuf))

	return r.audioBuf, r.visibleBuf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
