// Package bridge adapts an am.Receiver to the hz.tools/sdr streaming
// ecosystem: it wraps a raw i8 sdr.Reader into a block-driven am.Receiver
// call, exposes the configured IF band as waterfall bin indices via
// hz.tools/sdr/fft, and offers optional FFTW-backed and downsample-only
// reference readers built from hz.tools/sdr/stream and hz.tools/fftw. None
// of this is required by am.Receiver itself -- it exists for hosts that
// already work in the hz.tools ecosystem, the same way the teacher's own
// Demodulate/Modulator types compose sdr.Reader/sdr.Writer pipelines.
package bridge

import (
	"fmt"

	"hz.tools/am"
	"hz.tools/fftw"
	"hz.tools/rf"
	"hz.tools/sdr"
	"hz.tools/sdr/fft"
	"hz.tools/sdr/stream"
)

// Source drives an am.Receiver from an sdr.Reader of raw i8 IQ samples,
// one block at a time. It is single-threaded and synchronous, like the
// Receiver it wraps.
type Source struct {
	reader       sdr.Reader
	receiver     *am.Receiver
	blockSamples int

	iqSamples sdr.SamplesI8
	iqFlat    []int8

	lastAudio    []float32
	lastSpectrum []float32
}

// NewSource validates that reader carries i8 samples and constructs a
// Source around cfg. blockSamples is the number of IQ sample pairs read per
// Next call (N in spec.md section 6; typically 131072).
func NewSource(reader sdr.Reader, cfg am.ReceiverConfig, blockSamples int) (*Source, error) {
	if blockSamples <= 0 {
		return nil, fmt.Errorf("bridge: NewSource: blockSamples must be > 0, got %d", blockSamples)
	}

	switch reader.SampleFormat() {
	case sdr.SampleFormatI8:
	default:
		return nil, fmt.Errorf("bridge: NewSource: %w", sdr.ErrSampleFormatMismatch)
	}

	return &Source{
		reader:       reader,
		receiver:     am.NewReceiver(cfg),
		blockSamples: blockSamples,
		iqSamples:    make(sdr.SamplesI8, blockSamples),
		iqFlat:       make([]int8, blockSamples*2),
	}, nil
}

// Next reads one block of i8 IQ samples from the underlying reader and
// runs it through the wrapped Receiver, returning the audio and spectrum
// slices exactly as am.Receiver.ProcessAM does.
//
// sdr.ReadFull's returned count indexes s.iqSamples directly, one element
// per IQ sample (the same convention demodulator.go's Read relies on via
// "buf = buf[:i]" against a sdr.SamplesC64 buffer) -- it is not a raw byte
// count, so it must not be doubled against iqSamples. am.Receiver.ProcessAM
// wants a flat interleaved I,Q,I,Q,... int8 slice, so each I8 sample is
// unpacked into iqFlat before the call.
func (s *Source) Next() (audio []float32, spectrum []float32, err error) {
	n, err := sdr.ReadFull(s.reader, s.iqSamples)
	if err != nil {
		return nil, nil, fmt.Errorf("bridge: Source.Next: %w", err)
	}

	samples := s.iqSamples[:n]
	for i, sample := range samples {
		s.iqFlat[2*i] = sample.I
		s.iqFlat[2*i+1] = sample.Q
	}

	s.lastAudio, s.lastSpectrum = s.receiver.ProcessAM(s.iqFlat[:n*2])
	return s.lastAudio, s.lastSpectrum, nil
}

// SampleRate implements a reader-like accessor mirroring sdr.Reader's
// convention.
func (s *Source) SampleRate() uint {
	return s.reader.SampleRate()
}

// ChannelBins translates the IF band [centerFreq+ifMinHz, centerFreq+ifMaxHz]
// into the waterfall bin indices a host UI would highlight, via
// hz.tools/sdr/fft.BinsByRange -- the same helper the teacher's
// internal.Filter uses to build an FM channel mask. The band edges are used
// as given; no IF-band sanitization is applied. It does not feed back into
// the Receiver's own FFT.
func ChannelBins(sampleRate uint, centerFreq, ifMinHz, ifMaxHz rf.Hz, fftSize int) ([]int, error) {
	dst := make([]complex64, fftSize)
	return fft.BinsByRange(dst, sampleRate, fft.ZeroFirst, rf.Range{
		centerFreq + ifMinHz,
		centerFreq + ifMaxHz,
	})
}

// NewConvolutionChannelizer wraps reader in an FFTW-backed frequency-domain
// convolution filter, built from the same stream.ConvolutionReader(reader,
// fftw.Plan, filter) call the teacher's Demodulate constructor uses for its
// FM channel filter. It is an optional alternative front-end a host may put
// ahead of an am.Receiver for large decimation factors; am.DecimationFilter
// remains the core's own mandated filter stage.
func NewConvolutionChannelizer(reader sdr.Reader, filter []complex64) (sdr.Reader, error) {
	return stream.ConvolutionReader(reader, fftw.Plan, filter)
}

// ReferenceDownsample wraps reader in hz.tools/sdr/stream's plain
// integer-factor downsampler, usable by a host or test as an independent
// reference to sanity-check am.DecimationFilter's output rate. It
// duplicates no filtering logic of its own.
func ReferenceDownsample(reader sdr.Reader, factor int) (sdr.Reader, error) {
	return stream.DownsampleReader(reader, factor)
}
