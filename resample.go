package am

import (
	"math"

	"hz.tools/am/internal/window"
)

const (
	resamplerNumPhases    = 256
	resamplerTapsPerPhase = 17
)

// Resampler is a rational-rate resampler (sourceRate -> targetRate) built
// from a polyphase bank of windowed-sinc filters. phase is carried as a
// float64 across Process calls so that sub-sample residue does not drift
// over long runs.
type Resampler struct {
	SourceRate uint32
	TargetRate uint32

	step  float64
	phase float64

	coeffs  [][]float32 // [phase][tap]
	history []float32
}

// NewResampler constructs a Resampler for the given integer sample rates.
// Panics if either rate is 0.
func NewResampler(sourceRate, targetRate uint32) *Resampler {
	if sourceRate == 0 {
		panic("am: Resampler: source_rate must be > 0")
	}
	if targetRate == 0 {
		panic("am: Resampler: target_rate must be > 0")
	}

	step := float64(sourceRate) / float64(targetRate)

	cutoff := 0.5 * math.Min(float64(targetRate)/float64(sourceRate), 1.0) * 0.95
	center := float64(resamplerTapsPerPhase-1) / 2
	blackman := window.Blackman(resamplerTapsPerPhase)

	coeffs := make([][]float32, resamplerNumPhases)
	for p := 0; p < resamplerNumPhases; p++ {
		frac := float64(p) / float64(resamplerNumPhases)
		phaseCoeffs := make([]float64, resamplerTapsPerPhase)
		sum := 0.0
		for i := range phaseCoeffs {
			x := float64(i) - center - frac
			h := 2 * cutoff * window.Sinc(2*cutoff*x) * blackman[i]
			phaseCoeffs[i] = h
			sum += h
		}
		row := make([]float32, resamplerTapsPerPhase)
		for i, h := range phaseCoeffs {
			row[i] = float32(h / sum)
		}
		coeffs[p] = row
	}

	return &Resampler{
		SourceRate: sourceRate,
		TargetRate: targetRate,
		step:       step,
		coeffs:     coeffs,
		history:    make([]float32, resamplerTapsPerPhase-1),
	}
}

// Process appends resampled output samples to output (does not clear it
// first). Samples that would need input beyond the current block are
// deferred to the next call via the carried phase/history.
func (r *Resampler) Process(input []float32, output *[]float32) {
	if len(input) == 0 {
		return
	}

	prefixLen := len(r.history)
	buffer := make([]float32, 0, prefixLen+len(input))
	buffer = append(buffer, r.history...)
	buffer = append(buffer, input...)

	center := (resamplerTapsPerPhase - 1) / 2
	safeLimit := float64(len(input) - center)

	for r.phase < safeLimit {
		base := int64(math.Floor(r.phase))
		frac := r.phase - float64(base)

		phaseIdx := int(frac * resamplerNumPhases)
		if phaseIdx >= resamplerNumPhases {
			phaseIdx = resamplerNumPhases - 1
		}

		coeffs := r.coeffs[phaseIdx]
		start := base - int64(center)

		var sum float32
		for tap, h := range coeffs {
			srcIdx := start + int64(tap)
			bufIdx := srcIdx + int64(prefixLen)
			sum += buffer[bufIdx] * h
		}

		*output = append(*output, sum)
		r.phase += r.step
	}

	r.phase -= float64(len(input))

	if prefixLen == 0 {
		return
	}
	if len(input) >= prefixLen {
		copy(r.history, input[len(input)-prefixLen:])
	} else {
		shift := len(input)
		copy(r.history, r.history[shift:])
		copy(r.history[prefixLen-shift:], input)
	}
}
