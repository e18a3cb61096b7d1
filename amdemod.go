package am

import (
	"fmt"
	"math/cmplx"
)

const (
	amCarrierAlpha    = 2e-4
	amAgcAttackAlpha  = 2e-3
	amAgcReleaseAlpha = 2e-2
	amTargetLevel     = 0.3
	amMaxGain         = 50.0
	amOutputClip      = 0.98
)

// AMDemodulator is an envelope detector with a tracking carrier estimator
// and asymmetric-attack AGC. Parameters are the fixed values spec.md
// section 4.4 hand-tunes for a ~50kHz decimated baseband.
type AMDemodulator struct {
	carrierEstimate float32
	gain            float32
}

// NewAMDemodulator constructs an AMDemodulator with zeroed tracker state.
func NewAMDemodulator() *AMDemodulator {
	return &AMDemodulator{}
}

// Demodulate envelope-detects input into output, which must be the same
// length. Non-allocating.
func (d *AMDemodulator) Demodulate(input []complex64, output []float32) {
	if len(input) != len(output) {
		panic(fmt.Sprintf("am: AMDemodulator.Demodulate: input/output length mismatch: %d vs %d", len(input), len(output)))
	}

	for i, sample := range input {
		env := float32(cmplx.Abs(complex128(sample)))

		d.carrierEstimate += amCarrierAlpha * (env - d.carrierEstimate)
		ac := env - d.carrierEstimate

		var desiredGain float32
		if d.carrierEstimate > 1e-4 {
			desiredGain = amTargetLevel / d.carrierEstimate
			if desiredGain > amMaxGain {
				desiredGain = amMaxGain
			}
		}

		agcAlpha := float32(amAgcReleaseAlpha)
		if desiredGain > d.gain {
			agcAlpha = amAgcAttackAlpha
		}
		d.gain += agcAlpha * (desiredGain - d.gain)

		out := ac * d.gain
		if out > amOutputClip {
			out = amOutputClip
		} else if out < -amOutputClip {
			out = -amOutputClip
		}
		output[i] = out
	}
}
