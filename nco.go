package am

import "math"

// Nco is a numerically controlled oscillator: a per-sample complex
// exponential generator used to frequency-shift a baseband signal.
type Nco struct {
	phase    float32
	phaseInc float32
}

// NewNco constructs an Nco for freqHz relative to sampleRateHz. freqHz may
// be negative for a downward shift. Phase starts at 0.
func NewNco(freqHz, sampleRateHz float64) *Nco {
	return &Nco{
		phase:    0,
		phaseInc: float32(2 * math.Pi * freqHz / sampleRateHz),
	}
}

// Step returns (cos phase, sin phase) and advances the phase by phaseInc,
// wrapping it back into [0, 2*Pi). phaseInc magnitude is assumed < 2*Pi, so
// a single corrective wrap per sample suffices.
func (n *Nco) Step() complex64 {
	val := complex(float32(math.Cos(float64(n.phase))), float32(math.Sin(float64(n.phase))))
	n.phase += n.phaseInc

	const twoPi = float32(2 * math.Pi)
	if n.phase >= twoPi {
		n.phase -= twoPi
	} else if n.phase < 0 {
		n.phase += twoPi
	}

	return val
}
