package am

import (
	"fmt"
	"math"
)

// dcNotch2 is a single 2nd-order IIR notch with zeros at z=1 (DC):
//
//	H(z) = (1 - 2z^-1 + z^-2) / (1 - 2r*z^-1 + r^2*z^-2)
type dcNotch2 struct {
	r      float32
	x1, x2 complex64
	y1, y2 complex64
}

func newDcNotch2(r float32) *dcNotch2 {
	return &dcNotch2{r: r}
}

func (n *dcNotch2) process(x complex64) complex64 {
	r2 := n.r * n.r
	y := x - n.x1*2 + n.x2 + n.y1*complex(2*n.r, 0) - n.y2*complex(r2, 0)

	n.x2 = n.x1
	n.x1 = x
	n.y2 = n.y1
	n.y1 = y

	return y
}

// DcCanceller removes the DC (zero-frequency) component from a complex IQ
// stream using two cascaded dcNotch2 stages (an effective 4th-order IIR
// notch at z=1).
type DcCanceller struct {
	stage1, stage2 *dcNotch2
}

// NewDcCanceller constructs a DcCanceller. Q controls notch sharpness: the
// equivalent notch bandwidth is sampleRateHz/Q, and r = exp(-2*Pi*notchBw/
// sampleRateHz). Higher Q gives a narrower, sharper notch. Panics if
// sampleRateHz <= 0 or Q <= 1.
func NewDcCanceller(sampleRateHz, q float64) *DcCanceller {
	if sampleRateHz <= 0 {
		panic(fmt.Sprintf("am: DcCanceller: sample_rate_hz must be > 0, got %v", sampleRateHz))
	}
	if q <= 1 {
		panic(fmt.Sprintf("am: DcCanceller: q must be > 1, got %v", q))
	}

	notchBwHz := sampleRateHz / q
	r := float32(math.Exp(-2 * math.Pi * notchBwHz / sampleRateHz))

	return &DcCanceller{
		stage1: newDcNotch2(r),
		stage2: newDcNotch2(r),
	}
}

// Process runs one complex IQ sample through both cascaded notch stages.
func (d *DcCanceller) Process(sample complex64) complex64 {
	y1 := d.stage1.process(sample)
	return d.stage2.process(y1)
}
