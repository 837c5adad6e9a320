package delay

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-delay/dsp/core"
	"github.com/cwbudde/algo-delay/dsp/interp"
)

// historyPad is the number of extra slots NewForDuration reserves so that
// the longest requested delay can still be read with a 4-tap kernel.
const historyPad = 3

// Option configures a Line at construction time.
type Option func(*Line) error

// WithMode selects the fractional interpolation kernel (default Linear).
func WithMode(mode interp.Mode) Option {
	return func(d *Line) error {
		if !mode.Valid() {
			return fmt.Errorf("delay interpolation mode is not supported: %v", mode)
		}
		d.mode = mode
		return nil
	}
}

// Line is a fixed-capacity circular delay line.
//
// The write cursor always points at the slot that the next Write overwrites.
// Read(1) returns the newest sample, Read(Len()-1) the oldest one that is
// still addressable behind the cursor.
type Line struct {
	buffer   []float64
	writePos int
	mode     interp.Mode
}

// New returns a delay line of fixed size.
func New(size int, opts ...Option) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}

	d := &Line{mode: interp.Linear}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	if size < d.mode.Taps()+1 {
		return nil, fmt.Errorf("delay size must be >= %d for %s interpolation: %d",
			d.mode.Taps()+1, d.mode, size)
	}

	d.buffer = make([]float64, size)
	return d, nil
}

// NewForDuration returns a line able to serve delays up to maxSeconds at
// sampleRate.
func NewForDuration(sampleRate, maxSeconds float64, opts ...Option) (*Line, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("delay sample rate must be > 0 and finite: %f", sampleRate)
	}
	if maxSeconds <= 0 || math.IsNaN(maxSeconds) || math.IsInf(maxSeconds, 0) {
		return nil, fmt.Errorf("delay max time must be > 0 and finite: %f", maxSeconds)
	}
	return New(int(math.Ceil(maxSeconds*sampleRate))+historyPad, opts...)
}

// Len returns internal buffer size.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Mode returns the fractional interpolation kernel.
func (d *Line) Mode() interp.Mode {
	return d.mode
}

// MaxDelay returns the longest delay in samples ReadFractional can serve
// without clamping.
func (d *Line) MaxDelay() float64 {
	return float64(len(d.buffer) - d.mode.Taps()/2 - 1)
}

// Write writes one sample and advances the cursor.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample
	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read reads an integer delay in samples. Delays outside [0, Len()-1] are
// clamped.
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if delay < 0 {
		delay = 0
	} else if delay >= size {
		delay = size - 1
	}

	readPos := d.writePos - delay
	if readPos < 0 {
		readPos += size
	}
	return d.buffer[readPos]
}

// ReadFractional reads a fractional delay in samples using the configured
// kernel. The delay is clamped into [1, MaxDelay()]; NaN reads as 1.
func (d *Line) ReadFractional(delay float64) float64 {
	maxDelay := d.MaxDelay()
	if !(delay >= 1) {
		delay = 1
	} else if delay > maxDelay {
		delay = maxDelay
	}

	p := int(delay)
	t := delay - float64(p)

	if d.mode == interp.Hermite {
		x0, x1 := d.Read(p), d.Read(p+1)

		// The newer neighbour of the most recent sample is not written yet.
		var xm1 float64
		if p > 1 {
			xm1 = d.Read(p - 1)
		} else {
			xm1 = 2*x0 - x1
		}

		return interp.Hermite4(t, xm1, x0, x1, d.Read(p+2))
	}

	x0 := d.Read(p)
	if t == 0 {
		return x0
	}
	return interp.Linear2(t, x0, d.Read(p+1))
}

// Reset clears line state.
func (d *Line) Reset() {
	core.Zero(d.buffer)
	d.writePos = 0
}
