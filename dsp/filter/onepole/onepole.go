package onepole

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-delay/dsp/core"
)

const (
	// MinCutoff is the lowest cutoff frequency in Hz the filter tunes to.
	MinCutoff = 5.0
	// MaxNormalizedCutoff is the highest cutoff as a fraction of the sample
	// rate. It keeps tan(pi*fc/fs) away from its pole at fs/2.
	MaxNormalizedCutoff = 0.49
)

// Mode selects the filter output.
type Mode int

const (
	// LowPass returns the lowpass output.
	LowPass Mode = iota
	// HighPass returns the complementary highpass output x - lp.
	HighPass
	// AllPass returns lp - hp: unity magnitude, phase shift around the cutoff.
	AllPass
)

func (m Mode) String() string {
	switch m {
	case LowPass:
		return "lowpass"
	case HighPass:
		return "highpass"
	case AllPass:
		return "allpass"
	default:
		return "unknown"
	}
}

// Filter is a single-channel TPT one-pole filter. It is real-time safe and
// not thread-safe.
type Filter struct {
	mode       Mode
	sampleRate float64
	cutoff     float64 // clamped
	requested  float64
	g          float64 // G = g/(1+g)
	s          float64
}

// New creates a filter. The cutoff is clamped into
// [MinCutoff, MaxNormalizedCutoff*sampleRate].
func New(mode Mode, sampleRate, cutoffHz float64) (*Filter, error) {
	if mode < LowPass || mode > AllPass {
		return nil, fmt.Errorf("onepole: invalid mode: %d", mode)
	}
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("onepole: sample rate must be > 0 and finite: %f", sampleRate)
	}
	if !core.IsFinite(cutoffHz) {
		return nil, fmt.Errorf("onepole: cutoff must be finite: %f", cutoffHz)
	}

	f := &Filter{mode: mode, sampleRate: sampleRate}
	f.setCutoff(cutoffHz)
	return f, nil
}

// ClampCutoff returns cutoffHz limited to the range the filter tunes to at
// sampleRate.
func ClampCutoff(cutoffHz, sampleRate float64) float64 {
	hi := MaxNormalizedCutoff * sampleRate
	if hi < MinCutoff {
		return hi
	}
	return core.Clamp(cutoffHz, MinCutoff, hi)
}

// Coefficient returns G = g/(1+g) for the given cutoff and sample rate,
// after clamping the cutoff.
func Coefficient(cutoffHz, sampleRate float64) float64 {
	g := math.Tan(math.Pi * ClampCutoff(cutoffHz, sampleRate) / sampleRate)
	return g / (1 + g)
}

func (f *Filter) setCutoff(cutoffHz float64) {
	f.requested = cutoffHz
	f.cutoff = ClampCutoff(cutoffHz, f.sampleRate)
	f.g = Coefficient(f.cutoff, f.sampleRate)
}

// ProcessSample filters one sample.
func (f *Filter) ProcessSample(x float64) float64 {
	v := (x - f.s) * f.g
	lp := v + f.s
	f.s = core.FlushDenormals(lp + v)

	switch f.mode {
	case HighPass:
		return x - lp
	case AllPass:
		return lp - (x - lp)
	default:
		return lp
	}
}

// ProcessInPlace filters buf in place.
func (f *Filter) ProcessInPlace(buf []float64) {
	for i := range buf {
		buf[i] = f.ProcessSample(buf[i])
	}
}

// SetCutoff retunes the filter without touching its state. Out-of-range
// cutoffs are clamped; only non-finite values are rejected.
func (f *Filter) SetCutoff(cutoffHz float64) error {
	if !core.IsFinite(cutoffHz) {
		return fmt.Errorf("onepole: cutoff must be finite: %f", cutoffHz)
	}
	f.setCutoff(cutoffHz)
	return nil
}

// SetSampleRate recomputes the coefficient for a new sample rate and
// clears the state. The cutoff last asked for is re-clamped against the
// new Nyquist limit, so a round trip through a lower rate restores it.
func (f *Filter) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("onepole: sample rate must be > 0 and finite: %f", sampleRate)
	}
	f.sampleRate = sampleRate
	f.setCutoff(f.requested)
	f.Reset()
	return nil
}

// Reset clears the filter state.
func (f *Filter) Reset() {
	f.s = 0
}

// State returns the internal integrator state.
func (f *Filter) State() float64 { return f.s }

// Mode returns the filter output mode.
func (f *Filter) Mode() Mode { return f.mode }

// RequestedCutoff returns the cutoff last passed to New or SetCutoff,
// before clamping.
func (f *Filter) RequestedCutoff() float64 { return f.requested }

// Cutoff returns the effective (clamped) cutoff in Hz.
func (f *Filter) Cutoff() float64 { return f.cutoff }

// SampleRate returns the sample rate in Hz.
func (f *Filter) SampleRate() float64 { return f.sampleRate }

// Coefficient returns the per-sample gain G = g/(1+g).
func (f *Filter) Coefficient() float64 { return f.g }

// Response computes the complex frequency response H(e^jw) at freqHz.
func (f *Filter) Response(freqHz float64) complex128 {
	w := 2 * math.Pi * freqHz / f.sampleRate
	zi := cmplx.Exp(complex(0, -w))

	// Undo G = g/(1+g) to recover the prewarped g.
	g := f.g / (1 - f.g)
	lp := complex(g, 0) * (1 + zi) / (complex(1+g, 0) + complex(g-1, 0)*zi)

	switch f.mode {
	case HighPass:
		return 1 - lp
	case AllPass:
		return 2*lp - 1
	default:
		return lp
	}
}

// MagnitudeDB returns 20*log10(|H(f)|).
func (f *Filter) MagnitudeDB(freqHz float64) float64 {
	return core.LinearToDB(cmplx.Abs(f.Response(freqHz)))
}
