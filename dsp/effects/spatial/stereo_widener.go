package spatial

import (
	"fmt"

	"github.com/cwbudde/algo-delay/dsp/core"
	"github.com/cwbudde/algo-delay/dsp/filter/onepole"
)

const (
	// MinWidth collapses the image to mono.
	MinWidth = 0.0
	// MaxWidth is the widest supported side gain.
	MaxWidth = 4.0

	// MinBassMonoFreq and MaxBassMonoFreq bound an enabled bass mono crossover.
	MinBassMonoFreq = 20.0
	MaxBassMonoFreq = 500.0
)

// StereoWidenerOption configures a StereoWidener at construction time.
type StereoWidenerOption func(*StereoWidener) error

// WithWidth sets the side gain: 0 is mono, 1 leaves the image unchanged,
// values up to MaxWidth widen it.
func WithWidth(width float64) StereoWidenerOption {
	return func(w *StereoWidener) error {
		return w.SetWidth(width)
	}
}

// WithBassMonoFreq keeps content below freq (Hz) in the centre. 0 disables
// the crossover, otherwise freq must lie in [MinBassMonoFreq, MaxBassMonoFreq].
func WithBassMonoFreq(freq float64) StereoWidenerOption {
	return func(w *StereoWidener) error {
		if err := checkBassMonoFreq(freq); err != nil {
			return err
		}

		// Filters are built once the sample rate is known.
		w.bassMonoFreq = freq

		return nil
	}
}

// StereoWidener scales the side component of a stereo pair.
//
//	mid  = (L + R) / 2
//	side = (L - R) / 2
//	L'   = mid + width*side
//	R'   = mid - width*side
//
// With bass mono enabled each channel is split by a one-pole lowpass into
// bass = lp(x) and high = x - bass. The bass bands are summed to mono and
// only the high bands are widened; the bands add back to the input exactly.
//
// StereoWidener does not allocate while processing and is not safe for
// concurrent use.
type StereoWidener struct {
	sampleRate   float64
	width        float64
	bassMonoFreq float64

	split *bassSplit // nil when bass mono is off
}

// bassSplit holds the per-channel crossover lowpasses.
type bassSplit struct {
	left  *onepole.Filter
	right *onepole.Filter
}

func newBassSplit(sampleRate, freq float64) (*bassSplit, error) {
	left, err := onepole.New(onepole.LowPass, sampleRate, freq)
	if err != nil {
		return nil, err
	}

	right, err := onepole.New(onepole.LowPass, sampleRate, freq)
	if err != nil {
		return nil, err
	}

	return &bassSplit{left: left, right: right}, nil
}

// process returns the shared mono bass and the two high bands.
func (b *bassSplit) process(l, r float64) (bass, highL, highR float64) {
	lowL := b.left.ProcessSample(l)
	lowR := b.right.ProcessSample(r)

	return (lowL + lowR) * 0.5, l - lowL, r - lowR
}

func (b *bassSplit) reset() {
	b.left.Reset()
	b.right.Reset()
}

// NewStereoWidener creates a widener with width 1 and bass mono disabled
// unless options say otherwise.
func NewStereoWidener(sampleRate float64, opts ...StereoWidenerOption) (*StereoWidener, error) {
	if err := checkSampleRate(sampleRate); err != nil {
		return nil, err
	}

	w := &StereoWidener{sampleRate: sampleRate, width: 1}

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(w); err != nil {
			return nil, err
		}
	}

	if err := w.rebuildSplit(); err != nil {
		return nil, err
	}

	return w, nil
}

func checkSampleRate(sampleRate float64) error {
	if !(sampleRate > 0) || !core.IsFinite(sampleRate) {
		return fmt.Errorf("stereo widener sample rate must be > 0 and finite: %f", sampleRate)
	}

	return nil
}

func checkBassMonoFreq(freq float64) error {
	if freq == 0 {
		return nil
	}

	if !(freq >= MinBassMonoFreq && freq <= MaxBassMonoFreq) {
		return fmt.Errorf("stereo widener bass mono freq must be 0 (disabled) or in [%g, %g]: %f",
			MinBassMonoFreq, MaxBassMonoFreq, freq)
	}

	return nil
}

// rebuildSplit creates, retunes or drops the crossover to match the current
// sample rate and bass mono frequency. Retuning at an unchanged rate keeps
// the filter state.
func (w *StereoWidener) rebuildSplit() error {
	if w.bassMonoFreq == 0 {
		w.split = nil
		return nil
	}

	if limit := w.sampleRate * onepole.MaxNormalizedCutoff; w.bassMonoFreq >= limit {
		return fmt.Errorf("stereo widener bass mono freq must be below %g Hz at %g Hz: %f",
			limit, w.sampleRate, w.bassMonoFreq)
	}

	if w.split != nil && w.split.left.SampleRate() == w.sampleRate {
		if err := w.split.left.SetCutoff(w.bassMonoFreq); err != nil {
			return err
		}

		return w.split.right.SetCutoff(w.bassMonoFreq)
	}

	split, err := newBassSplit(w.sampleRate, w.bassMonoFreq)
	if err != nil {
		return err
	}

	w.split = split

	return nil
}

// ProcessStereo widens one stereo frame.
func (w *StereoWidener) ProcessStereo(left, right float64) (float64, float64) {
	if w.split == nil {
		mid := (left + right) * 0.5
		side := (left - right) * 0.5 * w.width

		return mid + side, mid - side
	}

	bass, highL, highR := w.split.process(left, right)
	mid := bass + (highL+highR)*0.5
	side := (highL - highR) * 0.5 * w.width

	return mid + side, mid - side
}

// ProcessStereoInPlace widens planar buffers of equal length in place.
func (w *StereoWidener) ProcessStereoInPlace(left, right []float64) error {
	if len(left) != len(right) {
		return fmt.Errorf("stereo widener: left and right buffers must have equal length: %d != %d",
			len(left), len(right))
	}

	for i := range left {
		left[i], right[i] = w.ProcessStereo(left[i], right[i])
	}

	return nil
}

// ProcessInterleavedInPlace widens an L, R, L, R, ... buffer in place.
func (w *StereoWidener) ProcessInterleavedInPlace(buf []float64) error {
	if len(buf)%2 != 0 {
		return fmt.Errorf("stereo widener: interleaved buffer length must be even: %d", len(buf))
	}

	for i := 0; i < len(buf); i += 2 {
		buf[i], buf[i+1] = w.ProcessStereo(buf[i], buf[i+1])
	}

	return nil
}

// Reset clears the crossover state.
func (w *StereoWidener) Reset() {
	if w.split != nil {
		w.split.reset()
	}
}

// SetWidth sets the side gain in [MinWidth, MaxWidth].
func (w *StereoWidener) SetWidth(width float64) error {
	if !(width >= MinWidth && width <= MaxWidth) {
		return fmt.Errorf("stereo widener width must be in [%g, %g]: %f", MinWidth, MaxWidth, width)
	}

	w.width = width

	return nil
}

// SetBassMonoFreq changes the crossover frequency. 0 disables bass mono.
// On error the previous frequency stays active.
func (w *StereoWidener) SetBassMonoFreq(freq float64) error {
	if err := checkBassMonoFreq(freq); err != nil {
		return err
	}

	prev := w.bassMonoFreq
	w.bassMonoFreq = freq

	if err := w.rebuildSplit(); err != nil {
		w.bassMonoFreq = prev
		return err
	}

	return nil
}

// SetSampleRate moves the crossover to a new rate. Filter state is cleared.
func (w *StereoWidener) SetSampleRate(sampleRate float64) error {
	if err := checkSampleRate(sampleRate); err != nil {
		return err
	}

	prev := w.sampleRate
	w.sampleRate = sampleRate

	if err := w.rebuildSplit(); err != nil {
		w.sampleRate = prev
		return err
	}

	return nil
}

// SampleRate returns the sample rate in Hz.
func (w *StereoWidener) SampleRate() float64 { return w.sampleRate }

// Width returns the side gain.
func (w *StereoWidener) Width() float64 { return w.width }

// BassMonoFreq returns the crossover frequency in Hz, or 0 when disabled.
func (w *StereoWidener) BassMonoFreq() float64 { return w.bassMonoFreq }
