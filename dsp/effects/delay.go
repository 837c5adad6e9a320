package effects

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-delay/dsp/core"
	"github.com/cwbudde/algo-delay/dsp/delay"
	"github.com/cwbudde/algo-delay/dsp/effects/spatial"
	"github.com/cwbudde/algo-delay/dsp/interp"
)

// DelayOption configures construction-time properties of a Delay.
type DelayOption func(*delayConfig) error

type delayConfig struct {
	maxDelayMs float64
	mode       interp.Mode
	bassMonoHz float64
}

func defaultDelayConfig() delayConfig {
	return delayConfig{
		maxDelayMs: defaultMaxDelayTimeMs,
		mode:       interp.Linear,
	}
}

// WithMaxDelayTime sets the delay-line capacity in milliseconds. Longer
// DelayTime settings are clamped to it.
func WithMaxDelayTime(ms float64) DelayOption {
	return func(cfg *delayConfig) error {
		if !(ms > 0) || !core.IsFinite(ms) {
			return fmt.Errorf("delay max time must be > 0 ms and finite: %f", ms)
		}

		cfg.maxDelayMs = ms

		return nil
	}
}

// WithInterpolation selects the fractional read kernel of both delay lines.
func WithInterpolation(mode interp.Mode) DelayOption {
	return func(cfg *delayConfig) error {
		if !mode.Valid() {
			return fmt.Errorf("delay interpolation mode is invalid: %s", mode)
		}

		cfg.mode = mode

		return nil
	}
}

// WithBassMono keeps wet content below freqHz centred regardless of Width.
// 0 disables it.
func WithBassMono(freqHz float64) DelayOption {
	return func(cfg *delayConfig) error {
		cfg.bassMonoHz = freqHz
		return nil
	}
}

// Delay is a stereo feedback delay with filtered, optionally ping-ponging
// echoes, a width control on the wet signal and a dry/wet mixer.
//
// Per sample, both delay lines are read before either is written. The
// delayed pair feeds the FeedbackPath (lowpass, highpass, gain, routing)
// whose result is written back, while the unfiltered delayed pair passes
// the stereo widener and is mixed with the undelayed dry input.
//
// Delay never allocates while processing and is not safe for concurrent
// use.
type Delay struct {
	settings   Settings
	sampleRate float64
	cfg        delayConfig

	lineL *delay.Line
	lineR *delay.Line

	delaySamples float64

	feedback *FeedbackPath
	widener  *spatial.StereoWidener
	mixer    *Mixer
}

// NewDelay creates a stereo delay for sampleRate configured from settings.
func NewDelay(settings Settings, sampleRate float64, opts ...DelayOption) (*Delay, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("delay sample rate must be > 0 and finite: %f", sampleRate)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cfg := defaultDelayConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	d := &Delay{
		settings:   settings,
		sampleRate: sampleRate,
		cfg:        cfg,
	}

	var err error
	if d.lineL, d.lineR, err = newLinePair(sampleRate, cfg); err != nil {
		return nil, err
	}

	if d.feedback, err = NewFeedbackPath(sampleRate, settings); err != nil {
		return nil, err
	}

	widenerOpts := []spatial.StereoWidenerOption{spatial.WithWidth(settings.Width)}
	if cfg.bassMonoHz != 0 {
		widenerOpts = append(widenerOpts, spatial.WithBassMonoFreq(cfg.bassMonoHz))
	}

	if d.widener, err = spatial.NewStereoWidener(sampleRate, widenerOpts...); err != nil {
		return nil, err
	}

	if d.mixer, err = NewMixer(settings.DryWetMix, settings.OutputLevel); err != nil {
		return nil, err
	}

	d.updateDelaySamples()

	return d, nil
}

func newLinePair(sampleRate float64, cfg delayConfig) (*delay.Line, *delay.Line, error) {
	maxSeconds := cfg.maxDelayMs / 1000

	left, err := delay.NewForDuration(sampleRate, maxSeconds, delay.WithMode(cfg.mode))
	if err != nil {
		return nil, nil, err
	}

	right, err := delay.NewForDuration(sampleRate, maxSeconds, delay.WithMode(cfg.mode))
	if err != nil {
		return nil, nil, err
	}

	return left, right, nil
}

func (d *Delay) updateDelaySamples() {
	samples := core.MillisecondsToSamples(d.settings.DelayTime, d.sampleRate)
	d.delaySamples = core.Clamp(samples, 1, d.lineL.MaxDelay())
}

// ProcessSample processes one stereo frame.
func (d *Delay) ProcessSample(inL, inR float64) (outL, outR float64) {
	delayedL := d.lineL.ReadFractional(d.delaySamples)
	delayedR := d.lineR.ReadFractional(d.delaySamples)

	fbL, fbR := d.feedback.Process(delayedL, delayedR)
	writeL, writeR := d.feedback.Route(inL, inR, fbL, fbR)
	d.lineL.Write(writeL)
	d.lineR.Write(writeR)

	wetL, wetR := d.widener.ProcessStereo(delayedL, delayedR)

	return d.mixer.Mix(inL, wetL), d.mixer.Mix(inR, wetR)
}

// Process renders an interleaved stereo buffer (L0 R0 L1 R1 ...) into
// output. input and output may be the same slice.
func (d *Delay) Process(input, output []float64) error {
	if len(input) != len(output) {
		return fmt.Errorf("%w: input %d, output %d", ErrLengthMismatch, len(input), len(output))
	}

	if len(input)%2 != 0 {
		return fmt.Errorf("%w: %d", ErrOddLength, len(input))
	}

	for i := 0; i < len(input); i += 2 {
		output[i], output[i+1] = d.ProcessSample(input[i], input[i+1])
	}

	return nil
}

// ProcessInterleavedInPlace renders an interleaved stereo buffer in place.
func (d *Delay) ProcessInterleavedInPlace(buf []float64) error {
	return d.Process(buf, buf)
}

// ProcessStereo renders planar buffers. All four slices must have the same
// length; outputs may alias the matching inputs.
func (d *Delay) ProcessStereo(inL, inR, outL, outR []float64) error {
	n := len(inL)
	if len(inR) != n || len(outL) != n || len(outR) != n {
		return fmt.Errorf("%w: inL %d, inR %d, outL %d, outR %d",
			ErrLengthMismatch, len(inL), len(inR), len(outL), len(outR))
	}

	for i := range n {
		outL[i], outR[i] = d.ProcessSample(inL[i], inR[i])
	}

	return nil
}

// SetSettings applies new settings between processing calls. Delay-line
// contents and filter state are kept. On error nothing changes.
func (d *Delay) SetSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := d.feedback.Configure(settings); err != nil {
		return err
	}

	if err := d.widener.SetWidth(settings.Width); err != nil {
		return err
	}

	if err := d.mixer.SetMix(settings.DryWetMix); err != nil {
		return err
	}

	if err := d.mixer.SetLevel(settings.OutputLevel); err != nil {
		return err
	}

	d.settings = settings
	d.updateDelaySamples()

	return nil
}

// SetSampleRate reallocates both delay lines for the new rate and clears
// all processing state.
func (d *Delay) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("delay sample rate must be > 0 and finite: %f", sampleRate)
	}

	left, right, err := newLinePair(sampleRate, d.cfg)
	if err != nil {
		return err
	}

	if err := d.widener.SetSampleRate(sampleRate); err != nil {
		return err
	}

	if err := d.feedback.SetSampleRate(sampleRate); err != nil {
		return err
	}

	d.lineL, d.lineR = left, right
	d.sampleRate = sampleRate
	d.widener.Reset()
	d.updateDelaySamples()

	return nil
}

// Reset clears both delay lines and all filter state.
func (d *Delay) Reset() {
	d.lineL.Reset()
	d.lineR.Reset()
	d.feedback.Reset()
	d.widener.Reset()
}

// Settings returns the active settings.
func (d *Delay) Settings() Settings { return d.settings }

// SampleRate returns the sample rate in Hz.
func (d *Delay) SampleRate() float64 { return d.sampleRate }

// DelaySamples returns the effective (clamped) delay in samples.
func (d *Delay) DelaySamples() float64 { return d.delaySamples }

// MaxDelayTime returns the delay-line capacity in milliseconds.
func (d *Delay) MaxDelayTime() float64 { return d.cfg.maxDelayMs }

// Interpolation returns the fractional read kernel in use.
func (d *Delay) Interpolation() interp.Mode { return d.cfg.mode }

// LatencySamples returns the processing latency. The dry path is never
// delayed.
func (d *Delay) LatencySamples() int { return 0 }

// TailSamples returns how many samples the output keeps ringing after the
// input falls silent, measured until the echo train drops below -60 dB.
// It returns math.MaxInt when the feedback never decays.
func (d *Delay) TailSamples() int {
	period := math.Ceil(d.delaySamples)
	f := d.settings.Feedback

	if f >= 1 {
		return math.MaxInt
	}

	echoes := 0.0
	if f > 0 {
		// Echo k (k >= 0) leaves with gain f^k.
		echoes = math.Ceil(decayThresholdExponent / -math.Log10(f))
	}

	return int((echoes + 1) * period)
}

// FeedbackForDecay returns the feedback gain that makes echoes spaced
// delayMs apart fall by 60 dB within decayMs. Non-positive or non-finite
// arguments yield 0.
func FeedbackForDecay(delayMs, decayMs float64) float64 {
	if !(delayMs > 0) || !(decayMs > 0) || !core.IsFinite(delayMs) || math.IsNaN(decayMs) {
		return 0
	}

	if math.IsInf(decayMs, 1) {
		return 1
	}

	return math.Pow(10, -decayThresholdExponent*delayMs/decayMs)
}
