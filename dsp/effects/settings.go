package effects

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-delay/dsp/core"
)

var (
	// ErrInvalidSettings is wrapped by every Settings validation failure.
	ErrInvalidSettings = errors.New("effects: invalid delay settings")
	// ErrLengthMismatch is returned when input and output buffers differ in length.
	ErrLengthMismatch = errors.New("effects: buffer length mismatch")
	// ErrOddLength is returned when an interleaved stereo buffer has an odd length.
	ErrOddLength = errors.New("effects: interleaved stereo buffer length must be even")
)

const (
	defaultDelayTimeMs     = 166.66
	defaultFeedback        = 0.75
	defaultWidth           = 0.5
	defaultLowpassHz       = 20000.0
	defaultHighpassHz      = 300.0
	defaultDryWetMix       = 0.5
	defaultOutputLevel     = 1.0
	defaultMaxDelayTimeMs  = 2000.0
	maxWetWidth            = 1.0
	decayThresholdExponent = 3.0 // -60 dB == 10^-3
)

// Settings is the complete parameter set of a stereo Delay.
//
// Settings is a plain value: copy it, modify it and hand it back through
// Delay.SetSettings.
type Settings struct {
	// DelayTime is the echo spacing in milliseconds.
	DelayTime float64
	// Feedback is the gain applied to each recirculated echo. Values of 1
	// or more are accepted but make the echo train grow without bound.
	Feedback float64
	// PingPong alternates echoes between the left and right channel.
	PingPong bool
	// Width scales the stereo spread of the wet signal: 0 is mono, 1 keeps
	// the full separation.
	Width float64
	// PhaseReverse inverts the polarity of the fed-back signal.
	PhaseReverse bool
	// LowpassFilter is the cutoff in Hz of the lowpass in the feedback loop.
	LowpassFilter float64
	// HighpassFilter is the cutoff in Hz of the highpass in the feedback loop.
	HighpassFilter float64
	// DryWetMix blends the dry input (0) with the wet echoes (1).
	DryWetMix float64
	// OutputLevel is a linear gain applied after mixing.
	OutputLevel float64
}

// DefaultSettings returns a ping-pong delay of roughly one eighth note at
// 90 BPM with a bright, slightly thinned feedback path.
func DefaultSettings() Settings {
	return Settings{
		DelayTime:      defaultDelayTimeMs,
		Feedback:       defaultFeedback,
		PingPong:       true,
		Width:          defaultWidth,
		PhaseReverse:   false,
		LowpassFilter:  defaultLowpassHz,
		HighpassFilter: defaultHighpassHz,
		DryWetMix:      defaultDryWetMix,
		OutputLevel:    defaultOutputLevel,
	}
}

// Validate reports the first out-of-range field. The returned error wraps
// ErrInvalidSettings.
func (s Settings) Validate() error {
	switch {
	case !(s.DelayTime > 0) || !core.IsFinite(s.DelayTime):
		return fmt.Errorf("%w: delay time must be > 0 ms and finite: %f", ErrInvalidSettings, s.DelayTime)
	case !(s.Feedback >= 0) || !core.IsFinite(s.Feedback):
		return fmt.Errorf("%w: feedback must be >= 0 and finite: %f", ErrInvalidSettings, s.Feedback)
	case !(s.Width >= 0 && s.Width <= maxWetWidth):
		return fmt.Errorf("%w: width must be in [0, %g]: %f", ErrInvalidSettings, maxWetWidth, s.Width)
	case !(s.LowpassFilter > 0) || !core.IsFinite(s.LowpassFilter):
		return fmt.Errorf("%w: lowpass cutoff must be > 0 Hz and finite: %f", ErrInvalidSettings, s.LowpassFilter)
	case !(s.HighpassFilter > 0) || !core.IsFinite(s.HighpassFilter):
		return fmt.Errorf("%w: highpass cutoff must be > 0 Hz and finite: %f", ErrInvalidSettings, s.HighpassFilter)
	case !(s.DryWetMix >= 0 && s.DryWetMix <= 1):
		return fmt.Errorf("%w: dry/wet mix must be in [0, 1]: %f", ErrInvalidSettings, s.DryWetMix)
	case !(s.OutputLevel >= 0) || !core.IsFinite(s.OutputLevel):
		return fmt.Errorf("%w: output level must be >= 0 and finite: %f", ErrInvalidSettings, s.OutputLevel)
	}

	return nil
}

// Stable reports whether the feedback loop decays on its own.
func (s Settings) Stable() bool {
	return s.Feedback < 1
}
