package effects

import (
	"fmt"

	"github.com/cwbudde/algo-delay/dsp/core"
	"github.com/cwbudde/algo-delay/dsp/filter/onepole"
)

// FeedbackPath shapes and routes the signal that recirculates through the
// delay lines.
//
// Each channel runs through a lowpass followed by a highpass, is scaled by
// the feedback gain and optionally inverted. Route then decides which delay
// line receives what.
type FeedbackPath struct {
	lowL  *onepole.Filter
	lowR  *onepole.Filter
	highL *onepole.Filter
	highR *onepole.Filter

	gain     float64 // feedback, negated when phase reverse is on
	pingPong bool
}

// NewFeedbackPath creates a feedback path for sampleRate configured from s.
func NewFeedbackPath(sampleRate float64, s Settings) (*FeedbackPath, error) {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return nil, fmt.Errorf("feedback path sample rate must be > 0 and finite: %f", sampleRate)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	p := &FeedbackPath{}

	var err error
	if p.lowL, err = onepole.New(onepole.LowPass, sampleRate, s.LowpassFilter); err != nil {
		return nil, err
	}

	if p.lowR, err = onepole.New(onepole.LowPass, sampleRate, s.LowpassFilter); err != nil {
		return nil, err
	}

	if p.highL, err = onepole.New(onepole.HighPass, sampleRate, s.HighpassFilter); err != nil {
		return nil, err
	}

	if p.highR, err = onepole.New(onepole.HighPass, sampleRate, s.HighpassFilter); err != nil {
		return nil, err
	}

	p.setLoop(s)

	return p, nil
}

// Configure applies cutoff, gain and routing changes from s. Filter state
// is kept so a parameter change does not click.
func (p *FeedbackPath) Configure(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	for _, f := range [...]*onepole.Filter{p.lowL, p.lowR} {
		if err := f.SetCutoff(s.LowpassFilter); err != nil {
			return err
		}
	}

	for _, f := range [...]*onepole.Filter{p.highL, p.highR} {
		if err := f.SetCutoff(s.HighpassFilter); err != nil {
			return err
		}
	}

	p.setLoop(s)

	return nil
}

func (p *FeedbackPath) setLoop(s Settings) {
	p.gain = s.Feedback
	if s.PhaseReverse {
		p.gain = -p.gain
	}

	p.pingPong = s.PingPong
}

// SetSampleRate recomputes all filter coefficients and clears their state.
func (p *FeedbackPath) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || !core.IsFinite(sampleRate) {
		return fmt.Errorf("feedback path sample rate must be > 0 and finite: %f", sampleRate)
	}

	for _, f := range p.filters() {
		if err := f.SetSampleRate(sampleRate); err != nil {
			return err
		}
	}

	return nil
}

// Process filters the delayed pair and applies the loop gain.
func (p *FeedbackPath) Process(delayedL, delayedR float64) (fbL, fbR float64) {
	fbL = p.highL.ProcessSample(p.lowL.ProcessSample(delayedL)) * p.gain
	fbR = p.highR.ProcessSample(p.lowR.ProcessSample(delayedR)) * p.gain

	return fbL, fbR
}

// Route returns the values to write into the left and right delay lines.
// With ping-pong enabled both the input and the feedback cross over, so an
// impulse on the left input is heard first on the right and then bounces.
func (p *FeedbackPath) Route(inL, inR, fbL, fbR float64) (writeL, writeR float64) {
	if p.pingPong {
		return inR + fbR, inL + fbL
	}

	return inL + fbL, inR + fbR
}

// Reset clears the state of all four filters.
func (p *FeedbackPath) Reset() {
	for _, f := range p.filters() {
		f.Reset()
	}
}

// Gain returns the signed loop gain.
func (p *FeedbackPath) Gain() float64 { return p.gain }

// PingPong reports whether cross-channel routing is active.
func (p *FeedbackPath) PingPong() bool { return p.pingPong }

func (p *FeedbackPath) filters() [4]*onepole.Filter {
	return [4]*onepole.Filter{p.lowL, p.lowR, p.highL, p.highR}
}
