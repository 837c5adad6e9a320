package effects

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-delay/dsp/core"
)

// Mixer blends a dry and a wet sample and applies the output level:
//
//	out = level * ((1-mix)*dry + mix*wet)
type Mixer struct {
	mix   float64
	level float64

	dryGain float64
	wetGain float64
}

// NewMixer creates a mixer with the given wet amount in [0, 1] and linear
// output level >= 0.
func NewMixer(mix, level float64) (*Mixer, error) {
	m := &Mixer{}
	if err := m.SetMix(mix); err != nil {
		return nil, err
	}

	if err := m.SetLevel(level); err != nil {
		return nil, err
	}

	return m, nil
}

// Mix returns the blended and scaled sample.
func (m *Mixer) Mix(dry, wet float64) float64 {
	return m.dryGain*dry + m.wetGain*wet
}

// SetMix sets the wet amount in [0, 1].
func (m *Mixer) SetMix(mix float64) error {
	if !(mix >= 0 && mix <= 1) {
		return fmt.Errorf("mixer dry/wet mix must be in [0, 1]: %f", mix)
	}

	m.mix = mix
	m.updateGains()

	return nil
}

// SetLevel sets the linear output gain.
func (m *Mixer) SetLevel(level float64) error {
	if !(level >= 0) || !core.IsFinite(level) {
		return fmt.Errorf("mixer output level must be >= 0 and finite: %f", level)
	}

	m.level = level
	m.updateGains()

	return nil
}

// SetLevelDB sets the output gain in decibels. -Inf mutes.
func (m *Mixer) SetLevelDB(db float64) error {
	if math.IsNaN(db) || math.IsInf(db, 1) {
		return fmt.Errorf("mixer output level must be finite or -Inf dB: %f", db)
	}

	return m.SetLevel(core.DBToLinear(db))
}

// MixAmount returns the wet amount.
func (m *Mixer) MixAmount() float64 { return m.mix }

// Level returns the linear output gain.
func (m *Mixer) Level() float64 { return m.level }

// LevelDB returns the output gain in decibels.
func (m *Mixer) LevelDB() float64 { return core.LinearToDB(m.level) }

func (m *Mixer) updateGains() {
	m.dryGain = m.level * (1 - m.mix)
	m.wetGain = m.level * m.mix
}
