package echo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-delay/dsp/core"
)

// Errors returned by echo analysis functions.
var (
	ErrEmptySignal       = errors.New("echo: signal is empty")
	ErrInvalidLength     = errors.New("echo: length must be positive")
	ErrInvalidSampleRate = errors.New("echo: sample rate must be positive")
	ErrInvalidFFTSize    = errors.New("echo: fft size must be a power of two")
	ErrLengthMismatch    = errors.New("echo: channel lengths differ")
	ErrTooFewEchoes      = errors.New("echo: at least two echoes are required")
)

// Channel identifies one side of a stereo signal.
type Channel int

const (
	Left Channel = iota
	Right
)

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// StereoProcessor is a planar stereo processor that can be rendered from a
// clean state. *effects.Delay satisfies it.
type StereoProcessor interface {
	ProcessStereo(inL, inR, outL, outR []float64) error
	Reset()
}

// Echo is one detected peak of an echo train.
type Echo struct {
	Channel   Channel
	Index     int     // sample index of the peak
	TimeMs    float64 // Index converted to milliseconds
	Amplitude float64 // signed sample value at the peak
	LevelDB   float64 // |Amplitude| in dBFS
}

// Analyzer renders and inspects the impulse response of stereo processors.
// It keeps scratch buffers and is not safe for concurrent use.
type Analyzer struct {
	cfg core.ProcessorConfig

	// FFT scratch, reused across MagnitudeResponse calls.
	re []float64
	im []float64
}

// NewAnalyzer creates an analyzer. Sample rate and render block size come
// from the options (defaults 48 kHz, 512 frames).
func NewAnalyzer(opts ...core.ProcessorOption) *Analyzer {
	return &Analyzer{cfg: core.ApplyProcessorOptions(opts...)}
}

// SampleRate returns the analysis sample rate in Hz.
func (a *Analyzer) SampleRate() float64 { return a.cfg.SampleRate }

// BlockSize returns the render block size in frames.
func (a *Analyzer) BlockSize() int { return a.cfg.BlockSize }

// BlockDurationMs returns the length of one render block in milliseconds.
func (a *Analyzer) BlockDurationMs() float64 { return a.cfg.BlockDurationMs() }

// ImpulseResponse resets p, feeds a unit impulse into channel ch and
// renders length frames block by block.
func (a *Analyzer) ImpulseResponse(p StereoProcessor, ch Channel, length int) (left, right []float64, err error) {
	if length <= 0 {
		return nil, nil, ErrInvalidLength
	}

	inL := make([]float64, length)
	inR := make([]float64, length)

	switch ch {
	case Left:
		inL[0] = 1
	case Right:
		inR[0] = 1
	default:
		return nil, nil, fmt.Errorf("echo: unknown channel %s", ch)
	}

	left = make([]float64, length)
	right = make([]float64, length)

	p.Reset()

	for start := 0; start < length; start += a.cfg.BlockSize {
		end := min(start+a.cfg.BlockSize, length)

		err := p.ProcessStereo(inL[start:end], inR[start:end], left[start:end], right[start:end])
		if err != nil {
			return nil, nil, err
		}
	}

	return left, right, nil
}

// Envelope returns the stereo magnitude sqrt(L²+R²) of each frame.
func Envelope(left, right []float64) ([]float64, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(left), len(right))
	}

	env := make([]float64, len(left))
	vecmath.Magnitude(env, left, right)

	return env, nil
}

// magnitude returns |x| of each sample.
func magnitude(signal []float64) []float64 {
	env := make([]float64, len(signal))
	for i, v := range signal {
		env[i] = math.Abs(v)
	}

	return env
}

// Echoes finds the peaks of a stereo echo train. A sample counts as an echo
// when its magnitude is within thresholdDB of the loudest sample of both
// channels and no louder sample lies within minSpacingMs on either side in
// the same channel. The result is ordered by time, left before right on
// ties.
func (a *Analyzer) Echoes(left, right []float64, thresholdDB, minSpacingMs float64) ([]Echo, error) {
	if len(left) == 0 && len(right) == 0 {
		return nil, ErrEmptySignal
	}

	if a.cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}

	envL := magnitude(left)
	envR := magnitude(right)

	peak := 0.0
	for _, env := range [][]float64{envL, envR} {
		for _, v := range env {
			peak = math.Max(peak, v)
		}
	}

	if peak == 0 {
		return nil, nil
	}

	floor := peak * core.DBToLinear(-math.Abs(thresholdDB))
	guard := max(int(core.MillisecondsToSamples(minSpacingMs, a.cfg.SampleRate)), 1)

	var echoes []Echo

	echoes = a.appendPeaks(echoes, Left, left, envL, floor, guard)
	echoes = a.appendPeaks(echoes, Right, right, envR, floor, guard)

	sort.SliceStable(echoes, func(i, j int) bool {
		return echoes[i].Index < echoes[j].Index
	})

	return echoes, nil
}

func (a *Analyzer) appendPeaks(echoes []Echo, ch Channel, signal, env []float64, floor float64, guard int) []Echo {
	for i, v := range env {
		if v < floor || !isLocalPeak(env, i, guard) {
			continue
		}

		echoes = append(echoes, Echo{
			Channel:   ch,
			Index:     i,
			TimeMs:    core.SamplesToMilliseconds(float64(i), a.cfg.SampleRate),
			Amplitude: signal[i],
			LevelDB:   core.LinearToDB(v),
		})
	}

	return echoes
}

// isLocalPeak reports whether env[i] is strictly louder than everything in
// the guard zone before it and at least as loud as everything after it.
func isLocalPeak(env []float64, i, guard int) bool {
	v := env[i]

	for j := max(i-guard, 0); j < i; j++ {
		if env[j] >= v {
			return false
		}
	}

	for j := i + 1; j <= min(i+guard, len(env)-1); j++ {
		if env[j] > v {
			return false
		}
	}

	return true
}

// DecayRatio returns the mean amplitude ratio between successive echoes,
// the effective loop gain of a feedback delay.
func DecayRatio(echoes []Echo) (float64, error) {
	if len(echoes) < 2 {
		return 0, ErrTooFewEchoes
	}

	first := math.Abs(echoes[0].Amplitude)
	last := math.Abs(echoes[len(echoes)-1].Amplitude)

	if first == 0 {
		return 0, nil
	}

	return math.Pow(last/first, 1/float64(len(echoes)-1)), nil
}

// flatLevelEpsilonDB is the level change below which an echo train counts
// as not decaying.
const flatLevelEpsilonDB = 1e-9

// DecayTime extrapolates the time in milliseconds the echo train needs to
// fall by 60 dB from the level slope between the first and last echo. It
// returns +Inf when the echoes do not decay.
func DecayTime(echoes []Echo) (float64, error) {
	if len(echoes) < 2 {
		return 0, ErrTooFewEchoes
	}

	first := echoes[0]
	last := echoes[len(echoes)-1]

	span := last.TimeMs - first.TimeMs
	drop := first.LevelDB - last.LevelDB

	if span <= 0 || drop <= 0 || core.NearlyEqual(first.LevelDB, last.LevelDB, flatLevelEpsilonDB) {
		return math.Inf(1), nil
	}

	return 60 * span / drop, nil
}

// MagnitudeResponse returns the linear magnitude of the bins 0..fftSize/2
// of ir, zero-padded or truncated to fftSize. fftSize 0 picks the next
// power of two that holds ir.
func (a *Analyzer) MagnitudeResponse(ir []float64, fftSize int) ([]float64, error) {
	if len(ir) == 0 {
		return nil, ErrEmptySignal
	}

	if fftSize == 0 {
		fftSize = nextPowerOfTwo(len(ir))
	}

	if fftSize < 2 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFFTSize, fftSize)
	}

	in := make([]complex128, fftSize)
	for i := 0; i < min(len(ir), fftSize); i++ {
		in[i] = complex(ir[i], 0)
	}

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return nil, err
	}

	out := make([]complex128, fftSize)

	err = plan.Forward(out, in)
	if err != nil {
		return nil, err
	}

	bins := fftSize/2 + 1
	a.re = core.EnsureLen(a.re, bins)
	a.im = core.EnsureLen(a.im, bins)

	for k := range bins {
		a.re[k] = real(out[k])
		a.im[k] = imag(out[k])
	}

	mag := make([]float64, bins)
	vecmath.Magnitude(mag, a.re, a.im)

	return mag, nil
}

// BinFrequency returns the centre frequency in Hz of bin k for fftSize.
func (a *Analyzer) BinFrequency(k, fftSize int) float64 {
	if fftSize <= 0 {
		return 0
	}

	return float64(k) * a.cfg.SampleRate / float64(fftSize)
}

func nextPowerOfTwo(n int) int {
	p := 2
	for p < n {
		p <<= 1
	}

	return p
}
