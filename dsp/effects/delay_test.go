package effects

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-delay/dsp/filter/onepole"
	"github.com/cwbudde/algo-delay/dsp/interp"
	"github.com/cwbudde/algo-delay/internal/testutil"
)

// transparentSettings returns settings whose feedback filters are as open
// as the clamp allows and whose output is the wet signal only.
func transparentSettings(delayMs, feedback float64) Settings {
	return Settings{
		DelayTime:      delayMs,
		Feedback:       feedback,
		PingPong:       false,
		Width:          1,
		LowpassFilter:  1e6,
		HighpassFilter: 1,
		DryWetMix:      1,
		OutputLevel:    1,
	}
}

func newTestDelay(t *testing.T, s Settings, sampleRate float64, opts ...DelayOption) *Delay {
	t.Helper()

	d, err := NewDelay(s, sampleRate, opts...)
	if err != nil {
		t.Fatalf("NewDelay() error = %v", err)
	}

	return d
}

func renderPlanar(t *testing.T, d *Delay, inL, inR []float64) ([]float64, []float64) {
	t.Helper()

	outL := make([]float64, len(inL))
	outR := make([]float64, len(inR))

	if err := d.ProcessStereo(inL, inR, outL, outR); err != nil {
		t.Fatalf("ProcessStereo() error = %v", err)
	}

	return outL, outR
}

func TestDelayImpulseAppearsAtDelayTime(t *testing.T) {
	const sr = 48000.0

	for _, mode := range []interp.Mode{interp.Linear, interp.Hermite} {
		t.Run(mode.String(), func(t *testing.T) {
			d := newTestDelay(t, transparentSettings(10, 0), sr, WithInterpolation(mode))

			if got := d.DelaySamples(); got != 480 {
				t.Fatalf("DelaySamples() = %g, want 480", got)
			}

			outL, outR := renderPlanar(t, d, testutil.Impulse(2048, 0), make([]float64, 2048))

			for i, v := range outL {
				want := 0.0
				if i == 480 {
					want = 1
				}

				if math.Abs(v-want) > 1e-12 {
					t.Fatalf("left[%d] = %g, want %g", i, v, want)
				}
			}

			testutil.RequireSilent(t, outR, 0, 0)
		})
	}
}

func TestDelayFractionalDelayInterpolates(t *testing.T) {
	d := newTestDelay(t, transparentSettings(10.5, 0), 1000)

	outL, _ := renderPlanar(t, d, testutil.Impulse(32, 0), make([]float64, 32))

	if math.Abs(outL[10]-0.5) > 1e-12 || math.Abs(outL[11]-0.5) > 1e-12 {
		t.Fatalf("fractional delay split = (%g, %g), want (0.5, 0.5)", outL[10], outL[11])
	}
}

func TestDelayDryPassthrough(t *testing.T) {
	s := DefaultSettings()
	s.DryWetMix = 0
	s.Feedback = 0.9

	d := newTestDelay(t, s, 44100)
	inL := testutil.DeterministicNoise(1, 0.8, 4096)
	inR := testutil.DeterministicNoise(2, 0.8, 4096)

	outL, outR := renderPlanar(t, d, inL, inR)

	testutil.RequireSliceNearlyEqual(t, outL, inL, 0)
	testutil.RequireSliceNearlyEqual(t, outR, inR, 0)
}

func TestDelayFeedbackDecayPerPeriod(t *testing.T) {
	const (
		sr       = 48000.0
		period   = 2400 // 50 ms
		feedback = 0.5
		windows  = 5
	)

	d := newTestDelay(t, transparentSettings(50, feedback), sr)
	in := testutil.SineBurst(1000, sr, 1, period*(windows+1), 0, 480)
	outL, _ := renderPlanar(t, d, in, make([]float64, len(in)))

	prev, _ := testutil.PeakAbs(outL, period, 2*period)
	if math.Abs(prev-1) > 1e-9 {
		t.Fatalf("first echo peak = %g, want 1", prev)
	}

	for k := 2; k <= windows; k++ {
		peak, _ := testutil.PeakAbs(outL, k*period, (k+1)*period)
		ratio := peak / prev

		if math.Abs(ratio-feedback) > 0.05*feedback {
			t.Fatalf("echo %d: decay ratio = %g, want %g +/- 5%%", k, ratio, feedback)
		}

		prev = peak
	}
}

func TestDelayPingPongFirstEchoOnOppositeChannel(t *testing.T) {
	const (
		sr     = 48000.0
		period = 480
	)

	s := transparentSettings(10, 0.5)
	s.PingPong = true

	d := newTestDelay(t, s, sr)
	outL, outR := renderPlanar(t, d, testutil.Impulse(4*period, 0), make([]float64, 4*period))

	testutil.RequireSilent(t, outL[:2*period], 0, 0)

	peakR, idxR := testutil.PeakAbs(outR, 0, 2*period)
	if idxR != period || math.Abs(peakR-1) > 1e-12 {
		t.Fatalf("first echo: right peak %g at %d, want 1 at %d", peakR, idxR, period)
	}

	peakL, idxL := testutil.PeakAbs(outL, 0, 3*period)
	if idxL != 2*period {
		t.Fatalf("second echo: left peak at %d, want %d", idxL, 2*period)
	}

	if peakL < 0.4 || peakL > 0.5 {
		t.Fatalf("second echo: left peak = %g, want about 0.5", peakL)
	}

	peakR2, idxR2 := testutil.PeakAbs(outR, 2*period, 4*period)
	if idxR2 != 3*period || peakR2 >= peakL {
		t.Fatalf("third echo: right peak %g at %d, want < %g at %d", peakR2, idxR2, peakL, 3*period)
	}
}

func TestDelayPhaseReverseInvertsFeedback(t *testing.T) {
	s := transparentSettings(10, 0.5)
	s.PhaseReverse = true

	d := newTestDelay(t, s, 48000)
	outL, _ := renderPlanar(t, d, testutil.Impulse(1500, 0), make([]float64, 1500))

	if outL[480] != 1 {
		t.Fatalf("first echo = %g, want 1 (unaffected by phase reverse)", outL[480])
	}

	if outL[960] >= 0 {
		t.Fatalf("second echo = %g, want negative", outL[960])
	}

	if outL[1440] <= 0 {
		t.Fatalf("third echo = %g, want positive", outL[1440])
	}
}

func TestDelayWidthBounds(t *testing.T) {
	inL := testutil.DeterministicNoise(11, 1, 2000)
	inR := testutil.DeterministicNoise(12, 1, 2000)

	t.Run("mono", func(t *testing.T) {
		s := transparentSettings(5, 0.6)
		s.Width = 0

		d := newTestDelay(t, s, 48000)
		outL, outR := renderPlanar(t, d, inL, inR)

		testutil.RequireSliceNearlyEqual(t, outL, outR, 1e-12)
	})

	t.Run("preserved", func(t *testing.T) {
		d := newTestDelay(t, transparentSettings(5, 0), 48000)
		outL, outR := renderPlanar(t, d, inL, inR)

		const delay = 240
		testutil.RequireSliceNearlyEqual(t, outL[delay:], inL[:len(inL)-delay], 1e-12)
		testutil.RequireSliceNearlyEqual(t, outR[delay:], inR[:len(inR)-delay], 1e-12)
	})
}

func TestDelaySilence(t *testing.T) {
	t.Run("fresh instance", func(t *testing.T) {
		d := newTestDelay(t, DefaultSettings(), 48000)
		buf := make([]float64, 8192)

		if err := d.ProcessInterleavedInPlace(buf); err != nil {
			t.Fatalf("ProcessInterleavedInPlace() error = %v", err)
		}

		testutil.RequireSilent(t, buf, 0, 0)
	})

	t.Run("no feedback after drain", func(t *testing.T) {
		s := DefaultSettings()
		s.Feedback = 0

		d := newTestDelay(t, s, 48000)
		n := 3 * int(math.Ceil(d.DelaySamples()))
		outL, outR := renderPlanar(t, d, testutil.Impulse(n, 0), testutil.Impulse(n, 0))

		drained := int(math.Ceil(d.DelaySamples())) + 2
		testutil.RequireSilent(t, outL, drained, 0)
		testutil.RequireSilent(t, outR, drained, 0)
	})

	t.Run("feedback decays within tail", func(t *testing.T) {
		d := newTestDelay(t, transparentSettings(10, 0.5), 48000)
		tail := d.TailSamples()

		if tail != 11*480 {
			t.Fatalf("TailSamples() = %d, want %d", tail, 11*480)
		}

		outL, _ := renderPlanar(t, d, testutil.Impulse(tail+2000, 0), make([]float64, tail+2000))
		testutil.RequireSilent(t, outL, tail+1, 1e-3)
	})
}

func TestDelayStableUnderFeedbackAndFilterSweep(t *testing.T) {
	const sr = 48000.0

	cutoffs := []float64{1, 20, 200, 2000, 12000, 23000, 40000}
	in := testutil.DeterministicNoise(7, 0.5, 4*4800)

	for _, lp := range cutoffs {
		for _, hp := range cutoffs {
			s := DefaultSettings()
			s.DelayTime = 3.7
			s.Feedback = 0.97
			s.LowpassFilter = lp
			s.HighpassFilter = hp
			s.DryWetMix = 1

			d := newTestDelay(t, s, sr)
			outL, outR := renderPlanar(t, d, in, in)

			testutil.RequireFinite(t, outL)
			testutil.RequireFinite(t, outR)

			peak, _ := testutil.PeakAbs(outL, 0, len(outL))
			if peak > 50 {
				t.Fatalf("lp=%g hp=%g: output peak %g exceeds bound", lp, hp, peak)
			}
		}
	}
}

func TestDelayBlockMatchesSample(t *testing.T) {
	s := DefaultSettings()
	s.DelayTime = 3.3
	inL := testutil.DeterministicNoise(31, 1, 1500)
	inR := testutil.DeterministicSine(440, 48000, 0.5, 1500)

	ref := newTestDelay(t, s, 48000, WithBassMono(120))
	wantL := make([]float64, len(inL))
	wantR := make([]float64, len(inR))

	for i := range inL {
		wantL[i], wantR[i] = ref.ProcessSample(inL[i], inR[i])
	}

	planar := newTestDelay(t, s, 48000, WithBassMono(120))
	gotL, gotR := renderPlanar(t, planar, inL, inR)
	testutil.RequireSliceNearlyEqual(t, gotL, wantL, 0)
	testutil.RequireSliceNearlyEqual(t, gotR, wantR, 0)

	// Interleaved, in irregular chunks and in place.
	chunked := newTestDelay(t, s, 48000, WithBassMono(120))
	buf := testutil.Interleave(inL, inR)

	for start, size := 0, 2; start < len(buf); start, size = start+size, size*2+2 {
		end := min(start+size, len(buf))
		if err := chunked.Process(buf[start:end], buf[start:end]); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}

	gotL, gotR = testutil.Deinterleave(buf)
	testutil.RequireSliceNearlyEqual(t, gotL, wantL, 0)
	testutil.RequireSliceNearlyEqual(t, gotR, wantR, 0)
}

func TestDelayResetIsDeterministic(t *testing.T) {
	d := newTestDelay(t, DefaultSettings(), 48000)
	inL := testutil.DeterministicNoise(41, 1, 20000)
	inR := testutil.DeterministicNoise(42, 1, 20000)

	firstL, firstR := renderPlanar(t, d, inL, inR)
	d.Reset()
	secondL, secondR := renderPlanar(t, d, inL, inR)

	testutil.RequireSliceNearlyEqual(t, secondL, firstL, 0)
	testutil.RequireSliceNearlyEqual(t, secondR, firstR, 0)
}

func TestDelayProcessDoesNotAllocate(t *testing.T) {
	d := newTestDelay(t, DefaultSettings(), 48000, WithBassMono(100))
	buf := testutil.Interleave(
		testutil.DeterministicNoise(1, 1, 512),
		testutil.DeterministicNoise(2, 1, 512),
	)
	outL := make([]float64, 512)
	outR := make([]float64, 512)

	allocs := testing.AllocsPerRun(100, func() {
		_ = d.ProcessInterleavedInPlace(buf)
		_ = d.ProcessStereo(outL, outR, outL, outR)
	})

	if allocs != 0 {
		t.Fatalf("processing allocated %.1f times per run", allocs)
	}
}

func TestDelayProcessBufferErrors(t *testing.T) {
	d := newTestDelay(t, DefaultSettings(), 48000)

	if err := d.Process(make([]float64, 4), make([]float64, 6)); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("Process() mismatch error = %v, want ErrLengthMismatch", err)
	}

	if err := d.Process(make([]float64, 5), make([]float64, 5)); !errors.Is(err, ErrOddLength) {
		t.Fatalf("Process() odd error = %v, want ErrOddLength", err)
	}

	if err := d.ProcessInterleavedInPlace(make([]float64, 3)); !errors.Is(err, ErrOddLength) {
		t.Fatalf("ProcessInterleavedInPlace() error = %v, want ErrOddLength", err)
	}

	err := d.ProcessStereo(make([]float64, 4), make([]float64, 4), make([]float64, 4), make([]float64, 3))
	if !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("ProcessStereo() error = %v, want ErrLengthMismatch", err)
	}

	if err := d.Process(nil, nil); err != nil {
		t.Fatalf("Process(nil, nil) error = %v", err)
	}
}

func TestNewDelayValidation(t *testing.T) {
	valid := DefaultSettings()

	invalid := valid
	invalid.DryWetMix = 2

	tests := []struct {
		name     string
		settings Settings
		sr       float64
		opts     []DelayOption
		wantIs   error
	}{
		{name: "zero sample rate", settings: valid, sr: 0},
		{name: "infinite sample rate", settings: valid, sr: math.Inf(1)},
		{name: "invalid settings", settings: invalid, sr: 48000, wantIs: ErrInvalidSettings},
		{name: "zero max delay", settings: valid, sr: 48000, opts: []DelayOption{WithMaxDelayTime(0)}},
		{name: "bad interpolation", settings: valid, sr: 48000, opts: []DelayOption{WithInterpolation(interp.Mode(9))}},
		{name: "bass mono out of range", settings: valid, sr: 48000, opts: []DelayOption{WithBassMono(5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDelay(tt.settings, tt.sr, tt.opts...)
			if err == nil {
				t.Fatal("expected error")
			}

			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("error = %v, want errors.Is %v", err, tt.wantIs)
			}
		})
	}
}

func TestDelayClampsDelayTime(t *testing.T) {
	s := transparentSettings(500, 0)

	d := newTestDelay(t, s, 48000, WithMaxDelayTime(100))
	if got, want := d.DelaySamples(), d.lineL.MaxDelay(); got != want {
		t.Fatalf("DelaySamples() = %g, want capacity %g", got, want)
	}

	if got := d.MaxDelayTime(); got != 100 {
		t.Fatalf("MaxDelayTime() = %g, want 100", got)
	}

	s.DelayTime = 0.001
	if err := d.SetSettings(s); err != nil {
		t.Fatalf("SetSettings() error = %v", err)
	}

	if got := d.DelaySamples(); got != 1 {
		t.Fatalf("DelaySamples() = %g, want 1", got)
	}
}

func TestDelayAcceptsRunawayFeedback(t *testing.T) {
	s := transparentSettings(1, 1.2)

	d := newTestDelay(t, s, 48000)
	if d.Settings().Stable() {
		t.Fatal("feedback 1.2 should not report stable")
	}

	if got := d.TailSamples(); got != math.MaxInt {
		t.Fatalf("TailSamples() = %d, want math.MaxInt", got)
	}

	outL, _ := renderPlanar(t, d, testutil.Impulse(960, 0), make([]float64, 960))
	testutil.RequireFinite(t, outL)

	early, _ := testutil.PeakAbs(outL, 0, 200)
	late, _ := testutil.PeakAbs(outL, 760, 960)

	if late <= early {
		t.Fatalf("runaway feedback should grow: early %g, late %g", early, late)
	}
}

func TestDelaySetSettingsKeepsState(t *testing.T) {
	d := newTestDelay(t, transparentSettings(10, 0.5), 48000)

	_, _ = renderPlanar(t, d, testutil.Impulse(100, 0), make([]float64, 100))

	s := d.Settings()
	s.OutputLevel = 2
	s.Width = 0.5

	if err := d.SetSettings(s); err != nil {
		t.Fatalf("SetSettings() error = %v", err)
	}

	outL, outR := renderPlanar(t, d, make([]float64, 400), make([]float64, 400))

	// The impulse written before the update is still in the line.
	if math.Abs(outL[380]-1.5) > 1e-12 || math.Abs(outR[380]-0.5) > 1e-12 {
		t.Fatalf("echo after update = (%g, %g), want (1.5, 0.5)", outL[380], outR[380])
	}

	bad := s
	bad.Feedback = math.NaN()

	if err := d.SetSettings(bad); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("SetSettings() error = %v, want ErrInvalidSettings", err)
	}

	if d.Settings() != s {
		t.Fatal("rejected settings must leave the active settings untouched")
	}
}

func TestDelaySetSampleRate(t *testing.T) {
	d := newTestDelay(t, transparentSettings(10, 0.7), 48000)
	_, _ = renderPlanar(t, d, testutil.Impulse(100, 0), testutil.Impulse(100, 0))

	if err := d.SetSampleRate(96000); err != nil {
		t.Fatalf("SetSampleRate() error = %v", err)
	}

	if got := d.DelaySamples(); got != 960 {
		t.Fatalf("DelaySamples() = %g, want 960", got)
	}

	if got := d.SampleRate(); got != 96000 {
		t.Fatalf("SampleRate() = %g, want 96000", got)
	}

	outL, outR := renderPlanar(t, d, make([]float64, 4000), make([]float64, 4000))
	testutil.RequireSilent(t, outL, 0, 0)
	testutil.RequireSilent(t, outR, 0, 0)

	if err := d.SetSampleRate(math.NaN()); err == nil {
		t.Fatal("SetSampleRate(NaN) expected error")
	}
}

func TestDelaySampleRateRoundTripRestoresCutoffs(t *testing.T) {
	d := newTestDelay(t, DefaultSettings(), 48000)

	if err := d.SetSampleRate(22050); err != nil {
		t.Fatalf("SetSampleRate(22050) error = %v", err)
	}

	if got, want := d.feedback.lowL.Cutoff(), onepole.MaxNormalizedCutoff*22050; got != want {
		t.Fatalf("lowpass cutoff at 22.05 kHz = %g, want %g", got, want)
	}

	if err := d.SetSampleRate(48000); err != nil {
		t.Fatalf("SetSampleRate(48000) error = %v", err)
	}

	s := d.Settings()
	for i, f := range d.feedback.filters() {
		want := s.LowpassFilter
		if f.Mode() == onepole.HighPass {
			want = s.HighpassFilter
		}

		if f.Cutoff() != want {
			t.Fatalf("filter %d cutoff after round trip = %g, want %g", i, f.Cutoff(), want)
		}
	}

	fresh := newTestDelay(t, DefaultSettings(), 48000)
	in := testutil.DeterministicNoise(7, 0.5, 4096)

	gotL, gotR := renderPlanar(t, d, in, in)
	wantL, wantR := renderPlanar(t, fresh, in, in)
	testutil.RequireSliceNearlyEqual(t, gotL, wantL, 0)
	testutil.RequireSliceNearlyEqual(t, gotR, wantR, 0)
}

func TestDelayLatency(t *testing.T) {
	d := newTestDelay(t, DefaultSettings(), 48000)

	if got := d.LatencySamples(); got != 0 {
		t.Fatalf("LatencySamples() = %d, want 0", got)
	}

	if got := d.Interpolation(); got != interp.Linear {
		t.Fatalf("Interpolation() = %v, want linear", got)
	}
}

func TestFeedbackForDecay(t *testing.T) {
	tests := []struct {
		delayMs, decayMs float64
		want             float64
	}{
		{delayMs: 100, decayMs: 300, want: 0.1},
		{delayMs: 250, decayMs: 250, want: 0.001},
		{delayMs: 100, decayMs: 1000, want: math.Pow(10, -0.3)},
		{delayMs: 0, decayMs: 1000, want: 0},
		{delayMs: 100, decayMs: -1, want: 0},
		{delayMs: math.NaN(), decayMs: 1000, want: 0},
		{delayMs: 100, decayMs: math.Inf(1), want: 1},
	}

	for _, tt := range tests {
		got := FeedbackForDecay(tt.delayMs, tt.decayMs)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("FeedbackForDecay(%g, %g) = %g, want %g", tt.delayMs, tt.decayMs, got, tt.want)
		}
	}
}
