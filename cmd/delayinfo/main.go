// Command delayinfo prints the echo pattern and feedback-filter response of
// a stereo delay configuration.
//
// Usage:
//
//	delayinfo [flags]
//
// Examples:
//
//	delayinfo
//	delayinfo -delay 250 -feedback 0.6 -pingpong=false
//	delayinfo -delay 375 -decay 3000 -lowpass 4000 -highpass 200
//	delayinfo -rate 96000 -interp hermite -channel right
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-delay/dsp/core"
	"github.com/cwbudde/algo-delay/dsp/effects"
	"github.com/cwbudde/algo-delay/dsp/filter/onepole"
	"github.com/cwbudde/algo-delay/dsp/interp"
	"github.com/cwbudde/algo-delay/measure/echo"
)

var reportFrequencies = []float64{50, 100, 300, 1000, 3000, 10000, 16000}

type options struct {
	sampleRate  float64
	settings    effects.Settings
	decayMs     float64
	maxDelayMs  float64
	mode        interp.Mode
	bassMonoHz  float64
	channel     echo.Channel
	lengthMs    float64
	thresholdDB float64
	blockSize   int
}

func main() {
	def := effects.DefaultSettings()

	rate := flag.Float64("rate", 48000, "sample rate in Hz")
	delayMs := flag.Float64("delay", def.DelayTime, "delay time in ms")
	feedback := flag.Float64("feedback", def.Feedback, "feedback gain")
	decay := flag.Float64("decay", 0, "derive feedback from a -60 dB decay time in ms (overrides -feedback)")
	pingPong := flag.Bool("pingpong", def.PingPong, "alternate echoes between channels")
	width := flag.Float64("width", def.Width, "wet stereo width in [0, 1]")
	phaseReverse := flag.Bool("phase-reverse", def.PhaseReverse, "invert the fed-back signal")
	lowpass := flag.Float64("lowpass", def.LowpassFilter, "feedback lowpass cutoff in Hz")
	highpass := flag.Float64("highpass", def.HighpassFilter, "feedback highpass cutoff in Hz")
	mix := flag.Float64("mix", 1, "dry/wet mix in [0, 1] used for the analysis")
	level := flag.Float64("level", def.OutputLevel, "output level (linear)")
	maxDelay := flag.Float64("max-delay", 2000, "delay-line capacity in ms")
	mode := flag.String("interp", "linear", "fractional delay interpolation: linear or hermite")
	bassMono := flag.Float64("bass-mono", 0, "keep wet content below this frequency in Hz centred (0 disables)")
	channel := flag.String("channel", "left", "input channel of the test impulse: left or right")
	length := flag.Float64("length", 0, "analysis length in ms (default: tail length, capped at 30 s)")
	threshold := flag.Float64("threshold", 60, "ignore echoes more than this many dB below the loudest")
	block := flag.Int("block", core.DefaultProcessorConfig().BlockSize, "render block size in frames")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: delayinfo [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Prints the echo pattern and feedback-filter response of a stereo delay.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  delayinfo -delay 250 -feedback 0.6\n")
		fmt.Fprintf(os.Stderr, "  delayinfo -delay 375 -decay 3000 -lowpass 4000\n")
		fmt.Fprintf(os.Stderr, "  delayinfo -interp hermite -channel right\n")
	}
	flag.Parse()

	interpMode, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ch, err := parseChannel(*channel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	opts := options{
		sampleRate: *rate,
		settings: effects.Settings{
			DelayTime:      *delayMs,
			Feedback:       *feedback,
			PingPong:       *pingPong,
			Width:          *width,
			PhaseReverse:   *phaseReverse,
			LowpassFilter:  *lowpass,
			HighpassFilter: *highpass,
			DryWetMix:      *mix,
			OutputLevel:    *level,
		},
		decayMs:     *decay,
		maxDelayMs:  *maxDelay,
		mode:        interpMode,
		bassMonoHz:  *bassMono,
		channel:     ch,
		lengthMs:    *length,
		thresholdDB: *threshold,
		blockSize:   *block,
	}

	if err := run(os.Stdout, opts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseMode(name string) (interp.Mode, error) {
	for _, m := range []interp.Mode{interp.Linear, interp.Hermite} {
		if strings.EqualFold(strings.TrimSpace(name), m.String()) {
			return m, nil
		}
	}

	return 0, fmt.Errorf("unknown interpolation %q (use linear or hermite)", name)
}

func parseChannel(name string) (echo.Channel, error) {
	for _, c := range []echo.Channel{echo.Left, echo.Right} {
		if strings.EqualFold(strings.TrimSpace(name), c.String()) {
			return c, nil
		}
	}

	return 0, fmt.Errorf("unknown channel %q (use left or right)", name)
}

const maxAnalysisMs = 30000

func run(out io.Writer, opts options) error {
	s := opts.settings
	if opts.decayMs > 0 {
		s.Feedback = effects.FeedbackForDecay(s.DelayTime, opts.decayMs)
	}

	d, err := effects.NewDelay(s, opts.sampleRate,
		effects.WithMaxDelayTime(opts.maxDelayMs),
		effects.WithInterpolation(opts.mode),
		effects.WithBassMono(opts.bassMonoHz),
	)
	if err != nil {
		return err
	}

	lengthMs := opts.lengthMs
	if lengthMs <= 0 {
		tail := d.TailSamples()
		lengthMs = maxAnalysisMs
		if tail < math.MaxInt {
			lengthMs = math.Min(core.SamplesToMilliseconds(float64(tail+1), opts.sampleRate), maxAnalysisMs)
		}
	}

	frames := max(int(math.Ceil(core.MillisecondsToSamples(lengthMs, opts.sampleRate))), 1)

	analyzer := echo.NewAnalyzer(core.WithSampleRate(opts.sampleRate), core.WithBlockSize(opts.blockSize))

	left, right, err := analyzer.ImpulseResponse(d, opts.channel, frames)
	if err != nil {
		return err
	}

	echoes, err := analyzer.Echoes(left, right, opts.thresholdDB, 1)
	if err != nil {
		return err
	}

	if err := printSummary(out, d, analyzer); err != nil {
		return err
	}

	if err := printEchoes(out, echoes); err != nil {
		return err
	}

	return printFilterResponse(out, d)
}

func printSummary(out io.Writer, d *effects.Delay, a *echo.Analyzer) error {
	s := d.Settings()

	tail := "infinite"
	if n := d.TailSamples(); n < math.MaxInt {
		tail = fmt.Sprintf("%d samples (%.1f ms)", n, core.SamplesToMilliseconds(float64(n), d.SampleRate()))
	}

	_, err := fmt.Fprintf(out,
		"Sample rate   %.0f Hz\nDelay         %.3f ms (%.2f samples, %s)\nFeedback      %.4f (stable: %t)\nPing-pong     %t\nWidth         %.2f\nTail (-60 dB) %s\nBlock         %d samples (%.2f ms)\n\n",
		d.SampleRate(), s.DelayTime, d.DelaySamples(), d.Interpolation(), s.Feedback, s.Stable(),
		s.PingPong, s.Width, tail, a.BlockSize(), a.BlockDurationMs())

	return err
}

func printEchoes(out io.Writer, echoes []echo.Echo) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(tw, "#\tTime [ms]\tChannel\tAmplitude\tLevel [dB]\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(tw, "-\t---------\t-------\t---------\t----------\n"); err != nil {
		return err
	}

	for i, e := range echoes {
		if _, err := fmt.Fprintf(tw, "%d\t%.2f\t%s\t%+.5f\t%.2f\n",
			i+1, e.TimeMs, e.Channel, e.Amplitude, e.LevelDB); err != nil {
			return err
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	summary := "\nDecay: fewer than two echoes detected\n\n"
	if ratio, err := echo.DecayRatio(echoes); err == nil {
		decay, _ := echo.DecayTime(echoes)
		summary = fmt.Sprintf("\nDecay ratio %.4f per echo, T60 %.1f ms\n\n", ratio, decay)
	}

	_, err := io.WriteString(out, summary)

	return err
}

func printFilterResponse(out io.Writer, d *effects.Delay) error {
	s := d.Settings()

	lp, err := onepole.New(onepole.LowPass, d.SampleRate(), s.LowpassFilter)
	if err != nil {
		return err
	}

	hp, err := onepole.New(onepole.HighPass, d.SampleRate(), s.HighpassFilter)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(tw, "Freq [Hz]\tLowpass [dB]\tHighpass [dB]\tLoop [dB]\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(tw, "---------\t------------\t-------------\t---------\n"); err != nil {
		return err
	}

	loopDB := core.LinearToDB(s.Feedback)

	for _, f := range reportFrequencies {
		if f >= d.SampleRate()/2 {
			continue
		}

		lpDB := lp.MagnitudeDB(f)
		hpDB := hp.MagnitudeDB(f)

		if _, err := fmt.Fprintf(tw, "%.0f\t%.2f\t%.2f\t%.2f\n", f, lpDB, hpDB, lpDB+hpDB+loopDB); err != nil {
			return err
		}
	}

	return tw.Flush()
}
