// Package echo measures the echo train of stereo delay processors.
//
// An Analyzer renders the impulse response of any StereoProcessor block by
// block, picks the echo peaks per channel and derives the loop gain and
// the -60 dB decay time. MagnitudeResponse computes the spectrum of a
// response with an FFT for comparison against analytic filter curves.
//
// # Usage
//
//	a := echo.NewAnalyzer(core.WithSampleRate(48000))
//	left, right, err := a.ImpulseResponse(delay, echo.Left, 48000)
//	echoes, err := a.Echoes(left, right, 60, 1)
//	ratio, err := echo.DecayRatio(echoes)
package echo
