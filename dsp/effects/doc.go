// Package effects provides a real-time stereo feedback delay.
//
// Delay wires two delay lines, a FeedbackPath (one-pole lowpass and
// highpass per channel, feedback gain, optional phase reverse and
// ping-pong routing), the spatial.StereoWidener and a Mixer into a single
// processor. Settings groups every user parameter; DefaultSettings gives a
// ping-pong echo of about 167 ms.
//
// Processing is allocation free and deterministic. A Delay is owned by one
// goroutine: settings changes and processing calls must be serialized by
// the caller.
//
// Subpackages:
//   - github.com/cwbudde/algo-delay/dsp/effects/spatial
package effects
