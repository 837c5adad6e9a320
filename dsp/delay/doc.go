// Package delay provides a fixed-capacity circular delay line with integer
// and interpolated fractional reads.
//
// A Line is sized once (New, NewForDuration) and never reallocates; changing
// the maximum delay or sample rate means building a new Line outside the
// audio callback. Reads clamp out-of-range delays instead of failing.
package delay
