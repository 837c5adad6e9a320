// Package spatial provides the stereo image stage used on the wet path of
// the delay.
//
// StereoWidener encodes left/right into mid and side, scales the side
// component and decodes back. An optional bass mono crossover keeps low
// frequencies centred regardless of width.
package spatial
