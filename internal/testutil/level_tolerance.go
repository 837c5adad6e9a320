//go:build !fastmath

package testutil

// LevelTolerance is the relative error allowed for values that pass
// through the dB conversions in dsp/core.
const LevelTolerance = 1e-9
