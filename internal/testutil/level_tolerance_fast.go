//go:build fastmath

package testutil

// LevelTolerance is the relative error allowed for values that pass
// through the dB conversions in dsp/core. The fastmath build approximates
// exp and log.
const LevelTolerance = 1e-4
