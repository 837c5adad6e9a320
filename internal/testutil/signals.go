package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// SineBurst returns a signal of the given length that carries a sine of
// burstLen samples starting at start and is silent elsewhere.
func SineBurst(freqHz, sampleRate, amplitude float64, length, start, burstLen int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := 0; i < burstLen; i++ {
		pos := start + i
		if pos < 0 || pos >= length {
			continue
		}
		out[pos] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// Interleave packs planar left/right slices into L, R, L, R, ... order.
// The shorter slice determines the frame count.
func Interleave(left, right []float64) []float64 {
	n := min(len(left), len(right))
	out := make([]float64, 2*n)
	for i := 0; i < n; i++ {
		out[2*i] = left[i]
		out[2*i+1] = right[i]
	}
	return out
}

// Deinterleave splits an L, R, L, R, ... buffer into planar slices.
// A trailing odd sample is ignored.
func Deinterleave(buf []float64) (left, right []float64) {
	n := len(buf) / 2
	left = make([]float64, n)
	right = make([]float64, n)
	for i := 0; i < n; i++ {
		left[i] = buf[2*i]
		right[i] = buf[2*i+1]
	}
	return left, right
}

// PeakAbs returns the largest absolute value in data[start:end] and its
// index. Bounds are clamped to the slice.
func PeakAbs(data []float64, start, end int) (peak float64, index int) {
	start = max(start, 0)
	end = min(end, len(data))
	index = -1
	for i := start; i < end; i++ {
		if v := math.Abs(data[i]); v > peak || index < 0 {
			peak = v
			index = i
		}
	}
	return peak, index
}
