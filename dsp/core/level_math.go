//go:build !fastmath

package core

import "math"

func mathPow10(x float64) float64 {
	return math.Pow(10, x)
}

func mathLog10(x float64) float64 {
	return math.Log10(x)
}
