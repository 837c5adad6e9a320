//go:build fastmath

package core

import "github.com/meko-christian/algo-approx"

// ln10 is the natural logarithm of 10, used for base conversions.
const ln10 = 2.30258509299404568401799145468436421

// mathPow10 computes 10^x as e^(x * ln(10)) with the fast exponential.
func mathPow10(x float64) float64 {
	return approx.FastExp(x * ln10)
}

// mathLog10 computes log10(x) as ln(x) / ln(10) with the fast logarithm.
func mathLog10(x float64) float64 {
	return approx.FastLog(x) / ln10
}
