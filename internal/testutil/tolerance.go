package testutil

import (
	"math"
	"testing"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range got {
		diff := math.Abs(got[i] - want[i])
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t *testing.T, data []float64) {
	t.Helper()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// RequireSilent fails t if any element from start onwards has an absolute
// value above eps.
func RequireSilent(t *testing.T, data []float64, start int, eps float64) {
	t.Helper()
	for i := max(start, 0); i < len(data); i++ {
		if math.Abs(data[i]) > eps {
			t.Fatalf("index %d: got %v, want silence (|x| <= %v)", i, data[i], eps)
		}
	}
}

// RequireLevelNear fails t when got and want differ by more than
// LevelTolerance relative to the larger magnitude, or absolutely when both
// are below one.
func RequireLevelNear(t *testing.T, name string, got, want float64) {
	t.Helper()

	scale := math.Max(1, math.Max(math.Abs(got), math.Abs(want)))
	if math.IsNaN(got) || math.Abs(got-want) > LevelTolerance*scale {
		t.Fatalf("%s = %v, want %v (tolerance %g)", name, got, want, LevelTolerance)
	}
}
