// Package interp provides interpolation primitives used by delay-based DSP blocks.
//
// Available methods, from cheapest to highest quality:
//
//   - [Linear2]:  2-point linear interpolation (delay line default)
//   - [Hermite4]: 4-point cubic Hermite
//
// The [Mode] enum selects the kernel used by [delay.Line] at construction time.
// Both kernels return the stored sample exactly at integer positions.
package interp
