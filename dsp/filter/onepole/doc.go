// Package onepole provides a topology-preserving (zero-delay feedback)
// one-pole filter with lowpass, highpass and allpass outputs.
//
// The filter is the bilinear transform of wc/(s+wc) with cutoff
// prewarping, solved in closed form per sample:
//
//	g = tan(pi*fc/fs), G = g/(1+g)
//	v = (x - s)*G; lp = v + s; s = lp + v
//
// The highpass output is x - lp and the allpass output is lp - hp. Unlike a
// naive difference-equation one-pole the cutoff stays accurate up to the
// clamp at 0.49*fs. Each Filter owns its state; use one instance per
// channel.
package onepole
