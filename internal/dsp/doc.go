// Package dsp implements the per-symbol digital filter bank: a roofing filter
// (2-pole high-pass followed by a super-smoother), a rank-correlation trend
// stage, an amplitude/frequency decomposition, a homodyne cycle-phase
// discriminator and a composite anticipatory reversal score.
//
// Every stage lacking history reports zero values with its readiness flag
// unset. Nothing in this package returns errors or produces NaN/Inf.
package dsp
