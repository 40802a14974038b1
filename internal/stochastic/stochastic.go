// Package stochastic wraps gonum's distuv samplers with the clipped-normal,
// log-normal, and uniform draws the agent and scenario models are built on,
// plus the fixed age/susceptibility/severity tables derived from the
// original epidemiological model.
package stochastic

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// ClippedNormal draws from Normal(mean, std) and clamps the result to
// [lo, hi]. src may be nil to use the global generator.
func ClippedNormal(src rand.Source, mean, std, lo, hi float64) float64 {
	d := distuv.Normal{Mu: mean, Sigma: std, Src: src}
	return clip(d.Rand(), lo, hi)
}

// LogNormal draws from a log-normal distribution parameterized by the
// underlying normal's (mu, sigma), matching numpy.random.lognormal.
func LogNormal(src rand.Source, mu, sigma float64) float64 {
	return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: src}.Rand()
}

// Uniform draws a single uniform(0,1) sample, used for every probability
// roll in the agent state machine.
func Uniform(src rand.Source) float64 {
	return distuv.Uniform{Min: 0, Max: 1, Src: src}.Rand()
}

// Roll reports whether a fresh uniform(0,1) draw falls below p, i.e. a
// weighted coin flip with P(true) = p.
func Roll(src rand.Source, p float64) bool {
	return Uniform(src) < p
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ageBinUpperBounds mirrors the original model's bisect_left boundaries:
// (19, 29, 39, 49, 59, 69), producing 7 buckets indexed 0..6.
var ageBinUpperBounds = []int{19, 29, 39, 49, 59, 69}

// AgeBin returns the susceptibility/severity bucket index for age.
func AgeBin(age int) int {
	return sort.SearchInts(ageBinUpperBounds, age)
}

// susceptibilityParams is (mean, std) per age bucket.
var susceptibilityParams = [7][2]float64{
	{0.38, 0.06},
	{0.79, 0.09},
	{0.87, 0.08},
	{0.80, 0.09},
	{0.82, 0.09},
	{0.89, 0.09},
	{0.74, 0.09},
}

// severityParams is (mean, std) per age bucket ("clinical fraction").
var severityParams = [7][2]float64{
	{0.20, 0.05},
	{0.26, 0.05},
	{0.33, 0.05},
	{0.40, 0.06},
	{0.49, 0.06},
	{0.63, 0.07},
	{0.69, 0.06},
}

// Recovery log-normal parameters (mu, sigma) for each outcome track.
var (
	RecoverySevere         = [2]float64{2.624, 0.170}
	RecoveryMild           = [2]float64{2.049, 0.246}
	RecoveryPresymptomatic = [2]float64{1.63, 0.50}
)

// SampleAge draws an agent's age: Normal(41, 15) clipped to [18, 85].
func SampleAge(src rand.Source) int {
	return int(ClippedNormal(src, 41, 15, 18, 85))
}

// SampleSusceptibility draws the per-agent susceptibility for the given age,
// clipped to [0, 1].
func SampleSusceptibility(src rand.Source, age int) float64 {
	p := susceptibilityParams[AgeBin(age)]
	return ClippedNormal(src, p[0], p[1], 0, 1)
}

// SampleSeverity draws the per-agent clinical-severity fraction for the
// given age, clipped to [0, 1].
func SampleSeverity(src rand.Source, age int) float64 {
	p := severityParams[AgeBin(age)]
	return ClippedNormal(src, p[0], p[1], 0, 1)
}
