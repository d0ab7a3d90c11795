package gossipsim

// latency.go holds the samplers that produce message delays, in ticks.
// Samplers are plain functions closed over their parameters and a random
// source; they compose by summing (Convolve) and post-processing (Transform).

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler returns one delay draw
type Sampler func() int

// the exponential approximation rolls a 32-faced die until it shows 0
const expTrials = 32
const expTrialPr = 1.0 / expTrials

// NormalSampler draws from a normal distribution with the given mean and
// standard deviation, truncated toward zero and floored at 0.
func NormalSampler(mean, stddev float64, rng RandSource) Sampler {
	if stddev <= 0.0 {
		return ConstSampler(int(math.Max(mean, 0.0)))
	}
	dist := distuv.Normal{Mu: mean, Sigma: stddev}
	return func() int {
		// inverse transform of a U01 draw, so the one source drives everything
		v := dist.Quantile(rng.RandU01())
		if !(v > 0.0) {
			return 0
		}
		if v > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(v)
	}
}

// ExponentialSampler approximates an exponential distribution by counting
// Bernoulli trials with success probability 1/32 up to and including the
// first success, scaled by mean/32.  A negative mean yields 0.
func ExponentialSampler(mean float64, rng RandSource) Sampler {
	return func() int {
		total := 0
		for {
			total += 1
			if rng.RandInt(0, expTrials-1) == 0 {
				break
			}
		}
		return max(int(float64(total)*expTrialPr*mean), 0)
	}
}

// ConstSampler always returns v
func ConstSampler(v int) Sampler {
	return func() int {
		return v
	}
}

// Convolve returns a sampler whose draw is the sum of independent draws of
// every input sampler
func Convolve(samplers ...Sampler) Sampler {
	return func() int {
		total := 0
		for _, s := range samplers {
			total += s()
		}
		return total
	}
}

// Transform returns a sampler that applies fn to every draw of s
func Transform(s Sampler, fn func(int) int) Sampler {
	return func() int {
		return fn(s())
	}
}

// NonNegative clamps the draws of s at 0
func NonNegative(s Sampler) Sampler {
	return Transform(s, func(v int) int {
		return max(v, 0)
	})
}

// DefaultSampler is the latency model a simulator gets when only the mean is
// configured: a normal distribution with standard deviation 2/5 of the mean,
// clamped at 0.
func DefaultSampler(mean int, rng RandSource) Sampler {
	return NonNegative(NormalSampler(float64(mean), float64((mean*2)/5), rng))
}

// LatencyDesc describes a latency model in a configuration file
type LatencyDesc struct {
	// one of normal, exponential, constant, convolve
	Model string `json:"model" yaml:"model" mapstructure:"model" validate:"omitempty,oneof=normal exponential constant convolve"`

	Mean float64 `json:"mean" yaml:"mean" mapstructure:"mean" validate:"gte=0"`

	// normal only. Zero selects 2/5 of the mean
	Stddev float64 `json:"stddev" yaml:"stddev" mapstructure:"stddev" validate:"gte=0"`

	// convolve only.  The draws of the components are summed
	Components []LatencyDesc `json:"components,omitempty" yaml:"components,omitempty" mapstructure:"components" validate:"dive"`
}

// BuildSampler returns the sampler a LatencyDesc describes.  Whatever the
// model, the result never returns a negative delay.
func BuildSampler(desc LatencyDesc, rng RandSource) (Sampler, error) {
	s, err := buildSampler(desc, rng)
	if err != nil {
		return nil, err
	}
	return NonNegative(s), nil
}

func buildSampler(desc LatencyDesc, rng RandSource) (Sampler, error) {
	switch desc.Model {
	case "", "normal", "norm":
		stddev := desc.Stddev
		if stddev == 0.0 {
			stddev = float64((int(desc.Mean) * 2) / 5)
		}
		return NormalSampler(desc.Mean, stddev, rng), nil

	case "exponential", "exp", "expon":
		return ExponentialSampler(desc.Mean, rng), nil

	case "constant", "const":
		return ConstSampler(int(desc.Mean)), nil

	case "convolve":
		if len(desc.Components) == 0 {
			return nil, fmt.Errorf("convolve latency model has no components")
		}
		samplers := make([]Sampler, 0, len(desc.Components))
		for _, cmp := range desc.Components {
			s, err := buildSampler(cmp, rng)
			if err != nil {
				return nil, err
			}
			samplers = append(samplers, NonNegative(s))
		}
		return Convolve(samplers...), nil
	}
	return nil, fmt.Errorf("unknown latency model %q", desc.Model)
}
