package network

import (
	"time"

	"secondprice-mpc-auction/rng"
)

// DelayModel decides how long a message from -> to should sit in flight
// before delivery. Grounded on the reference simulator's DelayModel
// hierarchy (Uniform/Exponential/Fixed/Adversarial).
type DelayModel interface {
	Delay(from, to int) time.Duration
}

// FixedDelay always returns the same duration.
type FixedDelay struct {
	D time.Duration
}

func (f FixedDelay) Delay(int, int) time.Duration { return f.D }

// UniformDelay samples uniformly from [Min, Max).
type UniformDelay struct {
	Min, Max time.Duration
	Source   *rng.Source
}

func NewUniformDelay(min, max time.Duration, src *rng.Source) UniformDelay {
	if src == nil {
		src = rng.New()
	}
	return UniformDelay{Min: min, Max: max, Source: src}
}

func (u UniformDelay) Delay(int, int) time.Duration {
	return u.Source.Duration(u.Min, u.Max)
}

// ExponentialDelay samples from an exponential distribution with the
// given mean.
type ExponentialDelay struct {
	Mean   time.Duration
	Source *rng.Source
}

func NewExponentialDelay(mean time.Duration, src *rng.Source) ExponentialDelay {
	if src == nil {
		src = rng.New()
	}
	return ExponentialDelay{Mean: mean, Source: src}
}

func (e ExponentialDelay) Delay(int, int) time.Duration {
	return e.Source.ExpDuration(e.Mean)
}

// AdversarialDelay lets a test or scenario pick per-(from,to) delays
// directly, e.g. to starve one link while keeping others fast.
type AdversarialDelay struct {
	Fn func(from, to int) time.Duration
}

func (a AdversarialDelay) Delay(from, to int) time.Duration {
	if a.Fn == nil {
		return 0
	}
	return a.Fn(from, to)
}
