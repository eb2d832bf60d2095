package expansion

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// rtdStepPeriod paces the three steps of the 3-wire excite/measure cycle
// so the whole cycle takes roughly the ~800ms the hardware's excitation
// settling time demands, per §4.10 and §5's concurrency model. A var, not
// a const, so tests can shrink it rather than wait on real time (the same
// seam display.go's timeNow provides for its button poller).
var rtdStepPeriod = 267 * time.Millisecond

// ThreeWireSample is the raw set of measurements the 3-wire cycle
// collects before the resistance computation in §4.10 step 4.
type ThreeWireSample struct {
	IExcite     float64 // amps, step 1
	VRTDPlus2RL float64 // volts, step 2
	VRTDPlusRL  float64 // volts, step 3
}

// Resistance applies §4.10 step 4's closed form to the sample.
func (s ThreeWireSample) Resistance() float64 {
	return ThreeWireRTDResistance(s.IExcite, s.VRTDPlus2RL, s.VRTDPlusRL)
}

// Sampler measures one of the three steps of a 3-wire RTD cycle against
// real (or simulated) hardware for a given channel.
type Sampler interface {
	ExciteCurrent(ch int) (float64, error)
	VoltagePlus2RL(ch int) (float64, error)
	VoltagePlusRL(ch int) (float64, error)
}

// RunThreeWireRTDCycle drives the three-step excite/measure/measure cycle
// for ch against hw, pacing each step with a rate limiter and yielding to
// the caller's update tick between steps (via yield, typically the
// controller's detect-line poll) so the ~800ms cycle never starves bus
// housekeeping. It returns ctx.Err() if the context is canceled mid-cycle.
func RunThreeWireRTDCycle(ctx context.Context, hw Sampler, ch int, yield func()) (ThreeWireSample, error) {
	if !rtd3WireCapable[ch] {
		return ThreeWireSample{}, fmt.Errorf("expansion: channel %d does not support 3-wire RTD", ch)
	}

	limiter := rate.NewLimiter(rate.Every(rtdStepPeriod), 1)
	limiter.Allow() // drain the initial token so every step, the first included, waits one period
	var s ThreeWireSample

	steps := []func() error{
		func() (err error) { s.IExcite, err = hw.ExciteCurrent(ch); return },
		func() (err error) { s.VRTDPlus2RL, err = hw.VoltagePlus2RL(ch); return },
		func() (err error) { s.VRTDPlusRL, err = hw.VoltagePlusRL(ch); return },
	}

	for _, step := range steps {
		if err := limiter.Wait(ctx); err != nil {
			return ThreeWireSample{}, err
		}
		if err := step(); err != nil {
			return ThreeWireSample{}, err
		}
		if yield != nil {
			yield()
		}
	}
	return s, nil
}
