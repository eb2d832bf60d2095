package main

import (
	"context"
	"time"

	"github.com/arduino-libraries/opta-blueprint/bus"
	"github.com/arduino-libraries/opta-blueprint/expansion"
)

// simTick is how often the background goroutine advances every simulated
// peripheral and reconciles the shared bus's address bindings. It has no
// electrical meaning; it just needs to be well inside a Controller's
// transaction deadline.
const simTick = 2 * time.Millisecond

// newSimChain builds a small daisy chain of simulated peripherals over an
// in-memory bus.SharedBus: one digital expansion closest to the
// controller, one analog expansion behind it. It stands in for
// -bus=/dev/i2c-1 when no real hardware is at hand.
func newSimChain() (*bus.SharedBus, []*expansion.Peripheral, *expansion.Analog) {
	sb := bus.NewSharedBus()

	analog := expansion.NewAnalog(expansion.Identity{
		Type:    expansion.TypeAnalog,
		Product: "sim-analog",
		Version: expansion.FirmwareVersion{Major: 1},
	})
	families := []expansion.Family{
		expansion.NewDigital(expansion.Identity{
			Type:    expansion.TypeDigitalGeneric,
			Product: "sim-digital",
			Version: expansion.FirmwareVersion{Major: 1},
		}),
		analog,
	}

	peripherals := make([]*expansion.Peripheral, len(families))
	for i, f := range families {
		in := sb.DetectLine(uint8(i))
		out := sb.DetectLine(uint8(i + 1))
		peripherals[i] = expansion.NewPeripheral(f, expansion.NewNameplate(), in, out)
	}
	return sb, peripherals, analog
}

// simRig drives the simulated chain's cooperative main loop and keeps
// sb's address bindings in step with each peripheral's own arbitration
// state. A real bus needs nothing like this: a peripheral's detect-line
// gating is a property of the wiring. Here the wiring is a Go map, so
// something has to decide, on every tick, which not-yet-addressed
// peripheral the shared default address currently belongs to.
type simRig struct {
	sb          *bus.SharedBus
	peripherals []*expansion.Peripheral

	addrs []uint8 // last address this rig bound each peripheral at, or 0 if none; owned by run's goroutine

	stop   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

func newSimRig() *simRig {
	sb, peripherals, analog := newSimChain()
	ctx, cancel := context.WithCancel(context.Background())
	r := &simRig{
		sb:          sb,
		peripherals: peripherals,
		addrs:       make([]uint8, len(peripherals)),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		cancel:      cancel,
	}
	analog.StartRTDExciteCycle(ctx) // paces itself via golang.org/x/time's rate limiter, see RunThreeWireRTDCycle
	r.reconcile()                   // bind the frontmost peripheral before a caller can race the first tick
	go r.run()
	return r
}

func (r *simRig) run() {
	defer close(r.done)
	ticker := time.NewTicker(simTick)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			for _, p := range r.peripherals {
				p.Tick(simTick)
			}
			r.reconcile()
		}
	}
}

// reconcile rebinds every peripheral's Listen registration to match its
// current Addr(). Only the frontmost peripheral still at
// expansion.DefaultAddress is bound there at any moment: that is what a
// real chain's detect-line gating achieves by construction, and what a
// shared map has to be told explicitly.
func (r *simRig) reconcile() {
	frontUnaddressedSeen := false
	for i, p := range r.peripherals {
		addr := p.Addr()
		want := addr
		if addr == expansion.DefaultAddress {
			if frontUnaddressedSeen {
				want = 0 // not reachable: gated behind an unaddressed neighbour
			} else {
				frontUnaddressedSeen = true
			}
		}

		if r.addrs[i] == want {
			continue
		}
		if r.addrs[i] != 0 {
			r.sb.Unlisten(r.addrs[i])
		}
		if want != 0 {
			r.sb.Listen(want, p)
		}
		r.addrs[i] = want
	}
}

func (r *simRig) Close() error {
	r.cancel()
	close(r.stop)
	<-r.done
	return nil
}
