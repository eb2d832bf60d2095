package controller

import (
	"time"

	"github.com/arduino-libraries/opta-blueprint/bus"
)

// DefaultTransactionDeadline is the deadline applied to a transact call
// when an operation does not specify one.
const DefaultTransactionDeadline = 50 * time.Millisecond

// Controller is the host-side runtime: it owns the bus, the slot
// registry, the discovery state machine, and dispatches typed operations
// to slots. It replaces the original firmware's back-references between
// expansions and their controller with an arena: slots are addressed by
// index, and handles are (controller, index) value pairs that never
// outlive the controller (see the design notes on cyclic dependencies).
type Controller struct {
	bus      bus.Transactor
	detect   *bus.DetectLine
	registry *Registry

	discovery *discoveryState
	onFailure FailureCallback

	deadline time.Duration
}

// Option configures a Controller at construction time.
type Option func(*Controller)

// WithDeadline overrides DefaultTransactionDeadline for every transact
// call this controller issues.
func WithDeadline(d time.Duration) Option {
	return func(c *Controller) { c.deadline = d }
}

// WithFailureCallback registers cb to be invoked whenever a transaction
// times out.
func WithFailureCallback(cb FailureCallback) Option {
	return func(c *Controller) { c.onFailure = cb }
}

// New returns a Controller driving transactor, polling detect for
// discovery triggers.
func New(transactor bus.Transactor, detect *bus.DetectLine, opts ...Option) *Controller {
	c := &Controller{
		bus:      transactor,
		detect:   detect,
		registry: NewRegistry(),
		deadline: DefaultTransactionDeadline,
	}
	c.discovery = newDiscoveryState(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry exposes the controller's slot registry for read access (slot
// lookups, iteration).
func (c *Controller) Registry() *Registry { return c.registry }

// Tick runs one iteration of the controller's own cooperative main loop:
// it polls the detect line and, on a debounced high-to-low transition
// while idle, runs a full discovery pass to completion. Other transitions
// do not start one. Call this once per
// scheduling quantum, matching §5's single-threaded model.
func (c *Controller) Tick() {
	if c.detect == nil {
		return
	}
	c.discovery.poll()
}

// RunDiscovery synchronously runs a full discovery pass (phase 1 and
// phase 2 of §4.3) to completion, then reconciles custom types and
// replays shadows. It is exposed directly (in addition to the
// detect-line-triggered path in Tick) so tests and the optactl CLI can
// force a deterministic discovery pass.
func (c *Controller) RunDiscovery() error {
	return c.discovery.run()
}

func (c *Controller) reportFailure(slotIndex int, arg byte) {
	if c.onFailure != nil {
		c.onFailure(slotIndex, arg)
	}
}
