// Package bus provides the transaction-oriented I2C abstraction the
// controller and expansion packages build on: a single blocking
// request/response call on the controller side, and a pair of
// non-blocking receive/request callbacks on the peripheral side.
//
// Two implementations are provided: SharedBus, an in-memory fabric used
// by tests and by the simulator in cmd/optactl, and a periph.io-backed
// bus (linux-only, see periph_linux.go) for talking to a real I2C
// adapter.
package bus
