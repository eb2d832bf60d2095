package bus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NackSentinel is the two-byte NACK sentinel a peripheral
// writes to a request-event when it has nothing prepared to send. See C2
// in the design notes: the peripheral side of this bus is event-driven and
// must never block, so "I have nothing to say" has to be representable as
// ordinary bytes rather than a bus-level NACK.
var NackSentinel = [2]byte{0xFA, 0xFE}

// ErrBusTimeout is returned by Transact when a response does not complete
// before the supplied deadline.
var ErrBusTimeout = errors.New("bus: timeout waiting for response")

// ErrNack is returned by Transact when the peripheral answered with the
// NACK sentinel instead of a prepared frame.
var ErrNack = errors.New("bus: peripheral replied with nack sentinel")

// Transactor is the controller-side view of the bus: one blocking
// request/response round trip per call. Implementations must treat each
// Transact call as an atomic bus transaction: the write and any subsequent read happen
// without another Transact call interleaving on the same address.
type Transactor interface {
	// Transact writes tx to addr, then, if wantRxLen > 0, reads exactly
	// that many bytes back from addr. It returns ErrBusTimeout if the
	// exchange does not complete before ctx's deadline.
	Transact(ctx context.Context, addr uint8, tx []byte, wantRxLen int) ([]byte, error)
}

// TransactWithDeadline is a convenience wrapper for callers that work with
// a duration rather than a context, matching the transact(..., deadline)
// signature used throughout the controller package.
func TransactWithDeadline(t Transactor, addr uint8, tx []byte, wantRxLen int, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.Transact(ctx, addr, tx, wantRxLen)
}

// Receiver is the peripheral-side view of the bus: two non-blocking
// callbacks driven by the bus controller's two phases of an I2C
// transaction (the write phase and, if the master then reads, the read
// phase). Implementations of Peripheral (see package expansion) register
// these with a Listener.
type Receiver interface {
	// OnReceive is invoked with the bytes an external controller just wrote
	// to this peripheral's address. It must return promptly; any expensive
	// work is queued for the peripheral's main loop.
	OnReceive(data []byte)

	// OnRequest is invoked when an external controller wants to read from
	// this peripheral's address. It must return the bytes to send
	// immediately; if nothing has been prepared it should return
	// NackSentinel[:].
	OnRequest() []byte
}

// Listener binds a Receiver to a bus address so a simulated or real slave
// device can answer transactions addressed to it.
type Listener interface {
	// Listen registers r to answer transactions sent to addr. Only one
	// Receiver may be registered per address at a time; Listen replaces
	// any previous registration.
	Listen(addr uint8, r Receiver)

	// Unlisten removes any Receiver registered for addr.
	Unlisten(addr uint8)
}

// Bus is the full controller-plus-fabric surface a test or simulator
// needs: both issuing transactions and registering peripherals to answer
// them.
type Bus interface {
	Transactor
	Listener
}

func fmtNack(addr uint8) error {
	return fmt.Errorf("bus: addr %#02x: %w", addr, ErrNack)
}
