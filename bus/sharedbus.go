package bus

import (
	"context"
	"sync"
)

// SharedBus is an in-memory stand-in for a physical I2C bus shared by one
// controller and any number of addressed peripherals. It is used by the
// controller and expansion package test suites, and by the optactl
// simulator subcommand, so the arbitration and dispatcher logic can be
// exercised without real hardware.
//
// Every Transact call is serialized: SharedBus models the bus as a single
// shared resource, matching the real hardware's inability to run two
// transactions concurrently.
type SharedBus struct {
	mu        sync.Mutex
	receivers map[uint8]Receiver

	// detect is the shared detect-line fabric: addr 0 is reserved for the
	// controller's own view of "is anything still unaddressed downstream".
	detect map[uint8]*DetectLine
}

// NewSharedBus creates an empty bus with no peripherals listening.
func NewSharedBus() *SharedBus {
	return &SharedBus{
		receivers: make(map[uint8]Receiver),
		detect:    make(map[uint8]*DetectLine),
	}
}

// Listen implements Listener.
func (b *SharedBus) Listen(addr uint8, r Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.receivers[addr] = r
}

// Unlisten implements Listener.
func (b *SharedBus) Unlisten(addr uint8) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.receivers, addr)
}

// Transact implements Transactor by invoking the registered Receiver's
// OnReceive synchronously with tx, then, if wantRxLen > 0, its OnRequest,
// truncating or zero-padding the answer to exactly wantRxLen bytes the
// way a real I2C master would (it always clocks out exactly the number of
// bytes it asked for).
//
// If no Receiver is registered at addr, Transact blocks until ctx is done
// and returns ErrBusTimeout, modeling an address nothing answers to.
func (b *SharedBus) Transact(ctx context.Context, addr uint8, tx []byte, wantRxLen int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.receivers[addr]

	if !ok {
		<-ctx.Done()
		return nil, ErrBusTimeout
	}

	if len(tx) > 0 {
		r.OnReceive(tx)
	}
	if wantRxLen <= 0 {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, ErrBusTimeout
	default:
	}

	raw := r.OnRequest()
	if len(raw) == 2 && raw[0] == NackSentinel[0] && raw[1] == NackSentinel[1] {
		return nil, fmtNack(addr)
	}

	out := make([]byte, wantRxLen)
	n := copy(out, raw)
	_ = n // short answers are zero-padded, matching an I2C master clocking past the slave's last byte
	return out, nil
}

// DetectLine returns the shared DetectLine fabric for addr, creating one
// initialized High if it does not exist yet. Index 0 is reserved for the
// controller-facing line (the first peripheral's detect-in). High is the
// line's idle level: a peripheral only pulls it low for the duration of
// its own reset pulse (see Peripheral's reset sequence), so a chain that
// has never reset has nothing holding any link low.
func (b *SharedBus) DetectLine(addr uint8) *DetectLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	dl, ok := b.detect[addr]
	if !ok {
		dl = NewDetectLine(High, 0)
		b.detect[addr] = dl
	}
	return dl
}

var _ Bus = (*SharedBus)(nil)
