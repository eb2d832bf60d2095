package controller

import (
	"context"

	"github.com/arduino-libraries/opta-blueprint/bus"
)

// fakeBus is a scripted bus.Transactor for controller-package tests: each
// address is wired to a handler that inspects the outgoing frame and
// returns the bytes a real peripheral would answer with. It lets the ops_
// and discovery tests exercise exact wire framing without standing up a
// SharedBus and a real expansion.Peripheral.
type fakeBus struct {
	handlers map[uint8]func(tx []byte, wantRxLen int) ([]byte, error)
	// router is consulted when no static handler is registered for an
	// address; it lets discovery tests model a daisy chain where which
	// peripheral answers a given (possibly shared) address changes as
	// addresses get assigned, without re-registering handlers by hand.
	router func(addr uint8) (func(tx []byte, wantRxLen int) ([]byte, error), bool)
	calls  []fakeCall
}

type fakeCall struct {
	addr uint8
	tx   []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[uint8]func(tx []byte, wantRxLen int) ([]byte, error))}
}

func (b *fakeBus) on(addr uint8, h func(tx []byte, wantRxLen int) ([]byte, error)) {
	b.handlers[addr] = h
}

func (b *fakeBus) Transact(ctx context.Context, addr uint8, tx []byte, wantRxLen int) ([]byte, error) {
	b.calls = append(b.calls, fakeCall{addr: addr, tx: append([]byte(nil), tx...)})
	if h, ok := b.handlers[addr]; ok {
		return h(tx, wantRxLen)
	}
	if b.router != nil {
		if h, ok := b.router(addr); ok {
			return h(tx, wantRxLen)
		}
	}
	return nil, bus.ErrBusTimeout
}

var _ bus.Transactor = (*fakeBus)(nil)
