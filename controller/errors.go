package controller

import "errors"

// Sentinel errors every typed operation in ops_*.go can return, per
// §4.5's error taxonomy.
var (
	// ErrUnsupportedByThisSlotType is returned when an operation is
	// invoked against a slot whose family does not implement it (e.g. an
	// analog-only call against a digital slot).
	ErrUnsupportedByThisSlotType = errors.New("controller: operation unsupported by this slot's type")

	// ErrProtocolMismatch is returned when a response frame parses but
	// disagrees with what the operation expected (wrong arg, wrong
	// length).
	ErrProtocolMismatch = errors.New("controller: response protocol mismatch")

	// ErrBusTimeout is returned when a transaction's deadline elapses
	// before a complete response arrives. It wraps bus.ErrBusTimeout so
	// callers can match on either.
	ErrBusTimeout = errors.New("controller: bus timeout")

	// ErrNoController is returned by an unbound slot handle: one created
	// before or after its controller has gone away.
	ErrNoController = errors.New("controller: handle is not bound to a controller")

	// ErrNoSuchSlot is returned when an operation names a slot index the
	// registry does not have populated.
	ErrNoSuchSlot = errors.New("controller: slot is not populated")
)

// FailureCallback is invoked when a BusTimeout occurs on a live
// transaction, with the slot index and the arg that timed out.
type FailureCallback func(slotIndex int, arg byte)
