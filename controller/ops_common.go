package controller

import (
	"fmt"

	"github.com/arduino-libraries/opta-blueprint/bus"
	"github.com/arduino-libraries/opta-blueprint/expansion"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// handle is the shared base every typed accessor (DigitalHandle,
// AnalogHandle, DisplayHandle) embeds: a (controller, slot index) value
// pair that never outlives the controller, per the design notes' arena
// model for the cyclic controller/expansion relationship.
type handle struct {
	c   *Controller
	idx int
}

// slot returns the handle's backing slot, or an error if the handle is
// unbound or the slot is no longer populated.
func (h handle) slot() (*Slot, error) {
	if h.c == nil {
		return nil, ErrNoController
	}
	s := h.c.registry.Slot(h.idx)
	if !s.Populated() {
		return nil, ErrNoSuchSlot
	}
	return s, nil
}

// requireType returns the slot if it is populated and of type want,
// otherwise ErrUnsupportedByThisSlotType.
func (h handle) requireType(want expansion.TypeTag) (*Slot, error) {
	s, err := h.slot()
	if err != nil {
		return nil, err
	}
	if s.Type != want {
		return nil, fmt.Errorf("%w: slot %d is %s, not %s", ErrUnsupportedByThisSlotType, h.idx, s.Type, want)
	}
	return s, nil
}

// transactSet runs one set/ack round trip: builds the request, sends it,
// parses the ack, and on BusTimeout invokes the controller's failure
// callback with (slotIndex, arg).
func (h handle) transactSet(arg protocol.Arg, payload []byte, ackArg protocol.Arg) error {
	req, err := protocol.BuildSet(arg, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}
	wireLen, err := protocol.AnswerWireLen(protocol.CmdAnsSet, ackArg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}
	s, err := h.slot()
	if err != nil {
		return err
	}
	raw, err := bus.TransactWithDeadline(h.c.bus, s.Address, req, wireLen, h.c.deadline)
	if err != nil {
		h.c.reportFailure(h.idx, byte(arg))
		return fmt.Errorf("%w: %w", ErrBusTimeout, err)
	}
	if _, err := protocol.Parse(raw, protocol.CmdAnsSet, ackArg); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}
	return nil
}

// transactGet runs one get/answer round trip and returns the answer's
// payload.
func (h handle) transactGet(arg protocol.Arg, payload []byte) ([]byte, error) {
	req, err := protocol.BuildGet(arg, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}
	wireLen, err := protocol.AnswerWireLen(protocol.CmdAnsGet, arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}
	s, err := h.slot()
	if err != nil {
		return nil, err
	}
	raw, err := bus.TransactWithDeadline(h.c.bus, s.Address, req, wireLen, h.c.deadline)
	if err != nil {
		h.c.reportFailure(h.idx, byte(arg))
		return nil, fmt.Errorf("%w: %w", ErrBusTimeout, err)
	}
	f, err := protocol.Parse(raw, protocol.CmdAnsGet, arg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolMismatch, err)
	}
	return f.Payload, nil
}

// DigitalHandle exposes the digital-family operations (§4.9) for one
// slot.
type DigitalHandle struct{ handle }

// AnalogHandle exposes the analog-family operations (§4.9) for one slot.
type AnalogHandle struct{ handle }

// DisplayHandle exposes the display/custom button-poller operation for
// one slot.
type DisplayHandle struct{ handle }

// Digital returns a DigitalHandle for slot index idx, without checking
// the slot's type; every method call validates the type itself and
// returns ErrUnsupportedByThisSlotType if it does not match.
func (c *Controller) Digital(idx int) DigitalHandle { return DigitalHandle{handle{c, idx}} }

// Analog returns an AnalogHandle for slot index idx.
func (c *Controller) Analog(idx int) AnalogHandle { return AnalogHandle{handle{c, idx}} }

// Display returns a DisplayHandle for slot index idx.
func (c *Controller) Display(idx int) DisplayHandle { return DisplayHandle{handle{c, idx}} }
