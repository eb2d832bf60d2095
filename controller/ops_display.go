package controller

import (
	"github.com/arduino-libraries/opta-blueprint/expansion"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// ButtonEvent polls a display/custom slot for its most recently recorded
// button event. It is only meaningful against a slot whose factory
// registered expansion.TypeDisplay (or a custom factory built on top of
// expansion.Display).
func (h DisplayHandle) ButtonEvent() (expansion.ButtonEvent, error) {
	if _, err := h.requireType(expansion.TypeDisplay); err != nil {
		return expansion.ButtonEvent{}, err
	}
	payload, err := h.transactGet(protocol.ArgGetButtonEvent, nil)
	if err != nil {
		return expansion.ButtonEvent{}, err
	}
	return expansion.DecodeButtonEvent(payload)
}
