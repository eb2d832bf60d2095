package controller

import (
	"encoding/binary"

	"github.com/arduino-libraries/opta-blueprint/expansion"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// SetOutputs programs the committed 8-bit output mask and records it in
// the slot's shadow so it replays after a reset.
func (h DigitalHandle) SetOutputs(mask byte) error {
	if err := h.anyDigitalType(); err != nil {
		return err
	}
	if err := h.transactSet(protocol.ArgDigitalOut, []byte{mask}, protocol.ArgDigitalOut); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindDigitalOut}, protocol.ArgDigitalOut, []byte{mask})
	return nil
}

// SetDefaultAndTimeout programs the safe-state default output mask and
// the watchdog timeout (milliseconds; expansion.NeverTimeout disables
// it) in one request, per §4.7. Both fields are recorded as a single
// shadow entry: ArgDefaultAndTimeout's wire contract only ever accepts
// the mask and timeout together, so replaying the mask alone would
// build an unparseable frame.
func (h DigitalHandle) SetDefaultAndTimeout(defaultMask byte, timeoutMS uint16) error {
	if err := h.anyDigitalType(); err != nil {
		return err
	}
	payload := make([]byte, 3)
	payload[0] = defaultMask
	binary.LittleEndian.PutUint16(payload[1:], timeoutMS)
	if err := h.transactSet(protocol.ArgDefaultAndTimeout, payload, protocol.ArgDefaultAndTimeout); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindDigitalDefault}, protocol.ArgDefaultAndTimeout, payload)
	return nil
}

// Inputs returns the 16-bit digital input bitmask.
func (h DigitalHandle) Inputs() (uint16, error) {
	if err := h.anyDigitalType(); err != nil {
		return 0, err
	}
	payload, err := h.transactGet(protocol.ArgDigitalIn, nil)
	if err != nil {
		return 0, err
	}
	if len(payload) != 2 {
		return 0, ErrProtocolMismatch
	}
	return uint16(payload[0]) | uint16(payload[1])<<8, nil
}

// AnalogInput returns the 14-bit analog reading of input channel ch
// (0..15).
func (h DigitalHandle) AnalogInput(ch int) (uint16, error) {
	if err := h.anyDigitalType(); err != nil {
		return 0, err
	}
	payload, err := h.transactGet(protocol.ArgAnalogIn, []byte{byte(ch)})
	if err != nil {
		return 0, err
	}
	if len(payload) != 2 {
		return 0, ErrProtocolMismatch
	}
	return uint16(payload[0]) | uint16(payload[1])<<8, nil
}

// AllAnalogInputs returns all 16 analog input readings.
func (h DigitalHandle) AllAnalogInputs() ([16]uint16, error) {
	var out [16]uint16
	if err := h.anyDigitalType(); err != nil {
		return out, err
	}
	payload, err := h.transactGet(protocol.ArgAllAnalogIn, nil)
	if err != nil {
		return out, err
	}
	if len(payload) != 32 {
		return out, ErrProtocolMismatch
	}
	for i := range out {
		out[i] = uint16(payload[i*2]) | uint16(payload[i*2+1])<<8
	}
	return out, nil
}

// anyDigitalType accepts any of the three digital TypeTags (generic,
// mechanical relay, solid-state relay); they share one wire contract and
// differ only in the product string behind the SKU.
func (h DigitalHandle) anyDigitalType() error {
	s, err := h.slot()
	if err != nil {
		return err
	}
	switch s.Type {
	case expansion.TypeDigitalGeneric, expansion.TypeDigitalMechanical, expansion.TypeDigitalSolidState:
		return nil
	default:
		return ErrUnsupportedByThisSlotType
	}
}
