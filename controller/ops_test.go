package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/arduino-libraries/opta-blueprint/expansion"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

func newTestController(fb *fakeBus) *Controller {
	c := New(fb, nil, WithDeadline(10*time.Millisecond))
	return c
}

func ansSet(t *testing.T, ackArg protocol.Arg, payload []byte) []byte {
	t.Helper()
	out, err := protocol.BuildAnswer(protocol.CmdAnsSet, ackArg, payload)
	if err != nil {
		t.Fatalf("BuildAnswer: %v", err)
	}
	return out
}

func ansGet(t *testing.T, arg protocol.Arg, payload []byte) []byte {
	t.Helper()
	out, err := protocol.BuildAnswer(protocol.CmdAnsGet, arg, payload)
	if err != nil {
		t.Fatalf("BuildAnswer: %v", err)
	}
	return out
}

func TestDigitalHandleSetOutputsRecordsShadow(t *testing.T) {
	fb := newFakeBus()
	fb.on(0x0B, func(tx []byte, wantRxLen int) ([]byte, error) {
		return ansSet(t, protocol.ArgDigitalOut, nil), nil
	})
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeDigitalGeneric

	if err := c.Digital(0).SetOutputs(0x5A); err != nil {
		t.Fatalf("SetOutputs: %v", err)
	}
	if !slot.Shadow.Used() {
		t.Fatal("want the shadow to record the output mask")
	}
}

func TestDigitalHandleWrongSlotType(t *testing.T) {
	fb := newFakeBus()
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeAnalog

	err := c.Digital(0).SetOutputs(0x01)
	if !errors.Is(err, ErrUnsupportedByThisSlotType) {
		t.Fatalf("want ErrUnsupportedByThisSlotType, got %v", err)
	}
}

func TestDigitalHandleUnpopulatedSlot(t *testing.T) {
	fb := newFakeBus()
	c := newTestController(fb)
	err := c.Digital(0).SetOutputs(0x01)
	if !errors.Is(err, ErrNoSuchSlot) {
		t.Fatalf("want ErrNoSuchSlot, got %v", err)
	}
}

func TestDigitalHandleInputsRoundTrip(t *testing.T) {
	fb := newFakeBus()
	fb.on(0x0B, func(tx []byte, wantRxLen int) ([]byte, error) {
		return ansGet(t, protocol.ArgDigitalIn, []byte{0x34, 0x12}), nil
	})
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeDigitalGeneric

	got, err := c.Digital(0).Inputs()
	if err != nil {
		t.Fatalf("Inputs: %v", err)
	}
	if want := uint16(0x1234); got != want {
		t.Fatalf("Inputs = %#04x, want %#04x", got, want)
	}
}

func TestDigitalHandleBusTimeout(t *testing.T) {
	fb := newFakeBus() // no handler registered for the slot's address
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeDigitalGeneric

	_, err := c.Digital(0).Inputs()
	if !errors.Is(err, ErrBusTimeout) {
		t.Fatalf("want ErrBusTimeout, got %v", err)
	}
}

func TestAnalogHandleBeginChannelAndOverlay(t *testing.T) {
	fb := newFakeBus()
	fb.on(0x0B, func(tx []byte, wantRxLen int) ([]byte, error) {
		return ansSet(t, protocol.ArgAck, nil), nil
	})
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeAnalog

	a := c.Analog(0)
	if err := a.BeginDAC(3); err != nil {
		t.Fatalf("BeginDAC: %v", err)
	}
	if err := a.SetDAC(3, 4096, true); err != nil {
		t.Fatalf("SetDAC: %v", err)
	}
	if err := a.AddVoltageADCOverlay(3, 4); err != nil {
		t.Fatalf("AddVoltageADCOverlay: %v", err)
	}
	if !slot.Shadow.Used() {
		t.Fatal("want shadow entries recorded")
	}
}

func TestAnalogHandleADCRoundTrip(t *testing.T) {
	fb := newFakeBus()
	fb.on(0x0B, func(tx []byte, wantRxLen int) ([]byte, error) {
		return ansGet(t, protocol.ArgGetAdc, []byte{5, 0x12, 0x34}), nil
	})
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeAnalog

	got, err := c.Analog(0).ADC(5)
	if err != nil {
		t.Fatalf("ADC: %v", err)
	}
	if want := uint16(0x1234); got != want {
		t.Fatalf("ADC = %#04x, want %#04x", got, want)
	}
}

func TestAnalogHandleWrongSlotType(t *testing.T) {
	fb := newFakeBus()
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeDigitalGeneric

	_, err := c.Analog(0).ADC(0)
	if !errors.Is(err, ErrUnsupportedByThisSlotType) {
		t.Fatalf("want ErrUnsupportedByThisSlotType, got %v", err)
	}
}

func TestDisplayHandleButtonEvent(t *testing.T) {
	fb := newFakeBus()
	fb.on(0x0B, func(tx []byte, wantRxLen int) ([]byte, error) {
		return ansGet(t, protocol.ArgGetButtonEvent, []byte{byte(expansion.ButtonDown), 1}), nil
	})
	c := newTestController(fb)
	slot := c.Registry().Slot(0)
	slot.Address = 0x0B
	slot.Type = expansion.TypeDisplay

	ev, err := c.Display(0).ButtonEvent()
	if err != nil {
		t.Fatalf("ButtonEvent: %v", err)
	}
	if ev.Button != expansion.ButtonDown || !ev.Long {
		t.Fatalf("ButtonEvent = %+v, want {ButtonDown true}", ev)
	}
}
