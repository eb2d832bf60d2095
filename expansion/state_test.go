package expansion

import (
	"testing"
	"time"

	"github.com/arduino-libraries/opta-blueprint/bus"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

func newTestPeripheral() (*Peripheral, *bus.DetectLine, *bus.DetectLine) {
	in := bus.NewDetectLine(bus.High, 0)
	out := bus.NewDetectLine(bus.High, 0)
	p := NewPeripheral(NewDigital(Identity{Type: TypeDigitalGeneric, Product: "digital-generic"}), NewNameplate(), in, out)
	return p, in, out
}

func TestPeripheralStartsUnaddressedAtDefault(t *testing.T) {
	p, _, _ := newTestPeripheral()
	if p.State() != Unaddressed {
		t.Fatalf("State() = %s, want unaddressed", p.State())
	}
	if p.Addr() != DefaultAddress {
		t.Fatalf("Addr() = %#02x, want %#02x", p.Addr(), DefaultAddress)
	}
}

func TestPeripheralAssignAddressCommitsWhenDetectOutHigh(t *testing.T) {
	p, _, _ := newTestPeripheral()
	raw, err := protocol.BuildSet(protocol.ArgAssignAddress, []byte{0x10})
	if err != nil {
		t.Fatalf("BuildSet: %v", err)
	}
	p.OnReceive(raw)
	p.Tick(time.Millisecond)

	if p.State() != Addressed {
		t.Fatalf("State() = %s, want addressed", p.State())
	}
	if p.Addr() != 0x10 {
		t.Fatalf("Addr() = %#02x, want 0x10", p.Addr())
	}
}

func TestPeripheralAssignAddressDefersWhenDetectOutLow(t *testing.T) {
	p, _, out := newTestPeripheral()
	out.Drive(bus.Low)

	raw, _ := protocol.BuildSet(protocol.ArgAssignAddress, []byte{0x10})
	p.OnReceive(raw)
	p.Tick(time.Millisecond)

	if p.State() != Unaddressed {
		t.Fatalf("State() = %s, want unaddressed (downstream still in reset)", p.State())
	}
}

func TestPeripheralGetAddressAndType(t *testing.T) {
	p, _, _ := newTestPeripheral()
	raw, _ := protocol.BuildSet(protocol.ArgAssignAddress, []byte{0x0B})
	p.OnReceive(raw)
	p.Tick(time.Millisecond)

	req, _ := protocol.BuildGet(protocol.ArgAddressAndType, nil)
	p.OnReceive(req)
	p.Tick(time.Millisecond)

	ans := p.OnRequest()
	f, err := protocol.Parse(ans, protocol.CmdAnsGet, protocol.ArgAddressAndType)
	if err != nil {
		t.Fatalf("Parse answer: %v", err)
	}
	if f.Payload[0] != 0x0B {
		t.Fatalf("reported address = %#02x, want 0x0B", f.Payload[0])
	}
	if f.Payload[1] != TypeDigitalGeneric.WireByte() {
		t.Fatalf("reported type = %#02x, want %#02x", f.Payload[1], TypeDigitalGeneric.WireByte())
	}
}

func TestPeripheralNackWhenNothingPrepared(t *testing.T) {
	p, _, _ := newTestPeripheral()
	ans := p.OnRequest()
	if string(ans) != string(bus.NackSentinel[:]) {
		t.Fatalf("OnRequest() = %v, want NACK sentinel", ans)
	}
}

func TestPeripheralControllerResetReturnsToUnaddressed(t *testing.T) {
	p, _, _ := newTestPeripheral()
	assign, _ := protocol.BuildSet(protocol.ArgAssignAddress, []byte{0x0B})
	p.OnReceive(assign)
	p.Tick(time.Millisecond)
	if p.State() != Addressed {
		t.Fatalf("precondition: State() = %s, want addressed", p.State())
	}

	reset, _ := protocol.BuildSet(protocol.ArgControllerReset, []byte{0x56})
	p.OnReceive(reset)
	p.Tick(time.Millisecond)

	if p.State() != Unaddressed {
		t.Fatalf("State() = %s, want unaddressed after controller-reset", p.State())
	}
}

func TestPeripheralWriteAndReadFlashRoundTrip(t *testing.T) {
	p, _, _ := newTestPeripheral()

	writePayload := make([]byte, 35)
	writePayload[0], writePayload[1] = byte(ProductionDataAddr>>8), byte(ProductionDataAddr)
	writePayload[2] = 4
	copy(writePayload[3:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	wreq, _ := protocol.BuildSet(protocol.ArgWriteFlash, writePayload)
	p.OnReceive(wreq)
	p.Tick(time.Millisecond)
	if ans := p.OnRequest(); string(ans) == string(bus.NackSentinel[:]) {
		t.Fatalf("write-flash produced no answer")
	}

	readPayload := []byte{byte(ProductionDataAddr >> 8), byte(ProductionDataAddr), 4}
	rreq, _ := protocol.BuildGet(protocol.ArgReadFlash, readPayload)
	p.OnReceive(rreq)
	p.Tick(time.Millisecond)

	ans := p.OnRequest()
	f, err := protocol.Parse(ans, protocol.CmdAnsGet, protocol.ArgReadFlashAns)
	if err != nil {
		t.Fatalf("Parse answer: %v", err)
	}
	if string(f.Payload[3:7]) != "\xDE\xAD\xBE\xEF" {
		t.Fatalf("read-flash payload = %v, want DE AD BE EF", f.Payload[3:7])
	}
}

func TestWatchdogAppliesSafeStateOnExpiry(t *testing.T) {
	p, _, _ := newTestPeripheral()
	assign, _ := protocol.BuildSet(protocol.ArgAssignAddress, []byte{0x0B})
	p.OnReceive(assign)
	p.Tick(time.Millisecond)

	defTimeout := []byte{0x00, 0xF4, 0x01} // default mask 0, timeout 500ms
	req, _ := protocol.BuildSet(protocol.ArgDefaultAndTimeout, defTimeout)
	p.OnReceive(req)
	p.Tick(time.Millisecond)

	digital := p.family.(*Digital)
	digital.SetOutputs(0xFF)

	p.Tick(600 * time.Millisecond)

	if got := digital.Outputs(); got != 0x00 {
		t.Fatalf("Outputs() after watchdog expiry = %#02x, want 0x00", got)
	}
}
