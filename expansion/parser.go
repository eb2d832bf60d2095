package expansion

import (
	"time"

	"github.com/arduino-libraries/opta-blueprint/bus"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// Magic payload bytes the wire protocol uses as lightweight guards against
// acting on a frame whose arg happened to parse correctly but whose
// payload is garbage. Grounded on Protocol.h's literal constants.
var (
	magicControllerReset = byte(0x56)
	magicReboot          = [2]byte{0x58, 0x32}
	magicConfirmAddress  = [2]byte{0xC9, 0xB1}
)

// dispatch decodes one raw frame read off the bus. It reports ok=false
// for anything that fails to parse as a well-formed frame (§7's
// MalformedFrame: dropped, not acked, and never feeds the watchdog);
// ok=true covers every frame this peripheral recognized as its own,
// whether or not it produced an answer to prepare.
func (p *Peripheral) dispatch(raw []byte) (ans []byte, ok bool) {
	if len(raw) < protocol.HeaderLen {
		return nil, false
	}
	cmd := protocol.Cmd(raw[0])
	arg := protocol.Arg(raw[1])

	frame, err := protocol.Parse(raw, cmd, arg)
	if err != nil {
		return nil, false
	}

	switch frame.Cmd {
	case protocol.CmdSet:
		return p.dispatchSet(frame.Arg, frame.Payload), true
	case protocol.CmdGet:
		return p.dispatchGet(frame.Arg, frame.Payload), true
	default:
		return nil, false
	}
}

func (p *Peripheral) dispatchSet(arg protocol.Arg, payload []byte) []byte {
	switch arg {
	case protocol.ArgControllerReset:
		if len(payload) != 1 || payload[0] != magicControllerReset {
			return nil
		}
		p.mu.Lock()
		p.resetToUnaddressed()
		p.mu.Unlock()
		return nil

	case protocol.ArgAssignAddress:
		return p.handleAssignAddress(payload)

	case protocol.ArgReboot:
		if len(payload) != 2 || payload[0] != magicReboot[0] || payload[1] != magicReboot[1] {
			return nil
		}
		p.mu.Lock()
		p.state = ResetPending
		p.rebootAt = time.Now()
		p.mu.Unlock()
		ans, _ := protocol.BuildAnswer(protocol.CmdAnsSet, protocol.ArgReboot, []byte{0x74})
		return ans

	case protocol.ArgWriteFlash:
		return p.handleWriteFlash(payload)

	case protocol.ArgConfirmAddressRx:
		if len(payload) != 2 || payload[0] != magicConfirmAddress[0] || payload[1] != magicConfirmAddress[1] {
			return nil
		}
		// Best-effort per the open question in the design notes: accepted
		// regardless of arbitration phase, no answer expected.
		return nil

	default:
		ans, err := p.family.HandleSet(arg, payload)
		if err != nil {
			return nil
		}
		p.maybeUpdateWatchdog(arg, payload)
		built, err := protocol.BuildAnswer(protocol.CmdAnsSet, p.family.SetAckArg(arg), ans)
		if err != nil {
			return nil
		}
		return built
	}
}

// maybeUpdateWatchdog applies the watchdog timeout carried by the two
// set-requests that configure it: the digital family's combined
// default-mask-plus-timeout frame, and the analog family's standalone
// set-timeout frame.
func (p *Peripheral) maybeUpdateWatchdog(arg protocol.Arg, payload []byte) {
	switch arg {
	case protocol.ArgDefaultAndTimeout:
		if len(payload) == 3 {
			p.watchdog.SetTimeout(uint16(payload[1]) | uint16(payload[2])<<8)
		}
	case protocol.ArgSetTimeout:
		if len(payload) == 2 {
			p.watchdog.SetTimeout(uint16(payload[0]) | uint16(payload[1])<<8)
		}
	}
}

func (p *Peripheral) dispatchGet(arg protocol.Arg, payload []byte) []byte {
	switch arg {
	case protocol.ArgAddressAndType:
		return p.handleGetAddressAndType()

	case protocol.ArgGetVersion:
		v := p.family.Identity().Version
		ans, _ := protocol.BuildAnswer(protocol.CmdAnsGet, protocol.ArgGetVersion, []byte{v.Major, v.Minor, v.Release})
		return ans

	case protocol.ArgReadFlash:
		return p.handleReadFlash(payload)

	case protocol.ArgGetProductType:
		return p.handleGetProductType()

	default:
		ans, err := p.family.HandleGet(arg, payload)
		if err != nil {
			return nil
		}
		built, err := protocol.BuildAnswer(protocol.CmdAnsGet, arg, ans)
		if err != nil {
			return nil
		}
		return built
	}
}

func (p *Peripheral) handleAssignAddress(payload []byte) []byte {
	if len(payload) != 1 {
		return nil
	}
	newAddr := payload[0]

	p.mu.Lock()
	defer p.mu.Unlock()

	// The actual address change only commits if detect-out is released
	// high: a downstream neighbour still mid-reset means this peripheral
	// must wait (§4.3).
	if p.detectOut != nil && p.detectOut.Settled() == bus.Low {
		return nil
	}
	p.addr = newAddr
	p.state = Addressed
	if p.detectIn != nil {
		p.detectIn.Drive(bus.High)
	}
	if p.detectOut != nil {
		p.detectOut.Drive(bus.High)
	}
	return nil
}

func (p *Peripheral) handleGetAddressAndType() []byte {
	p.mu.Lock()
	addr := p.addr
	p.mu.Unlock()
	wireType := p.family.Identity().Type.WireByte()
	ans, _ := protocol.BuildAnswer(protocol.CmdAnsGet, protocol.ArgAddressAndType, []byte{addr, wireType})
	return ans
}

func (p *Peripheral) handleGetProductType() []byte {
	id := p.family.Identity()
	product := id.ProductBytes()
	payload := make([]byte, 33)
	copy(payload[:32], product[:])
	if p.flash != nil {
		payload[32] = p.flash.TypeExtra()
	}
	ans, _ := protocol.BuildAnswer(protocol.CmdAnsGet, protocol.ArgGetProductType, payload)
	return ans
}

func (p *Peripheral) handleWriteFlash(payload []byte) []byte {
	if len(payload) != 35 {
		return nil
	}
	addr := uint16(payload[0])<<8 | uint16(payload[1])
	dim := int(payload[2])
	if dim > MaxFlashWrite || 3+dim > len(payload) {
		return nil
	}
	if p.flash != nil {
		_ = p.flash.Write(addr, payload[3:3+dim])
	}
	ans, _ := protocol.BuildAnswer(protocol.CmdAnsSet, protocol.ArgAck, nil)
	return ans
}

func (p *Peripheral) handleReadFlash(payload []byte) []byte {
	if len(payload) != 3 {
		return nil
	}
	addr := uint16(payload[0])<<8 | uint16(payload[1])
	dim := int(payload[2])
	if dim > MaxFlashWrite {
		dim = MaxFlashWrite
	}
	out := make([]byte, 35)
	out[0], out[1], out[2] = payload[0], payload[1], payload[2]
	if p.flash != nil {
		copy(out[3:3+dim], p.flash.Read(addr, dim))
	}
	ans, _ := protocol.BuildAnswer(protocol.CmdAnsGet, protocol.ArgReadFlashAns, out)
	return ans
}
