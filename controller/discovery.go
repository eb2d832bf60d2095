package controller

import (
	"github.com/arduino-libraries/opta-blueprint/bus"
	"github.com/arduino-libraries/opta-blueprint/expansion"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// discoveryPhase names the controller-side states of §4.3's state
// machine.
type discoveryPhase int

const (
	phaseIdle discoveryPhase = iota
	phaseBroadcastReset
	phaseTempAssign
	phaseFinalAssign
)

const maxVerifyAttempts = 3

// discoveryState owns the detect-line debounce tracking and the
// currently running discovery pass, if any.
type discoveryState struct {
	c           *Controller
	phase       discoveryPhase
	lastDetect  bus.Level
	haveLast    bool
}

func newDiscoveryState(c *Controller) *discoveryState {
	return &discoveryState{c: c, phase: phaseIdle}
}

// poll checks the detect line for a falling edge (low, debounced) and
// starts a discovery pass if one is observed while idle.
func (d *discoveryState) poll() {
	level := d.c.detect.Settled()
	defer func() { d.lastDetect, d.haveLast = level, true }()

	if !d.haveLast {
		return
	}
	if d.phase == phaseIdle && d.lastDetect == bus.High && level == bus.Low {
		_ = d.run()
	}
}

// run executes a full discovery pass: broadcast reset, phase 1 (temporary
// address assignment, outward), phase 2 (final address assignment, in the
// same outward order), then custom-type reconciliation, version read-out,
// handle attachment and shadow replay.
func (d *discoveryState) run() error {
	d.phase = phaseBroadcastReset
	d.broadcastReset()

	d.phase = phaseTempAssign
	tmpAddrs, tmpTypes := d.runPhase1()

	d.phase = phaseFinalAssign
	d.runPhase2(tmpAddrs, tmpTypes)

	d.reconcileCustomTypes()
	d.readVersions()
	d.attachHandles()
	d.replayShadows()

	d.phase = phaseIdle
	return nil
}

// broadcastReset sends controller-reset to every address a peripheral
// could currently hold (its prior final address from a previous
// discovery pass), forcing every reachable peripheral back to
// Unaddressed before arbitration begins.
func (d *discoveryState) broadcastReset() {
	req, _ := protocol.BuildSet(protocol.ArgControllerReset, []byte{0x56})
	for addr := FirstFinalAddress; addr < FirstFinalAddress+MaxExpansions; addr++ {
		_, _ = bus.TransactWithDeadline(d.c.bus, addr, req, 0, d.c.deadline)
	}
}

// runPhase1 implements temporary-address assignment, proceeding outward
// from the controller: each iteration addresses whichever peripheral is
// currently listening at the shared default address, verifies it, and
// moves to the next temporary address. It stops once nothing answers at
// the default address (the chain is exhausted) or MaxExpansions slots
// have been claimed.
func (d *discoveryState) runPhase1() ([]uint8, []expansion.TypeTag) {
	var addrs []uint8
	var types []expansion.TypeTag

	tmp := FirstTempAddress
	for len(addrs) < MaxExpansions {
		assignReq, err := protocol.BuildSet(protocol.ArgAssignAddress, []byte{tmp})
		if err != nil {
			break
		}
		if _, err := bus.TransactWithDeadline(d.c.bus, expansion.DefaultAddress, assignReq, 0, d.c.deadline); err != nil {
			break // nothing left listening at the shared default
		}

		typ, ok := d.verifyAddress(tmp)
		if !ok {
			break
		}

		confirmReq, _ := protocol.BuildSet(protocol.ArgConfirmAddressRx, []byte{0xC9, 0xB1})
		_, _ = bus.TransactWithDeadline(d.c.bus, tmp, confirmReq, 0, d.c.deadline) // best-effort

		addrs = append(addrs, tmp)
		types = append(types, typ)
		tmp++
	}
	return addrs, types
}

// runPhase2 implements final-address assignment, in the same order phase
// 1 discovered the chain: phase 1 can only address whichever peripheral
// is currently gated onto the shared default address, which is always
// the closest not-yet-addressed peripheral, so tmpAddrs[0] is closest to
// the controller. Renumbering in that same order gives the closest
// peripheral the first final address and slot index 0 (S1, property 3).
func (d *discoveryState) runPhase2(tmpAddrs []uint8, tmpTypes []expansion.TypeTag) {
	nextFinal := FirstFinalAddress
	slotIdx := 0

	for i := 0; i < len(tmpAddrs); i++ {
		if slotIdx >= MaxExpansions {
			break
		}
		tmp := tmpAddrs[i]

		var ok bool
		for attempt := 0; attempt < maxVerifyAttempts; attempt++ {
			assignReq, _ := protocol.BuildSet(protocol.ArgAssignAddress, []byte{nextFinal})
			if _, err := bus.TransactWithDeadline(d.c.bus, tmp, assignReq, 0, d.c.deadline); err != nil {
				continue
			}
			typ, verified := d.verifyAddress(nextFinal)
			if !verified {
				continue
			}
			slot := d.c.registry.Slot(slotIdx)
			slot.Address = nextFinal
			slot.Type = typ
			ok = true
			break
		}
		if !ok {
			continue // three consecutive failures: skip this candidate (§4.3)
		}
		nextFinal++
		slotIdx++
	}
}

// verifyAddress sends get-address-and-type to addr and reports the
// reported type tag if the peripheral echoes addr back, retrying up to
// maxVerifyAttempts times.
func (d *discoveryState) verifyAddress(addr uint8) (expansion.TypeTag, bool) {
	wireLen, err := protocol.AnswerWireLen(protocol.CmdAnsGet, protocol.ArgAddressAndType)
	if err != nil {
		return 0, false
	}
	for attempt := 0; attempt < maxVerifyAttempts; attempt++ {
		req, _ := protocol.BuildGet(protocol.ArgAddressAndType, nil)
		raw, err := bus.TransactWithDeadline(d.c.bus, addr, req, wireLen, d.c.deadline)
		if err != nil {
			continue
		}
		f, err := protocol.Parse(raw, protocol.CmdAnsGet, protocol.ArgAddressAndType)
		if err != nil || len(f.Payload) != 2 || f.Payload[0] != addr {
			continue
		}
		return wireTypeToTag(f.Payload[1]), true
	}
	return 0, false
}

func wireTypeToTag(b byte) expansion.TypeTag {
	switch b {
	case 0:
		return expansion.TypeInvalid
	case 1:
		return expansion.TypeDigitalGeneric
	case 2:
		return expansion.TypeDigitalMechanical
	case 3:
		return expansion.TypeDigitalSolidState
	case 4:
		return expansion.TypeAnalog
	case 5:
		return expansion.TypeDisplay
	default:
		return expansion.TypeCustomBase // resolved precisely by reconcileCustomTypes
	}
}

// reconcileCustomTypes issues get-product-type to every populated slot
// whose type tag is Custom or Invalid, and tags the slot with the
// factory-registered product string and TypeTag if one matches (§4.3).
func (d *discoveryState) reconcileCustomTypes() {
	wireLen, err := protocol.AnswerWireLen(protocol.CmdAnsGet, protocol.ArgGetProductType)
	if err != nil {
		return
	}
	for _, slot := range d.c.registry.Slots() {
		if !slot.Populated() {
			continue
		}
		if slot.Type != expansion.TypeCustomBase && slot.Type != expansion.TypeInvalid {
			continue
		}
		req, _ := protocol.BuildGet(protocol.ArgGetProductType, nil)
		raw, err := bus.TransactWithDeadline(d.c.bus, slot.Address, req, wireLen, d.c.deadline)
		if err != nil {
			continue
		}
		f, err := protocol.Parse(raw, protocol.CmdAnsGet, protocol.ArgGetProductType)
		if err != nil || len(f.Payload) < 32 {
			continue
		}
		product := trimNulls(f.Payload[:32])
		slot.Product = product
		if tag, ok := expansion.TagForProduct(product); ok {
			slot.Type = tag
		}
	}
}

// readVersions issues get-version to every populated slot and records the
// reported firmware triple, so Slot.Version reflects the peripheral
// actually on the bus rather than sitting at its zero value forever.
func (d *discoveryState) readVersions() {
	wireLen, err := protocol.AnswerWireLen(protocol.CmdAnsGet, protocol.ArgGetVersion)
	if err != nil {
		return
	}
	for _, slot := range d.c.registry.Slots() {
		if !slot.Populated() {
			continue
		}
		req, _ := protocol.BuildGet(protocol.ArgGetVersion, nil)
		raw, err := bus.TransactWithDeadline(d.c.bus, slot.Address, req, wireLen, d.c.deadline)
		if err != nil {
			continue
		}
		f, err := protocol.Parse(raw, protocol.CmdAnsGet, protocol.ArgGetVersion)
		if err != nil || len(f.Payload) != 3 {
			continue
		}
		slot.Version = expansion.FirmwareVersion{Major: f.Payload[0], Minor: f.Payload[1], Release: f.Payload[2]}
	}
}

// attachHandles materializes and stores the typed handle (§3) matching
// each populated slot's resolved type, so Slot.Handle() returns something
// usable right after discovery instead of only after a caller happens to
// call Controller.Digital/Analog/Display itself.
func (d *discoveryState) attachHandles() {
	for _, slot := range d.c.registry.Slots() {
		if !slot.Populated() {
			continue
		}
		switch slot.Type {
		case expansion.TypeDigitalGeneric, expansion.TypeDigitalMechanical, expansion.TypeDigitalSolidState:
			slot.SetHandle(d.c.Digital(slot.Index))
		case expansion.TypeAnalog:
			slot.SetHandle(d.c.Analog(slot.Index))
		case expansion.TypeDisplay:
			slot.SetHandle(d.c.Display(slot.Index))
		}
	}
}

func trimNulls(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// replayShadows pushes each populated slot's recorded configuration back
// to its peripheral, in offset order, per §4.4's safe-state application:
// a previously-used shadow is replayed; a fresh slot instead gets the
// platform default.
func (d *discoveryState) replayShadows() {
	for _, slot := range d.c.registry.Slots() {
		if !slot.Populated() {
			continue
		}
		if !slot.Shadow.Used() {
			d.pushPlatformDefault(slot)
			continue
		}
		slot.Shadow.ReplayInto(func(arg protocol.Arg, bytes []byte) {
			d.replayOne(slot, arg, bytes)
		})
	}
}

// replayOne resends a single shadow entry. Each entry already carries the
// exact arg that configured it (see shadowEntry), so replay only has to
// rebuild the frame and revalidate it still matches that arg's wire
// length contract; it never has to guess which of several possible
// set-commands produced the recorded bytes.
func (d *discoveryState) replayOne(slot *Slot, arg protocol.Arg, bytes []byte) {
	req, err := protocol.BuildSet(arg, bytes)
	if err != nil {
		return
	}
	_, _ = bus.TransactWithDeadline(d.c.bus, slot.Address, req, 0, d.c.deadline)
}

// pushPlatformDefault applies §4.4's platform default to a freshly
// discovered slot whose shadow has never been used: every channel to
// high-impedance, all DACs zeroed, all PWMs disabled, all LEDs off, RTD
// update interval 1000ms, safe-state timeout never.
func (d *discoveryState) pushPlatformDefault(slot *Slot) {
	if slot.Type != expansion.TypeAnalog {
		return
	}
	for ch := 0; ch < analogK; ch++ {
		req, _ := protocol.BuildSet(protocol.ArgBeginHighImpedance, []byte{byte(ch)})
		_, _ = bus.TransactWithDeadline(d.c.bus, slot.Address, req, 0, d.c.deadline)
		dacReq, _ := protocol.BuildSet(protocol.ArgSetDac, []byte{byte(ch), 0, 0, 1}) // code 0, applied
		_, _ = bus.TransactWithDeadline(d.c.bus, slot.Address, dacReq, 0, d.c.deadline)
	}
	for ch := 0; ch < analogP; ch++ {
		pwm := make([]byte, 9) // period 0 stops the channel
		pwm[0] = byte(ch)
		pwmReq, _ := protocol.BuildSet(protocol.ArgSetPwm, pwm)
		_, _ = bus.TransactWithDeadline(d.c.bus, slot.Address, pwmReq, 0, d.c.deadline)
	}
	rtdReq, _ := protocol.BuildSet(protocol.ArgSetRtdUpdateTime, []byte{0x03, 0xE8}) // 1000ms
	_, _ = bus.TransactWithDeadline(d.c.bus, slot.Address, rtdReq, 0, d.c.deadline)

	ledReq, _ := protocol.BuildSet(protocol.ArgSetLed, []byte{0x00})
	_, _ = bus.TransactWithDeadline(d.c.bus, slot.Address, ledReq, 0, d.c.deadline)

	timeoutReq, _ := protocol.BuildSet(protocol.ArgSetTimeout, []byte{0xFF, 0xFF})
	_, _ = bus.TransactWithDeadline(d.c.bus, slot.Address, timeoutReq, 0, d.c.deadline)
}

