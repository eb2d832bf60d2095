package expansion

import (
	"sync"
	"time"

	"github.com/arduino-libraries/opta-blueprint/bus"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// State is one of the four states a peripheral's address-arbitration
// state machine can be in.
type State int

const (
	Unaddressed State = iota
	Addressed
	ResetPending
	BootloaderTransition
)

func (s State) String() string {
	switch s {
	case Unaddressed:
		return "unaddressed"
	case Addressed:
		return "addressed"
	case ResetPending:
		return "reset-pending"
	case BootloaderTransition:
		return "bootloader-transition"
	default:
		return "unknown"
	}
}

// DefaultAddress is the shared address every unaddressed peripheral
// listens on.
const DefaultAddress uint8 = 0x0A

// WaitForReboot is how long a peripheral waits, after acknowledging a
// reboot frame, before transitioning to BootloaderTransition.
const WaitForReboot = 500 * time.Millisecond

// DetectOutLowTime is how long a peripheral holds its detect-out line low
// during its own reset sequence, so downstream neighbours observe and
// themselves reset.
const DetectOutLowTime = 1000 * time.Millisecond

// Family is the capability trait a peripheral family (digital, analog,
// display/custom) implements. It replaces the virtual-method dispatch the
// original firmware uses with an explicit, tagged interface: Peripheral
// handles every core (address/version/flash/reboot) frame itself and
// forwards anything family-specific here.
type Family interface {
	// Identity reports this family's declared type tag, product string and
	// firmware version.
	Identity() Identity

	// HandleSet processes a set-request's arg/payload and returns the
	// payload for its set-response (frequently empty: most analog-family
	// sets ack with protocol.ArgAck and a zero-length payload).
	HandleSet(arg protocol.Arg, payload []byte) ([]byte, error)

	// SetAckArg reports which Arg a set-response to requestArg should
	// carry. The analog family acknowledges every set with the fixed
	// protocol.ArgAck regardless of which request it answers; the digital
	// family echoes the request's own arg.
	SetAckArg(requestArg protocol.Arg) protocol.Arg

	// HandleGet processes a get-request's arg/payload and returns the
	// payload for its get-response.
	HandleGet(arg protocol.Arg, payload []byte) ([]byte, error)

	// ApplySafeState drives every configured output channel to its
	// recorded safe-state value. Invoked by the watchdog on expiry.
	ApplySafeState()
}

// Peripheral is the full peripheral-side runtime: the address/reset state
// machine, the bus callbacks, the watchdog, the flash-backed nameplate,
// and a family handling the device-specific command set.
type Peripheral struct {
	family   Family
	flash    *Nameplate
	watchdog *Watchdog

	detectIn  *bus.DetectLine
	detectOut *bus.DetectLine

	mu          sync.Mutex
	state       State
	addr        uint8
	rebootAt    time.Time
	pendingTx   []byte
	rxQueue     [][]byte
	crcEnabled  bool
}

// NewPeripheral creates a peripheral answering initially at DefaultAddress,
// driven by family for anything beyond the core protocol, backed by
// flash for its nameplate region, and wired to detectIn/detectOut for
// address-arbitration sequencing.
func NewPeripheral(family Family, flash *Nameplate, detectIn, detectOut *bus.DetectLine) *Peripheral {
	return &Peripheral{
		family:     family,
		flash:      flash,
		watchdog:   NewWatchdog(),
		detectIn:   detectIn,
		detectOut:  detectOut,
		state:      Unaddressed,
		addr:       DefaultAddress,
		crcEnabled: true,
	}
}

// Addr returns the peripheral's current wire address.
func (p *Peripheral) Addr() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// State returns the peripheral's current arbitration state.
func (p *Peripheral) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// OnReceive implements bus.Receiver. It must not block: it only queues the
// raw frame for Tick to parse and act on.
func (p *Peripheral) OnReceive(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := append([]byte(nil), data...)
	p.rxQueue = append(p.rxQueue, buf)
}

// OnRequest implements bus.Receiver. It returns whatever answer Tick most
// recently prepared, or the NACK sentinel if nothing is pending.
func (p *Peripheral) OnRequest() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pendingTx == nil {
		return bus.NackSentinel[:]
	}
	out := p.pendingTx
	p.pendingTx = nil
	return out
}

// Tick runs one iteration of the peripheral's cooperative main loop: it
// drains any queued receive-event frames, advances the reboot timer, and
// lets the watchdog expire outputs if no frame has arrived in time. It is
// the only place parsing and state mutation happen, matching the
// single-threaded model the bus callbacks must not violate.
func (p *Peripheral) Tick(elapsed time.Duration) {
	p.mu.Lock()
	queue := p.rxQueue
	p.rxQueue = nil
	state := p.state
	rebootAt := p.rebootAt
	p.mu.Unlock()

	for _, raw := range queue {
		ans, ok := p.dispatch(raw)
		if !ok {
			continue // malformed frame: dropped, watchdog untouched (§7)
		}
		p.watchdog.Feed()
		if ans != nil {
			p.mu.Lock()
			p.pendingTx = ans
			p.mu.Unlock()
		}
	}

	if state == ResetPending && !rebootAt.IsZero() && time.Now().After(rebootAt.Add(WaitForReboot)) {
		p.mu.Lock()
		p.state = BootloaderTransition
		p.mu.Unlock()
	}

	if p.watchdog.Tick(elapsed) {
		p.family.ApplySafeState()
	}

	p.pollDetect()
}

// pollDetect implements the fault-detection half of §4.3: a peripheral
// that loses its upstream or downstream detect signal while addressed
// falls back to Unaddressed.
func (p *Peripheral) pollDetect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Addressed {
		return
	}
	if p.detectIn != nil && p.detectIn.Settled() == bus.Low {
		p.state = Unaddressed
		p.addr = DefaultAddress
		return
	}
	if p.detectOut != nil && p.detectOut.Settled() == bus.Low {
		p.state = Unaddressed
		p.addr = DefaultAddress
	}
}

// resetToUnaddressed implements the reset sequence of §4.3: hold
// detect-out low for DetectOutLowTime so downstream neighbours observe
// and themselves reset, then release it, returning to Unaddressed. The
// state change and the drive low happen immediately; the release after
// DetectOutLowTime runs on a goroutine of its own, so the bus callback
// that invoked this returns promptly.
func (p *Peripheral) resetToUnaddressed() {
	p.state = Unaddressed
	p.addr = DefaultAddress
	if p.detectOut != nil {
		p.detectOut.Drive(bus.Low)
		go func(dl *bus.DetectLine) {
			time.Sleep(DetectOutLowTime)
			dl.Drive(bus.High)
		}(p.detectOut)
	}
}
