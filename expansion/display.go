package expansion

import (
	"fmt"
	"sync"
	"time"

	"github.com/arduino-libraries/opta-blueprint/protocol"
	"periph.io/x/conn/v3/gpio"
)

// Button identifies one of the four directional transitions a
// display/custom peripheral's button poller reports.
type Button byte

const (
	ButtonUp Button = iota
	ButtonDown
	ButtonLeft
	ButtonRight
)

func (b Button) String() string {
	switch b {
	case ButtonUp:
		return "up"
	case ButtonDown:
		return "down"
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	default:
		return "unknown"
	}
}

// ButtonEvent is the last-observed button transition, per §4.9: "a
// minimal button-event poller returning the last-observed transition
// (Up|Down|Left|Right, short or long)".
type ButtonEvent struct {
	Button Button
	Long   bool
}

// longPressThreshold is how long a button must stay held before its
// release is reported as a long press rather than a short one.
const longPressThreshold = 600 * time.Millisecond

// Display implements Family for the display/custom button-poller
// peripheral family. It is also the template custom peripherals built on
// this core start from: register a factory under a product string (see
// factory.go) that constructs a Display (or a type embedding it) when the
// controller resolves that string via get-product-type.
type Display struct {
	id Identity

	mu   sync.Mutex
	last ButtonEvent
	have bool
}

// NewDisplay returns a Display family reporting id as its identity.
func NewDisplay(id Identity) *Display {
	return &Display{id: id}
}

// Identity implements Family.
func (d *Display) Identity() Identity { return d.id }

// RecordEvent stages ev as the last-observed transition; a real button
// poller (see WatchButtons) calls this from its own debounced goroutine.
func (d *Display) RecordEvent(ev ButtonEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = ev
	d.have = true
}

// HandleSet implements Family. Display has no set-requests of its own.
func (d *Display) HandleSet(arg protocol.Arg, payload []byte) ([]byte, error) {
	return nil, fmt.Errorf("expansion: display: unsupported set arg %s", arg)
}

// HandleGet implements Family.
func (d *Display) HandleGet(arg protocol.Arg, payload []byte) ([]byte, error) {
	if arg != protocol.ArgGetButtonEvent {
		return nil, fmt.Errorf("expansion: display: unsupported get arg %s", arg)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, 2)
	out[0] = byte(d.last.Button)
	if d.last.Long {
		out[1] = 1
	}
	return out, nil
}

// SetAckArg implements Family.
func (d *Display) SetAckArg(requestArg protocol.Arg) protocol.Arg { return requestArg }

// ApplySafeState implements Family: the button poller has no outputs to
// drive to a safe state.
func (d *Display) ApplySafeState() {}

var _ Family = (*Display)(nil)

// DecodeButtonEvent parses the two-byte get-button-event answer payload
// a controller-side handle receives back.
func DecodeButtonEvent(payload []byte) (ButtonEvent, error) {
	if len(payload) != 2 {
		return ButtonEvent{}, fmt.Errorf("expansion: display: button-event payload must be 2 bytes, got %d", len(payload))
	}
	return ButtonEvent{Button: Button(payload[0]), Long: payload[1] != 0}, nil
}

// buttonPin pairs a logical Button with the GPIO line it is wired to.
type buttonPin struct {
	Button Button
	Pin    gpio.PinIn
}

// WatchButtons polls pins for edges and reports each press/release cycle
// to d as a ButtonEvent, classifying it as long if held past
// longPressThreshold. It configures every pin, starts one watching
// goroutine per pin that runs until the process exits, and returns; it
// returns an error, without starting any watcher, if a pin cannot be
// configured.
func WatchButtons(d *Display, pins []buttonPin) error {
	for _, bp := range pins {
		if err := bp.Pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
			return fmt.Errorf("expansion: display: configuring pin for %s: %w", bp.Button, err)
		}
		bp := bp
		go watchOneButton(d, bp)
	}
	return nil
}

func watchOneButton(d *Display, bp buttonPin) {
	var pressedAt time.Time
	pressed := false
	for {
		if !bp.Pin.WaitForEdge(-1) {
			continue
		}
		now := bp.Pin.Read() == gpio.Low
		if now && !pressed {
			pressed = true
			pressedAt = timeNow()
			continue
		}
		if !now && pressed {
			pressed = false
			d.RecordEvent(ButtonEvent{Button: bp.Button, Long: timeNow().Sub(pressedAt) >= longPressThreshold})
		}
	}
}

// timeNow is a seam so tests can stand in a synthetic clock if needed.
var timeNow = time.Now
