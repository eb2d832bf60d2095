package expansion

import (
	"fmt"

	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// DigitalChannels is the number of digital outputs a digital peripheral
// exposes; DigitalInputs is the number of digital (and analog-capable)
// inputs it reports.
const (
	DigitalChannels = 8
	DigitalInputs   = 16
)

// Digital implements Family for the digital expansion: 8 digital outputs,
// 16 digital inputs, and 16 analog readings (14-bit) shared with the
// digital-input pins, plus a default-output-mask/timeout pair.
type Digital struct {
	id Identity

	outMask     byte
	inMask      uint16
	analog      [DigitalInputs]uint16 // 14-bit readings, 0..16383
	defaultMask byte
}

// NewDigital returns a Digital family reporting id as its identity.
// id.Type distinguishes the mechanical/solid-state relay variants at the
// TypeTag level; product strings still identify the exact SKU.
func NewDigital(id Identity) *Digital {
	return &Digital{id: id}
}

// Identity implements Family.
func (d *Digital) Identity() Identity { return d.id }

// SetOutputs programs the committed output bitmask directly, bypassing
// the wire protocol; used by simulators and tests that want to assert on
// digitalOutRead without a bus round trip.
func (d *Digital) SetOutputs(mask byte) { d.outMask = mask }

// Outputs returns the committed output bitmask (digitalOutRead in §8's
// S2 scenario).
func (d *Digital) Outputs() byte { return d.outMask }

// SetInputs sets the simulated wired-input bitmask a test or simulator
// wants get-digital-inputs to report.
func (d *Digital) SetInputs(mask uint16) { d.inMask = mask }

// SetAnalogReading stages the 14-bit reading a given input channel
// reports to get-analog-input / get-all-analog-inputs.
func (d *Digital) SetAnalogReading(ch int, code uint16) {
	if ch < 0 || ch >= DigitalInputs {
		return
	}
	if code > 0x3FFF {
		code = 0x3FFF
	}
	d.analog[ch] = code
}

// HandleSet implements Family.
func (d *Digital) HandleSet(arg protocol.Arg, payload []byte) ([]byte, error) {
	switch arg {
	case protocol.ArgDigitalOut:
		if len(payload) != 1 {
			return nil, fmt.Errorf("expansion: digital: set-digital-outputs wants 1 byte")
		}
		d.outMask = payload[0]
		return nil, nil

	case protocol.ArgDefaultAndTimeout:
		if len(payload) != 3 {
			return nil, fmt.Errorf("expansion: digital: default-and-timeout wants 3 bytes")
		}
		// payload[1:3] (the watchdog timeout) is applied by the caller;
		// see Peripheral.maybeUpdateWatchdog.
		d.defaultMask = payload[0]
		return nil, nil

	default:
		return nil, fmt.Errorf("expansion: digital: unsupported set arg %s", arg)
	}
}

// HandleGet implements Family.
func (d *Digital) HandleGet(arg protocol.Arg, payload []byte) ([]byte, error) {
	switch arg {
	case protocol.ArgDigitalIn:
		return []byte{byte(d.inMask), byte(d.inMask >> 8)}, nil

	case protocol.ArgAnalogIn:
		if len(payload) != 1 {
			return nil, fmt.Errorf("expansion: digital: get-analog-input wants a 1-byte channel selector")
		}
		ch := int(payload[0])
		if ch < 0 || ch >= DigitalInputs {
			return nil, fmt.Errorf("expansion: digital: channel %d out of range", ch)
		}
		v := d.analog[ch]
		return []byte{byte(v), byte(v >> 8)}, nil

	case protocol.ArgAllAnalogIn:
		out := make([]byte, 0, DigitalInputs*2)
		for _, v := range d.analog {
			out = append(out, byte(v), byte(v>>8))
		}
		return out, nil

	default:
		return nil, fmt.Errorf("expansion: digital: unsupported get arg %s", arg)
	}
}

// SetAckArg implements Family: digital set-responses echo their own arg.
func (d *Digital) SetAckArg(requestArg protocol.Arg) protocol.Arg { return requestArg }

// ApplySafeState implements Family: outputs fall back to the configured
// default bitmask.
func (d *Digital) ApplySafeState() { d.outMask = d.defaultMask }

var _ Family = (*Digital)(nil)
