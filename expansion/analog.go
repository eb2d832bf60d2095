package expansion

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/arduino-libraries/opta-blueprint/protocol"
)

// AnalogChannels, PwmChannels and LedCount are K, P and the LED count from
// §4.6/§4.9: 8 multi-function channels, 4 PWM channels, 8 LEDs.
const (
	AnalogChannels = 8
	PwmChannels    = 4
	LedCount       = 8
)

// rtd3WireCapable marks the channels (0 and 1) that support the 3-wire
// excite/measure cycle; every channel supports the 2-wire closed form.
var rtd3WireCapable = map[int]bool{0: true, 1: true}

type pwmConfig struct {
	periodUS, pulseUS uint32
}

// Analog implements Family for the analog expansion.
type Analog struct {
	id Identity

	// rtdMu guards adcReading and rtdSample, the two fields touched by
	// both the dispatch goroutine (via Tick) and the background 3-wire
	// excite/measure cycle started by StartRTDExciteCycle.
	rtdMu sync.Mutex

	roles      [AnalogChannels]ChannelRole
	addAdc     [AnalogChannels]bool
	avgWindow  [AnalogChannels]int
	adcReading [AnalogChannels]uint16
	dacCode    [AnalogChannels]uint16
	dacStaged  [AnalogChannels]uint16
	diBitmask  uint8

	rtdUpdateMS uint16
	rtdWires    [AnalogChannels]int // 0 = not RTD, 2 or 3
	rtdSample   [AnalogChannels]ThreeWireSample

	pwm        [PwmChannels]pwmConfig
	ledMask    byte
	gpoMask    byte

	defaultDAC [AnalogChannels]uint16
	defaultPWM [PwmChannels]pwmConfig
}

// NewAnalog returns an Analog family reporting id as its identity, with
// every channel starting HighImpedance per the platform default (§4.4).
func NewAnalog(id Identity) *Analog {
	a := &Analog{id: id, rtdUpdateMS: 1000}
	for i := range a.roles {
		a.roles[i] = RoleHighImpedance
	}
	return a
}

// Identity implements Family.
func (a *Analog) Identity() Identity { return a.id }

// SetADCReading stages the raw 16-bit code a channel in an ADC-like role
// reports to get-adc/get-all-adc; used by simulators/tests.
func (a *Analog) SetADCReading(ch int, code uint16) {
	a.rtdMu.Lock()
	defer a.rtdMu.Unlock()
	if ch >= 0 && ch < AnalogChannels {
		a.adcReading[ch] = code
	}
}

// DACCode returns the last applied (loaded) DAC code for ch, for test
// assertions.
func (a *Analog) DACCode(ch int) uint16 {
	if ch < 0 || ch >= AnalogChannels {
		return 0
	}
	return a.dacCode[ch]
}

// Role returns ch's current channel role.
func (a *Analog) Role(ch int) ChannelRole {
	if ch < 0 || ch >= AnalogChannels {
		return RoleUndefined
	}
	return a.roles[ch]
}

func validChannel(ch int) error {
	if ch < 0 || ch >= AnalogChannels {
		return fmt.Errorf("expansion: analog: channel %d out of range [0,%d)", ch, AnalogChannels)
	}
	return nil
}

// HandleSet implements Family.
func (a *Analog) HandleSet(arg protocol.Arg, payload []byte) ([]byte, error) {
	switch arg {
	case protocol.ArgChAdc:
		// payload: ch, role, avgWindow, overlay-flag, reserved[3]. overlay
		// distinguishes "begin channel as this role" (overlay==0, replaces
		// the role outright) from "stack an additional ADC reading on top
		// of the channel's existing role" (overlay==1); the wire table in
		// §6 does not list a separate arg for the latter, so it rides
		// begin-adc's own arg with this flag.
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		overlay := payload[3] != 0
		if overlay {
			if a.roles[ch].IsADCLike() {
				return nil, fmt.Errorf("expansion: analog: channel %d is already an ADC/RTD role, cannot stack an overlay", ch)
			}
			a.addAdc[ch] = true
			a.avgWindow[ch] = int(payload[2])
			return nil, nil
		}
		role := ChannelRole(payload[1])
		a.setRole(ch, role)
		a.avgWindow[ch] = int(payload[2])
		return nil, nil

	case protocol.ArgChDac:
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		a.setRole(ch, RoleVoltageOutput)
		return nil, nil

	case protocol.ArgSetDac:
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		code := binary.BigEndian.Uint16(payload[1:3])
		apply := payload[3] != 0
		a.dacStaged[ch] = code
		if apply {
			a.loadDACs()
		}
		return nil, nil

	case protocol.ArgSetAllDac:
		a.loadDACs()
		return nil, nil

	case protocol.ArgChRtd:
		ch := int(payload[0])
		wires := int(payload[1])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		if wires == 3 {
			a.setRole(ch, RoleResistance3Wire)
		} else {
			a.setRole(ch, RoleResistance2Wire)
		}
		a.rtdWires[ch] = wires
		return nil, nil

	case protocol.ArgSetRtdUpdateTime:
		a.rtdUpdateMS = binary.BigEndian.Uint16(payload[0:2])
		return nil, nil

	case protocol.ArgChDi:
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		a.setRole(ch, RoleDigitalInput)
		return nil, nil

	case protocol.ArgSetPwm:
		ch := int(payload[0])
		if ch < 0 || ch >= PwmChannels {
			return nil, fmt.Errorf("expansion: analog: pwm channel %d out of range", ch)
		}
		period := binary.BigEndian.Uint32(payload[1:5])
		pulse := binary.BigEndian.Uint32(payload[5:9])
		if !(pulse < period || period == 0) {
			return nil, fmt.Errorf("expansion: analog: pwm pulse %d must be < period %d (or period==0)", pulse, period)
		}
		a.pwm[ch] = pwmConfig{periodUS: period, pulseUS: pulse}
		return nil, nil

	case protocol.ArgSetGpo:
		a.gpoMask = payload[0]
		return nil, nil

	case protocol.ArgSetLed:
		a.ledMask = payload[0]
		return nil, nil

	case protocol.ArgSetDefaultDac:
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		a.defaultDAC[ch] = binary.BigEndian.Uint16(payload[1:3])
		return nil, nil

	case protocol.ArgSetDefaultPwm:
		ch := int(payload[0])
		if ch < 0 || ch >= PwmChannels {
			return nil, fmt.Errorf("expansion: analog: pwm channel %d out of range", ch)
		}
		period := binary.BigEndian.Uint32(payload[1:5])
		pulse := binary.BigEndian.Uint32(payload[5:9])
		a.defaultPWM[ch] = pwmConfig{periodUS: period, pulseUS: pulse}
		return nil, nil

	case protocol.ArgBeginHighImpedance:
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		a.setRole(ch, RoleHighImpedance)
		return nil, nil

	default:
		return nil, fmt.Errorf("expansion: analog: unsupported set arg %s", arg)
	}
}

// setRole applies a role change to ch, clearing any additional-ADC
// overlay per §3's invariant ("updating a channel's role invalidates any
// additional ADC overlay previously stacked on it").
func (a *Analog) setRole(ch int, role ChannelRole) {
	a.roles[ch] = role
	a.addAdc[ch] = false
}

func (a *Analog) loadDACs() {
	for i, v := range a.dacStaged {
		a.dacCode[i] = v
	}
}

// HandleGet implements Family.
func (a *Analog) HandleGet(arg protocol.Arg, payload []byte) ([]byte, error) {
	switch arg {
	case protocol.ArgGetAdc:
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		a.rtdMu.Lock()
		reading := a.adcReading[ch]
		a.rtdMu.Unlock()
		out := make([]byte, 3)
		out[0] = byte(ch)
		binary.BigEndian.PutUint16(out[1:], reading)
		return out, nil

	case protocol.ArgGetAllAdc:
		a.rtdMu.Lock()
		readings := a.adcReading
		a.rtdMu.Unlock()
		out := make([]byte, AnalogChannels*2)
		for i, v := range readings {
			binary.BigEndian.PutUint16(out[i*2:], v)
		}
		return out, nil

	case protocol.ArgGetRtd:
		ch := int(payload[0])
		if err := validChannel(ch); err != nil {
			return nil, err
		}
		ohms := a.readRTD(ch)
		out := make([]byte, 5)
		out[0] = byte(ch)
		binary.BigEndian.PutUint32(out[1:], math.Float32bits(float32(ohms)))
		return out, nil

	case protocol.ArgGetDi:
		return []byte{a.diBitmask}, nil

	default:
		return nil, fmt.Errorf("expansion: analog: unsupported get arg %s", arg)
	}
}

// readRTD computes the resistance for ch according to its configured
// wiring. A 3-wire channel returns the most recently completed
// excite/measure cycle's result (see StartRTDExciteCycle); a 2-wire
// channel applies the closed form directly to the staged ADC reading.
func (a *Analog) readRTD(ch int) float64 {
	a.rtdMu.Lock()
	defer a.rtdMu.Unlock()
	if a.rtdWires[ch] == 3 && rtd3WireCapable[ch] {
		return a.rtdSample[ch].Resistance()
	}
	return TwoWireRTDResistance(a.adcReading[ch])
}

// ExciteCurrent implements Sampler. This simulated peripheral has no real
// excitation source, so it reports a fixed reference current.
func (a *Analog) ExciteCurrent(ch int) (float64, error) {
	return 1.0, nil
}

// VoltagePlus2RL implements Sampler, standing in for the step-2 voltage
// measurement (excite current through RTD plus both lead resistances)
// using the staged ADC reading in place of a real ADC sample.
func (a *Analog) VoltagePlus2RL(ch int) (float64, error) {
	a.rtdMu.Lock()
	defer a.rtdMu.Unlock()
	return float64(a.adcReading[ch]) / 1000, nil
}

// VoltagePlusRL implements Sampler, standing in for the step-3 voltage
// measurement (excite current through RTD plus one lead resistance) using
// the staged ADC reading in place of a real ADC sample.
func (a *Analog) VoltagePlusRL(ch int) (float64, error) {
	a.rtdMu.Lock()
	defer a.rtdMu.Unlock()
	return float64(a.adcReading[ch]) / 1010, nil
}

var _ Sampler = (*Analog)(nil)

// StartRTDExciteCycle launches one background goroutine per 3-wire-capable
// channel that repeatedly drives RunThreeWireRTDCycle against a and stores
// each completed sample, so readRTD never has to block the dispatch path
// waiting on the ~800ms cycle. It runs until ctx is done, the same
// opt-in-from-setup-code shape as WatchButtons.
func (a *Analog) StartRTDExciteCycle(ctx context.Context) {
	for ch := range rtd3WireCapable {
		ch := ch
		go func() {
			for {
				sample, err := RunThreeWireRTDCycle(ctx, a, ch, nil)
				if err != nil {
					return
				}
				a.rtdMu.Lock()
				a.rtdSample[ch] = sample
				a.rtdMu.Unlock()
			}
		}()
	}
}

// SetAckArg implements Family: every analog-family set-response carries
// the fixed protocol.ArgAck regardless of the request it answers.
func (a *Analog) SetAckArg(requestArg protocol.Arg) protocol.Arg { return protocol.ArgAck }

// ApplySafeState implements Family: every DAC and PWM channel returns to
// its recorded safe-state value.
func (a *Analog) ApplySafeState() {
	for i := range a.dacCode {
		a.dacCode[i] = a.defaultDAC[i]
		a.dacStaged[i] = a.defaultDAC[i]
	}
	for i := range a.pwm {
		a.pwm[i] = a.defaultPWM[i]
	}
}

var _ Family = (*Analog)(nil)
