package controller

import (
	"encoding/binary"
	"math"

	"github.com/arduino-libraries/opta-blueprint/expansion"
	"github.com/arduino-libraries/opta-blueprint/protocol"
)

func (h AnalogHandle) checkType() error {
	_, err := h.requireType(expansion.TypeAnalog)
	return err
}

// BeginChannel configures ch to start operating as role, with avgWindow
// samples of averaging, replacing whatever role the channel previously
// held and clearing any additional-ADC overlay recorded for it.
func (h AnalogHandle) BeginChannel(ch int, role expansion.ChannelRole, avgWindow int) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := []byte{byte(ch), byte(role), byte(avgWindow), 0, 0, 0, 0}
	if err := h.transactSet(protocol.ArgChAdc, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindChannel, Channel: ch}, protocol.ArgChAdc, payload)
	s.Shadow.ClearOverlay(ch)
	return nil
}

// AddVoltageADCOverlay stacks an additional ADC reading on top of ch's
// current (non-ADC) role, per §4.4. It is rejected by the peripheral if
// ch already holds an ADC-like role.
func (h AnalogHandle) AddVoltageADCOverlay(ch int, avgWindow int) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := []byte{byte(ch), 0, byte(avgWindow), 1, 0, 0, 0}
	if err := h.transactSet(protocol.ArgChAdc, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindAddAdc, Channel: ch}, protocol.ArgChAdc, payload)
	return nil
}

// BeginDAC configures ch to operate as a voltage output.
func (h AnalogHandle) BeginDAC(ch int) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := []byte{byte(ch), 0, 0, 0, 0}
	if err := h.transactSet(protocol.ArgChDac, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindChannel, Channel: ch}, protocol.ArgChDac, payload)
	return nil
}

// SetDAC stages code on ch's DAC and, if apply is true, loads it
// immediately. The peripheral applies the load as a set-all-dac strobe,
// so every other channel's staged code is loaded at the same time.
func (h AnalogHandle) SetDAC(ch int, code uint16, apply bool) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := make([]byte, 4)
	payload[0] = byte(ch)
	binary.BigEndian.PutUint16(payload[1:3], code)
	if apply {
		payload[3] = 1
	}
	if err := h.transactSet(protocol.ArgSetDac, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindDacValue, Channel: ch}, protocol.ArgSetDac, payload)
	return nil
}

// LoadAllDACs strobes every staged DAC code into effect simultaneously.
func (h AnalogHandle) LoadAllDACs() error {
	if err := h.checkType(); err != nil {
		return err
	}
	return h.transactSet(protocol.ArgSetAllDac, nil, protocol.ArgAck)
}

// BeginRTD configures ch for resistance-temperature measurement with the
// given wiring (2 or 3 wires).
func (h AnalogHandle) BeginRTD(ch int, wires int) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := []byte{byte(ch), byte(wires), 0, 0, 0, 0}
	if err := h.transactSet(protocol.ArgChRtd, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindChannel, Channel: ch}, protocol.ArgChRtd, payload)
	return nil
}

// SetRTDUpdateTime sets the RTD refresh interval shared by every RTD
// channel on this slot.
func (h AnalogHandle) SetRTDUpdateTime(ms uint16) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := make([]byte, 2)
	binary.BigEndian.PutUint16(payload, ms)
	if err := h.transactSet(protocol.ArgSetRtdUpdateTime, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindRtdUpdateTime}, protocol.ArgSetRtdUpdateTime, payload)
	return nil
}

// BeginDigitalInput configures ch as a digital input.
func (h AnalogHandle) BeginDigitalInput(ch int) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := make([]byte, 9)
	payload[0] = byte(ch)
	if err := h.transactSet(protocol.ArgChDi, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindChannel, Channel: ch}, protocol.ArgChDi, payload)
	return nil
}

// SetPWM configures ch's period and pulse width in microseconds; pulse
// must be less than period, or period may be zero to stop the channel.
func (h AnalogHandle) SetPWM(ch int, periodUS, pulseUS uint32) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := make([]byte, 9)
	payload[0] = byte(ch)
	binary.BigEndian.PutUint32(payload[1:5], periodUS)
	binary.BigEndian.PutUint32(payload[5:9], pulseUS)
	if err := h.transactSet(protocol.ArgSetPwm, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindPwm, Channel: ch}, protocol.ArgSetPwm, payload)
	return nil
}

// SetGPO programs the general-purpose-output bitmask.
func (h AnalogHandle) SetGPO(mask byte) error {
	if err := h.checkType(); err != nil {
		return err
	}
	return h.transactSet(protocol.ArgSetGpo, []byte{mask}, protocol.ArgAck)
}

// SetLED programs the onboard status LED bitmask.
func (h AnalogHandle) SetLED(mask byte) error {
	if err := h.checkType(); err != nil {
		return err
	}
	if err := h.transactSet(protocol.ArgSetLed, []byte{mask}, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindLed}, protocol.ArgSetLed, []byte{mask})
	return nil
}

// SetDefaultDAC records ch's safe-state DAC code, applied when the
// watchdog expires.
func (h AnalogHandle) SetDefaultDAC(ch int, code uint16) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := make([]byte, 3)
	payload[0] = byte(ch)
	binary.BigEndian.PutUint16(payload[1:3], code)
	if err := h.transactSet(protocol.ArgSetDefaultDac, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindDacDefault, Channel: ch}, protocol.ArgSetDefaultDac, payload)
	return nil
}

// SetDefaultPWM records ch's safe-state PWM configuration, applied when
// the watchdog expires.
func (h AnalogHandle) SetDefaultPWM(ch int, periodUS, pulseUS uint32) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := make([]byte, 9)
	payload[0] = byte(ch)
	binary.BigEndian.PutUint32(payload[1:5], periodUS)
	binary.BigEndian.PutUint32(payload[5:9], pulseUS)
	if err := h.transactSet(protocol.ArgSetDefaultPwm, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindPwmDefault, Channel: ch}, protocol.ArgSetDefaultPwm, payload)
	return nil
}

// SetTimeout sets the watchdog timeout in milliseconds;
// expansion.NeverTimeout disables it.
func (h AnalogHandle) SetTimeout(ms uint16) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, ms)
	if err := h.transactSet(protocol.ArgSetTimeout, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindTimeout}, protocol.ArgSetTimeout, payload)
	return nil
}

// BeginHighImpedance returns ch to the high-impedance platform default.
func (h AnalogHandle) BeginHighImpedance(ch int) error {
	if err := h.checkType(); err != nil {
		return err
	}
	payload := []byte{byte(ch)}
	if err := h.transactSet(protocol.ArgBeginHighImpedance, payload, protocol.ArgAck); err != nil {
		return err
	}
	s, _ := h.slot()
	s.Shadow.Record(ShadowKey{Kind: KindChannel, Channel: ch}, protocol.ArgBeginHighImpedance, payload)
	return nil
}

// ADC returns ch's last-sampled ADC code.
func (h AnalogHandle) ADC(ch int) (uint16, error) {
	if err := h.checkType(); err != nil {
		return 0, err
	}
	payload, err := h.transactGet(protocol.ArgGetAdc, []byte{byte(ch)})
	if err != nil {
		return 0, err
	}
	if len(payload) != 3 {
		return 0, ErrProtocolMismatch
	}
	return uint16(payload[1])<<8 | uint16(payload[2]), nil
}

// AllADC returns every channel's last-sampled ADC code.
func (h AnalogHandle) AllADC() ([expansion.AnalogChannels]uint16, error) {
	var out [expansion.AnalogChannels]uint16
	if err := h.checkType(); err != nil {
		return out, err
	}
	payload, err := h.transactGet(protocol.ArgGetAllAdc, nil)
	if err != nil {
		return out, err
	}
	if len(payload) != expansion.AnalogChannels*2 {
		return out, ErrProtocolMismatch
	}
	for i := range out {
		out[i] = uint16(payload[i*2])<<8 | uint16(payload[i*2+1])
	}
	return out, nil
}

// RTD returns ch's measured resistance in ohms.
func (h AnalogHandle) RTD(ch int) (float64, error) {
	if err := h.checkType(); err != nil {
		return 0, err
	}
	payload, err := h.transactGet(protocol.ArgGetRtd, []byte{byte(ch)})
	if err != nil {
		return 0, err
	}
	if len(payload) != 5 {
		return 0, ErrProtocolMismatch
	}
	bits := uint32(payload[1])<<24 | uint32(payload[2])<<16 | uint32(payload[3])<<8 | uint32(payload[4])
	return float64(math.Float32frombits(bits)), nil
}

// DigitalInputs returns the digital-input-configured channel bitmask.
func (h AnalogHandle) DigitalInputs() (byte, error) {
	if err := h.checkType(); err != nil {
		return 0, err
	}
	payload, err := h.transactGet(protocol.ArgGetDi, nil)
	if err != nil {
		return 0, err
	}
	if len(payload) != 1 {
		return 0, ErrProtocolMismatch
	}
	return payload[0], nil
}
