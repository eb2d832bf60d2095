package expansion

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/arduino-libraries/opta-blueprint/protocol"
)

func TestAnalogSetDacAndLoad(t *testing.T) {
	a := NewAnalog(Identity{Type: TypeAnalog, Product: "analog"})
	if _, err := a.HandleSet(protocol.ArgChDac, []byte{3, 0, 0, 0, 0}); err != nil {
		t.Fatalf("begin-dac: %v", err)
	}

	payload := make([]byte, 4)
	payload[0] = 3
	binary.BigEndian.PutUint16(payload[1:3], 4096)
	payload[3] = 1 // apply
	if _, err := a.HandleSet(protocol.ArgSetDac, payload); err != nil {
		t.Fatalf("set-dac: %v", err)
	}
	if got := a.DACCode(3); got != 4096 {
		t.Fatalf("DACCode(3) = %d, want 4096", got)
	}
}

func TestAnalogRoleChangeClearsOverlay(t *testing.T) {
	a := NewAnalog(Identity{})
	if _, err := a.HandleSet(protocol.ArgChAdc, []byte{2, byte(RoleVoltageInput), 4, 0, 0, 0, 0}); err != nil {
		t.Fatalf("begin-adc: %v", err)
	}
	a.addAdc[2] = true
	if _, err := a.HandleSet(protocol.ArgBeginHighImpedance, []byte{2}); err != nil {
		t.Fatalf("begin-high-impedance: %v", err)
	}
	if a.addAdc[2] {
		t.Fatalf("additional-ADC overlay survived a role change")
	}
	if a.Role(2) != RoleHighImpedance {
		t.Fatalf("Role(2) = %s, want high-impedance", a.Role(2))
	}
}

func TestAnalogSetPwmValidatesPulseLessThanPeriod(t *testing.T) {
	a := NewAnalog(Identity{})
	payload := make([]byte, 9)
	payload[0] = 0
	binary.BigEndian.PutUint32(payload[1:5], 1000)
	binary.BigEndian.PutUint32(payload[5:9], 2000) // pulse > period: invalid
	if _, err := a.HandleSet(protocol.ArgSetPwm, payload); err == nil {
		t.Fatalf("expected an error for pulse_us >= period_us")
	}
}

func TestAnalogSetPwmZeroPeriodStopsChannel(t *testing.T) {
	a := NewAnalog(Identity{})
	payload := make([]byte, 9)
	// period == 0 with any pulse is explicitly allowed: it stops the channel.
	binary.BigEndian.PutUint32(payload[5:9], 500)
	if _, err := a.HandleSet(protocol.ArgSetPwm, payload); err != nil {
		t.Fatalf("HandleSet: %v", err)
	}
}

func TestAnalogAckArgIsAlwaysGenericAck(t *testing.T) {
	a := NewAnalog(Identity{})
	if got := a.SetAckArg(protocol.ArgSetDac); got != protocol.ArgAck {
		t.Fatalf("SetAckArg = %s, want %s", got, protocol.ArgAck)
	}
	if got := a.SetAckArg(protocol.ArgSetLed); got != protocol.ArgAck {
		t.Fatalf("SetAckArg = %s, want %s", got, protocol.ArgAck)
	}
}

func TestAnalogApplySafeState(t *testing.T) {
	a := NewAnalog(Identity{})
	defPayload := make([]byte, 3)
	defPayload[0] = 0
	binary.BigEndian.PutUint16(defPayload[1:3], 0)
	if _, err := a.HandleSet(protocol.ArgSetDefaultDac, defPayload); err != nil {
		t.Fatalf("set-default-dac: %v", err)
	}

	setPayload := make([]byte, 4)
	setPayload[0] = 0
	binary.BigEndian.PutUint16(setPayload[1:3], 1000)
	setPayload[3] = 1
	if _, err := a.HandleSet(protocol.ArgSetDac, setPayload); err != nil {
		t.Fatalf("set-dac: %v", err)
	}
	if got := a.DACCode(0); got != 1000 {
		t.Fatalf("DACCode(0) = %d, want 1000", got)
	}

	a.ApplySafeState()
	if got := a.DACCode(0); got != 0 {
		t.Fatalf("DACCode(0) after ApplySafeState = %d, want 0", got)
	}
}

func TestAnalogSamplerStandsInForAdcReading(t *testing.T) {
	a := NewAnalog(Identity{})
	a.SetADCReading(0, 2020)

	if i, err := a.ExciteCurrent(0); err != nil || i != 1.0 {
		t.Fatalf("ExciteCurrent(0) = %v, %v, want 1.0, nil", i, err)
	}
	if v, err := a.VoltagePlus2RL(0); err != nil || v != 2020.0/1000 {
		t.Fatalf("VoltagePlus2RL(0) = %v, %v, want %v, nil", v, err, 2020.0/1000)
	}
	if v, err := a.VoltagePlusRL(0); err != nil || v != 2020.0/1010 {
		t.Fatalf("VoltagePlusRL(0) = %v, %v, want %v, nil", v, err, 2020.0/1010)
	}
}

// TestRunThreeWireRTDCycleDrivesAnalogDirectly is the regression case for
// RunThreeWireRTDCycle being wired to a real caller: it runs the cycle
// synchronously against an *Analog (not StartRTDExciteCycle's background
// goroutine) and checks the returned sample matches the same closed form
// readRTD itself applies.
func TestRunThreeWireRTDCycleDrivesAnalogDirectly(t *testing.T) {
	old := rtdStepPeriod
	rtdStepPeriod = time.Microsecond
	defer func() { rtdStepPeriod = old }()

	a := NewAnalog(Identity{})
	a.SetADCReading(1, 4040)

	sample, err := RunThreeWireRTDCycle(context.Background(), a, 1, nil)
	if err != nil {
		t.Fatalf("RunThreeWireRTDCycle: %v", err)
	}
	want := ThreeWireRTDResistance(1.0, 4040.0/1000, 4040.0/1010)
	if got := sample.Resistance(); got != want {
		t.Fatalf("sample.Resistance() = %v, want %v", got, want)
	}
}

// TestStartRTDExciteCycleFeedsReadRTD confirms the background cycle's
// output is what readRTD returns for a 3-wire channel, rather than the
// hand-rolled arithmetic readRTD previously inlined.
func TestStartRTDExciteCycleFeedsReadRTD(t *testing.T) {
	old := rtdStepPeriod
	rtdStepPeriod = time.Microsecond
	defer func() { rtdStepPeriod = old }()

	a := NewAnalog(Identity{})
	a.SetADCReading(0, 3000)
	a.rtdWires[0] = 3

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.StartRTDExciteCycle(ctx)

	want := ThreeWireRTDResistance(1.0, 3000.0/1000, 3000.0/1010)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if got := a.readRTD(0); got == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("readRTD(0) never reflected the background excite cycle's result")
}

func TestTwoWireRTDResistance(t *testing.T) {
	got := TwoWireRTDResistance(0)
	if got != 0 {
		t.Fatalf("TwoWireRTDResistance(0) = %v, want 0", got)
	}
	if r := TwoWireRTDResistance(65535); r <= 0 {
		t.Fatalf("TwoWireRTDResistance(65535) = %v, want a saturated positive value", r)
	}
}
