package protocol

import "fmt"

// Cmd is the first byte of every frame, identifying its direction and
// whether it is a request or an answer.
type Cmd byte

// The four frame kinds. Values are wire-exact (see spec §6).
const (
	CmdSet    Cmd = 0x01 // set-request: controller -> peripheral
	CmdGet    Cmd = 0x02 // get-request: controller -> peripheral
	CmdAnsGet Cmd = 0x03 // get-response: peripheral -> controller
	CmdAnsSet Cmd = 0x04 // set-response: peripheral -> controller
)

func (c Cmd) String() string {
	switch c {
	case CmdSet:
		return "set-request"
	case CmdGet:
		return "get-request"
	case CmdAnsGet:
		return "get-response"
	case CmdAnsSet:
		return "set-response"
	default:
		return fmt.Sprintf("Cmd(%#02x)", byte(c))
	}
}

// Arg identifies the operation carried by a frame. Values are wire-exact.
type Arg byte

const (
	// Core, common to every expansion family.
	ArgControllerReset  Arg = 0x01
	ArgAssignAddress    Arg = 0x02
	ArgAddressAndType   Arg = 0x03
	ArgGetVersion       Arg = 0x16
	ArgReboot           Arg = 0xF3
	ArgWriteFlash       Arg = 0x17
	ArgReadFlash        Arg = 0x18
	ArgReadFlashAns     Arg = 0x19 // answer to ArgReadFlash carries this arg, not 0x18
	ArgGetProductType   Arg = 0x25
	ArgConfirmAddressRx Arg = 0x26 // best-effort; discovery sends it without waiting for an answer

	// Digital family.
	ArgDigitalOut        Arg = 0x06
	ArgDigitalIn         Arg = 0x04
	ArgAnalogIn          Arg = 0x05
	ArgAllAnalogIn       Arg = 0x07
	ArgDefaultAndTimeout Arg = 0x08

	// Analog family.
	ArgChAdc              Arg = 0x09
	ArgGetAdc             Arg = 0x0A
	ArgGetAllAdc          Arg = 0x0B
	ArgChDac              Arg = 0x0C
	ArgSetDac             Arg = 0x0D
	ArgChRtd              Arg = 0x0E
	ArgGetRtd             Arg = 0x0F
	ArgSetRtdUpdateTime   Arg = 0x10
	ArgChDi               Arg = 0x11
	ArgGetDi              Arg = 0x12
	ArgSetPwm             Arg = 0x13
	ArgSetGpo             Arg = 0x14
	ArgSetLed             Arg = 0x15
	ArgSetDefaultDac      Arg = 0x20 // also: ArgAck, the generic analog set-ack (different Cmd, no collision)
	ArgSetDefaultPwm      Arg = 0x21
	ArgSetAllDac          Arg = 0x22
	ArgSetTimeout         Arg = 0x23
	ArgBeginHighImpedance Arg = 0x24

	// Display/custom family. These arg values are not part of the
	// original firmware's core protocol table; they occupy a private
	// range (0x80+) reserved for factory-registered custom peripherals,
	// per §4.9's "custom peripherals register a factory... keyed by
	// product string". Each factory is free to define its own arg space
	// above this point without colliding with the documented core table.
	ArgGetButtonEvent Arg = 0x80

	// ArgAck is the fixed arg value every analog-family set-response frame
	// carries, regardless of which set-request it acknowledges. It is the
	// same numeric value as ArgSetDefaultDac, but the two never collide as
	// a (Cmd, Arg) pair: one only ever appears with CmdSet, the other only
	// ever appears with CmdAnsSet.
	ArgAck Arg = 0x20
)

func (a Arg) String() string {
	if name, ok := argNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Arg(%#02x)", byte(a))
}

var argNames = map[Arg]string{
	ArgControllerReset:    "controller-reset",
	ArgAssignAddress:      "assign-address",
	ArgAddressAndType:     "get-address-and-type",
	ArgGetVersion:         "get-version",
	ArgReboot:             "reboot",
	ArgWriteFlash:         "write-flash",
	ArgReadFlash:          "read-flash",
	ArgReadFlashAns:       "read-flash-answer",
	ArgGetProductType:     "get-product-type",
	ArgConfirmAddressRx:   "confirm-address-rx",
	ArgDigitalOut:         "set-digital-outputs",
	ArgDigitalIn:          "get-digital-inputs",
	ArgAnalogIn:           "get-analog-input",
	ArgAllAnalogIn:        "get-all-analog-inputs",
	ArgDefaultAndTimeout:  "default-and-timeout",
	ArgChAdc:              "begin-adc",
	ArgGetAdc:             "get-adc",
	ArgGetAllAdc:          "get-all-adc",
	ArgChDac:              "begin-dac",
	ArgSetDac:             "set-dac",
	ArgChRtd:              "begin-rtd",
	ArgGetRtd:             "get-rtd",
	ArgSetRtdUpdateTime:   "set-rtd-update-time",
	ArgChDi:               "begin-di",
	ArgGetDi:              "get-di",
	ArgSetPwm:             "set-pwm",
	ArgSetGpo:             "set-gpo",
	ArgSetLed:             "set-led",
	ArgSetDefaultDac:      "set-default-dac",
	ArgSetDefaultPwm:      "set-default-pwm",
	ArgSetAllDac:          "set-all-dac",
	ArgSetTimeout:         "set-timeout",
	ArgBeginHighImpedance: "begin-high-impedance",
	ArgGetButtonEvent:     "get-button-event",
}

// CRC8Enabled controls whether Build/Parse append/require a trailing CRC-8
// byte. The original firmware makes this a compile-time switch
// (BP_USE_CRC); it is exposed as a package variable here since this module
// has to support both build configurations from one binary (e.g. a
// controller talking to a mixed-firmware chain during a rolling upgrade).
var CRC8Enabled = true

type contractKey struct {
	cmd Cmd
	arg Arg
}

// contracts declares, for every (cmd, arg) pair this protocol defines, the
// exact payload length a conforming frame must carry. Values are grounded
// on Protocol.h / OptaAnalogProtocol.h of the original firmware; three
// analog safe-state setters (set-default-dac, set-default-pwm,
// set-timeout) are not present in the retrieved firmware snapshot and are
// sized by analogy with their sibling commands (set-dac, set-pwm) — see
// DESIGN.md.
var contracts = map[contractKey]int{
	{CmdSet, ArgControllerReset}: 1,
	{CmdSet, ArgAssignAddress}:   1,

	{CmdGet, ArgAddressAndType}:   0,
	{CmdAnsGet, ArgAddressAndType}: 2,

	{CmdGet, ArgGetVersion}:    0,
	{CmdAnsGet, ArgGetVersion}: 3,

	{CmdSet, ArgReboot}:    2,
	{CmdAnsSet, ArgReboot}: 1,

	{CmdSet, ArgWriteFlash}: 35,

	{CmdGet, ArgReadFlash}:    3,
	{CmdAnsGet, ArgReadFlashAns}: 35,

	{CmdGet, ArgGetProductType}:    0,
	{CmdAnsGet, ArgGetProductType}: 33,

	{CmdSet, ArgConfirmAddressRx}: 2,

	// Digital family.
	{CmdSet, ArgDigitalOut}:    1,
	{CmdAnsSet, ArgDigitalOut}: 0,

	{CmdGet, ArgDigitalIn}:    0,
	{CmdAnsGet, ArgDigitalIn}: 2,

	{CmdGet, ArgAnalogIn}:    1,
	{CmdAnsGet, ArgAnalogIn}: 2,

	{CmdGet, ArgAllAnalogIn}:    0,
	{CmdAnsGet, ArgAllAnalogIn}: 32,

	{CmdSet, ArgDefaultAndTimeout}:    3,
	{CmdAnsSet, ArgDefaultAndTimeout}: 0,

	// Analog family: all set-requests below acknowledge with (CmdAnsSet, ArgAck, 0).
	{CmdSet, ArgChAdc}: 7,
	{CmdGet, ArgGetAdc}:    1,
	{CmdAnsGet, ArgGetAdc}: 3,
	{CmdGet, ArgGetAllAdc}:    0,
	{CmdAnsGet, ArgGetAllAdc}: 16,
	{CmdSet, ArgChDac}:  5,
	{CmdSet, ArgSetDac}: 4,
	{CmdSet, ArgChRtd}:  6,
	{CmdGet, ArgGetRtd}:    1,
	{CmdAnsGet, ArgGetRtd}: 5,
	{CmdSet, ArgSetRtdUpdateTime}: 2,
	{CmdSet, ArgChDi}: 9,
	{CmdGet, ArgGetDi}:    0,
	{CmdAnsGet, ArgGetDi}: 1,
	{CmdSet, ArgSetPwm}:             9,
	{CmdSet, ArgSetGpo}:             1,
	{CmdSet, ArgSetLed}:             1,
	{CmdSet, ArgSetDefaultDac}:      3,
	{CmdSet, ArgSetDefaultPwm}:      9,
	{CmdSet, ArgSetAllDac}:          0,
	{CmdSet, ArgSetTimeout}:         2,
	{CmdSet, ArgBeginHighImpedance}: 1,

	{CmdAnsSet, ArgAck}: 0,

	// Display/custom family.
	{CmdGet, ArgGetButtonEvent}:    0,
	{CmdAnsGet, ArgGetButtonEvent}: 2,
}

// Contract reports the declared payload length for the given (cmd, arg)
// pair, and whether that pair is known to this protocol at all.
func Contract(cmd Cmd, arg Arg) (length int, ok bool) {
	length, ok = contracts[contractKey{cmd, arg}]
	return length, ok
}
