package protocol

import "testing"

func TestBuildParseRoundTrip(t *testing.T) {
	raw, err := BuildGet(ArgGetVersion, nil)
	if err != nil {
		t.Fatalf("BuildGet: %v", err)
	}
	f, err := Parse(raw, CmdGet, ArgGetVersion)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Cmd != CmdGet || f.Arg != ArgGetVersion || len(f.Payload) != 0 {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestBuildParseRoundTripWithPayload(t *testing.T) {
	raw, err := BuildSet(ArgAssignAddress, []byte{0x0C})
	if err != nil {
		t.Fatalf("BuildSet: %v", err)
	}
	f, err := Parse(raw, CmdSet, ArgAssignAddress)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Payload) != 1 || f.Payload[0] != 0x0C {
		t.Fatalf("unexpected payload: %v", f.Payload)
	}
}

func TestParseRejectsWrongLen(t *testing.T) {
	raw, _ := BuildSet(ArgAssignAddress, []byte{0x0C})
	raw[2] = 2 // lie about the length without adding a byte
	if _, err := Parse(raw, CmdSet, ArgAssignAddress); err == nil {
		t.Fatalf("expected an error for a mismatched declared length")
	}
}

func TestParseRejectsWrongArg(t *testing.T) {
	raw, _ := BuildSet(ArgAssignAddress, []byte{0x0C})
	if _, err := Parse(raw, CmdSet, ArgControllerReset); err == nil {
		t.Fatalf("expected an error for an unexpected arg")
	}
}

func TestParseRejectsWrongCmd(t *testing.T) {
	raw, _ := BuildSet(ArgAssignAddress, []byte{0x0C})
	if _, err := Parse(raw, CmdGet, ArgAssignAddress); err == nil {
		t.Fatalf("expected an error for an unexpected cmd")
	}
}

func TestParseRejectsShortBuffer(t *testing.T) {
	if _, err := Parse([]byte{0x01, 0x02}, CmdSet, ArgAssignAddress); err == nil {
		t.Fatalf("expected an error for a truncated header")
	}
}

// TestParseRejectsSingleBitFlips exercises the property that every
// single-bit corruption of a well-formed frame is caught, either by the
// length/arg/cmd checks or by the CRC, so a receiver never silently
// accepts a corrupted frame.
func TestParseRejectsSingleBitFlips(t *testing.T) {
	good, err := BuildSet(ArgChDac, []byte{0x01, 0x02, 0x03, 0x04, 0x05})
	if err != nil {
		t.Fatalf("BuildSet: %v", err)
	}
	if _, err := Parse(good, CmdSet, ArgChDac); err != nil {
		t.Fatalf("Parse of an unmodified frame failed: %v", err)
	}

	for byteIdx := range good {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), good...)
			corrupt[byteIdx] ^= 1 << bit
			if _, err := Parse(corrupt, CmdSet, ArgChDac); err == nil {
				t.Fatalf("single-bit flip at byte %d bit %d was accepted", byteIdx, bit)
			}
		}
	}
}

func TestCRC8KnownVector(t *testing.T) {
	if got := crc8([]byte("123456789"), 0); got != 0xF4 {
		t.Fatalf("crc8(\"123456789\") = %#02x, want 0xf4", got)
	}

	data := []byte{byte(CmdSet), byte(ArgControllerReset), 1, 0xAB}
	c := crc8(data, 0)
	if !VerifyCRC8(data, c) {
		t.Fatalf("VerifyCRC8 disagreed with crc8 for its own output")
	}
	if VerifyCRC8(data, c^0xFF) {
		t.Fatalf("VerifyCRC8 accepted an obviously wrong crc byte")
	}
}

func TestAnswerWireLen(t *testing.T) {
	n, err := AnswerWireLen(CmdAnsGet, ArgGetVersion)
	if err != nil {
		t.Fatalf("AnswerWireLen: %v", err)
	}
	want := HeaderLen + 3 + 1 // payload + crc byte
	if n != want {
		t.Fatalf("AnswerWireLen = %d, want %d", n, want)
	}
}

func TestAnswerWireLenUnknownContract(t *testing.T) {
	if _, err := AnswerWireLen(CmdSet, Arg(0xEE)); err == nil {
		t.Fatalf("expected an error for an unknown (cmd, arg) pair")
	}
}
