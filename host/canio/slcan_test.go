package canio

import (
	"testing"

	"fipos/protocol"
)

func TestEncodeSLCAN(t *testing.T) {
	f := protocol.Command(1234, protocol.CmdGetFirmwareVer, nil)
	if got, want := encodeSLCAN(f), "T0004D20B0\r"; got != want {
		t.Errorf("encodeSLCAN = %q, want %q", got, want)
	}

	f = protocol.NewMove(20000, protocol.ExecImmediate, protocol.MoveM0CreepCW, 3600, 0)
	want := "T004E2004600000E100000\r"
	if got := encodeSLCAN(f); got != want {
		t.Errorf("encodeSLCAN = %q, want %q", got, want)
	}
}

func TestParseSLCANRoundTrip(t *testing.T) {
	frames := []protocol.Frame{
		protocol.Command(7, protocol.CmdGetTemperature, nil),
		protocol.NewSetPeriods(42, 2, 2, 18),
		protocol.Response(9, 8, 0xDEADBEEF, 0x01020304),
	}
	for _, f := range frames {
		line := encodeSLCAN(f)
		got, err := parseSLCAN(line[:len(line)-1])
		if err != nil {
			t.Fatalf("parseSLCAN(%q): %v", line, err)
		}
		if got != f {
			t.Errorf("round trip: got %+v, want %+v", got, f)
		}
	}
}

func TestParseSLCANSkipsNonFrames(t *testing.T) {
	for _, line := range []string{"", "z", "t1238AABB"} {
		if _, err := parseSLCAN(line); err != errNotAFrame {
			t.Errorf("parseSLCAN(%q) err = %v, want errNotAFrame", line, err)
		}
	}
}

func TestParseSLCANRejectsMalformed(t *testing.T) {
	for _, line := range []string{"T123", "T0004D20Bx", "T0004D2029AAB", "T0004D202AABBCC"} {
		if _, err := parseSLCAN(line); err == nil || err == errNotAFrame {
			t.Errorf("parseSLCAN(%q) err = %v, want parse error", line, err)
		}
	}
}
