package client

import (
	"testing"
	"time"

	"fipos/protocol"
)

// loopBus records sent frames and feeds back queued replies.
type loopBus struct {
	sent    []protocol.Frame
	replies []protocol.Frame
}

func (b *loopBus) Send(f protocol.Frame) error {
	b.sent = append(b.sent, f)
	return nil
}

func (b *loopBus) Receive() (protocol.Frame, error) {
	if len(b.replies) == 0 {
		return protocol.Frame{}, ErrNoReply
	}
	f := b.replies[0]
	b.replies = b.replies[1:]
	return f, nil
}

func (b *loopBus) Close() error { return nil }

func (b *loopBus) reply(posID uint32, n uint8, lower, upper uint32) {
	b.replies = append(b.replies, protocol.Response(posID, n, lower, upper))
}

func TestQueryFirmwareVersion(t *testing.T) {
	bus := &loopBus{}
	bus.reply(55, 1, 10, 0)
	c := New(bus, 55)
	v, err := c.FirmwareVersion()
	if err != nil {
		t.Fatal(err)
	}
	if v != 10 {
		t.Fatalf("version = %d", v)
	}
	if got := bus.sent[0].ID; got != 55<<8|protocol.CmdGetFirmwareVer {
		t.Fatalf("request id = %#x", got)
	}
}

func TestRequestSkipsForeignTraffic(t *testing.T) {
	bus := &loopBus{}
	bus.reply(99, 2, 123, 0) // someone else's positioner
	bus.reply(55, 2, 700, 0)
	c := New(bus, 55)
	v, err := c.Temperature()
	if err != nil {
		t.Fatal(err)
	}
	if v != 700 {
		t.Fatalf("temperature = %d", v)
	}
}

func TestTableChecksumAgreesWithFirmware(t *testing.T) {
	bus := &loopBus{}
	c := New(bus, 55)

	if err := c.QueueMove(protocol.MoveM0CruiseCW, 500, 0); err != nil {
		t.Fatal(err)
	}

	// The positioner accumulates the same sum over the same frames.
	var device protocol.BitSum
	for _, f := range bus.sent {
		device.Add(f)
	}
	last := protocol.NewMove(55, protocol.ExecLast, protocol.MoveM1CreepCCW, 900, 0)
	device.Add(last)
	bus.reply(55, 5, device.Value(), protocol.TableStatusMatch)

	if err := c.FinishTable(protocol.MoveM1CreepCCW, 900, 0); err != nil {
		t.Fatal(err)
	}

	// The validate request carried the same sum the device computed.
	req := bus.sent[len(bus.sent)-1]
	if req.Command() != protocol.CmdTableStatus {
		t.Fatalf("last frame command = %d", req.Command())
	}
	if got := protocol.U32(req.Data[0], req.Data[1], req.Data[2], req.Data[3]); got != device.Value() {
		t.Fatalf("host sum %#x, device sum %#x", got, device.Value())
	}
}

func TestTableMismatchReported(t *testing.T) {
	bus := &loopBus{}
	c := New(bus, 55)
	bus.reply(55, 5, 1, protocol.TableStatusMismatch)
	if err := c.FinishTable(protocol.MoveM0CreepCW, 10, 0); err == nil {
		t.Fatal("mismatch not surfaced")
	}
	if len(c.queued) != 0 || c.sum.Value() != 0 {
		t.Fatal("local table mirror not reset")
	}
}

func TestFlashSplitsImageIntoPackets(t *testing.T) {
	bus := &loopBus{}
	c := New(bus, 55)
	bus.reply(55, 8, 0x04030201, 0x08070605) // activation ack
	bus.reply(55, 1, 1, 0)                   // verify ack

	image := make([]byte, 402) // 101 words, tail padded
	for i := range image {
		image[i] = byte(i)
	}
	report, err := c.Flash(image, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK {
		t.Fatalf("report = %v", report)
	}

	// activation + size + parts + 101 packets + verify
	if len(bus.sent) != 3+101+1 {
		t.Fatalf("sent %d frames", len(bus.sent))
	}
	size := bus.sent[1]
	if size.Command() != protocol.BootCmdCodeSize {
		t.Fatalf("second frame command = %d", size.Command())
	}
}

func TestFlashErrorReportParsed(t *testing.T) {
	bus := &loopBus{}
	c := New(bus, 55)
	bus.reply(55, 8, 0x04030201, 0x08070605)
	bus.replies = append(bus.replies, protocol.Frame{
		ID:   55 + protocol.ResponseFlag,
		Len:  8,
		Data: [8]byte{0, 0, 0, 0, 3, 0, 0, 0},
	})
	report, err := c.Flash([]byte{1, 2, 3, 4}, time.Duration(0))
	if err != nil {
		t.Fatal(err)
	}
	if report.OK || report.Checksum != 3 {
		t.Fatalf("report = %+v", report)
	}
}
