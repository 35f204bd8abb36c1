package canio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tarm/serial"

	"fipos/protocol"
)

// SLCAN connects through a Lawicel-style serial CAN adapter. Positioner
// frames use 29-bit identifiers, so only the extended "T" record type
// is spoken.
type SLCAN struct {
	port io.ReadWriteCloser
	r    *bufio.Reader
}

// DialSLCAN opens the adapter at device and configures the bus for the
// petal's 500 kbit/s rate.
func DialSLCAN(device string, baud int) (*SLCAN, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 500 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open slcan adapter %s: %w", device, err)
	}
	s := &SLCAN{port: port, r: bufio.NewReader(port)}
	for _, cmd := range []string{"C\r", "S6\r", "O\r"} {
		if _, err := s.port.Write([]byte(cmd)); err != nil {
			port.Close()
			return nil, fmt.Errorf("adapter setup: %w", err)
		}
	}
	return s, nil
}

func (s *SLCAN) Send(f protocol.Frame) error {
	_, err := s.port.Write([]byte(encodeSLCAN(f)))
	return err
}

// Receive blocks for the next extended data frame, skipping command
// acknowledgements and any record types the adapter emits unasked.
func (s *SLCAN) Receive() (protocol.Frame, error) {
	for {
		line, err := s.r.ReadString('\r')
		if err != nil {
			return protocol.Frame{}, err
		}
		f, err := parseSLCAN(strings.TrimSuffix(line, "\r"))
		if err == errNotAFrame {
			continue
		}
		return f, err
	}
}

func (s *SLCAN) Close() error {
	_, _ = s.port.Write([]byte("C\r"))
	return s.port.Close()
}

// encodeSLCAN renders one extended frame as a "T" record:
// T + 8 hex id digits + length digit + 2 hex digits per payload byte.
func encodeSLCAN(f protocol.Frame) string {
	var b strings.Builder
	fmt.Fprintf(&b, "T%08X%d", f.ID, f.Len)
	for _, d := range f.Data[:f.Len] {
		fmt.Fprintf(&b, "%02X", d)
	}
	b.WriteString("\r")
	return b.String()
}

var errNotAFrame = fmt.Errorf("slcan: not an extended data frame")

func parseSLCAN(line string) (protocol.Frame, error) {
	if len(line) == 0 || line[0] != 'T' {
		return protocol.Frame{}, errNotAFrame
	}
	if len(line) < 10 {
		return protocol.Frame{}, fmt.Errorf("slcan: short record %q", line)
	}
	id, err := strconv.ParseUint(line[1:9], 16, 32)
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("slcan: bad identifier in %q: %w", line, err)
	}
	n, err := strconv.Atoi(line[9:10])
	if err != nil || n > 8 {
		return protocol.Frame{}, fmt.Errorf("slcan: bad length in %q", line)
	}
	if len(line) != 10+2*n {
		return protocol.Frame{}, fmt.Errorf("slcan: length mismatch in %q", line)
	}
	f := protocol.Frame{ID: uint32(id), Len: uint8(n)}
	for i := 0; i < n; i++ {
		v, err := strconv.ParseUint(line[10+2*i:12+2*i], 16, 8)
		if err != nil {
			return protocol.Frame{}, fmt.Errorf("slcan: bad payload in %q: %w", line, err)
		}
		f.Data[i] = byte(v)
	}
	return f, nil
}
