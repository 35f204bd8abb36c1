package canio

import (
	"github.com/notnil/canbus"

	"fipos/protocol"
)

// SocketCAN connects through a Linux SocketCAN interface. Positioner
// identifiers exceed the standard 11-bit range, so frames go out as
// extended frames.
type SocketCAN struct {
	sock canbus.Bus
}

// DialSocketCAN opens a SocketCAN interface such as "can0".
func DialSocketCAN(iface string) (*SocketCAN, error) {
	sock, err := canbus.DialSocketCAN(iface)
	if err != nil {
		return nil, err
	}
	return &SocketCAN{sock: sock}, nil
}

func (s *SocketCAN) Send(f protocol.Frame) error {
	return s.sock.Send(canbus.Frame{
		ID:   f.ID,
		Len:  f.Len,
		Data: f.Data,
	})
}

func (s *SocketCAN) Receive() (protocol.Frame, error) {
	cf, err := s.sock.Receive()
	if err != nil {
		return protocol.Frame{}, err
	}
	return protocol.Frame{ID: cf.ID, Len: cf.Len, Data: cf.Data}, nil
}

func (s *SocketCAN) Close() error {
	return s.sock.Close()
}
