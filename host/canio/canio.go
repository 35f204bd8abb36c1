// Package canio gives host tools a uniform way onto the positioner CAN
// bus, either through a SocketCAN interface or a serial SLCAN adapter.
package canio

import "fipos/protocol"

// Bus is a host-side connection to the positioner bus.
type Bus interface {
	Send(f protocol.Frame) error
	Receive() (protocol.Frame, error)
	Close() error
}
