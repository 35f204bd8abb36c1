package core

import "fipos/protocol"

// Bus transmits response frames back to the host. Reception goes the
// other way: the target's CAN driver pushes accepted frames into the
// dispatcher's FrameFIFO from interrupt context.
type Bus interface {
	Send(f protocol.Frame) error
}

// AddressFilter reconfigures the controller's acceptance filters after
// the positioner id changes. Filters pass frames addressed to the id
// and to the broadcast address.
type AddressFilter interface {
	SetAddress(id uint32) error
}

// Pumper drains a polled receive path into the frame FIFO. Controllers
// whose interrupt line is level-asserted need this: a frame that lands
// while the line is already low raises no edge, so the wait loops poll
// the chip as well.
type Pumper interface {
	Pump()
}

var canDriver Bus

func SetCANDriver(d Bus) {
	canDriver = d
}

func MustCANDriver() Bus {
	if canDriver == nil {
		panic("core: no CAN driver registered")
	}
	return canDriver
}
