//go:build tinygo

package f103hw

import (
	"machine"

	"tinygo.org/x/drivers/mcp2515"

	"fipos/protocol"
)

// CANBus adapts the MCP2515 transceiver to the dispatcher. The chip's
// hardware filters are too narrow for the extended-id scheme, so
// acceptance checks run in software against the stored address.
type CANBus struct {
	dev  *mcp2515.Device
	rx   *protocol.FrameFIFO
	addr uint32
}

// ConfigureCAN brings the transceiver up at the bus rate every
// positioner speaks.
func ConfigureCAN(spi machine.SPI, rx *protocol.FrameFIFO, addr uint32) (*CANBus, error) {
	if err := spi.Configure(machine.SPIConfig{
		Frequency: 8_000_000,
	}); err != nil {
		return nil, err
	}
	dev := mcp2515.New(spi, PinCANCS)
	dev.Configure()
	if err := dev.Begin(mcp2515.CAN500kBps, mcp2515.Clock8MHz); err != nil {
		return nil, err
	}
	return &CANBus{dev: dev, rx: rx, addr: addr}, nil
}

func (b *CANBus) Send(f protocol.Frame) error {
	return b.dev.Tx(f.ID, f.Len, f.Data[:])
}

// SetAddress retargets the software acceptance filter after an address
// write.
func (b *CANBus) SetAddress(addr uint32) error {
	b.addr = addr
	return nil
}

// Pump drains the transceiver into the receive queue. It runs from the
// CAN interrupt pin handler and again from the receive wait loops: the
// MCP2515 INT line is level-asserted, so a frame that lands while the
// line is already low raises no edge and must be picked up by polling.
func (b *CANBus) Pump() {
	for b.dev.Received() {
		msg, err := b.dev.Rx()
		if err != nil {
			return
		}
		f := protocol.Frame{ID: msg.ID, Len: msg.Dlc}
		copy(f.Data[:], msg.Data)
		if !protocol.Accepts(f.ID, b.addr) {
			continue
		}
		b.rx.Push(f)
	}
}

// StartInterrupt hooks the transceiver's INT pin so frames queue even
// while the firmware is mid-command.
func (b *CANBus) StartInterrupt() error {
	PinCANINT.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return PinCANINT.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		b.Pump()
	})
}
