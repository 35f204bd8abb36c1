//go:build tinygo

package main

import (
	"machine"

	"fipos/boot"
	"fipos/core"
	"fipos/protocol"
	"fipos/targets/f103hw"
)

func main() {
	leds := f103hw.ConfigureLEDs()
	leds.Set(2)

	flash := f103hw.Flash{}
	posID := flash.ReadWord(core.AddrPosID) & 0xFFFF

	// The download needs room for a full data burst plus headroom;
	// frames arrive faster than flash programs them.
	rx := protocol.NewFrameFIFO(8192)
	can, err := f103hw.ConfigureCAN(machine.SPI0, rx, posID)
	if err != nil {
		f103hw.Board{}.Halt()
	}
	if err := can.StartInterrupt(); err != nil {
		f103hw.Board{}.Halt()
	}

	s := boot.NewSession(rx, can, flash, f103hw.SystemClock{}, f103hw.Board{})
	s.SetPump(can)
	leds.Set(0)
	s.Run()
}
