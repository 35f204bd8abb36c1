//go:build tinygo

package main

import (
	"machine"

	"fipos/core"
	"fipos/protocol"
	"fipos/targets/f103hw"
)

func main() {
	// Board peripherals first so a fault during bring-up can still
	// blink the LEDs.
	leds := f103hw.ConfigureLEDs()
	leds.Set(1)
	sync := f103hw.ConfigureSync()
	therm := f103hw.ConfigureThermometer()

	flash := f103hw.Flash{}
	posID := flash.ReadWord(core.AddrPosID) & 0xFFFF

	rx := protocol.NewFrameFIFO(128)
	can, err := f103hw.ConfigureCAN(machine.SPI0, rx, posID)
	if err != nil {
		f103hw.Board{}.Halt()
	}

	motorA, err := f103hw.ConfigureMotorPWM(&machine.TIM2, f103hw.MotorAPins)
	if err != nil {
		f103hw.Board{}.Halt()
	}
	motorB, err := f103hw.ConfigureMotorPWM(&machine.TIM3, f103hw.MotorBPins)
	if err != nil {
		f103hw.Board{}.Halt()
	}

	core.SetMotorDriver(0, motorA)
	core.SetMotorDriver(1, motorB)
	core.SetCANDriver(can)
	core.SetFlashDriver(flash)
	core.SetIDDriver(f103hw.DeviceID{})
	core.SetTempDriver(therm)
	core.SetSyncDriver(sync)
	core.SetLEDDriver(leds)
	core.SetClockDriver(f103hw.SystemClock{})

	ctrl := core.NewController(core.MustMotorDriver(0), core.MustMotorDriver(1), core.Config{})
	d := core.NewDispatcher(ctrl, rx, posID, core.Peripherals{
		Bus:    core.MustCANDriver(),
		Flash:  core.MustFlashDriver(),
		UID:    core.MustIDDriver(),
		Temp:   core.MustTempDriver(),
		Sync:   core.MustSyncDriver(),
		LEDs:   core.MustLEDDriver(),
		Clock:  core.MustClockDriver(),
		Filter: can,
		Pump:   can,
	})

	if err := can.StartInterrupt(); err != nil {
		f103hw.Board{}.Halt()
	}
	f103hw.StartTick(ctrl.Tick)

	leds.Set(0)
	d.Run()
}
