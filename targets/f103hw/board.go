//go:build tinygo

// Package f103hw holds the STM32F103 drivers shared by the application
// and bootloader images. Both link it against the same pinout; only
// the bring-up in their mains differs.
package f103hw

import (
	"machine"
	"runtime/volatile"
	"time"
	"unsafe"

	"device/arm"
)

// Board pinout.
const (
	PinSync machine.Pin = machine.PB2
	PinLED0 machine.Pin = machine.PA4
	PinLED1 machine.Pin = machine.PA5

	PinTherm machine.Pin = machine.PA3

	PinCANCS  machine.Pin = machine.PB12
	PinCANINT machine.Pin = machine.PB1
)

// The 96-bit device id lives in the system memory block.
const uidBase = 0x1FFFF7E8

// loaderInfoAddr is the RAM word pair where the bootloader leaves its
// version for the application.
const loaderInfoAddr = 0x20004C00

// DeviceID reads the silicon unique id.
type DeviceID struct{}

func (DeviceID) UniqueID() (w0, w1, w2 uint32) {
	w0 = (*volatile.Register32)(unsafe.Pointer(uintptr(uidBase))).Get()
	w1 = (*volatile.Register32)(unsafe.Pointer(uintptr(uidBase + 4))).Get()
	w2 = (*volatile.Register32)(unsafe.Pointer(uintptr(uidBase + 8))).Get()
	return w0, w1, w2
}

// Sync is the shared move-trigger input.
type Sync struct{}

func ConfigureSync() Sync {
	PinSync.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return Sync{}
}

func (Sync) Asserted() bool { return PinSync.Get() }

// LEDs drives the two board indicators from the low bits of a mask.
type LEDs struct{}

func ConfigureLEDs() LEDs {
	PinLED0.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PinLED1.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return LEDs{}
}

func (LEDs) Set(mask uint8) {
	PinLED0.Set(mask&1 != 0)
	PinLED1.Set(mask&2 != 0)
}

// Thermometer reads the board thermistor.
type Thermometer struct {
	adc machine.ADC
}

func ConfigureThermometer() *Thermometer {
	machine.InitADC()
	t := &Thermometer{adc: machine.ADC{Pin: PinTherm}}
	t.adc.Configure(machine.ADCConfig{})
	return t
}

func (t *Thermometer) ReadRaw() uint16 {
	// The protocol reports the converter's native 12-bit range.
	return t.adc.Get() >> 4
}

// SystemClock provides delays and the millisecond tick.
type SystemClock struct{}

func (SystemClock) Delay(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (SystemClock) Millis() uint32 {
	return uint32(time.Now().UnixNano() / int64(time.Millisecond))
}

// Board implements the session-ending actions of the bootloader.
type Board struct{}

func (Board) SetLoaderVersion(major, minor uint32) {
	(*volatile.Register32)(unsafe.Pointer(uintptr(loaderInfoAddr))).Set(major)
	(*volatile.Register32)(unsafe.Pointer(uintptr(loaderInfoAddr + 4))).Set(minor)
}

// LoaderVersion reads back what the bootloader left in RAM.
func LoaderVersion() (major, minor uint32) {
	major = (*volatile.Register32)(unsafe.Pointer(uintptr(loaderInfoAddr))).Get()
	minor = (*volatile.Register32)(unsafe.Pointer(uintptr(loaderInfoAddr + 4))).Get()
	return major, minor
}

// JumpToApplication hands the core to the application image: stack
// pointer from its first vector, entry point from its second.
func (Board) JumpToApplication() {
	sp := (*volatile.Register32)(unsafe.Pointer(uintptr(applicationStart))).Get()
	pc := (*volatile.Register32)(unsafe.Pointer(uintptr(applicationStart + 4))).Get()
	arm.DisableInterrupts()
	arm.AsmFull(`
		msr msp, {sp}
		bx {pc}
	`, map[string]interface{}{
		"sp": sp,
		"pc": pc,
	})
}

// Halt parks the core after an unrecoverable flash fault. Only a power
// cycle gets out.
func (Board) Halt() {
	arm.DisableInterrupts()
	for {
	}
}
