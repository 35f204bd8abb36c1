package core

// IDReader exposes the MCU's 96-bit unique id as three 32-bit words.
type IDReader interface {
	UniqueID() (w0, w1, w2 uint32)
}

// Thermometer reads the board temperature sensor. The raw value is
// reported to the host unscaled; calibration lives host-side.
type Thermometer interface {
	ReadRaw() uint16
}

// SyncLine is the shared trigger input that starts buffered move tables
// on every positioner in the same tick.
type SyncLine interface {
	Asserted() bool
}

// LEDs drives the board indicator outputs from a bitmask.
type LEDs interface {
	Set(mask uint8)
}

// Clock provides millisecond delays for command pauses. Delay blocks
// the dispatcher only, never the tick interrupt.
type Clock interface {
	Delay(ms uint32)
}

var (
	idDriver    IDReader
	tempDriver  Thermometer
	syncDriver  SyncLine
	ledDriver   LEDs
	clockDriver Clock
)

func SetIDDriver(d IDReader) { idDriver = d }

func SetTempDriver(d Thermometer) { tempDriver = d }

func SetSyncDriver(d SyncLine) { syncDriver = d }

func SetLEDDriver(d LEDs) { ledDriver = d }

func SetClockDriver(d Clock) { clockDriver = d }

func MustIDDriver() IDReader {
	if idDriver == nil {
		panic("core: no unique id driver registered")
	}
	return idDriver
}

func MustTempDriver() Thermometer {
	if tempDriver == nil {
		panic("core: no temperature driver registered")
	}
	return tempDriver
}

func MustSyncDriver() SyncLine {
	if syncDriver == nil {
		panic("core: no sync line driver registered")
	}
	return syncDriver
}

func MustLEDDriver() LEDs {
	if ledDriver == nil {
		panic("core: no LED driver registered")
	}
	return ledDriver
}

func MustClockDriver() Clock {
	if clockDriver == nil {
		panic("core: no clock driver registered")
	}
	return clockDriver
}
