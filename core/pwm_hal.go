package core

// MotorPWM drives the three phase outputs of one motor. Duty values are
// timer counts in 0..PWMMax. SetDuty is called from the tick interrupt
// and must not allocate or block.
type MotorPWM interface {
	SetDuty(phase int, duty uint16)
}

var motorDrivers [2]MotorPWM

// SetMotorDriver registers the PWM driver for one motor. Targets call
// this during bring-up, before the tick timer starts.
func SetMotorDriver(motor int, d MotorPWM) {
	motorDrivers[motor] = d
}

// MustMotorDriver returns the registered driver or panics. Firmware
// cannot run without its power stage, so a missing driver is a bring-up
// bug, not a runtime condition.
func MustMotorDriver(motor int) MotorPWM {
	d := motorDrivers[motor]
	if d == nil {
		panic("core: no motor PWM driver registered")
	}
	return d
}
