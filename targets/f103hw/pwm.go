//go:build tinygo

package f103hw

import (
	"machine"

	"fipos/core"
)

// Motor phase pins. Each motor takes the first three channels of its
// timer.
var (
	MotorAPins = [3]machine.Pin{machine.PA0, machine.PA1, machine.PA2}
	MotorBPins = [3]machine.Pin{machine.PA6, machine.PA7, machine.PB0}
)

// pwmTimer is the slice of the machine timer API the motor driver
// needs.
type pwmTimer interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Set(channel uint8, value uint32)
	Top() uint32
}

// TimerPWM drives the three phases of one motor from one timer.
type TimerPWM struct {
	tim      pwmTimer
	channels [3]uint8
}

// ConfigureMotorPWM sets up a timer for one motor winding set. Duty
// values arrive in the commutation table's range and are rescaled to
// the timer's top.
func ConfigureMotorPWM(tim pwmTimer, pins [3]machine.Pin) (*TimerPWM, error) {
	p := &TimerPWM{tim: tim}
	if err := tim.Configure(machine.PWMConfig{Period: 55555}); err != nil {
		return nil, err
	}
	for i, pin := range pins {
		ch, err := tim.Channel(pin)
		if err != nil {
			return nil, err
		}
		p.channels[i] = ch
	}
	return p, nil
}

func (p *TimerPWM) SetDuty(phase int, duty uint16) {
	scaled := uint64(duty) * uint64(p.tim.Top()) / core.PWMMax
	p.tim.Set(p.channels[phase], uint32(scaled))
}
