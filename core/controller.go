package core

import (
	"math"
	"sync/atomic"
)

// CommitSelect names which axes a commit signal applies to.
type CommitSelect uint32

const (
	CommitNone CommitSelect = iota
	CommitAxis0
	CommitAxis1
	CommitBoth
)

// Device types reported to the host. Fiducials carry an illuminated
// pinhole instead of motors and reuse the PWM outputs for its LED.
const (
	DeviceTypePositioner = 0
	DeviceTypeFiducial   = 1
)

// Config is the board-level motion configuration.
type Config struct {
	// Reverse mirrors an axis for motors wound the other way.
	Reverse [2]bool
	// PhaseOffset is each axis's initial electrical phase, 0.1 degree
	// units.
	PhaseOffset [2]uint32
	// SpinPeriod is ticks per ramp entry; zero selects the default.
	SpinPeriod uint32
}

const defaultSpinPeriod = 12

// Controller owns both axes and everything else the tick interrupt
// touches. Exactly one Tick call runs per 18 kHz timer period; command
// handlers communicate with it through Commit and the duty/test fields,
// which are single 32-bit writes.
type Controller struct {
	Axes [2]*Axis

	// SpinPeriod is shared by both axes.
	SpinPeriod uint32

	// DeviceType selects fiducial behavior when nonzero.
	DeviceType uint8

	commit   atomic.Uint32
	testSeq  atomic.Uint32
	dutyBits atomic.Uint32
}

// NewController builds a controller over the two motor PWM drivers.
func NewController(m0, m1 MotorPWM, cfg Config) *Controller {
	sp := cfg.SpinPeriod
	if sp == 0 {
		sp = defaultSpinPeriod
	}
	return &Controller{
		Axes: [2]*Axis{
			NewAxis(m0, cfg.Reverse[0], cfg.PhaseOffset[0]),
			NewAxis(m1, cfg.Reverse[1], cfg.PhaseOffset[1]),
		},
		SpinPeriod: sp,
	}
}

// Commit signals the tick interrupt to load the selected axes' shadow
// stage sets. One-shot: consumed by the next tick.
func (c *Controller) Commit(sel CommitSelect) {
	c.commit.Store(uint32(sel))
}

// Moving reports whether any stage is active or a commit is pending.
func (c *Controller) Moving() bool {
	return c.Axes[0].Moving() || c.Axes[1].Moving() ||
		CommitSelect(c.commit.Load()) != CommitNone
}

// SetTestSequence switches the fixed output pattern used for board
// checkout on or off.
func (c *Controller) SetTestSequence(on bool) {
	v := uint32(0)
	if on {
		v = 1
	}
	c.testSeq.Store(v)
}

func (c *Controller) TestSequence() bool {
	return c.testSeq.Load() != 0
}

// SetFiducialDuty sets the fiducial LED duty cycle, 0..1.
func (c *Controller) SetFiducialDuty(duty float32) {
	c.dutyBits.Store(floatBits(duty))
}

func (c *Controller) FiducialDuty() float32 {
	return bitsFloat(c.dutyBits.Load())
}

// Tick runs once per timer interrupt. Fiducial and test-sequence output
// override the commutation engine; commits are consumed last so a new
// stage set starts on the following tick.
func (c *Controller) Tick() {
	switch {
	case c.testSeq.Load() != 0:
		c.writeTestPattern()
	case c.DeviceType != 0:
		duty := uint16(bitsFloat(c.dutyBits.Load()) * PWMMax)
		for phase := 0; phase < 3; phase++ {
			c.Axes[0].pwm.SetDuty(phase, duty)
			c.Axes[1].pwm.SetDuty(phase, duty)
		}
	default:
		c.Axes[0].Tick(c.SpinPeriod)
		c.Axes[1].Tick(c.SpinPeriod)
	}

	switch CommitSelect(c.commit.Swap(uint32(CommitNone))) {
	case CommitBoth:
		c.Axes[0].commit()
		c.Axes[1].commit()
	case CommitAxis0:
		c.Axes[0].commit()
	case CommitAxis1:
		c.Axes[1].commit()
	}
}

// writeTestPattern drives fixed, distinct duties onto the three phases
// of both motors so a scope can verify the power stage wiring.
func (c *Controller) writeTestPattern() {
	for _, a := range c.Axes {
		a.pwm.SetDuty(0, 1000)
		a.pwm.SetDuty(1, 2000)
		a.pwm.SetDuty(2, 3000)
	}
}

// Duty cycles cross from the dispatcher to the tick interrupt as raw
// float bits in a single atomic word.
func floatBits(f float32) uint32 {
	return math.Float32bits(f)
}

func bitsFloat(b uint32) float32 {
	return math.Float32frombits(b)
}
