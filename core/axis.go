package core

// deltaPhase is the spin ramp: phase increments in 0.1 degree units.
// Spin-up walks the table forward, spending SpinPeriod ticks on each
// entry; spin-down walks it back.
var deltaPhase = [34]uint32{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16,
	17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33,
}

const (
	// spinRampEnd is where the ramp pointer parks between spin-up and
	// spin-down, so spin-down replays the ramp from its top entry.
	spinRampEnd = uint32(len(deltaPhase) - 1)

	// cruisePhaseStep is 3.3 degrees per tick, the top ramp rate.
	cruisePhaseStep = 33

	// creepBumpSteps is the remaining-step threshold below which a creep
	// may switch to full current to push through the hard stop.
	creepBumpSteps = 900

	// spinDownHoldCurrent holds the rotor between spin-down and the creep.
	spinDownHoldCurrent = 0.05
)

// Axis is the complete motion state of one motor. Tick runs in interrupt
// context and owns the stage set; command handlers may only write the
// staging fields and motion parameters while the axis is idle, and hand
// over a new stage set through the controller's commit signal.
type Axis struct {
	// Phase is the electrical rotor phase in 0.1 degree units, [0, 3600).
	Phase uint32

	stages StageSet
	shadow StageSet

	spinPtr    uint32
	spinCount  uint32
	creepCount uint32

	CruiseSteps   uint32
	CWCreepSteps  uint32
	CCWCreepSteps uint32

	// CreepPeriod is ticks per 0.1 degree creep step.
	CreepPeriod uint32

	SpinUpCurrent   float32
	SpinDownCurrent float32
	CruiseCurrent   float32
	CreepCurrent    float32
	DropCurrent     float32

	// Bump flags allow the final creepBumpSteps of a creep to run at
	// full current.
	BumpCWCreep  bool
	BumpCCWCreep bool

	// Operating creep currents, reloaded from CreepCurrent on commit so
	// a bump from a previous move does not leak into the next.
	cwCreepCurrent  float32
	ccwCreepCurrent float32

	delA, delB uint32

	pwm MotorPWM
}

// NewAxis builds an axis driving pwm. reverse mirrors the phase order
// for motors wound the other way; phaseOffset is the initial electrical
// phase in 0.1 degree units.
func NewAxis(pwm MotorPWM, reverse bool, phaseOffset uint32) *Axis {
	rev := uint32(0)
	if reverse {
		rev = 1
	}
	return &Axis{
		Phase:           phaseOffset,
		CreepPeriod:     2,
		SpinUpCurrent:   1.0,
		SpinDownCurrent: 1.0,
		CruiseCurrent:   0.75,
		CreepCurrent:    0.3,
		DropCurrent:     0.05,
		cwCreepCurrent:  0.3,
		ccwCreepCurrent: 0.3,
		BumpCWCreep:     true,
		delA:            1200 * (1 + rev),
		delB:            2400 / (1 + rev),
		pwm:             pwm,
	}
}

// SetShadow stages the stage set the next commit will start.
func (a *Axis) SetShadow(s StageSet) { a.shadow = s }

func (a *Axis) Shadow() StageSet { return a.shadow }

// Stages returns the live stage set. Outside the tick context it is
// only meaningful while the axis is idle.
func (a *Axis) Stages() StageSet { return a.stages }

func (a *Axis) Moving() bool { return a.stages != 0 }

// commit transfers the shadow stage set into the live one and resets
// the operating creep currents. Runs in tick context.
func (a *Axis) commit() {
	a.cwCreepCurrent = a.CreepCurrent
	a.ccwCreepCurrent = a.CreepCurrent
	a.stages = a.shadow
	a.shadow = 0
}

// Tick advances the active stage by one 18 kHz period. spinPeriod is the
// shared ticks-per-ramp-entry setting.
func (a *Axis) Tick(spinPeriod uint32) {
	switch a.stages.Active() {
	case StageCWSpinUp:
		a.advance(deltaPhase[a.spinPtr])
		a.writePhases(a.SpinUpCurrent)
		a.spinCount++
		if a.spinCount >= spinPeriod {
			a.spinCount = 0
			a.spinPtr++
		}
		if a.spinPtr >= uint32(len(deltaPhase)) {
			a.stages.Clear(StageCWSpinUp)
			a.spinCount = 0
			a.spinPtr = spinRampEnd
		}

	case StageCWCruise:
		if a.CruiseSteps == 0 {
			a.stages.Clear(StageCWCruise)
			return
		}
		a.advance(cruisePhaseStep)
		a.writePhases(a.CruiseCurrent)
		a.CruiseSteps--
		if a.CruiseSteps == 0 {
			a.stages.Clear(StageCWCruise)
		}

	case StageCWSpinDown:
		if a.spinCount >= spinPeriod {
			a.spinCount = 0
			a.spinPtr--
		}
		a.spinCount++
		a.advance(deltaPhase[a.spinPtr])
		a.writePhases(a.SpinDownCurrent)
		if a.spinPtr == 0 && a.spinCount >= spinPeriod {
			a.stages.Clear(StageCWSpinDown)
			a.spinCount = 0
			a.writePhases(spinDownHoldCurrent)
		}

	case StageCCWSpinUp:
		a.retreat(deltaPhase[a.spinPtr])
		a.writePhases(a.SpinUpCurrent)
		a.spinCount++
		if a.spinCount >= spinPeriod {
			a.spinCount = 0
			a.spinPtr++
		}
		if a.spinPtr >= uint32(len(deltaPhase)) {
			a.stages.Clear(StageCCWSpinUp)
			a.spinCount = 0
			a.spinPtr = spinRampEnd
		}

	case StageCCWCruise:
		if a.CruiseSteps == 0 {
			a.stages.Clear(StageCCWCruise)
			return
		}
		a.retreat(cruisePhaseStep)
		a.writePhases(a.CruiseCurrent)
		a.CruiseSteps--
		if a.CruiseSteps == 0 {
			a.stages.Clear(StageCCWCruise)
		}

	case StageCCWSpinDown:
		if a.spinCount >= spinPeriod {
			a.spinCount = 0
			a.spinPtr--
		}
		a.spinCount++
		a.retreat(deltaPhase[a.spinPtr])
		a.writePhases(a.SpinDownCurrent)
		if a.spinPtr == 0 && a.spinCount >= spinPeriod {
			a.stages.Clear(StageCCWSpinDown)
			a.spinCount = 0
			a.writePhases(spinDownHoldCurrent)
		}

	case StageCCWCreep:
		if a.CCWCreepSteps == 0 {
			a.stages.Clear(StageCCWCreep)
			return
		}
		if a.creepCount >= a.CreepPeriod {
			a.creepCount = 0
			a.retreat(1)
			a.writePhases(a.ccwCreepCurrent)
			a.CCWCreepSteps--
			if a.CCWCreepSteps <= creepBumpSteps && a.BumpCCWCreep {
				a.ccwCreepCurrent = 1.0
			}
			if a.CCWCreepSteps == 0 {
				a.stages.Clear(StageCCWCreep)
				a.writePhases(a.DropCurrent)
			}
		}
		a.creepCount++

	case StageCWCreep:
		if a.CWCreepSteps == 0 {
			a.stages.Clear(StageCWCreep)
			return
		}
		if a.creepCount >= a.CreepPeriod {
			a.creepCount = 0
			a.advance(1)
			a.writePhases(a.cwCreepCurrent)
			a.CWCreepSteps--
			if a.CWCreepSteps <= creepBumpSteps && a.BumpCWCreep {
				a.cwCreepCurrent = 1.0
			}
			if a.CWCreepSteps == 0 {
				a.stages.Clear(StageCWCreep)
				a.writePhases(a.DropCurrent)
			}
		}
		a.creepCount++

	case StageIdle:
	}
}

func (a *Axis) advance(d uint32) {
	a.Phase += d
	if a.Phase >= PhaseSteps {
		a.Phase -= PhaseSteps
	}
}

func (a *Axis) retreat(d uint32) {
	a.Phase -= d
	if a.Phase >= PhaseSteps {
		a.Phase += PhaseSteps
	}
}

func (a *Axis) writePhases(current float32) {
	a.pwm.SetDuty(0, uint16(current*float32(CosLookup(a.Phase))))
	a.pwm.SetDuty(1, uint16(current*float32(CosLookup(a.Phase+a.delA))))
	a.pwm.SetDuty(2, uint16(current*float32(CosLookup(a.Phase+a.delB))))
}
