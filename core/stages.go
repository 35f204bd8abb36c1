package core

// Stage identifies one element of a motor rotation. A full move runs
// spin-up, cruise, spin-down and finally a creep to the exact target.
type Stage uint8

const (
	StageIdle Stage = iota
	StageCWSpinUp
	StageCWCruise
	StageCWSpinDown
	StageCCWSpinUp
	StageCCWCruise
	StageCCWSpinDown
	StageCCWCreep
	StageCWCreep
)

var stageNames = [...]string{
	StageIdle:        "idle",
	StageCWSpinUp:    "cw-spinup",
	StageCWCruise:    "cw-cruise",
	StageCWSpinDown:  "cw-spindown",
	StageCCWSpinUp:   "ccw-spinup",
	StageCCWCruise:   "ccw-cruise",
	StageCCWSpinDown: "ccw-spindown",
	StageCCWCreep:    "ccw-creep",
	StageCWCreep:     "cw-creep",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// StageSet is the pending-stage queue of one axis, one bit per stage.
// Stages retire in fixed priority order: the highest set bit is the
// active stage, and clearing it reveals the next. The bit layout is
// shared with the host protocol (raw sets travel in the legacy execute
// command), so the encoding is part of the wire format.
type StageSet uint8

const (
	bitCWSpinUp    StageSet = 1 << 7
	bitCWCruise    StageSet = 1 << 6
	bitCWSpinDown  StageSet = 1 << 5
	bitCCWSpinUp   StageSet = 1 << 4
	bitCCWCruise   StageSet = 1 << 3
	bitCCWSpinDown StageSet = 1 << 2
	bitCCWCreep    StageSet = 1 << 1
	bitCWCreep     StageSet = 1 << 0
)

// Stage sets preloaded by the move command.
const (
	PreloadCWCreep   = bitCWCreep
	PreloadCCWCreep  = bitCCWCreep
	PreloadCWCruise  = bitCWSpinUp | bitCWCruise | bitCWSpinDown
	PreloadCCWCruise = bitCCWSpinUp | bitCCWCruise | bitCCWSpinDown
)

var stagePriority = [...]struct {
	bit StageSet
	st  Stage
}{
	{bitCWSpinUp, StageCWSpinUp},
	{bitCWCruise, StageCWCruise},
	{bitCWSpinDown, StageCWSpinDown},
	{bitCCWSpinUp, StageCCWSpinUp},
	{bitCCWCruise, StageCCWCruise},
	{bitCCWSpinDown, StageCCWSpinDown},
	{bitCCWCreep, StageCCWCreep},
	{bitCWCreep, StageCWCreep},
}

// Active returns the highest-priority pending stage, or StageIdle.
func (s StageSet) Active() Stage {
	for _, p := range stagePriority {
		if s&p.bit != 0 {
			return p.st
		}
	}
	return StageIdle
}

func (s StageSet) Has(st Stage) bool {
	return s&stageBit(st) != 0
}

func (s *StageSet) Clear(st Stage) {
	*s &^= stageBit(st)
}

func stageBit(st Stage) StageSet {
	for _, p := range stagePriority {
		if p.st == st {
			return p.bit
		}
	}
	return 0
}

// TrimZeroSteps drops stages whose step counters are zero, so a move
// with nothing to do becomes an immediate no-op instead of idling in a
// stage forever. A zero-step cruise takes its spin-up and spin-down
// with it; running the ramp around an empty cruise would jolt the
// rotor without moving it anywhere.
func (s StageSet) TrimZeroSteps(cruise, cwCreep, ccwCreep uint32) StageSet {
	if cruise == 0 {
		s &^= PreloadCWCruise | PreloadCCWCruise
	}
	if cwCreep == 0 {
		s &^= bitCWCreep
	}
	if ccwCreep == 0 {
		s &^= bitCCWCreep
	}
	return s
}
