package core

import "math"

// The commutation waveform is a cosine sampled in 0.1 degree steps and
// scaled to the PWM counter range 0..PWMMax. The table spans well past a
// full turn so a phase plus a direction offset (up to 240 degrees) can be
// looked up without a modulo; the stored phase itself is normalized once
// per tick.
const (
	// PWMMax is the timer top value. Duty values run 0..PWMMax.
	PWMMax = 4000
	// PhaseSteps is the phase resolution, 0.1 degree units per turn.
	PhaseSteps = 3600

	cosTableLen = 6144
)

var cosTable [cosTableLen]uint16

func init() {
	for i := range cosTable {
		rad := float64(i) * (2 * math.Pi / PhaseSteps)
		cosTable[i] = uint16(math.Round(PWMMax / 2 * (1 + math.Cos(rad))))
	}
}

// CosLookup maps a phase angle in 0.1 degree units to a duty value in
// 0..PWMMax. idx may exceed one turn by the largest direction offset.
func CosLookup(idx uint32) uint16 {
	return cosTable[idx]
}
