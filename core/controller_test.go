package core

import "testing"

func TestCommitIsOneShot(t *testing.T) {
	c := NewController(&fakePWM{}, &fakePWM{}, Config{})
	c.Axes[0].CWCreepSteps = 10
	c.Axes[0].SetShadow(PreloadCWCreep)
	c.Commit(CommitAxis0)

	c.Tick()
	if c.Axes[0].Stages() != PreloadCWCreep {
		t.Fatalf("stages = %#02x after commit", uint8(c.Axes[0].Stages()))
	}
	if c.Axes[0].Shadow() != 0 {
		t.Fatal("shadow not cleared by commit")
	}

	// A second tick must not re-commit the now-empty shadow.
	c.Axes[0].SetShadow(PreloadCCWCreep)
	c.Tick()
	if c.Axes[0].Stages().Has(StageCCWCreep) {
		t.Fatal("commit fired twice")
	}
}

func TestCommitSelectsAxes(t *testing.T) {
	c := NewController(&fakePWM{}, &fakePWM{}, Config{})
	c.Axes[0].CWCreepSteps = 5
	c.Axes[1].CWCreepSteps = 5
	c.Axes[0].SetShadow(PreloadCWCreep)
	c.Axes[1].SetShadow(PreloadCWCreep)
	c.Commit(CommitAxis1)
	c.Tick()
	if c.Axes[0].Moving() {
		t.Fatal("axis 0 committed by an axis 1 signal")
	}
	if !c.Axes[1].Moving() {
		t.Fatal("axis 1 not committed")
	}
}

func TestMovingIncludesPendingCommit(t *testing.T) {
	c := NewController(&fakePWM{}, &fakePWM{}, Config{})
	if c.Moving() {
		t.Fatal("idle controller reports moving")
	}
	c.Commit(CommitBoth)
	if !c.Moving() {
		t.Fatal("pending commit not reported as moving")
	}
}

func TestFiducialOverridesCommutation(t *testing.T) {
	m0, m1 := &fakePWM{}, &fakePWM{}
	c := NewController(m0, m1, Config{})
	c.DeviceType = DeviceTypeFiducial
	c.SetFiducialDuty(0.5)
	c.Tick()
	want := uint16(0.5 * PWMMax)
	for phase := 0; phase < 3; phase++ {
		if m0.duty[phase] != want || m1.duty[phase] != want {
			t.Fatalf("phase %d duty = %d %d, want %d", phase, m0.duty[phase], m1.duty[phase], want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := NewController(&fakePWM{}, &fakePWM{}, Config{})
	if c.SpinPeriod != defaultSpinPeriod {
		t.Fatalf("spin period = %d", c.SpinPeriod)
	}
	c = NewController(&fakePWM{}, &fakePWM{}, Config{SpinPeriod: 30, PhaseOffset: [2]uint32{10, 20}})
	if c.SpinPeriod != 30 || c.Axes[0].Phase != 10 || c.Axes[1].Phase != 20 {
		t.Fatal("config not applied")
	}
}
