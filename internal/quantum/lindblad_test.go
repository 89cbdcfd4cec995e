package quantum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfFidelityIsOne(t *testing.T) {
	states := map[string]Density{
		"plus":      PlusState(),
		"mixed":     MixedState(0.3),
		"maximally": MixedState(0.5),
		"bloch":     FromBloch(0.2, -0.4, 0.1),
	}
	for name, rho := range states {
		f := BuresFidelity(rho, rho)
		assert.InDelta(t, 1.0, f, 1e-12, "self-fidelity for %s state", name)
	}
}

func TestDephasingPreservesTraceAndHermiticity(t *testing.T) {
	rho := PlusState()
	for i := 0; i < 500; i++ {
		rho = DephasingStep(rho, 1.5, 0.8, 1e-3)
		require.NoError(t, rho.Validate(), "step %d", i)
		require.InDelta(t, 1.0, rho.Trace(), 1e-12, "step %d", i)
	}
}

func TestPureDephasingDecaysCoherence(t *testing.T) {
	rho := PlusState()
	prev := rho.Coherence()
	for i := 0; i < 200; i++ {
		rho = DephasingStep(rho, 0, 1.0, 1e-2)
		c := rho.Coherence()
		require.LessOrEqual(t, c, prev+1e-15, "coherence rose at step %d", i)
		prev = c
	}
	// After t=2 at rate 2*gamma the coherence should be strongly suppressed.
	assert.Less(t, rho.Coherence(), 0.02)
	// Populations untouched by pure dephasing.
	_, _, rz := rho.Bloch()
	assert.InDelta(t, 0.0, rz, 1e-12)
}

func TestDephasingMatchesClosedForm(t *testing.T) {
	const (
		omega = 0.0
		gamma = 0.5
		dt    = 1e-4
		steps = 10000
	)
	rho := Evolve(PlusState(), omega, gamma, dt, steps)
	want := 0.5 * math.Exp(-2*gamma*dt*steps)
	assert.InDelta(t, want, rho.Coherence(), 1e-3)
}

func TestPhaseQFI(t *testing.T) {
	// |+> has full transverse coherence.
	assert.InDelta(t, 1.0, PhaseQFI(PlusState()), 1e-12)
	// Diagonal states carry no phase information.
	assert.InDelta(t, 0.0, PhaseQFI(MixedState(0.25)), 1e-12)
	// QFI decays as coherence dephases.
	rho := Evolve(PlusState(), 0, 1.0, 1e-2, 100)
	assert.Less(t, PhaseQFI(rho), 1.0)
	assert.Greater(t, PhaseQFI(rho), 0.0)
}

func TestFromBlochClampsToUnitBall(t *testing.T) {
	rho := FromBloch(3, 4, 0)
	require.NoError(t, rho.Validate())
	rx, ry, rz := rho.Bloch()
	assert.InDelta(t, 1.0, math.Sqrt(rx*rx+ry*ry+rz*rz), 1e-9)
}

func TestBuresFidelityOrthogonalStates(t *testing.T) {
	f := BuresFidelity(MixedState(0), MixedState(1))
	assert.InDelta(t, 0.0, f, 1e-12)
}
