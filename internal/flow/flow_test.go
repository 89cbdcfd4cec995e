package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = Params{Theta: 1.0, D: 0.05, Kappa: 2.0, Temperature: 0.5}

func TestStepClampsSigma(t *testing.T) {
	// Zero diffusion and a huge control value collapse the variance; the
	// floor must hold at every step.
	p := Params{Theta: 10, D: 0, Kappa: 1, Temperature: 1}
	s := State{Mu: 1, Sigma: 0.5}
	for i := 0; i < 1000; i++ {
		s = Step(s, 5.0, 0.05, p)
		require.GreaterOrEqual(t, s.Sigma, SigmaFloor, "step %d", i)
	}
	assert.Equal(t, SigmaFloor, s.Sigma)
}

func TestStepMeanReverts(t *testing.T) {
	s := State{Mu: 2.0, Sigma: 0.3}
	for i := 0; i < 500; i++ {
		s = Step(s, 1.0, 1e-2, testParams)
	}
	assert.InDelta(t, 0.0, s.Mu, 1e-2)
	// Variance settles near the D/(2*theta*a) fixed point.
	assert.InDelta(t, testParams.D/(2*testParams.Theta), s.Sigma, 5e-3)
}

func TestFreeEnergyPenalizesDisplacement(t *testing.T) {
	centered := State{Mu: 0, Sigma: 0.1}
	displaced := State{Mu: 1, Sigma: 0.1}
	assert.Greater(t, FreeEnergy(displaced, testParams), FreeEnergy(centered, testParams))
}

func TestFisherRaoRateZeroForIdenticalStates(t *testing.T) {
	s := State{Mu: 0.4, Sigma: 0.2}
	assert.Zero(t, FisherRaoRate(s, s))
}

func TestTransportCost(t *testing.T) {
	assert.Zero(t, TransportCost(nil))
	assert.Zero(t, TransportCost([]State{{Mu: 1, Sigma: 1}}))

	states := []State{
		{Mu: 0, Sigma: 1},
		{Mu: 0.1, Sigma: 1},
		{Mu: 0.2, Sigma: 1},
	}
	// Two equal hops of dmu=0.1 at sigma=1.
	assert.InDelta(t, 0.02, TransportCost(states), 1e-12)
}

func TestWasserstein2(t *testing.T) {
	a := State{Mu: 0, Sigma: 1}
	assert.Zero(t, Wasserstein2(a, a))

	b := State{Mu: 3, Sigma: 4}
	// dmu^2 + (1-2)^2 = 9 + 1
	assert.InDelta(t, 10.0, Wasserstein2(a, b), 1e-12)
	assert.Equal(t, Wasserstein2(a, b), Wasserstein2(b, a))
}

func TestStepStationaryVarianceNonNegativeDrift(t *testing.T) {
	// With diffusion on, sigma never hits the floor from a healthy start.
	s := State{Mu: 0, Sigma: 0.2}
	for i := 0; i < 200; i++ {
		s = Step(s, 1.0, 1e-2, testParams)
		require.Greater(t, s.Sigma, SigmaFloor)
	}
}
