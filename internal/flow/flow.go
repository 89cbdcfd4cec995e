// Package flow implements the classical half of the coupled simulation: a
// Gaussian summary state driven by an Ornstein-Uhlenbeck relaxation, plus the
// information-geometry functionals (free energy, Fisher-Rao line element,
// 2-Wasserstein distance) that feed the control objective.
package flow

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SigmaFloor is the hard lower bound applied to the variance after every
// step. Keeps the log-entropy and the Fisher-Rao denominators finite when an
// aggressive control schedule collapses the distribution.
const SigmaFloor = 1e-6

// Params holds the physical constants of the classical flow.
type Params struct {
	Theta       float64 // base relaxation rate, scaled by the control value
	D           float64 // diffusion coefficient feeding variance back in
	Kappa       float64 // stiffness of the quadratic potential
	Temperature float64 // entropy weight in the free energy
}

// State is the Gaussian summary state N(Mu, Sigma). Sigma is a variance,
// not a standard deviation.
type State struct {
	Mu    float64
	Sigma float64
}

// Step advances the state by one explicit Euler step under control value a.
// The control scales the relaxation rate; diffusion D pumps variance back.
// Sigma is clamped to SigmaFloor afterwards.
func Step(s State, a, dt float64, p Params) State {
	rate := p.Theta * a
	mu := s.Mu - rate*s.Mu*dt
	sigma := s.Sigma + (-2*rate*s.Sigma+p.D)*dt
	if sigma < SigmaFloor {
		sigma = SigmaFloor
	}
	return State{Mu: mu, Sigma: sigma}
}

// FreeEnergy returns the Gaussian free energy <E> - T*S with a quadratic
// potential: E = kappa/2 * x^2, S = differential entropy of N(Mu, Sigma).
func FreeEnergy(s State, p Params) float64 {
	energy := 0.5 * p.Kappa * (s.Mu*s.Mu + s.Sigma)
	entropy := 0.5 * math.Log(2*math.Pi*math.E*s.Sigma)
	return energy - p.Temperature*entropy
}

// FisherRaoRate returns the squared Fisher-Rao line element between two
// consecutive Gaussian states: dmu^2/sigma + dsigma^2/(2 sigma^2), evaluated
// at the earlier state.
func FisherRaoRate(prev, next State) float64 {
	dmu := next.Mu - prev.Mu
	dsigma := next.Sigma - prev.Sigma
	return dmu*dmu/prev.Sigma + dsigma*dsigma/(2*prev.Sigma*prev.Sigma)
}

// TransportCost sums the Fisher-Rao line elements along a trajectory.
func TransportCost(states []State) float64 {
	if len(states) < 2 {
		return 0
	}
	rates := make([]float64, len(states)-1)
	for i := 1; i < len(states); i++ {
		rates[i-1] = FisherRaoRate(states[i-1], states[i])
	}
	return floats.Sum(rates)
}

// Wasserstein2 returns the squared 2-Wasserstein distance between two
// Gaussians: (mu_a - mu_b)^2 + (sqrt(sigma_a) - sqrt(sigma_b))^2.
func Wasserstein2(a, b State) float64 {
	dmu := a.Mu - b.Mu
	ds := math.Sqrt(a.Sigma) - math.Sqrt(b.Sigma)
	return dmu*dmu + ds*ds
}
