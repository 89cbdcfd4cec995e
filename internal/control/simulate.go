package control

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"quasim/internal/flow"
	"quasim/internal/quantum"
)

// Result carries the scalar objective, its decomposition, and the per-step
// diagnostic series of one simulation.
type Result struct {
	Objective float64 `json:"objective"`

	FreeEnergy     float64 `json:"free_energy"`
	Transport      float64 `json:"transport"`
	QFIDeficit     float64 `json:"qfi_deficit"`
	Regularization float64 `json:"regularization"`

	Sigma            []float64 `json:"sigma"`
	FreeEnergySeries []float64 `json:"free_energy_series"`
	Fidelity         []float64 `json:"fidelity"`
	QFI              []float64 `json:"qfi"`

	FinalState flow.State      `json:"final_state"`
	FinalRho   quantum.Density `json:"-"`
}

// InitialSchedule fills a schedule of cfg.Steps values from the seeded
// generator. This is the only stochastic element anywhere in the pipeline;
// the hot loop itself is pure.
func InitialSchedule(cfg Config) []float64 {
	rng := rand.New(rand.NewSource(cfg.Seed))
	a := make([]float64, cfg.Steps)
	for i := range a {
		a[i] = 0.5 + rng.Float64()
	}
	return a
}

// Simulate runs the coupled flow under schedule a and scores it. The control
// value of each step scales both the classical relaxation rate and the
// dephasing rate, trading faster transport against coherence loss.
// Deterministic: identical cfg and a yield bit-identical results.
func Simulate(cfg Config, a []float64) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if len(a) != cfg.Steps {
		return Result{}, fmt.Errorf("schedule length %d, config wants %d steps", len(a), cfg.Steps)
	}

	dt := cfg.Horizon / float64(cfg.Steps)
	state := flow.State{Mu: 1.0, Sigma: 0.5}
	rho := quantum.PlusState()
	rho0 := rho

	states := make([]flow.State, 0, cfg.Steps+1)
	states = append(states, state)

	res := Result{
		Sigma:            make([]float64, cfg.Steps),
		FreeEnergySeries: make([]float64, cfg.Steps),
		Fidelity:         make([]float64, cfg.Steps),
		QFI:              make([]float64, cfg.Steps),
	}

	reg := make([]float64, cfg.Steps)
	for k, ak := range a {
		state = flow.Step(state, ak, dt, cfg.Flow)
		rho = quantum.DephasingStep(rho, cfg.Omega, cfg.Gamma*ak, dt)
		states = append(states, state)

		res.Sigma[k] = state.Sigma
		res.FreeEnergySeries[k] = flow.FreeEnergy(state, cfg.Flow)
		res.Fidelity[k] = quantum.BuresFidelity(rho0, rho)
		res.QFI[k] = quantum.PhaseQFI(rho)
		d := ak - 1
		reg[k] = d * d * dt
	}

	res.FreeEnergy = flow.FreeEnergy(state, cfg.Flow)
	res.Transport = flow.TransportCost(states)
	if deficit := cfg.QFITarget - quantum.PhaseQFI(rho); deficit > 0 {
		res.QFIDeficit = deficit
	}
	res.Regularization = floats.Sum(reg)

	w := cfg.Weights
	res.Objective = w.FreeEnergy*res.FreeEnergy +
		w.Transport*res.Transport +
		w.QFIDeficit*res.QFIDeficit +
		w.Regularization*res.Regularization
	res.FinalState = state
	res.FinalRho = rho
	return res, nil
}

// objective is the scalar-only fast path used inside the optimizer loop.
func objective(cfg Config, a []float64) float64 {
	dt := cfg.Horizon / float64(cfg.Steps)
	state := flow.State{Mu: 1.0, Sigma: 0.5}
	rho := quantum.PlusState()

	prev := state
	transport := 0.0
	reg := 0.0
	for _, ak := range a {
		state = flow.Step(state, ak, dt, cfg.Flow)
		rho = quantum.DephasingStep(rho, cfg.Omega, cfg.Gamma*ak, dt)
		transport += flow.FisherRaoRate(prev, state)
		prev = state
		d := ak - 1
		reg += d * d * dt
	}

	deficit := cfg.QFITarget - quantum.PhaseQFI(rho)
	if deficit < 0 {
		deficit = 0
	}
	w := cfg.Weights
	return w.FreeEnergy*flow.FreeEnergy(state, cfg.Flow) +
		w.Transport*transport +
		w.QFIDeficit*deficit +
		w.Regularization*reg
}
