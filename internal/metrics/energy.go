package metrics

import (
	"math"

	"github.com/san-kum/ocptrans/internal/model"
)

// EnergyDrift is the largest relative change of the total energy at any
// node from its value at the first node.
type EnergyDrift struct {
	sys     model.Hamiltonian
	params  []float64
	initial float64
	drift   float64
	started bool
}

func NewEnergyDrift(sys model.Hamiltonian, params []float64) *EnergyDrift {
	return &EnergyDrift{sys: sys, params: params}
}

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(iv Interval) {
	if !e.started {
		e.initial = e.sys.Energy(iv.X0, e.params)
		e.started = true
	}
	if e.initial == 0 {
		return
	}
	energy := e.sys.Energy(iv.X1, e.params)
	e.drift = math.Max(e.drift, math.Abs(energy-e.initial)/math.Abs(e.initial))
}

func (e *EnergyDrift) Value() float64 { return e.drift }

func (e *EnergyDrift) Reset() {
	e.initial, e.drift, e.started = 0, 0, false
}
