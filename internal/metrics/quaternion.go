package metrics

import (
	"math"

	"github.com/san-kum/ocptrans/internal/integrator"
)

// QuaternionDrift is the largest deviation of a quaternion block norm from
// one over every node of the phase.
type QuaternionDrift struct {
	blocks []integrator.QuaternionBlock
	drift  float64
}

func NewQuaternionDrift(blocks []integrator.QuaternionBlock) *QuaternionDrift {
	return &QuaternionDrift{blocks: blocks}
}

func (q *QuaternionDrift) Name() string { return "quaternion_drift" }

func (q *QuaternionDrift) Observe(iv Interval) {
	if iv.Index == 0 {
		q.observe(iv.X0)
	}
	q.observe(iv.X1)
}

func (q *QuaternionDrift) observe(x []float64) {
	for _, b := range q.blocks {
		n := math.Sqrt(x[b.X]*x[b.X] + x[b.Y]*x[b.Y] + x[b.Z]*x[b.Z] + x[b.W]*x[b.W])
		q.drift = math.Max(q.drift, math.Abs(n-1))
	}
}

func (q *QuaternionDrift) Value() float64 { return q.drift }

func (q *QuaternionDrift) Reset() { q.drift = 0 }
