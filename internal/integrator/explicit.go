package integrator

import (
	"github.com/san-kum/ocptrans/internal/ad"
)

// Shanks' 10 stage, 8th order tableau. Row i of rk8A holds the integer
// weights of stages 0..i-1, scaled by 1/rk8Scale[i].
var (
	rk8Nodes = [10]float64{0, 4.0 / 27.0, 2.0 / 9.0, 1.0 / 3.0, 1.0 / 2.0, 2.0 / 3.0, 1.0 / 6.0, 1, 5.0 / 6.0, 1}
	rk8Scale = [10]float64{1, 27, 18, 12, 8, 54, 4320, 20, 288, 820}
	rk8A     = [10][]float64{
		nil,
		{4},
		{1, 3},
		{1, 0, 3},
		{1, 0, 0, 3},
		{13, 0, -27, 42, 8},
		{389, 0, -54, 966, -824, 243},
		{-231, 0, 81, -1164, 656, -122, 800},
		{-127, 0, 18, -678, 456, -9, 576, 4},
		{1481, 0, -81, 7104, -3376, 72, -5040, -60, 720},
	}

	rk8B    = []float64{41, 0, 0, 27, 272, 27, 216, 0, 216, 41}
	rk8BDiv = 840.0
	rk4B    = []float64{1, 2, 2, 1}
	rk4BDiv = 6.0
)

// stageFunc advances x by one sub-step of size h starting at normalized
// time t. hNorm is the normalized length of the sub-step.
type stageFunc func(f derivFunc, h, hNorm, t float64, x ad.Vector) (ad.Vector, error)

// derivFunc evaluates the dynamics at a state and normalized time.
type derivFunc func(x ad.Vector, t float64) (ad.Vector, error)

func rk4Stages(f derivFunc, h, hNorm, t float64, x ad.Vector) (ad.Vector, error) {
	k1, err := f(x, t)
	if err != nil {
		return nil, err
	}
	k2, err := f(ad.Combine(x, h/2, []float64{1}, []ad.Vector{k1}), t+hNorm/2)
	if err != nil {
		return nil, err
	}
	k3, err := f(ad.Combine(x, h/2, []float64{1}, []ad.Vector{k2}), t+hNorm/2)
	if err != nil {
		return nil, err
	}
	k4, err := f(ad.Combine(x, h, []float64{1}, []ad.Vector{k3}), t+hNorm)
	if err != nil {
		return nil, err
	}
	return ad.Combine(x, h/rk4BDiv, rk4B, []ad.Vector{k1, k2, k3, k4}), nil
}

func rk8Stages(f derivFunc, h, hNorm, t float64, x ad.Vector) (ad.Vector, error) {
	ks := make([]ad.Vector, 0, len(rk8Nodes))
	for i := range rk8Nodes {
		xi := x
		if i > 0 {
			xi = ad.Combine(x, h/rk8Scale[i], rk8A[i], ks)
		}
		k, err := f(xi, t+hNorm*rk8Nodes[i])
		if err != nil {
			return nil, err
		}
		ks = append(ks, k)
	}
	return ad.Combine(x, h/rk8BDiv, rk8B, ks), nil
}

// explicitRK integrates a finite element with n fixed sub-steps.
type explicitRK struct {
	ode    *ode
	stages stageFunc
	n      int
	h      float64
	hNorm  float64
	blocks []QuaternionBlock
}

func newExplicit(o *ode, m Method, n int, stepTime float64, blocks []QuaternionBlock) *explicitRK {
	stages := rk4Stages
	if m == RK8 {
		stages = rk8Stages
	}
	return &explicitRK{
		ode:    o,
		stages: stages,
		n:      n,
		h:      stepTime / float64(n),
		hNorm:  1 / float64(n),
		blocks: blocks,
	}
}

// Step returns the state one sub-step of size h after xPrev, with the
// sub-step starting at tNorm inside the finite element.
func (r *explicitRK) Step(h, tNorm float64, xPrev ad.Vector, u ad.Matrix, p ad.Vector) (ad.Vector, error) {
	f := func(x ad.Vector, t float64) (ad.Vector, error) {
		return r.ode.derive(x, r.ode.interp.Sample(u, t), p)
	}
	return r.stages(f, h, r.hNorm, tNorm, xPrev)
}

func (r *explicitRK) FiniteElement(x0 ad.Vector, u ad.Matrix, p ad.Vector) (ad.Vector, ad.Matrix, error) {
	xall := ad.NewMatrix(len(x0), r.n+1)
	xall.SetCol(0, x0)
	x := x0
	for i := 1; i <= r.n; i++ {
		tNorm := float64(i-1) / float64(r.n)
		next, err := r.Step(r.h, tNorm, x, u, p)
		if err != nil {
			return nil, ad.Matrix{}, err
		}
		normalizeQuaternions(next, r.blocks)
		xall.SetCol(i, next)
		x = next
	}
	return x, xall, nil
}

func (r *explicitRK) Columns() int { return r.n + 1 }
