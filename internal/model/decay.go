package model

import "github.com/san-kum/ocptrans/internal/ad"

// Decay is x' = -a*x with the rate a as its only parameter.
type Decay struct{}

func NewDecay() *Decay { return &Decay{} }

func (d *Decay) Name() string             { return "decay" }
func (d *Decay) StateDim() int            { return 1 }
func (d *Decay) ControlDim() int          { return 0 }
func (d *Decay) ParamDim() int            { return 1 }
func (d *Decay) Skeleton() *Skeleton      { return nil }
func (d *Decay) DefaultState() []float64  { return []float64{1} }
func (d *Decay) DefaultParams() []float64 { return []float64{1} }

func (d *Decay) Derive(x, _, p ad.Vector) ad.Vector {
	return ad.Vector{ad.Neg(ad.Mul(p[0], x[0]))}
}
