package model

import (
	"fmt"
	"math"

	"github.com/san-kum/ocptrans/internal/ad"
)

// Pendulum is a damped pendulum driven by a joint torque. Its mass is the
// free parameter.
type Pendulum struct {
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) Name() string    { return "pendulum" }
func (p *Pendulum) StateDim() int   { return 2 }
func (p *Pendulum) ControlDim() int { return 1 }
func (p *Pendulum) ParamDim() int   { return 1 }

func (p *Pendulum) Skeleton() *Skeleton {
	return &Skeleton{Name: "pendulum", Segments: []Segment{{Name: "arm", Dof: 1}}}
}

func (p *Pendulum) DefaultState() []float64  { return []float64{0.5, 0} }
func (p *Pendulum) DefaultParams() []float64 { return []float64{1} }

// Derive returns [omega, alpha] for x = [theta, omega], u = [torque] and
// p = [mass].
func (p *Pendulum) Derive(x, u, params ad.Vector) ad.Vector {
	theta, omega := x[0], x[1]
	mass := params[0]

	// alpha = (tau - c*omega - m*g*L*sin(theta)) / (m*L^2)
	num := ad.Sub(ad.Sub(u[0], ad.Scale(p.Damping, omega)),
		ad.Mul(mass, ad.Scale(p.Gravity*p.Length, ad.Sin(theta))))
	alpha := ad.Div(num, ad.Scale(p.Length*p.Length, mass))

	return ad.Vector{omega, alpha}
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}

func (p *Pendulum) Energy(x, params []float64) float64 {
	theta, omega := x[0], x[1]
	m := params[0]
	ke := 0.5 * m * p.Length * p.Length * omega * omega
	pe := m * p.Gravity * p.Length * (1 - math.Cos(theta))
	return ke + pe
}
