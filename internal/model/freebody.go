package model

import (
	"fmt"

	"github.com/san-kum/ocptrans/internal/ad"
)

// FreeBody is a rigid body with three translations and a quaternion
// orientation, driven by a body-frame force and torque.
//
// State: q = [x y z qx qy qz qw], qdot = [vx vy vz wx wy wz].
// Control: [fx fy fz tx ty tz]. Parameter: [mass].
type FreeBody struct {
	I1, I2, I3 float64
	Gravity    float64
}

func NewFreeBody() *FreeBody {
	return &FreeBody{I1: 1.0, I2: 1.0, I3: 2.0, Gravity: 9.81}
}

func (b *FreeBody) Name() string    { return "freebody" }
func (b *FreeBody) StateDim() int   { return 13 }
func (b *FreeBody) ControlDim() int { return 6 }
func (b *FreeBody) ParamDim() int   { return 1 }

func (b *FreeBody) Skeleton() *Skeleton {
	return &Skeleton{Name: "freebody", Segments: []Segment{
		{Name: "translation", Dof: 3},
		{Name: "rotation", Dof: 3, Quaternion: true},
	}}
}

func (b *FreeBody) DefaultState() []float64 {
	return []float64{0, 0, 1, 0, 0, 0, 1, 0.5, 0, 3, 0.2, 0.1, 4}
}

func (b *FreeBody) DefaultParams() []float64 { return []float64{1} }

func (b *FreeBody) Derive(s, u, p ad.Vector) ad.Vector {
	v := s.Slice(7, 10)
	qx, qy, qz, qw := s[3], s[4], s[5], s[6]
	w1, w2, w3 := s[10], s[11], s[12]
	mass := p[0]

	// Quaternion kinematics q' = q * (0, w) / 2 with body rates.
	half := func(terms ...*ad.Expr) *ad.Expr {
		acc := ad.Const(0)
		for _, t := range terms {
			acc = ad.Add(acc, t)
		}
		return ad.Scale(0.5, acc)
	}
	dqw := half(ad.Neg(ad.Mul(qx, w1)), ad.Neg(ad.Mul(qy, w2)), ad.Neg(ad.Mul(qz, w3)))
	dqx := half(ad.Mul(qw, w1), ad.Mul(qy, w3), ad.Neg(ad.Mul(qz, w2)))
	dqy := half(ad.Mul(qw, w2), ad.Mul(qz, w1), ad.Neg(ad.Mul(qx, w3)))
	dqz := half(ad.Mul(qw, w3), ad.Mul(qx, w2), ad.Neg(ad.Mul(qy, w1)))

	acc := ad.Vector{
		ad.Div(u[0], mass),
		ad.Div(u[1], mass),
		ad.Sub(ad.Div(u[2], mass), ad.Const(b.Gravity)),
	}

	// Euler's equations.
	dw1 := ad.Div(ad.Add(ad.Scale(b.I2-b.I3, ad.Mul(w2, w3)), u[3]), ad.Const(b.I1))
	dw2 := ad.Div(ad.Add(ad.Scale(b.I3-b.I1, ad.Mul(w3, w1)), u[4]), ad.Const(b.I2))
	dw3 := ad.Div(ad.Add(ad.Scale(b.I1-b.I2, ad.Mul(w1, w2)), u[5]), ad.Const(b.I3))

	return ad.Vertcat(v, ad.Vector{dqx, dqy, dqz, dqw}, acc, ad.Vector{dw1, dw2, dw3})
}

func (b *FreeBody) GetParams() map[string]float64 {
	return map[string]float64{"I1": b.I1, "I2": b.I2, "I3": b.I3, "gravity": b.Gravity}
}

func (b *FreeBody) SetParam(name string, value float64) error {
	switch name {
	case "I1":
		b.I1 = value
	case "I2":
		b.I2 = value
	case "I3":
		b.I3 = value
	case "gravity":
		b.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}

// Energy is the translational and rotational kinetic energy plus the
// potential of the height z.
func (b *FreeBody) Energy(x, params []float64) float64 {
	m := params[0]
	v, w := x[7:10], x[10:13]
	ke := 0.5 * m * (v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	re := 0.5 * (b.I1*w[0]*w[0] + b.I2*w[1]*w[1] + b.I3*w[2]*w[2])
	return ke + re + m*b.Gravity*x[2]
}
