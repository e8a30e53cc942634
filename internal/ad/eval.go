package ad

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/dual"
)

// arith is the scalar algebra a tape is evaluated in.
type arith[T any] interface {
	konst(v float64) T
	apply(o op, a, b T) T
	root(rf *Rootfinder, args []T) ([]T, error)
}

func run[T any](f *Function, ar arith[T], args [][]T) ([][]T, error) {
	slots := make([]T, f.nslots)
	for k, in := range f.inSlots {
		for i, s := range in {
			slots[s] = args[k][i]
		}
	}

	roots := make([][]T, len(f.calls))
	for _, in := range f.tape {
		switch in.op {
		case opConst:
			slots[in.dst] = ar.konst(in.val)
		case opRoot:
			if roots[in.call] == nil {
				site := f.calls[in.call]
				cargs := make([]T, len(site.args))
				for i, s := range site.args {
					cargs[i] = slots[s]
				}
				z, err := ar.root(site.rf, cargs)
				if err != nil {
					return nil, err
				}
				roots[in.call] = z
			}
			slots[in.dst] = roots[in.call][in.out]
		default:
			slots[in.dst] = ar.apply(in.op, slots[in.a], slots[in.b])
		}
	}

	outs := make([][]T, len(f.outSlots))
	for k, o := range f.outSlots {
		outs[k] = make([]T, len(o))
		for i, s := range o {
			outs[k][i] = slots[s]
		}
	}
	return outs, nil
}

type realArith struct{}

func (realArith) konst(v float64) float64 { return v }

func (realArith) apply(o op, a, b float64) float64 {
	switch o {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	case opDiv:
		return a / b
	case opNeg:
		return -a
	case opSqrt:
		return math.Sqrt(a)
	case opSin:
		return math.Sin(a)
	case opCos:
		return math.Cos(a)
	case opExp:
		return math.Exp(a)
	case opLog:
		return math.Log(a)
	}
	panic(fmt.Sprintf("ad: unknown op %d", o))
}

func (realArith) root(rf *Rootfinder, args []float64) ([]float64, error) {
	return rf.solve(args)
}

type dualArith struct{}

func (dualArith) konst(v float64) dual.Number { return dual.Number{Real: v} }

func (dualArith) apply(o op, a, b dual.Number) dual.Number {
	switch o {
	case opAdd:
		return dual.Add(a, b)
	case opSub:
		return dual.Sub(a, b)
	case opMul:
		return dual.Mul(a, b)
	case opDiv:
		return dual.Mul(a, dual.Inv(b))
	case opNeg:
		return dual.Scale(-1, a)
	case opSqrt:
		return dual.Sqrt(a)
	case opSin:
		return dual.Sin(a)
	case opCos:
		return dual.Cos(a)
	case opExp:
		return dual.Exp(a)
	case opLog:
		return dual.Log(a)
	}
	panic(fmt.Sprintf("ad: unknown op %d", o))
}

func (dualArith) root(rf *Rootfinder, args []dual.Number) ([]dual.Number, error) {
	return rf.solveDual(args)
}

type symArith struct{}

func (symArith) konst(v float64) *Expr { return Const(v) }

func (symArith) apply(o op, a, b *Expr) *Expr { return rebuild(o, a, b) }

func (symArith) root(rf *Rootfinder, args []*Expr) ([]*Expr, error) {
	return rf.call(args), nil
}
