// Package ad is a small scalar expression graph with automatic
// differentiation. Graphs are built from symbols and constants, compiled
// into immutable Functions and evaluated numerically with either forward
// mode dual numbers or finite differences for derivatives.
package ad

import (
	"fmt"
	"math"
	"strconv"
)

type op uint8

const (
	opConst op = iota
	opSym
	opAdd
	opSub
	opMul
	opDiv
	opNeg
	opSqrt
	opSin
	opCos
	opExp
	opLog
	opRoot
)

var opNames = map[op]string{
	opAdd:  "+",
	opSub:  "-",
	opMul:  "*",
	opDiv:  "/",
	opNeg:  "-",
	opSqrt: "sqrt",
	opSin:  "sin",
	opCos:  "cos",
	opExp:  "exp",
	opLog:  "log",
}

// Expr is one node of a scalar expression graph. Nodes never change after
// construction and can be shared by any number of graphs.
type Expr struct {
	op   op
	val  float64
	name string
	a, b *Expr
	call *rootCall
	out  int
}

func Const(v float64) *Expr {
	return &Expr{op: opConst, val: v}
}

func Sym(name string) *Expr {
	return &Expr{op: opSym, name: name}
}

func (e *Expr) IsConst() bool  { return e.op == opConst }
func (e *Expr) IsSymbol() bool { return e.op == opSym }
func (e *Expr) Name() string   { return e.name }

// Value returns the value of a constant node.
func (e *Expr) Value() (float64, bool) {
	if e.op != opConst {
		return 0, false
	}
	return e.val, true
}

func (e *Expr) String() string {
	switch e.op {
	case opConst:
		return strconv.FormatFloat(e.val, 'g', -1, 64)
	case opSym:
		return e.name
	case opAdd, opSub, opMul, opDiv:
		return fmt.Sprintf("(%s %s %s)", e.a, opNames[e.op], e.b)
	case opNeg:
		return fmt.Sprintf("(-%s)", e.a)
	case opRoot:
		return fmt.Sprintf("%s[%d]", e.call.rf.name, e.out)
	default:
		return fmt.Sprintf("%s(%s)", opNames[e.op], e.a)
	}
}

func isConst(e *Expr, v float64) bool {
	return e.op == opConst && e.val == v
}

func Add(a, b *Expr) *Expr {
	switch {
	case isConst(a, 0):
		return b
	case isConst(b, 0):
		return a
	case a.op == opConst && b.op == opConst:
		return Const(a.val + b.val)
	}
	return &Expr{op: opAdd, a: a, b: b}
}

func Sub(a, b *Expr) *Expr {
	switch {
	case isConst(b, 0):
		return a
	case isConst(a, 0):
		return Neg(b)
	case a.op == opConst && b.op == opConst:
		return Const(a.val - b.val)
	}
	return &Expr{op: opSub, a: a, b: b}
}

func Mul(a, b *Expr) *Expr {
	switch {
	case isConst(a, 0) || isConst(b, 0):
		return Const(0)
	case isConst(a, 1):
		return b
	case isConst(b, 1):
		return a
	case a.op == opConst && b.op == opConst:
		return Const(a.val * b.val)
	}
	return &Expr{op: opMul, a: a, b: b}
}

func Div(a, b *Expr) *Expr {
	switch {
	case isConst(b, 1):
		return a
	case a.op == opConst && b.op == opConst:
		return Const(a.val / b.val)
	}
	return &Expr{op: opDiv, a: a, b: b}
}

func Neg(a *Expr) *Expr {
	switch a.op {
	case opConst:
		return Const(-a.val)
	case opNeg:
		return a.a
	}
	return &Expr{op: opNeg, a: a}
}

// Scale multiplies a by the constant f.
func Scale(f float64, a *Expr) *Expr {
	return Mul(Const(f), a)
}

func Sqrt(a *Expr) *Expr { return unary(opSqrt, a, math.Sqrt) }
func Sin(a *Expr) *Expr  { return unary(opSin, a, math.Sin) }
func Cos(a *Expr) *Expr  { return unary(opCos, a, math.Cos) }
func Exp(a *Expr) *Expr  { return unary(opExp, a, math.Exp) }
func Log(a *Expr) *Expr  { return unary(opLog, a, math.Log) }

func unary(o op, a *Expr, fn func(float64) float64) *Expr {
	if a.op == opConst {
		return Const(fn(a.val))
	}
	return &Expr{op: o, a: a}
}

// rebuild applies operator o to new operands, folding constants the same
// way the public constructors do.
func rebuild(o op, a, b *Expr) *Expr {
	switch o {
	case opAdd:
		return Add(a, b)
	case opSub:
		return Sub(a, b)
	case opMul:
		return Mul(a, b)
	case opDiv:
		return Div(a, b)
	case opNeg:
		return Neg(a)
	case opSqrt:
		return Sqrt(a)
	case opSin:
		return Sin(a)
	case opCos:
		return Cos(a)
	case opExp:
		return Exp(a)
	case opLog:
		return Log(a)
	}
	panic(fmt.Sprintf("ad: cannot rebuild op %d", o))
}
