package ad

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Vector []*Expr

// SymVector returns n fresh symbols named name_0 .. name_{n-1}.
func SymVector(name string, n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = Sym(fmt.Sprintf("%s_%d", name, i))
	}
	return v
}

func ConstVector(vals []float64) Vector {
	v := make(Vector, len(vals))
	for i, x := range vals {
		v[i] = Const(x)
	}
	return v
}

func ZeroVector(n int) Vector {
	return ConstVector(make([]float64, n))
}

func (v Vector) Len() int { return len(v) }

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

// Values returns the numeric values of v when every element is constant.
func (v Vector) Values() ([]float64, bool) {
	out := make([]float64, len(v))
	for i, e := range v {
		x, ok := e.Value()
		if !ok {
			return nil, false
		}
		out[i] = x
	}
	return out, true
}

func (v Vector) Slice(i, j int) Vector {
	return v[i:j:j]
}

// Select returns the elements of v at the given indices.
func (v Vector) Select(idx []int) Vector {
	out := make(Vector, len(idx))
	for k, i := range idx {
		out[k] = v[i]
	}
	return out
}

func AddVec(a, b Vector) Vector {
	out := make(Vector, len(a))
	for i := range a {
		out[i] = Add(a[i], b[i])
	}
	return out
}

func SubVec(a, b Vector) Vector {
	out := make(Vector, len(a))
	for i := range a {
		out[i] = Sub(a[i], b[i])
	}
	return out
}

// MulVec is the elementwise product of a and b.
func MulVec(a, b Vector) Vector {
	out := make(Vector, len(a))
	for i := range a {
		out[i] = Mul(a[i], b[i])
	}
	return out
}

func ScaleVec(s *Expr, v Vector) Vector {
	out := make(Vector, len(v))
	for i := range v {
		out[i] = Mul(s, v[i])
	}
	return out
}

// Combine returns x + h*sum(w[i]*ks[i]). Zero weights are skipped so the
// graph only references the stages that contribute.
func Combine(x Vector, h float64, w []float64, ks []Vector) Vector {
	out := x.Clone()
	for i := range out {
		acc := Const(0)
		for s, k := range ks {
			if w[s] == 0 {
				continue
			}
			acc = Add(acc, Scale(w[s], k[i]))
		}
		out[i] = Add(x[i], Scale(h, acc))
	}
	return out
}

func Vertcat(vs ...Vector) Vector {
	var out Vector
	for _, v := range vs {
		out = append(out, v...)
	}
	return out
}

func Dot(a, b Vector) *Expr {
	acc := Const(0)
	for i := range a {
		acc = Add(acc, Mul(a[i], b[i]))
	}
	return acc
}

// Norm2 is the Euclidean norm of v.
func Norm2(v Vector) *Expr {
	return Sqrt(Dot(v, v))
}

// Matrix is a dense column-major matrix of expressions.
type Matrix struct {
	rows, cols int
	data       []*Expr
}

// NewMatrix returns a rows x cols matrix of zeros.
func NewMatrix(rows, cols int) Matrix {
	m := Matrix{rows: rows, cols: cols, data: make([]*Expr, rows*cols)}
	for i := range m.data {
		m.data[i] = Const(0)
	}
	return m
}

// SymMatrix returns a matrix of fresh symbols named name_i_j.
func SymMatrix(name string, rows, cols int) Matrix {
	m := Matrix{rows: rows, cols: cols, data: make([]*Expr, rows*cols)}
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			m.data[j*rows+i] = Sym(fmt.Sprintf("%s_%d_%d", name, i, j))
		}
	}
	return m
}

// ColumnMatrix wraps v as a len(v) x 1 matrix sharing its nodes.
func ColumnMatrix(v Vector) Matrix {
	return Matrix{rows: len(v), cols: 1, data: v.Clone()}
}

// ConstMatrix converts a numeric matrix to constant expressions. A nil
// matrix gives an empty Matrix.
func ConstMatrix(a mat.Matrix) Matrix {
	if a == nil {
		return Matrix{}
	}
	r, c := a.Dims()
	m := Matrix{rows: r, cols: c, data: make([]*Expr, r*c)}
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			m.data[j*r+i] = Const(a.At(i, j))
		}
	}
	return m
}

func (m Matrix) Dims() (int, int) { return m.rows, m.cols }
func (m Matrix) Len() int         { return m.rows * m.cols }

func (m Matrix) At(i, j int) *Expr {
	m.check(i, j)
	return m.data[j*m.rows+i]
}

func (m Matrix) Set(i, j int, e *Expr) {
	m.check(i, j)
	m.data[j*m.rows+i] = e
}

func (m Matrix) check(i, j int) {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(fmt.Sprintf("ad: index (%d,%d) out of range for %dx%d matrix", i, j, m.rows, m.cols))
	}
}

func (m Matrix) Col(j int) Vector {
	if j < 0 || j >= m.cols {
		panic(fmt.Sprintf("ad: column %d out of range for %dx%d matrix", j, m.rows, m.cols))
	}
	return Vector(m.data[j*m.rows : (j+1)*m.rows]).Clone()
}

func (m Matrix) SetCol(j int, v Vector) {
	if len(v) != m.rows {
		panic(fmt.Sprintf("ad: column of length %d does not fit %d rows", len(v), m.rows))
	}
	copy(m.data[j*m.rows:(j+1)*m.rows], v)
}

// Elements returns the entries of m in column-major order.
func (m Matrix) Elements() Vector {
	return Vector(m.data).Clone()
}

// Values returns m as a numeric matrix when every entry is constant.
func (m Matrix) Values() (*mat.Dense, bool) {
	vals, ok := Vector(m.data).Values()
	if !ok || m.Len() == 0 {
		return nil, false
	}
	return mat.NewDense(m.rows, m.cols, colToRow(vals, m.rows, m.cols)), true
}

// Horzcat joins matrices with the same number of rows side by side.
func Horzcat(ms ...Matrix) Matrix {
	if len(ms) == 0 {
		return Matrix{}
	}
	out := Matrix{rows: ms[0].rows}
	for _, m := range ms {
		if m.rows != out.rows {
			panic(fmt.Sprintf("ad: horzcat of %d and %d rows", out.rows, m.rows))
		}
		out.cols += m.cols
		out.data = append(out.data, m.data...)
	}
	return out
}

func colToRow(col []float64, r, c int) []float64 {
	row := make([]float64, len(col))
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			row[i*c+j] = col[j*r+i]
		}
	}
	return row
}
