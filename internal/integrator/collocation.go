package integrator

import (
	"fmt"
	"sort"

	"github.com/san-kum/ocptrans/internal/ad"
	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
)

// Tableau holds the Legendre collocation coefficients of one degree.
// Points[0] is 0 and the remaining points are the Legendre roots on (0, 1).
// C[j][r] is the derivative of the j-th Lagrange basis polynomial at
// Points[r] and D[j] its value at 1.
type Tableau struct {
	Points []float64
	C      [][]float64
	D      []float64
}

func (t *Tableau) Degree() int { return len(t.Points) - 1 }

func NewTableau(degree int) (*Tableau, error) {
	if degree < 1 {
		return nil, fmt.Errorf("%w: collocation degree %d, want >= 1", ErrConfiguration, degree)
	}

	roots := make([]float64, degree)
	weights := make([]float64, degree)
	quad.Legendre{}.FixedLocations(roots, weights, 0, 1)
	sort.Float64s(roots)

	points := append([]float64{0}, roots...)
	n := len(points)
	tab := &Tableau{Points: points, C: make([][]float64, n), D: make([]float64, n)}

	t := ad.Sym("t")
	in := []ad.Matrix{ad.ColumnMatrix(ad.Vector{t})}
	for j := 0; j < n; j++ {
		l := ad.Const(1)
		for r := 0; r < n; r++ {
			if r == j {
				continue
			}
			l = ad.Mul(l, ad.Div(ad.Sub(t, ad.Const(points[r])), ad.Const(points[j]-points[r])))
		}

		basis, err := ad.NewFunction(fmt.Sprintf("lagrange_%d", j), in,
			[]ad.Matrix{ad.ColumnMatrix(ad.Vector{l})}, []string{"t"}, []string{"l"})
		if err != nil {
			return nil, err
		}

		end, err := basis.Call(scalarDense(1))
		if err != nil {
			return nil, err
		}
		tab.D[j] = end[0].At(0, 0)

		tab.C[j] = make([]float64, n)
		for r, tr := range points {
			jac, err := basis.Jacobian(0, 0, scalarDense(tr))
			if err != nil {
				return nil, err
			}
			tab.C[j][r] = jac.At(0, 0)
		}
	}
	return tab, nil
}

func scalarDense(v float64) *mat.Dense {
	return mat.NewDense(1, 1, []float64{v})
}

// collocation integrates a finite element in one implicit step. The interior
// states are unknowns of a root finding problem and are not renormalized.
type collocation struct {
	ode     *ode
	tab     *Tableau
	h       float64
	solver  ad.RootSolver
	backend ad.Backend
}

func (c *collocation) FiniteElement(x0 ad.Vector, u ad.Matrix, p ad.Vector) (ad.Vector, ad.Matrix, error) {
	nx := len(x0)
	d := c.tab.Degree()
	ur, uc := u.Dims()

	z := ad.SymVector("x_irk", nx*d)
	xs := ad.SymVector("x0", nx)
	us := ad.SymMatrix("p", ur, uc)
	ps := ad.SymVector("params", len(p))

	states := make([]ad.Vector, d+1)
	states[0] = xs
	for j := 1; j <= d; j++ {
		states[j] = z.Slice((j-1)*nx, j*nx)
	}

	eqs := make(ad.Vector, 0, nx*d)
	for j := 1; j <= d; j++ {
		fj, err := c.ode.derive(states[j], c.ode.interp.Sample(us, c.tab.Points[j]), ps)
		if err != nil {
			return nil, ad.Matrix{}, err
		}
		for i := 0; i < nx; i++ {
			xp := ad.Const(0)
			for r := 0; r <= d; r++ {
				xp = ad.Add(xp, ad.Scale(c.tab.C[r][j], states[r][i]))
			}
			eqs = append(eqs, ad.Sub(ad.Scale(c.h, fj[i]), xp))
		}
	}

	residual, err := ad.NewFunction("collocation",
		[]ad.Matrix{ad.ColumnMatrix(z), ad.ColumnMatrix(xs), us, ad.ColumnMatrix(ps)},
		[]ad.Matrix{ad.ColumnMatrix(eqs)},
		[]string{"x_irk", "x0", "p", "params"}, []string{"residual"},
		ad.WithBackend(c.backend))
	if err != nil {
		return nil, ad.Matrix{}, err
	}
	rf, err := ad.NewRootfinder("collocation", residual, c.solver)
	if err != nil {
		return nil, ad.Matrix{}, err
	}

	guess := make(ad.Vector, 0, nx*d)
	for j := 0; j < d; j++ {
		guess = append(guess, x0...)
	}
	roots, err := rf.Call(guess, ad.ColumnMatrix(x0), u, ad.ColumnMatrix(p))
	if err != nil {
		return nil, ad.Matrix{}, err
	}

	xf := make(ad.Vector, nx)
	for i := range xf {
		acc := ad.Scale(c.tab.D[0], x0[i])
		for r := 1; r <= d; r++ {
			acc = ad.Add(acc, ad.Scale(c.tab.D[r], roots[(r-1)*nx+i]))
		}
		xf[i] = acc
	}
	return xf, ad.Horzcat(ad.ColumnMatrix(x0), ad.ColumnMatrix(xf)), nil
}

func (c *collocation) Columns() int { return 2 }
