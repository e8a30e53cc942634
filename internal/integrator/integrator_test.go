package integrator_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/ocptrans/internal/ad"
	"github.com/san-kum/ocptrans/internal/integrator"
)

type testModel struct {
	dofs  []int
	quats []bool
}

func (m testModel) NbSegment() int               { return len(m.dofs) }
func (m testModel) SegmentDof(i int) int         { return m.dofs[i] }
func (m testModel) SegmentQuaternion(i int) bool { return m.quats[i] }

func (m testModel) NbDof() int {
	n := 0
	for _, d := range m.dofs {
		n += d
	}
	return n
}

func (m testModel) NbQuat() int {
	n := 0
	for _, q := range m.quats {
		if q {
			n++
		}
	}
	return n
}

func column(v ...float64) *mat.Dense {
	return mat.NewDense(len(v), 1, v)
}

// decay builds dx/dt = -a*x with a = params[0]*scale.
func decay(method integrator.Method, tf float64, n int, scale float64) *integrator.Integrator {
	a := ad.SymVector("a", 1)
	spec := integrator.OdeSpec{
		State:   ad.SymVector("x", 1),
		Control: ad.SymMatrix("u", 0, 1),
		Dynamics: func(x, u, p ad.Vector) ad.Vector {
			return ad.Vector{ad.Neg(ad.Mul(p[0], x[0]))}
		},
	}
	it, err := integrator.New(method, spec, integrator.OdeOptions{
		Tf:                     tf,
		Params:                 a,
		ParamScaling:           []float64{scale},
		ControlType:            integrator.Constant,
		NumberOfFiniteElements: n,
		CollocationDegree:      n,
	})
	Expect(err).NotTo(HaveOccurred())
	return it
}

func decayError(method integrator.Method, tf float64, n int) float64 {
	it := decay(method, tf, n, 1)
	xf, _, err := it.Call(column(1), nil, column(1))
	Expect(err).NotTo(HaveOccurred())
	return math.Abs(xf.At(0, 0) - math.Exp(-tf))
}

func order(method integrator.Method, tf float64, steps []int) float64 {
	logH := make([]float64, len(steps))
	logErr := make([]float64, len(steps))
	for i, n := range steps {
		logH[i] = math.Log(tf / float64(n))
		logErr[i] = math.Log(decayError(method, tf, n))
	}
	_, slope := stat.LinearRegression(logH, logErr, nil, false)
	return slope
}

var _ = Describe("explicit Runge-Kutta", func() {
	DescribeTable("zero dynamics leave the state unchanged",
		func(method integrator.Method, tf float64, n int) {
			spec := integrator.OdeSpec{
				State:   ad.SymVector("x", 3),
				Control: ad.SymMatrix("u", 1, 1),
				Dynamics: func(x, u, p ad.Vector) ad.Vector {
					return ad.ZeroVector(len(x))
				},
			}
			it, err := integrator.New(method, spec, integrator.OdeOptions{
				Tf:                     tf,
				ControlType:            integrator.Constant,
				NumberOfFiniteElements: n,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(it.Stepper().Columns()).To(Equal(n + 1))

			x0 := column(1.5, -2, 0.3)
			xf, xall, err := it.Call(x0, column(4), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.Equal(xf, x0)).To(BeTrue())

			r, c := xall.Dims()
			Expect(r).To(Equal(3))
			Expect(c).To(Equal(n + 1))
			for j := 0; j < c; j++ {
				Expect(mat.Equal(xall.ColView(j), x0)).To(BeTrue())
			}
		},
		Entry("RK4, one step", integrator.RK4, 0.1, 1),
		Entry("RK4, seven steps", integrator.RK4, 2.0, 7),
		Entry("RK8, one step", integrator.RK8, 0.1, 1),
		Entry("RK8, three steps", integrator.RK8, 2.0, 3),
	)

	DescribeTable("quaternion blocks are unit after every sub-step",
		func(method integrator.Method, n int) {
			model := testModel{dofs: []int{3}, quats: []bool{true}}
			drift := []float64{0.1, -0.2, 0.3, 0.05}
			spec := integrator.OdeSpec{
				State:   ad.SymVector("q", 4),
				Control: ad.SymMatrix("u", 0, 1),
				Dynamics: func(x, u, p ad.Vector) ad.Vector {
					return ad.ConstVector(drift)
				},
			}
			it, err := integrator.New(method, spec, integrator.OdeOptions{
				Model:                  model,
				Tf:                     0.5,
				ControlType:            integrator.Constant,
				NumberOfFiniteElements: n,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(it.QuaternionBlocks()).To(Equal([]integrator.QuaternionBlock{{X: 0, Y: 1, Z: 2, W: 3}}))

			_, xall, err := it.Call(column(0.3, 0.1, -0.2, 2.0), nil, nil)
			Expect(err).NotTo(HaveOccurred())
			for j := 1; j <= n; j++ {
				q := mat.Col(nil, j, xall)
				Expect(floats.Norm(q, 2)).To(BeNumerically("~", 1, 1e-10))
			}
		},
		Entry("RK4, n=1", integrator.RK4, 1),
		Entry("RK4, n=5", integrator.RK4, 5),
		Entry("RK8, n=1", integrator.RK8, 1),
		Entry("RK8, n=4", integrator.RK8, 4),
	)

	It("converges with order four for RK4", func() {
		Expect(order(integrator.RK4, 1, []int{4, 8, 16, 32})).To(BeNumerically(">", 3.7))
		Expect(order(integrator.RK4, 1, []int{4, 8, 16, 32})).To(BeNumerically("<", 4.5))
	})

	It("converges with order eight for RK8", func() {
		Expect(order(integrator.RK8, 2, []int{2, 4, 8})).To(BeNumerically(">", 7))
	})

	It("is more accurate with RK8 than RK4", func() {
		Expect(decayError(integrator.RK8, 1, 4)).To(BeNumerically("<", decayError(integrator.RK4, 1, 4)))
	})

	It("applies the parameter scaling before the dynamics", func() {
		scaled := decay(integrator.RK4, 1, 20, 2)
		plain := decay(integrator.RK4, 1, 20, 1)

		a, _, err := scaled.Call(column(1), nil, column(1))
		Expect(err).NotTo(HaveOccurred())
		b, _, err := plain.Call(column(1), nil, column(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(a.At(0, 0)).To(Equal(b.At(0, 0)))
		Expect(a.At(0, 0)).To(BeNumerically("~", math.Exp(-2), 1e-6))
	})

	It("interpolates linear controls across sub-steps", func() {
		// dx/dt = u with u going linearly from 0 to 2 integrates to 1.
		spec := integrator.OdeSpec{
			State:   ad.SymVector("x", 1),
			Control: ad.SymMatrix("u", 1, 2),
			Dynamics: func(x, u, p ad.Vector) ad.Vector {
				return ad.Vector{u[0]}
			},
		}
		it, err := integrator.New(integrator.RK4, spec, integrator.OdeOptions{
			Tf:                     1,
			ControlType:            integrator.LinearContinuous,
			NumberOfFiniteElements: 3,
		})
		Expect(err).NotTo(HaveOccurred())

		xf, _, err := it.Call(column(0), mat.NewDense(1, 2, []float64{0, 2}), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(xf.At(0, 0)).To(BeNumerically("~", 1, 1e-12))
	})

	It("integrates only the selected dynamics rows", func() {
		spec := integrator.OdeSpec{
			State:   ad.SymVector("x", 1),
			Control: ad.SymMatrix("u", 0, 1),
			Dynamics: func(x, u, p ad.Vector) ad.Vector {
				return ad.Vector{ad.Const(100), ad.Const(1)}
			},
		}
		it, err := integrator.New(integrator.RK4, spec, integrator.OdeOptions{
			Tf:                     2,
			StateIndex:             []int{1},
			ControlType:            integrator.Constant,
			NumberOfFiniteElements: 2,
		})
		Expect(err).NotTo(HaveOccurred())

		xf, _, err := it.Call(column(0), nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(xf.At(0, 0)).To(BeNumerically("~", 2, 1e-14))
	})
})

var _ = Describe("implicit collocation", func() {
	It("matches the implicit midpoint update at degree one", func() {
		h, a := 0.1, 2.0
		it := decay(integrator.IRK, h, 1, a)

		xf, xall, err := it.Call(column(3), nil, column(1))
		Expect(err).NotTo(HaveOccurred())
		want := 3 * (1 - a*h/2) / (1 + a*h/2)
		Expect(xf.At(0, 0)).To(BeNumerically("~", want, 1e-12))

		r, c := xall.Dims()
		Expect(r).To(Equal(1))
		Expect(c).To(Equal(2))
		Expect(xall.At(0, 0)).To(Equal(3.0))
		Expect(xall.At(0, 1)).To(Equal(xf.At(0, 0)))
	})

	It("is accurate at higher degree", func() {
		Expect(decayError(integrator.IRK, 1, 3)).To(BeNumerically("<", 1e-4))
	})

	It("differentiates through the root finder", func() {
		h, a := 0.1, 2.0
		it := decay(integrator.IRK, h, 1, a)
		jac, err := it.Jacobian("xf", "x0", column(3), nil, column(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(jac.At(0, 0)).To(BeNumerically("~", (1-a*h/2)/(1+a*h/2), 1e-10))
	})

	It("rejects linear continuous controls before evaluation", func() {
		spec := integrator.OdeSpec{
			State:   ad.SymVector("x", 1),
			Control: ad.SymMatrix("u", 1, 2),
			Dynamics: func(x, u, p ad.Vector) ad.Vector {
				return ad.Vector{u[0]}
			},
		}
		_, err := integrator.New(integrator.IRK, spec, integrator.OdeOptions{
			Tf:                1,
			ControlType:       integrator.LinearContinuous,
			CollocationDegree: 2,
		})
		Expect(err).To(MatchError(integrator.ErrNotImplemented))

		var cfg *integrator.ConfigError
		Expect(err).To(BeAssignableToTypeOf(cfg))
	})

	It("surfaces a root solver failure from the call", func() {
		a := ad.SymVector("a", 1)
		spec := integrator.OdeSpec{
			State:   ad.SymVector("x", 1),
			Control: ad.SymMatrix("u", 0, 1),
			Dynamics: func(x, u, p ad.Vector) ad.Vector {
				return ad.Vector{ad.Mul(p[0], ad.Mul(x[0], x[0]))}
			},
		}
		it, err := integrator.New(integrator.IRK, spec, integrator.OdeOptions{
			Tf:                1,
			Params:            a,
			ControlType:       integrator.Constant,
			CollocationDegree: 2,
		}, integrator.WithRootSolver(&ad.Newton{MaxIter: 1, AbsTol: 1e-12, AbsTolStep: 1e-12}))
		Expect(err).NotTo(HaveOccurred())

		_, _, err = it.Call(column(1), nil, column(1))
		Expect(err).To(MatchError(ad.ErrNoConvergence))
	})
})

var _ = Describe("compiled function", func() {
	pendulum := func(method integrator.Method, backend ad.Backend) *integrator.Integrator {
		spec := integrator.OdeSpec{
			State:   ad.SymVector("x", 2),
			Control: ad.SymMatrix("tau", 1, 1),
			Dynamics: func(x, u, p ad.Vector) ad.Vector {
				return ad.Vector{x[1], ad.Add(ad.Scale(-9.81, ad.Sin(x[0])), ad.Div(u[0], p[0]))}
			},
		}
		it, err := integrator.New(method, spec, integrator.OdeOptions{
			Tf:                     0.2,
			SymbolicType:           backend,
			Params:                 ad.SymVector("m", 1),
			ControlType:            integrator.Constant,
			NumberOfFiniteElements: 5,
			CollocationDegree:      3,
		})
		Expect(err).NotTo(HaveOccurred())
		return it
	}

	It("exposes named ports", func() {
		f := pendulum(integrator.RK4, ad.Dual).Function()
		Expect(f.Name()).To(Equal("integrator"))
		Expect(f.InputNames()).To(Equal([]string{"x0", "p", "params"}))
		Expect(f.OutputNames()).To(Equal([]string{"xf", "xall"}))
	})

	DescribeTable("construction is pure",
		func(method integrator.Method) {
			a, b := pendulum(method, ad.Dual), pendulum(method, ad.Dual)
			x0, u, m := column(0.4, -0.1), column(0.5), column(1.2)

			xa, alla, err := a.Call(x0, u, m)
			Expect(err).NotTo(HaveOccurred())
			xb, allb, err := b.Call(x0, u, m)
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.Equal(xa, xb)).To(BeTrue())
			Expect(mat.Equal(alla, allb)).To(BeTrue())
		},
		Entry("RK4", integrator.RK4),
		Entry("RK8", integrator.RK8),
		Entry("IRK", integrator.IRK),
	)

	DescribeTable("dual and finite difference jacobians agree",
		func(method integrator.Method) {
			x0, u, m := column(0.4, -0.1), column(0.5), column(1.2)
			jd, err := pendulum(method, ad.Dual).Jacobian("xf", "x0", x0, u, m)
			Expect(err).NotTo(HaveOccurred())
			jf, err := pendulum(method, ad.FiniteDiff).Jacobian("xf", "x0", x0, u, m)
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.EqualApprox(jd, jf, 1e-6)).To(BeTrue())
		},
		Entry("RK4", integrator.RK4),
		Entry("IRK", integrator.IRK),
	)

	It("maps over shooting intervals", func() {
		it := pendulum(integrator.RK8, ad.Dual)
		m, err := it.Map(3, 2)
		Expect(err).NotTo(HaveOccurred())

		x0 := mat.NewDense(2, 3, []float64{
			0.1, 0.2, 0.3,
			0.0, -1, 1,
		})
		u := mat.NewDense(1, 3, []float64{0, 1, -1})
		outs, err := m.Call(x0, u, column(2))
		Expect(err).NotTo(HaveOccurred())
		_, c := outs[1].Dims()
		Expect(c).To(Equal(3 * 6))

		for j := 0; j < 3; j++ {
			xf, _, err := it.Call(x0.ColView(j), u.ColView(j), column(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.Equal(outs[0].ColView(j), xf)).To(BeTrue())
		}
	})

	It("embeds symbolically in a larger graph", func() {
		it := pendulum(integrator.RK4, ad.Dual)
		x := ad.SymVector("y", 2)
		u := ad.SymMatrix("v", 1, 1)
		m := ad.SymVector("mass", 1)

		// Two chained finite elements.
		x1, _, err := it.CallSymbolic(x, u, m)
		Expect(err).NotTo(HaveOccurred())
		x2, _, err := it.CallSymbolic(x1, u, m)
		Expect(err).NotTo(HaveOccurred())

		twice, err := ad.NewFunction("twice",
			[]ad.Matrix{ad.ColumnMatrix(x), u, ad.ColumnMatrix(m)},
			[]ad.Matrix{ad.ColumnMatrix(x2)},
			[]string{"x0", "p", "params"}, []string{"xf"})
		Expect(err).NotTo(HaveOccurred())

		got, err := twice.Call(column(0.4, -0.1), column(0.5), column(1.2))
		Expect(err).NotTo(HaveOccurred())

		mid, _, err := it.Call(column(0.4, -0.1), column(0.5), column(1.2))
		Expect(err).NotTo(HaveOccurred())
		want, _, err := it.Call(mid, column(0.5), column(1.2))
		Expect(err).NotTo(HaveOccurred())
		Expect(mat.EqualApprox(got[0], want, 1e-14)).To(BeTrue())
	})
})

var _ = Describe("configuration", func() {
	spec := func(cols int) integrator.OdeSpec {
		return integrator.OdeSpec{
			State:   ad.SymVector("x", 1),
			Control: ad.SymMatrix("u", 1, cols),
			Dynamics: func(x, u, p ad.Vector) ad.Vector {
				return ad.Vector{u[0]}
			},
		}
	}

	DescribeTable("invalid options fail at construction",
		func(method integrator.Method, cols int, opts integrator.OdeOptions, want error) {
			_, err := integrator.New(method, spec(cols), opts)
			Expect(err).To(MatchError(want))
		},
		Entry("no sub-steps", integrator.RK4, 1,
			integrator.OdeOptions{Tf: 1, ControlType: integrator.Constant}, integrator.ErrConfiguration),
		Entry("zero degree", integrator.IRK, 1,
			integrator.OdeOptions{Tf: 1, ControlType: integrator.Constant}, integrator.ErrConfiguration),
		Entry("empty time span", integrator.RK8, 1,
			integrator.OdeOptions{T0: 1, Tf: 1, ControlType: integrator.Constant, NumberOfFiniteElements: 2}, integrator.ErrConfiguration),
		Entry("unknown control type", integrator.RK4, 1,
			integrator.OdeOptions{Tf: 1, NumberOfFiniteElements: 2}, integrator.ErrUnsupportedControl),
		Entry("control columns", integrator.RK4, 1,
			integrator.OdeOptions{Tf: 1, ControlType: integrator.LinearContinuous, NumberOfFiniteElements: 2}, integrator.ErrConfiguration),
		Entry("unknown method", integrator.Method(9), 1,
			integrator.OdeOptions{Tf: 1, ControlType: integrator.Constant}, integrator.ErrUnknownMethod),
		Entry("quaternion outside state", integrator.RK4, 1,
			integrator.OdeOptions{Tf: 1, ControlType: integrator.Constant, NumberOfFiniteElements: 1,
				Model: testModel{dofs: []int{3}, quats: []bool{true}}}, integrator.ErrConfiguration),
	)

	It("reports dynamics of the wrong size", func() {
		s := spec(1)
		s.Dynamics = func(x, u, p ad.Vector) ad.Vector { return ad.Vector{u[0], u[0]} }
		_, err := integrator.New(integrator.RK4, s, integrator.OdeOptions{
			Tf: 1, ControlType: integrator.Constant, NumberOfFiniteElements: 1,
		})
		Expect(err).To(MatchError(integrator.ErrDimensionMismatch))
	})
})
