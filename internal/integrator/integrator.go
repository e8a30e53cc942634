// Package integrator turns a symbolic ODE right-hand side into a compiled,
// differentiable finite element transition. Explicit Runge-Kutta schemes
// (RK4, RK8) subdivide the element into fixed sub-steps and renormalize
// quaternions after each one; the implicit Legendre collocation scheme (IRK)
// solves for its interior states with an injected root solver.
//
// Every Integrator compiles one ad.Function named "integrator" with inputs
// x0, p, params and outputs xf, xall. It is immutable and may be called
// from several goroutines.
package integrator

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/san-kum/ocptrans/internal/ad"
	"gonum.org/v1/gonum/mat"
)

// DynamicsFunc returns the state derivative, possibly followed by extra
// algebraic outputs, for a state, an interpolated control and scaled
// parameters.
type DynamicsFunc func(x, u, p ad.Vector) ad.Vector

// OdeSpec is the symbolic problem to integrate. State must hold distinct
// symbols; Control has one column per interpolation node.
type OdeSpec struct {
	State    ad.Vector
	Control  ad.Matrix
	Dynamics DynamicsFunc
}

// OdeOptions configure one phase. StateIndex selects the dynamics rows that
// are integrated; nil keeps all of them. ParamScaling multiplies Params
// elementwise before they reach the dynamics; nil means no scaling.
type OdeOptions struct {
	Model                  Model
	T0, Tf                 float64
	StateIndex             []int
	SymbolicType           ad.Backend
	Params                 ad.Vector
	ParamScaling           []float64
	ControlType            ControlType
	NumberOfFiniteElements int
	CollocationDegree      int
}

// StepIntegrator produces one finite element transition. xall has Columns()
// columns, the first being x0 and the last xf.
type StepIntegrator interface {
	FiniteElement(x0 ad.Vector, u ad.Matrix, p ad.Vector) (xf ad.Vector, xall ad.Matrix, err error)
	Columns() int
}

type ode struct {
	dynamics DynamicsFunc
	idx      []int
	nx       int
	interp   *Interpolator
}

func (o *ode) derive(x, u, p ad.Vector) (ad.Vector, error) {
	dx := o.dynamics(x, u, p)
	if o.idx != nil {
		for _, i := range o.idx {
			if i < 0 || i >= len(dx) {
				return nil, fmt.Errorf("%w: state index %d outside %d dynamics rows", ErrDimensionMismatch, i, len(dx))
			}
		}
		dx = dx.Select(o.idx)
	}
	if len(dx) != o.nx {
		return nil, fmt.Errorf("%w: dynamics returned %d rows for %d states", ErrDimensionMismatch, len(dx), o.nx)
	}
	return dx, nil
}

type settings struct {
	solver ad.RootSolver
	logger zerolog.Logger
}

type Option func(*settings)

// WithRootSolver replaces the Newton solver used by IRK.
func WithRootSolver(s ad.RootSolver) Option {
	return func(c *settings) { c.solver = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *settings) { c.logger = l }
}

// Integrator is a compiled finite element transition.
type Integrator struct {
	method   Method
	control  ControlType
	stepTime float64
	h        float64
	steps    int
	blocks   []QuaternionBlock
	tableau  *Tableau
	stepper  StepIntegrator
	function *ad.Function
}

// New validates spec and opts, builds the selected scheme and compiles its
// function. Every configuration problem is reported here.
func New(method Method, spec OdeSpec, opts OdeOptions, options ...Option) (*Integrator, error) {
	cfg := settings{solver: ad.DefaultNewton(), logger: zerolog.Nop()}
	for _, o := range options {
		o(&cfg)
	}

	if err := validate(method, spec, opts); err != nil {
		return nil, err
	}

	interp, err := NewInterpolator(opts.ControlType)
	if err != nil {
		return nil, &ConfigError{Method: method, Field: "control_type", Wrapped: err}
	}

	nx := len(spec.State)
	blocks := QuaternionBlocks(opts.Model)
	for _, b := range blocks {
		if b.max() >= nx {
			return nil, configErr(method, "model", ErrConfiguration,
				"quaternion block %v outside %d states", b, nx)
		}
	}

	it := &Integrator{
		method:   method,
		control:  opts.ControlType,
		stepTime: opts.Tf - opts.T0,
		blocks:   blocks,
	}
	o := &ode{dynamics: spec.Dynamics, idx: opts.StateIndex, nx: nx, interp: interp}

	switch method {
	case RK4, RK8:
		rk := newExplicit(o, method, opts.NumberOfFiniteElements, it.stepTime, blocks)
		it.stepper, it.h, it.steps = rk, rk.h, rk.n
	case IRK:
		tab, err := NewTableau(opts.CollocationDegree)
		if err != nil {
			return nil, &ConfigError{Method: method, Field: "collocation_degree", Wrapped: err}
		}
		it.tableau = tab
		it.stepper = &collocation{ode: o, tab: tab, h: it.stepTime, solver: cfg.solver, backend: opts.SymbolicType}
		it.h, it.steps = it.stepTime, 1
	}

	scaled := opts.Params
	if opts.ParamScaling != nil {
		scaled = ad.MulVec(opts.Params, ad.ConstVector(opts.ParamScaling))
	}
	xf, xall, err := it.stepper.FiniteElement(spec.State, spec.Control, scaled)
	if err != nil {
		return nil, fmt.Errorf("integrator %s: %w", method, err)
	}

	it.function, err = ad.NewFunction("integrator",
		[]ad.Matrix{ad.ColumnMatrix(spec.State), spec.Control, ad.ColumnMatrix(opts.Params)},
		[]ad.Matrix{ad.ColumnMatrix(xf), xall},
		[]string{"x0", "p", "params"}, []string{"xf", "xall"},
		ad.WithBackend(opts.SymbolicType))
	if err != nil {
		return nil, fmt.Errorf("integrator %s: %w", method, err)
	}

	cfg.logger.Debug().
		Str("method", method.String()).
		Str("control", opts.ControlType.String()).
		Str("backend", opts.SymbolicType.String()).
		Int("states", nx).
		Int("steps", it.steps).
		Int("quaternions", len(blocks)).
		Float64("step_time", it.stepTime).
		Msg("integrator compiled")
	return it, nil
}

func validate(m Method, spec OdeSpec, opts OdeOptions) error {
	if !m.Explicit() && m != IRK {
		return &ConfigError{Method: m, Field: "method", Wrapped: ErrUnknownMethod}
	}
	if m == IRK && opts.ControlType == LinearContinuous {
		return configErr(m, "control_type", ErrNotImplemented, "%s control with IRK", opts.ControlType)
	}
	cols, err := ControlColumns(opts.ControlType)
	if err != nil {
		return &ConfigError{Method: m, Field: "control_type", Wrapped: err}
	}
	if spec.Dynamics == nil {
		return configErr(m, "dynamics", ErrConfiguration, "no dynamics function")
	}
	if len(spec.State) == 0 {
		return configErr(m, "state", ErrConfiguration, "empty state")
	}
	if _, c := spec.Control.Dims(); c != cols {
		return configErr(m, "control", ErrConfiguration, "%d control columns, %s needs %d", c, opts.ControlType, cols)
	}
	if !(opts.Tf > opts.T0) {
		return configErr(m, "t_span", ErrConfiguration, "tf %g must exceed t0 %g", opts.Tf, opts.T0)
	}
	if m.Explicit() && opts.NumberOfFiniteElements < 1 {
		return configErr(m, "number_of_finite_elements", ErrConfiguration, "%d, want >= 1", opts.NumberOfFiniteElements)
	}
	if m == IRK && opts.CollocationDegree < 1 {
		return configErr(m, "collocation_degree", ErrConfiguration, "%d, want >= 1", opts.CollocationDegree)
	}
	if opts.ParamScaling != nil && len(opts.ParamScaling) != len(opts.Params) {
		return configErr(m, "param_scaling", ErrConfiguration, "%d factors for %d parameters", len(opts.ParamScaling), len(opts.Params))
	}
	if opts.StateIndex != nil && len(opts.StateIndex) != len(spec.State) {
		return configErr(m, "state_index", ErrConfiguration, "%d indices for %d states", len(opts.StateIndex), len(spec.State))
	}
	return nil
}

func (it *Integrator) Function() *ad.Function   { return it.function }
func (it *Integrator) Method() Method           { return it.method }
func (it *Integrator) ControlType() ControlType { return it.control }
func (it *Integrator) StepTime() float64        { return it.stepTime }
func (it *Integrator) StepSize() float64        { return it.h }
func (it *Integrator) Steps() int               { return it.steps }
func (it *Integrator) Tableau() *Tableau        { return it.tableau }
func (it *Integrator) Stepper() StepIntegrator  { return it.stepper }

// QuaternionBlocks returns a copy of the blocks renormalized after each
// explicit sub-step.
func (it *Integrator) QuaternionBlocks() []QuaternionBlock {
	return append([]QuaternionBlock(nil), it.blocks...)
}

// Call integrates one finite element numerically. params may be nil when
// the problem has none.
func (it *Integrator) Call(x0, u, params mat.Matrix) (xf, xall *mat.Dense, err error) {
	outs, err := it.function.Call(x0, u, params)
	if err != nil {
		return nil, nil, err
	}
	return outs[0], outs[1], nil
}

// CallSymbolic embeds the integrator in a larger graph.
func (it *Integrator) CallSymbolic(x0 ad.Vector, u ad.Matrix, params ad.Vector) (ad.Vector, ad.Matrix, error) {
	outs, err := it.function.Inline(ad.ColumnMatrix(x0), u, ad.ColumnMatrix(params))
	if err != nil {
		return nil, ad.Matrix{}, err
	}
	return outs[0].Col(0), outs[1], nil
}

// Map returns the integrator broadcast over n shooting intervals.
func (it *Integrator) Map(n, workers int) (*ad.MapFunction, error) {
	return it.function.Map(n, workers)
}

// Jacobian differentiates the named output with respect to the named input.
func (it *Integrator) Jacobian(out, in string, x0, u, params mat.Matrix) (*mat.Dense, error) {
	o, ok := it.function.OutputIndex(out)
	if !ok {
		return nil, fmt.Errorf("%w: output %q", ad.ErrUnknownPort, out)
	}
	i, ok := it.function.InputIndex(in)
	if !ok {
		return nil, fmt.Errorf("%w: input %q", ad.ErrUnknownPort, in)
	}
	return it.function.Jacobian(o, i, x0, u, params)
}
