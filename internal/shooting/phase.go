// Package shooting chains a compiled integrator over the shooting intervals
// of one phase. It simulates trajectories, evaluates continuity defects in
// parallel and builds the symbolic continuity constraints an NLP consumes.
package shooting

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/san-kum/ocptrans/internal/ad"
	"github.com/san-kum/ocptrans/internal/integrator"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrConfiguration indicates an invalid phase layout.
	ErrConfiguration = errors.New("shooting: invalid phase configuration")

	// ErrDimensionMismatch indicates states or controls of the wrong shape.
	ErrDimensionMismatch = errors.New("shooting: dimension mismatch")
)

// Phase is one integrator applied over nShooting consecutive intervals.
type Phase struct {
	integ     *integrator.Integrator
	nShooting int
	nThreads  int
	mapped    *ad.MapFunction
	logger    zerolog.Logger
}

type Option func(*Phase)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Phase) { p.logger = l }
}

// NewPhase maps integ over nShooting intervals evaluated by at most
// nThreads goroutines.
func NewPhase(integ *integrator.Integrator, nShooting, nThreads int, opts ...Option) (*Phase, error) {
	if nShooting < 1 {
		return nil, fmt.Errorf("%w: n_shooting must be >= 1, got %d", ErrConfiguration, nShooting)
	}
	if nThreads < 1 {
		return nil, fmt.Errorf("%w: n_threads must be >= 1, got %d", ErrConfiguration, nThreads)
	}
	mapped, err := integ.Map(nShooting, nThreads)
	if err != nil {
		return nil, err
	}
	p := &Phase{
		integ:     integ,
		nShooting: nShooting,
		nThreads:  nThreads,
		mapped:    mapped,
		logger:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Phase) Integrator() *integrator.Integrator { return p.integ }
func (p *Phase) NShooting() int                     { return p.nShooting }
func (p *Phase) NThreads() int                      { return p.nThreads }

// StateDim is the number of states integrated per interval.
func (p *Phase) StateDim() int {
	r, _ := p.integ.Function().InputDims(0)
	return r
}

// ControlDim is the number of controls per node.
func (p *Phase) ControlDim() int {
	r, _ := p.integ.Function().InputDims(1)
	return r
}

// ControlNodes is the number of control columns a phase trajectory holds:
// one per interval for constant controls, one per node for linear ones.
func (p *Phase) ControlNodes() int {
	if p.integ.ControlType() == integrator.LinearContinuous {
		return p.nShooting + 1
	}
	return p.nShooting
}

// Times returns the start time of every node, relative to the phase start.
func (p *Phase) Times() []float64 {
	t := make([]float64, p.nShooting+1)
	floats.Span(t, 0, p.integ.StepTime()*float64(p.nShooting))
	return t
}

// intervalControls returns the control columns of interval k.
func (p *Phase) intervalControls(controls *mat.Dense, k int) mat.Matrix {
	nu := p.ControlDim()
	if nu == 0 {
		return nil
	}
	if p.integ.ControlType() == integrator.LinearContinuous {
		return controls.Slice(0, nu, k, k+2)
	}
	return controls.Slice(0, nu, k, k+1)
}

// stackControls lays interval controls side by side for the mapped call.
func (p *Phase) stackControls(controls *mat.Dense) *mat.Dense {
	if p.ControlDim() == 0 {
		return nil
	}
	if p.integ.ControlType() != integrator.LinearContinuous {
		return controls
	}
	nu := p.ControlDim()
	out := mat.NewDense(nu, 2*p.nShooting, nil)
	for k := 0; k < p.nShooting; k++ {
		out.Slice(0, nu, 2*k, 2*k+2).(*mat.Dense).Copy(controls.Slice(0, nu, k, k+2))
	}
	return out
}

func (p *Phase) checkControls(controls *mat.Dense) error {
	nu := p.ControlDim()
	if nu == 0 {
		return nil
	}
	if controls == nil {
		return fmt.Errorf("%w: missing controls", ErrDimensionMismatch)
	}
	if r, c := controls.Dims(); r != nu || c != p.ControlNodes() {
		return fmt.Errorf("%w: controls are %dx%d, want %dx%d", ErrDimensionMismatch, r, c, nu, p.ControlNodes())
	}
	return nil
}

func column(v []float64) mat.Matrix {
	if len(v) == 0 {
		return nil
	}
	return mat.NewDense(len(v), 1, v)
}

// Trajectory is a simulated phase. States holds one column per node and
// Dense every intermediate integrator column.
type Trajectory struct {
	Times  []float64
	States *mat.Dense
	Dense  *mat.Dense
}

// Simulate integrates the phase from x0, feeding each interval's final
// state into the next one.
func (p *Phase) Simulate(ctx context.Context, x0 []float64, controls *mat.Dense, params []float64) (*Trajectory, error) {
	nx := p.StateDim()
	if len(x0) != nx {
		return nil, fmt.Errorf("%w: x0 has %d entries, want %d", ErrDimensionMismatch, len(x0), nx)
	}
	if err := p.checkControls(controls); err != nil {
		return nil, err
	}

	_, cols := p.integ.Function().OutputDims(1)
	per := cols - 1
	traj := &Trajectory{
		Times:  p.Times(),
		States: mat.NewDense(nx, p.nShooting+1, nil),
		Dense:  mat.NewDense(nx, p.nShooting*per+1, nil),
	}
	traj.States.SetCol(0, x0)
	traj.Dense.SetCol(0, x0)

	pm := column(params)
	x := mat.NewDense(nx, 1, append([]float64(nil), x0...))
	for k := 0; k < p.nShooting; k++ {
		select {
		case <-ctx.Done():
			return traj, ctx.Err()
		default:
		}

		xf, xall, err := p.integ.Call(x, p.intervalControls(controls, k), pm)
		if err != nil {
			return traj, fmt.Errorf("interval %d: %w", k, err)
		}
		for j := 1; j <= per; j++ {
			traj.Dense.SetCol(k*per+j, mat.Col(nil, j, xall))
		}
		traj.States.SetCol(k+1, mat.Col(nil, 0, xf))
		x = xf
	}

	p.logger.Debug().
		Str("method", p.integ.Method().String()).
		Int("intervals", p.nShooting).
		Int("columns", p.nShooting*per+1).
		Msg("phase simulated")
	return traj, nil
}

// Defects returns xf_k - x_{k+1} for every interval, evaluating the
// intervals in parallel. states has one column per node.
func (p *Phase) Defects(states, controls *mat.Dense, params []float64) (*mat.Dense, error) {
	nx := p.StateDim()
	if r, c := states.Dims(); r != nx || c != p.nShooting+1 {
		return nil, fmt.Errorf("%w: states are %dx%d, want %dx%d", ErrDimensionMismatch, r, c, nx, p.nShooting+1)
	}
	if err := p.checkControls(controls); err != nil {
		return nil, err
	}

	var u mat.Matrix
	if s := p.stackControls(controls); s != nil {
		u = s
	}
	outs, err := p.mapped.Call(states.Slice(0, nx, 0, p.nShooting), u, column(params))
	if err != nil {
		return nil, err
	}

	defects := mat.NewDense(nx, p.nShooting, nil)
	defects.Sub(outs[0], states.Slice(0, nx, 1, p.nShooting+1))

	p.logger.Debug().
		Int("intervals", p.nShooting).
		Int("threads", p.nThreads).
		Float64("max_defect", MaxAbs(defects)).
		Msg("continuity defects evaluated")
	return defects, nil
}

// MaxAbs is the largest absolute entry of m.
func MaxAbs(m mat.Matrix) float64 {
	return floats.Norm(mat.DenseCopyOf(m).RawMatrix().Data, math.Inf(1))
}

// ContinuityFunction builds g(X, U, params), the stacked continuity
// residuals of the phase as one column, where X holds a state per node and
// U a control per node or interval.
func (p *Phase) ContinuityFunction() (*ad.Function, error) {
	nx, nu := p.StateDim(), p.ControlDim()
	np, _ := p.integ.Function().InputDims(2)

	X := ad.SymMatrix("X", nx, p.nShooting+1)
	U := ad.SymMatrix("U", nu, p.ControlNodes())
	P := ad.SymVector("params", np)

	g := make(ad.Vector, 0, nx*p.nShooting)
	for k := 0; k < p.nShooting; k++ {
		u := ad.ColumnMatrix(U.Col(k))
		if p.integ.ControlType() == integrator.LinearContinuous {
			u = ad.Horzcat(u, ad.ColumnMatrix(U.Col(k+1)))
		}
		xf, _, err := p.integ.CallSymbolic(X.Col(k), u, P)
		if err != nil {
			return nil, fmt.Errorf("interval %d: %w", k, err)
		}
		g = append(g, ad.SubVec(xf, X.Col(k+1))...)
	}

	return ad.NewFunction("continuity",
		[]ad.Matrix{X, U, ad.ColumnMatrix(P)},
		[]ad.Matrix{ad.ColumnMatrix(g)},
		[]string{"X", "U", "params"}, []string{"g"},
		ad.WithBackend(p.integ.Function().Backend()))
}
