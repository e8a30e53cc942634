package shooting

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/ocptrans/internal/ad"
	"github.com/san-kum/ocptrans/internal/integrator"
	"github.com/san-kum/ocptrans/internal/model"
	"gonum.org/v1/gonum/mat"
)

func newPhase(t *testing.T, sys model.System, method integrator.Method, ct integrator.ControlType, nShooting int) *Phase {
	t.Helper()
	cols, err := integrator.ControlColumns(ct)
	if err != nil {
		t.Fatal(err)
	}
	spec, params := model.Symbolic(sys, cols)
	integ, err := integrator.New(method, spec, integrator.OdeOptions{
		Model:                  model.IntegratorModel(sys),
		Tf:                     0.2,
		Params:                 params,
		ControlType:            ct,
		NumberOfFiniteElements: 4,
		CollocationDegree:      3,
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := NewPhase(integ, nShooting, 3)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestSimulateDecay(t *testing.T) {
	p := newPhase(t, model.NewDecay(), integrator.RK8, integrator.Constant, 5)
	traj, err := p.Simulate(context.Background(), []float64{1}, nil, []float64{1})
	if err != nil {
		t.Fatal(err)
	}

	for k, tk := range traj.Times {
		want := math.Exp(-tk)
		if got := traj.States.At(0, k); math.Abs(got-want) > 1e-10 {
			t.Errorf("node %d: x = %.12f, want %.12f", k, got, want)
		}
	}
	if _, c := traj.Dense.Dims(); c != 5*4+1 {
		t.Errorf("expected %d dense columns, got %d", 5*4+1, c)
	}
	if traj.Dense.At(0, 20) != traj.States.At(0, 5) {
		t.Errorf("dense trajectory should end on the last node")
	}
}

func TestDefectsVanishOnSimulation(t *testing.T) {
	tests := []struct {
		name   string
		method integrator.Method
		ct     integrator.ControlType
	}{
		{"rk4 constant", integrator.RK4, integrator.Constant},
		{"rk8 linear", integrator.RK8, integrator.LinearContinuous},
		{"irk constant", integrator.IRK, integrator.Constant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPhase(t, model.NewPendulum(), tt.method, tt.ct, 6)
			controls := mat.NewDense(1, p.ControlNodes(), nil)
			for j := 0; j < p.ControlNodes(); j++ {
				controls.Set(0, j, math.Sin(float64(j)))
			}

			traj, err := p.Simulate(context.Background(), []float64{0.3, 0}, controls, []float64{1.5})
			if err != nil {
				t.Fatal(err)
			}
			defects, err := p.Defects(traj.States, controls, []float64{1.5})
			if err != nil {
				t.Fatal(err)
			}
			if d := MaxAbs(defects); d > 1e-12 {
				t.Errorf("max defect on a simulated trajectory = %e", d)
			}

			// Moving one node shows up in the interval that ends there.
			moved := mat.DenseCopyOf(traj.States)
			moved.Set(1, 3, moved.At(1, 3)+0.25)
			defects, err = p.Defects(moved, controls, []float64{1.5})
			if err != nil {
				t.Fatal(err)
			}
			if got := defects.At(1, 2); math.Abs(got+0.25) > 1e-12 {
				t.Errorf("defect of interval 2 = %f, want -0.25", got)
			}
		})
	}
}

func TestContinuityFunction(t *testing.T) {
	p := newPhase(t, model.NewPendulum(), integrator.RK4, integrator.Constant, 3)
	g, err := p.ContinuityFunction()
	if err != nil {
		t.Fatal(err)
	}

	states := mat.NewDense(2, 4, []float64{
		0.1, 0.2, 0.25, 0.3,
		0.0, 0.5, 0.4, -0.1,
	})
	controls := mat.NewDense(1, 3, []float64{0.2, -0.3, 0.1})
	params := mat.NewDense(1, 1, []float64{2})

	outs, err := g.Call(states, controls, params)
	if err != nil {
		t.Fatal(err)
	}
	defects, err := p.Defects(states, controls, []float64{2})
	if err != nil {
		t.Fatal(err)
	}
	for k := 0; k < 3; k++ {
		for i := 0; i < 2; i++ {
			if got, want := outs[0].At(k*2+i, 0), defects.At(i, k); math.Abs(got-want) > 1e-14 {
				t.Errorf("g[%d] = %v, defect = %v", k*2+i, got, want)
			}
		}
	}

	jac, err := g.Jacobian(0, 0, states, controls, params)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := jac.Dims(); r != 6 || c != 8 {
		t.Fatalf("expected 6x8 jacobian, got %dx%d", r, c)
	}
	// d(xf_k - X_{k+1})/dX_{k+1} = -I
	for k := 0; k < 3; k++ {
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				want := 0.0
				if i == j {
					want = -1
				}
				if got := jac.At(2*k+i, 2*(k+1)+j); got != want {
					t.Errorf("jac[%d][%d] = %v, want %v", 2*k+i, 2*(k+1)+j, got, want)
				}
			}
		}
	}
}

func TestNewPhaseValidation(t *testing.T) {
	spec, params := model.Symbolic(model.NewDecay(), 1)
	integ, err := integrator.New(integrator.RK4, spec, integrator.OdeOptions{
		Tf: 1, Params: params, ControlType: integrator.Constant, NumberOfFiniteElements: 1,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewPhase(integ, 4, 0); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for zero threads, got %v", err)
	}
	if _, err := NewPhase(integ, 0, 1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for zero intervals, got %v", err)
	}
}

func TestShapeErrors(t *testing.T) {
	p := newPhase(t, model.NewPendulum(), integrator.RK4, integrator.Constant, 4)
	ctx := context.Background()

	if _, err := p.Simulate(ctx, []float64{0}, mat.NewDense(1, 4, nil), []float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for short x0, got %v", err)
	}
	if _, err := p.Simulate(ctx, []float64{0, 0}, mat.NewDense(1, 5, nil), []float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for extra controls, got %v", err)
	}
	if _, err := p.Defects(mat.NewDense(2, 4, nil), mat.NewDense(1, 4, nil), []float64{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for missing node, got %v", err)
	}
	if _, err := p.Simulate(ctx, []float64{0, 0}, mat.NewDense(1, 4, nil), nil); !errors.Is(err, ad.ErrShape) {
		t.Errorf("expected ad.ErrShape for missing params, got %v", err)
	}
}

func TestSimulateCanceled(t *testing.T) {
	p := newPhase(t, model.NewDecay(), integrator.RK4, integrator.Constant, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Simulate(ctx, []float64{1}, nil, []float64{1}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
