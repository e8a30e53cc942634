package model

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/ocptrans/internal/integrator"
	"gonum.org/v1/gonum/mat"
)

func derive(t *testing.T, sys System, x, u, p []float64) []float64 {
	t.Helper()
	f, err := Derivative(sys)
	if err != nil {
		t.Fatal(err)
	}
	vec := func(v []float64) mat.Matrix {
		if len(v) == 0 {
			return nil
		}
		return mat.NewDense(len(v), 1, v)
	}
	outs, err := f.Call(vec(x), vec(u), vec(p))
	if err != nil {
		t.Fatal(err)
	}
	return mat.Col(nil, 0, outs[0])
}

func TestPendulumEquilibrium(t *testing.T) {
	p := NewPendulum()
	dx := derive(t, p, []float64{0, 0}, []float64{0}, []float64{1})

	if math.Abs(dx[0]) > 1e-10 {
		t.Errorf("expected zero velocity at equilibrium, got %f", dx[0])
	}
	if math.Abs(dx[1]) > 1e-10 {
		t.Errorf("expected zero acceleration at equilibrium, got %f", dx[1])
	}
}

func TestPendulumGravity(t *testing.T) {
	p := NewPendulum()
	p.Damping = 0
	dx := derive(t, p, []float64{math.Pi / 2, 0}, []float64{0}, []float64{2})

	expectedAccel := -p.Gravity / p.Length
	if math.Abs(dx[1]-expectedAccel) > 1e-10 {
		t.Errorf("expected acceleration %f, got %f", expectedAccel, dx[1])
	}
}

func TestPendulumTorqueScalesWithMass(t *testing.T) {
	p := NewPendulum()
	light := derive(t, p, []float64{0, 0}, []float64{1}, []float64{1})
	heavy := derive(t, p, []float64{0, 0}, []float64{1}, []float64{4})

	if math.Abs(light[1]-4*heavy[1]) > 1e-12 {
		t.Errorf("expected 4x acceleration for 1/4 mass, got %f and %f", light[1], heavy[1])
	}
}

func TestPendulumSetParam(t *testing.T) {
	p := NewPendulum()
	if err := p.SetParam("length", 2); err != nil {
		t.Fatal(err)
	}
	if p.GetParams()["length"] != 2 {
		t.Errorf("expected length 2, got %f", p.GetParams()["length"])
	}
	if err := p.SetParam("mass", 2); err == nil {
		t.Error("mass is a free parameter and should not be settable")
	}
}

func TestFreeBodyQuaternionRate(t *testing.T) {
	b := NewFreeBody()
	x := []float64{0, 0, 0, 0.1, -0.3, 0.2, 0.927, 0, 0, 0, 1.5, -2, 0.7}
	dx := derive(t, b, x, make([]float64, 6), []float64{1})

	// d|q|^2/dt = 2 q . q' vanishes for pure body rotation.
	dot := x[3]*dx[3] + x[4]*dx[4] + x[5]*dx[5] + x[6]*dx[6]
	if math.Abs(dot) > 1e-14 {
		t.Errorf("quaternion rate not tangent: q.q' = %e", dot)
	}
	if math.Abs(dx[9]+b.Gravity) > 1e-14 {
		t.Errorf("expected free fall %f, got %f", -b.Gravity, dx[9])
	}
}

func TestFreeBodyKeepsUnitQuaternion(t *testing.T) {
	b := NewFreeBody()
	spec, params := Symbolic(b, 1)
	it, err := integrator.New(integrator.RK4, spec, integrator.OdeOptions{
		Model:                  IntegratorModel(b),
		Tf:                     0.5,
		Params:                 params,
		ControlType:            integrator.Constant,
		NumberOfFiniteElements: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []integrator.QuaternionBlock{{X: 3, Y: 4, Z: 5, W: 6}}
	if got := it.QuaternionBlocks(); len(got) != 1 || got[0] != want[0] {
		t.Fatalf("quaternion blocks = %v, want %v", got, want)
	}

	x0 := mat.NewDense(13, 1, b.DefaultState())
	u := mat.NewDense(6, 1, []float64{0, 0, 9.81, 0.3, 0, -0.2})
	_, xall, err := it.Call(x0, u, mat.NewDense(1, 1, b.DefaultParams()))
	if err != nil {
		t.Fatal(err)
	}
	for j := 1; j <= 5; j++ {
		q := []float64{xall.At(3, j), xall.At(4, j), xall.At(5, j), xall.At(6, j)}
		n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
		if math.Abs(n-1) > 1e-10 {
			t.Errorf("column %d: |q| = %.15f", j, n)
		}
	}
}

func TestDecayHasNoModel(t *testing.T) {
	if m := IntegratorModel(NewDecay()); m != nil {
		t.Errorf("expected nil model, got %v", m)
	}
	spec, params := Symbolic(NewDecay(), 2)
	if r, c := spec.Control.Dims(); r != 0 || c != 2 {
		t.Errorf("expected 0x2 control, got %dx%d", r, c)
	}
	if params.Len() != 1 {
		t.Errorf("expected one parameter, got %d", params.Len())
	}
	dx := derive(t, NewDecay(), []float64{3}, nil, []float64{0.5})
	if dx[0] != -1.5 {
		t.Errorf("expected -1.5, got %f", dx[0])
	}
}

func TestSkeleton(t *testing.T) {
	s, err := ParseSkeleton([]byte(`
name: diver
segments:
  - name: pelvis
    dof: 3
    quaternion: true
  - name: arm
    dof: 2
  - name: head
    dof: 3
    quaternion: true
`))
	if err != nil {
		t.Fatal(err)
	}
	if s.NbDof() != 8 || s.NbQuat() != 2 || s.NbQ() != 10 {
		t.Errorf("unexpected sizes: dof=%d quat=%d q=%d", s.NbDof(), s.NbQuat(), s.NbQ())
	}

	blocks := integrator.QuaternionBlocks(s)
	if len(blocks) != 2 || blocks[1] != (integrator.QuaternionBlock{X: 5, Y: 6, Z: 7, W: 9}) {
		t.Errorf("unexpected blocks %v", blocks)
	}

	if _, err := ParseSkeleton([]byte("name: bad\nsegments:\n  - name: q\n    dof: 2\n    quaternion: true\n")); err == nil {
		t.Error("expected error for a two dof quaternion")
	}

	path := filepath.Join(t.TempDir(), "body.yaml")
	if err := os.WriteFile(path, []byte("name: body\nsegments:\n  - name: root\n    dof: 3\n    quaternion: true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadSkeleton(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.NbQ() != 4 {
		t.Errorf("expected 4 coordinates, got %d", loaded.NbQ())
	}
	if _, err := LoadSkeleton(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	for _, name := range r.List() {
		sys, err := r.Get(name)
		if err != nil {
			t.Fatalf("Get(%q): %v", name, err)
		}
		if sys.Name() != name {
			t.Errorf("Get(%q).Name() = %q", name, sys.Name())
		}
		if len(sys.DefaultState()) != sys.StateDim() || len(sys.DefaultParams()) != sys.ParamDim() {
			t.Errorf("%s: defaults do not match dimensions", name)
		}
	}

	if _, err := r.Get("cartpole"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("expected ErrUnknownModel, got %v", err)
	}

	r.Register("custom", func() System { return NewDecay() })
	if len(r.List()) != 4 {
		t.Errorf("expected 4 models, got %v", r.List())
	}
}

var _ integrator.Model = (*Skeleton)(nil)
var _ Configurable = (*FreeBody)(nil)
