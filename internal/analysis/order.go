package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/ocptrans/internal/integrator"
	"github.com/san-kum/ocptrans/internal/model"
	"github.com/san-kum/ocptrans/internal/shooting"
	"gonum.org/v1/gonum/stat"
)

var ErrStudy = errors.New("analysis: invalid convergence study")

// OrderPoint is one refinement level of a convergence study.
type OrderPoint struct {
	Steps    int     `json:"steps"`
	StepSize float64 `json:"step_size"`
	Error    float64 `json:"error"`
}

type OrderResult struct {
	Method integrator.Method `json:"-"`
	Points []OrderPoint      `json:"points"`
	Order  float64           `json:"order"`
}

// EstimateOrder fits log(err) = a + p*log(h) by least squares and returns p.
func EstimateOrder(h, errs []float64) (float64, error) {
	if len(h) != len(errs) || len(h) < 2 {
		return 0, fmt.Errorf("%w: need at least two matching samples, got %d and %d", ErrStudy, len(h), len(errs))
	}
	x := make([]float64, len(h))
	y := make([]float64, len(h))
	for i := range h {
		if h[i] <= 0 || errs[i] <= 0 {
			return 0, fmt.Errorf("%w: sample %d has h=%g err=%g", ErrStudy, i, h[i], errs[i])
		}
		x[i] = math.Log(h[i])
		y[i] = math.Log(errs[i])
	}
	_, slope := stat.LinearRegression(x, y, nil, false)
	return slope, nil
}

// DecayStudy integrates x' = -x from x(0) = 1 to tf at each refinement in
// steps and fits the order of the global error. Explicit methods refine
// their sub-steps inside one interval; IRK refines the number of intervals
// of a degree-d collocation phase.
func DecayStudy(method integrator.Method, tf float64, steps []int, degree int) (*OrderResult, error) {
	if tf <= 0 {
		return nil, fmt.Errorf("%w: final time %g", ErrStudy, tf)
	}
	res := &OrderResult{Method: method}
	h := make([]float64, 0, len(steps))
	errs := make([]float64, 0, len(steps))

	for _, n := range steps {
		if n < 1 {
			return nil, fmt.Errorf("%w: %d steps", ErrStudy, n)
		}
		x, err := decayEndpoint(method, tf, n, degree)
		if err != nil {
			return nil, err
		}
		pt := OrderPoint{Steps: n, StepSize: tf / float64(n), Error: math.Abs(x - math.Exp(-tf))}
		res.Points = append(res.Points, pt)
		h = append(h, pt.StepSize)
		errs = append(errs, pt.Error)
	}

	order, err := EstimateOrder(h, errs)
	if err != nil {
		return nil, err
	}
	res.Order = order
	return res, nil
}

func decayEndpoint(method integrator.Method, tf float64, n, degree int) (float64, error) {
	sys := model.NewDecay()
	spec, params := model.Symbolic(sys, 1)

	intervals, interval, sub := 1, tf, n
	if method == integrator.IRK {
		intervals, interval, sub = n, tf/float64(n), 1
	}
	integ, err := integrator.New(method, spec, integrator.OdeOptions{
		Tf:                     interval,
		Params:                 params,
		ControlType:            integrator.Constant,
		NumberOfFiniteElements: sub,
		CollocationDegree:      degree,
	})
	if err != nil {
		return 0, err
	}
	phase, err := shooting.NewPhase(integ, intervals, 1)
	if err != nil {
		return 0, err
	}
	traj, err := phase.Simulate(context.Background(), sys.DefaultState(), nil, sys.DefaultParams())
	if err != nil {
		return 0, err
	}
	return traj.States.At(0, intervals), nil
}
