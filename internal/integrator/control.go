package integrator

import (
	"fmt"
	"strings"

	"github.com/san-kum/ocptrans/internal/ad"
)

// ControlType is the parametrization of the controls over one interval.
type ControlType int

const (
	ControlUnknown ControlType = iota
	// Constant holds a single control column over the interval.
	Constant
	// LinearContinuous interpolates between the interval's two bounding columns.
	LinearContinuous
)

func (c ControlType) String() string {
	switch c {
	case Constant:
		return "constant"
	case LinearContinuous:
		return "linear_continuous"
	}
	return fmt.Sprintf("ControlType(%d)", int(c))
}

func ParseControlType(s string) (ControlType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "constant", "":
		return Constant, nil
	case "linear_continuous", "linear":
		return LinearContinuous, nil
	}
	return ControlUnknown, fmt.Errorf("%w: %q", ErrUnsupportedControl, s)
}

// ControlColumns is the number of control columns one interval consumes.
func ControlColumns(c ControlType) (int, error) {
	switch c {
	case Constant:
		return 1, nil
	case LinearContinuous:
		return 2, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedControl, c)
}

// Interpolator samples an interval's control matrix at a normalized time.
type Interpolator struct {
	kind ControlType
}

func NewInterpolator(c ControlType) (*Interpolator, error) {
	if _, err := ControlColumns(c); err != nil {
		return nil, err
	}
	return &Interpolator{kind: c}, nil
}

func (in *Interpolator) Type() ControlType { return in.kind }

// Sample returns the control at tNorm in [0, 1]. Constant controls ignore
// tNorm. Linear controls are blended as (1-t)*u0 + t*u1 so both end points
// reproduce their column exactly.
func (in *Interpolator) Sample(u ad.Matrix, tNorm float64) ad.Vector {
	if in.kind == Constant {
		return u.Col(0)
	}
	u0, u1 := u.Col(0), u.Col(1)
	out := make(ad.Vector, len(u0))
	for i := range out {
		out[i] = ad.Add(ad.Scale(1-tNorm, u0[i]), ad.Scale(tNorm, u1[i]))
	}
	return out
}
