package ad

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// MapFunction evaluates a Function over n column blocks. Each argument is
// either the input's own width, shared by every block, or n times that
// width, one block per evaluation. Outputs are stacked the same way.
type MapFunction struct {
	f       *Function
	n       int
	workers int
}

// Map returns f broadcast over n evaluations run on at most workers
// goroutines.
func (f *Function) Map(n, workers int) (*MapFunction, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: map %s over %d blocks", ErrShape, f.name, n)
	}
	if workers < 1 {
		return nil, fmt.Errorf("%w: map %s with %d workers", ErrShape, f.name, workers)
	}
	return &MapFunction{f: f, n: n, workers: workers}, nil
}

func (m *MapFunction) N() int              { return m.n }
func (m *MapFunction) Workers() int        { return m.workers }
func (m *MapFunction) Function() *Function { return m.f }

func (m *MapFunction) Call(args ...mat.Matrix) ([]*mat.Dense, error) {
	f := m.f
	if len(args) != f.NumIn() {
		return nil, fmt.Errorf("%w: %s takes %d inputs, got %d", ErrShape, f.name, f.NumIn(), len(args))
	}

	stacked := make([]bool, len(args))
	dense := make([]*mat.Dense, len(args))
	for k, a := range args {
		r, c := f.InputDims(k)
		if r*c == 0 {
			continue
		}
		if a == nil {
			return nil, fmt.Errorf("%w: map %s input %q missing", ErrShape, f.name, f.inNames[k])
		}
		ar, ac := a.Dims()
		switch {
		case ar == r && ac == c*m.n:
			stacked[k] = true
		case ar == r && ac == c:
		default:
			return nil, fmt.Errorf("%w: map %s input %q wants %dx%d or %dx%d, got %dx%d",
				ErrShape, f.name, f.inNames[k], r, c, r, c*m.n, ar, ac)
		}
		dense[k] = mat.DenseCopyOf(a)
	}

	outs := make([]*mat.Dense, f.NumOut())
	for k := range outs {
		r, c := f.OutputDims(k)
		if r*c > 0 {
			outs[k] = mat.NewDense(r, c*m.n, nil)
		}
	}

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := 0; i < m.n; i++ {
		i := i
		g.Go(func() error {
			in := make([]mat.Matrix, len(args))
			for k, d := range dense {
				if d == nil {
					continue
				}
				if !stacked[k] {
					in[k] = d
					continue
				}
				r, c := f.InputDims(k)
				in[k] = d.Slice(0, r, i*c, (i+1)*c)
			}
			res, err := f.Call(in...)
			if err != nil {
				return fmt.Errorf("map %s block %d: %w", f.name, i, err)
			}
			for k, o := range res {
				if o == nil {
					continue
				}
				r, c := f.OutputDims(k)
				outs[k].Slice(0, r, i*c, (i+1)*c).(*mat.Dense).Copy(o)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}
