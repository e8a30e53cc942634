package ad

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Backend selects how a Function differentiates. Values are computed the
// same way by every backend.
type Backend int

const (
	// Dual propagates forward mode dual numbers through the graph.
	Dual Backend = iota
	// FiniteDiff uses central differences on the numeric graph.
	FiniteDiff
)

func (b Backend) String() string {
	switch b {
	case Dual:
		return "dual"
	case FiniteDiff:
		return "fd"
	}
	return fmt.Sprintf("Backend(%d)", int(b))
}

func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(s) {
	case "", "dual", "forward":
		return Dual, nil
	case "fd", "finite_diff", "finitediff":
		return FiniteDiff, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

type instr struct {
	op   op
	dst  int
	a, b int
	val  float64
	call int
	out  int
}

type callSite struct {
	rf   *Rootfinder
	args []int
}

// Function is a compiled expression graph with named inputs and outputs.
// It holds no mutable state and may be called from several goroutines.
type Function struct {
	name     string
	backend  Backend
	inNames  []string
	outNames []string
	inDims   [][2]int
	outDims  [][2]int
	inSlots  [][]int
	outSlots [][]int
	tape     []instr
	calls    []callSite
	nslots   int
}

type Option func(*Function)

func WithBackend(b Backend) Option {
	return func(f *Function) { f.backend = b }
}

// NewFunction compiles outputs as functions of inputs. Every input entry
// must be a distinct symbol and outputs may not reference other symbols.
func NewFunction(name string, inputs, outputs []Matrix, inNames, outNames []string, opts ...Option) (*Function, error) {
	if len(inNames) != len(inputs) || len(outNames) != len(outputs) {
		return nil, fmt.Errorf("%w: function %q has %d inputs/%d names and %d outputs/%d names",
			ErrShape, name, len(inputs), len(inNames), len(outputs), len(outNames))
	}

	f := &Function{
		name:     name,
		inNames:  append([]string(nil), inNames...),
		outNames: append([]string(nil), outNames...),
	}
	for _, o := range opts {
		o(f)
	}

	c := &compiler{f: f, slot: make(map[*Expr]int), sites: make(map[*rootCall]int)}
	for k, in := range inputs {
		f.inDims = append(f.inDims, [2]int{in.rows, in.cols})
		slots := make([]int, len(in.data))
		for i, e := range in.data {
			if e.op != opSym {
				return nil, fmt.Errorf("%w: input %q entry %d is %s", ErrInput, inNames[k], i, e)
			}
			if _, dup := c.slot[e]; dup {
				return nil, fmt.Errorf("%w: symbol %s appears twice", ErrInput, e.name)
			}
			slots[i] = c.alloc(e)
		}
		f.inSlots = append(f.inSlots, slots)
	}

	for k, out := range outputs {
		f.outDims = append(f.outDims, [2]int{out.rows, out.cols})
		slots := make([]int, len(out.data))
		for i, e := range out.data {
			s, err := c.visit(e)
			if err != nil {
				return nil, fmt.Errorf("function %q output %q: %w", name, outNames[k], err)
			}
			slots[i] = s
		}
		f.outSlots = append(f.outSlots, slots)
	}
	f.nslots = c.next
	return f, nil
}

type compiler struct {
	f     *Function
	slot  map[*Expr]int
	sites map[*rootCall]int
	next  int
}

func (c *compiler) alloc(e *Expr) int {
	s := c.next
	c.next++
	c.slot[e] = s
	return s
}

// visit emits e after its operands so the tape is in evaluation order.
func (c *compiler) visit(e *Expr) (int, error) {
	if s, ok := c.slot[e]; ok {
		return s, nil
	}

	in := instr{op: e.op}
	switch e.op {
	case opSym:
		return 0, fmt.Errorf("%w: %s", ErrFreeSymbol, e.name)
	case opConst:
		in.val = e.val
	case opAdd, opSub, opMul, opDiv:
		a, err := c.visit(e.a)
		if err != nil {
			return 0, err
		}
		b, err := c.visit(e.b)
		if err != nil {
			return 0, err
		}
		in.a, in.b = a, b
	case opRoot:
		site, err := c.site(e.call)
		if err != nil {
			return 0, err
		}
		in.call, in.out = site, e.out
	default:
		a, err := c.visit(e.a)
		if err != nil {
			return 0, err
		}
		in.a = a
	}

	in.dst = c.alloc(e)
	c.f.tape = append(c.f.tape, in)
	return in.dst, nil
}

func (c *compiler) site(rc *rootCall) (int, error) {
	if idx, ok := c.sites[rc]; ok {
		return idx, nil
	}
	args := make([]int, len(rc.args))
	for i, a := range rc.args {
		s, err := c.visit(a)
		if err != nil {
			return 0, err
		}
		args[i] = s
	}
	idx := len(c.f.calls)
	c.f.calls = append(c.f.calls, callSite{rf: rc.rf, args: args})
	c.sites[rc] = idx
	return idx, nil
}

func (f *Function) Name() string         { return f.name }
func (f *Function) Backend() Backend     { return f.backend }
func (f *Function) NumIn() int           { return len(f.inDims) }
func (f *Function) NumOut() int          { return len(f.outDims) }
func (f *Function) InputNames() []string { return append([]string(nil), f.inNames...) }

func (f *Function) OutputNames() []string {
	return append([]string(nil), f.outNames...)
}

func (f *Function) InputDims(k int) (int, int)  { return f.inDims[k][0], f.inDims[k][1] }
func (f *Function) OutputDims(k int) (int, int) { return f.outDims[k][0], f.outDims[k][1] }

func (f *Function) InputIndex(name string) (int, bool)  { return indexOf(f.inNames, name) }
func (f *Function) OutputIndex(name string) (int, bool) { return indexOf(f.outNames, name) }

func indexOf(names []string, name string) (int, bool) {
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Call evaluates f. Inputs of zero size may be passed as nil; outputs of
// zero size are returned as nil.
func (f *Function) Call(args ...mat.Matrix) ([]*mat.Dense, error) {
	flat, err := f.flatten(args)
	if err != nil {
		return nil, err
	}
	outs, err := run[float64](f, realArith{}, flat)
	if err != nil {
		return nil, err
	}
	return f.pack(outs), nil
}

// CallNamed evaluates f with arguments looked up by input name.
func (f *Function) CallNamed(args map[string]mat.Matrix) (map[string]*mat.Dense, error) {
	ordered := make([]mat.Matrix, f.NumIn())
	for name, a := range args {
		k, ok := f.InputIndex(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no input %q", ErrUnknownPort, f.name, name)
		}
		ordered[k] = a
	}
	outs, err := f.Call(ordered...)
	if err != nil {
		return nil, err
	}
	res := make(map[string]*mat.Dense, len(outs))
	for k, o := range outs {
		res[f.outNames[k]] = o
	}
	return res, nil
}

// Inline evaluates f symbolically on args, returning expressions that can be
// embedded in a larger graph.
func (f *Function) Inline(args ...Matrix) ([]Matrix, error) {
	if len(args) != f.NumIn() {
		return nil, fmt.Errorf("%w: %s takes %d inputs, got %d", ErrShape, f.name, f.NumIn(), len(args))
	}
	flat := make([][]*Expr, len(args))
	for k, a := range args {
		if a.rows != f.inDims[k][0] || a.cols != f.inDims[k][1] {
			return nil, fmt.Errorf("%w: %s input %q wants %dx%d, got %dx%d",
				ErrShape, f.name, f.inNames[k], f.inDims[k][0], f.inDims[k][1], a.rows, a.cols)
		}
		flat[k] = a.data
	}
	outs, err := run[*Expr](f, symArith{}, flat)
	if err != nil {
		return nil, err
	}
	res := make([]Matrix, len(outs))
	for k, o := range outs {
		res[k] = Matrix{rows: f.outDims[k][0], cols: f.outDims[k][1], data: o}
	}
	return res, nil
}

func (f *Function) flatten(args []mat.Matrix) ([][]float64, error) {
	if len(args) != f.NumIn() {
		return nil, fmt.Errorf("%w: %s takes %d inputs, got %d", ErrShape, f.name, f.NumIn(), len(args))
	}
	flat := make([][]float64, len(args))
	for k, a := range args {
		r, c := f.inDims[k][0], f.inDims[k][1]
		if r*c == 0 {
			continue
		}
		if a == nil {
			return nil, fmt.Errorf("%w: %s input %q missing", ErrShape, f.name, f.inNames[k])
		}
		ar, ac := a.Dims()
		if ar != r || ac != c {
			return nil, fmt.Errorf("%w: %s input %q wants %dx%d, got %dx%d", ErrShape, f.name, f.inNames[k], r, c, ar, ac)
		}
		v := make([]float64, r*c)
		for j := 0; j < c; j++ {
			for i := 0; i < r; i++ {
				v[j*r+i] = a.At(i, j)
			}
		}
		flat[k] = v
	}
	return flat, nil
}

func (f *Function) pack(outs [][]float64) []*mat.Dense {
	res := make([]*mat.Dense, len(outs))
	for k, o := range outs {
		r, c := f.outDims[k][0], f.outDims[k][1]
		if r*c == 0 {
			continue
		}
		res[k] = mat.NewDense(r, c, colToRow(o, r, c))
	}
	return res
}
