package integrator

import (
	"github.com/san-kum/ocptrans/internal/ad"
)

// Model is the construction-time view of a multibody model needed to locate
// quaternion coordinates in the state vector.
type Model interface {
	NbSegment() int
	SegmentDof(i int) int
	SegmentQuaternion(i int) bool
	NbDof() int
	NbQuat() int
}

// QuaternionBlock holds the state indices of one quaternion. X, Y and Z are
// the segment's three rotational coordinates; W sits after every degree of
// freedom of the model.
type QuaternionBlock struct {
	X, Y, Z, W int
}

// QuaternionBlocks lists the blocks of m in segment order. A nil model has
// none.
func QuaternionBlocks(m Model) []QuaternionBlock {
	if m == nil {
		return nil
	}
	var blocks []QuaternionBlock
	nDof := 0
	for i := 0; i < m.NbSegment(); i++ {
		if m.SegmentQuaternion(i) {
			blocks = append(blocks, QuaternionBlock{
				X: nDof,
				Y: nDof + 1,
				Z: nDof + 2,
				W: m.NbDof() + len(blocks),
			})
		}
		nDof += m.SegmentDof(i)
	}
	return blocks
}

func (b QuaternionBlock) max() int {
	return max(b.X, b.Y, b.Z, b.W)
}

// normalizeQuaternions divides every block of x by its Euclidean norm in
// place.
func normalizeQuaternions(x ad.Vector, blocks []QuaternionBlock) {
	for _, b := range blocks {
		idx := []int{b.W, b.X, b.Y, b.Z}
		q := x.Select(idx)
		n := ad.Norm2(q)
		for k, i := range idx {
			x[i] = ad.Div(q[k], n)
		}
	}
}
