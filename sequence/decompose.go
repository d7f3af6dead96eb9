package sequence

import (
	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
	"github.com/notargets/ktestgen/step"
)

// DefaultBlock is the panel width used when Blocked has none and the
// descriptor carries no decomposition hint
const DefaultBlock = 64

// Record describes one step of a solution: the shape it runs on, how its
// buffer roles map onto the master's, and optionally its work partition
type Record struct {
	Desc descriptor.Descriptor
	// Roles maps each role of the step to a master role; nil is identity
	Roles *[builder.NumRoles]builder.Role
	PGran *step.PGran
}

// Decomposer turns one problem into an ordered list of step records
type Decomposer interface {
	Decompose(d descriptor.Descriptor) ([]Record, error)
}

// DecomposerFunc adapts a function to the Decomposer interface
type DecomposerFunc func(d descriptor.Descriptor) ([]Record, error)

func (f DecomposerFunc) Decompose(d descriptor.Descriptor) ([]Record, error) {
	return f(d)
}

// Single runs the whole problem as one step
type Single struct{}

func (Single) Decompose(d descriptor.Descriptor) ([]Record, error) {
	return []Record{{Desc: d}}, nil
}

// Fixed replays records produced elsewhere, ignoring the descriptor
type Fixed []Record

func (f Fixed) Decompose(descriptor.Descriptor) ([]Record, error) {
	out := make([]Record, len(f))
	copy(out, f)
	return out, nil
}

// Blocked splits problems wider than Block. GEMM is cut into column
// panels of C. Left side TRMM and TRSM without transpose become a
// triangular step, a GEMM update and a second triangular step; each step
// reads what the previous one wrote. Everything else runs as one step.
type Blocked struct {
	Block int
}

func (b Blocked) block(d descriptor.Descriptor) int {
	if b.Block > 0 {
		return b.Block
	}
	if dims, ok := d.Subdims(); ok && dims[0].Y > 0 {
		return dims[0].Y
	}
	return DefaultBlock
}

func (b Blocked) Decompose(d descriptor.Descriptor) ([]Record, error) {
	block := b.block(d)
	switch d.Op {
	case descriptor.Gemm:
		if d.N > block {
			return gemmPanels(d, block), nil
		}
	case descriptor.Trmm, descriptor.Trsm:
		if !d.RightSide() && !d.TransposedA() && d.M > block {
			return triangularSplit(d, block), nil
		}
	}
	return Single{}.Decompose(d)
}

func gemmPanels(d descriptor.Descriptor, block int) []Record {
	var out []Record
	for c0 := 0; c0 < d.N; c0 += block {
		p := d
		p.N = min(block, d.N-c0)
		if d.TransposedB() {
			p.OffBX = d.OffBX + descriptor.ElementOffset(d.Order, c0, 0, d.LDB)
		} else {
			p.OffBX = d.OffBX + descriptor.ElementOffset(d.Order, 0, c0, d.LDB)
		}
		p.OffCY = d.OffCY + descriptor.ElementOffset(d.Order, 0, c0, d.LDC)
		out = append(out, Record{Desc: p})
	}
	return out
}

// update is the GEMM step of a triangular split, C = alpha * A * B + beta * C
// where B and C are both blocks of the triangular problem's B
func update(d descriptor.Descriptor, m, k, offA, offB, offC int, alpha, beta complex128) Record {
	g := descriptor.New(descriptor.Gemm, d.DType)
	g.Order = d.Order
	g.M, g.N, g.K = m, d.N, k
	g.LDA, g.LDB, g.LDC = d.LDA, d.LDB, d.LDB
	g.OffA, g.OffBX, g.OffCY = offA, offB, offC
	g.Alpha, g.Beta = alpha, beta
	g.Decomposition = d.Decomposition
	roles := [builder.NumRoles]builder.Role{builder.RoleA, builder.RoleC, builder.RoleC}
	return Record{Desc: g, Roles: &roles}
}

func triangularSplit(d descriptor.Descriptor, block int) []Record {
	m1, m2 := block, d.M-block
	at := func(r, c int) int { return d.OffA + descriptor.ElementOffset(d.Order, r, c, d.LDA) }
	row := func(r int) int { return d.OffBX + descriptor.ElementOffset(d.Order, r, 0, d.LDB) }

	tri := func(m, offA, offB int, alpha complex128) Record {
		t := d
		t.M = m
		t.OffA, t.OffBX = offA, offB
		t.Alpha = alpha
		return Record{Desc: t}
	}

	a11, a22 := at(0, 0), at(m1, m1)
	a12, a21 := at(0, m1), at(m1, 0)
	b1, b2 := row(0), row(m1)
	alpha := d.Alpha

	if d.Op == descriptor.Trmm {
		if d.Lower() {
			return []Record{
				tri(m2, a22, b2, alpha),
				update(d, m2, m1, a21, b1, b2, alpha, 1),
				tri(m1, a11, b1, alpha),
			}
		}
		return []Record{
			tri(m1, a11, b1, alpha),
			update(d, m1, m2, a12, b2, b1, alpha, 1),
			tri(m2, a22, b2, alpha),
		}
	}

	if d.Lower() {
		return []Record{
			tri(m1, a11, b1, alpha),
			update(d, m2, m1, a21, b1, b2, -1, alpha),
			tri(m2, a22, b2, 1),
		}
	}
	return []Record{
		tri(m2, a22, b2, alpha),
		update(d, m1, m2, a12, b2, b1, -1, alpha),
		tri(m1, a11, b1, 1),
	}
}
