package step

import (
	"fmt"
	"strings"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

// trxm covers the triangular routines, both updating B in place:
//
//	trmm: B = alpha * op(A) * B  or  alpha * B * op(A)
//	trsm: solves op(A) * X = alpha * B  or  X * op(A) = alpha * B
type trxm struct {
	solve bool
}

// squareDim is the order of A: M on the left side, N on the right
func squareDim(d descriptor.Descriptor) dim {
	if d.RightSide() {
		return dim{"N", d.N}
	}
	return dim{"M", d.M}
}

func (trxm) shapes(d descriptor.Descriptor) []shape {
	sq := squareDim(d)
	return []shape{
		matrixShape("A", "lda", sq, sq, false),
		matrixShape("B", "ldb", dim{"M", d.M}, dim{"N", d.N}, false),
	}
}

func (trxm) options() []string {
	return []string{"order", "side", "uplo", "transA", "diag"}
}

func (t trxm) name() string {
	if t.solve {
		return "trsm"
	}
	return "trmm"
}

// B is the result operand and binds the result role
func (t trxm) declare(s *Step) {
	d := s.desc
	sh := t.shapes(d)

	M := s.addConst("M", "cl_uint", d.M)
	N := s.addConst("N", "cl_uint", d.N)
	lda := s.addStride(sh[0])
	ldb := s.addStride(sh[1])
	offA := s.addUint("offA", d.OffA)
	offB := s.addUint("offB", d.OffBX)
	alpha := s.addMultiplier("alpha", d.Alpha)

	A := s.addArray(sh[0], offA)
	B := s.addArray(sh[1], offB)
	naiveB := s.addNaiveCopy(B)

	bufA := s.bindBuffer(builder.RoleA, "bufA", builder.ReadOnly, A)
	bufB := s.bindBuffer(builder.RoleC, "bufB", builder.ReadWrite, B)

	s.kargs = s.kargs.Append(M, N, alpha).
		AppendBuffer(bufA, A).Append(lda, offA).
		AppendBuffer(bufB, B).Append(ldb, offB)

	s.naiveCall = fmt.Sprintf("%s(order, side, uplo, transA, diag, M, N, alpha, %s, lda, %s, ldb)",
		t.name(), A.Pointer(), naiveB.Pointer())
	s.compareCall = fmt.Sprintf("compareMatrices(order, M, N, %s, %s, ldb)", B.Pointer(), naiveB.Pointer())
	if t.solve {
		s.postRandomCall = fmt.Sprintf("setUpTRSMDiagonal(order, %s, %s, lda)", sh[0].rows.sym, A.Pointer())
	}
}

// One work item owns a column of B on the left side and a row on the right
func (trxm) workShape(d descriptor.Descriptor) (int, int, int) {
	if d.RightSide() {
		return 1, d.M, 1
	}
	return 1, d.N, 1
}

// TRI(r, c) is element (r, c) of op(A) with an implicit unit diagonal
func (trxm) defines(s *Step) string {
	d := s.desc
	defs := opMacro("OPA", "A", d.TransposedA(), d.ConjugatedA())
	if d.UnitDiagonal() {
		return defs + "#define TRI(r, c) ((r) == (c) ? ONE : OPA(r, c))\n"
	}
	return defs + "#define TRI(r, c) OPA(r, c)\n"
}

// effectiveUpper reports whether op(A) is upper triangular
func effectiveUpper(d descriptor.Descriptor) bool {
	return !d.Lower() != d.TransposedA()
}

func (t trxm) body(s *Step) string {
	d := s.desc
	upper := effectiveUpper(d)
	in2 := indent + indent
	in3 := in2 + indent

	var sb strings.Builder
	if d.RightSide() {
		// row i of B; op(A) is N x N
		sb.WriteString(guard1D("i", "M"))
		sb.WriteString("\n")
		if t.solve {
			// X * op(A) = alpha * B, column j needs x(k) for k before j in an upper op(A)
			sb.WriteString(loop(indent, "j", "N", !upper))
			sb.WriteString(in2 + "T acc = MUL(alpha, B_AT(i, j));\n")
			if upper {
				sb.WriteString(loop(in2, "k", "j", false))
			} else {
				sb.WriteString(in2 + "for (uint k = j + 1; k < N; k++) {\n")
			}
			sb.WriteString(in3 + "acc -= MUL(B_AT(i, k), TRI(k, j));\n")
			sb.WriteString(in2 + "}\n")
			sb.WriteString(in2 + "B_AT(i, j) = DIV(acc, TRI(j, j));\n")
		} else {
			sb.WriteString(loop(indent, "j", "N", upper))
			sb.WriteString(in2 + "T acc = ZERO;\n")
			if upper {
				sb.WriteString(in2 + "for (uint k = 0; k <= j; k++) {\n")
			} else {
				sb.WriteString(in2 + "for (uint k = j; k < N; k++) {\n")
			}
			sb.WriteString(in3 + "acc += MUL(B_AT(i, k), TRI(k, j));\n")
			sb.WriteString(in2 + "}\n")
			sb.WriteString(in2 + "B_AT(i, j) = MUL(alpha, acc);\n")
		}
		sb.WriteString(indent + "}\n")
		return sb.String()
	}

	// column j of B; op(A) is M x M
	sb.WriteString(guard1D("j", "N"))
	sb.WriteString("\n")
	if t.solve {
		// op(A) * X = alpha * B, forward substitution for a lower op(A)
		sb.WriteString(loop(indent, "i", "M", upper))
		sb.WriteString(in2 + "T acc = MUL(alpha, B_AT(i, j));\n")
		if upper {
			sb.WriteString(in2 + "for (uint k = i + 1; k < M; k++) {\n")
		} else {
			sb.WriteString(loop(in2, "k", "i", false))
		}
		sb.WriteString(in3 + "acc -= MUL(TRI(i, k), B_AT(k, j));\n")
		sb.WriteString(in2 + "}\n")
		sb.WriteString(in2 + "B_AT(i, j) = DIV(acc, TRI(i, i));\n")
	} else {
		sb.WriteString(loop(indent, "i", "M", !upper))
		sb.WriteString(in2 + "T acc = ZERO;\n")
		if upper {
			sb.WriteString(in2 + "for (uint k = i; k < M; k++) {\n")
		} else {
			sb.WriteString(in2 + "for (uint k = 0; k <= i; k++) {\n")
		}
		sb.WriteString(in3 + "acc += MUL(TRI(i, k), B_AT(k, j));\n")
		sb.WriteString(in2 + "}\n")
		sb.WriteString(in2 + "B_AT(i, j) = MUL(alpha, acc);\n")
	}
	sb.WriteString(indent + "}\n")
	return sb.String()
}
