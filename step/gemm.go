package step

import (
	"fmt"
	"strings"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

// gemm: C = alpha * op(A) * op(B) + beta * C
type gemm struct{}

func (gemm) shapes(d descriptor.Descriptor) []shape {
	M, N, K := dim{"M", d.M}, dim{"N", d.N}, dim{"K", d.K}
	return []shape{
		matrixShape("A", "lda", M, K, d.TransposedA()),
		matrixShape("B", "ldb", K, N, d.TransposedB()),
		matrixShape("C", "ldc", M, N, false),
	}
}

func (gemm) options() []string {
	return []string{"order", "transA", "transB"}
}

func (g gemm) declare(s *Step) {
	d := s.desc
	sh := g.shapes(d)

	M := s.addConst("M", "cl_uint", d.M)
	N := s.addConst("N", "cl_uint", d.N)
	K := s.addConst("K", "cl_uint", d.K)
	lda := s.addStride(sh[0])
	ldb := s.addStride(sh[1])
	ldc := s.addStride(sh[2])
	offA := s.addUint("offA", d.OffA)
	offB := s.addUint("offB", d.OffBX)
	offC := s.addUint("offC", d.OffCY)
	alpha := s.addMultiplier("alpha", d.Alpha)
	beta := s.addMultiplier("beta", d.Beta)

	A := s.addArray(sh[0], offA)
	B := s.addArray(sh[1], offB)
	C := s.addArray(sh[2], offC)
	naiveC := s.addNaiveCopy(C)

	bufA := s.bindBuffer(builder.RoleA, "bufA", builder.ReadOnly, A)
	bufB := s.bindBuffer(builder.RoleB, "bufB", builder.ReadOnly, B)
	bufC := s.bindBuffer(builder.RoleC, "bufC", builder.ReadWrite, C)

	s.kargs = s.kargs.Append(M, N, K, alpha, beta).
		AppendBuffer(bufA, A).Append(lda, offA).
		AppendBuffer(bufB, B).Append(ldb, offB).
		AppendBuffer(bufC, C).Append(ldc, offC)

	s.naiveCall = fmt.Sprintf("gemm(order, transA, transB, M, N, K, alpha, %s, lda, %s, ldb, beta, %s, ldc)",
		A.Pointer(), B.Pointer(), naiveC.Pointer())
	s.compareCall = fmt.Sprintf("compareMatrices(order, M, N, %s, %s, ldc)", C.Pointer(), naiveC.Pointer())
}

func (gemm) workShape(d descriptor.Descriptor) (int, int, int) {
	return 2, d.M, d.N
}

func (gemm) defines(s *Step) string {
	d := s.desc
	return opMacro("OPA", "A", d.TransposedA(), d.ConjugatedA()) +
		opMacro("OPB", "B", d.TransposedB(), d.ConjugatedB())
}

func (gemm) body(s *Step) string {
	var sb strings.Builder
	sb.WriteString(guard2D("M", "N"))
	sb.WriteString("\n")
	sb.WriteString(indent + "T acc = ZERO;\n")
	sb.WriteString(loop(indent, "k", "K", false))
	sb.WriteString(indent + indent + "acc += MUL(OPA(i, k), OPB(k, j));\n")
	sb.WriteString(indent + "}\n")
	sb.WriteString(indent + "C_AT(i, j) = MUL(alpha, acc) + MUL(beta, C_AT(i, j));\n")
	return sb.String()
}
