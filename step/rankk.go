package step

import (
	"fmt"
	"strings"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

// rankK covers the symmetric rank-k updates of one triangle of C:
//
//	syrk:  C = alpha * op(A) * op(A)^T + beta * C
//	syr2k: C = alpha * op(A) * op(B)^T + alpha * op(B) * op(A)^T + beta * C
type rankK struct {
	two bool
}

func (r rankK) shapes(d descriptor.Descriptor) []shape {
	N, K := dim{"N", d.N}, dim{"K", d.K}
	out := []shape{matrixShape("A", "lda", N, K, d.TransposedA())}
	if r.two {
		out = append(out, matrixShape("B", "ldb", N, K, d.TransposedA()))
	}
	return append(out, matrixShape("C", "ldc", N, N, false))
}

func (rankK) options() []string {
	return []string{"order", "uplo", "transA"}
}

func (r rankK) declare(s *Step) {
	d := s.desc
	sh := r.shapes(d)

	N := s.addConst("N", "cl_uint", d.N)
	K := s.addConst("K", "cl_uint", d.K)
	lda := s.addStride(shapeOf(sh, "A"))
	var ldb *builder.Variable
	if r.two {
		ldb = s.addStride(shapeOf(sh, "B"))
	}
	ldc := s.addStride(shapeOf(sh, "C"))
	offA := s.addUint("offA", d.OffA)
	var offB *builder.Variable
	if r.two {
		offB = s.addUint("offB", d.OffBX)
	}
	offC := s.addUint("offC", d.OffCY)
	alpha := s.addMultiplier("alpha", d.Alpha)
	beta := s.addMultiplier("beta", d.Beta)

	A := s.addArray(shapeOf(sh, "A"), offA)
	var B builder.Array
	if r.two {
		B = s.addArray(shapeOf(sh, "B"), offB)
	}
	C := s.addArray(shapeOf(sh, "C"), offC)
	naiveC := s.addNaiveCopy(C)

	bufA := s.bindBuffer(builder.RoleA, "bufA", builder.ReadOnly, A)
	var bufB *builder.Buffer
	if r.two {
		bufB = s.bindBuffer(builder.RoleB, "bufB", builder.ReadOnly, B)
	}
	bufC := s.bindBuffer(builder.RoleC, "bufC", builder.ReadWrite, C)

	s.kargs = s.kargs.Append(N, K, alpha, beta).AppendBuffer(bufA, A).Append(lda, offA)
	if r.two {
		s.kargs = s.kargs.AppendBuffer(bufB, B).Append(ldb, offB)
	}
	s.kargs = s.kargs.AppendBuffer(bufC, C).Append(ldc, offC)

	if r.two {
		s.naiveCall = fmt.Sprintf("syr2k(order, uplo, transA, N, K, alpha, %s, lda, %s, ldb, beta, %s, ldc)",
			A.Pointer(), B.Pointer(), naiveC.Pointer())
	} else {
		s.naiveCall = fmt.Sprintf("syrk(order, uplo, transA, N, K, alpha, %s, lda, beta, %s, ldc)",
			A.Pointer(), naiveC.Pointer())
	}
	s.compareCall = fmt.Sprintf("compareMatrices(order, N, N, %s, %s, ldc)", C.Pointer(), naiveC.Pointer())
}

func (rankK) workShape(d descriptor.Descriptor) (int, int, int) {
	return 2, d.N, d.N
}

// the conjugate transpose reads like the plain transpose for these routines
func (r rankK) defines(s *Step) string {
	d := s.desc
	defs := opMacro("OPA", "A", d.TransposedA(), false)
	if r.two {
		defs += opMacro("OPB", "B", d.TransposedA(), false)
	}
	return defs
}

func (r rankK) body(s *Step) string {
	var sb strings.Builder
	sb.WriteString(guard2D("N", "N"))
	if s.desc.Lower() {
		sb.WriteString(indent + "if (j > i) {\n")
	} else {
		sb.WriteString(indent + "if (i > j) {\n")
	}
	sb.WriteString(indent + indent + "return;\n" + indent + "}\n\n")
	sb.WriteString(indent + "T acc = ZERO;\n")
	sb.WriteString(loop(indent, "k", "K", false))
	if r.two {
		sb.WriteString(indent + indent + "acc += MUL(OPA(i, k), OPB(j, k)) + MUL(OPB(i, k), OPA(j, k));\n")
	} else {
		sb.WriteString(indent + indent + "acc += MUL(OPA(i, k), OPA(j, k));\n")
	}
	sb.WriteString(indent + "}\n")
	sb.WriteString(indent + "C_AT(i, j) = MUL(alpha, acc) + MUL(beta, C_AT(i, j));\n")
	return sb.String()
}
