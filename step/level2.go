package step

import (
	"fmt"
	"strings"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

// gemv: y = alpha * op(A) * x + beta * y, A stored M x N
type gemv struct{}

func (gemv) shapes(d descriptor.Descriptor) []shape {
	M, N := dim{"M", d.M}, dim{"N", d.N}
	lenX, lenY := N, M
	if d.TransposedA() {
		lenX, lenY = M, N
	}
	return []shape{
		matrixShape("A", "lda", M, N, false),
		vectorShape("X", "incx", lenX),
		vectorShape("Y", "incy", lenY),
	}
}

func (gemv) options() []string {
	return []string{"order", "transA"}
}

func (g gemv) declare(s *Step) {
	d := s.desc
	sh := g.shapes(d)

	M := s.addConst("M", "cl_uint", d.M)
	N := s.addConst("N", "cl_uint", d.N)
	lda := s.addStride(sh[0])
	incx := s.addStride(sh[1])
	incy := s.addStride(sh[2])
	offA := s.addUint("offA", d.OffA)
	offX := s.addUint("offX", d.OffBX)
	offY := s.addUint("offY", d.OffCY)
	alpha := s.addMultiplier("alpha", d.Alpha)
	beta := s.addMultiplier("beta", d.Beta)

	A := s.addArray(sh[0], offA)
	X := s.addArray(sh[1], offX)
	Y := s.addArray(sh[2], offY)
	naiveY := s.addNaiveCopy(Y)

	bufA := s.bindBuffer(builder.RoleA, "bufA", builder.ReadOnly, A)
	bufX := s.bindBuffer(builder.RoleB, "bufX", builder.ReadOnly, X)
	bufY := s.bindBuffer(builder.RoleC, "bufY", builder.ReadWrite, Y)

	s.kargs = s.kargs.Append(M, N, alpha, beta).
		AppendBuffer(bufA, A).Append(lda, offA).
		AppendBuffer(bufX, X).Append(incx, offX).
		AppendBuffer(bufY, Y).Append(incy, offY)

	s.naiveCall = fmt.Sprintf("gemv(order, transA, M, N, alpha, %s, lda, %s, incx, beta, %s, incy)",
		A.Pointer(), X.Pointer(), naiveY.Pointer())
	s.compareCall = fmt.Sprintf("compareVectors(%s, %s, %s, incy)", sh[2].length.sym, Y.Pointer(), naiveY.Pointer())
}

func (g gemv) workShape(d descriptor.Descriptor) (int, int, int) {
	return 1, g.shapes(d)[2].length.n, 1
}

func (gemv) defines(s *Step) string {
	d := s.desc
	return opMacro("OPA", "A", d.TransposedA(), d.ConjugatedA())
}

func (g gemv) body(s *Step) string {
	sh := g.shapes(s.desc)
	lenX, lenY := sh[1].length.sym, sh[2].length.sym
	return dotKernel(lenY, lenX, "OPA(i, k)")
}

// dotKernel computes Y(i) = alpha * sum_k a(i, k) * X(k) + beta * Y(i)
func dotKernel(lenY, lenX, elem string) string {
	var sb strings.Builder
	sb.WriteString(guard1D("i", lenY))
	sb.WriteString("\n")
	sb.WriteString(indent + "T acc = ZERO;\n")
	sb.WriteString(loop(indent, "k", lenX, false))
	sb.WriteString(fmt.Sprintf("%s%sacc += MUL(%s, X_AT(k));\n", indent, indent, elem))
	sb.WriteString(indent + "}\n")
	sb.WriteString(indent + "Y_AT(i) = MUL(alpha, acc) + MUL(beta, Y_AT(i));\n")
	return sb.String()
}

// symv: y = alpha * A * x + beta * y, A symmetric N x N stored in one triangle
type symv struct{}

func (symv) shapes(d descriptor.Descriptor) []shape {
	N := dim{"N", d.N}
	return []shape{
		matrixShape("A", "lda", N, N, false),
		vectorShape("X", "incx", N),
		vectorShape("Y", "incy", N),
	}
}

func (symv) options() []string {
	return []string{"order", "uplo"}
}

func (sy symv) declare(s *Step) {
	d := s.desc
	sh := sy.shapes(d)

	N := s.addConst("N", "cl_uint", d.N)
	lda := s.addStride(sh[0])
	incx := s.addStride(sh[1])
	incy := s.addStride(sh[2])
	offA := s.addUint("offA", d.OffA)
	offX := s.addUint("offX", d.OffBX)
	offY := s.addUint("offY", d.OffCY)
	alpha := s.addMultiplier("alpha", d.Alpha)
	beta := s.addMultiplier("beta", d.Beta)

	A := s.addArray(sh[0], offA)
	X := s.addArray(sh[1], offX)
	Y := s.addArray(sh[2], offY)
	naiveY := s.addNaiveCopy(Y)

	bufA := s.bindBuffer(builder.RoleA, "bufA", builder.ReadOnly, A)
	bufX := s.bindBuffer(builder.RoleB, "bufX", builder.ReadOnly, X)
	bufY := s.bindBuffer(builder.RoleC, "bufY", builder.ReadWrite, Y)

	s.kargs = s.kargs.Append(N, alpha, beta).
		AppendBuffer(bufA, A).Append(lda, offA).
		AppendBuffer(bufX, X).Append(incx, offX).
		AppendBuffer(bufY, Y).Append(incy, offY)

	s.naiveCall = fmt.Sprintf("symv(order, uplo, N, alpha, %s, lda, %s, incx, beta, %s, incy)",
		A.Pointer(), X.Pointer(), naiveY.Pointer())
	s.compareCall = fmt.Sprintf("compareVectors(N, %s, %s, incy)", Y.Pointer(), naiveY.Pointer())
}

func (symv) workShape(d descriptor.Descriptor) (int, int, int) {
	return 1, d.N, 1
}

// SYM reads the stored triangle for either half of the matrix
func (symv) defines(s *Step) string {
	if s.desc.Lower() {
		return "#define SYM(r, c) ((r) >= (c) ? A_AT(r, c) : A_AT(c, r))\n"
	}
	return "#define SYM(r, c) ((r) <= (c) ? A_AT(r, c) : A_AT(c, r))\n"
}

func (symv) body(s *Step) string {
	return dotKernel("N", "N", "SYM(i, k)")
}
