package step

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

func gemmDescriptor(m, n, k int) descriptor.Descriptor {
	d := descriptor.New(descriptor.Gemm, descriptor.Float32)
	d.M, d.N, d.K = m, n, k
	return d
}

func declared(t *testing.T, d descriptor.Descriptor, master *Step) *Step {
	t.Helper()
	s, err := New(d)
	require.NoError(t, err)
	s.FixLD()
	require.NoError(t, s.Declare(master))
	return s
}

func TestNewErrors(t *testing.T) {
	_, err := New(descriptor.Descriptor{DType: descriptor.Float32})
	assert.ErrorIs(t, err, ErrNoOperation)

	_, err = New(descriptor.Descriptor{Op: descriptor.Op(42), DType: descriptor.Float32})
	assert.ErrorIs(t, err, ErrUnsupportedOp)

	_, err = New(descriptor.Descriptor{Op: descriptor.Gemm})
	assert.ErrorIs(t, err, ErrUnknownDataType)

	_, err = FixLD(descriptor.Descriptor{})
	assert.ErrorIs(t, err, ErrNoOperation)
}

// TestGemmSquareUnsetLeadingDimensions unset leading dimensions are raised to the matrix extents
func TestGemmSquareUnsetLeadingDimensions(t *testing.T) {
	d, err := FixLD(gemmDescriptor(256, 256, 256))
	require.NoError(t, err)
	assert.Equal(t, 256, d.LDA)
	assert.Equal(t, 256, d.LDB)
	assert.Equal(t, 256, d.LDC)

	s := declared(t, gemmDescriptor(256, 256, 256), nil)
	for _, name := range []string{"A", "B", "C"} {
		m, ok := s.Array(name).(*builder.Matrix)
		require.True(t, ok, name)
		assert.Equal(t, "256", m.Rows().Default(), name)
		assert.Equal(t, "256", m.Cols().Default(), name)
		assert.Equal(t, "256", m.LD().Default(), name)
	}
	assert.Equal(t, "A", s.Array("A").Pointer())
	assert.Equal(t, "B", s.Array("B").Pointer())
	assert.Equal(t, "C", s.Array("C").Pointer())
	assert.NotNil(t, s.Var("offA"), "offsets stay declared for the kernel")
}

func TestGemmOffsetPointerAndCompare(t *testing.T) {
	d := gemmDescriptor(256, 256, 256)
	d.OffA = 128
	s := declared(t, d, nil)

	assert.Equal(t, "A + offA", s.Array("A").Pointer())
	assert.Equal(t, "128", s.Var("offA").Default())
	assert.Equal(t, "compareMatrices(order, M, N, C, naiveC, ldc)", s.CompareCall())
	assert.Equal(t, "gemm(order, transA, transB, M, N, K, alpha, A + offA, lda, B, ldb, beta, naiveC, ldc)",
		s.NaiveCall())

	naiveC := s.Array("naiveC")
	require.NotNil(t, naiveC)
	assert.Same(t, s.Array("C"), naiveC.CopyOf())
	assert.NotSame(t, s.Array("C"), naiveC)
}

// TestGemmZeroExtent a zero row count still yields pointers, sizes and kernel text
func TestGemmZeroExtent(t *testing.T) {
	d, err := FixLD(gemmDescriptor(0, 16, 16))
	require.NoError(t, err)
	assert.Equal(t, 16, d.LDA)
	assert.Equal(t, 16, d.LDC)

	s := declared(t, gemmDescriptor(0, 16, 16), nil)
	for _, a := range s.Vars().Arrays() {
		assert.NotEmpty(t, a.Pointer(), a.Name())
		assert.NotEmpty(t, s.ArraySize(a), a.Name())
	}
	assert.Equal(t, "0", s.Var("M").Default())
	text, err := s.Generate()
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}

func TestGemmTransposedExtents(t *testing.T) {
	d := gemmDescriptor(10, 20, 30)
	d.TransA = blas.Trans
	d.TransB = blas.Trans
	d.Order = descriptor.ColumnMajor
	d, err := FixLD(d)
	require.NoError(t, err)
	assert.Equal(t, 30, d.LDA) // A stored K x M
	assert.Equal(t, 20, d.LDB) // B stored N x K
	assert.Equal(t, 10, d.LDC)

	s := declared(t, d, nil)
	A := s.Array("A").(*builder.Matrix)
	assert.Equal(t, "K", A.Rows().Name())
	assert.Equal(t, "M", A.Cols().Name())
	assert.Equal(t, "lda * M", s.ArraySize(A))
	B := s.Array("B").(*builder.Matrix)
	assert.Equal(t, "N", B.Rows().Name())
	assert.Equal(t, "K", B.Cols().Name())
}

func TestDeclareTwice(t *testing.T) {
	s := declared(t, gemmDescriptor(4, 4, 4), nil)
	before := s.Array("A").Pointer()
	assert.ErrorIs(t, s.Declare(nil), ErrAlreadyDeclared)
	assert.Equal(t, before, s.Array("A").Pointer())
}

func TestGenerateBeforeDeclare(t *testing.T) {
	s, err := New(gemmDescriptor(4, 4, 4))
	require.NoError(t, err)
	_, err = s.Generate()
	assert.ErrorIs(t, err, ErrNotDeclared)
}

func TestDeclareBorrowsMasterBuffers(t *testing.T) {
	master := declared(t, gemmDescriptor(64, 64, 64), nil)
	sub := declared(t, gemmDescriptor(32, 64, 64), master)

	for r := builder.RoleA; r < builder.NumRoles; r++ {
		assert.Same(t, master.Buffer(r), sub.Buffer(r), r.String())
	}
	assert.Empty(t, sub.Vars().OwnedBuffers())
	assert.Len(t, master.Vars().OwnedBuffers(), 3)
	assert.Same(t, master, sub.Master())

	// kernel parameters still use the step's own array names
	params := []string{}
	for _, arg := range sub.KernelArgs().Buffers() {
		params = append(params, arg.Param)
	}
	assert.Equal(t, []string{"A", "B", "C"}, params)
}

// TestDeclareMappedRoles a role map binds the step's roles to other master buffers
func TestDeclareMappedRoles(t *testing.T) {
	d := descriptor.New(descriptor.Trsm, descriptor.Float32)
	d.M, d.N = 8, 8
	master := declared(t, d, nil)
	require.Nil(t, master.Buffer(builder.RoleB))

	sub, err := New(gemmDescriptor(4, 8, 4))
	require.NoError(t, err)
	sub.MapRoles([builder.NumRoles]builder.Role{builder.RoleA, builder.RoleC, builder.RoleC})
	sub.FixLD()
	require.NoError(t, sub.Declare(master))
	assert.Same(t, master.Buffer(builder.RoleC), sub.Buffer(builder.RoleB))
	assert.Same(t, master.Buffer(builder.RoleC), sub.Buffer(builder.RoleC))
	assert.Equal(t, "bufB", sub.Buffer(builder.RoleC).Name())
}

func TestDeclareMissingRole(t *testing.T) {
	d := descriptor.New(descriptor.Syrk, descriptor.Float32)
	d.N, d.K = 8, 8
	master := declared(t, d, nil)

	sub, err := New(gemmDescriptor(8, 8, 8))
	require.NoError(t, err)
	err = sub.Declare(master)
	assert.True(t, errors.Is(err, ErrMissingRole))
	assert.False(t, sub.Declared())
	assert.Equal(t, 0, sub.Vars().Len())
}

func TestDeclareUndeclaredMaster(t *testing.T) {
	master, err := New(gemmDescriptor(8, 8, 8))
	require.NoError(t, err)
	sub, err := New(gemmDescriptor(8, 8, 8))
	require.NoError(t, err)
	assert.ErrorIs(t, sub.Declare(master), ErrMasterNotDeclared)
}

// TestMultiplierLiterals checks host literals for real and complex alpha and beta
func TestMultiplierLiterals(t *testing.T) {
	assert.Equal(t, "0.5", multiplierLiteral(descriptor.Float32, 0.5))
	assert.Equal(t, "-1", multiplierLiteral(descriptor.Float64, -1))
	assert.Equal(t, "floatComplex(1, 2)", multiplierLiteral(descriptor.Complex64, complex(1, 2)))
	assert.Equal(t, "doubleComplex(0.25, -3)", multiplierLiteral(descriptor.Complex128, complex(0.25, -3)))

	d := descriptor.New(descriptor.Gemm, descriptor.Complex64)
	d.Alpha = complex(2, 1)
	s := declared(t, d, nil)
	assert.Equal(t, "FloatComplex", s.Var("alpha").Type())
	assert.Equal(t, "floatComplex(2, 1)", s.Var("alpha").Default())
	assert.Equal(t, "FloatComplex*", s.Array("A").Type())
}

func TestBlasOptions(t *testing.T) {
	d := descriptor.New(descriptor.Trmm, descriptor.Float64)
	d.Order = descriptor.ColumnMajor
	d.Side = blas.Right
	d.Uplo = blas.Lower
	d.TransA = blas.ConjTrans
	d.Diag = blas.Unit
	s, err := New(d)
	require.NoError(t, err)

	got := map[string]string{}
	for _, v := range s.BlasOptions() {
		assert.True(t, v.IsConst())
		got[v.Name()] = v.Default()
	}
	assert.Equal(t, map[string]string{
		"order":  "clblasColumnMajor",
		"side":   "clblasRight",
		"uplo":   "clblasLower",
		"transA": "clblasConjTrans",
		"diag":   "clblasUnit",
	}, got)
}

func TestLevel2Declarations(t *testing.T) {
	d := descriptor.New(descriptor.Gemv, descriptor.Float32)
	d.M, d.N = 30, 20
	d.IncX, d.IncY = 0, -2
	d.OffBX = 3
	d.TransA = blas.Trans
	s := declared(t, d, nil)

	X := s.Array("X").(*builder.Vector)
	Y := s.Array("Y").(*builder.Vector)
	assert.Equal(t, "M", X.Len().Name())
	assert.Equal(t, "N", Y.Len().Name())
	assert.Equal(t, "1", s.Var("incx").Default())
	assert.Equal(t, "-2", s.Var("incy").Default())
	assert.Equal(t, "cl_int", s.Var("incy").Type())
	assert.Equal(t, "X + offX", X.Pointer())
	assert.Equal(t, "offX + 1 + (M - 1) * abs(incx)", s.ArraySize(X))
	assert.Equal(t, "compareVectors(N, Y, naiveY, incy)", s.CompareCall())
	assert.Equal(t, "bufX", s.Buffer(builder.RoleB).Name())
	assert.Equal(t, 2, s.Level())

	sy := descriptor.New(descriptor.Symv, descriptor.Float32)
	sy.N = 16
	s = declared(t, sy, nil)
	assert.Equal(t, "symv(order, uplo, N, alpha, A, lda, X, incx, beta, naiveY, incy)", s.NaiveCall())
}

func TestTriangularDeclarations(t *testing.T) {
	d := descriptor.New(descriptor.Trsm, descriptor.Float32)
	d.M, d.N = 12, 5
	d.Side = blas.Right
	s := declared(t, d, nil)

	A := s.Array("A").(*builder.Matrix)
	assert.Equal(t, "N", A.Rows().Name())
	assert.Equal(t, "N", A.Cols().Name())
	assert.Equal(t, "5", s.Var("lda").Default())
	assert.Equal(t, "setUpTRSMDiagonal(order, N, A, lda)", s.PostRandomCall())
	assert.Equal(t, "trsm(order, side, uplo, transA, diag, M, N, alpha, A, lda, naiveB, ldb)", s.NaiveCall())
	assert.Equal(t, builder.ReadWrite, s.Buffer(builder.RoleC).Access())
	assert.Nil(t, s.Var("beta"))

	tm := descriptor.New(descriptor.Trmm, descriptor.Float32)
	tm.M, tm.N = 12, 5
	s = declared(t, tm, nil)
	assert.Equal(t, "M", s.Array("A").(*builder.Matrix).Rows().Name())
	assert.Empty(t, s.PostRandomCall())
}

func TestRankKDeclarations(t *testing.T) {
	d := descriptor.New(descriptor.Syr2k, descriptor.Float64)
	d.N, d.K = 6, 9
	d.TransA = blas.Trans
	d, err := FixLD(d)
	require.NoError(t, err)
	assert.Equal(t, 6, d.LDA) // A stored K x N, row-major
	assert.Equal(t, 6, d.LDB)
	assert.Equal(t, 6, d.LDC)

	s := declared(t, d, nil)
	assert.Equal(t, "syr2k(order, uplo, transA, N, K, alpha, A, lda, B, ldb, beta, naiveC, ldc)", s.NaiveCall())
	assert.NotNil(t, s.Buffer(builder.RoleB))

	k := descriptor.New(descriptor.Syrk, descriptor.Float64)
	k.N, k.K = 6, 9
	s = declared(t, k, nil)
	assert.Nil(t, s.Buffer(builder.RoleB))
	assert.Nil(t, s.Var("ldb"))
	assert.Equal(t, "9", s.Var("lda").Default())
}

func TestPGran(t *testing.T) {
	s := declared(t, gemmDescriptor(256, 256, 256), nil)
	assert.Equal(t, PGran{Dim: 2, Local: [2]int{8, 8}, Global: [2]int{256, 256}}, s.PGran())

	s = declared(t, gemmDescriptor(0, 3, 3), nil)
	assert.Equal(t, PGran{Dim: 2, Local: [2]int{1, 2}, Global: [2]int{1, 4}}, s.PGran())

	gv := descriptor.New(descriptor.Gemv, descriptor.Float32)
	gv.M, gv.N = 100, 7
	s = declared(t, gv, nil)
	assert.Equal(t, PGran{Dim: 1, Local: [2]int{64, 1}, Global: [2]int{128, 1}}, s.PGran())

	d := gemmDescriptor(256, 256, 256)
	d.Decomposition = &descriptor.Decomposition{{X: 32, Y: 64, BWidth: 16}, {X: 4, Y: 4, BWidth: 16}}
	s = declared(t, d, nil)
	assert.Equal(t, PGran{Dim: 2, Local: [2]int{16, 8}, Global: [2]int{256, 256}}, s.PGran())

	override := PGran{Dim: 1, Local: [2]int{32, 1}, Global: [2]int{64, 1}}
	o, err := New(gemmDescriptor(8, 8, 8))
	require.NoError(t, err)
	o.SetPGran(override)
	require.NoError(t, o.Declare(nil))
	assert.Equal(t, override, o.PGran())
}
