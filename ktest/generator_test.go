package ktest

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/blas"

	"github.com/notargets/ktestgen/descriptor"
	"github.com/notargets/ktestgen/sequence"
	"github.com/notargets/ktestgen/step"
)

var testOptions = Options{
	Platform:     "AMD Accelerated Parallel Processing",
	Device:       "Tahiti",
	BuildOptions: "-cl-mad-enable",
	KernelFile:   "sgemm.cl",
}

func master(t *testing.T, d descriptor.Descriptor) *step.Step {
	t.Helper()
	s, err := step.New(d)
	require.NoError(t, err)
	s.FixLD()
	require.NoError(t, s.Declare(nil))
	return s
}

func gemm(m, n, k int) descriptor.Descriptor {
	d := descriptor.New(descriptor.Gemm, descriptor.Float32)
	d.M, d.N, d.K = m, n, k
	return d
}

func TestPatternNames(t *testing.T) {
	assert.Equal(t, "randomMatrix", fillRoutine(PatternRandom, "matrix"))
	assert.Equal(t, "sawtoothVector", fillRoutine(PatternSawtooth, "vector"))

	p, err := ParsePattern("Unit")
	require.NoError(t, err)
	assert.Equal(t, PatternUnit, p)
	p, err = ParsePattern("")
	require.NoError(t, err)
	assert.Equal(t, PatternRandom, p)
	_, err = ParsePattern("zigzag")
	assert.Error(t, err)
}

func TestSingleKernelHarness(t *testing.T) {
	m := master(t, gemm(256, 256, 256))
	text, err := New(m, nil, testOptions).Generate(true)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "#define _CRT_SECURE_NO_WARNINGS\n"))
	assert.Less(t, strings.Index(text, "#include <CL/cl.h>"), strings.Index(text, "#include \"naive_blas.cpp\""))
	assert.Contains(t, text, "using namespace NaiveBlas;\n")
	assert.Contains(t, text, `static const char *PLATFORM_NAME = "AMD Accelerated Parallel Processing";`)
	assert.Contains(t, text, `static const char *KERNEL_SOURCE = "sgemm.cl";`)

	assert.Contains(t, text, "const clblasOrder order = clblasRowMajor;\n")
	assert.Contains(t, text, "const clblasTranspose transA = clblasNoTrans;\n")
	assert.Contains(t, text, "const cl_uint M = 256;\n")
	assert.Contains(t, text, "cl_float alpha = 1;\n")
	assert.Contains(t, text, "cl_float* naiveC = NULL;\n")
	assert.Contains(t, text, "cl_mem bufC = NULL;\n")

	assert.Contains(t, text, "    A = (cl_float*)calloc(lda * M, sizeof(*A));\n")
	assert.Contains(t, text, "    randomMatrix(order, M, K, A, lda);\n")
	assert.NotContains(t, text, "randomMatrix(order, M, N, naiveC, ldc);")
	assert.Contains(t, text, "    memcpy(naiveC, C, (ldc * M) * sizeof(*naiveC));\n")
	assert.Contains(t, text, "    NaiveBlas::gemm(order, transA, transB, M, N, K, alpha, A, lda, B, ldb, beta, naiveC, ldc);\n")

	assert.Contains(t, text, "bufA = clCreateBuffer(context, CL_MEM_READ_ONLY, (lda * M) * sizeof(*A), NULL, &err);")
	assert.Contains(t, text, "bufC = clCreateBuffer(context, CL_MEM_READ_WRITE, (ldc * M) * sizeof(*C), NULL, &err);")
	assert.Equal(t, 3, strings.Count(text, "clEnqueueWriteBuffer("))

	assert.Contains(t, text, "        const size_t localWorkSize[2] = { 8, 8 };\n")
	assert.Contains(t, text, "        const size_t globalWorkSize[2] = { 256, 256 };\n")
	assert.Contains(t, text, "const char *kernelName = (argc > 1) ? argv[1] : KERNEL_SOURCE;")
	assert.Contains(t, text, "        err = clSetKernelArg(kernel, 0, sizeof(cl_uint), &M);\n")
	assert.Contains(t, text, "        err = clSetKernelArg(kernel, 5, sizeof(cl_mem), &bufA);\n")

	assert.Contains(t, text, "err = clEnqueueReadBuffer(queue, bufC, CL_TRUE, 0, (ldc * M) * sizeof(*C), C, 0, NULL, NULL);")
	assert.Equal(t, 1, strings.Count(text, "clEnqueueReadBuffer("))
	assert.Contains(t, text, "    if (compareMatrices(order, M, N, C, naiveC, ldc)) {\n")
	assert.Contains(t, text, "#define TOLERANCE_REL 0.001\n")
	assert.Contains(t, text, "    printExecTime(totalTime);\n")
	assert.Contains(t, text, "    free(naiveC);\n")
	assert.Contains(t, text, "\ncl_kernel\ncreateKernel(")
	assert.NotContains(t, text, "setUpTRSMDiagonal")
	assert.NotContains(t, text, "Vector(")
}

// TestHarnessDefaultPlatform checks that empty platform and device names
// select the first platform and device instead of failing the lookup
func TestHarnessDefaultPlatform(t *testing.T) {
	m := master(t, gemm(4, 4, 4))
	text, err := New(m, nil, Options{KernelFile: "sgemm.cl"}).Generate(true)
	require.NoError(t, err)

	assert.Contains(t, text, `static const char *PLATFORM_NAME = "";`)
	assert.Contains(t, text, `static const char *DEVICE_NAME = "";`)
	assert.Contains(t, text, "    platform = getPlatform(PLATFORM_NAME);\n")

	platform := text[strings.Index(text, "\ngetPlatform(const char *name)\n"):]
	platform = platform[:strings.Index(platform, "\n}\n")]
	assert.Contains(t, platform, "    if ((name == NULL) || (name[0] == '\\0')) {\n        platform = list[0];\n    }\n")
	assert.Contains(t, platform, "for (i = 0; (platform == NULL) && (i < nrPlatforms); i++) {")

	device := text[strings.Index(text, "\ngetDevice(cl_platform_id platform, const char *name)\n"):]
	device = device[:strings.Index(device, "\n}\n")]
	assert.Contains(t, device, "    if ((name == NULL) || (name[0] == '\\0')) {\n        device = list[0];\n    }\n")
	assert.Contains(t, device, "for (i = 0; (device == NULL) && (i < nrDevices); i++) {")
}

// TestHarnessWithoutAccuracy skipping accuracy drops the reference call, the readback and the compare
func TestHarnessWithoutAccuracy(t *testing.T) {
	m := master(t, gemm(32, 32, 32))
	text, err := New(m, nil, testOptions).Generate(false)
	require.NoError(t, err)
	assert.NotContains(t, text, "NaiveBlas::gemm")
	assert.NotContains(t, text, "compareMatrices")
	assert.NotContains(t, text, "clEnqueueReadBuffer")
	assert.Contains(t, text, "printExecTime(totalTime);")
}

func TestHarnessPattern(t *testing.T) {
	m := master(t, gemm(8, 8, 8))
	opts := testOptions
	opts.Pattern = PatternSawtooth
	text, err := New(m, nil, opts).Generate(false)
	require.NoError(t, err)
	assert.Contains(t, text, "    sawtoothMatrix(order, K, N, B, ldb);\n")
	assert.Contains(t, text, "makeElement((double)((i + j) % 8) + 1.0, 0.0)")
}

func TestHarnessVectorsAndComplex(t *testing.T) {
	d := descriptor.New(descriptor.Gemv, descriptor.Complex128)
	d.M, d.N = 10, 6
	d.IncX = -2
	m := master(t, d)
	text, err := New(m, nil, testOptions).Generate(true)
	require.NoError(t, err)

	assert.Contains(t, text, "    randomVector(N, X, incx);\n")
	assert.Contains(t, text, "return doubleComplex((cl_double)re, (cl_double)im);")
	assert.Contains(t, text, "compareVectors(size_t n, const DoubleComplex *got")
	assert.Contains(t, text, "    if (compareVectors(M, Y, naiveY, incy)) {\n")
	assert.Contains(t, text, "#define TOLERANCE_REL 1e-09\n")
	assert.Contains(t, text, "const cl_int incx = -2;\n")
}

func TestTriangularSolveHarness(t *testing.T) {
	d := descriptor.New(descriptor.Trsm, descriptor.Float32)
	d.M, d.N = 100, 10
	d.Uplo = blas.Lower
	m := master(t, d)

	sq, err := sequence.Build(m, sequence.Blocked{Block: 40})
	require.NoError(t, err)
	sq.NameKernels("trsm.cl")
	g := New(m, sq.Steps(), testOptions)
	require.True(t, g.MultiKernel())
	text, err := g.Generate(true)
	require.NoError(t, err)

	assert.Contains(t, text, "\nsetUpTRSMDiagonal(clblasOrder order, size_t n, cl_float *A, size_t lda)\n")
	assert.Contains(t, text, "    setUpTRSMDiagonal(order, M, A, lda);\n")
	assert.Less(t, strings.Index(text, "    randomMatrix(order, M, M, A, lda);"),
		strings.Index(text, "    setUpTRSMDiagonal(order, M, A, lda);"))
	assert.NotContains(t, text, "KERNEL_SOURCE")

	// only the master's buffers are created, once each
	assert.Equal(t, 2, strings.Count(text, "clCreateBuffer("))
	assert.Equal(t, 1, strings.Count(text, "bufB = clCreateBuffer("))
	assert.Equal(t, 1, strings.Count(text, "    A = (cl_float*)calloc("))

	assert.Equal(t, 3, strings.Count(text, "clReleaseKernel(kernel);"))
	assert.Equal(t, 3, strings.Count(text, "clEnqueueNDRangeKernel("))
	assert.Contains(t, text, `const char *kernelName = (argc > 1) ? argv[1] : "0_trsm_trsm.cl";`)
	assert.Contains(t, text, `const char *kernelName = (argc > 2) ? argv[2] : "1_gemm_trsm.cl";`)
	assert.Contains(t, text, `const char *kernelName = (argc > 3) ? argv[3] : "2_trsm_trsm.cl";`)

	// the update step shadows the master's scalars with its own
	assert.Contains(t, text, "        const cl_uint K = 40;\n")
	assert.Contains(t, text, "        cl_uint offA = 4000;\n")
	assert.Contains(t, text, "        cl_float alpha = -1;\n")
	assert.Contains(t, text, "        const clblasTranspose transB = clblasNoTrans;\n")
	assert.NotContains(t, text, "        cl_mem bufB")

	upd := strings.Index(text, "1_gemm_trsm.cl")
	require.Greater(t, upd, 0)
	rest := text[upd:]
	assert.Contains(t, rest, "err = clSetKernelArg(kernel, 8, sizeof(cl_mem), &bufB);")
	assert.Contains(t, rest, "err = clSetKernelArg(kernel, 11, sizeof(cl_mem), &bufB);")

	assert.Contains(t, text, "NaiveBlas::trsm(order, side, uplo, transA, diag, M, N, alpha, A, lda, naiveB, ldb);")
	assert.Contains(t, text, "if (compareMatrices(order, M, N, B, naiveB, ldb)) {")
	assert.Equal(t, 1, strings.Count(text, "printExecTime(totalTime);"))
}

func TestHarnessErrors(t *testing.T) {
	_, err := New(nil, nil, testOptions).Generate(true)
	assert.ErrorIs(t, err, ErrNoMaster)

	undeclared, err := step.New(gemm(4, 4, 4))
	require.NoError(t, err)
	_, err = New(undeclared, nil, testOptions).Generate(true)
	assert.ErrorIs(t, err, ErrNoMaster)

	m := master(t, gemm(4, 4, 4))
	_, err = New(m, []*step.Step{m, undeclared}, testOptions).Generate(true)
	assert.ErrorIs(t, err, ErrUndeclared)
}

// TestHarnessDeterministic generating twice from the same descriptor gives identical text
func TestHarnessDeterministic(t *testing.T) {
	for _, op := range []descriptor.Op{descriptor.Gemm, descriptor.Gemv, descriptor.Symv,
		descriptor.Trmm, descriptor.Trsm, descriptor.Syrk, descriptor.Syr2k} {
		d := descriptor.New(op, descriptor.Complex64)
		d.M, d.N, d.K = 9, 5, 3
		d.OffA = 2
		first, err := New(master(t, d), nil, testOptions).Generate(true)
		require.NoError(t, err)
		second, err := New(master(t, d), nil, testOptions).Generate(true)
		require.NoError(t, err)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("%s harness differs (-first +second):\n%s", op, diff)
		}
		assert.Contains(t, first, "NaiveBlas::"+op.String()+"(")
	}
}

// TestSequenceAllocatesOnlyMasterBuffers steps borrow the master's buffers, so the harness creates them once
func TestSequenceAllocatesOnlyMasterBuffers(t *testing.T) {
	m := master(t, gemm(256, 256, 256))
	half := m.Descriptor()
	half.M = 128
	sq, err := sequence.Build(m, sequence.Fixed{{Desc: half}, {Desc: half}})
	require.NoError(t, err)

	text, err := New(m, sq.Steps(), testOptions).Generate(true)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(text, "clCreateBuffer("))
	assert.Equal(t, 3, strings.Count(text, "clReleaseMemObject("))
	assert.Equal(t, 2, strings.Count(text, "        const cl_uint M = 128;\n"))
	assert.Equal(t, 2, strings.Count(text, "sizeof(cl_mem), &bufC);"))
}
