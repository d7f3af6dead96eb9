package ktest

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/notargets/ktestgen/descriptor"
)

var title = cases.Title(language.English)

// fillRoutine names the C routine filling a matrix or vector with p,
// "randomMatrix", "sawtoothVector"
func fillRoutine(p Pattern, kind string) string {
	return p.String() + title.String(kind)
}

// elementRoutines converts between the host element type and a pair of
// doubles; every other routine is written against these three.
func elementRoutines(dt descriptor.DataType) string {
	t := dt.HostType()
	scalar := "cl_float"
	if dt.IsDouble() {
		scalar = "cl_double"
	}
	if !dt.IsComplex() {
		return fmt.Sprintf(`static %[1]s
makeElement(double re, double im)
{
    (void)im;
    return (%[1]s)re;
}

static double
elementReal(%[1]s x)
{
    return (double)x;
}

static double
elementImag(%[1]s x)
{
    (void)x;
    return 0.0;
}

`, t)
	}
	ctor := "floatComplex"
	if dt.IsDouble() {
		ctor = "doubleComplex"
	}
	return fmt.Sprintf(`static %[1]s
makeElement(double re, double im)
{
    return %[2]s((%[3]s)re, (%[3]s)im);
}

static double
elementReal(%[1]s x)
{
    return (double)x.s[0];
}

static double
elementImag(%[1]s x)
{
    return (double)x.s[1];
}

`, t, ctor, scalar)
}

const indexRoutines = `static size_t
matrixIndex(clblasOrder order, size_t row, size_t col, size_t ld)
{
    return (order == clblasColumnMajor) ? col * ld + row : row * ld + col;
}

static size_t
vectorIndex(size_t i, int inc)
{
    return i * (size_t)abs(inc);
}

`

type patternValue struct {
	p     Pattern
	value string
}

var patternValues = []patternValue{
	{PatternRandom, "makeElement((double)rand() / RAND_MAX, (double)rand() / RAND_MAX)"},
	{PatternUnit, "makeElement(1.0, 0.0)"},
	{PatternSawtooth, "makeElement((double)((%s) %% 8) + 1.0, 0.0)"},
}

// patternRoutines emits every fill routine for the element type; vectors
// only for level 2 operations
func patternRoutines(dt descriptor.DataType, withVectors bool) string {
	t := dt.HostType()
	var sb strings.Builder
	for _, pv := range patternValues {
		value := pv.value
		if pv.p == PatternSawtooth {
			value = fmt.Sprintf(pv.value, "i + j")
		}
		sb.WriteString(fmt.Sprintf(`static void
%s(clblasOrder order, size_t rows, size_t cols, %s *A, size_t ld)
{
    size_t i, j;

    for (i = 0; i < rows; i++) {
        for (j = 0; j < cols; j++) {
            A[matrixIndex(order, i, j, ld)] = %s;
        }
    }
}

`, fillRoutine(pv.p, "matrix"), t, value))
	}
	if !withVectors {
		return sb.String()
	}
	for _, pv := range patternValues {
		value := pv.value
		if pv.p == PatternSawtooth {
			value = fmt.Sprintf(pv.value, "i")
		}
		sb.WriteString(fmt.Sprintf(`static void
%s(size_t n, %s *X, int inc)
{
    size_t i;

    for (i = 0; i < n; i++) {
        X[vectorIndex(i, inc)] = %s;
    }
}

`, fillRoutine(pv.p, "vector"), t, value))
	}
	return sb.String()
}

// compareRoutines emits the accuracy check used against the reference
// result. The bound is relative to the reference magnitude, floored at one.
func compareRoutines(dt descriptor.DataType, withVectors bool) string {
	t := dt.HostType()
	tol := ToleranceFor(dt)
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`#define TOLERANCE_ABS %g
#define TOLERANCE_REL %g

static bool
closeEnough(%[3]s got, %[3]s want)
{
    double diff = hypot(elementReal(got) - elementReal(want),
                        elementImag(got) - elementImag(want));
    double mag = hypot(elementReal(want), elementImag(want));

    if (mag < 1.0) {
        mag = 1.0;
    }
    return diff <= TOLERANCE_REL * mag + TOLERANCE_ABS;
}

static bool
compareMatrices(clblasOrder order, size_t rows, size_t cols,
                const %[3]s *got, const %[3]s *want, size_t ld)
{
    size_t i, j, idx;

    for (i = 0; i < rows; i++) {
        for (j = 0; j < cols; j++) {
            idx = matrixIndex(order, i, j, ld);
            if (!closeEnough(got[idx], want[idx])) {
                printf("Mismatch at (%%lu, %%lu)\n", (unsigned long)i, (unsigned long)j);
                return false;
            }
        }
    }
    return true;
}

`, tol.Abs, tol.Rel, t))
	if withVectors {
		sb.WriteString(fmt.Sprintf(`static bool
compareVectors(size_t n, const %[1]s *got, const %[1]s *want, int inc)
{
    size_t i, idx;

    for (i = 0; i < n; i++) {
        idx = vectorIndex(i, inc);
        if (!closeEnough(got[idx], want[idx])) {
            printf("Mismatch at %%lu\n", (unsigned long)i);
            return false;
        }
    }
    return true;
}

`, t))
	}
	return sb.String()
}

// trsmSetup makes the triangle well conditioned: a dominant diagonal and
// off-diagonal elements scaled down by the order
func trsmSetup(dt descriptor.DataType) string {
	return fmt.Sprintf(`static void
setUpTRSMDiagonal(clblasOrder order, size_t n, %s *A, size_t lda)
{
    size_t i, j, idx;

    for (i = 0; i < n; i++) {
        for (j = 0; j < n; j++) {
            idx = matrixIndex(order, i, j, lda);
            if (i == j) {
                A[idx] = makeElement((double)n + 1.0, 0.0);
            }
            else {
                A[idx] = makeElement(elementReal(A[idx]) / n, elementImag(A[idx]) / n);
            }
        }
    }
}

`, dt.HostType())
}

const forwardDeclarations = `char* loadFile(const char* path);
cl_platform_id getPlatform(const char *name);
cl_device_id getDevice(cl_platform_id platform, const char *name);
cl_kernel createKernel(const char *source, cl_context context,
    const char *options, cl_int *error);
void printExecTime(cl_ulong ns);

`

const hostHelpers = `
char*
loadFile(const char* path)
{
    FILE *f;
    long size;
    char *text;

    f = fopen(path, "rb");
    if (f == NULL) {
        return NULL;
    }
    fseek(f, 0, SEEK_END);
    size = ftell(f);
    fseek(f, 0, SEEK_SET);
    text = (char*)calloc(size + 1, 1);
    if ((text != NULL) && (fread(text, 1, size, f) != (size_t)size)) {
        free(text);
        text = NULL;
    }
    fclose(f);
    return text;
}

cl_platform_id
getPlatform(const char *name)
{
    cl_int err;
    cl_uint nrPlatforms, i;
    cl_platform_id *list, platform;
    char platformName[256];

    err = clGetPlatformIDs(0, NULL, &nrPlatforms);
    if ((err != CL_SUCCESS) || (nrPlatforms == 0)) {
        return NULL;
    }
    list = (cl_platform_id*)calloc(nrPlatforms, sizeof(*list));
    if (list == NULL) {
        return NULL;
    }
    err = clGetPlatformIDs(nrPlatforms, list, NULL);
    if (err != CL_SUCCESS) {
        free(list);
        return NULL;
    }

    platform = NULL;
    if ((name == NULL) || (name[0] == '\0')) {
        platform = list[0];
    }
    for (i = 0; (platform == NULL) && (i < nrPlatforms); i++) {
        err = clGetPlatformInfo(list[i], CL_PLATFORM_NAME,
            sizeof(platformName), platformName, NULL);
        if ((err == CL_SUCCESS) && (strcmp(platformName, name) == 0)) {
            platform = list[i];
            break;
        }
    }
    free(list);
    return platform;
}

cl_device_id
getDevice(cl_platform_id platform, const char *name)
{
    cl_int err;
    cl_uint nrDevices, i;
    cl_device_id *list, device;
    char deviceName[256];

    err = clGetDeviceIDs(platform, CL_DEVICE_TYPE_ALL, 0, NULL, &nrDevices);
    if ((err != CL_SUCCESS) || (nrDevices == 0)) {
        return NULL;
    }
    list = (cl_device_id*)calloc(nrDevices, sizeof(*list));
    if (list == NULL) {
        return NULL;
    }
    err = clGetDeviceIDs(platform, CL_DEVICE_TYPE_ALL, nrDevices, list, NULL);
    if (err != CL_SUCCESS) {
        free(list);
        return NULL;
    }

    device = NULL;
    if ((name == NULL) || (name[0] == '\0')) {
        device = list[0];
    }
    for (i = 0; (device == NULL) && (i < nrDevices); i++) {
        err = clGetDeviceInfo(list[i], CL_DEVICE_NAME,
            sizeof(deviceName), deviceName, NULL);
        if ((err == CL_SUCCESS) && (strcmp(deviceName, name) == 0)) {
            device = list[i];
            break;
        }
    }
    free(list);
    return device;
}

cl_kernel
createKernel(
    const char* source,
    cl_context context,
    const char* options,
    cl_int* error)
{
    cl_int err;
    cl_device_id device;
    cl_program program;
    cl_kernel kernel;
    size_t logSize;
    char *log;

    err = clGetContextInfo(context, CL_CONTEXT_DEVICES,
        sizeof(device), &device, NULL);
    if (err != CL_SUCCESS) {
        if (error != NULL) {
            *error = err;
        }
        return NULL;
    }

    program = clCreateProgramWithSource(context, 1, &source, NULL, &err);
    if (err != CL_SUCCESS) {
        if (error != NULL) {
            *error = err;
        }
        return NULL;
    }

    err = clBuildProgram(program, 1, &device, options, NULL, NULL);
    if (err != CL_SUCCESS) {
        logSize = 0;
        clGetProgramBuildInfo(program, device, CL_PROGRAM_BUILD_LOG,
            0, NULL, &logSize);
        log = (char*)calloc(logSize + 1, 1);
        if (log != NULL) {
            clGetProgramBuildInfo(program, device, CL_PROGRAM_BUILD_LOG,
                logSize, log, NULL);
            printf("Build log:\n%s\n", log);
            free(log);
        }
        clReleaseProgram(program);
        if (error != NULL) {
            *error = err;
        }
        return NULL;
    }

    kernel = NULL;
    err = clCreateKernelsInProgram(program, 1, &kernel, NULL);
    clReleaseProgram(program);
    if (error != NULL) {
        *error = err;
    }
    return kernel;
}

void
printExecTime(cl_ulong ns)
{
    if (ns < 1000) {
        printf("Kernel execution time: %lu ns\n", (unsigned long)ns);
    }
    else if (ns < 1000000) {
        printf("Kernel execution time: %.3f us\n", (double)ns / 1000.0);
    }
    else {
        printf("Kernel execution time: %.3f ms\n", (double)ns / 1000000.0);
    }
}
`
