package ktest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
	"github.com/notargets/ktestgen/step"
)

var (
	ErrNoMaster   = errors.New("harness needs a declared master step")
	ErrUndeclared = errors.New("harness step not declared")
)

const indent = "    "

// Generator writes the C++ host program that runs the kernels of one
// solution and optionally checks them against the reference BLAS. The
// master Step owns the host arrays and device buffers; with more than one
// step every step runs in its own block and reads its kernel file from
// the command line.
type Generator struct {
	master *step.Step
	steps  []*step.Step
	opts   Options
}

// New builds a generator. steps may be nil, in which case the master
// itself is the only kernel.
func New(master *step.Step, steps []*step.Step, opts Options) *Generator {
	return &Generator{
		master: master,
		steps:  steps,
		opts:   opts,
	}
}

// MultiKernel reports whether the program launches a sequence of kernels
func (g *Generator) MultiKernel() bool { return len(g.steps) > 1 }

// launched is the list of steps in launch order
func (g *Generator) launched() []*step.Step {
	if g.MultiKernel() {
		return g.steps
	}
	return []*step.Step{g.master}
}

// Generate renders the whole host program. withAccuracy adds the
// reference computation, the readback and the comparison.
func (g *Generator) Generate(withAccuracy bool) (string, error) {
	if g.master == nil || !g.master.Declared() {
		return "", ErrNoMaster
	}
	for i, s := range g.steps {
		if s == nil || !s.Declared() {
			return "", fmt.Errorf("%w: step %d", ErrUndeclared, i)
		}
	}

	dt := g.master.Descriptor().DType
	vectors := g.master.Level() == 2 ||
		lo.ContainsBy(g.launched(), func(s *step.Step) bool { return s.Level() == 2 })
	trsm := g.master.Descriptor().Op == descriptor.Trsm ||
		lo.ContainsBy(g.launched(), func(s *step.Step) bool { return s.Descriptor().Op == descriptor.Trsm })

	var sb strings.Builder
	sb.WriteString(preamble())
	sb.WriteString(constants(g.opts, g.MultiKernel()))
	sb.WriteString(elementRoutines(dt))
	sb.WriteString(indexRoutines)
	sb.WriteString(patternRoutines(dt, vectors))
	if withAccuracy {
		sb.WriteString(compareRoutines(dt, vectors))
	}
	if trsm {
		sb.WriteString(trsmSetup(dt))
	}
	sb.WriteString(globals(g.master))
	sb.WriteString(forwardDeclarations)
	sb.WriteString(g.mainFunction(withAccuracy))
	sb.WriteString(hostHelpers)
	return sb.String(), nil
}

func preamble() string {
	return `#define _CRT_SECURE_NO_WARNINGS

#include <assert.h>
#include <math.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <time.h>

#include <CL/cl.h>

#include "naive_blas.cpp"

using namespace NaiveBlas;

`
}

func constants(opts Options, multi bool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("static const char *PLATFORM_NAME = %s;\n", strconv.Quote(opts.Platform)))
	sb.WriteString(fmt.Sprintf("static const char *DEVICE_NAME = %s;\n", strconv.Quote(opts.Device)))
	sb.WriteString(fmt.Sprintf("static const char *BUILD_OPTIONS = %s;\n", strconv.Quote(opts.BuildOptions)))
	if !multi {
		sb.WriteString(fmt.Sprintf("static const char *KERNEL_SOURCE = %s;\n", strconv.Quote(opts.KernelFile)))
	}
	sb.WriteString("\n")
	return sb.String()
}

func declareScalar(v *builder.Variable) string {
	decl := v.Type() + " " + v.Name()
	if v.IsConst() {
		decl = "const " + decl
	}
	if v.Default() != "" {
		decl += " = " + v.Default()
	}
	return decl + ";\n"
}

func declareNamed(v builder.Named) string {
	switch x := v.(type) {
	case *builder.Variable:
		return declareScalar(x)
	case *builder.Buffer:
		return fmt.Sprintf("%s %s = NULL;\n", x.Type(), x.Name())
	case builder.Array:
		return fmt.Sprintf("%s %s = NULL;\n", x.Type(), x.Name())
	}
	return ""
}

// globals declares the master's option constants and Named Values at file
// scope in insertion order
func globals(master *step.Step) string {
	var sb strings.Builder
	for _, opt := range master.BlasOptions() {
		sb.WriteString(declareScalar(opt))
	}
	for _, v := range master.Vars().All() {
		sb.WriteString(declareNamed(v))
	}
	sb.WriteString("\n")
	return sb.String()
}

// stepLocals redeclares the options and scalars of a sequence step inside
// its block, shadowing the master's. Arrays and buffers stay the master's.
func stepLocals(s *step.Step, in string) string {
	var sb strings.Builder
	for _, opt := range s.BlasOptions() {
		sb.WriteString(in + declareScalar(opt))
	}
	for _, v := range s.Vars().Scalars() {
		sb.WriteString(in + declareScalar(v))
	}
	return sb.String()
}

func sizeOf(count, name string) string {
	return fmt.Sprintf("(%s) * sizeof(*%s)", count, name)
}

// fillCall fills a with the selected pattern
func fillCall(p Pattern, a builder.Array) string {
	switch arr := a.(type) {
	case *builder.Matrix:
		return fmt.Sprintf("%s(order, %s, %s, %s, %s);", fillRoutine(p, "matrix"),
			nameOf(arr.Rows()), nameOf(arr.Cols()), arr.Pointer(), nameOf(arr.LD()))
	case *builder.Vector:
		inc := "1"
		if arr.Inc() != nil {
			inc = arr.Inc().Name()
		}
		return fmt.Sprintf("%s(%s, %s, %s);", fillRoutine(p, "vector"),
			nameOf(arr.Len()), arr.Pointer(), inc)
	}
	return ""
}

func nameOf(v *builder.Variable) string {
	if v == nil {
		return ""
	}
	return v.Name()
}

func dims(n int, v [2]int) string {
	if n <= 1 {
		return strconv.Itoa(v[0])
	}
	return fmt.Sprintf("%d, %d", v[0], v[1])
}

func (g *Generator) mainFunction(withAccuracy bool) string {
	var sb strings.Builder
	w := func(format string, args ...interface{}) {
		sb.WriteString(indent + fmt.Sprintf(format, args...) + "\n")
	}

	sb.WriteString("int\nmain(int argc, char *argv[])\n{\n")
	w("cl_int err;")
	w("cl_platform_id platform;")
	w("cl_device_id device;")
	w("cl_context_properties props[3] = { CL_CONTEXT_PLATFORM, 0, 0 };")
	w("cl_context context;")
	w("cl_command_queue queue;")
	w("cl_kernel kernel;")
	w("cl_event event;")
	w("char *source;")
	w("cl_ulong start, end;")
	w("cl_ulong totalTime = 0;")
	w("int status = EXIT_SUCCESS;")
	sb.WriteString("\n")

	w("srand((unsigned int)time(NULL));")
	sb.WriteString("\n")
	w("platform = getPlatform(PLATFORM_NAME);")
	w("assert(platform != NULL);")
	w("device = getDevice(platform, DEVICE_NAME);")
	w("assert(device != NULL);")
	w("props[1] = (cl_context_properties)platform;")
	w("context = clCreateContext(props, 1, &device, NULL, NULL, &err);")
	w("assert(context != NULL);")
	w("queue = clCreateCommandQueue(context, device, CL_QUEUE_PROFILING_ENABLE, &err);")
	w("assert(queue != NULL);")
	sb.WriteString("\n")

	sb.WriteString(g.hostData(withAccuracy))
	sb.WriteString(g.deviceBuffers())

	for i, s := range g.launched() {
		sb.WriteString(g.launchBlock(i, s))
	}

	if withAccuracy {
		sb.WriteString(g.verify())
	}
	w("printExecTime(totalTime);")
	sb.WriteString("\n")
	sb.WriteString(g.teardown())
	w("return status;")
	sb.WriteString("}\n")
	return sb.String()
}

// hostData allocates and fills every master array, then runs the
// reference computation on the snapshots
func (g *Generator) hostData(withAccuracy bool) string {
	m := g.master
	arrays := m.Vars().Arrays()
	var sb strings.Builder
	for _, a := range arrays {
		sb.WriteString(fmt.Sprintf("%s%s = (%s)calloc(%s, sizeof(*%s));\n",
			indent, a.Name(), a.Type(), m.ArraySize(a), a.Name()))
		sb.WriteString(fmt.Sprintf("%sassert(%s != NULL);\n", indent, a.Name()))
	}
	sb.WriteString("\n")

	for _, a := range lo.Filter(arrays, func(a builder.Array, _ int) bool { return a.CopyOf() == nil }) {
		sb.WriteString(indent + fillCall(g.opts.Pattern, a) + "\n")
	}
	if call := m.PostRandomCall(); call != "" {
		sb.WriteString(indent + call + ";\n")
	}
	for _, a := range lo.Filter(arrays, func(a builder.Array, _ int) bool { return a.CopyOf() != nil }) {
		sb.WriteString(fmt.Sprintf("%smemcpy(%s, %s, %s);\n",
			indent, a.Name(), a.CopyOf().Name(), sizeOf(m.ArraySize(a), a.Name())))
	}
	if withAccuracy && m.NaiveCall() != "" {
		sb.WriteString(indent + "NaiveBlas::" + m.NaiveCall() + ";\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// deviceBuffers creates only the buffers the master owns; sequence steps
// bind them by identity
func (g *Generator) deviceBuffers() string {
	m := g.master
	var sb strings.Builder
	for _, b := range m.Vars().OwnedBuffers() {
		host := b.Host()
		if host == nil {
			continue
		}
		size := sizeOf(m.ArraySize(host), host.Name())
		sb.WriteString(fmt.Sprintf("%s%s = clCreateBuffer(context, %s, %s, NULL, &err);\n",
			indent, b.Name(), b.Access().Flag(), size))
		sb.WriteString(fmt.Sprintf("%sassert(%s != NULL);\n", indent, b.Name()))
		if b.Access().NeedsCopyTo() {
			sb.WriteString(fmt.Sprintf("%serr = clEnqueueWriteBuffer(queue, %s, CL_TRUE, 0, %s, %s, 0, NULL, NULL);\n",
				indent, b.Name(), size, host.Name()))
			sb.WriteString(indent + "assert(err == CL_SUCCESS);\n")
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// launchBlock runs one step: partition, kernel build, argument binding,
// launch and profiling
func (g *Generator) launchBlock(i int, s *step.Step) string {
	in := indent + indent
	pg := s.PGran()
	var sb strings.Builder
	w := func(format string, args ...interface{}) {
		sb.WriteString(in + fmt.Sprintf(format, args...) + "\n")
	}

	sb.WriteString(indent + "{\n")
	w("const cl_uint workDim = %d;", pg.Dim)
	w("const size_t localWorkSize[%d] = { %s };", pg.Dim, dims(pg.Dim, pg.Local))
	w("const size_t globalWorkSize[%d] = { %s };", pg.Dim, dims(pg.Dim, pg.Global))
	if g.MultiKernel() {
		name := s.KernelName()
		if name == "" {
			name = fmt.Sprintf("%d_%s.cl", i, s.Name())
		}
		w("const char *kernelName = (argc > %d) ? argv[%d] : %s;", i+1, i+1, strconv.Quote(name))
		sb.WriteString(stepLocals(s, in))
	} else {
		w("const char *kernelName = (argc > 1) ? argv[1] : KERNEL_SOURCE;")
	}
	sb.WriteString("\n")

	w("source = loadFile(kernelName);")
	w("assert(source != NULL);")
	w("kernel = createKernel(source, context, BUILD_OPTIONS, &err);")
	w("assert(kernel != NULL);")
	w("free(source);")
	sb.WriteString("\n")

	sb.WriteString(s.KernelArgs().SetArgCalls("kernel", in))
	sb.WriteString("\n")

	w("err = clEnqueueNDRangeKernel(queue, kernel, workDim, NULL, globalWorkSize, localWorkSize, 0, NULL, &event);")
	w("assert(err == CL_SUCCESS);")
	w("err = clFinish(queue);")
	w("assert(err == CL_SUCCESS);")
	w("start = end = 0;")
	w("clGetEventProfilingInfo(event, CL_PROFILING_COMMAND_START, sizeof(start), &start, NULL);")
	w("clGetEventProfilingInfo(event, CL_PROFILING_COMMAND_END, sizeof(end), &end, NULL);")
	w("totalTime += end - start;")
	w("clReleaseEvent(event);")
	w("clReleaseKernel(kernel);")
	sb.WriteString(indent + "}\n\n")
	return sb.String()
}

// verify reads back every buffer the kernels write and compares it with
// the reference result
func (g *Generator) verify() string {
	m := g.master
	var sb strings.Builder
	written := lo.Filter(m.Vars().OwnedBuffers(), func(b *builder.Buffer, _ int) bool {
		return b.Access().NeedsCopyBack() && b.Host() != nil
	})
	for _, b := range written {
		host := b.Host()
		sb.WriteString(fmt.Sprintf("%serr = clEnqueueReadBuffer(queue, %s, CL_TRUE, 0, %s, %s, 0, NULL, NULL);\n",
			indent, b.Name(), sizeOf(m.ArraySize(host), host.Name()), host.Name()))
		sb.WriteString(indent + "assert(err == CL_SUCCESS);\n")
	}
	if call := m.CompareCall(); call != "" {
		sb.WriteString(fmt.Sprintf("%sif (%s) {\n", indent, call))
		sb.WriteString(indent + indent + "printf(\"Correctness test passed\\n\");\n")
		sb.WriteString(indent + "}\n" + indent + "else {\n")
		sb.WriteString(indent + indent + "printf(\"Correctness test failed\\n\");\n")
		sb.WriteString(indent + indent + "status = EXIT_FAILURE;\n")
		sb.WriteString(indent + "}\n")
	}
	return sb.String()
}

func (g *Generator) teardown() string {
	m := g.master
	var sb strings.Builder
	for _, b := range m.Vars().OwnedBuffers() {
		sb.WriteString(fmt.Sprintf("%sclReleaseMemObject(%s);\n", indent, b.Name()))
	}
	sb.WriteString(indent + "clReleaseCommandQueue(queue);\n")
	sb.WriteString(indent + "clReleaseContext(context);\n")
	for _, a := range m.Vars().Arrays() {
		sb.WriteString(fmt.Sprintf("%sfree(%s);\n", indent, a.Name()))
	}
	sb.WriteString("\n")
	return sb.String()
}
