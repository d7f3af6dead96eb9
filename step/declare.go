package step

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

// dim is one extent: the constant naming it and its value
type dim struct {
	sym string
	n   int
}

// shape is the stored shape of one operand
type shape struct {
	array      string
	rows, cols dim
	length     dim
	stride     string // "lda" for matrices, "incx" for vectors
	vector     bool
}

func matrixShape(array, stride string, rows, cols dim, swap bool) shape {
	if swap {
		rows, cols = cols, rows
	}
	return shape{array: array, stride: stride, rows: rows, cols: cols}
}

func vectorShape(array, stride string, length dim) shape {
	return shape{array: array, stride: stride, length: length, vector: true}
}

func shapeOf(shapes []shape, array string) shape {
	for _, sh := range shapes {
		if sh.array == array {
			return sh
		}
	}
	return shape{array: array}
}

func strideField(d *descriptor.Descriptor, stride string) *int {
	switch stride {
	case "lda":
		return &d.LDA
	case "ldb":
		return &d.LDB
	case "ldc":
		return &d.LDC
	case "incx":
		return &d.IncX
	case "incy":
		return &d.IncY
	}
	return nil
}

func (s *Step) addConst(name, typ string, value int) *builder.Variable {
	return s.vars.AddVar(builder.NewConst(name, typ, strconv.Itoa(value)))
}

func (s *Step) addUint(name string, value int) *builder.Variable {
	return s.vars.AddVar(builder.NewVariable(name, "cl_uint", strconv.Itoa(value)))
}

// addStride declares the leading dimension or increment named by the shape
func (s *Step) addStride(sh shape) *builder.Variable {
	d := s.desc
	p := strideField(&d, sh.stride)
	if p == nil {
		return nil
	}
	if sh.vector {
		return s.addConst(sh.stride, "cl_int", *p)
	}
	return s.addConst(sh.stride, "cl_uint", *p)
}

func (s *Step) addMultiplier(name string, value complex128) *builder.Variable {
	return s.vars.AddVar(builder.NewVariable(name, s.desc.DType.HostType(), multiplierLiteral(s.desc.DType, value)))
}

func (s *Step) hostType() string {
	return s.desc.DType.HostType() + "*"
}

// addArray creates the matrix or vector described by sh. Extent constants
// missing from the set leave the pointer expression empty. A zero offset
// stays declared for the kernel but is not part of the array.
func (s *Step) addArray(sh shape, off *builder.Variable) builder.Array {
	if off != nil && off.Default() == "0" {
		off = nil
	}
	if sh.vector {
		v := builder.NewVector(sh.array, s.hostType(), s.Var(sh.length.sym), s.Var(sh.stride), off)
		return s.vars.AddArray(v)
	}
	m := builder.NewMatrix(sh.array, s.hostType(), s.Var(sh.rows.sym), s.Var(sh.cols.sym), s.Var(sh.stride), off)
	return s.vars.AddArray(m)
}

// addNaiveCopy snapshots an in/out array for the reference computation
func (s *Step) addNaiveCopy(src builder.Array) builder.Array {
	var dst builder.Array
	switch a := src.(type) {
	case *builder.Matrix:
		dst = builder.NewMatrix("naive"+a.Name(), a.Type(), a.Rows(), a.Cols(), a.LD(), a.Offset())
	case *builder.Vector:
		dst = builder.NewVector("naive"+a.Name(), a.Type(), a.Len(), a.Inc(), a.Offset())
	default:
		return nil
	}
	builder.MarkCopyOf(dst, src)
	return s.vars.AddArray(dst)
}

// bindBuffer creates the buffer for role, or borrows the master's buffer
// for the role this Step maps it to
func (s *Step) bindBuffer(role builder.Role, name string, access builder.Access, host builder.Array) *builder.Buffer {
	if s.master == nil {
		return s.vars.AddBuffer(builder.BindBuffer(role, name, access, host))
	}
	b := s.master.Buffer(s.roles[role])
	if b == nil {
		if s.err == nil {
			s.err = fmt.Errorf("%w %s", ErrMissingRole, s.roles[role])
		}
		return builder.BindBuffer(role, name, access, host)
	}
	return s.vars.Borrow(role, b)
}

func formatFloat(v float64, bits int) string {
	return strconv.FormatFloat(v, 'g', -1, bits)
}

func multiplierLiteral(dt descriptor.DataType, v complex128) string {
	switch dt {
	case descriptor.Float32:
		return formatFloat(real(v), 32)
	case descriptor.Float64:
		return formatFloat(real(v), 64)
	case descriptor.Complex64:
		return fmt.Sprintf("floatComplex(%s, %s)", formatFloat(real(v), 32), formatFloat(imag(v), 32))
	case descriptor.Complex128:
		return fmt.Sprintf("doubleComplex(%s, %s)", formatFloat(real(v), 64), formatFloat(imag(v), 64))
	}
	return ""
}

// ArraySize is the host allocation expression, in elements, for a
func (s *Step) ArraySize(a builder.Array) string {
	switch arr := a.(type) {
	case *builder.Matrix:
		return s.MatrixSize(arr)
	case *builder.Vector:
		return s.VectorSize(arr)
	}
	return ""
}

// MatrixSize is "[off + ][ld * ]cols" for column-major storage and
// "[off + ][ld * ]rows" for row-major storage
func (s *Step) MatrixSize(m *builder.Matrix) string {
	if m.Rows() == nil || m.Cols() == nil {
		return ""
	}
	var sb strings.Builder
	if off := m.Offset(); off != nil {
		sb.WriteString(off.Name() + " + ")
	}
	if ld := m.LD(); ld != nil {
		sb.WriteString(ld.Name() + " * ")
	}
	if s.desc.ColumnMajor() {
		sb.WriteString(m.Cols().Name())
	} else {
		sb.WriteString(m.Rows().Name())
	}
	return sb.String()
}

// VectorSize is "[off + ]1 + (n - 1) * abs(inc)", or "[off + ]n" without an increment
func (s *Step) VectorSize(v *builder.Vector) string {
	if v.Len() == nil {
		return ""
	}
	var sb strings.Builder
	if off := v.Offset(); off != nil {
		sb.WriteString(off.Name() + " + ")
	}
	if inc := v.Inc(); inc != nil {
		sb.WriteString(fmt.Sprintf("1 + (%s - 1) * abs(%s)", v.Len().Name(), inc.Name()))
	} else {
		sb.WriteString(v.Len().Name())
	}
	return sb.String()
}
