package builder

import "strings"

// Array is a host array Named Value: a Matrix or a Vector
type Array interface {
	Named
	// Pointer is the expression used wherever the array is passed, "A" or
	// "A + offA"; empty while the array's extents are incomplete
	Pointer() string
	Offset() *Variable
	CopyOf() Array
	// ElementType strips the pointer from the host type, "cl_float*" -> "cl_float"
	ElementType() string
	setCopy(src Array)
}

type array struct {
	Variable
	pointer  string
	assigned bool
	copyOf   Array
}

func (a *array) Pointer() string { return a.pointer }

func (a *array) CopyOf() Array { return a.copyOf }

func (a *array) ElementType() string {
	return strings.TrimSpace(strings.TrimSuffix(a.typ, "*"))
}

func (a *array) setCopy(src Array) { a.copyOf = src }

func (a *array) assignPointer(ready bool, off *Variable) {
	if a.assigned {
		return
	}
	a.assigned = true
	switch {
	case !ready:
		a.pointer = ""
	case off == nil:
		a.pointer = a.name
	default:
		a.pointer = a.name + " + " + off.name
	}
}

// Matrix carries references to the Named Values holding its extents,
// leading dimension and offset
type Matrix struct {
	array
	rows, cols, ld, off *Variable
}

// NewMatrix creates a matrix and derives its pointer expression
func NewMatrix(name, typ string, rows, cols, ld, off *Variable) *Matrix {
	m := &Matrix{array: array{Variable: Variable{name: name, typ: typ}}}
	m.SetSize(rows, cols, ld, off)
	return m
}

// SetSize records extents once; later calls leave the matrix unchanged
func (m *Matrix) SetSize(rows, cols, ld, off *Variable) {
	if m.assigned {
		return
	}
	m.rows, m.cols, m.ld, m.off = rows, cols, ld, off
	m.assignPointer(rows != nil && cols != nil, off)
}

func (m *Matrix) Rows() *Variable { return m.rows }

func (m *Matrix) Cols() *Variable { return m.cols }

func (m *Matrix) LD() *Variable { return m.ld }

func (m *Matrix) Offset() *Variable { return m.off }

// Vector carries references to the Named Values holding its length,
// increment and offset
type Vector struct {
	array
	n, inc, off *Variable
}

// NewVector creates a vector and derives its pointer expression
func NewVector(name, typ string, n, inc, off *Variable) *Vector {
	v := &Vector{array: array{Variable: Variable{name: name, typ: typ}}}
	v.SetSize(n, inc, off)
	return v
}

// SetSize records extents once; later calls leave the vector unchanged
func (v *Vector) SetSize(n, inc, off *Variable) {
	if v.assigned {
		return
	}
	v.n, v.inc, v.off = n, inc, off
	v.assignPointer(n != nil, off)
}

func (v *Vector) Len() *Variable { return v.n }

func (v *Vector) Inc() *Variable { return v.inc }

func (v *Vector) Offset() *Variable { return v.off }

// MarkCopyOf records that dst is initialized at run time from src's contents
func MarkCopyOf(dst, src Array) {
	dst.setCopy(src)
}
