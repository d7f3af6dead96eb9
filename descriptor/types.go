package descriptor

import (
	"fmt"
	"strings"
)

// Op identifies the BLAS routine a Descriptor describes
type Op int

const (
	OpNone Op = iota
	Gemv
	Symv
	Gemm
	Trmm
	Trsm
	Syrk
	Syr2k
)

var opNames = []string{
	OpNone: "",
	Gemv:   "gemv",
	Symv:   "symv",
	Gemm:   "gemm",
	Trmm:   "trmm",
	Trsm:   "trsm",
	Syrk:   "syrk",
	Syr2k:  "syr2k",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// Level returns the BLAS level of the operation, 0 for OpNone
func (o Op) Level() int {
	switch o {
	case Gemv, Symv:
		return 2
	case Gemm, Trmm, Trsm, Syrk, Syr2k:
		return 3
	}
	return 0
}

// ParseOp maps a lower case routine name without type prefix to an Op
func ParseOp(name string) (Op, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range opNames {
		if n != "" && n == name {
			return Op(i), nil
		}
	}
	return OpNone, fmt.Errorf("unknown operation %q", name)
}

// DataType is the element type of every array in the operation
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
	Complex64
	Complex128
)

func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Complex64:
		return "complex64"
	case Complex128:
		return "complex128"
	}
	return fmt.Sprintf("DataType(%d)", int(dt))
}

// Valid reports whether dt is one of the four supported element types
func (dt DataType) Valid() bool {
	return dt >= Float32 && dt <= Complex128
}

// HostType is the OpenCL host type name used in the generated harness
func (dt DataType) HostType() string {
	switch dt {
	case Float32:
		return "cl_float"
	case Float64:
		return "cl_double"
	case Complex64:
		return "FloatComplex"
	case Complex128:
		return "DoubleComplex"
	}
	return ""
}

// KernelType is the OpenCL C element type used in generated kernels
func (dt DataType) KernelType() string {
	switch dt {
	case Float32:
		return "float"
	case Float64:
		return "double"
	case Complex64:
		return "float2"
	case Complex128:
		return "double2"
	}
	return ""
}

// Prefix is the BLAS routine prefix: s, d, c or z
func (dt DataType) Prefix() string {
	switch dt {
	case Float32:
		return "s"
	case Float64:
		return "d"
	case Complex64:
		return "c"
	case Complex128:
		return "z"
	}
	return ""
}

func (dt DataType) IsComplex() bool {
	return dt == Complex64 || dt == Complex128
}

func (dt DataType) IsDouble() bool {
	return dt == Float64 || dt == Complex128
}

// ParseFunction splits a full routine name such as "sgemm" or "ZSYR2K"
func ParseFunction(function string) (Op, DataType, error) {
	function = strings.ToLower(strings.TrimSpace(function))
	if len(function) < 2 {
		return OpNone, 0, fmt.Errorf("invalid function name %q", function)
	}
	var dt DataType
	switch function[0] {
	case 's':
		dt = Float32
	case 'd':
		dt = Float64
	case 'c':
		dt = Complex64
	case 'z':
		dt = Complex128
	default:
		return OpNone, 0, fmt.Errorf("invalid type prefix in function name %q", function)
	}
	op, err := ParseOp(function[1:])
	if err != nil {
		return OpNone, 0, fmt.Errorf("invalid function name %q: %w", function, err)
	}
	return op, dt, nil
}

// Order is the storage order of every matrix in the operation
type Order int

const (
	RowMajor Order = iota
	ColumnMajor
)

func (o Order) String() string {
	if o == ColumnMajor {
		return "ColumnMajor"
	}
	return "RowMajor"
}

// SubproblemDim describes one level of the tile hierarchy of a decomposition
type SubproblemDim struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	BWidth int `yaml:"bwidth"`
	ItemX  int `yaml:"itemX"`
	ItemY  int `yaml:"itemY"`
}

// Decomposition holds the work-group level tile followed by the work-item tile
type Decomposition [2]SubproblemDim
