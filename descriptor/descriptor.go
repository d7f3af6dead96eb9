package descriptor

import (
	"gonum.org/v1/gonum/blas"
)

// Descriptor is the complete shape, stride, offset and scalar description of
// one operation instance. Leading dimensions of zero mean "unset" and are
// raised by the leading dimension fixup before anything is declared.
type Descriptor struct {
	Op    Op
	DType DataType
	Order Order

	Side   blas.Side
	Uplo   blas.Uplo
	TransA blas.Transpose
	TransB blas.Transpose
	Diag   blas.Diag

	M, N, K int

	LDA, LDB, LDC int
	IncX, IncY    int

	OffA, OffBX, OffCY int

	Alpha, Beta complex128

	Decomposition *Decomposition
}

// New returns a Descriptor holding the defaults of the command line front end
func New(op Op, dt DataType) Descriptor {
	return Descriptor{
		Op:     op,
		DType:  dt,
		Order:  RowMajor,
		Side:   blas.Left,
		Uplo:   blas.Upper,
		TransA: blas.NoTrans,
		TransB: blas.NoTrans,
		Diag:   blas.NonUnit,
		IncX:   1,
		IncY:   1,
		Alpha:  1,
		Beta:   1,
	}
}

func (d Descriptor) ColumnMajor() bool {
	return d.Order == ColumnMajor
}

// TransposedA reports a Trans or ConjTrans flag on A; the zero value reads as NoTrans
func (d Descriptor) TransposedA() bool {
	return d.TransA == blas.Trans || d.TransA == blas.ConjTrans
}

func (d Descriptor) ConjugatedA() bool {
	return d.TransA == blas.ConjTrans
}

func (d Descriptor) TransposedB() bool {
	return d.TransB == blas.Trans || d.TransB == blas.ConjTrans
}

func (d Descriptor) ConjugatedB() bool {
	return d.TransB == blas.ConjTrans
}

// RightSide is false for the zero value, matching the Left default
func (d Descriptor) RightSide() bool {
	return d.Side == blas.Right
}

// Lower is false for the zero value, matching the Upper default
func (d Descriptor) Lower() bool {
	return d.Uplo == blas.Lower
}

func (d Descriptor) UnitDiagonal() bool {
	return d.Diag == blas.Unit
}

// Subdims returns the decomposition hint with item sizes defaulted
func (d Descriptor) Subdims() (Decomposition, bool) {
	if d.Decomposition == nil {
		return Decomposition{}, false
	}
	dims := *d.Decomposition
	for i := range dims {
		if dims[i].ItemX == 0 {
			dims[i].ItemX = dims[i].X
		}
		if dims[i].ItemY == 0 {
			dims[i].ItemY = dims[i].Y
		}
	}
	return dims, true
}

// Flags lists the kernel variant flags the descriptor selects, in a fixed order
func (d Descriptor) Flags() []string {
	var flags []string
	if d.TransposedA() {
		flags = append(flags, "TRANS_A")
	}
	if d.ConjugatedA() {
		flags = append(flags, "CONJUGATE_A")
	}
	if d.TransposedB() {
		flags = append(flags, "TRANS_B")
	}
	if d.ConjugatedB() {
		flags = append(flags, "CONJUGATE_B")
	}
	if d.ColumnMajor() {
		flags = append(flags, "COLUMN_MAJOR")
	}
	if d.Op == Trmm || d.Op == Trsm || d.Op == Symv || d.Op == Syrk || d.Op == Syr2k {
		if d.Lower() {
			flags = append(flags, "LOWER_TRIANG")
		} else {
			flags = append(flags, "UPPER_TRIANG")
		}
	}
	if d.Op == Trmm || d.Op == Trsm {
		if d.RightSide() {
			flags = append(flags, "SIDE_RIGHT")
		}
		if d.UnitDiagonal() {
			flags = append(flags, "UNIT_DIAGONAL")
		}
	}
	if d.Beta == 0 && d.Op != Trmm && d.Op != Trsm {
		flags = append(flags, "BETA_ZERO")
	}
	return flags
}
