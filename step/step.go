package step

import (
	"errors"
	"fmt"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

var (
	ErrNoOperation       = errors.New("descriptor has no operation")
	ErrUnsupportedOp     = errors.New("unsupported operation")
	ErrUnknownDataType   = errors.New("unknown data type")
	ErrAlreadyDeclared   = errors.New("step already declared")
	ErrNotDeclared       = errors.New("step not declared")
	ErrMasterNotDeclared = errors.New("master step not declared")
	ErrMissingRole       = errors.New("master step has no buffer for role")
)

// operation is implemented by the closed set of BLAS routine variants
type operation interface {
	// shapes lists the stored operand shapes; fixLD and declare both read it
	shapes(d descriptor.Descriptor) []shape
	// options names the clblas option constants the reference call uses
	options() []string
	declare(s *Step)
	// workShape gives the kernel's work dimensionality and extents
	workShape(d descriptor.Descriptor) (dim, rows, cols int)
	defines(s *Step) string
	body(s *Step) string
}

func lookup(d descriptor.Descriptor) (operation, error) {
	switch d.Op {
	case descriptor.OpNone:
		return nil, ErrNoOperation
	case descriptor.Gemm:
		return gemm{}, nil
	case descriptor.Gemv:
		return gemv{}, nil
	case descriptor.Symv:
		return symv{}, nil
	case descriptor.Trmm:
		return trxm{}, nil
	case descriptor.Trsm:
		return trxm{solve: true}, nil
	case descriptor.Syrk:
		return rankK{}, nil
	case descriptor.Syr2k:
		return rankK{two: true}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOp, d.Op)
}

// Step models one kernel invocation of one operation. It owns its Named
// Values, its Descriptor and the derived call expressions. A Step that is
// part of a sequence also holds a non-owning reference to the master Step
// whose buffers it binds.
type Step struct {
	desc descriptor.Descriptor
	op   operation

	vars  *builder.VarSet
	kargs builder.KernelArguments
	roles [builder.NumRoles]builder.Role

	naiveCall      string
	compareCall    string
	postRandomCall string

	kernelName string
	pgran      PGran
	pgranSet   bool

	master   *Step
	declared bool
	err      error
}

// New is the factory keyed on the Descriptor's operation identity
func New(d descriptor.Descriptor) (*Step, error) {
	op, err := lookup(d)
	if err != nil {
		return nil, err
	}
	if !d.DType.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataType, d.DType)
	}
	s := &Step{
		desc: d,
		op:   op,
		vars: builder.NewVarSet(),
	}
	for r := range s.roles {
		s.roles[r] = builder.Role(r)
	}
	return s, nil
}

// FixLD raises every leading dimension and increment of d below the
// minimum its storage order and flags allow. It is pure and idempotent.
func FixLD(d descriptor.Descriptor) (descriptor.Descriptor, error) {
	op, err := lookup(d)
	if err != nil {
		return d, err
	}
	return fixLD(op, d), nil
}

func fixLD(op operation, d descriptor.Descriptor) descriptor.Descriptor {
	for _, sh := range op.shapes(d) {
		p := strideField(&d, sh.stride)
		if p == nil {
			continue
		}
		if sh.vector {
			*p = descriptor.DefaultIncrement(*p)
			continue
		}
		*p = descriptor.RaiseLeadingDimension(*p,
			descriptor.MinLeadingDimension(d.Order, sh.rows.n, sh.cols.n))
	}
	return d
}

// FixLD normalizes the Step's own Descriptor; it must run before Declare
func (s *Step) FixLD() {
	s.desc = fixLD(s.op, s.desc)
}

// MapRoles binds this Step's role r to master role roles[r] on Declare
func (s *Step) MapRoles(roles [builder.NumRoles]builder.Role) {
	s.roles = roles
}

// SetPGran overrides the parallel-work descriptor derived on Declare
func (s *Step) SetPGran(pg PGran) {
	s.pgran = pg
	s.pgranSet = true
}

// Declare builds the Named Value set. With a master, buffer roles are
// borrowed from it by identity rather than created. Declare runs once.
func (s *Step) Declare(master *Step) error {
	if s.declared {
		return ErrAlreadyDeclared
	}
	if master == s {
		master = nil
	}
	if master != nil && !master.declared {
		return ErrMasterNotDeclared
	}
	s.master = master
	s.vars = builder.NewVarSet()
	s.kargs = nil
	s.err = nil

	s.op.declare(s)
	if s.err != nil {
		err := s.err
		s.vars, s.kargs, s.master, s.err = builder.NewVarSet(), nil, nil, nil
		s.naiveCall, s.compareCall, s.postRandomCall = "", "", ""
		return fmt.Errorf("declare %s: %w", s.Name(), err)
	}
	if !s.pgranSet {
		dim, rows, cols := s.op.workShape(s.desc)
		s.pgran = computePGran(dim, rows, cols, s.desc)
	}
	s.declared = true
	return nil
}

func (s *Step) Declared() bool { return s.declared }

func (s *Step) Descriptor() descriptor.Descriptor { return s.desc }

// Name is the routine name without type prefix, "gemm"
func (s *Step) Name() string { return s.desc.Op.String() }

// KernelFunction is the name of the __kernel entry point, "sgemm"
func (s *Step) KernelFunction() string {
	return s.desc.DType.Prefix() + s.desc.Op.String()
}

func (s *Step) Level() int { return s.desc.Op.Level() }

func (s *Step) Vars() *builder.VarSet { return s.vars }

func (s *Step) KernelArgs() builder.KernelArguments { return s.kargs }

// Buffer returns the buffer bound to role, nil if the operation has none
func (s *Step) Buffer(role builder.Role) *builder.Buffer { return s.vars.Role(role) }

func (s *Step) Master() *Step { return s.master }

func (s *Step) NaiveCall() string { return s.naiveCall }

func (s *Step) CompareCall() string { return s.compareCall }

// PostRandomCall conditions random input after filling; empty for most ops
func (s *Step) PostRandomCall() string { return s.postRandomCall }

func (s *Step) KernelName() string { return s.kernelName }

func (s *Step) SetKernelName(name string) { s.kernelName = name }

func (s *Step) PGran() PGran { return s.pgran }

// Var looks up a scalar Named Value
func (s *Step) Var(name string) *builder.Variable {
	v, ok := s.vars.Lookup(name)
	if !ok {
		return nil
	}
	sv, _ := v.(*builder.Variable)
	return sv
}

// Array looks up a host array Named Value
func (s *Step) Array(name string) builder.Array {
	v, ok := s.vars.Lookup(name)
	if !ok {
		return nil
	}
	a, _ := v.(builder.Array)
	return a
}

// BlasOptions returns the clblas option constants the reference call reads
func (s *Step) BlasOptions() []*builder.Variable {
	d := s.desc
	var out []*builder.Variable
	for _, name := range s.op.options() {
		switch name {
		case "order":
			val := "clblasRowMajor"
			if d.ColumnMajor() {
				val = "clblasColumnMajor"
			}
			out = append(out, builder.NewConst(name, "clblasOrder", val))
		case "side":
			val := "clblasLeft"
			if d.RightSide() {
				val = "clblasRight"
			}
			out = append(out, builder.NewConst(name, "clblasSide", val))
		case "uplo":
			val := "clblasUpper"
			if d.Lower() {
				val = "clblasLower"
			}
			out = append(out, builder.NewConst(name, "clblasUplo", val))
		case "transA":
			out = append(out, builder.NewConst(name, "clblasTranspose", transposeLiteral(d.TransposedA(), d.ConjugatedA())))
		case "transB":
			out = append(out, builder.NewConst(name, "clblasTranspose", transposeLiteral(d.TransposedB(), d.ConjugatedB())))
		case "diag":
			val := "clblasNonUnit"
			if d.UnitDiagonal() {
				val = "clblasUnit"
			}
			out = append(out, builder.NewConst(name, "clblasDiag", val))
		}
	}
	return out
}

func transposeLiteral(trans, conj bool) string {
	switch {
	case conj:
		return "clblasConjTrans"
	case trans:
		return "clblasTrans"
	}
	return "clblasNoTrans"
}
