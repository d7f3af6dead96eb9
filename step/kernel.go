package step

import (
	"fmt"
	"strings"

	"github.com/notargets/ktestgen/builder"
	"github.com/notargets/ktestgen/descriptor"
)

// Generate returns the kernel source text of the Step. The parameter list
// is rendered from the same argument list the harness binds.
func (s *Step) Generate() (string, error) {
	if !s.declared {
		return "", fmt.Errorf("%s: %w", s.Name(), ErrNotDeclared)
	}
	body := s.op.body(s)
	if body == "" {
		return "", fmt.Errorf("%s: empty kernel body", s.Name())
	}

	var sb strings.Builder
	sb.WriteString(s.dumpHeader())
	sb.WriteString(typePreamble(s.desc.DType))
	sb.WriteString(s.accessorMacros())
	if defs := s.op.defines(s); defs != "" {
		sb.WriteString(defs)
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("__kernel void %s(\n", s.KernelFunction()))
	sb.WriteString(s.kargs.Signature("    "))
	sb.WriteString(")\n{\n")
	sb.WriteString(body)
	sb.WriteString("}\n")
	return sb.String(), nil
}

// dumpHeader records the decomposition and work partition the kernel was
// generated for
func (s *Step) dumpHeader() string {
	var sb strings.Builder
	sb.WriteString("/*\n")
	sb.WriteString(fmt.Sprintf("    %s%s, %s\n", s.desc.DType.Prefix(), s.Name(), s.desc.Order))
	if dims, ok := s.desc.Subdims(); ok {
		for i, sd := range dims {
			sb.WriteString(fmt.Sprintf("SubproblemDim[%d]\n", i))
			sb.WriteString(fmt.Sprintf("    x      = %s\n", subdim(sd.X)))
			sb.WriteString(fmt.Sprintf("    y      = %s\n", subdim(sd.Y)))
			sb.WriteString(fmt.Sprintf("    bwidth = %s\n", subdim(sd.BWidth)))
			sb.WriteString(fmt.Sprintf("    itemX  = %s\n", subdim(sd.ItemX)))
			sb.WriteString(fmt.Sprintf("    itemY  = %s\n", subdim(sd.ItemY)))
		}
	}
	pg := s.pgran
	sb.WriteString("PGranularity\n")
	sb.WriteString(fmt.Sprintf("    wgDim  = %d\n", pg.Dim))
	if pg.Dim == 1 {
		sb.WriteString(fmt.Sprintf("    wgSize = %d\n", pg.Local[0]))
		sb.WriteString(fmt.Sprintf("    global = %d\n", pg.Global[0]))
	} else {
		sb.WriteString(fmt.Sprintf("    wgSize = (%d, %d)\n", pg.Local[0], pg.Local[1]))
		sb.WriteString(fmt.Sprintf("    global = (%d, %d)\n", pg.Global[0], pg.Global[1]))
	}
	if flags := s.desc.Flags(); len(flags) > 0 {
		sb.WriteString("Flags\n")
		sb.WriteString("    " + strings.Join(flags, " | ") + "\n")
	}
	sb.WriteString("*/\n\n")
	return sb.String()
}

func subdim(v int) string {
	if v <= 0 {
		return "SUBDIM_UNUSED"
	}
	return fmt.Sprintf("%d", v)
}

func typePreamble(dt descriptor.DataType) string {
	var sb strings.Builder
	if dt.IsDouble() {
		sb.WriteString("#pragma OPENCL EXTENSION cl_khr_fp64 : enable\n\n")
	}
	suffix := "f"
	if dt.IsDouble() {
		suffix = ""
	}
	sb.WriteString(fmt.Sprintf("typedef %s T;\n", dt.KernelType()))
	if dt.IsComplex() {
		sb.WriteString(fmt.Sprintf("#define ZERO ((T)(0.0%s, 0.0%s))\n", suffix, suffix))
		sb.WriteString(fmt.Sprintf("#define ONE ((T)(1.0%s, 0.0%s))\n", suffix, suffix))
		sb.WriteString("#define MUL(a, b) ((T)((a).x * (b).x - (a).y * (b).y, (a).x * (b).y + (a).y * (b).x))\n")
		sb.WriteString("#define DIV(a, b) ((T)(((a).x * (b).x + (a).y * (b).y) / ((b).x * (b).x + (b).y * (b).y), " +
			"((a).y * (b).x - (a).x * (b).y) / ((b).x * (b).x + (b).y * (b).y)))\n")
		sb.WriteString("#define CONJ(a) ((T)((a).x, -(a).y))\n")
	} else {
		sb.WriteString(fmt.Sprintf("#define ZERO 0.0%s\n", suffix))
		sb.WriteString(fmt.Sprintf("#define ONE 1.0%s\n", suffix))
		sb.WriteString("#define MUL(a, b) ((a) * (b))\n")
		sb.WriteString("#define DIV(a, b) ((a) / (b))\n")
		sb.WriteString("#define CONJ(a) (a)\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// accessorMacros defines NAME_AT for every buffer parameter from the
// offset, stride and extent Named Values of the array it stands for
func (s *Step) accessorMacros() string {
	var sb strings.Builder
	for _, arg := range s.kargs.Buffers() {
		switch a := arg.Local.(type) {
		case *builder.Matrix:
			sb.WriteString(fmt.Sprintf("#define %s_AT(r, c) %s[%s%s]\n",
				arg.Param, arg.Param, offsetTerm(a.Offset()), s.matrixIndex(a)))
		case *builder.Vector:
			sb.WriteString(fmt.Sprintf("#define %s_AT(i) %s[%s%s]\n",
				arg.Param, arg.Param, offsetTerm(a.Offset()), vectorIndex(a)))
		}
	}
	return sb.String()
}

func offsetTerm(off *builder.Variable) string {
	if off == nil {
		return ""
	}
	return off.Name() + " + "
}

func (s *Step) matrixIndex(m *builder.Matrix) string {
	ld := "1"
	if m.LD() != nil {
		ld = m.LD().Name()
	}
	if s.desc.ColumnMajor() {
		return fmt.Sprintf("(c) * %s + (r)", ld)
	}
	return fmt.Sprintf("(r) * %s + (c)", ld)
}

// vectorIndex walks a negative increment from the far end of the vector
func vectorIndex(v *builder.Vector) string {
	if v.Inc() == nil || v.Len() == nil {
		return "(i)"
	}
	inc, n := v.Inc().Name(), v.Len().Name()
	return fmt.Sprintf("((%s) > 0 ? (int)(i) * (%s) : ((int)(%s) - 1 - (int)(i)) * -(%s))", inc, inc, n, inc)
}

// opMacro defines name(r, c) as element (r, c) of op(X) for array x
func opMacro(name, x string, trans, conj bool) string {
	switch {
	case conj:
		return fmt.Sprintf("#define %s(r, c) CONJ(%s_AT(c, r))\n", name, x)
	case trans:
		return fmt.Sprintf("#define %s(r, c) %s_AT(c, r)\n", name, x)
	}
	return fmt.Sprintf("#define %s(r, c) %s_AT(r, c)\n", name, x)
}

const indent = "    "

func guard1D(id, extent string) string {
	return fmt.Sprintf("%sconst uint %s = get_global_id(0);\n\n%sif (%s >= %s) {\n%s%sreturn;\n%s}\n",
		indent, id, indent, id, extent, indent, indent, indent)
}

func guard2D(rows, cols string) string {
	return fmt.Sprintf("%sconst uint i = get_global_id(0);\n%sconst uint j = get_global_id(1);\n\n"+
		"%sif (i >= %s || j >= %s) {\n%s%sreturn;\n%s}\n",
		indent, indent, indent, rows, cols, indent, indent, indent)
}

// loop opens a for loop over [0, extent), descending when down is set
func loop(ind, v, extent string, down bool) string {
	if !down {
		return fmt.Sprintf("%sfor (uint %s = 0; %s < %s; %s++) {\n", ind, v, v, extent, v)
	}
	return fmt.Sprintf("%sfor (uint %s%s = %s; %s%s > 0; %s%s--) {\n%s%sconst uint %s = %s%s - 1;\n",
		ind, v, v, extent, v, v, v, v, ind, indent, v, v, v)
}
