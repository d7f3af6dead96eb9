package builder

import (
	"fmt"
	"strings"
)

// KernelArgument binds one kernel parameter index to a Named Value
type KernelArgument struct {
	Index int
	Value Named
	// Param is the parameter name inside the kernel. Buffers are named after
	// the step's own array for the role so two roles may alias one cl_mem.
	Param string
	// Local is the array a buffer parameter stands for, nil for scalars
	Local Array
}

// KernelArguments is the ordered argument list of one kernel. It is the
// single source of truth for both the kernel signature and the host side
// clSetKernelArg sequence.
type KernelArguments []KernelArgument

// Append adds values with consecutive indices
func (ka KernelArguments) Append(values ...Named) KernelArguments {
	for _, v := range values {
		switch x := v.(type) {
		case nil:
			continue
		case *Variable:
			if x == nil {
				continue
			}
		case *Buffer:
			if x != nil {
				ka = ka.AppendBuffer(x, x.host)
			}
			continue
		}
		ka = append(ka, KernelArgument{Index: len(ka), Value: v, Param: v.Name()})
	}
	return ka
}

// AppendBuffer adds a buffer parameter standing for local
func (ka KernelArguments) AppendBuffer(b *Buffer, local Array) KernelArguments {
	param := b.Name()
	if local != nil {
		param = local.Name()
	}
	return append(ka, KernelArgument{Index: len(ka), Value: b, Param: param, Local: local})
}

// Buffers returns the buffer parameters in index order
func (ka KernelArguments) Buffers() KernelArguments {
	var out KernelArguments
	for _, arg := range ka {
		if _, ok := arg.Value.(*Buffer); ok {
			out = append(out, arg)
		}
	}
	return out
}

// DeviceType maps an OpenCL host type name to the kernel language type
func DeviceType(hostType string) string {
	switch hostType {
	case "cl_uint":
		return "uint"
	case "cl_int":
		return "int"
	case "cl_ulong":
		return "ulong"
	case "cl_float":
		return "float"
	case "cl_double":
		return "double"
	case "FloatComplex":
		return "float2"
	case "DoubleComplex":
		return "double2"
	}
	return hostType
}

// Declaration renders the kernel parameter; read-only buffers become const
func (arg KernelArgument) Declaration() string {
	if b, ok := arg.Value.(*Buffer); ok {
		elem := ""
		switch {
		case arg.Local != nil:
			elem = DeviceType(arg.Local.ElementType())
		case b.host != nil:
			elem = DeviceType(b.host.ElementType())
		}
		qual := ""
		if b.access == ReadOnly {
			qual = "const "
		}
		return fmt.Sprintf("__global %s%s* %s", qual, elem, arg.Param)
	}
	return fmt.Sprintf("const %s %s", DeviceType(arg.Value.Type()), arg.Param)
}

// Signature renders the parameter list, one parameter per line
func (ka KernelArguments) Signature(indent string) string {
	var sb strings.Builder
	for i, arg := range ka {
		sb.WriteString(indent + arg.Declaration())
		if i < len(ka)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// SetArgCalls renders the host side binding sequence
func (ka KernelArguments) SetArgCalls(kernel, indent string) string {
	var sb strings.Builder
	for _, arg := range ka {
		sb.WriteString(fmt.Sprintf("%serr = clSetKernelArg(%s, %d, sizeof(%s), &%s);\n",
			indent, kernel, arg.Index, arg.Value.Type(), arg.Value.Name()))
		sb.WriteString(indent + "assert(err == CL_SUCCESS);\n")
	}
	return sb.String()
}
