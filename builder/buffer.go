package builder

import "fmt"

// Role names the three device buffers every operation may bind
type Role int

const (
	RoleA Role = iota // first operand
	RoleB             // second operand
	RoleC             // result
	NumRoles
)

func (r Role) String() string {
	switch r {
	case RoleA:
		return "A"
	case RoleB:
		return "B"
	case RoleC:
		return "C"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Access mirrors the cl_mem_flags of a device buffer and decides which
// transfers the harness emits for it
type Access int

const (
	ReadOnly Access = iota + 1
	WriteOnly
	ReadWrite
)

// Flag is the OpenCL memory flag literal
func (a Access) Flag() string {
	switch a {
	case ReadOnly:
		return "CL_MEM_READ_ONLY"
	case WriteOnly:
		return "CL_MEM_WRITE_ONLY"
	case ReadWrite:
		return "CL_MEM_READ_WRITE"
	}
	return ""
}

// NeedsCopyTo reports a host to device upload before the first launch
func (a Access) NeedsCopyTo() bool {
	return a == ReadOnly || a == ReadWrite
}

// NeedsCopyBack reports a device to host readback after the last launch
func (a Access) NeedsCopyBack() bool {
	return a == WriteOnly || a == ReadWrite
}

// Buffer is a cl_mem Named Value bound to one role with a host mirror
type Buffer struct {
	Variable
	role   Role
	access Access
	host   Array
}

// BindBuffer creates the device buffer for role, mirrored by host
func BindBuffer(role Role, name string, access Access, host Array) *Buffer {
	return &Buffer{
		Variable: Variable{name: name, typ: "cl_mem", def: "NULL"},
		role:     role,
		access:   access,
		host:     host,
	}
}

func (b *Buffer) Role() Role { return b.role }

func (b *Buffer) Access() Access { return b.access }

func (b *Buffer) Host() Array { return b.host }
