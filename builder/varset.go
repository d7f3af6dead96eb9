package builder

import "fmt"

// VarSet is an insertion ordered mapping from name to Named Value. Scalars,
// arrays and buffers share one namespace so generated code never declares a
// name twice.
type VarSet struct {
	order    []Named
	byName   map[string]Named
	byRole   [NumRoles]*Buffer
	borrowed map[*Buffer]bool
}

func NewVarSet() *VarSet {
	return &VarSet{
		byName:   make(map[string]Named),
		borrowed: make(map[*Buffer]bool),
	}
}

func (vs *VarSet) add(v Named) {
	if _, exists := vs.byName[v.Name()]; exists {
		panic(fmt.Sprintf("named value %q declared twice", v.Name()))
	}
	vs.byName[v.Name()] = v
	vs.order = append(vs.order, v)
}

// AddVar adds a scalar and returns it for chaining into array extents
func (vs *VarSet) AddVar(v *Variable) *Variable {
	vs.add(v)
	return v
}

func (vs *VarSet) AddArray(a Array) Array {
	vs.add(a)
	return a
}

// AddBuffer adds a buffer owned by this set
func (vs *VarSet) AddBuffer(b *Buffer) *Buffer {
	vs.add(b)
	vs.byRole[b.role] = b
	return b
}

// Borrow binds a buffer owned by another set under role. The identical
// object is stored, never a copy.
func (vs *VarSet) Borrow(role Role, b *Buffer) *Buffer {
	if b == nil {
		return nil
	}
	if _, exists := vs.byName[b.Name()]; !exists {
		vs.add(b)
		vs.borrowed[b] = true
	}
	vs.byRole[role] = b
	return b
}

func (vs *VarSet) Lookup(name string) (Named, bool) {
	v, ok := vs.byName[name]
	return v, ok
}

// Role returns the buffer bound to role, nil when the operation has none
func (vs *VarSet) Role(role Role) *Buffer {
	if role < 0 || role >= NumRoles {
		return nil
	}
	return vs.byRole[role]
}

func (vs *VarSet) IsBorrowed(b *Buffer) bool {
	return vs.borrowed[b]
}

// All returns every Named Value in insertion order
func (vs *VarSet) All() []Named {
	out := make([]Named, len(vs.order))
	copy(out, vs.order)
	return out
}

// Scalars returns the plain variables in insertion order
func (vs *VarSet) Scalars() []*Variable {
	var out []*Variable
	for _, v := range vs.order {
		if s, ok := v.(*Variable); ok {
			out = append(out, s)
		}
	}
	return out
}

func (vs *VarSet) Arrays() []Array {
	var out []Array
	for _, v := range vs.order {
		if a, ok := v.(Array); ok {
			out = append(out, a)
		}
	}
	return out
}

// Buffers returns owned and borrowed buffers in insertion order
func (vs *VarSet) Buffers() []*Buffer {
	var out []*Buffer
	for _, v := range vs.order {
		if b, ok := v.(*Buffer); ok {
			out = append(out, b)
		}
	}
	return out
}

// OwnedBuffers excludes buffers borrowed from a master step
func (vs *VarSet) OwnedBuffers() []*Buffer {
	var out []*Buffer
	for _, b := range vs.Buffers() {
		if !vs.borrowed[b] {
			out = append(out, b)
		}
	}
	return out
}

func (vs *VarSet) Len() int { return len(vs.order) }
