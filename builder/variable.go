package builder

// Named is any value that can be declared in generated code
type Named interface {
	Name() string
	Type() string
}

// Variable is a scalar Named Value: a name, a host type, an optional literal
// default and an optional constant flag
type Variable struct {
	name     string
	typ      string
	def      string
	constant bool
}

// NewVariable creates a mutable scalar
func NewVariable(name, typ, defaultValue string) *Variable {
	return &Variable{name: name, typ: typ, def: defaultValue}
}

// NewConst creates a scalar emitted with a const qualifier
func NewConst(name, typ, defaultValue string) *Variable {
	return &Variable{name: name, typ: typ, def: defaultValue, constant: true}
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Type() string { return v.typ }

func (v *Variable) Default() string { return v.def }

func (v *Variable) IsConst() bool { return v.constant }

// nameOf tolerates nil references so incomplete arrays degrade to empty text
func nameOf(v *Variable) string {
	if v == nil {
		return ""
	}
	return v.name
}
