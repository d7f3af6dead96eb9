package ktest

import (
	"fmt"
	"strings"

	"github.com/notargets/ktestgen/descriptor"
)

// Pattern selects how the generated program fills its input arrays
type Pattern int

const (
	PatternRandom Pattern = iota
	PatternUnit
	PatternSawtooth
)

var patternNames = []string{"random", "unit", "sawtooth"}

func (p Pattern) String() string {
	if p < 0 || int(p) >= len(patternNames) {
		return fmt.Sprintf("Pattern(%d)", int(p))
	}
	return patternNames[p]
}

func ParsePattern(name string) (Pattern, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return PatternRandom, nil
	}
	for i, n := range patternNames {
		if n == name {
			return Pattern(i), nil
		}
	}
	return PatternRandom, fmt.Errorf("unknown data pattern %q", name)
}

// Options are the run settings baked into the generated program
type Options struct {
	Platform     string
	Device       string
	BuildOptions string
	// KernelFile is the kernel source loaded in single kernel mode
	KernelFile string
	Pattern    Pattern
}

// Tolerance bounds |got - want| <= Rel * max(|want|, 1) + Abs
type Tolerance struct {
	Abs float64
	Rel float64
}

var tolerances = map[descriptor.DataType]Tolerance{
	descriptor.Float32:    {Abs: 1e-5, Rel: 1e-3},
	descriptor.Float64:    {Abs: 1e-12, Rel: 1e-9},
	descriptor.Complex64:  {Abs: 1e-5, Rel: 1e-3},
	descriptor.Complex128: {Abs: 1e-12, Rel: 1e-9},
}

// ToleranceFor returns the comparison tolerance of the element type
func ToleranceFor(dt descriptor.DataType) Tolerance {
	if tol, ok := tolerances[dt]; ok {
		return tol
	}
	return tolerances[descriptor.Float32]
}
