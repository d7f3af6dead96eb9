package sequence

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/notargets/ktestgen/step"
)

var (
	ErrEmptySequence     = errors.New("decomposition returned no steps")
	ErrMasterNotDeclared = errors.New("master step must be declared before building a sequence")
)

// Sequence is an ordered list of Steps realizing one operation. It owns
// the master Step; every Step borrows the master's buffers and keeps a
// back-reference to it. Steps run strictly in order.
type Sequence struct {
	master *step.Step
	steps  []*step.Step
}

// Build asks dec for the step records of the master's problem and
// declares one Step per record against the master
func Build(master *step.Step, dec Decomposer) (*Sequence, error) {
	if master == nil || !master.Declared() {
		return nil, ErrMasterNotDeclared
	}
	if dec == nil {
		dec = Single{}
	}
	records, err := dec.Decompose(master.Descriptor())
	if err != nil {
		return nil, fmt.Errorf("decompose %s: %w", master.Name(), err)
	}
	if len(records) == 0 {
		return nil, ErrEmptySequence
	}

	sq := &Sequence{master: master}
	for i, rec := range records {
		s, err := step.New(rec.Desc)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		s.FixLD()
		if rec.Roles != nil {
			s.MapRoles(*rec.Roles)
		}
		if rec.PGran != nil {
			s.SetPGran(*rec.PGran)
		}
		if err := s.Declare(master); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		sq.steps = append(sq.steps, s)
	}
	return sq, nil
}

func (sq *Sequence) Master() *step.Step { return sq.master }

// Steps returns the steps in execution order
func (sq *Sequence) Steps() []*step.Step {
	out := make([]*step.Step, len(sq.steps))
	copy(out, sq.steps)
	return out
}

func (sq *Sequence) Len() int { return len(sq.steps) }

// NameKernels assigns "{index}_{operation}_{base}" kernel file names
func (sq *Sequence) NameKernels(base string) []string {
	return lo.Map(sq.steps, func(s *step.Step, i int) string {
		name := fmt.Sprintf("%d_%s_%s", i, s.Name(), base)
		s.SetKernelName(name)
		return name
	})
}

// Ops lists the distinct operations of the sequence in first-use order
func (sq *Sequence) Ops() []string {
	return lo.Uniq(lo.Map(sq.steps, func(s *step.Step, _ int) string {
		return s.Name()
	}))
}
