package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/ktestgen/descriptor"
	"github.com/notargets/ktestgen/ktest"
	"github.com/notargets/ktestgen/sequence"
	"github.com/notargets/ktestgen/step"
)

var (
	ErrEmptyText   = errors.New("generated text is empty")
	ErrNoFileNames = errors.New("kernel and harness file names are required")
)

// Checker compiles generated kernels before anything is written
type Checker interface {
	CheckSteps(steps ...*step.Step) error
}

// Options configures one generation run
type Options struct {
	Desc    descriptor.Descriptor
	Harness ktest.Options

	// KernelFile is the kernel file name in single kernel mode and the
	// base of every step's kernel file name otherwise
	KernelFile  string
	HarnessFile string

	// MultiKernel splits the problem with sequence.Blocked unless a
	// Decomposer is given
	MultiKernel bool
	BlockSize   int
	Decomposer  sequence.Decomposer

	SkipAccuracy bool

	Checker Checker
	Sink    Sink
	Log     io.Writer
}

// Result is what a run produced, in write order
type Result struct {
	Master *step.Step
	Steps  []*step.Step
	Files  []File
	Ops    []string // distinct operations of a multi kernel solution
}

func (r *Result) MultiKernel() bool { return len(r.Steps) > 1 }

// Generate builds the master step, the optional sequence and every file
// text without writing anything
func Generate(opts Options) (*Result, error) {
	if opts.KernelFile == "" || opts.HarnessFile == "" {
		return nil, ErrNoFileNames
	}
	desc, err := step.FixLD(opts.Desc)
	if err != nil {
		return nil, err
	}
	master, err := step.New(desc)
	if err != nil {
		return nil, err
	}
	if err := master.Declare(nil); err != nil {
		return nil, err
	}

	res := &Result{Master: master}
	dec := opts.Decomposer
	if dec == nil && opts.MultiKernel {
		dec = sequence.Blocked{Block: opts.BlockSize}
	}
	if dec != nil {
		sq, err := sequence.Build(master, dec)
		if err != nil {
			return nil, err
		}
		if sq.Len() > 1 {
			sq.NameKernels(opts.KernelFile)
			res.Steps = sq.Steps()
			res.Ops = sq.Ops()
		}
	}

	launched := res.Steps
	if !res.MultiKernel() {
		master.SetKernelName(opts.KernelFile)
		launched = []*step.Step{master}
	}
	for _, s := range launched {
		text, err := s.Generate()
		if err != nil {
			return nil, err
		}
		res.Files = append(res.Files, File{Name: s.KernelName(), Data: []byte(text)})
	}

	hopts := opts.Harness
	hopts.KernelFile = opts.KernelFile
	harness, err := ktest.New(master, res.Steps, hopts).Generate(!opts.SkipAccuracy)
	if err != nil {
		return nil, err
	}
	res.Files = append(res.Files, File{Name: opts.HarnessFile, Data: []byte(harness)})

	for _, f := range res.Files {
		if strings.TrimSpace(string(f.Data)) == "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyText, f.Name)
		}
	}
	return res, nil
}

// Run generates, optionally compile checks, and writes every file. A
// failure at any stage writes nothing.
func Run(opts Options) error {
	log := opts.Log
	if log == nil {
		log = os.Stdout
	}
	res, err := Generate(opts)
	if err != nil {
		return err
	}

	if opts.Checker != nil {
		launched := res.Steps
		if !res.MultiKernel() {
			launched = []*step.Step{res.Master}
		}
		if err := opts.Checker.CheckSteps(launched...); err != nil {
			return fmt.Errorf("kernel check: %w", err)
		}
	}

	if res.MultiKernel() {
		fmt.Fprintf(log, "Solution: %d steps using %s\n", len(res.Steps), strings.Join(res.Ops, ", "))
	}
	for _, f := range res.Files {
		fmt.Fprintf(log, "Generating '%s' ...\n", f.Name)
	}
	sink := opts.Sink
	if sink == nil {
		sink = DirSink{}
	}
	if err := sink.Write(res.Files); err != nil {
		return err
	}
	fmt.Fprintf(log, "Done, %d file(s)\n", len(res.Files))
	return nil
}
