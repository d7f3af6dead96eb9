package runner

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/notargets/gocca"

	"github.com/notargets/ktestgen/step"
)

var ErrNotOpenCL = errors.New("generated kernels compile on OpenCL devices only")

// Runner compiles generated kernels on an OCCA device so a broken kernel
// text is caught before any file is written
type Runner struct {
	Device  *gocca.OCCADevice
	Kernels map[string]*gocca.OCCAKernel
	Log     io.Writer
}

// NewRunner creates a Runner on device
func NewRunner(device *gocca.OCCADevice) *Runner {
	if device == nil {
		panic("runner needs a device")
	}
	return &Runner{
		Device:  device,
		Kernels: make(map[string]*gocca.OCCAKernel),
		Log:     os.Stdout,
	}
}

// OpenCL reports whether the device compiles OpenCL C
func (kr *Runner) OpenCL() bool {
	return kr.Device.Mode() == "OpenCL"
}

// BuildKernel compiles an OpenCL C kernel and registers it under key
func (kr *Runner) BuildKernel(key, kernelSource, kernelName string) (*gocca.OCCAKernel, error) {
	if !kr.OpenCL() {
		return nil, fmt.Errorf("%w: device mode is %s", ErrNotOpenCL, kr.Device.Mode())
	}

	// generated source is plain OpenCL C, not OKL
	props := gocca.JsonParse(`{"okl": {"enabled": false}}`)
	defer props.Free()

	kernel, err := kr.Device.BuildKernelFromString(kernelSource, kernelName, props)
	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}
	if kernel == nil {
		return nil, fmt.Errorf("kernel build returned nil for %s", kernelName)
	}

	if old, ok := kr.Kernels[key]; ok {
		old.Free()
	}
	kr.Kernels[key] = kernel
	return kernel, nil
}

// CheckSteps generates and compiles the kernel of every step in order and
// stops at the first failure
func (kr *Runner) CheckSteps(steps ...*step.Step) error {
	for i, s := range steps {
		source, err := s.Generate()
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		key := s.KernelName()
		if key == "" {
			key = fmt.Sprintf("%d_%s", i, s.KernelFunction())
		}
		if _, err := kr.BuildKernel(key, source, s.KernelFunction()); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if kr.Log != nil {
			fmt.Fprintf(kr.Log, "Compiled %s\n", key)
		}
	}
	return nil
}

// Free releases all compiled kernels
func (kr *Runner) Free() {
	for name, kernel := range kr.Kernels {
		kernel.Free()
		delete(kr.Kernels, name)
	}
}
