package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/notargets/gocca"
)

// OpenCLBackend is the OCCA device property string for one OpenCL device
func OpenCLBackend(platformID, deviceID int) string {
	return fmt.Sprintf(`{"mode": "OpenCL", "platform_id": %d, "device_id": %d}`, platformID, deviceID)
}

// DefaultBackends prefers OpenCL, the only backend that compiles
// generated kernels, then falls back to the parallel and serial backends
var DefaultBackends = []string{
	OpenCLBackend(0, 0),
	`{"mode": "OpenMP"}`,
	`{"mode": "CUDA", "device_id": 0}`,
	`{"mode": "Serial"}`,
}

// CreateDevice returns the first OCCA device that can be created from
// backends, DefaultBackends when none are given
func CreateDevice(backends ...string) (*gocca.OCCADevice, error) {
	return OpenDevice(os.Stdout, backends...)
}

// OpenDevice is CreateDevice reporting the chosen device to w
func OpenDevice(w io.Writer, backends ...string) (*gocca.OCCADevice, error) {
	if len(backends) == 0 {
		backends = DefaultBackends
	}
	var failures []string
	for _, props := range backends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			fmt.Fprintf(w, "Created %s Device\n", device.Mode())
			return device, nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", props, err))
	}
	return nil, errors.New("failed to create any device: " + strings.Join(failures, "; "))
}
