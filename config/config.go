package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/blas"
	"gopkg.in/yaml.v3"

	"github.com/notargets/ktestgen/descriptor"
	"github.com/notargets/ktestgen/driver"
	"github.com/notargets/ktestgen/ktest"
)

// Scalar is a multiplier given either as a number or as [re, im]
type Scalar complex128

func (s *Scalar) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var re float64
		if err := node.Decode(&re); err != nil {
			return err
		}
		*s = Scalar(complex(re, 0))
		return nil
	case yaml.SequenceNode:
		var parts []float64
		if err := node.Decode(&parts); err != nil {
			return err
		}
		if len(parts) != 2 {
			return fmt.Errorf("line %d: complex scalar needs [re, im], got %d values", node.Line, len(parts))
		}
		*s = Scalar(complex(parts[0], parts[1]))
		return nil
	}
	return fmt.Errorf("line %d: scalar must be a number or [re, im]", node.Line)
}

// Config is the YAML description of one generation run
type Config struct {
	Function string `yaml:"function"`
	Order    string `yaml:"order"`
	Side     string `yaml:"side"`
	Uplo     string `yaml:"uplo"`
	TransA   string `yaml:"transA"`
	TransB   string `yaml:"transB"`
	Diag     string `yaml:"diag"`

	M int `yaml:"m"`
	N int `yaml:"n"`
	K int `yaml:"k"`

	LDA  int `yaml:"lda"`
	LDB  int `yaml:"ldb"`
	LDC  int `yaml:"ldc"`
	IncX int `yaml:"incx"`
	IncY int `yaml:"incy"`

	OffA  int `yaml:"offA"`
	OffBX int `yaml:"offBX"`
	OffCY int `yaml:"offCY"`

	Alpha *Scalar `yaml:"alpha"`
	Beta  *Scalar `yaml:"beta"`

	Decomposition []descriptor.SubproblemDim `yaml:"decomposition"`

	Platform     string `yaml:"platform"`
	Device       string `yaml:"device"`
	BuildOptions string `yaml:"buildOptions"`
	Pattern      string `yaml:"pattern"`

	CL           string `yaml:"cl"`
	CPP          string `yaml:"cpp"`
	MultiKernel  bool   `yaml:"multiKernel"`
	SkipAccuracy bool   `yaml:"skipAccuracy"`
	BlockSize    int    `yaml:"blockSize"`
}

// Load reads a YAML config file
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, rejecting unknown keys
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return cfg, nil
}

// Descriptor builds the operation descriptor; unset flags keep their defaults
func (c Config) Descriptor() (descriptor.Descriptor, error) {
	op, dt, err := descriptor.ParseFunction(c.Function)
	if err != nil {
		return descriptor.Descriptor{}, err
	}
	d := descriptor.New(op, dt)
	if d.Order, err = parseOrder(c.Order); err != nil {
		return d, err
	}
	if d.Side, err = parseSide(c.Side); err != nil {
		return d, err
	}
	if d.Uplo, err = parseUplo(c.Uplo); err != nil {
		return d, err
	}
	if d.TransA, err = parseTranspose(c.TransA); err != nil {
		return d, fmt.Errorf("transA: %w", err)
	}
	if d.TransB, err = parseTranspose(c.TransB); err != nil {
		return d, fmt.Errorf("transB: %w", err)
	}
	if d.Diag, err = parseDiag(c.Diag); err != nil {
		return d, err
	}

	d.M, d.N, d.K = c.M, c.N, c.K
	d.LDA, d.LDB, d.LDC = c.LDA, c.LDB, c.LDC
	d.IncX, d.IncY = c.IncX, c.IncY
	d.OffA, d.OffBX, d.OffCY = c.OffA, c.OffBX, c.OffCY
	if c.Alpha != nil {
		d.Alpha = complex128(*c.Alpha)
	}
	if c.Beta != nil {
		d.Beta = complex128(*c.Beta)
	}

	switch len(c.Decomposition) {
	case 0:
	case 2:
		d.Decomposition = &descriptor.Decomposition{c.Decomposition[0], c.Decomposition[1]}
	default:
		return d, fmt.Errorf("decomposition needs 2 levels, got %d", len(c.Decomposition))
	}
	return d, nil
}

// DriverOptions assembles a complete run; file names default to the
// function name
func (c Config) DriverOptions() (driver.Options, error) {
	d, err := c.Descriptor()
	if err != nil {
		return driver.Options{}, err
	}
	pattern, err := ktest.ParsePattern(c.Pattern)
	if err != nil {
		return driver.Options{}, err
	}
	fn := strings.ToLower(strings.TrimSpace(c.Function))
	opts := driver.Options{
		Desc: d,
		Harness: ktest.Options{
			Platform:     c.Platform,
			Device:       c.Device,
			BuildOptions: c.BuildOptions,
			Pattern:      pattern,
		},
		KernelFile:   c.CL,
		HarnessFile:  c.CPP,
		MultiKernel:  c.MultiKernel,
		BlockSize:    c.BlockSize,
		SkipAccuracy: c.SkipAccuracy,
	}
	if opts.KernelFile == "" {
		opts.KernelFile = fn + ".cl"
	}
	if opts.HarnessFile == "" {
		opts.HarnessFile = fn + ".cpp"
	}
	return opts, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
}

func parseOrder(s string) (descriptor.Order, error) {
	switch normalize(s) {
	case "", "row", "rowmajor":
		return descriptor.RowMajor, nil
	case "col", "column", "columnmajor":
		return descriptor.ColumnMajor, nil
	}
	return descriptor.RowMajor, fmt.Errorf("unknown order %q", s)
}

func parseSide(s string) (blas.Side, error) {
	switch normalize(s) {
	case "", "left", "l":
		return blas.Left, nil
	case "right", "r":
		return blas.Right, nil
	}
	return blas.Left, fmt.Errorf("unknown side %q", s)
}

func parseUplo(s string) (blas.Uplo, error) {
	switch normalize(s) {
	case "", "upper", "u":
		return blas.Upper, nil
	case "lower", "l":
		return blas.Lower, nil
	}
	return blas.Upper, fmt.Errorf("unknown uplo %q", s)
}

func parseTranspose(s string) (blas.Transpose, error) {
	switch normalize(s) {
	case "", "n", "no", "notrans":
		return blas.NoTrans, nil
	case "t", "trans":
		return blas.Trans, nil
	case "c", "conj", "conjtrans":
		return blas.ConjTrans, nil
	}
	return blas.NoTrans, fmt.Errorf("unknown transpose %q", s)
}

func parseDiag(s string) (blas.Diag, error) {
	switch normalize(s) {
	case "", "nonunit", "n":
		return blas.NonUnit, nil
	case "unit", "u":
		return blas.Unit, nil
	}
	return blas.NonUnit, fmt.Errorf("unknown diag %q", s)
}
