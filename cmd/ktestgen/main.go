// Command ktestgen generates an OpenCL BLAS kernel together with a
// standalone C++ host program that builds it, runs it, times it and checks
// it against the reference BLAS.
//
// Usage:
//
//	ktestgen generate -f sgemm.yaml
//	ktestgen generate --function strsm --m 512 --n 64 --uplo lower --multi-kernel
//	ktestgen generate -f dgemm.yaml --bundle dgemm.txtar --check
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notargets/ktestgen/config"
	"github.com/notargets/ktestgen/driver"
	"github.com/notargets/ktestgen/runner"
	"github.com/notargets/ktestgen/utils"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "ktestgen",
		Short:         "Generate OpenCL BLAS kernels and their test harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCommand())
	return root
}

type generateFlags struct {
	configFile string
	outDir     string
	bundle     string
	check      bool
	cfg        config.Config
}

func newGenerateCommand() *cobra.Command {
	var gf generateFlags
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the kernel file(s) and the host program for one operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := gf.resolve(cmd)
			if err != nil {
				return err
			}
			return generate(cmd, cfg, gf)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&gf.configFile, "config", "f", "", "YAML run description")
	f.StringVarP(&gf.outDir, "out", "o", ".", "output directory")
	f.StringVar(&gf.bundle, "bundle", "", "write all files into one txtar archive instead of a directory")
	f.BoolVar(&gf.check, "check", false, "compile every kernel on an OCCA OpenCL device before writing")

	c := &gf.cfg
	f.StringVar(&c.Function, "function", "", "routine name, e.g. sgemm, ztrsm")
	f.StringVar(&c.Order, "order", "", "row or column major storage")
	f.StringVar(&c.Side, "side", "", "left or right")
	f.StringVar(&c.Uplo, "uplo", "", "upper or lower")
	f.StringVar(&c.TransA, "transA", "", "n, t or c")
	f.StringVar(&c.TransB, "transB", "", "n, t or c")
	f.StringVar(&c.Diag, "diag", "", "unit or nonunit")
	f.IntVar(&c.M, "m", 0, "rows of the result")
	f.IntVar(&c.N, "n", 0, "columns of the result")
	f.IntVar(&c.K, "k", 0, "inner dimension")
	f.IntVar(&c.LDA, "lda", 0, "leading dimension of A")
	f.IntVar(&c.LDB, "ldb", 0, "leading dimension of B")
	f.IntVar(&c.LDC, "ldc", 0, "leading dimension of C")
	f.IntVar(&c.IncX, "incx", 0, "increment of X")
	f.IntVar(&c.IncY, "incy", 0, "increment of Y")
	f.IntVar(&c.OffA, "offA", 0, "offset of A")
	f.IntVar(&c.OffBX, "offBX", 0, "offset of B or X")
	f.IntVar(&c.OffCY, "offCY", 0, "offset of C or Y")
	f.StringVar(&c.Platform, "platform", "", "OpenCL platform name")
	f.StringVar(&c.Device, "device", "", "OpenCL device name")
	f.StringVar(&c.BuildOptions, "build-options", "", "OpenCL compiler options")
	f.StringVar(&c.Pattern, "pattern", "", "input data pattern: random, unit or sawtooth")
	f.StringVar(&c.CL, "cl", "", "kernel file name")
	f.StringVar(&c.CPP, "cpp", "", "host program file name")
	f.BoolVar(&c.MultiKernel, "multi-kernel", false, "split the operation into a sequence of kernels")
	f.BoolVar(&c.SkipAccuracy, "skip-accuracy", false, "omit the reference computation and comparison")
	f.IntVar(&c.BlockSize, "block", 0, "panel width of the multi kernel split")
	return cmd
}

// resolve loads the config file, then lets every flag given on the command
// line override it
func (gf *generateFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	if gf.configFile == "" {
		return gf.cfg, nil
	}
	cfg, err := config.Load(gf.configFile)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	override := func(name string, dst, src interface{}) {
		if !flags.Changed(name) {
			return
		}
		switch d := dst.(type) {
		case *string:
			*d = *src.(*string)
		case *int:
			*d = *src.(*int)
		case *bool:
			*d = *src.(*bool)
		}
	}
	c := &gf.cfg
	override("function", &cfg.Function, &c.Function)
	override("order", &cfg.Order, &c.Order)
	override("side", &cfg.Side, &c.Side)
	override("uplo", &cfg.Uplo, &c.Uplo)
	override("transA", &cfg.TransA, &c.TransA)
	override("transB", &cfg.TransB, &c.TransB)
	override("diag", &cfg.Diag, &c.Diag)
	override("m", &cfg.M, &c.M)
	override("n", &cfg.N, &c.N)
	override("k", &cfg.K, &c.K)
	override("lda", &cfg.LDA, &c.LDA)
	override("ldb", &cfg.LDB, &c.LDB)
	override("ldc", &cfg.LDC, &c.LDC)
	override("incx", &cfg.IncX, &c.IncX)
	override("incy", &cfg.IncY, &c.IncY)
	override("offA", &cfg.OffA, &c.OffA)
	override("offBX", &cfg.OffBX, &c.OffBX)
	override("offCY", &cfg.OffCY, &c.OffCY)
	override("platform", &cfg.Platform, &c.Platform)
	override("device", &cfg.Device, &c.Device)
	override("build-options", &cfg.BuildOptions, &c.BuildOptions)
	override("pattern", &cfg.Pattern, &c.Pattern)
	override("cl", &cfg.CL, &c.CL)
	override("cpp", &cfg.CPP, &c.CPP)
	override("multi-kernel", &cfg.MultiKernel, &c.MultiKernel)
	override("skip-accuracy", &cfg.SkipAccuracy, &c.SkipAccuracy)
	override("block", &cfg.BlockSize, &c.BlockSize)
	return cfg, nil
}

func generate(cmd *cobra.Command, cfg config.Config, gf generateFlags) error {
	opts, err := cfg.DriverOptions()
	if err != nil {
		return err
	}
	opts.Log = cmd.OutOrStdout()
	if gf.bundle != "" {
		opts.Sink = driver.BundleSink{Path: gf.bundle, Comment: cfg.Function}
	} else {
		opts.Sink = driver.DirSink{Dir: gf.outDir}
	}

	if gf.check {
		device, err := utils.OpenDevice(cmd.OutOrStdout(), utils.OpenCLBackend(0, 0))
		if err != nil {
			return err
		}
		defer device.Free()
		kr := runner.NewRunner(device)
		kr.Log = cmd.OutOrStdout()
		defer kr.Free()
		opts.Checker = kr
	}
	return driver.Run(opts)
}
