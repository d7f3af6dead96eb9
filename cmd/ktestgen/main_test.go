package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateFromFlags(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "generate", "--function", "sgemm", "--m", "64", "--n", "64", "--k", "64", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Generating 'sgemm.cl' ...")
	assert.FileExists(t, filepath.Join(dir, "sgemm.cl"))
	assert.FileExists(t, filepath.Join(dir, "sgemm.cpp"))
}

// TestFlagsOverrideConfig flags set on the command line win over the YAML file
func TestFlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("function: dtrsm\nm: 100\nn: 10\nuplo: lower\ncl: t.cl\ncpp: t.cpp\n"), 0o644))

	_, err := execute(t, "generate", "-f", cfgPath, "-o", dir, "--multi-kernel", "--block", "40")
	require.NoError(t, err)
	for _, name := range []string{"0_trsm_t.cl", "1_gemm_t.cl", "2_trsm_t.cl", "t.cpp"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestGenerateBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txtar")
	_, err := execute(t, "generate", "--function", "zsyrk", "--n", "16", "--k", "8", "--bundle", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestGenerateErrors(t *testing.T) {
	_, err := execute(t, "generate")
	assert.Error(t, err, "no function")

	_, err = execute(t, "generate", "-f", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "generate", "extra")
	assert.Error(t, err)
}
