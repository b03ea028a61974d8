package clidriver

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOptionsDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(nil))

	opts, err := BuildOptions(fs)
	require.NoError(t, err)

	assert.False(t, opts.Verbose)
	assert.Equal(t, 4096, opts.FFIHeapSize)
	assert.Empty(t, opts.ModulePaths)
	assert.Empty(t, opts.Definitions)
}

func TestBuildOptionsOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--verbose", "--ffi-heap-size=8192", "--heap-size=65536"}))

	opts, err := BuildOptions(fs)
	require.NoError(t, err)

	assert.True(t, opts.Verbose)
	assert.Equal(t, 8192, opts.FFIHeapSize)
	assert.Equal(t, 65536, opts.HeapSize)
}

func TestBuildOptionsModulePathGlob(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--module-path=*.go"}))

	opts, err := BuildOptions(fs)
	require.NoError(t, err)
	assert.NotEmpty(t, opts.ModulePaths, "glob should match this package's own .go files")
}

func TestSampleProducesMainModule(t *testing.T) {
	modules, mainModule := Sample()
	require.Contains(t, modules, mainModule)

	root := modules[mainModule]
	require.Len(t, root.Children, 1)
	assert.Equal(t, "declaration", root.Children[0].Kind)
	assert.Equal(t, "::", root.Children[0].Text)
}
