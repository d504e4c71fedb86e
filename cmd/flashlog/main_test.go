package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashlog/config"
)

func run(t *testing.T, image string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--image", image}, args...))
	require.NoError(t, root.Execute(), out.String())
	return out.String()
}

func TestCLI_WriteLogDump(t *testing.T) {
	t.Setenv(config.PathEnvVar, "")
	t.Setenv("FLASHLOG_LOGGING_LEVEL", "error")
	image := filepath.Join(t.TempDir(), "flash.img")

	run(t, image, "write", "raw", "entry\n")
	run(t, image, "log", "--level", "wrn", "--source", "test", "disk", "almost", "full")

	dump := run(t, image, "dump", "--chunk", "7")
	assert.True(t, strings.HasPrefix(dump, "raw entry\n"))
	assert.Contains(t, dump, "<wrn> test: disk almost full\n")

	decoded := run(t, image, "dump", "--decode", "text")
	assert.Contains(t, decoded, "# undecodable entry")
	assert.Contains(t, decoded, `"msg":"disk almost full"`)

	stat := run(t, image, "stat")
	assert.Contains(t, stat, "ready:          true")
	assert.Contains(t, stat, "sectors:        16 (1 used)")

	run(t, image, "erase")
	assert.Empty(t, run(t, image, "dump"))
}

func TestCLI_RejectsBadArgs(t *testing.T) {
	t.Setenv(config.PathEnvVar, "")
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--image", filepath.Join(t.TempDir(), "x.img"), "log", "--level", "loud", "msg"})
	assert.Error(t, root.Execute())
}

func TestCLI_DumpRejectsBadChunk(t *testing.T) {
	t.Setenv(config.PathEnvVar, "")
	for _, chunk := range []string{"0", "-1"} {
		root := newRootCommand()
		root.SetOut(&bytes.Buffer{})
		root.SetErr(&bytes.Buffer{})
		root.SetArgs([]string{"--image", filepath.Join(t.TempDir(), "x.img"), "dump", "--chunk", chunk})
		err := root.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--chunk must be positive")
	}
}
