package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"generate", "realign", "downsample", "version"} {
		assert.True(t, names[want], "rootCmd should register a %q subcommand", want)
	}
}

func TestGenerateCommandRunsAgainstLocalBackend(t *testing.T) {
	genDataDir = t.TempDir()
	genBB = []int64{0, 0, 0, 4, 4, 4}
	genBlockShape = []int64{2, 2, 2}

	var out bytes.Buffer
	generateCmd.SetOut(&out)
	require.NoError(t, runGenerate(generateCmd, nil))
}

func TestGenerateCommandRejectsMalformedBoundingBox(t *testing.T) {
	genBB = []int64{0, 0, 0}
	genBlockShape = []int64{2, 2, 2}
	require.Error(t, runGenerate(generateCmd, nil))
}
