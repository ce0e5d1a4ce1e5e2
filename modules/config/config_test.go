package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sample = `
; comment
[branchless "core"]
	mainBranch = develop
[branchless "hint"]
	smartlog-fix-abandoned = false
[branchless "rewrite"]
	workers = 4
`

func TestParseAndGet(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	v, ok := cfg.Get("branchless.core.mainbranch")
	require.True(t, ok)
	require.Equal(t, "develop", v)
}

func TestSettingsDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	s := NewSettings(cfg)
	require.Equal(t, "master", s.MainBranchName())
	require.False(t, s.HintDisabled("anything"))
	require.Equal(t, 8, s.WorkerCount(8))
}

func TestSettingsFromConfig(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	s := NewSettings(cfg)
	require.Equal(t, "develop", s.MainBranchName())
	require.True(t, s.HintDisabled("smartlog-fix-abandoned"))
	require.Equal(t, 4, s.WorkerCount(8))
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Load("/nonexistent/path/to/config")
	require.NoError(t, err)
	_, ok := cfg.Get("branchless.core.mainbranch")
	require.False(t, ok)
}
