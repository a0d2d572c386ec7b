package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["analyze"])
	assert.True(t, names["jobs"])
}

func TestAnalyzeRequiresArgs(t *testing.T) {
	err := analyzeCmd.Args(analyzeCmd, nil)
	require.Error(t, err)

	err = analyzeCmd.Args(analyzeCmd, []string{"what", "are", "the", "best", "crm", "tools"})
	assert.NoError(t, err)
}
