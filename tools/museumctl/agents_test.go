package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tccoin/museum-agent/pkg/config"
)

func TestListAgentSets(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listAgentSets(&out))

	assert.Contains(t, out.String(), "museumAgent (default)")
	assert.Contains(t, out.String(), "simpleExample")
	assert.Contains(t, out.String(), "greeter")
}

func TestDescribeAgentSet(t *testing.T) {
	set, err := config.BuiltinAgentSet("simpleExample")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, describeAgentSet(&out, set))

	text := out.String()
	assert.Contains(t, text, "simpleExample (builtin:simpleExample)")
	assert.Regexp(t, `greeter \*\s+-\s+haiku\s+transfer_to_haiku`, text)
	assert.Regexp(t, `haiku\s+-\s+-\s+-`, text)
}

func TestAgentsCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"agents", "museumAgent"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Regexp(t, `Fetch \*\s+-\s+-\s+show_image`, out.String())
}
