// file: cmd/root_test.go
// version: 1.0.0
// guid: 9b0c1d2e-3f4a-4b5c-8d6e-7f8a9b0c1d2e

package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdfalk/epub-enricher/internal/config"
	"github.com/jdfalk/epub-enricher/internal/decision"
)

func TestPolicyForMode(t *testing.T) {
	cfg := config.Default()
	var out bytes.Buffer

	tests := []struct {
		mode string
		want any
	}{
		{"auto", decision.Automatic{}},
		{"trust", decision.Automatic{AlwaysTrust: true}},
		{"threshold", nil}, // type checked below
		{"", nil},
	}
	for _, tt := range tests {
		policy, err := policyForMode(tt.mode, cfg, strings.NewReader(""), &out)
		require.NoError(t, err, "mode %q", tt.mode)
		require.NotNil(t, policy)
		if tt.want != nil {
			assert.Equal(t, tt.want, policy)
		}
	}

	policy, err := policyForMode("bulk", cfg, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.IsType(t, decision.BulkConfirm{}, policy)

	policy, err = policyForMode("review", cfg, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.IsType(t, decision.FieldReview{}, policy)

	_, err = policyForMode("yolo", cfg, strings.NewReader(""), &out)
	assert.Error(t, err)
}

func TestStdinApprover(t *testing.T) {
	var out bytes.Buffer
	approve := stdinApprover(strings.NewReader("y\nno\nYES\n"), &out)

	ok, err := approve("title", "Old", "New")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, out.String(), `Replace title "Old" with "New"?`)

	ok, err = approve("publisher", "", "Ace Books")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), `Set publisher to "Ace Books"?`)

	ok, err = approve("date", "1965", "1965-08-01")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStdinApproverExhaustedInputRejects(t *testing.T) {
	var out bytes.Buffer
	approve := stdinApprover(strings.NewReader(""), &out)

	ok, err := approve("title", "Old", "New")
	assert.False(t, ok)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCommandsRegistered(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"process", "find", "inspect", "watch", "config"} {
		assert.Contains(t, names, want)
	}
}
