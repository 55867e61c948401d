package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runPreview(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(newApp())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"preview"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPreviewTrialDefaults(t *testing.T) {
	out, err := runPreview(t, "--renewal", "2026-03-15", "--intent", "trial", "--as-of", "2026-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "rule:       1-day-before")
	assert.Contains(t, out, "cancel by:  2026-03-14")
	assert.Contains(t, out, "days until: 13")
	assert.Contains(t, out, "7d=true 3d=true 1d=true day-of=true")
}

func TestPreviewKeepIsAnytime(t *testing.T) {
	out, err := runPreview(t, "--renewal", "2026-03-15", "--intent", "keep")
	require.NoError(t, err)
	assert.Contains(t, out, "cancel by:  anytime")
	assert.Contains(t, out, "7d=false")
}

func TestPreviewCustomRequiresDate(t *testing.T) {
	_, err := runPreview(t, "--renewal", "2026-03-15", "--intent", "cancel-soon", "--rule", "custom")
	require.Error(t, err)
}

func TestPreviewCustomDate(t *testing.T) {
	out, err := runPreview(t, "--renewal", "2026-03-15", "--intent", "cancel-soon", "--rule", "custom", "--custom", "2026-03-05", "--as-of", "2026-03-01")
	require.NoError(t, err)
	assert.Contains(t, out, "cancel by:  2026-03-05")
	assert.Contains(t, out, "days until: 4")
}

func TestPreviewRejectsBadIntent(t *testing.T) {
	_, err := runPreview(t, "--renewal", "2026-03-15", "--intent", "maybe")
	require.Error(t, err)
}

func TestPreviewRequiresRenewal(t *testing.T) {
	_, err := runPreview(t, "--intent", "trial")
	require.Error(t, err)
}
