package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunValidatesEmbeddedSetWithoutConfig(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-cmd", "validate"}, &out))
	require.Contains(t, out.String(), "migration validation passed")
}

func TestRunCreatesMigrationInDirectory(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"-cmd", "create", "-dir", dir, "-name", "Add Reminder Index"}, &out))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasSuffix(entries[0].Name(), "_add_reminder_index.sql"), entries[0].Name())
	require.Contains(t, out.String(), filepath.Join(dir, entries[0].Name()))
}

func TestRunRejectsBadInvocations(t *testing.T) {
	ctx := context.Background()
	require.ErrorContains(t, run(ctx, []string{"-cmd", "create"}, &bytes.Buffer{}), "-name is required")
	require.ErrorContains(t, run(ctx, []string{"-cmd", "version"}, &bytes.Buffer{}), "-version is required")
	require.ErrorContains(t, run(ctx, []string{"-cmd", "sideways"}, &bytes.Buffer{}), "unknown -cmd")
	require.ErrorIs(t, run(ctx, []string{"-bogus"}, &bytes.Buffer{}), errUsage)
}
