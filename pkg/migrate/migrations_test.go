package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestMigrationFilesAreValid(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestSubscriptionsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_subscriptions.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no subscriptions migration file found")

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS subscriptions",
		"cancel_by_date DATE NOT NULL",
		"CHECK (amount >= 0)",
		"CHECK (proof_status IN ('not-required', 'missing', 'incomplete', 'complete'))",
		"DROP TABLE IF EXISTS subscriptions",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestReminderDeliveriesMigrationIsUnique(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_reminder_deliveries.sql"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Contains(t, string(data), "ON reminder_deliveries (subscription_id, cancel_by_date, offset_days)")
}

func TestRunUpAndDownOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	require.NoError(t, Run(ctx, sqlDB, DialectSQLite, EmbeddedDir, "up"))

	for _, table := range []string{"subscriptions", "proof_documents", "timeline_events", "user_plans", "reminder_deliveries"} {
		require.True(t, conn.Migrator().HasTable(table), "expected table %s", table)
	}

	require.NoError(t, MigrateToVersion(ctx, sqlDB, DialectSQLite, EmbeddedDir, "20260301120000"))
	require.True(t, conn.Migrator().HasTable("subscriptions"))
	require.False(t, conn.Migrator().HasTable("reminder_deliveries"))
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, ValidateDir(EmbeddedDir))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Reminder Channel")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_reminder_channel.sql"))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add reminder-channel")
	require.ErrorContains(t, err, "already exists")

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestCreateSQLMigrationSortsAfterNewest(t *testing.T) {
	dir := t.TempDir()
	future := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20991231235959_future.sql"), []byte(future), 0o644))

	path, err := createSQLMigration(dir, "next", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "21000101000000_next.sql", filepath.Base(path))

	stamp := strings.SplitN(filepath.Base(path), "_", 2)[0]
	_, err = time.Parse(versionLayout, stamp)
	require.NoError(t, err)
}

func TestNextVersion(t *testing.T) {
	cases := []struct {
		raw  string
		want int64
	}{
		{"20260301120000", 20260301120001},
		{"20260301235959", 20260302000000},
		{"20991231235959", 21000101000000},
		{"00042", 43},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			v, err := strconv.ParseInt(tc.raw, 10, 64)
			require.NoError(t, err)
			require.Equal(t, tc.want, nextVersion(tc.raw, v))
		})
	}
}

func TestValidateFSRejectsBrokenMigrations(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {"20260301_x.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;")}},
		"duplicate version": {
			"20260301120000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;")},
			"20260301120000_b.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;")},
		},
		"duplicate name": {
			"20260301120000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;")},
			"20260301120100_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;")},
		},
		"missing down":     {"20260301120000_a.sql": {Data: []byte("-- +goose Up\nSELECT 1;")}},
		"down before up":   {"20260301120000_a.sql": {Data: []byte("-- +goose Down\nSELECT 1;\n-- +goose Up\nSELECT 1;")}},
		"empty up section": {"20260301120000_a.sql": {Data: []byte("-- +goose Up\n-- nothing\n-- +goose Down\nSELECT 1;")}},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, ValidateFS(fsys))
		})
	}
	require.NoError(t, ValidateFS(fstest.MapFS{"notes.txt": {Data: []byte("ignored")}}))
}
