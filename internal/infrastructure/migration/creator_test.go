package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clinic/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add reorder index", "add_reorder_index"},
		{"Add-Reorder-Index", "add_reorder_index"},
		{"ADD_REORDER_INDEX", "add_reorder_index"},
		{"add__reorder__index", "add_reorder_index"},
		{"Blend Recipes 2", "blend_recipes_2"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- test"), 0o644))
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000001_create_products.up.sql", "000001_create_products.down.sql",
		"000003_create_inventory_movements.up.sql", "000003_create_inventory_movements.down.sql",
	)

	mf, err := CreateMigration(dir, "Add blend recipes", "Recipes for fixed blends")
	require.NoError(t, err)

	assert.Equal(t, uint(4), mf.Version)
	assert.Equal(t, "000004_add_blend_recipes.up.sql", filepath.Base(mf.UpPath))
	assert.Equal(t, "000004_add_blend_recipes.down.sql", filepath.Base(mf.DownPath))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_blend_recipes")
	assert.Contains(t, string(up), "-- Recipes for fixed blends")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Rollback: add_blend_recipes")
}

func TestCreateMigration_FirstInNewDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)
	assert.Equal(t, uint(1), mf.Version)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.NotContains(t, string(up), "-- \n")
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir,
		"000010_add_index.up.sql", "000010_add_index.down.sql",
		"000002_create_units.up.sql", "000002_create_units.down.sql",
		"README.md", "notes.up.sql", "abc_bad_version.up.sql",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "000099_dir.up.sql"), 0o755))

	list, err := ListMigrations(dir)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "000002_create_units", list[0].String())
	assert.Equal(t, "000010_add_index", list[1].String())
}

func TestListMigrations_MissingDirectory(t *testing.T) {
	list, err := ListMigrations(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	names, err := fs.Glob(migrations.FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for i, name := range names {
		base := strings.TrimSuffix(name, ".up.sql")
		_, err := fs.Stat(migrations.FS, base+".down.sql")
		assert.NoError(t, err, "missing down migration for %s", base)
		assert.True(t, strings.HasPrefix(base, Migration{Version: uint(i + 1)}.String()[:versionWidth]),
			"migration %s out of sequence", base)
	}
}

func TestMigrateLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &migrateLogger{sugar: zap.New(core).Sugar()}

	l.Printf("Start buffering %d/u %s\n", 3, "create_inventory_movements")
	assert.False(t, l.Verbose())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Start buffering 3/u create_inventory_movements", logs.All()[0].Message)
}
