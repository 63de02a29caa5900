package calib

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "calib.db")
	reg, err := OpenRegistry(context.Background(), "sqlite", dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func mustParse(t *testing.T, name, body string) *Table {
	t.Helper()
	table, err := ParseTable(strings.NewReader(body), name)
	require.NoError(t, err)
	return table
}

func TestRegistryImportAndGet(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)

	l2 := mustParse(t, "L2Relative", l2Table)
	sf := mustParse(t, "Summer16_JER", "formula: scale-factor\nbins: JetEta\n0 0.5 1.109 1.101 1.117\n0.5 5 1.138 1.125 1.151\n")

	batch, err := reg.Import(ctx, "Summer16_V11", l2, sf)
	require.NoError(t, err)
	assert.NotEmpty(t, batch)

	got, err := reg.Get(ctx, "Summer16_V11", "L2Relative")
	require.NoError(t, err)
	if diff := cmp.Diff(l2, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("registry round trip mismatch (-want +got):\n%s", diff)
	}

	labels, err := reg.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Summer16_V11"}, labels)

	names, err := reg.Names(ctx, "Summer16_V11")
	require.NoError(t, err)
	assert.Equal(t, []string{"L2Relative", "Summer16_JER"}, names)
}

func TestRegistryReplacesTableOnReimport(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)

	_, err := reg.Import(ctx, "tag", mustParse(t, "L3Absolute", "formula: constant\nbins: JetEta\n-5 5 1.0\n"))
	require.NoError(t, err)
	_, err = reg.Import(ctx, "tag", mustParse(t, "L3Absolute", "formula: constant\nbins: JetEta\n-5 0 0.98\n0 5 0.99\n"))
	require.NoError(t, err)

	got, err := reg.Get(ctx, "tag", "L3Absolute")
	require.NoError(t, err)
	require.Len(t, got.Records, 2)
	assert.Equal(t, []float64{0.99}, got.Records[1].Params)
}

func TestRegistryUnknownLabel(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)

	_, err := reg.Get(ctx, "missing", "L1FastJet")
	assert.ErrorIs(t, err, ErrLabelNotFound)

	_, err = reg.Labeled("missing").Load(ctx, "L1FastJet")
	assert.ErrorIs(t, err, ErrLabelNotFound)
}

func TestRegistryRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	reg := openTestRegistry(t)

	_, err := reg.Import(ctx, "", mustParse(t, "c", "formula: constant\nbins: JetEta\n-5 5 1.0\n"))
	assert.Error(t, err)

	_, err = reg.Import(ctx, "tag", &Table{Name: "broken", Formula: "nope"})
	assert.Error(t, err)

	_, err = OpenRegistry(ctx, "oracle", "whatever", nil)
	assert.Error(t, err)
}

func TestRegistryReopenKeepsSchema(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "calib.db")

	reg, err := OpenRegistry(ctx, "sqlite", dsn, nil)
	require.NoError(t, err)
	_, err = reg.Import(ctx, "tag", mustParse(t, "c", "formula: constant\nbins: JetEta\n-5 5 1.0\n"))
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	reg, err = OpenRegistry(ctx, "sqlite", dsn, nil)
	require.NoError(t, err)
	defer reg.Close()

	table, err := reg.Labeled("tag").Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, FormulaConstant, table.Formula)
}

func TestRebind(t *testing.T) {
	pg := &Registry{dialect: "postgres"}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &Registry{dialect: "sqlite"}
	assert.Equal(t, "WHERE x = ?", lite.rebind("WHERE x = ?"))
}

func TestMapSource(t *testing.T) {
	table := mustParse(t, "c", "formula: constant\nbins: JetEta\n-5 5 1.0\n")
	src := MapSource{"c": table}

	got, err := src.Load(context.Background(), "c")
	require.NoError(t, err)
	assert.Same(t, table, got)

	_, err = src.Load(context.Background(), "d")
	assert.ErrorIs(t, err, ErrLabelNotFound)
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		want    string
		wantErr bool
	}{
		{driver: "sqlite", want: "sqlite"},
		{driver: "postgres", want: "postgres"},
		{driver: "pgx", want: "postgres"},
		{driver: "mysql", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := DialectFor(tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryMigratorReportsVersion(t *testing.T) {
	reg := openTestRegistry(t)

	pending, err := NewMigrator(reg.db, "sqlite", nil).GetPendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	version, err := NewMigrator(reg.db, "sqlite", nil).GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
