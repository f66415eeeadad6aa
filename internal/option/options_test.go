package option

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmcore/pmcore/internal/reqport"
)

func noEnv(string) string { return "" }

func TestParseZoneAndHostZoneMutuallyExclusive(t *testing.T) {
	_, err := Parse([]string{"-Z", "UTC", "-z"}, noEnv)
	require.Error(t, err)
}

func TestParseWindowRequiresArchiveContext(t *testing.T) {
	_, err := Parse([]string{"-h", "myhost", "-S", "@1:00"}, noEnv)
	require.Error(t, err)
}

func TestParseWindowAllowedWithArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "foo.0")
	require.NoError(t, os.WriteFile(archive, []byte{}, 0o644))

	opts, err := Parse([]string{"-a", archive, "-S", "@1:00", "-T", "@2:00"}, noEnv)
	require.NoError(t, err)
	require.Equal(t, ContextArchive, opts.Context)
	require.Equal(t, "@1:00", opts.WindowStart)
}

func TestParseArchiveFolioResolvesRelativeToFolioDir(t *testing.T) {
	dir := t.TempDir()
	folio := filepath.Join(dir, "myfolio")
	content := "PCPFolio\nVersion: 1\nArchive: localhost data/archive.0\n"
	require.NoError(t, os.WriteFile(folio, []byte(content), 0o644))

	archives, err := ParseArchiveFolio(folio)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "data/archive.0")}, archives)
}

func TestParseArchiveFolioRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	folio := filepath.Join(dir, "bad")
	require.NoError(t, os.WriteFile(folio, []byte("nope\nVersion: 1\n"), 0o644))

	_, err := ParseArchiveFolio(folio)
	require.Error(t, err)
}

func TestParseArchiveFolioRejectsMissingPath(t *testing.T) {
	dir := t.TempDir()
	folio := filepath.Join(dir, "bad2")
	require.NoError(t, os.WriteFile(folio, []byte("PCPFolio\nVersion: 1\nArchive: localhost\n"), 0o644))

	_, err := ParseArchiveFolio(folio)
	require.Error(t, err)
}

func TestParseFamilyDefaultsToAuto(t *testing.T) {
	opts, err := Parse(nil, noEnv)
	require.NoError(t, err)
	require.Equal(t, reqport.FamilyAuto, opts.Ports.Family)
}
