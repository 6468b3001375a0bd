package backup

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
}

func TestCreateAndExtract(t *testing.T) {
	base := t.TempDir()
	data := filepath.Join(base, ".qsched")
	writeTree(t, data, map[string]string{
		"schedules/demo.json":  `{"name":"demo"}`,
		"calendars/std.json":   `{"name":"std"}`,
		"index.json":           `{}`,
		"backups/old.tar.gz":   "stale",
		"qsched.db":            "sqlite",
		"schedules/nested/x.j": "x",
	})

	archive := filepath.Join(t.TempDir(), FileName("", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
	require.NoError(t, Create(data, archive, filepath.Join(data, "backups")))
	assert.Equal(t, "qsched_backup_20240102_030405.tar.gz", filepath.Base(archive))

	restored := t.TempDir()
	require.NoError(t, Extract(archive, restored))

	got, err := os.ReadFile(filepath.Join(restored, ".qsched", "schedules", "demo.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"demo"}`, string(got))

	got, err = os.ReadFile(filepath.Join(restored, ".qsched", "qsched.db"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", string(got))

	_, err = os.Stat(filepath.Join(restored, ".qsched", "backups"))
	assert.True(t, os.IsNotExist(err))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	f, err := os.Create(archive)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	body := []byte("pwned")
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape.txt", Mode: 0600, Size: int64(len(body)), Typeflag: tar.TypeReg}))
	_, err = tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	target := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(target, 0700))
	err = Extract(archive, target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")

	_, statErr := os.Stat(filepath.Join(filepath.Dir(target), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestListAndCleanup(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	old := filepath.Join(dir, FileName("", now.AddDate(0, 0, -40)))
	recent := filepath.Join(dir, FileName("pre_restore", now.AddDate(0, 0, -2)))
	other := filepath.Join(dir, "unrelated.tar.gz")
	for _, p := range []string{old, recent, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0600))
	}
	require.NoError(t, os.Chtimes(old, now.AddDate(0, 0, -40), now.AddDate(0, 0, -40)))
	require.NoError(t, os.Chtimes(recent, now.AddDate(0, 0, -2), now.AddDate(0, 0, -2)))

	backups, err := List(dir)
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, filepath.Base(recent), backups[0].Name)
	assert.Equal(t, filepath.Base(old), backups[1].Name)

	removed, err := Cleanup(dir, 30, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	backups, err = List(dir)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, filepath.Base(recent), backups[0].Name)
}

func TestFormatAge(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, "today", FormatAge(time.Hour))
	assert.Equal(t, "1 day", FormatAge(day))
	assert.Equal(t, "3 days", FormatAge(3*day))
	assert.Equal(t, "1 week", FormatAge(8*day))
	assert.Equal(t, "2 weeks", FormatAge(15*day))
	assert.Equal(t, "1 month", FormatAge(31*day))
	assert.Equal(t, "3 months", FormatAge(95*day))
}
