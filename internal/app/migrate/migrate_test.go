package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceDefaultsToEmbeddedMigrations(t *testing.T) {
	src, err := Source("")
	require.NoError(t, err)

	data, err := fs.ReadFile(src, "00001_init.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- +goose Up")
	assert.Contains(t, string(data), "users_email_key")
	assert.NotContains(t, string(data), "cvv")
}

func TestSourceUsesDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "00002_extra.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o600))

	src, err := Source(dir)
	require.NoError(t, err)
	_, err = fs.Stat(src, "00002_extra.sql")
	assert.NoError(t, err)
}

func TestSourceRejectsMissingOrFile(t *testing.T) {
	_, err := Source(filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.sql")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = Source(file)
	assert.Error(t, err)
}

func TestNewValidatesArguments(t *testing.T) {
	src, err := Source("")
	require.NoError(t, err)

	_, err = New("", src, nil)
	assert.Error(t, err)

	_, err = New("postgres://localhost/portal", nil, nil)
	assert.Error(t, err)

	r, err := New("postgres://localhost/portal", src, nil)
	require.NoError(t, err)
	assert.NotNil(t, r.log)
}
