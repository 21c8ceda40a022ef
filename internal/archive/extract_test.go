package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msgtrace/tracecheck/internal/models"
	"github.com/msgtrace/tracecheck/internal/testutil"
)

func TestExtractor_Extract(t *testing.T) {
	src := t.TempDir()
	scratch := t.TempDir()

	b := testutil.NewTraceBuilder(time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC)).
		Connect("1", "A:org:app").
		Disconnect("1", "A:org:app", 0)
	archivePath := b.WriteGzip(t, src, "imatrace_1.log.gz")

	x := NewExtractor(scratch, zerolog.Nop())
	out, err := x.Extract(archivePath)
	require.NoError(t, err)

	assert.Equal(t, scratch, filepath.Dir(out.Path))
	assert.Equal(t, archivePath, out.Archive)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, b.String(), string(data))
	assert.Equal(t, int64(len(data)), out.Size)

	require.NoError(t, out.Remove())
	_, err = os.Stat(out.Path)
	assert.True(t, os.IsNotExist(err))

	_, err = os.Stat(archivePath)
	assert.NoError(t, err, "archive must be left in place")

	// Removing twice is harmless.
	assert.NoError(t, out.Remove())
}

func TestExtractor_UniqueNames(t *testing.T) {
	src := t.TempDir()
	b := testutil.NewTraceBuilder(time.Now()).Noise("x")
	archivePath := b.WriteGzip(t, src, "a.log.gz")

	x := NewExtractor(t.TempDir(), zerolog.Nop())
	first, err := x.Extract(archivePath)
	require.NoError(t, err)
	second, err := x.Extract(archivePath)
	require.NoError(t, err)
	assert.NotEqual(t, first.Path, second.Path)
}

func TestExtractor_NotGzip(t *testing.T) {
	src := t.TempDir()
	path := filepath.Join(src, "plain.log.gz")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

	_, err := NewExtractor(t.TempDir(), zerolog.Nop()).Extract(path)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindIO))
}

func TestExtractor_MissingArchive(t *testing.T) {
	_, err := NewExtractor(t.TempDir(), zerolog.Nop()).Extract(filepath.Join(t.TempDir(), "none.gz"))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindIO))
}
