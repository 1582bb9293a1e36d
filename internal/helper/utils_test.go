package helper

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	id, err := GenerateUUID()
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)

	other, err := GenerateUUID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestCreateFolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, CreateFolder(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// idempotent
	assert.NoError(t, CreateFolder(dir))
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"total_rows": 3})
	assert.Equal(t, "{\n  \"total_rows\": 3\n}\n", buf.String())
}

func TestStageFiles(t *testing.T) {
	srcDir := t.TempDir()
	uploads := filepath.Join(t.TempDir(), "uploads")

	src := filepath.Join(srcDir, "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	staged, err := StageFiles(uploads, []string{src})
	require.NoError(t, err)
	require.Len(t, staged, 1)
	assert.Equal(t, filepath.Join(uploads, "notes.txt"), staged[0])

	data, err := os.ReadFile(staged[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// already staged files are not copied onto themselves
	again, err := StageFiles(uploads, staged)
	require.NoError(t, err)
	assert.Equal(t, staged, again)
}

func TestStageFiles_MissingSourceIsPassedThrough(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.pdf")
	staged, err := StageFiles(t.TempDir(), []string{missing})
	require.NoError(t, err)
	assert.Equal(t, []string{missing}, staged)
}

func TestStageFiles_SameBaseNameKeepsBothFiles(t *testing.T) {
	root := t.TempDir()
	uploads := filepath.Join(t.TempDir(), "uploads")

	first := filepath.Join(root, "a", "report.txt")
	second := filepath.Join(root, "b", "report.txt")
	for path, body := range map[string]string{first: "quarterly revenue", second: "holiday schedule"} {
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	staged, err := StageFiles(uploads, []string{first, second})
	require.NoError(t, err)
	require.Len(t, staged, 2)
	assert.NotEqual(t, staged[0], staged[1])
	assert.Equal(t, "report.txt", filepath.Base(staged[0]))
	assert.Equal(t, "report.txt", filepath.Base(staged[1]))

	got := make([]string, 0, len(staged))
	for _, p := range staged {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.Equal(t, []string{"quarterly revenue", "holiday schedule"}, got)
}
