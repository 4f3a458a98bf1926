package loaders

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestDirLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "# Notes\nsome markdown")
	writeFile(t, dir, "data.txt", "plain text")
	writeFile(t, dir, "page.html", "<html><body><p>html body</p><script>junk()</script></body></html>")
	writeFile(t, dir, "binary.bin", "ignored")
	writeFile(t, dir, "empty.txt", "   ")

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	writeFile(t, sub, "deep.txt", "nested content")

	docs, err := NewDirLoader(dir).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 4)

	contents := map[string]bool{}
	for _, d := range docs {
		contents[d.Content] = true
	}
	assert.Contains(t, contents, "# Notes\nsome markdown")
	assert.Contains(t, contents, "nested content")
	assert.Contains(t, contents, "html body", "html must be flattened to text")
}

func TestDirLoader_MissingPath(t *testing.T) {
	_, err := NewDirLoader("/does/not/exist").Load(context.Background())
	assert.Error(t, err)
}

func TestDirLoader_FileNotDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f.txt", "x")
	_, err := NewDirLoader(filepath.Join(dir, "f.txt")).Load(context.Background())
	assert.Error(t, err)
}
