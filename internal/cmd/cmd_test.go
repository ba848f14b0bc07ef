package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempBook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.md")
	content := "---\ntitle: T\nauthor: A\n---\n\n# One\n\nHello **world**\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func executeCommand(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := Root()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return out.String()
}

func TestFmtCmd_RoundTripsLesson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lesson.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\n\n\n\nBody **bold**\n"), 0o600))

	out := executeCommand(t, "fmt", path)
	assert.Equal(t, "# Title\n\nBody **bold**\n", out)
}

func TestConvertCmd_ToJSON(t *testing.T) {
	out := executeCommand(t, "convert", "--to", "json", writeTempBook(t))
	assert.Contains(t, out, `"title": "T"`)
	assert.Contains(t, out, `"lessons"`)
}

func TestConvertCmd_UnknownFormat(t *testing.T) {
	root := Root()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"convert", "--to", "pdf", writeTempBook(t)})
	assert.Error(t, root.Execute())
}

func TestTocCmd(t *testing.T) {
	out := executeCommand(t, "toc", writeTempBook(t))
	assert.Contains(t, out, "One")
}
