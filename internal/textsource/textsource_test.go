package textsource

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_PlainText(t *testing.T) {
	path := writeFile(t, "story.txt", "\xef\xbb\xbfEs war einmal\r\nein König.")
	src, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatText, src.Format)
	assert.Equal(t, "story.txt", src.Name)
	assert.Equal(t, "Es war einmal\nein König.", src.Text)
}

func TestLoad_SRT(t *testing.T) {
	srt := "1\n00:00:01,000 --> 00:00:02,000\nHallo Welt\n\n2\n00:00:03,000 --> 00:00:04,000\nWie geht's?\nGut.\n"
	src, err := Load(writeFile(t, "ep1.srt", srt))
	require.NoError(t, err)
	assert.Equal(t, FormatSubtitle, src.Format)
	assert.Equal(t, "Hallo Welt\n\nWie geht's?\nGut.", src.Text)
}

func TestLoad_VTT(t *testing.T) {
	vtt := "WEBVTT\n\n00:00:01.000 --> 00:00:02.000\nBonjour\n"
	src, err := Load(writeFile(t, "ep1.vtt", vtt))
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", src.Text)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = Load(t.TempDir())
	assert.ErrorContains(t, err, "directory")

	_, err = Load(writeFile(t, "bad.txt", "ok \xff\xfe"))
	assert.ErrorContains(t, err, "UTF-8")
}

func TestRead_TooLarge(t *testing.T) {
	_, err := Read(strings.NewReader(strings.Repeat("a", MaxFileSize+1)), "stdin")
	assert.ErrorContains(t, err, "too large")
}

func TestIsSubtitle(t *testing.T) {
	assert.True(t, IsSubtitle("a.SRT"))
	assert.True(t, IsSubtitle("b.ass"))
	assert.False(t, IsSubtitle("c.txt"))
	assert.Contains(t, SupportedExtensions(), ".vtt")
}
