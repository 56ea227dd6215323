// Package textsource decodes files dropped into the reader into plain text.
package textsource

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/asticode/go-astisub"
)

// MaxFileSize caps how much text a single load reads.
const MaxFileSize = 8 << 20

// Format is the detected kind of input.
type Format string

const (
	FormatText     Format = "text"
	FormatSubtitle Format = "subtitle"
)

var subtitleExts = map[string]bool{
	".srt":  true,
	".vtt":  true,
	".ssa":  true,
	".ass":  true,
	".ttml": true,
	".stl":  true,
}

// Source is one decoded text ready for tokenization.
type Source struct {
	Name   string
	Format Format
	Text   string
}

// IsSubtitle reports whether path has a subtitle extension.
func IsSubtitle(path string) bool {
	return subtitleExts[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions lists the subtitle extensions Load understands in
// addition to plain text.
func SupportedExtensions() []string {
	return []string{".txt", ".srt", ".vtt", ".ssa", ".ass", ".ttml", ".stl"}
}

// Load reads path. Subtitle files are flattened to their dialogue, one cue
// per paragraph; anything else is read as UTF-8 text.
func Load(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Source{}, err
	}
	if info.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return Source{}, fmt.Errorf("%s is too large (%d bytes, max %d)", path, info.Size(), MaxFileSize)
	}

	if IsSubtitle(path) {
		subs, err := astisub.OpenFile(path)
		if err != nil {
			return Source{}, fmt.Errorf("failed to parse subtitles: %w", err)
		}
		text := FromSubtitles(subs)
		if strings.TrimSpace(text) == "" {
			return Source{}, fmt.Errorf("file contains subtitles but no dialogue text")
		}
		return Source{Name: filepath.Base(path), Format: FormatSubtitle, Text: text}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Source{}, err
	}
	defer f.Close()
	return Read(f, filepath.Base(path))
}

// Read decodes plain text from r.
func Read(r io.Reader, name string) (Source, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return Source{}, err
	}
	if len(data) > MaxFileSize {
		return Source{}, fmt.Errorf("%s is too large (max %d bytes)", name, MaxFileSize)
	}
	text, err := decode(data)
	if err != nil {
		return Source{}, fmt.Errorf("%s: %w", name, err)
	}
	return Source{Name: name, Format: FormatText, Text: text}, nil
}

// FromSubtitles joins each cue's lines with newlines and separates cues
// with a blank line.
func FromSubtitles(subs *astisub.Subtitles) string {
	var b strings.Builder
	for _, item := range subs.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, l := range item.Lines {
			if s := strings.TrimSpace(l.String()); s != "" {
				lines = append(lines, s)
			}
		}
		if len(lines) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

func decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}
