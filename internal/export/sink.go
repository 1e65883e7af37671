// Package export saves synthesized audio to disk.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

const (
	slugWords = 6
	slugMax   = 48
)

// FileSink writes exported payloads into a directory. If Path is set it is
// used verbatim as the output file instead of Dir plus the suggested name.
type FileSink struct {
	Dir  string
	Path string
}

var _ tts.DownloadSink = (*FileSink)(nil)

// Save writes payload and returns the absolute path written.
func (s *FileSink) Save(ctx context.Context, payload []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &tts.CancelledError{Err: err}
	}

	target, err := s.target(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".readaloud-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to save audio: %w", err)
	}

	log.Info("Saved audio", "path", target, "size", humanize.Bytes(uint64(len(payload))))
	return target, nil
}

func (s *FileSink) target(filename string) (string, error) {
	path := s.Path
	if path == "" {
		dir := s.Dir
		if dir == "" {
			dir = "."
		}
		path = filepath.Join(dir, filename)
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", &tts.ValidationError{Field: "output", Reason: err.Error()}
	}
	return filepath.Abs(expanded)
}

// SuggestName builds a file name from the first words of text and a
// timestamp, for example "hello-world-20250102-150405.mp3".
func SuggestName(text string, now time.Time, format tts.Format) string {
	slug := Slug(text)
	if slug == "" {
		slug = "speech"
	}
	return slug + "-" + now.Format("20060102-150405") + format.Extension()
}

// Slug lowercases the first few words of text and joins them with dashes,
// keeping only letters and digits.
func Slug(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) > slugWords {
		words = words[:slugWords]
	}

	slug := strings.Join(words, "-")
	for len(slug) > slugMax {
		i := strings.LastIndexByte(slug, '-')
		if i <= 0 {
			slug = string([]rune(slug)[:min(len([]rune(slug)), slugMax/4)])
			break
		}
		slug = slug[:i]
	}
	return slug
}
