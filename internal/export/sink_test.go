package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello world.", "hello-world"},
		{"  The quick, brown fox jumps over the lazy dog  ", "the-quick-brown-fox-jumps-over"},
		{"Ünïcode wörds ok", "ünïcode-wörds-ok"},
		{"...!!!", ""},
		{strings.Repeat("abcdefghij", 3) + " " + strings.Repeat("klmnopqrst", 3), strings.Repeat("abcdefghij", 3)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slug(tt.in); got != tt.want {
				t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSuggestName(t *testing.T) {
	now := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

	if got := SuggestName("Hello world.", now, tts.FormatMP3); got != "hello-world-20250102-150405.mp3" {
		t.Errorf("SuggestName() = %q", got)
	}
	if got := SuggestName("", now, tts.FormatPCM); got != "speech-20250102-150405.pcm" {
		t.Errorf("SuggestName() = %q", got)
	}
}

func TestFileSinkSave(t *testing.T) {
	dir := t.TempDir()
	sink := &FileSink{Dir: filepath.Join(dir, "nested")}

	path, err := sink.Save(context.Background(), []byte("mp3 data"), "out.mp3")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if path != filepath.Join(dir, "nested", "out.mp3") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "mp3 data" {
		t.Errorf("file contents = %q, %v", data, err)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestFileSinkExplicitPath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "custom.mp3")
	sink := &FileSink{Dir: "/ignored", Path: target}

	path, err := sink.Save(context.Background(), []byte("x"), "suggested.mp3")
	if err != nil {
		t.Fatal(err)
	}
	if path != target {
		t.Errorf("path = %q, want %q", path, target)
	}
}

func TestFileSinkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &FileSink{Dir: t.TempDir()}
	if _, err := sink.Save(ctx, []byte("x"), "a.mp3"); !tts.IsCancelled(err) {
		t.Errorf("expected CancelledError, got %v", err)
	}
}
