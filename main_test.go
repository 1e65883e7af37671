package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

func TestReadTextFromArgument(t *testing.T) {
	text, md, err := readText([]string{"Hello world."})
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello world." || md {
		t.Errorf("readText = %q, %v", text, md)
	}
}

func TestReadTextFromFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		markdown bool
	}{
		{"notes.md", true},
		{"notes.MARKDOWN", true},
		{"notes.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, []byte("# Title\n\nBody."), 0o600); err != nil {
				t.Fatal(err)
			}
			text, md, err := readText([]string{path})
			if err != nil {
				t.Fatal(err)
			}
			if text != "# Title\n\nBody." {
				t.Errorf("text = %q", text)
			}
			if md != tt.markdown {
				t.Errorf("markdown = %v, want %v", md, tt.markdown)
			}
		})
	}
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify(string, tts.Severity, time.Duration) { c.n++ }

func TestFailureTracker(t *testing.T) {
	inner := &countingNotifier{}
	f := &failureTracker{Notifier: inner}

	f.Notify("Saved", tts.SeverityInfo, 0)
	if f.failed.Load() {
		t.Error("info note marked the run failed")
	}
	f.Notify("Rate limited", tts.SeverityError, 0)
	if !f.failed.Load() {
		t.Error("error note not tracked")
	}
	if inner.n != 2 {
		t.Errorf("forwarded %d notes, want 2", inner.n)
	}
}

func TestModeFlagDefault(t *testing.T) {
	f := rootCmd.Flags().Lookup("mode")
	if f == nil {
		t.Fatal("no --mode flag")
	}
	if f.DefValue != "queue" {
		t.Errorf("--mode default = %q, want queue", f.DefValue)
	}
}

func TestValidateOptionsOutput(t *testing.T) {
	tests := []struct {
		mode    string
		output  bool
		wantErr bool
	}{
		{"export", true, false},
		{"queue", true, true},
		{"stream", true, true},
		{"queue", false, false},
		{"bogus", false, true},
	}

	prev := viper.GetString("mode")
	t.Cleanup(func() { viper.Set("mode", prev) })

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cmd := &cobra.Command{}
			cmd.Flags().StringP("output", "o", "", "")
			if tt.output {
				if err := cmd.Flags().Set("output", "hello.mp3"); err != nil {
					t.Fatal(err)
				}
			}
			viper.Set("mode", tt.mode)

			err := validateOptions(cmd)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateOptions(--mode %s, output=%v) = %v, wantErr %v", tt.mode, tt.output, err, tt.wantErr)
			}
		})
	}
}
