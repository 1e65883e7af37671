package ui

import "github.com/dgnsrekt/readaloud/internal/tts"

// Config contains TUI-specific configuration.
type Config struct {
	Mode  tts.Mode
	Voice string

	// ExitWhenDone quits once the first session has ended.
	ExitWhenDone bool

	PreviewLines int  `env:"READALOUD_PREVIEW_LINES" envDefault:"8"`
	EnableMouse  bool `env:"READALOUD_MOUSE"`
	AltScreen    bool `env:"READALOUD_ALT_SCREEN" envDefault:"true"`
}
