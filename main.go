// Package main provides the entry point for the readaloud CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/audio"
	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/export"
	"github.com/dgnsrekt/readaloud/internal/segment"
	"github.com/dgnsrekt/readaloud/internal/session"
	"github.com/dgnsrekt/readaloud/internal/tts"
	"github.com/dgnsrekt/readaloud/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	markdownExts = []string{".md", ".markdown", ".mdown", ".mkd", ".mkdn"}

	configFile    string
	outputPath    string
	tui           bool
	debug         bool
	fromClipboard bool

	environment config.Env

	errPlaybackFailed = errors.New("playback finished with errors")

	rootCmd = &cobra.Command{
		Use:   "readaloud [TEXT|FILE|-]",
		Short: "Read text aloud from the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead text aloud through an %s speech endpoint, one sentence at a time or as a live stream.", keyword("OpenAI-compatible")),
		),
		Example: paragraph("readaloud \"Hello world.\"\nreadaloud --mode stream notes.md\npbpaste | readaloud --mode export -o hello.mp3"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if debug || viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	tui = viper.GetBool("tui")
	if tui && !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("--tui needs a terminal on stdout")
	}

	mode, err := tts.ParseMode(viper.GetString("mode"))
	if err != nil {
		return fmt.Errorf("invalid --mode: %w", err)
	}
	if cmd.Flags().Changed("output") && mode != tts.ModeExport {
		return errors.New("--output only applies to --mode export")
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func isMarkdownFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, v := range markdownExts {
		if ext == v {
			return true
		}
	}
	return false
}

// readText resolves the text to speak. An argument wins over piped stdin,
// which wins over the clipboard. The bool result reports whether the text
// came from a markdown file.
func readText(args []string) (string, bool, error) {
	if len(args) == 1 && args[0] != "-" {
		arg := args[0]
		if st, err := os.Stat(arg); err == nil && st.Mode().IsRegular() {
			b, err := os.ReadFile(arg)
			if err != nil {
				return "", false, fmt.Errorf("unable to read file: %w", err)
			}
			return string(b), isMarkdownFile(arg), nil
		}
		return arg, false, nil
	}

	pipe, err := stdinIsPipe()
	if err != nil {
		return "", false, err
	}
	if pipe || (len(args) == 1 && args[0] == "-") {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return string(b), false, nil
	}

	if fromClipboard {
		s, err := clipboard.ReadAll()
		if err != nil {
			return "", false, fmt.Errorf("unable to read clipboard: %w", err)
		}
		return s, false, nil
	}

	return "", false, errors.New("nothing to read: pass TEXT or a FILE, pipe to stdin, or use --clipboard")
}

// failureTracker remembers whether any error was reported during the run.
type failureTracker struct {
	tts.Notifier
	failed atomic.Bool
}

func (f *failureTracker) Notify(message string, severity tts.Severity, d time.Duration) {
	if severity == tts.SeverityError {
		f.failed.Store(true)
	}
	f.Notifier.Notify(message, severity, d)
}

func defaultCacheDir() string {
	dir, err := gap.NewScope(gap.User, "readaloud").CacheDir()
	if err != nil {
		log.Warn("Could not find cache directory", "error", err)
		return ""
	}
	return filepath.Join(dir, "speech")
}

func openCache(s config.Settings) (*cache.Manager, error) {
	if !s.Cache.Enabled {
		return nil, nil
	}
	m, err := cache.NewManager(s.CacheConfig(defaultCacheDir()))
	if err != nil {
		return nil, fmt.Errorf("unable to open cache: %w", err)
	}
	return m, nil
}

func deviceFactory() audio.DeviceFactory {
	if environment.Headless() {
		log.Debug("Using silent audio device")
		return audio.NewNullDevice
	}
	return audio.NewOtoDevice
}

func execute(cmd *cobra.Command, args []string) error {
	text, isMarkdown, err := readText(args)
	if err != nil {
		return err
	}
	if isMarkdown || viper.GetBool("markdown") {
		if text, err = segment.PlainText(text); err != nil {
			return fmt.Errorf("unable to read markdown: %w", err)
		}
	}
	text = segment.Normalize(text)

	store, err := config.NewStore(viper.GetViper(), environment)
	if err != nil {
		return err //nolint:wrapcheck
	}
	settings := store.Settings()
	if settings.AuthKey == "" {
		log.Warn("No API key configured", "endpoint", settings.Endpoint)
	}

	var speechCache cache.Cache
	mgr, err := openCache(settings)
	if err != nil {
		return err
	}
	if mgr != nil {
		defer func() {
			for level, st := range mgr.Stats() {
				log.Debug("Cache stats", "level", level, "hits", st.Hits, "misses", st.Misses, "items", st.ItemCount)
			}
			if err := mgr.Close(); err != nil {
				log.Warn("Could not close cache", "error", err)
			}
		}()
		speechCache = mgr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := &export.FileSink{Dir: settings.OutputDir, Path: outputPath}
	opts := []session.Option{
		session.WithDeviceFactory(deviceFactory()),
		session.WithDownloadSink(sink),
	}

	if tui {
		return runTUI(ctx, store, speechCache, text, opts)
	}
	return runCLI(ctx, store, speechCache, text, opts)
}

func runCLI(ctx context.Context, store *config.Store, c cache.Cache, text string, opts []session.Option) error {
	tracker := &failureTracker{Notifier: ui.NewStatusNotifier(os.Stderr)}
	opts = append(opts, session.WithNotifier(tracker))

	coord, err := session.New(store.Settings(), session.SpeechConnector(c), opts...)
	if err != nil {
		return fmt.Errorf("unable to start: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = coord.Run(runCtx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	watchSettings(store, coord)

	if err := coord.Start(ctx, text, store.Settings().DeliveryMode()); err != nil {
		if tts.IsCancelled(err) {
			return nil
		}
		return err //nolint:wrapcheck
	}
	if err := coord.WaitIdle(ctx); err != nil && ctx.Err() == nil {
		return err //nolint:wrapcheck
	}
	if tracker.failed.Load() {
		return errPlaybackFailed
	}
	return nil
}

func runTUI(ctx context.Context, store *config.Store, c cache.Cache, text string, opts []session.Option) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	settings := store.Settings()
	cfg.Mode = settings.DeliveryMode()
	cfg.Voice = settings.Voice

	bridge := ui.NewBridge()
	defer bridge.Close()
	opts = append(opts, session.WithNotifier(bridge), session.WithStateListener(bridge.StateChanged))

	coord, err := session.New(settings, session.SpeechConnector(c), opts...)
	if err != nil {
		return fmt.Errorf("unable to start: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		_ = coord.Run(runCtx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	watchSettings(store, coord)

	p := ui.NewProgram(cfg, coord, text)
	bridge.Attach(p)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func watchSettings(store *config.Store, coord *session.Coordinator) {
	store.Watch(func(s config.Settings) {
		if err := coord.UpdateSettings(s); err != nil {
			log.Warn("Could not apply configuration change", "error", err)
			return
		}
		log.Info("Configuration reloaded", "voice", s.Voice, "volume", s.Volume)
	})
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	e, err := config.LoadEnv()
	if err != nil {
		fmt.Println("Could not read environment:", err)
		os.Exit(1)
	}
	environment = e

	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug output to the log file")
	rootCmd.Flags().StringP("mode", "m", tts.ModeQueue.String(), "delivery mode: single, queue, stream or export")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "file to write in export mode")
	rootCmd.Flags().String("voice", "", "voice name")
	rootCmd.Flags().String("model", "", "speech model")
	rootCmd.Flags().Float64("speed", 0, "speaking speed (0.25 to 4.0)")
	rootCmd.Flags().Float64("volume", 0, "playback volume (0.0 to 1.0)")
	rootCmd.Flags().String("endpoint", "", "speech API base URL")
	rootCmd.Flags().Int("prefetch", 0, "requests in flight in queue mode")
	rootCmd.Flags().BoolVarP(&tui, "tui", "t", false, "show playback controls")
	rootCmd.Flags().Bool("markdown", false, "strip markdown before speaking")
	rootCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read text from the clipboard")

	// Config bindings
	_ = viper.BindPFlag("mode", rootCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("model", rootCmd.Flags().Lookup("model"))
	_ = viper.BindPFlag("speed", rootCmd.Flags().Lookup("speed"))
	_ = viper.BindPFlag("volume", rootCmd.Flags().Lookup("volume"))
	_ = viper.BindPFlag("endpoint", rootCmd.Flags().Lookup("endpoint"))
	_ = viper.BindPFlag("prefetch", rootCmd.Flags().Lookup("prefetch"))
	_ = viper.BindPFlag("tui", rootCmd.Flags().Lookup("tui"))
	_ = viper.BindPFlag("markdown", rootCmd.Flags().Lookup("markdown"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	config.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, cacheCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "readaloud")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "readaloud")}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("readaloud")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("readaloud")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "readaloud.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
