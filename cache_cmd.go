package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/config"
)

var pruneAge time.Duration

var cacheCmd = &cobra.Command{
	Use:     "cache",
	Short:   "Show or prune the speech cache",
	Long:    paragraph(fmt.Sprintf("\nShow the size of the %s, or remove entries that have not been played recently.", keyword("speech cache"))),
	Example: paragraph("readaloud cache\nreadaloud cache --prune 72h"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := config.Load(viper.GetViper())
		if err != nil {
			return err //nolint:wrapcheck
		}
		cfg := settings.CacheConfig(defaultCacheDir())
		if cfg.Dir == "" {
			return errors.New("no cache directory configured")
		}

		dc, err := cache.NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return fmt.Errorf("unable to open cache: %w", err)
		}
		defer dc.Close() //nolint:errcheck

		out := cmd.OutOrStdout()
		if cmd.Flags().Changed("prune") {
			n := dc.Prune(pruneAge)
			fmt.Fprintf(out, "Removed %d %s\n", n, plural(n, "entry", "entries"))
		}

		st := dc.Stats()
		fmt.Fprintf(out, "%s %s\n", keyword("Directory:"), cfg.Dir)
		fmt.Fprintf(out, "%s %d\n", keyword("Entries:"), st.ItemCount)
		fmt.Fprintf(out, "%s %s of %s\n", keyword("Size:"),
			humanize.IBytes(uint64(st.Size)), humanize.IBytes(uint64(st.Capacity))) //nolint:gosec
		return nil
	},
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	cacheCmd.Flags().DurationVar(&pruneAge, "prune", 7*24*time.Hour, "remove entries not played within this long")
}
