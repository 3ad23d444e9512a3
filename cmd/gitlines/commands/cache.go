package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/gitlines/pkg/linecache"
	"github.com/Sumatoshi-tech/gitlines/pkg/persist"
	"github.com/Sumatoshi-tech/gitlines/pkg/safeconv"
)

// ErrCacheNotFound is returned when a cache subcommand names a file that does not exist.
var ErrCacheNotFound = errors.New("cache file not found")

func requireCache(path string) error {
	ok, err := persist.Exists(path)
	if err != nil {
		return fmt.Errorf("stat cache: %w", err)
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrCacheNotFound, path)
	}

	return nil
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and convert line count cache files",
	}

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCacheConvertCommand())

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <cache-file>",
		Short: "Validate a cache file and summarize its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cacheStats(cmd.OutOrStdout(), args[0])
		},
	}
}

func cacheStats(out io.Writer, path string) error {
	err := requireCache(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat cache: %w", err)
	}

	snapshot, err := linecache.LoadFile(path)
	if err != nil {
		return err
	}

	summary := linecache.Summarize(snapshot)

	tbl := table.NewWriter()
	tbl.SetOutputMirror(out)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle(path)
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	tbl.AppendRows([]table.Row{
		{"Encoding", encodingOf(path)},
		{"File size", humanize.Bytes(safeconv.MustInt64ToUint64(info.Size()))},
		{"Blobs", humanize.Comma(int64(summary.Entries))},
		{"Cached lines", humanize.Comma(summary.TotalLines)},
		{"Largest blob", humanize.Comma(summary.MaxLines) + " lines"},
	})
	tbl.Render()

	color.New(color.FgGreen).Fprintln(out, "cache file is valid")

	return nil
}

func newCacheConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Rewrite a cache file, compressing it when dst ends in .lz4",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Open treats a missing file as an empty cache; converting one would write an empty dst.
			err := requireCache(args[0])
			if err != nil {
				return err
			}

			cache, err := linecache.Open(args[0])
			if err != nil {
				return err
			}

			err = cache.Save(args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s entries (%s)\n",
				args[1], humanize.Comma(int64(cache.Len())), encodingOf(args[1]))

			return nil
		},
	}
}

func encodingOf(path string) string {
	if _, ok := persist.CodecForPath(path).(*persist.LZ4Codec); ok {
		return "json+lz4"
	}

	return "json"
}
