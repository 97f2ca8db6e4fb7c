package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the rendered scene cache",
	}

	cmd.AddCommand(c.cacheClearCommand("clear"))
	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheListCommand())

	return cmd
}

// cleanCommand is the top-level shortcut for "cache clear".
func (c *CLI) cleanCommand() *cobra.Command {
	cmd := c.cacheClearCommand("clean")
	cmd.Short = "Clear the rendered scene cache (same as cache clear)"
	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand under the given name.
func (c *CLI) cacheClearCommand(use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Remove every cached scene",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCache(cmd.Context(), func(m *cache.Manager) error {
				n, err := m.Clean(cmd.Context())
				if err != nil {
					return err
				}
				if n == 0 {
					printInfo("Cache is empty")
					return nil
				}
				printSuccess("Cleared %s", formatCount(n, "cached scene"))
				printDetail("Directory: %s", m.Dir())
				return nil
			})
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			dir, err := cfg.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// cacheListCommand creates the "cache ls" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list", "stats"},
		Short:   "List cached scenes, least recently used first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCache(cmd.Context(), func(m *cache.Manager) error {
				stats, err := m.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(stats)
				}
				printCacheStats(stats, time.Now())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the listing as JSON")

	return cmd
}

func (c *CLI) withCache(ctx context.Context, fn func(*cache.Manager) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	m, err := c.openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printCacheStats(s cache.Stats, now time.Time) {
	if len(s.Entries) == 0 {
		printInfo("Cache is empty")
		printDetail("Directory: %s", s.Dir)
		return
	}
	fmt.Print(cacheTable(s.Entries, now))
	printKeyValue("Entries", fmt.Sprintf("%d", len(s.Entries)))
	printKeyValue("Total", humanize.IBytes(uint64(s.TotalBytes)))
	if s.FreeBytes > 0 {
		printKeyValue("Free", humanize.IBytes(s.FreeBytes))
	}
	printKeyValue("Directory", s.Dir)
}

func cacheTable(entries []cache.Entry, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		fp := e.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		rows = append(rows, []string{
			e.Scene,
			fp,
			fmt.Sprintf("%dx%d", e.Width, e.Height),
			formatSeconds(e.Duration),
			humanize.IBytes(uint64(e.Size)),
			humanize.RelTime(e.LastUsed, now, "ago", "from now"),
		})
	}
	return renderTable(
		[]string{"Scene", "Fingerprint", "Size", "Duration", "Bytes", "Last used"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
}
