package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sceneweaver/pkg/buildinfo"
	"github.com/matzehuels/sceneweaver/pkg/cache"
	"github.com/matzehuels/sceneweaver/pkg/ffmpeg"
	"github.com/matzehuels/sceneweaver/pkg/pipeline"
	"github.com/matzehuels/sceneweaver/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "sceneweaver"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath overrides the XDG config file location.
	ConfigPath string
	config     *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Sceneweaver renders declarative video specs",
		Long:         `Sceneweaver composes videos from a YAML spec of scenes: images, SVG animations, clips, title cards and reusable templates, layered, masked and joined with transitions.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default $XDG_CONFIG_HOME/sceneweaver/config.toml)")

	for _, cmd := range []*cobra.Command{
		c.generateCommand(),
		c.validateCommand(),
		c.timelineCommand(),
		c.graphCommand(),
		c.serveCommand(),
	} {
		cmd.ValidArgsFunction = c.completeTarget
		root.AddCommand(cmd)
	}
	root.AddCommand(c.createCommand())
	root.AddCommand(c.cleanCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the user config once per process.
func (c *CLI) loadConfig() (*Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	path := c.ConfigPath
	if path == "" {
		p, err := configPath()
		if err != nil {
			return nil, fmt.Errorf("locate config: %w", err)
		}
		path = p
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded config", "path", path)
	c.config = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use. The caller closes it.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	var store *cache.Manager
	if !noCache {
		if store, err = c.openCache(ctx, cfg); err != nil {
			return nil, err
		}
	}

	r := pipeline.NewRunner(store, newEncoder(cfg, c.Logger), c.Logger)
	if cfg.Rasterizer != "" {
		r.Rasterizer = render.RSVG{Binary: cfg.Rasterizer}
	}
	return r, nil
}

func newEncoder(cfg *Config, logger *log.Logger) *ffmpeg.Encoder {
	enc := ffmpeg.New()
	enc.Logger = logger
	if cfg.FFmpeg != "" {
		enc.FFmpeg = cfg.FFmpeg
	}
	if cfg.FFprobe != "" {
		enc.FFprobe = cfg.FFprobe
	}
	if cfg.Codec != "" {
		enc.Codec = cfg.Codec
	}
	return enc
}

// openCache opens the artifact store, indexed in Redis when a URL is
// configured and in SQLite otherwise.
func (c *CLI) openCache(ctx context.Context, cfg *Config) (*cache.Manager, error) {
	dir, err := cfg.cacheDir()
	if err != nil {
		return nil, fmt.Errorf("get cache dir: %w", err)
	}

	var m *cache.Manager
	if cfg.RedisURL != "" {
		idx, err := cache.OpenRedis(ctx, cfg.RedisURL, appName+":")
		if err != nil {
			return nil, err
		}
		if m, err = cache.Open(dir, idx); err != nil {
			_ = idx.Close()
			return nil, err
		}
	} else if m, err = cache.OpenDefault(dir); err != nil {
		return nil, err
	}

	m.Logger = c.Logger
	m.MaxSize = cfg.maxSize
	m.MinFree = cfg.minFree
	return m, nil
}

// pipelineOptions fills the config-derived fields of opts.
func (c *CLI) pipelineOptions(target string) (pipeline.Options, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Spec:          target,
		Workers:       cfg.Workers,
		TemplatePaths: cfg.Templates,
		Logger:        c.Logger,
	}, nil
}
