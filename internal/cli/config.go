package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/matzehuels/sceneweaver/pkg/cache"
)

// defaultMinFree is the free space the cache keeps on its filesystem.
const defaultMinFree = "1GB"

// Config is the user configuration read from config.toml. Every field is
// optional.
type Config struct {
	// CacheDir overrides $XDG_CACHE_HOME/sceneweaver.
	CacheDir string `toml:"cache_dir"`
	// CacheMaxSize bounds the store when a scene's cache policy sets no
	// max-size, e.g. "20GB".
	CacheMaxSize string `toml:"cache_max_size"`
	// MinFree is the free space below which new artifacts are not stored.
	MinFree string `toml:"min_free"`
	// RedisURL switches the cache index from SQLite to Redis.
	RedisURL string `toml:"redis_url"`

	// Templates are extra template search directories.
	Templates []string `toml:"templates"`
	Workers   int      `toml:"workers"`

	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	Codec      string `toml:"codec"`
	Rasterizer string `toml:"rasterizer"`

	maxSize uint64
	minFree uint64
}

// configPath returns $XDG_CONFIG_HOME/sceneweaver/config.toml, falling back
// to ~/.config.
func configPath() (string, error) {
	if d := os.Getenv("XDG_CONFIG_HOME"); d != "" {
		return filepath.Join(d, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadConfig reads the config file at path. A missing file yields the
// defaults; unknown keys are rejected so typos do not go unnoticed.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{MinFree: defaultMinFree}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	var err error
	if c.maxSize, err = parseSize("cache_max_size", c.CacheMaxSize); err != nil {
		return err
	}
	if c.minFree, err = parseSize("min_free", c.MinFree); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	c.CacheDir = expandHome(c.CacheDir)
	for i, p := range c.Templates {
		c.Templates[i] = expandHome(p)
	}
	return nil
}

func parseSize(key, s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// cacheDir returns the configured cache directory or the XDG default.
func (c *Config) cacheDir() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	return cacheDir()
}

// cacheDir returns the cache directory using the XDG standard
// (~/.cache/sceneweaver/).
func cacheDir() (string, error) {
	return cache.DefaultDir()
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}
