// Package cache stores rendered scene outputs by content fingerprint.
//
// A [Manager] owns a store directory:
//
//	<dir>/objects/<ab>/<fingerprint>.mp4   artifacts
//	<dir>/locks/<fingerprint>.lock         per-fingerprint build locks
//	<dir>/index.db                         SQLite index (when used)
//
// Entries are only ever found by an exact fingerprint match; see [Key]. An
// entry whose artifact file has disappeared is treated as a miss and dropped.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/sceneweaver/pkg/observability"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

// ArtifactExt is the file extension of stored artifacts.
const ArtifactExt = ".mp4"

// lockRetry is how often a blocked build polls the cross-process lock.
const lockRetry = 100 * time.Millisecond

// Meta describes an artifact being stored.
type Meta struct {
	Scene    string
	Width    int
	Height   int
	Duration float64
}

// Artifact is a handle to a rendered scene output.
type Artifact struct {
	Entry
	// Path is the absolute path of the artifact file.
	Path string
	// Cached reports whether the artifact was served from the store.
	Cached bool
}

// BuildFunc renders a scene output into a file and returns its path.
type BuildFunc func(ctx context.Context) (path string, meta Meta, err error)

// Manager is a content-addressable store of scene artifacts. It is safe for
// concurrent use within a process, and builds of the same fingerprint are
// serialized across processes with lock files.
type Manager struct {
	dir    string
	index  Index
	group  singleflight.Group
	Logger *log.Logger

	// MinFree is the free space, in bytes, the store's filesystem must keep.
	// Zero disables the check.
	MinFree uint64
	// MaxSize is the store budget used when a policy sets none. Zero means
	// unlimited.
	MaxSize uint64

	freeSpace func(ctx context.Context, path string) (uint64, error)
	now       func() time.Time
}

// Open prepares the store directory and returns a Manager using idx.
func Open(dir string, idx Index) (*Manager, error) {
	for _, sub := range []string{"objects", "locks"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("cache: create store: %w", err)
		}
	}
	return &Manager{
		dir:       dir,
		index:     idx,
		Logger:    log.Default(),
		freeSpace: diskFree,
		now:       time.Now,
	}, nil
}

// OpenDefault opens dir with a SQLite index inside it.
func OpenDefault(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create store: %w", err)
	}
	idx, err := OpenSQLite(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, err
	}
	m, err := Open(dir, idx)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	return m, nil
}

// DefaultDir returns $XDG_CACHE_HOME/sceneweaver, falling back to
// ~/.cache/sceneweaver.
func DefaultDir() (string, error) {
	if d := os.Getenv("XDG_CACHE_HOME"); d != "" {
		return filepath.Join(d, "sceneweaver"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cache: locate home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "sceneweaver"), nil
}

// Dir returns the store root.
func (m *Manager) Dir() string { return m.dir }

// Close releases the index.
func (m *Manager) Close() error {
	if m.index == nil {
		return nil
	}
	return m.index.Close()
}

// Get returns the artifact stored under fp.
func (m *Manager) Get(ctx context.Context, fp string) (Artifact, bool, error) {
	e, ok, err := m.index.Get(ctx, fp)
	if err != nil || !ok {
		return Artifact{}, false, err
	}
	path := filepath.Join(m.dir, e.Object)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Artifact{}, false, fmt.Errorf("cache: stat artifact: %w", err)
		}
		m.logger().Warn("cache entry lost its artifact", "fingerprint", short(fp), "path", path)
		if err := m.index.Delete(ctx, fp); err != nil {
			return Artifact{}, false, err
		}
		return Artifact{}, false, nil
	}
	now := m.now()
	if err := m.index.Touch(ctx, fp, now); err != nil {
		return Artifact{}, false, err
	}
	e.LastUsed = now
	return Artifact{Entry: e, Path: path, Cached: true}, true, nil
}

// Put copies the file at src into the store under fp and evicts least
// recently used entries until the policy's size budget holds. The new entry
// itself is never evicted.
func (m *Manager) Put(ctx context.Context, fp, src string, meta Meta, policy spec.CachePolicy) (Artifact, error) {
	if err := m.ensureFree(ctx, fp); err != nil {
		return Artifact{}, err
	}

	subdir, name := shard(fp)
	object := filepath.Join("objects", subdir, name+ArtifactExt)
	dst := filepath.Join(m.dir, object)
	size, err := copyAtomic(src, dst)
	if err != nil {
		return Artifact{}, fmt.Errorf("cache: store scene %q: %w", meta.Scene, err)
	}

	now := m.now()
	e := Entry{
		Fingerprint: fp,
		Scene:       meta.Scene,
		Object:      object,
		Size:        size,
		Width:       meta.Width,
		Height:      meta.Height,
		Duration:    meta.Duration,
		Created:     now,
		LastUsed:    now,
	}
	if err := m.index.Put(ctx, e); err != nil {
		return Artifact{}, err
	}
	observability.Cache().OnCacheSet(ctx, meta.Scene, size)
	m.logger().Debug("stored scene", "scene", meta.Scene, "fingerprint", short(fp), "size", humanize.IBytes(uint64(size)))

	limit := policy.MaxSize
	if limit == 0 {
		limit = m.MaxSize
	}
	if limit > 0 {
		if err := m.evict(ctx, limit, fp); err != nil {
			return Artifact{}, err
		}
	}
	return Artifact{Entry: e, Path: dst}, nil
}

// Do returns the artifact for fp, building and storing it on a miss. A nil
// policy bypasses the store and just builds. With force set the stored
// artifact is ignored, but the fresh build still replaces it.
//
// Within a process concurrent calls for one fingerprint share a single
// build; across processes they wait on the fingerprint's lock file.
func (m *Manager) Do(ctx context.Context, fp string, policy *spec.CachePolicy, force bool, build BuildFunc) (Artifact, error) {
	if policy == nil {
		return buildOnly(ctx, build)
	}
	v, err, _ := m.group.Do(fp, func() (any, error) {
		return m.do(ctx, fp, *policy, force, build)
	})
	if err != nil {
		return Artifact{}, err
	}
	return v.(Artifact), nil
}

func (m *Manager) do(ctx context.Context, fp string, policy spec.CachePolicy, force bool, build BuildFunc) (Artifact, error) {
	lock := flock.New(filepath.Join(m.dir, "locks", fp+".lock"))
	locked, err := lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return Artifact{}, fmt.Errorf("cache: lock %s: %w", short(fp), err)
	}
	if !locked {
		return Artifact{}, fmt.Errorf("cache: lock %s: not acquired", short(fp))
	}
	defer func() { _ = lock.Unlock() }()

	if !force {
		a, ok, err := m.Get(ctx, fp)
		if err != nil {
			return Artifact{}, err
		}
		if ok {
			observability.Cache().OnCacheHit(ctx, a.Scene)
			m.logger().Debug("cache hit", "scene", a.Scene, "fingerprint", short(fp))
			return a, nil
		}
	}

	path, meta, err := build(ctx)
	if err != nil {
		return Artifact{}, err
	}
	observability.Cache().OnCacheMiss(ctx, meta.Scene)
	a, err := m.Put(ctx, fp, path, meta, policy)
	if errors.Is(err, ErrLowDiskSpace) {
		m.logger().Warn("not caching scene", "scene", meta.Scene, "err", err)
		return Artifact{Entry: metaEntry(fp, meta), Path: path}, nil
	}
	return a, err
}

func buildOnly(ctx context.Context, build BuildFunc) (Artifact, error) {
	path, meta, err := build(ctx)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Entry: metaEntry("", meta), Path: path}, nil
}

func metaEntry(fp string, meta Meta) Entry {
	return Entry{Fingerprint: fp, Scene: meta.Scene, Width: meta.Width, Height: meta.Height, Duration: meta.Duration}
}

// Clean removes every artifact and index entry and reports how many entries
// were removed.
func (m *Manager) Clean(ctx context.Context) (int, error) {
	n, err := m.index.Clear(ctx)
	if err != nil {
		return 0, err
	}
	objects := filepath.Join(m.dir, "objects")
	if err := os.RemoveAll(objects); err != nil {
		return n, fmt.Errorf("cache: remove objects: %w", err)
	}
	if err := os.MkdirAll(objects, 0o755); err != nil {
		return n, fmt.Errorf("cache: recreate objects: %w", err)
	}
	m.logger().Info("cleared cache", "entries", n, "dir", m.dir)
	return n, nil
}

// Stats summarizes the store.
type Stats struct {
	Dir        string  `json:"dir"`
	Entries    []Entry `json:"entries"`
	TotalBytes int64   `json:"total_bytes"`
	FreeBytes  uint64  `json:"free_bytes"`
}

// Stats lists the entries, least recently used first.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	entries, err := m.index.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Dir: m.dir, Entries: entries}
	for _, e := range entries {
		s.TotalBytes += e.Size
	}
	if free, err := m.freeSpace(ctx, m.dir); err == nil {
		s.FreeBytes = free
	}
	return s, nil
}

// evict removes least recently used entries other than keep until the total
// size is at most limit.
func (m *Manager) evict(ctx context.Context, limit uint64, keep string) error {
	entries, err := m.index.List(ctx)
	if err != nil {
		return err
	}
	var total uint64
	for _, e := range entries {
		total += uint64(e.Size)
	}
	for _, e := range entries {
		if total <= limit {
			break
		}
		if e.Fingerprint == keep {
			continue
		}
		if err := m.remove(ctx, e); err != nil {
			return err
		}
		total -= uint64(e.Size)
	}
	if total > limit {
		m.logger().Warn("cache over budget", "size", humanize.IBytes(total), "max", humanize.IBytes(limit))
	}
	return nil
}

// ensureFree evicts least recently used entries while the filesystem is
// below MinFree.
func (m *Manager) ensureFree(ctx context.Context, keep string) error {
	if m.MinFree == 0 {
		return nil
	}
	entries, err := m.index.List(ctx)
	if err != nil {
		return err
	}
	for {
		free, err := m.freeSpace(ctx, m.dir)
		if err != nil {
			return fmt.Errorf("cache: check free space: %w", err)
		}
		if free >= m.MinFree {
			return nil
		}
		if len(entries) == 0 {
			return fmt.Errorf("cache: %s free, need %s: %w",
				humanize.IBytes(free), humanize.IBytes(m.MinFree), ErrLowDiskSpace)
		}
		e := entries[0]
		entries = entries[1:]
		if e.Fingerprint == keep {
			continue
		}
		if err := m.remove(ctx, e); err != nil {
			return err
		}
	}
}

func (m *Manager) remove(ctx context.Context, e Entry) error {
	if err := os.Remove(filepath.Join(m.dir, e.Object)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cache: remove %s: %w", e.Object, err)
	}
	if err := m.index.Delete(ctx, e.Fingerprint); err != nil {
		return err
	}
	observability.Cache().OnCacheEvict(ctx, e.Fingerprint, e.Size)
	m.logger().Debug("evicted scene", "scene", e.Scene, "fingerprint", short(e.Fingerprint), "size", humanize.IBytes(uint64(e.Size)))
	return nil
}

func (m *Manager) logger() *log.Logger {
	if m.Logger == nil {
		return log.Default()
	}
	return m.Logger
}

// copyAtomic copies src to dst through a temporary file in dst's directory
// so readers never observe a partial artifact.
func copyAtomic(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	tmp := filepath.Join(filepath.Dir(dst), ".tmp-"+uuid.NewString())
	out, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dst)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

func diskFree(ctx context.Context, path string) (uint64, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return u.Free, nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
