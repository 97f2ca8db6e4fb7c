package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/sceneweaver/pkg/assets"
	"github.com/matzehuels/sceneweaver/pkg/spec"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := Open(t.TempDir(), NewMemoryIndex())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = c.now
	return m
}

// builder writes content into a fresh file per call and counts calls.
type builder struct {
	dir     string
	content string
	calls   atomic.Int32
}

func (b *builder) build(ctx context.Context) (string, Meta, error) {
	n := b.calls.Add(1)
	path := filepath.Join(b.dir, "build-"+string(rune('a'+n))+".mp4")
	if err := os.WriteFile(path, []byte(b.content), 0o644); err != nil {
		return "", Meta{}, err
	}
	return path, Meta{Scene: "intro", Width: 1920, Height: 1080, Duration: 5}, nil
}

func TestDoMissThenHit(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	b := &builder{dir: t.TempDir(), content: "frames"}
	policy := &spec.CachePolicy{}

	first, err := m.Do(ctx, "fp1", policy, false, b.build)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first Do() should be a miss")
	}
	second, err := m.Do(ctx, "fp1", policy, false, b.build)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || b.calls.Load() != 1 {
		t.Errorf("second Do() cached=%v builds=%d, want hit with 1 build", second.Cached, b.calls.Load())
	}
	if second.Path != first.Path || second.Duration != 5 || second.Width != 1920 {
		t.Errorf("hit = %+v, want %+v", second, first)
	}
	data, err := os.ReadFile(second.Path)
	if err != nil || string(data) != "frames" {
		t.Errorf("artifact = %q, %v", data, err)
	}
	if dir := filepath.Base(filepath.Dir(second.Path)); dir != "fp" {
		t.Errorf("artifact shard = %q, want fp", dir)
	}
}

func TestDoAssetChangeMisses(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	work := t.TempDir()
	img := filepath.Join(work, "a.png")
	b := &builder{dir: t.TempDir(), content: "frames"}

	fingerprint := func() string {
		t.Helper()
		hashes, err := assets.HashFiles([]string{img})
		if err != nil {
			t.Fatal(err)
		}
		fp, err := Key{Spec: filepath.Join(work, "video.yaml"), Scene: "intro",
			Config: map[string]any{"type": "image", "image": "a.png"}, Duration: 5, Assets: hashes}.Fingerprint()
		if err != nil {
			t.Fatal(err)
		}
		return fp
	}

	if err := os.WriteFile(img, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Do(ctx, fingerprint(), &spec.CachePolicy{}, false, b.build); err != nil {
		t.Fatal(err)
	}
	a, err := m.Do(ctx, fingerprint(), &spec.CachePolicy{}, false, b.build)
	if err != nil || !a.Cached {
		t.Fatalf("unchanged asset: cached=%v err=%v", a.Cached, err)
	}

	if err := os.WriteFile(img, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err = m.Do(ctx, fingerprint(), &spec.CachePolicy{}, false, b.build)
	if err != nil {
		t.Fatal(err)
	}
	if a.Cached || b.calls.Load() != 2 {
		t.Errorf("changed asset: cached=%v builds=%d, want a rebuild", a.Cached, b.calls.Load())
	}
}

func TestDoForce(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	b := &builder{dir: t.TempDir(), content: "v1"}
	policy := &spec.CachePolicy{}

	cached, err := m.Do(ctx, "fp1", policy, false, b.build)
	if err != nil {
		t.Fatal(err)
	}
	b.content = "v2"
	forced, err := m.Do(ctx, "fp1", policy, true, b.build)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Cached || b.calls.Load() != 2 {
		t.Errorf("force: cached=%v builds=%d", forced.Cached, b.calls.Load())
	}
	if forced.Duration != cached.Duration || forced.Width != cached.Width || forced.Height != cached.Height {
		t.Errorf("force changed metadata: %+v vs %+v", forced.Entry, cached.Entry)
	}
	// the forced build replaced the stored artifact
	again, err := m.Do(ctx, "fp1", policy, false, b.build)
	if err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(again.Path); !again.Cached || string(data) != "v2" {
		t.Errorf("after force: cached=%v content=%q, want v2 hit", again.Cached, data)
	}
}

func TestDoWithoutPolicyBypasses(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	b := &builder{dir: t.TempDir(), content: "x"}

	for i := 0; i < 2; i++ {
		a, err := m.Do(ctx, "fp1", nil, false, b.build)
		if err != nil {
			t.Fatal(err)
		}
		if a.Cached || filepath.Dir(a.Path) != b.dir {
			t.Errorf("Do(nil policy) = %+v, want the build output", a)
		}
	}
	if b.calls.Load() != 2 {
		t.Errorf("builds = %d, want 2", b.calls.Load())
	}
	if s, _ := m.Stats(ctx); len(s.Entries) != 0 {
		t.Errorf("nothing should be stored, got %d entries", len(s.Entries))
	}
}

func TestDoConcurrentBuildsOnce(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	m.now = time.Now
	b := &builder{dir: t.TempDir(), content: "x"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Do(ctx, "fp1", &spec.CachePolicy{}, false, b.build); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := b.calls.Load(); n != 1 {
		t.Errorf("builds = %d, want 1", n)
	}
}

func TestDoBuildError(t *testing.T) {
	m := newManager(t)
	boom := errors.New("ffmpeg exited 1")
	_, err := m.Do(context.Background(), "fp1", &spec.CachePolicy{}, false, func(context.Context) (string, Meta, error) {
		return "", Meta{}, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Do() error = %v, want %v", err, boom)
	}
}

func TestGetDropsVanishedArtifact(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	b := &builder{dir: t.TempDir(), content: "x"}
	a, err := m.Do(ctx, "fp1", &spec.CachePolicy{}, false, b.build)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(a.Path); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := m.Get(ctx, "fp1"); err != nil || ok {
		t.Errorf("Get() = %v, %v, want miss", ok, err)
	}
	if _, ok, _ := m.index.Get(ctx, "fp1"); ok {
		t.Error("index entry should be dropped")
	}
}

func TestPutEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	src := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(src, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	policy := spec.CachePolicy{MaxSize: 250}

	for _, fp := range []string{"aaa", "bbb"} {
		if _, err := m.Put(ctx, fp, src, Meta{Scene: fp}, policy); err != nil {
			t.Fatal(err)
		}
	}
	// a read makes aaa newer than bbb
	if _, ok, _ := m.Get(ctx, "aaa"); !ok {
		t.Fatal("Get(aaa) should hit")
	}
	if _, err := m.Put(ctx, "ccc", src, Meta{Scene: "ccc"}, policy); err != nil {
		t.Fatal(err)
	}

	for fp, want := range map[string]bool{"aaa": true, "bbb": false, "ccc": true} {
		if _, ok, _ := m.Get(ctx, fp); ok != want {
			t.Errorf("Get(%s) hit = %v, want %v", fp, ok, want)
		}
	}
	s, err := m.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.TotalBytes != 200 {
		t.Errorf("TotalBytes = %d, want 200", s.TotalBytes)
	}
}

func TestPutKeepsNewEntryOverBudget(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	src := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(src, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Put(ctx, "big", src, Meta{Scene: "big"}, spec.CachePolicy{MaxSize: 10}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := m.Get(ctx, "big"); !ok {
		t.Error("the entry just stored must survive eviction")
	}
}

func TestPutDefaultBudget(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	m.MaxSize = 150
	src := filepath.Join(t.TempDir(), "out.mp4")
	if err := os.WriteFile(src, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, fp := range []string{"aaa", "bbb"} {
		if _, err := m.Put(ctx, fp, src, Meta{Scene: fp}, spec.CachePolicy{}); err != nil {
			t.Fatal(err)
		}
	}
	if _, ok, _ := m.Get(ctx, "aaa"); ok {
		t.Error("Get(aaa) should miss after the store budget evicted it")
	}
	if _, ok, _ := m.Get(ctx, "bbb"); !ok {
		t.Error("Get(bbb) should hit")
	}
}

func TestLowDiskSpace(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	m.MinFree = 1 << 30
	m.freeSpace = func(context.Context, string) (uint64, error) { return 1 << 20, nil }
	b := &builder{dir: t.TempDir(), content: "x"}

	a, err := m.Do(ctx, "fp1", &spec.CachePolicy{}, false, b.build)
	if err != nil {
		t.Fatalf("Do() error = %v, want the uncached build", err)
	}
	if filepath.Dir(a.Path) != b.dir {
		t.Errorf("Path = %s, want the build output", a.Path)
	}
	if _, err := m.Put(ctx, "fp2", a.Path, Meta{}, spec.CachePolicy{}); !errors.Is(err, ErrLowDiskSpace) {
		t.Errorf("Put() error = %v, want ErrLowDiskSpace", err)
	}
}

func TestClean(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)
	b := &builder{dir: t.TempDir(), content: "x"}
	for _, fp := range []string{"fp1", "fp2"} {
		if _, err := m.Do(ctx, fp, &spec.CachePolicy{}, false, b.build); err != nil {
			t.Fatal(err)
		}
	}
	n, err := m.Clean(ctx)
	if err != nil || n != 2 {
		t.Errorf("Clean() = %d, %v, want 2", n, err)
	}
	if _, ok, _ := m.Get(ctx, "fp1"); ok {
		t.Error("Get() after Clean should miss")
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "objects")); err != nil {
		t.Errorf("objects dir should be recreated: %v", err)
	}
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	got, err := DefaultDir()
	if err != nil || got != "/tmp/xdg/sceneweaver" {
		t.Errorf("DefaultDir() = %q, %v", got, err)
	}
}
