package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var errFlaky = errors.New("connection reset")

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	h2 := Hash([]byte("hello"))
	if h1 != h2 {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestKeyFingerprint(t *testing.T) {
	base := func() Key {
		return Key{
			Spec:     "/work/video.yaml",
			Scene:    "intro",
			Config:   map[string]any{"type": "image", "image": "a.png", "duration": 5},
			Settings: map[string]any{"width": 1920, "height": 1080, "fps": 30},
			Duration: 5,
			Assets:   map[string]string{"/work/a.png": "aaaa"},
		}
	}
	fp := func(k Key) string {
		t.Helper()
		s, err := k.Fingerprint()
		if err != nil {
			t.Fatalf("Fingerprint() error = %v", err)
		}
		return s
	}
	want := fp(base())

	tests := []struct {
		name   string
		mutate func(*Key)
		same   bool
	}{
		{"identical", func(*Key) {}, true},
		{"config built in another order", func(k *Key) {
			k.Config = map[string]any{"duration": 5, "image": "a.png", "type": "image"}
		}, true},
		{"asset bytes changed", func(k *Key) { k.Assets["/work/a.png"] = "bbbb" }, false},
		{"other scene", func(k *Key) { k.Scene = "outro" }, false},
		{"other spec", func(k *Key) { k.Spec = "/elsewhere/video.yaml" }, false},
		{"config changed", func(k *Key) { k.Config["image"] = "b.png" }, false},
		{"resolution changed", func(k *Key) { k.Settings = map[string]any{"width": 1280, "height": 720, "fps": 30} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := base()
			tt.mutate(&k)
			if got := fp(k) == want; got != tt.same {
				t.Errorf("fingerprint equal = %v, want %v", got, tt.same)
			}
		})
	}
}

func TestKeyFingerprintUnencodable(t *testing.T) {
	k := Key{Scene: "bad", Config: map[string]any{"f": func() {}}}
	if _, err := k.Fingerprint(); err == nil {
		t.Error("Fingerprint() should fail for unencodable config")
	}
}

func testIndex(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if _, ok, err := idx.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}
	for i, fp := range []string{"bb", "aa", "cc"} {
		e := Entry{Fingerprint: fp, Scene: "s-" + fp, Object: "objects/" + fp, Size: int64(10 * (i + 1)),
			Width: 1920, Height: 1080, Duration: 2.5, Created: t0, LastUsed: t0.Add(time.Duration(i) * time.Minute)}
		if err := idx.Put(ctx, e); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	got, ok, err := idx.Get(ctx, "aa")
	if err != nil || !ok {
		t.Fatalf("Get(aa) = %v, %v", ok, err)
	}
	if got.Scene != "s-aa" || got.Size != 20 || got.Width != 1920 || got.Duration != 2.5 || !got.Created.Equal(t0) {
		t.Errorf("Get(aa) = %+v", got)
	}

	// touching bb makes it the most recently used
	if err := idx.Touch(ctx, "bb", t0.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	list, err := idx.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, e := range list {
		order = append(order, e.Fingerprint)
	}
	if len(order) != 3 || order[0] != "aa" || order[1] != "cc" || order[2] != "bb" {
		t.Errorf("List() order = %v, want [aa cc bb]", order)
	}

	if err := idx.Delete(ctx, "cc"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := idx.Get(ctx, "cc"); ok {
		t.Error("Get(cc) after Delete should miss")
	}
	n, err := idx.Clear(ctx)
	if err != nil || n != 2 {
		t.Errorf("Clear() = %d, %v, want 2", n, err)
	}
	if list, _ := idx.List(ctx); len(list) != 0 {
		t.Errorf("List() after Clear = %v", list)
	}
}

func TestMemoryIndex(t *testing.T) {
	testIndex(t, NewMemoryIndex())
}

func TestSQLiteIndex(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), IndexFile))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer idx.Close()
	testIndex(t, idx)
}

func TestSQLiteIndexPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), IndexFile)
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := idx.Put(context.Background(), Entry{Fingerprint: "ff", Scene: "x", Object: "o", LastUsed: time.Now()}); err != nil {
		t.Fatal(err)
	}
	idx.Close()

	idx, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	if _, ok, err := idx.Get(context.Background(), "ff"); err != nil || !ok {
		t.Errorf("Get() after reopen = %v, %v", ok, err)
	}
}

func TestRedisIndex(t *testing.T) {
	url := os.Getenv("SCENEWEAVER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SCENEWEAVER_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	idx, err := OpenRedis(ctx, url, "sceneweaver-test:"+Hash([]byte(t.Name()))[:8]+":")
	if err != nil {
		t.Fatalf("OpenRedis() error = %v", err)
	}
	defer idx.Close()
	_, _ = idx.Clear(ctx)
	testIndex(t, idx)
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errFlaky)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if err.Error() != errFlaky.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if !errors.Is(err, errFlaky) {
		t.Error("wrapped error should unwrap to the cause")
	}
	if IsRetryable(ErrLowDiskSpace) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestRetryWithBackoff(t *testing.T) {
	retryDelay = time.Millisecond
	defer func() { retryDelay = 200 * time.Millisecond }()
	ctx := context.Background()

	calls := 0
	if err := RetryWithBackoff(ctx, func() error { calls++; return nil }); err != nil || calls != 1 {
		t.Errorf("success: err=%v calls=%d", err, calls)
	}

	calls = 0
	err := RetryWithBackoff(ctx, func() error { calls++; return ErrClosed })
	if err != ErrClosed || calls != 1 {
		t.Errorf("non-retryable: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error {
		calls++
		if calls < 2 {
			return Retryable(errFlaky)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("retry once: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = RetryWithBackoff(ctx, func() error { calls++; return Retryable(errFlaky) })
	if !errors.Is(err, errFlaky) || calls != 3 {
		t.Errorf("exhausted: err=%v calls=%d", err, calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error {
		return Retryable(errFlaky)
	})
	if err != context.Canceled {
		t.Errorf("Should return context error: %v", err)
	}
}
