package spec

import (
	"github.com/dustin/go-humanize"
)

// CachePolicy enables caching for a scene. A nil policy disables it.
type CachePolicy struct {
	// MaxSize is the store budget in bytes; zero means unlimited.
	MaxSize uint64
}

// decodeCachePolicy accepts false/absent (disabled), true/null (defaults) and
// a mapping with an optional human-readable max-size such as "1GB".
func decodeCachePolicy(f fields) (*CachePolicy, error) {
	v, ok := f.m["cache"]
	if !ok {
		return nil, nil
	}
	switch c := v.(type) {
	case nil:
		return &CachePolicy{}, nil
	case bool:
		if !c {
			return nil, nil
		}
		return &CachePolicy{}, nil
	}
	m, ok := asMap(v)
	if !ok {
		return nil, f.errorf("cache", "expected true, false or a mapping")
	}
	cf := f.sub("cache", m)
	p := &CachePolicy{}
	for _, key := range []string{"max-size", "max_size"} {
		raw, ok := m[key]
		if !ok || raw == nil {
			continue
		}
		if n, ok := toFloat(raw); ok {
			if n < 0 {
				return nil, cf.errorf(key, "cannot be negative")
			}
			p.MaxSize = uint64(n)
			continue
		}
		s, _, err := cf.str(key)
		if err != nil {
			return nil, err
		}
		size, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, cf.errorf(key, "invalid size %q", s)
		}
		p.MaxSize = size
	}
	return p, nil
}
