package searcher

import (
	"bytes"
	"context"

	"github.com/vmihailenco/msgpack/v5"
)

// Cached payloads are msgpack with the json field names, so the cached
// and the served shape are the same.

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(b []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// cacheGet decodes the cached value under key into v. Undecodable values are
// treated as misses.
func (s *Searcher) cacheGet(ctx context.Context, key string, v interface{}) bool {
	if s.cache == nil {
		return false
	}
	b, ok := s.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := decode(b, v); err != nil {
		s.logger.Warn("failed to decode cached value", "key", key, "error", err)
		return false
	}
	return true
}

// cachePut stores v under key. Failures are logged; the caller still serves v.
func (s *Searcher) cachePut(ctx context.Context, key string, v interface{}) {
	if s.cache == nil {
		return
	}
	b, err := encode(v)
	if err != nil {
		s.logger.Warn("failed to encode value for caching", "key", key, "error", err)
		return
	}
	s.cache.Put(ctx, key, b)
}
