// Package cache is the search result cache.
//
// A Cache wraps a Backend (Memory, or Hybrid memory+disk) with an
// application-level time-to-live: values are stored as an 8-byte
// little-endian Unix timestamp followed by the payload, and Get treats
// anything older than the TTL as absent. Backend eviction and TTL are
// independent policies.
//
// Keys are namespaced content hashes of canonicalized requests:
//
//	key := cache.SearchKey(query)          // "s:<sha256>"
//	key := cache.GlossaryKey("en", "a", 0, 50) // "g:<sha256>"
//
// The cache fails open. Backend errors are logged and reported as misses.
package cache
