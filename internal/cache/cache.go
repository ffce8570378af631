// Package cache holds completed translations keyed by a content
// fingerprint so repeated requests are served without touching the
// inference endpoint. The cache lives for the process lifetime only.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Fingerprint derives the deterministic cache key for a translation
// request: a sha256 over source language, destination language and the
// full original text, in that fixed order. The ':' separator cannot
// appear inside a language code, so distinct triples never collide on
// concatenation.
func Fingerprint(src, dst, text string) string {
	h := sha256.Sum256([]byte(src + ":" + dst + ":" + text))
	return hex.EncodeToString(h[:])
}

// TranslationCache is a thread-safe fingerprint → translation map.
// Entries are never invalidated; when maxEntries > 0 the oldest entry
// is evicted once the cap is reached, otherwise growth is unbounded
// (the reference behavior).
type TranslationCache struct {
	mu         sync.RWMutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type cacheEntry struct {
	key   string
	value string
}

// New creates a translation cache. maxEntries <= 0 means unbounded.
func New(maxEntries int) *TranslationCache {
	return &TranslationCache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Get returns the cached translation for the fingerprint, if present.
func (c *TranslationCache) Get(fingerprint string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	elem, ok := c.entries[fingerprint]
	if !ok {
		return "", false
	}
	return elem.Value.(*cacheEntry).value, true
}

// Put stores a translation under the fingerprint. A concurrent write to
// the same key is a benign race: last writer wins, both writers computed
// the same value.
func (c *TranslationCache) Put(fingerprint, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fingerprint]; ok {
		elem.Value.(*cacheEntry).value = translation
		c.order.MoveToBack(elem)
		return
	}

	if c.maxEntries > 0 && c.order.Len() >= c.maxEntries {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}

	c.entries[fingerprint] = c.order.PushBack(&cacheEntry{key: fingerprint, value: translation})
}

// Len returns the number of cached translations.
func (c *TranslationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
