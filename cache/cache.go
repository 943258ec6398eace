// Package cache memoizes translation results keyed by variable, field path,
// translator identity and value fingerprint.
//
// Entries are grouped per (variable, field) node so that a binding change on
// one struct field only drops that field's entries. Every write carries the
// trace generation it was computed against; writes from an older generation
// are discarded, so a batch that outlives a trace reload cannot leave stale
// results behind.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wippyai/wave-translate/value"
)

// Key addresses one cached result.
type Key struct {
	Variable    string
	Field       string
	Translator  string
	Fingerprint value.Fingerprint
}

type node struct {
	variable string
	field    string
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// Cache is safe for concurrent use.
type Cache struct {
	nodes      map[node]map[string]map[value.Fingerprint]value.TranslationResult
	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	generation uint64
	maxPerNode int
	mu         sync.RWMutex
}

// New creates a cache. maxPerNode bounds the entries kept for one
// (variable, field, translator) triple; 0 means unbounded.
func New(maxPerNode int) *Cache {
	return &Cache{
		nodes:      make(map[node]map[string]map[value.Fingerprint]value.TranslationResult),
		maxPerNode: maxPerNode,
	}
}

// Generation returns the current trace generation.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Get looks up a result.
func (c *Cache) Get(k Key) (value.TranslationResult, bool) {
	c.mu.RLock()
	r, ok := c.nodes[node{k.Variable, k.Field}][k.Translator][k.Fingerprint]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return r, ok
}

// Put stores a result computed against generation gen. It reports whether
// the entry was kept.
func (c *Cache) Put(gen uint64, k Key, r value.TranslationResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	n := node{k.Variable, k.Field}
	byTranslator := c.nodes[n]
	if byTranslator == nil {
		byTranslator = make(map[string]map[value.Fingerprint]value.TranslationResult)
		c.nodes[n] = byTranslator
	}
	entries := byTranslator[k.Translator]
	if entries == nil {
		entries = make(map[value.Fingerprint]value.TranslationResult)
		byTranslator[k.Translator] = entries
	}
	if c.maxPerNode > 0 && len(entries) >= c.maxPerNode {
		if _, exists := entries[k.Fingerprint]; !exists {
			c.evictions.Add(uint64(len(entries)))
			entries = make(map[value.Fingerprint]value.TranslationResult)
			byTranslator[k.Translator] = entries
		}
	}
	entries[k.Fingerprint] = r
	return true
}

// InvalidateVariable drops every entry of a variable, fields included.
func (c *Cache) InvalidateVariable(variable string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := range c.nodes {
		if n.variable == variable {
			c.drop(n)
		}
	}
}

// InvalidateField drops the entries of one field, of everything nested
// below it and of the enclosing composite nodes whose rendering embeds it.
// Sibling fields are kept. The empty path is the variable's own top-level
// node.
func (c *Cache) InvalidateField(variable, field string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := range c.nodes {
		if n.variable != variable {
			continue
		}
		if field == "" || n.field == field || strings.HasPrefix(n.field, field+".") || encloses(n.field, field) {
			c.drop(n)
		}
	}
}

func encloses(outer, inner string) bool {
	return outer == "" || strings.HasPrefix(inner, outer+".")
}

// InvalidateTranslator drops every entry produced by a translator.
func (c *Cache) InvalidateTranslator(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n, byTranslator := range c.nodes {
		if entries, ok := byTranslator[name]; ok {
			c.evictions.Add(uint64(len(entries)))
			delete(byTranslator, name)
		}
		if len(byTranslator) == 0 {
			delete(c.nodes, n)
		}
	}
}

// Reload starts a new trace generation and returns it. Existing entries
// stay; Retain drops the ones that no longer hold.
func (c *Cache) Reload() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return c.generation
}

// Retain drops entries of every variable not in keep.
func (c *Cache) Retain(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := range c.nodes {
		if !keep[n.variable] {
			c.drop(n)
		}
	}
}

// Clear drops everything without changing the generation.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for n := range c.nodes {
		c.drop(n)
	}
}

func (c *Cache) drop(n node) {
	for _, entries := range c.nodes[n] {
		c.evictions.Add(uint64(len(entries)))
	}
	delete(c.nodes, n)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := 0
	for _, byTranslator := range c.nodes {
		for _, entries := range byTranslator {
			total += len(entries)
		}
	}
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   total,
	}
}
