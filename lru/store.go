// Package lru provides a fixed-capacity map with strict least-recently-used
// eviction. Unlike general-purpose LRU libraries it exposes the recency queue
// for inspection and supports predicate counting without disturbing access
// order, which the completion cache needs for its diagnostics.
package lru

import (
	"container/list"
	"fmt"
)

// EvictCallback is called when an entry is displaced by a capacity eviction.
// Explicit Remove calls do not trigger it.
type EvictCallback[K comparable, V any] func(key K, value V)

// Store is a fixed-capacity key/value map with strict recency-based eviction.
//
// Store performs no locking of its own. It is designed to be singly owned,
// with the owner serializing every operation; the completion cache holds one
// mutex around all store access, including the eviction callback.
type Store[K comparable, V any] struct {
	capacity int
	onEvict  EvictCallback[K, V]
	order    *list.List // recency queue, least recently used at the front
	items    map[K]*list.Element
}

type storeEntry[K comparable, V any] struct {
	key   K
	value V
}

// New creates a Store holding at most capacity entries. onEvict may be nil.
func New[K comparable, V any](capacity int, onEvict EvictCallback[K, V]) (*Store[K, V], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("lru: capacity must be positive, got %d", capacity)
	}
	return &Store[K, V]{
		capacity: capacity,
		onEvict:  onEvict,
		order:    list.New(),
		items:    make(map[K]*list.Element, capacity),
	}, nil
}

// Put inserts or overwrites the entry for key and marks it most recently used.
// Inserting a new key at capacity first evicts the least-recently-used entry.
// Overwriting an existing key never evicts and never duplicates its queue
// position.
func (s *Store[K, V]) Put(key K, value V) {
	if elem, ok := s.items[key]; ok {
		elem.Value.(*storeEntry[K, V]).value = value
		s.order.MoveToBack(elem)
		return
	}
	if s.order.Len() >= s.capacity {
		s.evictOldest()
	}
	s.items[key] = s.order.PushBack(&storeEntry[K, V]{key: key, value: value})
}

// Get returns the value for key and promotes it to most recently used.
// A miss has no side effect.
func (s *Store[K, V]) Get(key K) (V, bool) {
	elem, ok := s.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	s.order.MoveToBack(elem)
	return elem.Value.(*storeEntry[K, V]).value, true
}

// Peek returns the value for key without touching recency order.
func (s *Store[K, V]) Peek(key K) (V, bool) {
	elem, ok := s.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return elem.Value.(*storeEntry[K, V]).value, true
}

// Remove deletes the entry for key and reports whether it was present.
// Removing an absent key is a no-op.
func (s *Store[K, V]) Remove(key K) bool {
	elem, ok := s.items[key]
	if !ok {
		return false
	}
	s.order.Remove(elem)
	delete(s.items, key)
	return true
}

// Count returns the number of entries for which pred holds. It never mutates
// the store or its recency order.
func (s *Store[K, V]) Count(pred func(key K, value V) bool) int {
	n := 0
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*storeEntry[K, V])
		if pred(e.key, e.value) {
			n++
		}
	}
	return n
}

// Len returns the number of entries currently stored.
func (s *Store[K, V]) Len() int {
	return s.order.Len()
}

// Cap returns the configured capacity.
func (s *Store[K, V]) Cap() int {
	return s.capacity
}

// Keys returns all keys in recency order, least recently used first.
func (s *Store[K, V]) Keys() []K {
	keys := make([]K, 0, s.order.Len())
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*storeEntry[K, V]).key)
	}
	return keys
}

func (s *Store[K, V]) evictOldest() {
	elem := s.order.Front()
	if elem == nil {
		return
	}
	e := elem.Value.(*storeEntry[K, V])
	s.order.Remove(elem)
	delete(s.items, e.key)
	if s.onEvict != nil {
		s.onEvict(e.key, e.value)
	}
}
