// Package synth generates and caches synthetic chain-class descriptors for
// cmd/riplab's workload simulator. Descriptor generation re-walks a link
// list and allocates a CLID slice per call; a worker meets the same shapes
// across the pages it serves often enough that a small sharded LRU in
// front of its generator is worth it.
package synth

import (
	"sync"
	"sync/atomic"
	"time"
)

var clock, p, n = time.Now().UnixNano(), uint16(0), uint16(1)

func now() int64 { return atomic.LoadInt64(&clock) }

func init() {
	go func() {
		for {
			atomic.StoreInt64(&clock, time.Now().UnixNano())
			time.Sleep(100 * time.Millisecond)
		}
	}()
}

// hashBKRD hashes a workload key string for bucket sharding.
func hashBKRD(s string) (hash int32) {
	for i := 0; i < len(s); i++ {
		hash = hash*131 + int32(s[i])
	}
	return hash
}

func maskOfNextPowOf2(cap uint16) uint32 {
	if cap > 0 && cap&(cap-1) == 0 {
		return uint32(cap - 1)
	}
	cap |= cap >> 1
	cap |= cap >> 2
	cap |= cap >> 4
	return uint32(cap | (cap >> 8))
}

// Hashable constrains WorkloadCache's key type to the shapes riplab's
// workload generator uses to name a synthetic chain-class shape.
type Hashable interface {
	string | int64 | int32 | int | uint64 | uint32 | uint
}

func hashKey[K Hashable](key K, mask int32) int32 {
	switch k := any(key).(type) {
	case string:
		return hashBKRD(k) & mask
	case int64:
		return int32(k) & mask
	case int32:
		return k & mask
	case int:
		return int32(k) & mask
	case uint64:
		return int32(k) & mask
	case uint32:
		return int32(k) & mask
	case uint:
		return int32(k) & mask
	default:
		return 0
	}
}

type node[K comparable] struct {
	k        K
	v        interface{}
	expireAt int64 // 0 marks a deleted slot
}

// bucket is one shard's preallocated ring, arranged as a doubly linked
// list for MRU reordering -- the dlnk[prev,next] idiom avoids a
// container/list allocation per node.
type bucket[K comparable] struct {
	dlnk [][2]uint16
	m    []node[K]
	hmap map[K]uint16
	last uint16
}

func newBucket[K comparable](capacity uint32) *bucket[K] {
	return &bucket[K]{
		dlnk: make([][2]uint16, capacity+1),
		m:    make([]node[K], capacity),
		hmap: make(map[K]uint16, capacity),
	}
}

func (b *bucket[K]) put(k K, v interface{}, expireAt int64) {
	if x, ok := b.hmap[k]; ok {
		b.m[x-1].v, b.m[x-1].expireAt = v, expireAt
		b.adjust(x, p, n)
		return
	}
	if b.last == uint16(cap(b.m)) {
		tail := b.dlnk[0][p]
		delete(b.hmap, b.m[tail-1].k)
		b.hmap[k], b.m[tail-1].k, b.m[tail-1].v, b.m[tail-1].expireAt = tail, k, v, expireAt
		b.adjust(tail, p, n)
		return
	}
	b.last++
	if len(b.hmap) == 0 {
		b.dlnk[0][p] = b.last
	} else {
		b.dlnk[b.dlnk[0][n]][p] = b.last
	}
	b.m[b.last-1].k, b.m[b.last-1].v, b.m[b.last-1].expireAt = k, v, expireAt
	b.dlnk[b.last] = [2]uint16{0, b.dlnk[0][n]}
	b.hmap[k] = b.last
	b.dlnk[0][n] = b.last
}

// get returns the cached value and its stored expireAt timestamp; the
// caller compares that against its own expiration policy, since a bucket
// does not know the owning WorkloadCache's expiration duration.
func (b *bucket[K]) get(k K) (v interface{}, expireAt int64, ok bool) {
	if x, found := b.hmap[k]; found && b.m[x-1].expireAt > 0 {
		b.adjust(x, p, n)
		return b.m[x-1].v, b.m[x-1].expireAt, true
	}
	return nil, 0, false
}

// adjust moves the node at idx to the head (f=0,t=1) or tail (f=1,t=0) of
// the doubly linked list.
func (b *bucket[K]) adjust(idx, f, t uint16) {
	if b.dlnk[idx][f] != 0 {
		b.dlnk[b.dlnk[idx][t]][f], b.dlnk[b.dlnk[idx][f]][t], b.dlnk[idx][f], b.dlnk[idx][t], b.dlnk[b.dlnk[0][t]][f], b.dlnk[0][t] =
			b.dlnk[idx][f], b.dlnk[idx][t], 0, b.dlnk[0][t], idx, idx
	}
}

// WorkloadCache is a generic, shard-locked LRU in front of riplab's
// synthetic chain-class generator: one mutex-guarded bucket per shard, so
// it is safe for concurrent use. Unlike coccache's own CacheHead
// (deliberately single-threaded, spec §5), it takes locks. cmd/riplab
// gives each worker its own generator and so its own WorkloadCache; no
// instance is shared between workers there.
type WorkloadCache[K Hashable] struct {
	locks      []sync.Mutex
	buckets    []*bucket[K]
	expiration time.Duration
	mask       int32
}

// NewWorkloadCache builds a cache with bucketCnt shards of capPerBkt
// entries each. expiration, if given, bounds how long a generated
// descriptor is reused before regeneration; zero means entries never
// expire on their own (only LRU eviction reclaims slots).
func NewWorkloadCache[K Hashable](bucketCnt, capPerBkt uint16, expiration ...time.Duration) *WorkloadCache[K] {
	mask := maskOfNextPowOf2(bucketCnt)
	c := &WorkloadCache[K]{
		locks:   make([]sync.Mutex, mask+1),
		buckets: make([]*bucket[K], mask+1),
		mask:    int32(mask),
	}
	for i := range c.buckets {
		c.buckets[i] = newBucket[K](uint32(capPerBkt))
	}
	if len(expiration) > 0 {
		c.expiration = expiration[0]
	}
	return c
}

// Put installs a generated descriptor under key.
func (c *WorkloadCache[K]) Put(key K, descriptor interface{}) {
	idx := hashKey(key, c.mask)
	c.locks[idx].Lock()
	c.buckets[idx].put(key, descriptor, now()+int64(c.expiration))
	c.locks[idx].Unlock()
}

// Get returns the descriptor cached under key, regenerating nothing
// itself -- a miss means the caller must generate and Put it.
func (c *WorkloadCache[K]) Get(key K) (interface{}, bool) {
	idx := hashKey(key, c.mask)
	c.locks[idx].Lock()
	v, expireAt, ok := c.buckets[idx].get(key)
	if ok && c.expiration > 0 && now() >= expireAt {
		ok = false
	}
	c.locks[idx].Unlock()
	return v, ok
}
