package wave

import (
	"encoding/json"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/iudanet/tubewave/internal/storage"
)

// Fingerprint identifies a payload; equal payloads have equal fingerprints
type Fingerprint [blake2b.Size256]byte

// FingerprintOf hashes the canonical JSON encoding of data.
// Numbers are normalized first so 1 and 1.0 hash the same.
func FingerprintOf(data map[string]any) (Fingerprint, error) {
	// encoding/json сортирует ключи map, поэтому кодирование каноническое
	raw, err := json.Marshal(storage.Normalize(data))
	if err != nil {
		return Fingerprint{}, err
	}
	return blake2b.Sum256(raw), nil
}

// ChangeCache remembers the last payload seen per (path, id).
// It is an optimization only: losing entries causes reprocessing, never wrong results.
type ChangeCache struct {
	policy EvictionPolicy
	paths  map[string]Bucket
	mu     sync.Mutex
}

// NewChangeCache creates an empty cache with the given eviction policy
func NewChangeCache(policy EvictionPolicy) *ChangeCache {
	if policy == nil {
		policy = NewRandomEviction(MaxHardCache, MaxSoftCache)
	}
	return &ChangeCache{
		policy: policy,
		paths:  make(map[string]Bucket),
	}
}

// HasChange reports whether data differs from the payload last seen for (path, id)
// and remembers data when it does. Empty data never counts as a change.
func (c *ChangeCache) HasChange(path, id string, data map[string]any) bool {
	if len(data) == 0 {
		return false
	}

	fp, err := FingerprintOf(data)
	if err != nil {
		// не можем сравнить - считаем изменением, в кеш не кладем
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.paths[path]
	if !ok {
		bucket = c.policy.NewBucket()
		c.paths[path] = bucket
	}

	if last, ok := bucket.Get(id); ok && last == fp {
		return false
	}
	bucket.Put(id, fp)
	return true
}

// Len returns the number of ids cached under path
func (c *ChangeCache) Len(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.paths[path]
	if !ok {
		return 0
	}
	return bucket.Len()
}

// Paths returns the number of paths with a bucket
func (c *ChangeCache) Paths() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}
