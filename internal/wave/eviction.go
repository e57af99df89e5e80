package wave

import (
	"math/rand/v2"

	"github.com/zyedidia/generic/cache"
)

// Default bounds of the change cache, per path
const (
	MaxHardCache = 120
	MaxSoftCache = 100
)

// Bucket holds the fingerprints cached for one path
type Bucket interface {
	Get(id string) (Fingerprint, bool)
	Put(id string, fp Fingerprint)
	Len() int
}

// EvictionPolicy creates the buckets of a ChangeCache and decides which ids they drop
type EvictionPolicy interface {
	NewBucket() Bucket
}

// RandomEviction drops uniformly random ids once a bucket grows past Hard,
// until Soft ids remain. The id being inserted is never dropped.
type RandomEviction struct {
	intn func(n int) int
	Hard int
	Soft int
}

// NewRandomEviction returns the default random policy
func NewRandomEviction(hard, soft int) *RandomEviction {
	if soft > hard {
		soft = hard
	}
	if soft < 1 {
		soft = 1
	}
	return &RandomEviction{Hard: hard, Soft: soft, intn: rand.IntN}
}

// NewSeededRandomEviction is NewRandomEviction with a deterministic victim sequence
func NewSeededRandomEviction(hard, soft int, seed uint64) *RandomEviction {
	p := NewRandomEviction(hard, soft)
	p.intn = rand.New(rand.NewPCG(seed, seed)).IntN
	return p
}

// params подставляет значения по умолчанию для политики, собранной литералом
func (p *RandomEviction) params() (hard, soft int, intn func(n int) int) {
	hard, soft, intn = p.Hard, p.Soft, p.intn
	if hard < 1 {
		hard = MaxHardCache
	}
	// новый id не вытесняется, поэтому в корзине остается хотя бы он
	soft = max(min(soft, hard), 1)
	if intn == nil {
		intn = rand.IntN
	}
	return hard, soft, intn
}

// NewBucket implements EvictionPolicy
func (p *RandomEviction) NewBucket() Bucket {
	return &randomBucket{
		policy: p,
		fps:    make(map[string]Fingerprint),
		pos:    make(map[string]int),
	}
}

type randomBucket struct {
	policy *RandomEviction
	fps    map[string]Fingerprint
	pos    map[string]int
	ids    []string
}

func (b *randomBucket) Get(id string) (Fingerprint, bool) {
	fp, ok := b.fps[id]
	return fp, ok
}

func (b *randomBucket) Put(id string, fp Fingerprint) {
	if _, ok := b.fps[id]; ok {
		b.fps[id] = fp
		return
	}

	b.fps[id] = fp
	b.pos[id] = len(b.ids)
	b.ids = append(b.ids, id)

	hard, soft, intn := b.policy.params()
	if len(b.ids) <= hard {
		return
	}
	for len(b.ids) > soft {
		victim := b.ids[intn(len(b.ids))]
		if victim == id {
			continue
		}
		b.remove(victim)
	}
}

func (b *randomBucket) Len() int {
	return len(b.ids)
}

// remove swaps the victim with the last id to keep removal O(1)
func (b *randomBucket) remove(id string) {
	i := b.pos[id]
	last := len(b.ids) - 1

	b.ids[i] = b.ids[last]
	b.pos[b.ids[i]] = i
	b.ids = b.ids[:last]

	delete(b.pos, id)
	delete(b.fps, id)
}

// LRUEviction keeps at most Capacity ids per path, dropping the least recently used
type LRUEviction struct {
	Capacity int
}

// NewLRUEviction returns a true LRU policy
func NewLRUEviction(capacity int) *LRUEviction {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUEviction{Capacity: capacity}
}

// NewBucket implements EvictionPolicy
func (p *LRUEviction) NewBucket() Bucket {
	return &lruBucket{lru: cache.New[string, Fingerprint](max(p.Capacity, 1))}
}

type lruBucket struct {
	lru *cache.Cache[string, Fingerprint]
}

func (b *lruBucket) Get(id string) (Fingerprint, bool) {
	return b.lru.Get(id)
}

func (b *lruBucket) Put(id string, fp Fingerprint) {
	b.lru.Put(id, fp)
}

func (b *lruBucket) Len() int {
	return b.lru.Size()
}
