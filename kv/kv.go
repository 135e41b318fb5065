// Package kv is the transactional key-value layer the engine persists its state through. Writes are buffered in a
// Batch and applied to a Backend atomically on Commit; reads go through an LRU cache kept in step with commits.
package kv

import (
	"context"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"
)

const DefaultCacheSize = 4096

var ErrBatchDiscarded = eris.New("batch has already been committed or discarded")

// Reader reads a single key. A missing key is reported with ok == false and a nil error.
type Reader interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
}

// Writer buffers writes. Nothing reaches the backend until the owning batch is committed.
type Writer interface {
	Set(key string, value []byte)
	Delete(key string)
}

type ReadWriter interface {
	Reader
	Writer
}

// Op is one write applied by a Backend. A nil Value deletes the key.
type Op struct {
	Key   string
	Value []byte
}

func (o Op) IsDelete() bool {
	return o.Value == nil
}

// Backend is a durable key-value store able to apply a list of writes atomically.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Apply(ctx context.Context, ops []Op) error
	Close() error
}

// Store fronts a Backend with a read cache.
type Store struct {
	backend Backend
	cache   *lru.Cache[string, []byte]
}

var _ Reader = &Store{}

func NewStore(backend Backend, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, eris.Wrap(err, "")
	}
	return &Store{backend: backend, cache: cache}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if value, ok := s.cache.Get(key); ok {
		return value, true, nil
	}
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		s.cache.Add(key, value)
	}
	return value, ok, nil
}

// NewBatch starts a batch of writes with read-your-writes semantics.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s, pending: map[string][]byte{}}
}

func (s *Store) Close() error {
	s.cache.Purge()
	return s.backend.Close()
}

func (s *Store) apply(ctx context.Context, ops []Op) error {
	if err := s.backend.Apply(ctx, ops); err != nil {
		// The backend may have partially failed in a way we cannot see; drop everything we cached for these keys.
		for _, op := range ops {
			s.cache.Remove(op.Key)
		}
		return err
	}
	for _, op := range ops {
		if op.IsDelete() {
			s.cache.Remove(op.Key)
		} else {
			s.cache.Add(op.Key, op.Value)
		}
	}
	return nil
}

// Batch is an in-memory overlay of pending writes on top of a Store.
type Batch struct {
	store     *Store
	pending   map[string][]byte
	deleted   map[string]struct{}
	discarded bool
}

var _ ReadWriter = &Batch{}

func (b *Batch) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if _, ok := b.deleted[key]; ok {
		return nil, false, nil
	}
	if value, ok := b.pending[key]; ok {
		return value, true, nil
	}
	return b.store.Get(ctx, key)
}

func (b *Batch) Set(key string, value []byte) {
	if value == nil {
		value = []byte{}
	}
	delete(b.deleted, key)
	b.pending[key] = value
}

func (b *Batch) Delete(key string) {
	if b.deleted == nil {
		b.deleted = map[string]struct{}{}
	}
	delete(b.pending, key)
	b.deleted[key] = struct{}{}
}

// Len is the number of keys the batch will write on commit.
func (b *Batch) Len() int {
	return len(b.pending) + len(b.deleted)
}

func (b *Batch) IsDiscarded() bool {
	return b.discarded
}

// Commit applies every pending write to the backend in one atomic step. Writes are applied in key order so two
// identical batches always produce identical backend traffic.
func (b *Batch) Commit(ctx context.Context) error {
	if b.discarded {
		return eris.Wrap(ErrBatchDiscarded, "")
	}
	b.discarded = true
	if b.Len() == 0 {
		return nil
	}
	ops := make([]Op, 0, b.Len())
	for key, value := range b.pending {
		ops = append(ops, Op{Key: key, Value: value})
	}
	for key := range b.deleted {
		ops = append(ops, Op{Key: key})
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Key < ops[j].Key })
	return b.store.apply(ctx, ops)
}

// Discard drops every pending write. Discarding a committed batch is a no-op.
func (b *Batch) Discard() {
	b.discarded = true
	b.pending = map[string][]byte{}
	b.deleted = nil
}
