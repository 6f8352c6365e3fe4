// Package unihash implements the byte-string specialization of the
// Robin-Hood hash family: keys are arbitrary byte strings owned by the
// table itself (copied in on insert, unlike indexhash's externally-owned
// strings), and each entry additionally caches its own hash code alongside
// a caller-supplied int32 payload, grounded on uni_hash_table.c.
// © 2026 robinstat authors. MIT License.

package unihash

import (
	"bytes"

	"github.com/Voskan/robinstat/internal/robinhood"
	"github.com/Voskan/robinstat/internal/unsafehelpers"
	"github.com/Voskan/robinstat/pkg/hostctx"
)

// Entry is the table's per-slot storage: an owned copy of the key bytes,
// the key's cached hash code, and the caller's int32 payload, matching the
// {hash, int32} value shape alongside the key that uni_hash_table.c's
// entry struct describes.
type Entry struct {
	Key   []byte
	Hash  uint64
	Value int32
}

type policy struct {
	hasher hostctx.BytesHasher
}

func (p policy) Hash(key []byte) uint64 { return p.hasher.HashBytes(key) }
func (policy) Equal(e *Entry, key []byte) bool {
	return e.Key != nil && bytes.Equal(e.Key, key)
}
func (policy) Absent(e *Entry) bool { return e.Key == nil }
func (policy) MarkAbsent(e *Entry) {
	e.Key = nil
	e.Hash = 0
	e.Value = 0
}

// KeyOf returns the entry's owned key bytes for Grow's re-probe pass. The
// hash is recomputed from these bytes rather than reused from e.Hash: the
// original caches hash_val specifically to avoid re-running the host
// string-hashing function, which is comparatively expensive there, but
// hash/maphash is cheap enough here that the extra plumbing to thread a
// precomputed hash back through Policy.Hash is not worth it.
func (policy) KeyOf(e *Entry) []byte { return e.Key }

// Table is a byte-string-keyed Robin-Hood hash table.
type Table struct {
	tbl *robinhood.Table[[]byte, Entry]
	cfg hostctx.Config
}

func New(opts ...hostctx.Option) (*Table, error) {
	cfg, err := hostctx.Apply(opts...)
	if err != nil {
		return nil, err
	}
	t := &Table{cfg: cfg}
	engine := robinhood.New[[]byte, Entry](policy{hasher: cfg.Bytes}, cfg.InitialCapacity, 64, cfg.MaxProbeDistance)
	engine.OnGrow(func(old, new uint32) {
		cfg.Logger.Debug("unihash grow")
		cfg.Metrics.IncGrow("unihash")
	})
	t.tbl = engine
	return t, nil
}

// Fetch returns the cached hash and caller payload for key.
func (t *Table) Fetch(key []byte) (hash uint64, value int32, ok bool) {
	e, found := t.tbl.Fetch(key)
	if !found {
		t.cfg.Metrics.IncFetchMiss("unihash")
		return 0, 0, false
	}
	t.cfg.Metrics.IncFetchHit("unihash")
	return e.Hash, e.Value, true
}

// InsertNoCheck unconditionally fills the slot for key with value,
// mirroring an _insert_nocheck contract: callers guarantee key uniqueness.
// The key is copied so the table owns its lifetime independently of the
// caller's buffer.
func (t *Table) InsertNoCheck(key []byte, value int32) {
	owned := append([]byte(nil), key...)
	hash := t.cfg.Bytes.HashBytes(owned)
	e := t.tbl.LValueFetch(owned)
	e.Key = owned
	e.Hash = hash
	e.Value = value
	t.cfg.Metrics.IncInsert("unihash")
	t.cfg.Metrics.SetItems("unihash", float64(t.tbl.Len()))
}

func (t *Table) FetchAndDelete(key []byte) (int32, bool) {
	e, ok := t.tbl.FetchAndDelete(key)
	if ok {
		t.cfg.Metrics.IncDelete("unihash")
		t.cfg.Metrics.SetItems("unihash", float64(t.tbl.Len()))
	}
	return e.Value, ok
}

// FetchString is Fetch for a caller that already holds its key as a string
// (the common case when the byte string originated as an interned
// identifier): it reinterprets the string's backing array as []byte with
// no copy, safe because Fetch never retains or mutates the slice it is
// given.
func (t *Table) FetchString(key string) (hash uint64, value int32, ok bool) {
	return t.Fetch(unsafehelpers.StringToBytes(key))
}

// ForEachKey visits every live entry, handing visit a zero-copy string view
// of the table's owned key bytes (safe because the table's copy is never
// mutated after insert). Used by diagnostic dumps that need to read keys
// back without forcing a per-entry allocation.
func (t *Table) ForEachKey(visit func(key string, value int32)) {
	t.tbl.ForEach(func(e *Entry) {
		visit(unsafehelpers.BytesToString(e.Key), e.Value)
	})
}

func (t *Table) Len() uint32 { return t.tbl.Len() }

func (t *Table) Demolish() { t.tbl.Demolish() }

func (t *Table) DebugCheckInvariants() error { return t.tbl.DebugCheckInvariants() }
