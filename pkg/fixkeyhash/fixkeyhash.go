// Package fixkeyhash implements the interned-string specialization of the
// Robin-Hood hash family: keys are strings, and each slot holds a pointer
// to a caller-defined fixed-size value struct reached through one level of
// indirection, grounded on fixkey_hash_table_funcs.h. LValueFetch exposes
// that extra indirection directly (returning **V, not *V) so a freshly
// allocated slot is visibly nil and the caller is forced to notice it must
// fill the value in, the same contract
// MVM_fixkey_hash_lvalue_fetch_nocheck documents ("if freshly allocated,
// *entry is NULL, you need to fill it in — DON'T FORGET").
// © 2026 robinstat authors. MIT License.

package fixkeyhash

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/Voskan/robinstat/internal/robinhood"
	"github.com/Voskan/robinstat/pkg/hostctx"
)

// goldenRatio64 matches MVM_fixkey_hash_code's multiplier, shared with
// ptrhash's golden-ratio constant: both specializations spread a single
// 64-bit quantity (a pointer there, a string hash here) the same way.
const goldenRatio64 uint64 = 0x9E3779B97F4A7C15

// Entry is the table's per-slot storage: a single pointer to the caller's
// value struct, nil when the slot is empty.
type Entry[V any] struct {
	Ptr *V
}

// KeyFunc recovers the interned key string from a value, replacing the C
// original's "the key is the struct's first field" layout convention with
// an explicit accessor — safer in Go, where relying on field order via
// unsafe would defeat the point of using a typed generic in the first
// place.
type KeyFunc[V any] func(v *V) string

type policy[V any] struct {
	keyOf  KeyFunc[V]
	hasher hostctx.StringHasher
}

func (p policy[V]) Hash(key string) uint64 {
	return p.hasher.HashString(key) * goldenRatio64
}

func (p policy[V]) Equal(e *Entry[V], key string) bool {
	return e.Ptr != nil && p.keyOf(e.Ptr) == key
}

func (policy[V]) Absent(e *Entry[V]) bool { return e.Ptr == nil }
func (policy[V]) MarkAbsent(e *Entry[V])  { e.Ptr = nil }
func (p policy[V]) KeyOf(e *Entry[V]) string {
	return p.keyOf(e.Ptr)
}

// Table is a string-keyed, pointer-valued Robin-Hood hash table that
// additionally deduplicates concurrent first-builds of the same key via
// GetOrBuild.
type Table[V any] struct {
	tbl   *robinhood.Table[string, Entry[V]]
	cfg   hostctx.Config
	keyOf KeyFunc[V]
	group singleflight.Group
}

// New builds an empty table. keyOf must return the same string that will
// later be used to Fetch the value; typically the value struct's own
// interned-string field.
func New[V any](keyOf KeyFunc[V], opts ...hostctx.Option) (*Table[V], error) {
	cfg, err := hostctx.Apply(opts...)
	if err != nil {
		return nil, err
	}
	t := &Table[V]{cfg: cfg, keyOf: keyOf}
	engine := robinhood.New[string, Entry[V]](policy[V]{keyOf: keyOf, hasher: cfg.Strings}, cfg.InitialCapacity, 64, cfg.MaxProbeDistance)
	engine.OnGrow(func(old, new uint32) {
		cfg.Logger.Debug("fixkeyhash grow")
		cfg.Metrics.IncGrow("fixkeyhash")
	})
	t.tbl = engine
	return t, nil
}

func (t *Table[V]) Fetch(key string) (*V, bool) {
	e, ok := t.tbl.Fetch(key)
	if !ok {
		t.cfg.Metrics.IncFetchMiss("fixkeyhash")
		return nil, false
	}
	t.cfg.Metrics.IncFetchHit("fixkeyhash")
	return e.Ptr, true
}

// LValueFetch returns the address of the slot's pointer field. A freshly
// created slot has a nil *v; the caller must allocate a V, fill it in
// (setting its key field to key via whatever keyOf reads back), and store
// it through the returned **V before anyone else observes the slot.
func (t *Table[V]) LValueFetch(key string) **V {
	e := t.tbl.LValueFetch(key)
	return &e.Ptr
}

// InsertNoCheck unconditionally stores v for key, mirroring
// MVM_fixkey_hash_insert_nocheck: callers guarantee key uniqueness.
func (t *Table[V]) InsertNoCheck(key string, v *V) {
	e := t.tbl.LValueFetch(key)
	e.Ptr = v
	t.cfg.Metrics.IncInsert("fixkeyhash")
	t.cfg.Metrics.SetItems("fixkeyhash", float64(t.tbl.Len()))
}

// GetOrBuild fetches the value for key, building and interning it at most
// once even under concurrent calls for the same key, by routing concurrent
// misses through a singleflight.Group the way the teacher cache's loader
// dedupes concurrent first-loads of the same cache key. This is the
// practical shape of "fixkeyhash interns identifiers shared across many
// thread-contexts": callers across goroutines racing to intern the same
// identifier all see exactly one build.
func (t *Table[V]) GetOrBuild(ctx context.Context, key string, build func(ctx context.Context, key string) (*V, error)) (*V, error) {
	if v, ok := t.Fetch(key); ok {
		return v, nil
	}
	res, err, _ := t.group.Do(key, func() (any, error) {
		if v, ok := t.Fetch(key); ok {
			return v, nil
		}
		v, err := build(ctx, key)
		if err != nil {
			return nil, err
		}
		t.InsertNoCheck(key, v)
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*V), nil
}

func (t *Table[V]) FetchAndDelete(key string) (*V, bool) {
	e, ok := t.tbl.FetchAndDelete(key)
	if ok {
		t.cfg.Metrics.IncDelete("fixkeyhash")
		t.cfg.Metrics.SetItems("fixkeyhash", float64(t.tbl.Len()))
	}
	return e.Ptr, ok
}

func (t *Table[V]) Len() uint32 { return t.tbl.Len() }

func (t *Table[V]) Demolish() { t.tbl.Demolish() }

func (t *Table[V]) DebugCheckInvariants() error { return t.tbl.DebugCheckInvariants() }
