// Package indexhash implements the index specialization of the Robin-Hood
// hash family: keys are interned strings compared by identity-or-content,
// and the stored value is a uint32 index into an externally owned array
// rather than a copy of the string itself, grounded on
// index_hash_table_funcs.h. The external array is reached through a
// Resolver supplied at construction, mirroring how MoarVM's index hash
// table only ever stores an index into a caller-owned MVMString** array.
// © 2026 robinstat authors. MIT License.

package indexhash

import (
	"github.com/Voskan/robinstat/internal/robinhood"
	"github.com/Voskan/robinstat/pkg/hostctx"
)

// absentIndex marks an entry slot as logically empty; a real index never
// takes this value because it is reserved by construction (^uint32(0)).
const absentIndex = ^uint32(0)

// Resolver recovers the string an index refers to, so the table can decide
// equality and recompute a key during Grow without owning the strings
// itself.
type Resolver interface {
	StringAt(index uint32) string
}

// Entry is the table's per-slot storage: just the external index, matching
// MVMIndexHashEntry's single uint32 field.
type Entry struct {
	Index uint32
}

type policy struct {
	resolver Resolver
	hasher   hostctx.StringHasher
}

func (p policy) Hash(key string) uint64 { return p.hasher.HashString(key) }

// Equal implements MVM_index_hash_fetch_nocheck's identity-or-content rule,
// simplified to plain Go string equality: the resolver already guarantees
// normalized, comparable content, so there is no separate "same graphemes"
// pass the way MVMString's NFG representation requires.
func (p policy) Equal(e *Entry, key string) bool {
	if e.Index == absentIndex {
		return false
	}
	return p.resolver.StringAt(e.Index) == key
}

func (policy) Absent(e *Entry) bool { return e.Index == absentIndex }
func (policy) MarkAbsent(e *Entry)  { e.Index = absentIndex }
func (p policy) KeyOf(e *Entry) string {
	return p.resolver.StringAt(e.Index)
}

// Table is a string-keyed, index-valued Robin-Hood hash table.
type Table struct {
	tbl      *robinhood.Table[string, Entry]
	cfg      hostctx.Config
	resolver Resolver
}

// New builds an empty table backed by resolver. resolver must stay valid
// for the table's entire lifetime: every Fetch, Equal check and Grow
// re-probe calls back into it.
func New(resolver Resolver, opts ...hostctx.Option) (*Table, error) {
	cfg, err := hostctx.Apply(opts...)
	if err != nil {
		return nil, err
	}
	t := &Table{cfg: cfg, resolver: resolver}
	engine := robinhood.New[string, Entry](policy{resolver: resolver, hasher: cfg.Strings}, cfg.InitialCapacity, 64, cfg.MaxProbeDistance)
	engine.OnGrow(func(old, new uint32) {
		cfg.Logger.Debug("indexhash grow")
		cfg.Metrics.IncGrow("indexhash")
	})
	t.tbl = engine
	return t, nil
}

func (t *Table) Fetch(key string) (uint32, bool) {
	e, ok := t.tbl.Fetch(key)
	if !ok {
		t.cfg.Metrics.IncFetchMiss("indexhash")
		return 0, false
	}
	t.cfg.Metrics.IncFetchHit("indexhash")
	return e.Index, true
}

// InsertNoCheck unconditionally fills the slot for key with index, per the
// _nocheck contract: callers are responsible for never inserting the same
// key twice (the interning layer above this table already de-duplicates).
func (t *Table) InsertNoCheck(key string, index uint32) {
	e := t.tbl.LValueFetch(key)
	e.Index = index
	t.cfg.Metrics.IncInsert("indexhash")
	t.cfg.Metrics.SetItems("indexhash", float64(t.tbl.Len()))
}

func (t *Table) FetchAndDelete(key string) (uint32, bool) {
	e, ok := t.tbl.FetchAndDelete(key)
	if ok {
		t.cfg.Metrics.IncDelete("indexhash")
		t.cfg.Metrics.SetItems("indexhash", float64(t.tbl.Len()))
	}
	return e.Index, ok
}

func (t *Table) Len() uint32 { return t.tbl.Len() }

func (t *Table) Demolish() { t.tbl.Demolish() }

func (t *Table) DebugCheckInvariants() error { return t.tbl.DebugCheckInvariants() }

// ShallowCopy duplicates the table's storage without touching the resolver
// or the strings it resolves, mirroring MVM_index_hash_shallow_copy's
// single malloc+memcpy — safe here because entries hold only a plain index,
// never a pointer that would need fixing up after the copy.
func (t *Table) ShallowCopy() *Table {
	return &Table{
		tbl:      t.tbl.ShallowCopy(),
		cfg:      t.cfg,
		resolver: t.resolver,
	}
}
