// Package ptrhash implements the pointer-identity specialization of the
// Robin-Hood hash family: keys are compared and hashed by address alone,
// values are a single machine word, grounded directly on
// ptr_hash_table.c/ptr_hash_table_funcs.h.
// © 2026 robinstat authors. MIT License.

package ptrhash

import (
	"unsafe"

	"go.uber.org/zap"

	"github.com/Voskan/robinstat/internal/robinhood"
	"github.com/Voskan/robinstat/pkg/hostctx"
)

// goldenRatio64 is the 64-bit golden-ratio multiplier MVM_ptr_hash_code
// uses to spread pointer bits: floor(2^64 / phi), the same constant used by
// Fibonacci hashing generally.
const goldenRatio64 uint64 = 0x9E3779B97F4A7C15

// Entry is the table's per-slot storage: a raw pointer key plus a single
// uintptr value, matching MVMPtrHashEntry exactly (no padding concerns:
// both fields are machine-word sized).
type Entry struct {
	Key   unsafe.Pointer
	Value uintptr
}

type policy struct{}

func (policy) Hash(key unsafe.Pointer) uint64 {
	return uint64(uintptr(key)) * goldenRatio64
}

func (policy) Equal(e *Entry, key unsafe.Pointer) bool { return e.Key == key }
func (policy) Absent(e *Entry) bool                    { return e.Key == nil }
func (policy) MarkAbsent(e *Entry) {
	e.Key = nil
	e.Value = 0
}
func (policy) KeyOf(e *Entry) unsafe.Pointer { return e.Key }

// Table is a pointer-keyed Robin-Hood hash table. The zero value is not
// usable; construct with New.
type Table struct {
	tbl *robinhood.Table[unsafe.Pointer, Entry]
	cfg hostctx.Config
}

// New builds an empty table. Storage is allocated lazily on first Insert,
// mirroring the original's deferred hash_initial_allocate.
func New(opts ...hostctx.Option) (*Table, error) {
	cfg, err := hostctx.Apply(opts...)
	if err != nil {
		return nil, err
	}
	t := &Table{cfg: cfg}
	engine := robinhood.New[unsafe.Pointer, Entry](policy{}, cfg.InitialCapacity, 64, cfg.MaxProbeDistance)
	engine.OnGrow(func(oldSize, newSize uint32) {
		cfg.Logger.Debug("ptrhash grow", zap.Uint32("old", oldSize), zap.Uint32("new", newSize))
		cfg.Metrics.IncGrow("ptrhash")
	})
	t.tbl = engine
	return t, nil
}

// Fetch returns the value stored for key, mirroring MVM_ptr_hash_fetch.
func (t *Table) Fetch(key unsafe.Pointer) (uintptr, bool) {
	e, ok := t.tbl.Fetch(key)
	if !ok {
		t.cfg.Metrics.IncFetchMiss("ptrhash")
		return 0, false
	}
	t.cfg.Metrics.IncFetchHit("ptrhash")
	return e.Value, true
}

// Insert stores value for key, conflict-checked: inserting the same key
// twice with a different value panics with hostctx.ErrInsertConflict,
// mirroring MVM_ptr_hash_insert's documented "don't do that" contract.
func (t *Table) Insert(key unsafe.Pointer, value uintptr) {
	e := t.tbl.LValueFetch(key)
	if e.Key == nil {
		e.Key = key
		e.Value = value
		t.cfg.Metrics.IncInsert("ptrhash")
		t.cfg.Metrics.SetItems("ptrhash", float64(t.tbl.Len()))
		return
	}
	if e.Value != value {
		panic(hostctx.ErrInsertConflict)
	}
}

// FetchAndDelete removes key if present, returning its value and whether it
// was found, mirroring MVM_ptr_hash_fetch_and_delete.
func (t *Table) FetchAndDelete(key unsafe.Pointer) (uintptr, bool) {
	e, ok := t.tbl.FetchAndDelete(key)
	if ok {
		t.cfg.Metrics.IncDelete("ptrhash")
		t.cfg.Metrics.SetItems("ptrhash", float64(t.tbl.Len()))
	}
	return e.Value, ok
}

func (t *Table) Len() uint32 { return t.tbl.Len() }

func (t *Table) Demolish() { t.tbl.Demolish() }

// DebugCheckInvariants exposes the layout fsck for tests.
func (t *Table) DebugCheckInvariants() error { return t.tbl.DebugCheckInvariants() }

// Mark reports every live pointer key to sink (values are plain uintptr
// words and are not reported), the marking walk
// a host GC runs over a live table, analogous to the recursive mark in
// MVM_spesh_stats_gc_mark but specialized to one flat table.
func (t *Table) Mark(worklist any, sink hostctx.GcSink) {
	t.tbl.ForEach(func(e *Entry) {
		sink.WorklistAdd(worklist, e.Key)
	})
}
