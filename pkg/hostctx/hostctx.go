// Package hostctx collects the small set of contracts every hash-table and
// stats package in this module needs from whatever embeds them: a per-call
// string/byte hasher, a GC cooperation sink for external collectors, and the
// shared logging/metrics plumbing. Specializations and the aggregator are
// built from a Config assembled by functional Options (see config.go): one
// small struct threaded through instead of a pile of loose parameters.
// © 2026 robinstat authors. MIT License.

package hostctx

import (
	"errors"
	"hash/maphash"

	"go.uber.org/zap"
)

// StringHasher produces a salted hash for a string key. The default
// implementation uses hash/maphash, which (like the host VM's own salted
// string hash) re-seeds per process start and is not stable across runs.
type StringHasher interface {
	HashString(s string) uint64
}

// BytesHasher is the []byte analogue of StringHasher, used by UniHash whose
// keys are raw byte strings rather than interned Go strings.
type BytesHasher interface {
	HashBytes(b []byte) uint64
}

// GcSink abstracts the two operations a host garbage collector needs from a
// structure that outlives a single collection cycle: a write barrier fired
// whenever a pointer field is overwritten, and a worklist add fired during
// mark. In this module the stats trees call WriteBarrier when they copy a
// callee's type tuple (statstree.ByOffset.AddTypeTuple) and WorklistAdd
// from Mark; the hash tables store keys without calling WriteBarrier.
// NoopGcSink is the default, correct for a module embedded in a program
// that relies on the ordinary Go garbage collector.
type GcSink interface {
	WriteBarrier(parent, child any)
	WorklistAdd(worklist any, child any)
}

// NoopGcSink implements GcSink by doing nothing. It is correct whenever the
// host process uses only the stock Go runtime GC, which already tracks every
// pointer-typed field reachable from a live table or stats tree; the sink
// only matters for a host that layers its own external collector underneath,
// exactly as MoarVM does.
type NoopGcSink struct{}

func (NoopGcSink) WriteBarrier(any, any)       {}
func (NoopGcSink) WorklistAdd(any, any) {}

type mapHasher struct {
	seed maphash.Seed
}

// NewMapHasher returns the default StringHasher/BytesHasher, seeded once at
// construction so every key hashed through it shares one salt, matching the
// "hash is randomized per process, stable per table run" contract the
// original hash tables document for DoS resistance.
func NewMapHasher() *mapHasher {
	return &mapHasher{seed: maphash.MakeSeed()}
}

func (h *mapHasher) HashString(s string) uint64 {
	return maphash.String(h.seed, s)
}

func (h *mapHasher) HashBytes(b []byte) uint64 {
	return maphash.Bytes(h.seed, b)
}

// Context bundles the collaborators a Table or Aggregator needs at
// construction time. It plays the role the arena-cache shard played for its
// cache: a small, explicitly-constructed dependency set rather than globals.
type Context struct {
	Strings StringHasher
	Bytes   BytesHasher
	Gc      GcSink
	Log     *zap.Logger
}

// NewContext builds a Context with the process-default hasher, a no-op GC
// sink, and a no-op logger. Callers override individual fields by
// assigning them directly; the functional Options apply to Config, not to
// Context.
func NewContext() *Context {
	h := NewMapHasher()
	return &Context{
		Strings: h,
		Bytes:   h,
		Gc:      NoopGcSink{},
		Log:     zap.NewNop(),
	}
}

// Oops reports an internal invariant violation: a bug in this module, never
// a condition a caller can recover from. It mirrors the host VM's MVM_oops,
// which aborts the process rather than propagate a recoverable error,
// because a corrupted hash table cannot be trusted to continue running.
// Call sites panic with the result rather than returning it.
type OopsError struct {
	msg string
}

func (e *OopsError) Error() string { return "hash table invariant violation: " + e.msg }

func Oops(msg string) error { return &OopsError{msg: msg} }

// ErrInsertConflict is returned (via panic, see Oops) by Insert when the
// same key is inserted twice with differing values. The checked Insert
// operation exists specifically to surface this as a catchable condition
// rather than a silent overwrite.
var ErrInsertConflict = errors.New("insert conflict: key already present with a different value")

// ErrKeyNotFound names the missing-key condition. No operation in this
// module returns it: FetchAndDelete reports a missing key as (zero, false).
var ErrKeyNotFound = errors.New("key not found")
