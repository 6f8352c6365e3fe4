// Package statstree implements the per-function statistics tree the
// speculation-stats aggregator folds trace events into:
// by_callsite -> by_type -> by_offset, plus a flat static-value list,
// grounded on the FuncStats structures and the by_callsite_idx/by_type/
// by_offset/add_static_value/add_type_tuple_at_offset helpers in stats.c.
// Every lookup here is a linear scan over a small slice rather than a map,
// matching the original's "realloc and scan" growth strategy: these lists
// stay short in practice (one entry per distinct callsite/type-tuple/
// bytecode-offset a function actually exercises) so a map's overhead buys
// nothing.
// © 2026 robinstat authors. MIT License.

package statstree

// TypeObs is one (type, concreteness) observation, the pair stats.c logs
// for a TYPE or RETURN event before it is folded into a by_offset's
// types[].
type TypeObs[T comparable] struct {
	Type     T
	Concrete bool
}

// ArgType is one slot of an arg_types tuple, matching the four-field
// {type, type_concrete, decont_type, decont_type_concrete} record
// spec.md §3.3 documents: the declared type/concreteness a PARAMETER event
// sets, plus the decontainerized type/concreteness a PARAMETER_DECONT
// event sets for the same slot when the declared type is a concrete
// container. A zero value (zero Type, zero DecontType) marks "never
// observed" for the completeness check ByTypeTuple runs before recording
// a tuple.
type ArgType[T comparable] struct {
	Type           T
	TypeConcrete   bool
	DecontType     T
	DecontConcrete bool
}

// CountedType pairs a TypeObs with how many times it has recurred, the
// by_offset types[] entry shape.
type CountedType[T comparable] struct {
	TypeObs[T]
	Count uint32
}

// CountedValue pairs an arbitrary static/invoke value with how many times
// it has recurred, the by_offset values[] entry shape.
type CountedValue struct {
	Value any
	Count uint32
}

// TypeTupleCount pairs a callsite index and its argument-type tuple with
// how many times that exact combination has been folded up from a
// callee's pop, the by_offset type_tuples[] entry shape.
type TypeTupleCount[T comparable] struct {
	CallsiteIdx int32
	ArgTypes    []ArgType[T]
	Count       uint32
}

// ByOffset accumulates everything observed at one bytecode offset for one
// (callsite, argument type tuple) combination: directly observed types
// (TYPE and RETURN events), directly observed values (INVOKE events), and
// caller/callee type-tuple attributions folded up from a callee's pop —
// matching add_type_at_offset, add_value_at_offset and
// add_type_tuple_at_offset.
type ByOffset[T comparable] struct {
	Offset     int32
	Types      []CountedType[T]
	Values     []CountedValue
	TypeTuples []TypeTupleCount[T]
}

// AddType increments the count for an already-seen (t, concrete) pair, or
// appends a fresh entry with count 1, matching add_type_at_offset's
// increment-or-add dedup.
func (bo *ByOffset[T]) AddType(t T, concrete bool) {
	for i := range bo.Types {
		if bo.Types[i].Type == t && bo.Types[i].Concrete == concrete {
			bo.Types[i].Count++
			return
		}
	}
	bo.Types = append(bo.Types, CountedType[T]{TypeObs: TypeObs[T]{Type: t, Concrete: concrete}, Count: 1})
}

// AddValue increments the count for an already-seen value, or appends a
// fresh entry with count 1, matching add_value_at_offset's increment-or-add
// dedup.
func (bo *ByOffset[T]) AddValue(value any) {
	for i := range bo.Values {
		if bo.Values[i].Value == value {
			bo.Values[i].Count++
			return
		}
	}
	bo.Values = append(bo.Values, CountedValue{Value: value, Count: 1})
}

// AddTypeTuple increments the count for an already-seen (callsiteIdx,
// argTypes) tuple, or appends a fresh, independently-owned copy with
// count 1, matching add_type_tuple_at_offset: the callee no longer owns
// the arg_types slice it handed up on pop, so the tuple is copied rather
// than aliased. sink.WriteBarrier is called once per non-zero Type and
// DecontType in the copied tuple against parent, matching the write
// barrier the original issues for every live type pointer newly retained
// by the caller's GC-root header. sink may be nil, matching a host that
// never installed a GcSink (the call is then skipped rather than nil-
// panicking).
func (bo *ByOffset[T]) AddTypeTuple(callsiteIdx int32, argTypes []ArgType[T], parent any, sink interface {
	WriteBarrier(parent, child any)
}) {
	for i := range bo.TypeTuples {
		tt := &bo.TypeTuples[i]
		if tt.CallsiteIdx == callsiteIdx && equalArgTypes(tt.ArgTypes, argTypes) {
			tt.Count++
			return
		}
	}
	owned := append([]ArgType[T](nil), argTypes...)
	if sink != nil {
		var zero T
		for _, at := range owned {
			if at.Type != zero {
				sink.WriteBarrier(parent, at.Type)
			}
			if at.DecontType != zero {
				sink.WriteBarrier(parent, at.DecontType)
			}
		}
	}
	bo.TypeTuples = append(bo.TypeTuples, TypeTupleCount[T]{CallsiteIdx: callsiteIdx, ArgTypes: owned, Count: 1})
}

func equalArgTypes[T comparable](a, b []ArgType[T]) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ByType holds everything observed for calls made with one particular
// argument-type tuple: its own hit/osr/depth counters (all three accrued
// at pop time, once the tuple is known — unlike ss and by_callsite, whose
// hits accrue at ENTRY/push time) plus the by_offset breakdowns reached from it,
// matching stats.c's "by_type" level.
type ByType[T comparable] struct {
	ArgTypes []ArgType[T]
	Hits     uint32
	OsrHits  uint32
	MaxDepth uint32
	ByOffset []*ByOffset[T]
}

// ByOffsetIdx returns (creating if necessary) the ByOffset for offset.
func (bt *ByType[T]) ByOffsetIdx(offset int32) *ByOffset[T] {
	for _, bo := range bt.ByOffset {
		if bo.Offset == offset {
			return bo
		}
	}
	bo := &ByOffset[T]{Offset: offset}
	bt.ByOffset = append(bt.ByOffset, bo)
	return bo
}

// ByCallsite holds every distinct argument-type tuple observed for calls
// made at one callsite descriptor index: its own hit/osr/depth counters
// plus the by_type breakdowns reached from it, matching stats.c's
// "by_callsite" level.
type ByCallsite[T comparable] struct {
	CallsiteIdx int32
	Hits        uint32
	OsrHits     uint32
	MaxDepth    uint32
	ByType      []*ByType[T]
}

// ByTypeTuple looks up (or creates) the ByType entry for argTypes. It
// returns (nil, false) and records nothing when argTypes is empty (no
// object-typed arguments to key on, matching cs_without_object_args) or
// incomplete (some positional slot, or some concrete container's decont
// slot, was never observed, matching incomplete_type_tuple) — both cases
// where the original discards the call_type_info entry outright rather
// than recording a partial tuple.
func (bc *ByCallsite[T]) ByTypeTuple(argTypes []ArgType[T]) (*ByType[T], bool) {
	if len(argTypes) == 0 || isIncompleteTuple(argTypes) {
		return nil, false
	}
	for _, bt := range bc.ByType {
		if equalArgTypes(bt.ArgTypes, argTypes) {
			return bt, true
		}
	}
	bt := &ByType[T]{ArgTypes: append([]ArgType[T](nil), argTypes...)}
	bc.ByType = append(bc.ByType, bt)
	return bt, true
}

// isIncompleteTuple reports whether tuple holds an object slot that was
// never observed (zero Type) or a concrete-container slot whose
// decontainerized type was never observed (TypeConcrete set but zero
// DecontType) — the stand-in here for incomplete_type_tuple's inspection
// of each arg_info's type/decont_type pointers for NULL.
func isIncompleteTuple[T comparable](tuple []ArgType[T]) bool {
	var zero T
	for _, at := range tuple {
		if at.Type == zero {
			return true
		}
		if at.TypeConcrete && at.DecontType == zero {
			return true
		}
	}
	return false
}

// StaticValue is one entry in a function's flat static-value list, recorded
// the first time a STATIC event names a given bytecode offset and never
// overwritten after, matching add_static_value's first-write-wins rule.
type StaticValue struct {
	Offset int32
	Value  any
}

// FuncStats is everything recorded for one static frame (function): total
// hit/OSR counters, the per-callsite call-shape breakdowns, per-offset
// static value captures, and the version stamp Cleanup ages against,
// matching the root fields spec.md §3.3 documents for SF (hits, osr_hits,
// last_update, by_callsite[], static_values[]).
type FuncStats[T comparable] struct {
	Hits         uint32
	OsrHits      uint32
	ByCallsite   []*ByCallsite[T]
	StaticValues []StaticValue
	LastUpdate   uint64
}

// ByCallsiteIdx returns (creating if necessary) the ByCallsite for idx,
// matching by_callsite_idx's linear-scan-then-realloc-append.
func (fs *FuncStats[T]) ByCallsiteIdx(idx int32) *ByCallsite[T] {
	for _, bc := range fs.ByCallsite {
		if bc.CallsiteIdx == idx {
			return bc
		}
	}
	bc := &ByCallsite[T]{CallsiteIdx: idx}
	fs.ByCallsite = append(fs.ByCallsite, bc)
	return bc
}

// AddStaticValue records value at offset unless some value was already
// recorded there, matching add_static_value's "the first sighting wins"
// contract — a function's static operand at a given offset cannot change
// between invocations, so only the initial capture is meaningful.
func (fs *FuncStats[T]) AddStaticValue(offset int32, value any) {
	for _, sv := range fs.StaticValues {
		if sv.Offset == offset {
			return
		}
	}
	fs.StaticValues = append(fs.StaticValues, StaticValue{Offset: offset, Value: value})
}

// Mark reports every live type/value pointer this tree holds to sink,
// mirroring MVM_spesh_stats_gc_mark's recursive descent through
// by_callsite -> by_type -> by_offset plus the flat static-value list.
func (fs *FuncStats[T]) Mark(worklist any, sink interface {
	WorklistAdd(worklist any, child any)
}) {
	for _, bc := range fs.ByCallsite {
		for _, bt := range bc.ByType {
			for _, at := range bt.ArgTypes {
				sink.WorklistAdd(worklist, at.Type)
				sink.WorklistAdd(worklist, at.DecontType)
			}
			for _, bo := range bt.ByOffset {
				for _, ct := range bo.Types {
					sink.WorklistAdd(worklist, ct.Type)
				}
				for _, cv := range bo.Values {
					sink.WorklistAdd(worklist, cv.Value)
				}
				for _, tt := range bo.TypeTuples {
					for _, at := range tt.ArgTypes {
						sink.WorklistAdd(worklist, at.Type)
						sink.WorklistAdd(worklist, at.DecontType)
					}
				}
			}
		}
	}
	for _, sv := range fs.StaticValues {
		sink.WorklistAdd(worklist, sv.Value)
	}
}

// Destroy drops every reference this tree holds, mirroring
// MVM_spesh_stats_destroy's recursive free.
func (fs *FuncStats[T]) Destroy() {
	fs.ByCallsite = nil
	fs.StaticValues = nil
}
