// Package simstack implements the call-stack simulation the speculation
// stats aggregator reconstructs from a stream of correlation-id-tagged
// trace events, grounded on SimStack/SimStackFrame and sim_stack_push/
// sim_stack_pop/sim_stack_find/sim_stack_destroy in stats.c.
//
// It is generic over SF, the static-frame identity type (whatever the host
// uses to name a function), and T, the type-identity type (whatever the
// host uses to name a runtime type). Both only need to be comparable; the
// zero value of T stands in for "no type observed yet" the same way a NULL
// MVMObject* type pointer does in the original.
// © 2026 robinstat authors. MIT License.

package simstack

import "github.com/Voskan/robinstat/internal/statstree"

// OffsetLogKind names which of the two pending-observation shapes one
// OffsetLog entry carries, collapsing the three-way MVM_SPESH_LOG_TYPE /
// _RETURN / _INVOKE distinction the pop-time fold switches on (TYPE and
// RETURN share one shape).
type OffsetLogKind uint8

const (
	// OffsetLogType is a TYPE or RETURN observation: a (type, concrete)
	// pair destined for the owning by_offset's Types.
	OffsetLogType OffsetLogKind = iota
	// OffsetLogValue is an INVOKE observation: an arbitrary value destined
	// for the owning by_offset's Values.
	OffsetLogValue
)

// OffsetLog is one pending observation logged against a frame while it is
// live, to be folded into that frame's stats tree entry at pop time,
// matching add_type_at_offset/add_value_at_offset's call sites in
// sim_stack_pop.
type OffsetLog[T comparable] struct {
	Offset int32
	Kind   OffsetLogKind
	Obs    statstree.TypeObs[T]
	Value  any
}

// CallTypeInfo is one callee's (callsite, arg_types) tuple recorded into
// its caller's pending list by add_sim_call_type_info, to be folded into
// the caller's by_offset.TypeTuples at the caller's own pop, attributing
// the callee's eventual call shape back to the caller's invoke site.
type CallTypeInfo[T comparable] struct {
	Offset      int32
	CallsiteIdx int32
	ArgTypes    []statstree.ArgType[T]
}

// Frame is one simulated call on the stack: the static frame it is an
// activation of, the correlation id trace events use to address it, the
// call-shape it was entered with, and whatever it accumulated while live.
type Frame[SF comparable, T comparable] struct {
	Sf          SF
	Cid         uint64
	CallsiteIdx int32
	Depth       uint32

	ArgTypes []statstree.ArgType[T]

	OffsetLogs   []OffsetLog[T]
	CallTypeInfo []CallTypeInfo[T]
	OsrHits      uint32

	LastInvokeOffset    int32
	LastInvokeTarget    SF
	HasLastInvokeTarget bool
}

// SetType records the declared type and concreteness observed for argument
// index idx, matching param_type's bounds-checked write into a frame's
// arg_types[idx].type/type_concrete. Indexes outside the frame's declared
// argument count are ignored rather than panicking: a malformed or
// truncated trace should degrade the tuple to "incomplete" (see
// statstree.isIncompleteTuple), not crash the aggregator.
func (f *Frame[SF, T]) SetType(idx int32, t T, concrete bool) {
	if idx < 0 || int(idx) >= len(f.ArgTypes) {
		return
	}
	f.ArgTypes[idx].Type = t
	f.ArgTypes[idx].TypeConcrete = concrete
}

// SetDecontType records the decontainerized type and concreteness observed
// for argument index idx, matching a PARAMETER_DECONT event's write into
// the same slot's decont_type/decont_type_concrete fields — distinct
// storage from SetType's, so a concrete-container argument's declared and
// decontainerized types never clobber each other.
func (f *Frame[SF, T]) SetDecontType(idx int32, t T, concrete bool) {
	if idx < 0 || int(idx) >= len(f.ArgTypes) {
		return
	}
	f.ArgTypes[idx].DecontType = t
	f.ArgTypes[idx].DecontConcrete = concrete
}

// Stack is one thread-context's simulated call stack.
type Stack[SF comparable, T comparable] struct {
	frames []*Frame[SF, T]
}

// Push starts simulating a new activation, matching sim_stack_push. argCount
// is the number of object-typed argument slots the call's callsite
// descriptor declares; a callsite with none leaves ArgTypes nil, matching
// the original only allocating arg_types when cs->flag_count is nonzero.
func (s *Stack[SF, T]) Push(sf SF, cid uint64, callsiteIdx int32, argCount int32) *Frame[SF, T] {
	f := &Frame[SF, T]{
		Sf:          sf,
		Cid:         cid,
		CallsiteIdx: callsiteIdx,
		Depth:       uint32(len(s.frames)) + 1,
	}
	if argCount > 0 {
		f.ArgTypes = make([]statstree.ArgType[T], argCount)
	}
	s.frames = append(s.frames, f)
	return f
}

// Top returns the innermost live frame, or nil if the stack is empty.
func (s *Stack[SF, T]) Top() *Frame[SF, T] {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// FrameFor searches from the top for the frame with correlation id cid
// without disturbing the stack. It exists purely as an existence check —
// callers that need the frame itself use speshstats' Aggregator.find
// (spec.md §4.4's find), which pops and folds intervening frames, since
// every non-ENTRY event is expected to collapse them the same way.
func (s *Stack[SF, T]) FrameFor(cid uint64) *Frame[SF, T] {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Cid == cid {
			return s.frames[i]
		}
	}
	return nil
}

// Pop removes and returns the top frame along with the frame newly exposed
// beneath it (nil if none), matching sim_stack_pop's signature of needing
// both the popped frame and its caller for cross-frame attribution. Pop on
// an empty stack is a malformed-stack condition and panics.
func (s *Stack[SF, T]) Pop() (popped, parent *Frame[SF, T]) {
	if len(s.frames) == 0 {
		panic("simstack: Pop called on an empty stack")
	}
	popped = s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if len(s.frames) > 0 {
		parent = s.frames[len(s.frames)-1]
	}
	return popped, parent
}

// Depth reports how many frames are currently live.
func (s *Stack[SF, T]) Depth() int { return len(s.frames) }

// Destroy releases every live frame without folding it into any stats
// tree (folding is done by the aggregator, not the stack).
func (s *Stack[SF, T]) Destroy() { s.frames = nil }
