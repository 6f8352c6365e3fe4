// Package speshstats is the public speculation-statistics aggregator: it
// consumes a stream of Events, reconstructs a per-thread-context call-stack
// simulation (internal/simstack), and folds the result into a shared
// per-function statistics tree (internal/statstree), grounded end to end on
// stats.c's MVM_spesh_stats_update / MVM_spesh_stats_cleanup /
// MVM_spesh_stats_gc_mark / MVM_spesh_stats_destroy.
// © 2026 robinstat authors. MIT License.

package speshstats

import (
	"sync"

	"github.com/Voskan/robinstat/internal/simstack"
	"github.com/Voskan/robinstat/internal/statstree"
	"github.com/Voskan/robinstat/pkg/hostctx"
)

// Aggregator is safe for concurrent use: Update, Cleanup, Mark and
// StatsFor all take the same lock, matching the host's expectation that
// stats collection can run from multiple executing thread-contexts while a
// GC mark pass or a cleanup sweep runs concurrently.
type Aggregator[SF comparable, T comparable] struct {
	mu      sync.Mutex
	stacks  map[uint64]*simstack.Stack[SF, T]
	byFunc  map[SF]*statstree.FuncStats[T]
	cfg     hostctx.Config
	version uint64
}

// New builds an empty aggregator.
func New[SF comparable, T comparable](opts ...hostctx.Option) (*Aggregator[SF, T], error) {
	cfg, err := hostctx.Apply(opts...)
	if err != nil {
		return nil, err
	}
	return &Aggregator[SF, T]{
		stacks: make(map[uint64]*simstack.Stack[SF, T]),
		byFunc: make(map[SF]*statstree.FuncStats[T]),
		cfg:    cfg,
	}, nil
}

// Update folds one trace event into the simulation, matching
// MVM_spesh_stats_update's per-MVM_SPESH_LOG_* case switch.
func (a *Aggregator[SF, T]) Update(e Event[SF, T]) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.version++

	stack := a.stackFor(e.ThreadCtx)

	switch e.Kind {
	case EventEntry:
		// ss.hits and by_callsite[idx].hits accrue at push time, not at
		// pop time — spec.md §4.6's ENTRY case, unlike every other stat
		// this aggregator tracks, increments before the frame has done
		// anything at all.
		fs := a.statsFor(e.Sf)
		fs.Hits++
		fs.ByCallsiteIdx(e.CallsiteIdx).Hits++
		stack.Push(e.Sf, e.Cid, e.CallsiteIdx, e.ArgCount)

	case EventParameter:
		if f := a.find(stack, e.Cid); f != nil {
			f.SetType(e.ParamIndex, e.Type, e.Concrete)
		}

	case EventParameterDecont:
		if f := a.find(stack, e.Cid); f != nil {
			f.SetDecontType(e.ParamIndex, e.Type, e.Concrete)
		}

	case EventType:
		if f := a.find(stack, e.Cid); f != nil {
			f.OffsetLogs = append(f.OffsetLogs, simstack.OffsetLog[T]{
				Offset: e.BytecodeOffset,
				Kind:   simstack.OffsetLogType,
				Obs:    statstree.TypeObs[T]{Type: e.Type, Concrete: e.Concrete},
			})
		}

	case EventInvoke:
		if f := a.find(stack, e.Cid); f != nil {
			f.LastInvokeOffset = e.BytecodeOffset
			f.LastInvokeTarget = e.InvokeTarget
			f.HasLastInvokeTarget = e.HasInvokeTarget
			f.OffsetLogs = append(f.OffsetLogs, simstack.OffsetLog[T]{
				Offset: e.BytecodeOffset,
				Kind:   simstack.OffsetLogValue,
				Value:  e.InvokeTarget,
			})
		}

	case EventOSR:
		if f := a.find(stack, e.Cid); f != nil {
			f.OsrHits++
		}

	case EventStatic:
		a.statsFor(e.Sf).AddStaticValue(e.BytecodeOffset, e.StaticValue)

	case EventReturn:
		a.handleReturn(stack, e)
	}
}

// find implements spec.md §4.4's find(cid): locate the frame with
// correlation id cid, popping (and fully folding, via foldPop) every
// frame above it along the way. This is the single lookup path every
// non-ENTRY event uses — a TYPE or OSR event addressing a buried frame
// collapses the frames above it exactly as a RETURN would, matching §9's
// "find pops intervening frames on match, which is the only way the stack
// can shrink out of order." Returns nil, folding nothing, if cid is not on
// the stack at all (a truncated or lost trace).
func (a *Aggregator[SF, T]) find(stack *simstack.Stack[SF, T], cid uint64) *simstack.Frame[SF, T] {
	if stack.FrameFor(cid) == nil {
		a.cfg.Logger.Debug("speshstats: event for unknown frame")
		return nil
	}
	for {
		top := stack.Top()
		if top.Cid == cid {
			return top
		}
		popped, parent := stack.Pop()
		a.foldPop(popped, parent)
	}
}

// handleReturn locates the frame the RETURN event names (via find,
// collapsing anything above it), pops it, folds its stats into its own
// function's tree, and then — the cross-frame attribution spec.md §4.6's
// RETURN case performs inline — if the now-exposed parent frame's most
// recent INVOKE targeted exactly the static frame that just returned,
// rewrites the event's offset to the parent's pending invoke offset and
// appends it to the parent's own offset_logs, to be folded into the
// parent's by_offset.Types when the parent itself eventually pops.
func (a *Aggregator[SF, T]) handleReturn(stack *simstack.Stack[SF, T], e Event[SF, T]) {
	if a.find(stack, e.Cid) == nil {
		return
	}
	popped, parent := stack.Pop()
	a.foldPop(popped, parent)

	if parent != nil && parent.HasLastInvokeTarget && parent.LastInvokeTarget == popped.Sf && e.HasType {
		parent.OffsetLogs = append(parent.OffsetLogs, simstack.OffsetLog[T]{
			Offset: parent.LastInvokeOffset,
			Kind:   simstack.OffsetLogType,
			Obs:    statstree.TypeObs[T]{Type: e.Type, Concrete: e.Concrete},
		})
	}
}

// foldPop implements spec.md §4.5's pop-semantics fold for the frame F
// just popped from stack, attributing it into F.Sf's stats tree and, when
// F was invoked from parent's most recent invoke site, attributing F's own
// call shape back into parent's pending call_type_info list.
func (a *Aggregator[SF, T]) foldPop(popped, parent *simstack.Frame[SF, T]) {
	fs := a.statsFor(popped.Sf)
	bc := fs.ByCallsiteIdx(popped.CallsiteIdx)

	// Step 1: osr_hits/max_depth fold at ss and by_callsite level.
	fs.OsrHits += popped.OsrHits
	bc.OsrHits += popped.OsrHits
	if popped.Depth > bc.MaxDepth {
		bc.MaxDepth = popped.Depth
	}

	// Step 2: obtain (or discard) the by_type record for this call shape.
	bt, ok := bc.ByTypeTuple(popped.ArgTypes)
	if ok {
		// Step 3: fold pending offset logs into by_offset.Types/Values.
		for _, log := range popped.OffsetLogs {
			bo := bt.ByOffsetIdx(log.Offset)
			switch log.Kind {
			case simstack.OffsetLogType:
				bo.AddType(log.Obs.Type, log.Obs.Concrete)
			case simstack.OffsetLogValue:
				bo.AddValue(log.Value)
			}
		}
		// Step 4: fold call_type_info entries attributed up from callees.
		for _, cti := range popped.CallTypeInfo {
			bo := bt.ByOffsetIdx(cti.Offset)
			bo.AddTypeTuple(cti.CallsiteIdx, cti.ArgTypes, popped.Sf, a.cfg.Gc)
		}
		// Step 5: hits/osr_hits/max_depth at the by_type level.
		bt.Hits++
		bt.OsrHits += popped.OsrHits
		if popped.Depth > bt.MaxDepth {
			bt.MaxDepth = popped.Depth
		}
	}

	// Step 6: attribute this frame's own call shape back to the parent's
	// invoke site, so the parent's eventual pop folds it into
	// parent.by_offset[offset].TypeTuples. Gated on ok, the same
	// completeness check step 2 applied: an incomplete tuple was never
	// retained as a by_type record for this frame either, so there is
	// nothing coherent left to attribute upward.
	if ok && parent != nil && parent.HasLastInvokeTarget && parent.LastInvokeTarget == popped.Sf {
		parent.CallTypeInfo = append(parent.CallTypeInfo, simstack.CallTypeInfo[T]{
			Offset:      parent.LastInvokeOffset,
			CallsiteIdx: popped.CallsiteIdx,
			ArgTypes:    popped.ArgTypes,
		})
	}

	// Step 7: the frame itself is discarded with the stack entry it came
	// from; nothing further to release explicitly under the Go GC.
}

func (a *Aggregator[SF, T]) stackFor(ctx uint64) *simstack.Stack[SF, T] {
	s, ok := a.stacks[ctx]
	if !ok {
		s = &simstack.Stack[SF, T]{}
		a.stacks[ctx] = s
	}
	return s
}

func (a *Aggregator[SF, T]) statsFor(sf SF) *statstree.FuncStats[T] {
	fs, ok := a.byFunc[sf]
	if !ok {
		fs = &statstree.FuncStats[T]{}
		a.byFunc[sf] = fs
	}
	fs.LastUpdate = a.version
	return fs
}

// StatsFor returns the accumulated statistics for sf, if any have been
// recorded.
func (a *Aggregator[SF, T]) StatsFor(sf SF) (*statstree.FuncStats[T], bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fs, ok := a.byFunc[sf]
	return fs, ok
}

// Cleanup discards every function's stats tree that has not been touched
// within the last maxAge Update calls, matching
// MVM_spesh_stats_cleanup's age check against
// instance->spesh_stats_version. It returns the number of trees discarded.
func (a *Aggregator[SF, T]) Cleanup(maxAge uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for sf, fs := range a.byFunc {
		if a.version-fs.LastUpdate > maxAge {
			fs.Destroy()
			delete(a.byFunc, sf)
			removed++
		}
	}
	if removed > 0 {
		a.cfg.Metrics.IncDelete("speshstats")
	}
	a.cfg.Metrics.SetItems("speshstats", float64(len(a.byFunc)))
	return removed
}

// Mark reports every live type and static value this aggregator's trees
// hold to the configured hostctx.GcSink, matching
// MVM_spesh_stats_gc_mark's walk over every function's tree.
func (a *Aggregator[SF, T]) Mark(worklist any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, fs := range a.byFunc {
		fs.Mark(worklist, a.cfg.Gc)
	}
}

// Destroy releases every function's stats tree and every thread-context's
// simulation stack, matching MVM_spesh_stats_destroy.
func (a *Aggregator[SF, T]) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, fs := range a.byFunc {
		fs.Destroy()
	}
	a.byFunc = nil
	for _, s := range a.stacks {
		s.Destroy()
	}
	a.stacks = nil
}

// FuncCount reports how many distinct functions currently have recorded
// statistics, an introspection call the host VM has no equivalent of.
func (a *Aggregator[SF, T]) FuncCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.byFunc)
}
