package speshstats

// © 2026 robinstat authors. MIT License.

import "testing"

func TestSingleFrameEntryReturnAccumulatesHitsAndTypes(t *testing.T) {
	agg, err := New[string, string]()
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		cid := uint64(i)
		agg.Update(Event[string, string]{Kind: EventEntry, Cid: cid, Sf: "add", CallsiteIdx: 0, ArgCount: 2})
		agg.Update(Event[string, string]{Kind: EventParameter, Cid: cid, ParamIndex: 0, Type: "Int", Concrete: true})
		agg.Update(Event[string, string]{Kind: EventParameter, Cid: cid, ParamIndex: 1, Type: "Int", Concrete: true})
		agg.Update(Event[string, string]{Kind: EventType, Cid: cid, BytecodeOffset: 4, Type: "Int", Concrete: true})
		agg.Update(Event[string, string]{Kind: EventReturn, Cid: cid, BytecodeOffset: 8, Type: "Int", Concrete: true, HasType: true})
	}

	fs, ok := agg.StatsFor("add")
	if !ok {
		t.Fatal("expected stats for \"add\"")
	}
	if fs.Hits != 3 {
		t.Fatalf("Hits = %d, want 3", fs.Hits)
	}
	if len(fs.ByCallsite) != 1 {
		t.Fatalf("len(ByCallsite) = %d, want 1", len(fs.ByCallsite))
	}
	bc := fs.ByCallsite[0]
	if bc.Hits != 3 {
		t.Fatalf("ByCallsite[0].Hits = %d, want 3 (accrued at ENTRY)", bc.Hits)
	}
	bt := bc.ByType
	if len(bt) != 1 {
		t.Fatalf("len(ByType) = %d, want 1 (one distinct arg tuple Int,Int)", len(bt))
	}
	if bt[0].Hits != 3 {
		t.Fatalf("ByType[0].Hits = %d, want 3", bt[0].Hits)
	}
	if len(bt[0].ByOffset) != 1 || bt[0].ByOffset[0].Offset != 4 {
		t.Fatalf("expected one offset log at bytecode offset 4, got %+v", bt[0].ByOffset)
	}
	if got := bt[0].ByOffset[0].Types; len(got) != 1 || got[0].Type != "Int" || got[0].Count != 3 {
		t.Fatalf("offset 4 types = %+v, want one (Int,true) with count 3", got)
	}
}

func TestIncompleteTypeTupleDiscarded(t *testing.T) {
	agg, err := New[string, string]()
	if err != nil {
		t.Fatal(err)
	}
	cid := uint64(1)
	agg.Update(Event[string, string]{Kind: EventEntry, Cid: cid, Sf: "f", CallsiteIdx: 0, ArgCount: 2})
	// Only the first of two declared arguments is ever observed.
	agg.Update(Event[string, string]{Kind: EventParameter, Cid: cid, ParamIndex: 0, Type: "Int", Concrete: true})
	agg.Update(Event[string, string]{Kind: EventReturn, Cid: cid, BytecodeOffset: 8})

	fs, ok := agg.StatsFor("f")
	if !ok {
		t.Fatal("expected stats for \"f\"")
	}
	if len(fs.ByCallsite) != 1 {
		t.Fatalf("len(ByCallsite) = %d, want 1", len(fs.ByCallsite))
	}
	if fs.ByCallsite[0].Hits != 1 {
		t.Fatalf("ByCallsite[0].Hits = %d, want 1 (hits accrue regardless of tuple completeness)", fs.ByCallsite[0].Hits)
	}
	if len(fs.ByCallsite[0].ByType) != 0 {
		t.Fatalf("expected incomplete type tuple to be discarded, got %d entries", len(fs.ByCallsite[0].ByType))
	}
}

// TestCallerCalleeAttributionOnReturn implements spec.md Scenario S5:
// ENTRY A @ C_AB; INVOKE @offset=10, code=B_code; ENTRY B @ C_B1;
// PARAMETER(0, T_obj, concrete); RETURN(T_ret); RETURN(_). A's
// by_offset[10].type_tuples must contain (C_B1, [T_obj/concrete]) with
// count 1, and A's by_offset[10].types must contain (T_ret, concrete)
// with count 1.
func TestCallerCalleeAttributionOnReturn(t *testing.T) {
	agg, err := New[string, string]()
	if err != nil {
		t.Fatal(err)
	}

	const callerCallsite, calleeCallsite = int32(0), int32(1)
	agg.Update(Event[string, string]{Kind: EventEntry, Cid: 1, Sf: "caller", CallsiteIdx: callerCallsite, ArgCount: 1})
	agg.Update(Event[string, string]{Kind: EventParameter, Cid: 1, ParamIndex: 0, Type: "Str", Concrete: true})
	agg.Update(Event[string, string]{Kind: EventInvoke, Cid: 1, BytecodeOffset: 10, InvokeTarget: "callee", HasInvokeTarget: true})
	agg.Update(Event[string, string]{Kind: EventEntry, Cid: 2, Sf: "callee", CallsiteIdx: calleeCallsite, ArgCount: 1})
	agg.Update(Event[string, string]{Kind: EventParameter, Cid: 2, ParamIndex: 0, Type: "Obj", Concrete: true})
	agg.Update(Event[string, string]{Kind: EventReturn, Cid: 2, BytecodeOffset: 20, Type: "Int", Concrete: true, HasType: true})
	agg.Update(Event[string, string]{Kind: EventReturn, Cid: 1, BytecodeOffset: 99})

	fs, ok := agg.StatsFor("caller")
	if !ok {
		t.Fatal("expected stats for \"caller\"")
	}
	bc := fs.ByCallsite[0]
	if len(bc.ByType) != 1 {
		t.Fatalf("caller: len(ByType) = %d, want 1", len(bc.ByType))
	}
	offsets := bc.ByType[0].ByOffset
	found := false
	for _, bo := range offsets {
		if bo.Offset != 10 {
			continue
		}
		found = true
		if len(bo.Types) != 1 || bo.Types[0].Type != "Int" || !bo.Types[0].Concrete || bo.Types[0].Count != 1 {
			t.Fatalf("offset 10: types = %+v, want one (Int,true) count 1 (attributed from callee's return)", bo.Types)
		}
		if len(bo.TypeTuples) != 1 {
			t.Fatalf("offset 10: type_tuples = %+v, want exactly one tuple (attributed from callee's call shape)", bo.TypeTuples)
		}
		tt := bo.TypeTuples[0]
		if tt.CallsiteIdx != calleeCallsite || tt.Count != 1 {
			t.Fatalf("offset 10: type_tuples[0] = %+v, want callsite %d count 1", tt, calleeCallsite)
		}
		if len(tt.ArgTypes) != 1 || tt.ArgTypes[0].Type != "Obj" || !tt.ArgTypes[0].TypeConcrete {
			t.Fatalf("offset 10: type_tuples[0].ArgTypes = %+v, want one (Obj,concrete) slot", tt.ArgTypes)
		}
	}
	if !found {
		t.Fatal("expected an offset log at 10 (the invoke site) attributed from callee's return type and call shape")
	}

	calleeStats, ok := agg.StatsFor("callee")
	if !ok || calleeStats.Hits != 1 {
		t.Fatalf("expected callee to also have its own hit recorded independently")
	}
}

// TestIncompleteCalleeTupleDiscardsOnlyChild implements spec.md Scenario
// S6: as S5 but omit the callee's PARAMETER. The callee's own by_type must
// not gain a record, and the caller's by_offset must not gain a
// type_tuples entry, but the callee's by_callsite.hits must still be 1.
func TestIncompleteCalleeTupleDiscardsOnlyChild(t *testing.T) {
	agg, err := New[string, string]()
	if err != nil {
		t.Fatal(err)
	}

	agg.Update(Event[string, string]{Kind: EventEntry, Cid: 1, Sf: "caller", CallsiteIdx: 0, ArgCount: 0})
	agg.Update(Event[string, string]{Kind: EventInvoke, Cid: 1, BytecodeOffset: 10, InvokeTarget: "callee", HasInvokeTarget: true})
	agg.Update(Event[string, string]{Kind: EventEntry, Cid: 2, Sf: "callee", CallsiteIdx: 1, ArgCount: 1})
	agg.Update(Event[string, string]{Kind: EventReturn, Cid: 2, BytecodeOffset: 20})
	agg.Update(Event[string, string]{Kind: EventReturn, Cid: 1, BytecodeOffset: 99})

	calleeStats, ok := agg.StatsFor("callee")
	if !ok {
		t.Fatal("expected stats for \"callee\"")
	}
	if len(calleeStats.ByCallsite) != 1 || calleeStats.ByCallsite[0].Hits != 1 {
		t.Fatalf("callee: ByCallsite = %+v, want one entry with Hits=1", calleeStats.ByCallsite)
	}
	if len(calleeStats.ByCallsite[0].ByType) != 0 {
		t.Fatalf("callee: expected incomplete tuple (missing PARAMETER) to be discarded, got %d by_type entries", len(calleeStats.ByCallsite[0].ByType))
	}

	callerStats, _ := agg.StatsFor("caller")
	for _, bc := range callerStats.ByCallsite {
		for _, bt := range bc.ByType {
			for _, bo := range bt.ByOffset {
				if len(bo.TypeTuples) != 0 {
					t.Fatalf("caller: expected no type_tuples when callee's tuple was incomplete, got %+v", bo.TypeTuples)
				}
			}
		}
	}
}

// TestFindCollapsesIntervening verifies spec.md §4.4's find: a TYPE event
// addressing a buried frame pops everything above it (folding those
// frames' own stats) rather than leaving them dangling.
func TestFindCollapsesIntervening(t *testing.T) {
	agg, err := New[string, string]()
	if err != nil {
		t.Fatal(err)
	}

	agg.Update(Event[string, string]{Kind: EventEntry, Cid: 1, Sf: "outer", CallsiteIdx: 0, ArgCount: 0})
	agg.Update(Event[string, string]{Kind: EventEntry, Cid: 2, Sf: "inner", CallsiteIdx: 0, ArgCount: 0})
	agg.Update(Event[string, string]{Kind: EventOSR, Cid: 2})
	// A TYPE event for the buried "outer" frame, with "inner" still live
	// and never explicitly returned, must collapse "inner" first — its
	// pending OSR hit only folds into its own stats tree on pop.
	agg.Update(Event[string, string]{Kind: EventType, Cid: 1, BytecodeOffset: 3, Type: "Int", Concrete: true})

	innerStats, ok := agg.StatsFor("inner")
	if !ok || innerStats.OsrHits != 1 {
		t.Fatalf("expected \"inner\"'s OSR hit to have folded in, meaning it was popped when \"outer\" was addressed; got OsrHits=%d", innerStats.OsrHits)
	}
}
