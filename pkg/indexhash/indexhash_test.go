package indexhash

// © 2026 robinstat authors. MIT License.

import "testing"

type sliceResolver []string

func (r sliceResolver) StringAt(i uint32) string { return r[i] }

func TestInsertFetchAndContentEquality(t *testing.T) {
	strs := sliceResolver{"alpha", "beta", "gamma"}
	tbl, err := New(strs)
	if err != nil {
		t.Fatal(err)
	}
	tbl.InsertNoCheck("alpha", 0)
	tbl.InsertNoCheck("beta", 1)
	tbl.InsertNoCheck("gamma", 2)

	for i, s := range strs {
		idx, ok := tbl.Fetch(s)
		if !ok || idx != uint32(i) {
			t.Fatalf("Fetch(%q) = (%d,%v), want (%d,true)", s, idx, ok, i)
		}
	}
	if _, ok := tbl.Fetch("delta"); ok {
		t.Fatal("expected miss for unseen string")
	}
}

func TestShallowCopyIndependence(t *testing.T) {
	strs := sliceResolver{"x", "y"}
	tbl, err := New(strs)
	if err != nil {
		t.Fatal(err)
	}
	tbl.InsertNoCheck("x", 0)

	cp := tbl.ShallowCopy()
	tbl.InsertNoCheck("y", 1)

	if _, ok := cp.Fetch("y"); ok {
		t.Fatal("shallow copy observed an insert made after the copy")
	}
	if _, ok := tbl.Fetch("y"); !ok {
		t.Fatal("original table should still observe its own insert")
	}
}

func TestDeleteThenReinsert(t *testing.T) {
	strs := sliceResolver{"a", "b"}
	tbl, err := New(strs)
	if err != nil {
		t.Fatal(err)
	}
	tbl.InsertNoCheck("a", 0)
	if _, ok := tbl.FetchAndDelete("a"); !ok {
		t.Fatal("expected delete to find key")
	}
	if _, ok := tbl.Fetch("a"); ok {
		t.Fatal("key should be gone after delete")
	}
	tbl.InsertNoCheck("b", 1)
	if v, ok := tbl.Fetch("b"); !ok || v != 1 {
		t.Fatalf("Fetch(b) = (%d,%v), want (1,true)", v, ok)
	}
	if err := tbl.DebugCheckInvariants(); err != nil {
		t.Fatal(err)
	}
}
