package unihash

// © 2026 robinstat authors. MIT License.

import "testing"

func TestInsertFetchByteStrings(t *testing.T) {
	tbl, err := New()
	if err != nil {
		t.Fatal(err)
	}
	keys := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for i, k := range keys {
		tbl.InsertNoCheck(k, int32(i))
	}
	for i, k := range keys {
		hash, v, ok := tbl.Fetch(k)
		if !ok || v != int32(i) {
			t.Fatalf("Fetch(%s) = (%d,%d,%v), want value %d", k, hash, v, ok, i)
		}
		if hash == 0 {
			t.Fatalf("Fetch(%s) returned zero cached hash", k)
		}
	}
}

func TestFetchStringZeroCopy(t *testing.T) {
	tbl, err := New()
	if err != nil {
		t.Fatal(err)
	}
	tbl.InsertNoCheck([]byte("shared"), 7)
	if _, v, ok := tbl.FetchString("shared"); !ok || v != 7 {
		t.Fatalf("FetchString = (%d,%v), want (7,true)", v, ok)
	}
}

func TestTableOwnsKeyCopy(t *testing.T) {
	tbl, err := New()
	if err != nil {
		t.Fatal(err)
	}
	buf := []byte("mutable")
	tbl.InsertNoCheck(buf, 1)
	buf[0] = 'X'
	if _, v, ok := tbl.Fetch([]byte("mutable")); !ok || v != 1 {
		t.Fatalf("mutating caller buffer corrupted stored key: Fetch = (%d,%v)", v, ok)
	}
}
