package fixkeyhash

// © 2026 robinstat authors. MIT License.

import (
	"context"
	"sync"
	"testing"
)

type ident struct {
	name  string
	count int
}

func keyOf(v *ident) string { return v.name }

func TestLValueFetchFreshSlotIsNil(t *testing.T) {
	tbl, err := New[ident](keyOf)
	if err != nil {
		t.Fatal(err)
	}
	slot := tbl.LValueFetch("foo")
	if *slot != nil {
		t.Fatal("expected freshly allocated slot to be nil")
	}
	*slot = &ident{name: "foo", count: 1}

	v, ok := tbl.Fetch("foo")
	if !ok || v.count != 1 {
		t.Fatalf("Fetch(foo) = (%v,%v)", v, ok)
	}

	slot2 := tbl.LValueFetch("foo")
	if *slot2 == nil || (*slot2).count != 1 {
		t.Fatal("expected existing slot to be returned, not a fresh nil one")
	}
}

func TestGetOrBuildDedupesConcurrentCallers(t *testing.T) {
	tbl, err := New[ident](keyOf)
	if err != nil {
		t.Fatal(err)
	}
	var builds int
	var mu sync.Mutex
	build := func(ctx context.Context, key string) (*ident, error) {
		mu.Lock()
		builds++
		mu.Unlock()
		return &ident{name: key, count: 1}, nil
	}

	const n = 32
	var wg sync.WaitGroup
	results := make([]*ident, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := tbl.GetOrBuild(context.Background(), "shared", build)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if builds != 1 {
		t.Fatalf("build called %d times, want 1", builds)
	}
	for i, v := range results {
		if v != results[0] {
			t.Fatalf("caller %d got a different pointer than caller 0", i)
		}
	}
}

func TestFetchAndDelete(t *testing.T) {
	tbl, err := New[ident](keyOf)
	if err != nil {
		t.Fatal(err)
	}
	tbl.InsertNoCheck("bar", &ident{name: "bar", count: 9})
	v, ok := tbl.FetchAndDelete("bar")
	if !ok || v.count != 9 {
		t.Fatalf("FetchAndDelete = (%v,%v)", v, ok)
	}
	if _, ok := tbl.Fetch("bar"); ok {
		t.Fatal("key should be gone after delete")
	}
	if err := tbl.DebugCheckInvariants(); err != nil {
		t.Fatal(err)
	}
}
