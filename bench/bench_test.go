package bench

// © 2026 robinstat authors. MIT License.

import (
	"testing"
	"unsafe"

	"github.com/Voskan/robinstat/pkg/ptrhash"
	"github.com/Voskan/robinstat/pkg/speshstats"
)

func BenchmarkPtrHashInsert(b *testing.B) {
	t, err := ptrhash.New()
	if err != nil {
		b.Fatal(err)
	}
	keys := make([]int, b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t.Insert(unsafe.Pointer(&keys[i]), uintptr(i))
	}
}

func BenchmarkPtrHashFetchHit(b *testing.B) {
	t, err := ptrhash.New()
	if err != nil {
		b.Fatal(err)
	}
	const n = 1 << 16
	keys := make([]int, n)
	for i := range keys {
		t.Insert(unsafe.Pointer(&keys[i]), uintptr(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		t.Fetch(unsafe.Pointer(&keys[i%n]))
	}
}

func BenchmarkSpeshStatsUpdate(b *testing.B) {
	agg, err := speshstats.New[string, string]()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cid := uint64(i)
		agg.Update(speshstats.Event[string, string]{Kind: speshstats.EventEntry, Cid: cid, Sf: "f", ArgCount: 1})
		agg.Update(speshstats.Event[string, string]{Kind: speshstats.EventParameter, Cid: cid, ParamIndex: 0, Type: "Int"})
		agg.Update(speshstats.Event[string, string]{Kind: speshstats.EventReturn, Cid: cid, BytecodeOffset: 4, Type: "Int", HasType: true})
	}
}
