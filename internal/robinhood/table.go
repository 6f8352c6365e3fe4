package robinhood

// © 2026 robinstat authors. MIT License.

import (
	"github.com/Voskan/robinstat/internal/rhlayout"
	"github.com/Voskan/robinstat/pkg/hostctx"
)

// Table is the generic Robin-Hood engine: probe, bulk-shift insert,
// backward-shift delete and grow-on-demand, parameterized over a key type K
// and entry type E via Policy. It is built lazily — the zero value has a
// nil layout and allocates on the first LValueFetch, mirroring
// hash_initial_allocate being deferred until the first insert.
type Table[K any, E any] struct {
	layout *rhlayout.Layout[E]
	policy Policy[K, E]

	hashWidth        uint8
	initialCap       uint32
	maxProbeDistance uint8

	onGrow func(oldOfficial, newOfficial uint32)
}

// New constructs a Table that allocates its first layout lazily on first
// insert. hashWidth is the bit width of the hash codes Policy.Hash returns
// (64 for every specialization in this module); maxProbeDistance caps how
// far a probe run may extend before a grow is forced (0 selects
// rhlayout.DefaultMaxProbeDistance).
func New[K any, E any](policy Policy[K, E], initialCap uint32, hashWidth uint8, maxProbeDistance uint8) *Table[K, E] {
	return &Table[K, E]{
		policy:           policy,
		hashWidth:        hashWidth,
		initialCap:       initialCap,
		maxProbeDistance: maxProbeDistance,
	}
}

// OnGrow installs a callback fired every time the table doubles, used by
// the specializations to emit a metric or log line exactly the way
// hash_grow's callers might instrument resize events.
func (t *Table[K, E]) OnGrow(fn func(oldOfficial, newOfficial uint32)) {
	t.onGrow = fn
}

func (t *Table[K, E]) Len() uint32 {
	if !t.layout.Built() {
		return 0
	}
	return t.layout.CurItems()
}

func (t *Table[K, E]) Built() bool { return t.layout.Built() }

// Fetch mirrors MVM_ptr_hash_fetch: walk forward from key's ideal bucket,
// matching on equal probe distance, and stop the moment the metadata byte
// reads below the probe distance we're looking for — any key with this
// ideal bucket would already have displaced the current occupant, so a
// strictly smaller value proves the key was never inserted.
func (t *Table[K, E]) Fetch(key K) (*E, bool) {
	if !t.layout.Built() {
		return nil, false
	}
	layout := t.layout
	bucket := uint32(t.policy.Hash(key) >> layout.KeyRightShift())
	probeDistance := uint8(1)
	pos := bucket
	for {
		m := *layout.MetaAt(pos)
		if m == probeDistance {
			e := layout.EntryAt(pos)
			if t.policy.Equal(e, key) {
				return e, true
			}
		}
		if m < probeDistance {
			return nil, false
		}
		probeDistance++
		pos++
	}
}

// LValueFetch mirrors MVM_ptr_hash_lvalue_fetch: it guarantees the table is
// allocated and has room, grows first if the deferred-resize tripwire
// (maxItems forced to 0 by a prior insert that hit maxProbeDistance) or the
// ordinary load factor has tripped, then returns the slot for key — freshly
// cleared (Policy.Absent true) if key was not already present, or the
// existing entry otherwise. Callers distinguish the two cases with
// Policy.Absent and must fill in a freshly-absent slot themselves.
//
// When near capacity, an ordinary Fetch is tried first: growing only when
// key is genuinely new avoids invalidating outstanding iterators over a
// table that didn't actually need to resize to serve this call.
func (t *Table[K, E]) LValueFetch(key K) *E {
	if !t.layout.Built() {
		t.layout = rhlayout.Build[E](t.initialCap, t.hashWidth, t.maxProbeDistance)
	} else if t.layout.CurItems()+1 >= t.layout.MaxItems() {
		if e, ok := t.Fetch(key); ok {
			return e
		}
		t.grow()
	}
	e := t.insertInternal(key)
	if t.policy.Absent(e) {
		t.layout.IncCurItems()
	}
	return e
}

// OfficialSize reports the table's current official bucket count (0 if
// unbuilt), used by callers and tests that need to observe whether a given
// LValueFetch actually triggered a grow.
func (t *Table[K, E]) OfficialSize() uint32 {
	if !t.layout.Built() {
		return 0
	}
	return t.layout.OfficialSize()
}

// insertInternal is hash_insert_internal: probe forward; on the first slot
// whose probe distance is strictly less than our own (either genuinely
// empty, metadata==0, or occupied by a "richer" entry that must be
// displaced), bulk-shift every entry from there to the next empty slot
// forward by one, bumping each shifted entry's probe distance, then claim
// the freed slot. On an exact probe-distance match, check equality — a hit
// returns the existing entry instead of inserting.
func (t *Table[K, E]) insertInternal(key K) *E {
	layout := t.layout
	if layout.CurItems() >= layout.MaxItems() {
		panic(hostctx.Oops("insertInternal called without a prior grow check"))
	}
	bucket := uint32(t.policy.Hash(key) >> layout.KeyRightShift())
	probeDistance := uint8(1)
	pos := bucket

	for {
		m := *layout.MetaAt(pos)
		if m < probeDistance {
			if m != 0 {
				t.bulkShiftInsert(pos, m)
			}
			if probeDistance == layout.MaxProbeDistance() {
				layout.SetMaxItems(0)
			}
			*layout.MetaAt(pos) = probeDistance
			e := layout.EntryAt(pos)
			t.policy.MarkAbsent(e)
			return e
		}
		if m == probeDistance {
			e := layout.EntryAt(pos)
			if t.policy.Equal(e, key) {
				return e
			}
		}
		probeDistance++
		pos++
	}
}

// bulkShiftInsert displaces the occupied run starting at pos one slot
// forward to make room for a new entry at pos, incrementing each displaced
// entry's probe distance by one as it moves further from its ideal bucket.
// oldProbeDistance is the probe distance already read from metadata[pos]
// before the caller decided to displace it.
func (t *Table[K, E]) bulkShiftInsert(pos uint32, oldProbeDistance byte) {
	layout := t.layout
	findPos := pos
	old := oldProbeDistance
	for old != 0 {
		next := old + 1
		if next == layout.MaxProbeDistance() {
			layout.SetMaxItems(0)
		}
		findPos++
		old = *layout.MetaAt(findPos)
		*layout.MetaAt(findPos) = next
	}
	for i := findPos; i > pos; i-- {
		*layout.EntryAt(i) = *layout.EntryAt(i - 1)
	}
}

// FetchAndDelete mirrors MVM_ptr_hash_fetch_and_delete: locate the slot by
// the same probe rule as Fetch, then backward-shift every subsequent slot
// whose probe distance is greater than 1 back by one position (since such
// an entry is not in its ideal bucket and can move closer), decrementing
// each moved entry's probe distance, stopping at the first slot that is
// already empty or already in its ideal bucket.
func (t *Table[K, E]) FetchAndDelete(key K) (E, bool) {
	var zero E
	if !t.layout.Built() {
		return zero, false
	}
	layout := t.layout
	bucket := uint32(t.policy.Hash(key) >> layout.KeyRightShift())
	probeDistance := uint8(1)
	pos := bucket
	for {
		m := *layout.MetaAt(pos)
		if m == probeDistance {
			e := layout.EntryAt(pos)
			if t.policy.Equal(e, key) {
				removed := *e
				t.shiftDeleteFrom(pos)
				layout.DecCurItems()
				return removed, true
			}
		}
		if m < probeDistance {
			return zero, false
		}
		probeDistance++
		pos++
	}
}

func (t *Table[K, E]) shiftDeleteFrom(pos uint32) {
	layout := t.layout
	for {
		next := *layout.MetaAt(pos + 1)
		if next < 2 {
			break
		}
		*layout.MetaAt(pos) = next - 1
		*layout.EntryAt(pos) = *layout.EntryAt(pos + 1)
		pos++
	}
	*layout.MetaAt(pos) = 0
	t.policy.MarkAbsent(layout.EntryAt(pos))
}

// grow doubles the layout and re-probes every live entry into it, mirroring
// hash_grow's allocate-new / reinsert-all / free-old sequence. Unlike the C
// original, which can memcpy entries whose bucket didn't change, every
// entry here is re-probed unconditionally: the decremented key-right-shift
// changes which bits select the bucket, so no entry is guaranteed to land
// in the same place.
func (t *Table[K, E]) grow() {
	old := t.layout
	grown := old.Grow()
	t.layout = grown
	for i := uint32(0); i < old.TrueSize(); i++ {
		if *old.MetaAt(i) == 0 {
			continue
		}
		src := old.EntryAt(i)
		key := t.policy.KeyOf(src)
		dst := t.insertInternal(key)
		*dst = *src
		grown.IncCurItems()
	}
	old.Demolish()
	if t.onGrow != nil {
		t.onGrow(old.OfficialSize(), grown.OfficialSize())
	}
}

// Demolish releases the table's storage, mirroring MVM_*_hash_demolish.
func (t *Table[K, E]) Demolish() {
	t.layout.Demolish()
}

// DebugCheckInvariants delegates to the layout's structural fsck.
func (t *Table[K, E]) DebugCheckInvariants() error {
	if !t.layout.Built() {
		return nil
	}
	return t.layout.DebugCheckInvariants()
}

// ForEach visits every live entry in bucket order. It is the generic
// building block specializations use for iteration and GC marking
// (ptrhash's Mark, unihash's ForEachKey).
func (t *Table[K, E]) ForEach(visit func(e *E)) {
	if !t.layout.Built() {
		return
	}
	layout := t.layout
	for i := uint32(0); i < layout.TrueSize(); i++ {
		if *layout.MetaAt(i) == 0 {
			continue
		}
		visit(layout.EntryAt(i))
	}
}

// ShallowCopy duplicates the table's storage without deep-copying whatever
// the entries reference, mirroring MVM_index_hash_shallow_copy. Only safe
// for specializations whose entries need no deeper copy.
func (t *Table[K, E]) ShallowCopy() *Table[K, E] {
	cp := &Table[K, E]{
		policy:           t.policy,
		hashWidth:        t.hashWidth,
		initialCap:       t.initialCap,
		maxProbeDistance: t.maxProbeDistance,
	}
	if t.layout.Built() {
		cp.layout = t.layout.ShallowCopy()
	}
	return cp
}
