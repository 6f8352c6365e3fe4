// Package rhlayout implements the single memory layout shared by every
// Robin-Hood hash table specialization in this module: one logical
// allocation holding an entry array that grows from a pivot in one
// direction and a metadata byte array that grows from the same pivot in the
// other, with two sentinel bytes (value 1) bounding the live metadata range
// so probe loops can terminate without a bounds check.
//
// The C original realizes the pivot as raw pointer arithmetic over one
// malloc'd block, with entries addressed by subtracting from the pivot and
// metadata addressed by adding to it. We keep the conceptual split but not
// the raw-byte realization: entries live in their own []E slice (reverse
// indexed, so entries[n-1-i] is logical bucket i) and metadata in its own
// []byte slice, both sized together by Build. Folding them into one []byte
// blob and reinterpreting slices of it via unsafe would work for byte-sized
// or pointerless entries, but FixKeyHash's entry holds a live *V pointer;
// hiding that pointer inside a byte blob would make it invisible to the
// garbage collector, which is precisely the class of bug the host VM never
// has to think about because it walks its own heap explicitly (see
// pkg/hostctx.GcSink). A plain []E keeps the collector's cooperation for
// free and costs nothing the original cared about, since Go slice headers
// are already a single pointer, length and capacity away from the data.
// © 2026 robinstat authors. MIT License.

package rhlayout

import "github.com/Voskan/robinstat/internal/unsafehelpers"

// DefaultMaxProbeDistance bounds how far an occupied run can extend past its
// bucket's ideal position before the table is forced to grow rather than
// probe further. It must stay below 255 so the metadata byte (which also
// uses 0 for "empty" and 1 for sentinel) never wraps.
const DefaultMaxProbeDistance = 254

// Layout is the generic, unsafe-free table storage for one specialization's
// entry type E. It owns no hashing or equality logic; those are supplied by
// the robinhood.Policy the engine is parameterized over.
type Layout[E any] struct {
	entries  []E
	metadata []byte

	officialSize      uint32
	maxItems          uint32
	curItems          uint32
	probeOverflowSize uint32
	keyRightShift     uint8
	maxProbeDistance  uint8
}

// Build allocates a fresh layout sized for at least requestedCap live items,
// rounded up to the next power of two no smaller than 8 (MoarVM's
// initial size of 2^3 == 8, carried forward as the floor for every
// specialization rather than just PtrHash). hashWidth is the bit width of
// the hash codes this table will see (64 for the native-width
// specializations); keyRightShift is derived from it so that
// `hash >> keyRightShift` selects the high bits of the hash as the initial
// bucket, exactly as hash_initial_allocate computes
// PTR_INITIAL_KEY_RIGHT_SHIFT.
func Build[E any](requestedCap uint32, hashWidth uint8, maxProbeDistance uint8) *Layout[E] {
	if maxProbeDistance == 0 {
		maxProbeDistance = DefaultMaxProbeDistance
	}
	officialSize := nextPow2AtLeast(requestedCap, 8)
	shift := hashWidth - log2(officialSize)
	return buildWithShift[E](officialSize, shift, maxProbeDistance)
}

func buildWithShift[E any](officialSize uint32, keyRightShift uint8, maxProbeDistance uint8) *Layout[E] {
	maxItems := uint32(float64(officialSize) * 0.75)
	overflow := maxItems - 1
	if cap := uint32(maxProbeDistance) - 1; cap < overflow {
		overflow = cap
	}
	trueSize := officialSize + overflow

	l := &Layout[E]{
		entries:           make([]E, trueSize),
		metadata:          make([]byte, trueSize+2),
		officialSize:      officialSize,
		maxItems:          maxItems,
		probeOverflowSize: overflow,
		keyRightShift:     keyRightShift,
		maxProbeDistance:  maxProbeDistance,
	}
	l.metadata[0] = 1
	l.metadata[len(l.metadata)-1] = 1
	return l
}

// Grow returns a freshly built layout at double the official size with the
// key-right-shift decremented by one (so buckets spread over the extra bit),
// exactly mirroring hash_grow. It does not move data: callers must re-insert
// every live entry from the old layout into the new one themselves, since
// hash codes must be recomputed or re-shifted against the new shift.
func (l *Layout[E]) Grow() *Layout[E] {
	return buildWithShift[E](l.officialSize*2, l.keyRightShift-1, l.maxProbeDistance)
}

// ShallowCopy duplicates the entire layout (entries and metadata) without
// touching whatever the entries point to, mirroring MVM_index_hash_shallow_copy's
// single malloc+memcpy of the control block. Safe only for specializations
// whose entries require no deep copy semantics (IndexHash).
func (l *Layout[E]) ShallowCopy() *Layout[E] {
	cp := &Layout[E]{
		entries:           append([]E(nil), l.entries...),
		metadata:          append([]byte(nil), l.metadata...),
		officialSize:      l.officialSize,
		maxItems:          l.maxItems,
		curItems:          l.curItems,
		probeOverflowSize: l.probeOverflowSize,
		keyRightShift:     l.keyRightShift,
		maxProbeDistance:  l.maxProbeDistance,
	}
	return cp
}

// Demolish releases the backing slices, mirroring MVM_ptr_hash_demolish.
// After Demolish, Built reports false and every accessor is invalid to call.
func (l *Layout[E]) Demolish() {
	if l == nil {
		return
	}
	l.entries = nil
	l.metadata = nil
}

// Built reports whether the layout has ever had storage allocated (false
// for the zero value and after Demolish), mirroring the table's "is this
// hash initialized" check the C code does by testing the metadata pointer
// for null before the first insert.
func (l *Layout[E]) Built() bool { return l != nil && l.entries != nil }

func (l *Layout[E]) TrueSize() uint32          { return uint32(len(l.entries)) }
func (l *Layout[E]) OfficialSize() uint32      { return l.officialSize }
func (l *Layout[E]) MaxItems() uint32          { return l.maxItems }
func (l *Layout[E]) SetMaxItems(v uint32)      { l.maxItems = v }
func (l *Layout[E]) CurItems() uint32          { return l.curItems }
func (l *Layout[E]) IncCurItems()              { l.curItems++ }
func (l *Layout[E]) DecCurItems()              { l.curItems-- }
func (l *Layout[E]) KeyRightShift() uint8      { return l.keyRightShift }
func (l *Layout[E]) MaxProbeDistance() uint8   { return l.maxProbeDistance }
func (l *Layout[E]) ProbeOverflowSize() uint32 { return l.probeOverflowSize }

// EntryAt returns the entry at logical bucket index bucket (0 <= bucket <
// TrueSize). The underlying slice is addressed in reverse so bucket 0 is the
// highest-indexed slot, matching the pivot-relative "entries grow backward"
// layout, but callers never need to know that; bucket indices only ever
// increase as probes walk forward.
func (l *Layout[E]) EntryAt(bucket uint32) *E {
	n := uint32(len(l.entries))
	return &l.entries[n-1-bucket]
}

// MetaAt returns the probe-distance byte for logical bucket index bucket.
// Index 0 of the backing slice is the leading sentinel and is never
// addressable through MetaAt; index 1+bucket is the live byte.
func (l *Layout[E]) MetaAt(bucket uint32) *byte {
	return &l.metadata[1+bucket]
}

// LeadingSentinel and TrailingSentinel expose the two boundary bytes for
// invariant checking; both must always read 1.
func (l *Layout[E]) LeadingSentinel() byte  { return l.metadata[0] }
func (l *Layout[E]) TrailingSentinel() byte { return l.metadata[len(l.metadata)-1] }

func nextPow2AtLeast(n, floor uint32) uint32 {
	if n < floor {
		n = floor
	}
	if unsafehelpers.IsPowerOfTwo(uintptr(n)) {
		return n
	}
	p := floor
	for p < n {
		p <<= 1
	}
	return p
}

func log2(n uint32) uint8 {
	var shift uint8
	for n > 1 {
		n >>= 1
		shift++
	}
	return shift
}
