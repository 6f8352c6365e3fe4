// Package unsafehelpers centralises all unavoidable usage of the `unsafe`
// standard library package so the rest of this module stays clean and easy
// to audit. Every helper is documented with clear pre-/post-conditions.
//
// DISCLAIMER: these helpers deliberately break the Go memory-safety model
// for the sake of zero-allocation conversions. Use ONLY inside this
// repository; they are not part of the public API and may change without
// notice. Misuse will lead to subtle data races or garbage-collector
// corruption.
//
// All functions are go:linkname-free, cgo-free and pure Go 1.24.
// © 2026 robinstat authors. MIT License.

package unsafehelpers

import "unsafe"

/* -------------------------------------------------------------------------
   Zero-copy string/[]byte conversions
   ------------------------------------------------------------------------- */

// BytesToString converts a byte slice to a string without allocating. The
// caller must guarantee that b is never modified for the lifetime of the
// resulting string; used by unihash.Table.ForEachKey to hand back an owned
// entry's key without a per-entry allocation.
func BytesToString(b []byte) string {
	return unsafe.String(&b[0], len(b))
}

// StringToBytes reinterprets string data as a byte slice with no copy. The
// slice MUST remain read-only: writing to it mutates immutable string
// storage. Used by unihash.Table.FetchString so a caller holding an interned
// string key can probe a []byte-keyed table without an allocation.
func StringToBytes(s string) []byte {
	strHdr := (*[2]uintptr)(unsafe.Pointer(&s))
	return unsafe.Slice((*byte)(unsafe.Pointer(strHdr[0])), strHdr[1])
}

/* -------------------------------------------------------------------------
   Power-of-two sizing
   ------------------------------------------------------------------------- */

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
// Used by rhlayout's capacity rounding to skip the doubling loop when the
// caller already requested an exact power of two.
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}
