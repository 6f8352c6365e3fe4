package rhlayout

// © 2026 robinstat authors. MIT License.

import "fmt"

// DebugCheckInvariants walks the live metadata range and verifies the
// structural invariants documented in str_hash_table.h: both sentinels
// intact, every live probe-distance byte within [0, maxProbeDistance], and
// curItems equal to the number of occupied slots. It is O(TrueSize) and
// intended for tests and fsck-style diagnostics, not hot paths — the
// equivalent of the original's uni_hash_fsck_internal debug hook.
func (l *Layout[E]) DebugCheckInvariants() error {
	if !l.Built() {
		return nil
	}
	if l.LeadingSentinel() != 1 {
		return fmt.Errorf("rhlayout: leading sentinel corrupted: %d", l.LeadingSentinel())
	}
	if l.TrailingSentinel() != 1 {
		return fmt.Errorf("rhlayout: trailing sentinel corrupted: %d", l.TrailingSentinel())
	}
	var occupied uint32
	for i := uint32(0); i < l.TrueSize(); i++ {
		pd := *l.MetaAt(i)
		if pd == 0 {
			continue
		}
		if pd > l.maxProbeDistance {
			return fmt.Errorf("rhlayout: probe distance %d at bucket %d exceeds max %d", pd, i, l.maxProbeDistance)
		}
		occupied++
	}
	if occupied != l.curItems {
		return fmt.Errorf("rhlayout: curItems=%d but %d slots occupied", l.curItems, occupied)
	}
	return nil
}
