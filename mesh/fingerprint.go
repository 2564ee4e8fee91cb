package mesh

import (
	"encoding/binary"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Fingerprint hashes the replicated location and rank lists. Phase A of the
// AMR cycle is deterministic, so every rank must arrive at the same value;
// a mismatch means the replicated state has diverged.
func (m *Mesh) Fingerprint() uint64 {
	h := murmur3.New64()
	var b [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(b[:], v)
		h.Write(b[:])
	}
	for _, loc := range m.loclist {
		put(uint64(loc.Level))
		put(uint64(loc.LX1))
		put(uint64(loc.LX2))
		put(uint64(loc.LX3))
	}
	for _, r := range m.ranklist {
		put(uint64(r))
	}
	return h.Sum64()
}

// VerifyReplication cross-checks the tree fingerprint over all ranks.
func (m *Mesh) VerifyReplication() error {
	fp := m.Fingerprint()
	all := m.Comm.AllGatherUint64(fp)
	for r, v := range all {
		if v != all[0] {
			return fmt.Errorf("mesh: replicated state diverged: rank %d fingerprint %016x != rank 0 %016x",
				r, v, all[0])
		}
	}
	return nil
}
