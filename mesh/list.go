package mesh

// The rank-local blocks form a doubly linked list in ascending gid. The
// list exists so the AMR step can splice a surviving block into the new
// list in O(1) instead of rebuilding arrays.

// appendBlock links mb at the tail of the list.
func (m *Mesh) appendBlock(mb *MeshBlock) {
	if m.first == nil {
		m.first = mb
		m.last = mb
		return
	}
	m.last.next = mb
	mb.prev = m.last
	m.last = mb
}

// detachBlock unlinks mb, leaving its own links cleared so it can be
// re-attached to another list.
func (m *Mesh) detachBlock(mb *MeshBlock) {
	if mb.prev != nil {
		mb.prev.next = mb.next
	} else {
		m.first = mb.next
	}
	if mb.next != nil {
		mb.next.prev = mb.prev
	} else {
		m.last = mb.prev
	}
	mb.prev, mb.next = nil, nil
}

// FirstBlock returns the head of the rank-local block list.
func (m *Mesh) FirstBlock() *MeshBlock { return m.first }

// FindMeshBlock returns the local block with the given gid, or nil.
func (m *Mesh) FindMeshBlock(gid int) *MeshBlock {
	for mb := m.first; mb != nil; mb = mb.next {
		if mb.GID == gid {
			return mb
		}
	}
	return nil
}

// forEachBlock applies fn to every local block in list order.
func (m *Mesh) forEachBlock(fn func(*MeshBlock)) {
	for mb := m.first; mb != nil; mb = mb.next {
		fn(mb)
	}
}

// NumLocalBlocks counts the blocks owned by this rank.
func (m *Mesh) NumLocalBlocks() int {
	n := 0
	for mb := m.first; mb != nil; mb = mb.next {
		n++
	}
	return n
}
