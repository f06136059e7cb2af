// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package laddr

import (
	"net"

	"grimm.is/laddrd/internal/laddrtype"
)

// node is one element of a circular doubly-linked list. A sentinel node with
// a nil val anchors the ring so insert/remove never have to special-case an
// empty list.
type node struct {
	val        *laddrtype.LocalAddress
	prev, next *node
}

// ring is an intrusive circular list with a round-robin cursor that always
// points at a live node or is nil when the ring is empty. Deleting the node
// the cursor points at advances the cursor to the next node (spec §9 "cursor
// always points at a live node or is null"; the source's unconditional
// advance-to-next is kept rather than guessed at — see DESIGN.md).
type ring struct {
	sentinel node
	cursor   *node
	count    int
}

func newRing() *ring {
	r := &ring{}
	r.sentinel.next = &r.sentinel
	r.sentinel.prev = &r.sentinel
	return r
}

// insertTail appends val and returns its node.
func (r *ring) insertTail(val *laddrtype.LocalAddress) *node {
	n := &node{val: val}
	tail := r.sentinel.prev
	tail.next = n
	n.prev = tail
	n.next = &r.sentinel
	r.sentinel.prev = n
	r.count++
	if r.cursor == nil {
		r.cursor = n
	}
	return n
}

// remove unlinks n, advancing the cursor past it if it was the current node.
func (r *ring) remove(n *node) {
	wasCursor := r.cursor == n
	next := n.next
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev, n.next = nil, nil
	r.count--

	if r.count == 0 {
		r.cursor = nil
		return
	}
	if wasCursor {
		if next == &r.sentinel {
			next = next.next
		}
		r.cursor = next
	}
}

// find returns the node holding a LocalAddress with the given (af, addr), or nil.
func (r *ring) find(af laddrtype.AddressFamily, addr net.IP) *node {
	for n := r.sentinel.next; n != &r.sentinel; n = n.next {
		if n.val.Equal(af, addr) {
			return n
		}
	}
	return nil
}

// advance returns the node under the cursor, then steps the cursor forward
// by step nodes (circularly), skipping the sentinel.
func (r *ring) advance(step int) *node {
	if r.cursor == nil {
		return nil
	}
	cur := r.cursor
	n := cur
	for i := 0; i < step; i++ {
		n = n.next
		if n == &r.sentinel {
			n = n.next
		}
	}
	r.cursor = n
	return cur
}

// snapshot returns every node's LocalAddress in ring order.
func (r *ring) snapshot() []*laddrtype.LocalAddress {
	out := make([]*laddrtype.LocalAddress, 0, r.count)
	for n := r.sentinel.next; n != &r.sentinel; n = n.next {
		out = append(out, n.val)
	}
	return out
}
