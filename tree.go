// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package radix

import (
	"bytes"
	"sync"
)

// Tree is a mutable radix tree keyed by arbitrary byte strings and mapping
// to arbitrary byte-string values. Shared key prefixes are stored once, and
// whole key ranges can be enumerated or dropped by prefix.
//
// A single reader/writer lock guards the tree: Get, LongestPrefix and
// walkers share it, Set, Delete, DeletePrefix and Clear take it
// exclusively. Keys and values are deep-copied on the way in and on the way
// out, so callers never share buffers with the tree.
type Tree struct {
	mu   sync.RWMutex
	root *node
	size int
}

// New returns an empty tree, ready for use.
func New() *Tree {
	return &Tree{root: &node{}}
}

// Len returns the number of keys currently stored.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

type locateResult struct {
	node     *node
	keyIndex int
}

// locate walks from the root, consuming key bytes against successive edge
// labels, and returns the deepest node reached together with how many key
// bytes were consumed. With allowPartial set, a child whose label extends
// past the end of the key is still descended into when the remaining key is
// a prefix of that label; keyIndex then overshoots len(key) by the
// unconsumed label tail, which walkers use to mount mid-edge.
func (t *Tree) locate(key []byte, allowPartial bool) locateResult {
	current := t.root
	keyIndex := 0

	for keyIndex < len(key) {
		descended := false
		for _, child := range current.children {
			if keyIndex+len(child.label) <= len(key) {
				if bytes.Equal(key[keyIndex:keyIndex+len(child.label)], child.label) {
					keyIndex += len(child.label)
					current = child
					descended = true
					break
				}
			} else if allowPartial {
				if longestCommonPrefix(key[keyIndex:], child.label) == len(key)-keyIndex {
					keyIndex += len(child.label)
					current = child
					descended = true
					break
				}
			}
		}
		if !descended {
			break
		}
	}
	return locateResult{node: current, keyIndex: keyIndex}
}

// Get returns a copy of the value stored under key. The second return is
// false when the key is absent; an empty stored value comes back as a
// non-nil empty slice.
func (t *Tree) Get(key []byte) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := t.locate(key, false)
	if res.keyIndex != len(key) || !res.node.hasValue {
		return nil, false
	}
	return copyBytes(res.node.value), true
}

// Set stores value under key, reporting whether an existing value was
// replaced. Both buffers are copied; the caller keeps ownership of its
// arguments.
func (t *Tree) Set(key, value []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	value = copyBytes(value)

	res := t.locate(key, false)
	if res.keyIndex == len(key) {
		replaced := res.node.hasValue
		res.node.setValue(value)
		if !replaced {
			t.size++
		}
		return replaced
	}

	remainder := key[res.keyIndex:]

	// A child sharing any leading bytes with the remainder forces a split
	// along the common prefix. At most one child can share a prefix.
	for _, child := range res.node.children {
		common := longestCommonPrefix(remainder, child.label)
		if common == 0 {
			continue
		}
		splitChild(child, common)
		if common == len(remainder) {
			// The common prefix is the whole key; it lands on the router
			// the split just produced.
			child.setValue(value)
		} else {
			child.children = append(child.children, &node{
				label:    copyBytes(remainder[common:]),
				value:    value,
				hasValue: true,
			})
		}
		t.size++
		return false
	}

	// Nothing in common with any child; append a new leaf.
	res.node.children = append(res.node.children, &node{
		label:    copyBytes(remainder),
		value:    value,
		hasValue: true,
	})
	t.size++
	return false
}

// splitChild cuts child's label at offset at. The tail, together with the
// child's old value and children, moves into a new node that becomes the
// child's first child; child itself is left as a router holding only the
// common bytes.
func splitChild(child *node, at int) {
	tail := &node{
		label:    copyBytes(child.label[at:]),
		value:    child.value,
		hasValue: child.hasValue,
		children: child.children,
	}
	child.label = child.label[:at]
	child.clearValue()
	child.children = []*node{tail}
}

// Delete removes key from the tree, reporting whether a value was removed.
func (t *Tree) Delete(key []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(key) == 0 {
		if !t.root.hasValue {
			return false
		}
		t.root.clearValue()
		t.size--
		return true
	}

	parent := t.root
	keyIndex := 0
outer:
	for {
		for _, child := range parent.children {
			if keyIndex+len(child.label) > len(key) {
				continue
			}
			if !bytes.Equal(key[keyIndex:keyIndex+len(child.label)], child.label) {
				continue
			}
			keyIndex += len(child.label)
			if keyIndex == len(key) {
				if !child.hasValue {
					return false
				}
				t.cutBranch(parent, child)
				t.size--
				return true
			}
			parent = child
			continue outer
		}
		return false
	}
}

// cutBranch clears target's value and repairs the tree around it: a
// childless target is unlinked from parent, and any router left with a
// single child and no value is collapsed into that child. The merge never
// needs to cascade; every ancestor was already minimal before the cut.
func (t *Tree) cutBranch(parent, target *node) {
	target.clearValue()
	if len(target.children) > 0 {
		if len(target.children) == 1 {
			target.mergeWith(target.children[0])
		}
		return
	}
	parent.removeChild(target)
	if parent != t.root && !parent.hasValue && len(parent.children) == 1 {
		parent.mergeWith(parent.children[0])
	}
}

// DeletePrefix removes every key that begins with prefix, returning how
// many keys were removed. An empty prefix clears the entire tree.
func (t *Tree) DeletePrefix(prefix []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(prefix) == 0 {
		removed := t.root.countValues()
		t.root = &node{}
		t.size = 0
		return removed
	}

	parent := t.root
	keyIndex := 0
outer:
	for {
		for _, child := range parent.children {
			if keyIndex+len(child.label) <= len(prefix) {
				if !bytes.Equal(prefix[keyIndex:keyIndex+len(child.label)], child.label) {
					continue
				}
				keyIndex += len(child.label)
				if keyIndex == len(prefix) {
					return t.removeSubtree(parent, child)
				}
				parent = child
				continue outer
			}
			// The prefix may end inside this child's label; the whole
			// subtree under the child is covered in that case.
			if longestCommonPrefix(prefix[keyIndex:], child.label) == len(prefix)-keyIndex {
				return t.removeSubtree(parent, child)
			}
		}
		return 0
	}
}

// removeSubtree unlinks target and its whole subtree from parent, repairing
// the parent the same way a leaf removal does.
func (t *Tree) removeSubtree(parent, target *node) int {
	removed := target.countValues()
	parent.removeChild(target)
	if parent != t.root && !parent.hasValue && len(parent.children) == 1 {
		parent.mergeWith(parent.children[0])
	}
	t.size -= removed
	return removed
}

// Clear drops every key and value. The tree remains usable afterwards.
func (t *Tree) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.root = &node{}
	t.size = 0
}

// LongestPrefix returns the longest stored key that is a prefix of k,
// together with a copy of its value.
func (t *Tree) LongestPrefix(k []byte) ([]byte, []byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var (
		lastKey []byte
		lastVal []byte
		found   bool
	)
	if t.root.hasValue {
		lastKey = []byte{}
		lastVal = t.root.value
		found = true
	}

	current := t.root
	keyIndex := 0
outer:
	for keyIndex < len(k) {
		for _, child := range current.children {
			if keyIndex+len(child.label) > len(k) {
				continue
			}
			if !bytes.Equal(k[keyIndex:keyIndex+len(child.label)], child.label) {
				continue
			}
			keyIndex += len(child.label)
			current = child
			if child.hasValue {
				lastKey = copyBytes(k[:keyIndex])
				lastVal = child.value
				found = true
			}
			continue outer
		}
		break
	}

	if !found {
		return nil, nil, false
	}
	return lastKey, copyBytes(lastVal), true
}
