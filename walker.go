// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package radix

// Walker enumerates every key/value pair under a prefix in depth-first
// pre-order, visiting children in insertion order. It holds the tree's
// shared lock from construction until it is exhausted or closed, so writers
// block for its whole lifetime. Other readers, including other walkers, run
// concurrently with it.
//
// A walker abandoned before draining must be closed, or the tree can never
// be written to again.
type Walker struct {
	tree      *Tree
	stack     []walkerFrame
	valueRead bool
	released  bool
}

type walkerFrame struct {
	node     *node
	chunk    []byte
	childIdx int
}

// WalkPrefix returns a walker over every key beginning with prefix. A
// prefix with no matches yields an exhausted walker whose lock is already
// released.
func (t *Tree) WalkPrefix(prefix []byte) *Walker {
	t.mu.RLock()

	res := t.locate(prefix, true)
	if res.keyIndex < len(prefix) {
		t.mu.RUnlock()
		return &Walker{tree: t, released: true}
	}

	// The prefix may end inside the mount node's label. Emitted keys must
	// then include the label bytes bridging past the prefix end, so the
	// mount frame's chunk is the prefix plus that label tail.
	chunk := copyBytes(prefix)
	if overshoot := res.keyIndex - len(prefix); overshoot > 0 {
		label := res.node.label
		chunk = append(chunk, label[len(label)-overshoot:]...)
	}

	w := &Walker{tree: t}
	w.push(res.node, chunk)
	return w
}

// Next returns the next key/value pair, both deep copies. ok is false once
// the walker is exhausted; the shared lock has been released by then.
func (w *Walker) Next() (key, value []byte, ok bool) {
	for {
		if len(w.stack) == 0 {
			w.Close()
			return nil, nil, false
		}
		top := &w.stack[len(w.stack)-1]
		if !w.valueRead {
			w.valueRead = true
			if top.node.hasValue {
				return w.currentKey(), copyBytes(top.node.value), true
			}
		}
		if top.childIdx == len(top.node.children) {
			w.pop()
			continue
		}
		next := top.node.children[top.childIdx]
		w.push(next, next.label)
	}
}

// Close releases the shared lock early. It is safe to call more than once
// and after exhaustion.
func (w *Walker) Close() {
	if w.released {
		return
	}
	w.released = true
	w.stack = nil
	w.tree.mu.RUnlock()
}

// currentKey concatenates the edge chunks on the stack into the full key of
// the top node.
func (w *Walker) currentKey() []byte {
	total := 0
	for i := range w.stack {
		total += len(w.stack[i].chunk)
	}
	key := make([]byte, 0, total)
	for i := range w.stack {
		key = append(key, w.stack[i].chunk...)
	}
	return key
}

func (w *Walker) push(n *node, chunk []byte) {
	w.stack = append(w.stack, walkerFrame{node: n, chunk: chunk})
	w.valueRead = false
}

// pop discards the finished top frame and advances the parent past the
// child it just drained. The parent's value was emitted before any of its
// children, so valueRead stays set.
func (w *Walker) pop() {
	w.stack = w.stack[:len(w.stack)-1]
	if len(w.stack) > 0 {
		w.stack[len(w.stack)-1].childIdx++
	}
}

// WalkFn is called for each key/value pair visited by Walk. Returning false
// stops the walk early.
type WalkFn func(k, v []byte) bool

// Walk visits every key beginning with prefix in depth-first pre-order. The
// shared lock is released before Walk returns regardless of how the walk
// ends.
func (t *Tree) Walk(prefix []byte, fn WalkFn) {
	w := t.WalkPrefix(prefix)
	defer w.Close()
	for {
		k, v, ok := w.Next()
		if !ok {
			return
		}
		if !fn(k, v) {
			return
		}
	}
}
