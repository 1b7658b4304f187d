// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package radix

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func drain(w *Walker) map[string]string {
	out := make(map[string]string)
	for {
		k, v, ok := w.Next()
		if !ok {
			return out
		}
		out[string(k)] = string(v)
	}
}

func TestWalkPrefix(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("api.foo.bar"), []byte("1"))
	tr.Set([]byte("api.foo.baz"), []byte("2"))
	tr.Set([]byte("api.foe.fum"), []byte("3"))
	tr.Set([]byte("abc.123.456"), []byte("4"))
	tr.Set([]byte("api.foo"), []byte("5"))
	tr.Set([]byte("api"), []byte("6"))

	require.Equal(t, map[string]string{
		"api.foo.bar": "1",
		"api.foo.baz": "2",
		"api.foe.fum": "3",
		"api.foo":     "5",
		"api":         "6",
	}, drain(tr.WalkPrefix([]byte("api"))))

	require.Equal(t, map[string]string{
		"api.foo.bar": "1",
		"api.foo.baz": "2",
		"api.foo":     "5",
	}, drain(tr.WalkPrefix([]byte("api.foo"))))

	require.Equal(t, map[string]string{
		"api.foo.bar": "1",
	}, drain(tr.WalkPrefix([]byte("api.foo.bar"))))

	all := drain(tr.WalkPrefix(nil))
	require.Len(t, all, 6)

	require.Empty(t, drain(tr.WalkPrefix([]byte("api.end"))))
	require.Empty(t, drain(tr.WalkPrefix([]byte("b"))))
}

func TestWalkPrefix_MidEdge(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("romane"), []byte("A"))
	tr.Set([]byte("romanus"), []byte("B"))
	tr.Set([]byte("romulus"), []byte("C"))

	// "roma" ends inside the "an" edge label; the emitted keys must carry
	// the bridging "n" rather than coming back truncated.
	require.Equal(t, map[string]string{
		"romane":  "A",
		"romanus": "B",
	}, drain(tr.WalkPrefix([]byte("roma"))))

	// Same again deeper inside a leaf edge.
	require.Equal(t, map[string]string{
		"romulus": "C",
	}, drain(tr.WalkPrefix([]byte("romul"))))
}

func TestWalkPrefix_PreOrder(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("api"), []byte("1"))
	tr.Set([]byte("api.foo"), []byte("2"))
	tr.Set([]byte("api.foo.bar"), []byte("3"))

	var order []string
	tr.Walk([]byte("api"), func(k, v []byte) bool {
		order = append(order, string(k))
		return true
	})

	// Parents come out before their descendants.
	require.Equal(t, []string{"api", "api.foo", "api.foo.bar"}, order)
}

func TestWalkPrefix_EmptyTree(t *testing.T) {
	t.Parallel()

	tr := New()
	w := tr.WalkPrefix([]byte("xyz"))
	_, _, ok := w.Next()
	require.False(t, ok)

	// The lock was released on construction; a writer must not block.
	require.False(t, tr.Set([]byte("xyz"), []byte("1")))
}

func TestWalkPrefix_RootValue(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set(nil, []byte("root"))
	tr.Set([]byte("a"), []byte("1"))

	require.Equal(t, map[string]string{
		"":  "root",
		"a": "1",
	}, drain(tr.WalkPrefix(nil)))
}

func TestWalker_ReleasesLockOnExhaustion(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("a"), []byte("1"))

	w := tr.WalkPrefix(nil)
	for {
		if _, _, ok := w.Next(); !ok {
			break
		}
	}

	// Drained walkers hold no lock; a writer proceeds immediately.
	tr.Set([]byte("b"), []byte("2"))
	require.Equal(t, 2, tr.Len())
}

func TestWalker_CloseReleasesLock(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("a"), []byte("1"))
	tr.Set([]byte("b"), []byte("2"))

	w := tr.WalkPrefix(nil)
	_, _, ok := w.Next()
	require.True(t, ok)

	// Abandon the walker early. Close is idempotent.
	w.Close()
	w.Close()

	tr.Set([]byte("c"), []byte("3"))
	require.Equal(t, 3, tr.Len())

	// A closed walker stays exhausted.
	_, _, ok = w.Next()
	require.False(t, ok)
}

func TestWalker_ExcludesWriters(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("a"), []byte("1"))

	w := tr.WalkPrefix(nil)
	_, _, ok := w.Next()
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		tr.Set([]byte("b"), []byte("2"))
		close(done)
	}()

	// The writer must stay blocked while the walker lives.
	select {
	case <-done:
		t.Fatal("writer proceeded while a walker held the read lock")
	case <-time.After(50 * time.Millisecond):
	}

	w.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer never proceeded after the walker closed")
	}
}

func TestWalk_StopEarly(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("a"), []byte("1"))
	tr.Set([]byte("b"), []byte("2"))
	tr.Set([]byte("c"), []byte("3"))

	count := 0
	tr.Walk(nil, func(k, v []byte) bool {
		count++
		return false
	})
	require.Equal(t, 1, count)

	// The early stop released the lock.
	tr.Set([]byte("d"), []byte("4"))
	require.Equal(t, 4, tr.Len())
}

func TestWalker_ResultsAreCopies(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Set([]byte("key"), []byte("value"))

	w := tr.WalkPrefix(nil)
	k, v, ok := w.Next()
	require.True(t, ok)
	w.Close()

	k[0] = 'x'
	v[0] = 'x'

	got, ok := tr.Get([]byte("key"))
	require.True(t, ok)
	require.Equal(t, []byte("value"), got)
}
