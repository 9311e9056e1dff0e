// SPDX-License-Identifier: Unlicense OR MIT

package gpucache

import "testing"

func TestRequestAllocatesOnce(t *testing.T) {
	c := New()
	c.BeginFrame()
	var h Handle
	w, ok := c.Request(&h, 1)
	if !ok || w == nil {
		t.Fatal("expected a writer for a fresh handle")
	}
	w.Push([4]float32{1, 0, 0, 1})

	addr1 := c.GetAddress(&h)

	// Same frame, same handle: still valid, no writer.
	w2, ok2 := c.Request(&h, 1)
	if ok2 || w2 != nil {
		t.Fatal("expected no writer for an already-valid handle")
	}
	if c.GetAddress(&h) != addr1 {
		t.Error("address must not change while the handle stays valid")
	}
}

func TestWriterRejectsOverPush(t *testing.T) {
	c := New()
	c.BeginFrame()
	var h Handle
	w, _ := c.Request(&h, 1)
	w.Push([4]float32{})
	defer func() {
		if recover() == nil {
			t.Error("expected a panic when pushing more blocks than requested")
		}
	}()
	w.Push([4]float32{})
}

func TestEvictFreesStorageForReuse(t *testing.T) {
	c := New()
	c.BeginFrame()
	var h1, h2 Handle
	w1, _ := c.Request(&h1, 1)
	w1.Push([4]float32{})
	addr1 := c.GetAddress(&h1)
	c.Evict(&h1)
	if h1.Valid() {
		t.Error("evicted handle must report invalid")
	}
	w2, ok := c.Request(&h2, 1)
	if !ok {
		t.Fatal("expected a fresh writer after eviction freed space")
	}
	w2.Push([4]float32{})
	if c.GetAddress(&h2) != addr1 {
		t.Error("expected the new handle to reuse the evicted handle's storage")
	}
}

func TestStaleDetectsUntouchedHandles(t *testing.T) {
	c := New()
	c.BeginFrame()
	var h Handle
	w, _ := c.Request(&h, 1)
	w.Push([4]float32{})
	if h.Stale(c.frameID) {
		t.Error("handle touched this frame must not be stale")
	}
	c.BeginFrame()
	if !h.Stale(c.frameID) {
		t.Error("handle untouched in the new frame must be stale")
	}
}

func TestPendingUpdatesCoalesceContiguousRuns(t *testing.T) {
	c := New()
	c.BeginFrame()
	var h Handle
	w, _ := c.Request(&h, 3)
	w.Push([4]float32{1})
	w.Push([4]float32{2})
	w.Push([4]float32{3})
	updates := c.PendingUpdates()
	if len(updates) != 1 {
		t.Fatalf("expected a single coalesced run, got %d", len(updates))
	}
	if len(updates[0].Blocks) != 3 {
		t.Errorf("expected 3 blocks in the run, got %d", len(updates[0].Blocks))
	}
}
