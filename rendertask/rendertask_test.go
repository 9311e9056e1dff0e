// SPDX-License-Identifier: Unlicense OR MIT

package rendertask

import (
	"image"
	"testing"

	"compose2d.dev/clip"
)

func TestAssignToPassesIsMaxChildPlusOne(t *testing.T) {
	tree := New()
	leaf := tree.Add(Task{Kind: KindPrimitiveBatch})
	mid := tree.Add(Task{Kind: KindPrimitiveBatch, Children: []ID{leaf}})
	root := tree.Add(Task{Kind: KindPrimitiveBatch, Children: []ID{mid}})

	passes := tree.AssignToPasses(root)

	if tree.Pass(leaf) != 0 {
		t.Errorf("expected leaf pass 0, got %d", tree.Pass(leaf))
	}
	if tree.Pass(mid) != 1 {
		t.Errorf("expected mid pass 1, got %d", tree.Pass(mid))
	}
	if tree.Pass(root) != 2 {
		t.Errorf("expected root pass 2, got %d", tree.Pass(root))
	}
	if passes != 3 {
		t.Errorf("expected 3 passes total, got %d", passes)
	}
}

func TestSharedTaskForcedToPassZero(t *testing.T) {
	tree := New()
	shared := tree.Add(Task{Kind: KindCacheMask, IsShared: true})
	root := tree.Add(Task{Kind: KindPrimitiveBatch, Children: []ID{shared}})

	tree.AssignToPasses(root)

	if tree.Pass(shared) != 0 {
		t.Errorf("expected shared task to be forced to pass 0, got %d", tree.Pass(shared))
	}
}

func TestAliasRedirectsTaskAddress(t *testing.T) {
	tree := New()
	canonical := tree.Add(Task{Kind: KindCacheMask, IsShared: true})
	alias := tree.Add(Task{Kind: KindAlias})
	tree.SetAlias(alias, canonical)

	if got := tree.GetTaskAddress(alias); got != canonical {
		t.Errorf("expected alias to redirect to canonical id %d, got %d", canonical, got)
	}
}

func TestNewBlurLowSigmaSkipsDownscale(t *testing.T) {
	tree := New()
	src := tree.Add(Task{Kind: KindPrimitiveBatch, Size: image.Pt(256, 256)})

	result := tree.NewBlur(src, image.Pt(256, 256), 4.0)

	h := tree.Task(result)
	if h.Kind != KindHorizontalBlur {
		t.Fatalf("expected the chain to end in a horizontal blur, got %v", h.Kind)
	}
	v := tree.Task(h.Children[0])
	if v.Kind != KindVerticalBlur {
		t.Fatalf("expected a vertical blur beneath the horizontal one, got %v", v.Kind)
	}
	if v.Children[0] != src {
		t.Error("expected no downscale tasks for sigma <= 4.0")
	}
}

func TestNewBlurHighSigmaAddsDownscaleChain(t *testing.T) {
	tree := New()
	src := tree.Add(Task{Kind: KindPrimitiveBatch, Size: image.Pt(1024, 1024)})

	result := tree.NewBlur(src, image.Pt(1024, 1024), 16.0)

	h := tree.Task(result)
	v := tree.Task(h.Children[0])
	downscaleCount := 0
	cur := v.Children[0]
	for {
		task := tree.Task(cur)
		if task.Kind != KindDownscale {
			break
		}
		downscaleCount++
		cur = task.Children[0]
	}
	if downscaleCount != 2 {
		t.Errorf("expected 16 -> 8 -> 4 to take two downscale steps, got %d", downscaleCount)
	}
}

func TestNewMaskDroppedWhenAllClipsAccepted(t *testing.T) {
	tree := New()
	// A nil clip.Store and empty chain instances simulate the case where
	// nothing contributes to the mask: NewMask must report false rather
	// than allocate an empty task.
	_, ok := tree.NewMask(image.Rect(0, 0, 10, 10), nil, clip.ChainInstance{}, clip.ChainInstance{})
	if ok {
		t.Error("expected NewMask to report false when no clips survive")
	}
}
