// SPDX-License-Identifier: Unlicense OR MIT

package scene

import "testing"

func TestSetDisplayListReplacesByPipeline(t *testing.T) {
	s := New()
	s.SetDisplayList(&DisplayList{Pipeline: 1, Epoch: 1})
	s.SetDisplayList(&DisplayList{Pipeline: 1, Epoch: 2})

	if got := s.Pipelines[1].Epoch; got != 2 {
		t.Errorf("expected the newer epoch to replace the older one, got %d", got)
	}
}

func TestWillMakeInvisibleAtZeroOpacity(t *testing.T) {
	sc := StackingContext{Opacity: 0}
	if !sc.WillMakeInvisible() {
		t.Error("expected a zero-opacity stacking context to be invisible")
	}
	sc.Opacity = 1
	if sc.WillMakeInvisible() {
		t.Error("expected a fully-opaque stacking context to be visible")
	}
}
