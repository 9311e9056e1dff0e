// SPDX-License-Identifier: Unlicense OR MIT

// Package rendertask implements the render-task DAG of §4.7: a flat
// vector of tasks plus pass assignment, render-task aliasing, and the
// blur-chain/mask-task constructors the frame builder drives.
package rendertask

import (
	"image"

	"compose2d.dev/clip"
	"compose2d.dev/geom"
)

// ID addresses a task in a Tree's flat array.
type ID int32

// Kind discriminates the render-task variants named in §4.7/§9.
type Kind int

const (
	KindPrimitiveBatch Kind = iota
	KindCacheMask
	KindVerticalBlur
	KindHorizontalBlur
	KindDownscale
	KindReadback
	KindAlias
)

// GeometryKind hints the mask shader which region actually needs
// drawing; CornersOnly is set when the only remaining clip is a single
// axis-aligned rounded rectangle (§4.7).
type GeometryKind int

const (
	GeometryFull GeometryKind = iota
	GeometryCornersOnly
)

// MaxBlurStdDeviation is the point at which the blur chain stops
// halving σ and emits the final vertical+horizontal blur pair (§4.7).
const MaxBlurStdDeviation = 4.0

// minDownscaleTarget is the smallest dimension a downscale step may
// produce; a chain stops adding downscale tasks once either output
// dimension would fall below it (§4.7).
const minDownscaleTarget = 128

// Task is one node of the render-task DAG.
type Task struct {
	Kind     Kind
	Children []ID

	// IsShared marks tasks with no children (e.g. cache-mask tasks) that
	// must be available to every later pass, per assign_to_passes.
	IsShared bool

	// Size is the task's requested allocation size before packing.
	Size image.Point

	// StdDeviation is the blur radius for blur/downscale tasks.
	StdDeviation float32

	// Geometry hints the mask shader for KindCacheMask tasks.
	Geometry GeometryKind

	// Clips names the clip items (by clip-store arena index) a
	// KindCacheMask task must rasterize.
	Clips []int

	pass     int
	assigned bool

	alias ID
	aliased bool

	allocated    image.Point
	targetLayer  int
	hasTarget    bool
}

// Tree is the render-task DAG (§4.7).
type Tree struct {
	tasks []Task
	// infos is the parallel 12-float-per-task data buffer (§4.7
	// "vertex-texture-style shader input"); 12 floats per GLSL's
	// std140 vec4 alignment (3 vec4s), one record per task index.
	infos [][floatsPerRenderTaskInfo]float32
}

// floatsPerRenderTaskInfo mirrors FLOATS_PER_RENDER_TASK_INFO (§9): task
// rect, target rect and a couple of task-specific scalars packed into
// three vec4s.
const floatsPerRenderTaskInfo = 12

func New() *Tree { return &Tree{} }

// Add appends a new task, returning its id.
func (t *Tree) Add(task Task) ID {
	id := ID(len(t.tasks))
	t.tasks = append(t.tasks, task)
	t.infos = append(t.infos, [floatsPerRenderTaskInfo]float32{})
	return id
}

func (t *Tree) Task(id ID) *Task { return &t.tasks[resolve(t, id)] }

// resolve follows a task's alias chain to the canonical id transparent
// to callers, per §9 "Render-task aliasing".
func resolve(t *Tree, id ID) ID {
	for t.tasks[id].aliased {
		id = t.tasks[id].alias
	}
	return id
}

// SetAlias marks id as an alias of canonical; per §9, an alias must have
// no children.
func (t *Tree) SetAlias(id, canonical ID) {
	task := &t.tasks[id]
	if len(task.Children) != 0 {
		panic("rendertask: an alias task must have no children")
	}
	task.aliased = true
	task.alias = canonical
}

// GetTaskAddress returns the canonical id a caller should use to read a
// task's data, transparently redirecting through aliases.
func (t *Tree) GetTaskAddress(id ID) ID { return resolve(t, id) }

// AssignToPasses performs the depth-first pass assignment of §4.7:
// each task's pass is max(child pass)+1, except IsShared tasks (no
// children), which are forced to pass 0 so every later pass can use
// them.
func (t *Tree) AssignToPasses(root ID) int {
	maxPass := 0
	var visit func(id ID) int
	visit = func(id ID) int {
		id = resolve(t, id)
		task := &t.tasks[id]
		if task.assigned {
			return task.pass
		}
		if task.IsShared && len(task.Children) == 0 {
			task.pass = 0
			task.assigned = true
			return 0
		}
		pass := 0
		for _, c := range task.Children {
			cp := visit(c)
			if cp+1 > pass {
				pass = cp + 1
			}
		}
		task.pass = pass
		task.assigned = true
		if pass > maxPass {
			maxPass = pass
		}
		return pass
	}
	visit(root)
	return maxPass + 1
}

// Pass returns the pass index assigned to id by the last AssignToPasses
// call.
func (t *Tree) Pass(id ID) int { return t.tasks[resolve(t, id)].pass }

// GetDynamicSize returns the allocation rect a packer should place this
// task's output into, before the packer has run.
func (t *Task) GetDynamicSize() image.Rectangle {
	return image.Rectangle{Max: t.Size}
}

// SetTargetRect records where the packer placed this task's output.
func (t *Task) SetTargetRect(origin image.Point, layer int) {
	t.allocated = origin
	t.targetLayer = layer
	t.hasTarget = true
}

// GetTargetRect returns the allocated origin and target layer once the
// packer has placed this task, or ok=false if it hasn't yet.
func (t *Task) GetTargetRect() (origin image.Point, layer int, ok bool) {
	return t.allocated, t.targetLayer, t.hasTarget
}

// NewMask builds a cache-mask task for the given rect, iterating both an
// explicit clip-chain instance and an optional extra one, dropping items
// whose inner rect fully contains the task rect (they contribute
// nothing to the mask). If no items survive, NewMask returns
// (0, false): no mask task is needed at all. A single surviving
// axis-aligned rounded rectangle sets GeometryCornersOnly so only the
// four corners need drawing (§4.7).
func (t *Tree) NewMask(rect image.Rectangle, store *clip.Store, explicit, extra clip.ChainInstance) (ID, bool) {
	taskRect := rectFromImage(rect)
	var clips []int
	onlyRoundedRect := true
	for _, inst := range [2]clip.ChainInstance{explicit, extra} {
		for _, ni := range inst.Instances {
			item := store.Item(ni.ItemIndex)
			inner := item.InnerRect()
			if !inner.Empty() && inner.Contains(taskRect) {
				continue
			}
			if item.Kind != clip.KindRoundedRect {
				onlyRoundedRect = false
			}
			clips = append(clips, ni.ItemIndex)
		}
	}
	if len(clips) == 0 {
		return 0, false
	}
	geometry := GeometryFull
	if onlyRoundedRect && len(clips) == 1 {
		geometry = GeometryCornersOnly
	}
	id := t.Add(Task{
		Kind:     KindCacheMask,
		IsShared: true,
		Size:     rect.Size(),
		Geometry: geometry,
		Clips:    clips,
	})
	return id, true
}

// rectFromImage converts a device-pixel rect to geom.Rect so it can be
// compared against a clip item's (float) inner rect.
func rectFromImage(r image.Rectangle) geom.Rect {
	return geom.Rectangle(float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y))
}

// NewBlur builds the down-scale chain and vertical+horizontal blur pair
// for an arbitrary standard deviation σ (§4.7): σ is halved (each
// halving adding a 2x downscale child) until it no longer exceeds
// MaxBlurStdDeviation, or until a further halving would shrink either
// target dimension below minDownscaleTarget, whichever comes first.
func (t *Tree) NewBlur(src ID, size image.Point, sigma float32) ID {
	current := src
	currentSize := size
	for sigma > MaxBlurStdDeviation {
		nextSize := image.Pt(currentSize.X/2, currentSize.Y/2)
		if nextSize.X < minDownscaleTarget || nextSize.Y < minDownscaleTarget {
			break
		}
		current = t.Add(Task{Kind: KindDownscale, Children: []ID{current}, Size: nextSize})
		currentSize = nextSize
		sigma /= 2
	}
	vertical := t.Add(Task{Kind: KindVerticalBlur, Children: []ID{current}, Size: currentSize, StdDeviation: sigma})
	horizontal := t.Add(Task{Kind: KindHorizontalBlur, Children: []ID{vertical}, Size: currentSize, StdDeviation: sigma})
	return horizontal
}
