package kms

// allocResult accumulates the best-scoring leaf found by chooseLayers
// across the whole search tree.
type allocResult struct {
	req   *AtomicRequest
	flags uint32

	planesLen int
	best      []*Layer
	bestScore int

	hasCompLayer     bool
	nonCompLayersLen int
}

func newAllocResult(planesLen int, hasCompLayer bool, nonCompLayersLen int) *allocResult {
	return &allocResult{
		best:             make([]*Layer, planesLen),
		bestScore:        -1,
		planesLen:        planesLen,
		hasCompLayer:     hasCompLayer,
		nonCompLayersLen: nonCompLayersLen,
	}
}

// allocStep is the search state threaded through one path from the
// tree's root to the current plane. It's mutated in place at each
// recursion (alloc is a single shared slice, like the original's
// malloc'd array) and only ever read back out via allocResult.best.
type allocStep struct {
	pindex int
	alloc  []*Layer

	score         int
	lastLayerZpos int64

	primaryLayerZpos int64
	primaryPlaneZpos int64

	composited bool
}

func stepInitNext(prev *allocStep, layer *Layer, plane *Plane) *allocStep {
	next := &allocStep{
		pindex: prev.pindex + 1,
		alloc:  prev.alloc,
	}
	next.alloc[prev.pindex] = layer

	comp := layer != nil && layer.output.compLayer == layer
	next.composited = comp || prev.composited

	if layer != nil && !comp {
		next.score = prev.score + 1
	} else {
		next.score = prev.score
	}

	var zpos int64
	hasZpos := false
	if layer != nil {
		zpos, hasZpos = layer.zpos()
	}

	if hasZpos && plane.planeType != PlaneTypePrimary {
		next.lastLayerZpos = zpos
	} else {
		next.lastLayerZpos = prev.lastLayerZpos
	}

	if hasZpos && plane.planeType == PlaneTypePrimary {
		next.primaryLayerZpos = zpos
		next.primaryPlaneZpos = int64(plane.zpos)
	} else {
		next.primaryLayerZpos = prev.primaryLayerZpos
		next.primaryPlaneZpos = prev.primaryPlaneZpos
	}

	return next
}

func layerAllocated(step *allocStep, layer *Layer) bool {
	for i := 0; i < step.pindex; i++ {
		if step.alloc[i] == layer {
			return true
		}
	}
	return false
}

// compositedLayerOver reports whether some other, not-yet-allocated
// layer with a higher zpos than layer overlaps it and would be sent to
// composition — placing layer on a non-primary plane would then paint
// over content that's supposed to sit above it.
func compositedLayerOver(o *Output, step *allocStep, layer *Layer) bool {
	zpos, ok := layer.zpos()
	if !ok {
		return false
	}
	for _, other := range o.layers {
		if layerAllocated(step, other) {
			continue
		}
		ozpos, ok := other.zpos()
		if !ok {
			continue
		}
		if layer.Intersects(other) && ozpos > zpos {
			return true
		}
	}
	return false
}

// allocatedLayerOver reports whether an already-allocated layer on a
// non-primary plane both overlaps layer and has a lower zpos, which
// would put it visually below layer despite occupying a plane
// resolved earlier in the search (planes are visited topmost-first).
func allocatedLayerOver(o *Output, step *allocStep, layer *Layer) bool {
	zpos, ok := layer.zpos()
	if !ok {
		return false
	}
	dev := o.device
	for i := 0; i < step.pindex && i < len(dev.planes); i++ {
		oplane := dev.planes[i]
		if oplane.planeType == PlaneTypePrimary {
			continue
		}
		olayer := step.alloc[i]
		if olayer == nil {
			continue
		}
		ozpos, ok := olayer.zpos()
		if !ok {
			continue
		}
		if zpos > ozpos && layer.Intersects(olayer) {
			return true
		}
	}
	return false
}

// allocatedPlaneUnder reports whether an already-allocated non-primary
// plane at or below the candidate plane's own zpos holds a layer that
// overlaps the candidate: assigning layer to plane would stack it at
// or above that layer. layerPlaneCompatible asks this when layer's
// zpos is below the last placed layer's.
func allocatedPlaneUnder(o *Output, step *allocStep, plane *Plane, layer *Layer) bool {
	dev := o.device
	for i := 0; i < step.pindex && i < len(dev.planes); i++ {
		oplane := dev.planes[i]
		if oplane.planeType == PlaneTypePrimary {
			continue
		}
		olayer := step.alloc[i]
		if olayer == nil {
			continue
		}
		if plane.zpos >= oplane.zpos && layer.Intersects(olayer) {
			return true
		}
	}
	return false
}

func layerPlaneCompatible(o *Output, step *allocStep, layer *Layer, plane *Plane) bool {
	if layerAllocated(step, layer) {
		return false
	}

	if zpos, ok := layer.zpos(); ok {
		if zpos > step.lastLayerZpos && allocatedLayerOver(o, step, layer) {
			return false
		}
		if zpos < step.lastLayerZpos && allocatedPlaneUnder(o, step, plane, layer) {
			return false
		}
		if plane.planeType != PlaneTypePrimary &&
			zpos < step.primaryLayerZpos &&
			int64(plane.zpos) > step.primaryPlaneZpos {
			return false
		}
	}

	if plane.planeType != PlaneTypePrimary && compositedLayerOver(o, step, layer) {
		return false
	}

	if plane.planeType != PlaneTypePrimary && layer == o.compLayer {
		return false
	}

	return true
}

// allocValid implements spec §4.5.4's terminal check: a leaf is only a
// candidate winner if it either uses composition exactly when some
// layer genuinely couldn't get a plane, or avoids composition
// entirely when every layer got one.
func allocValid(result *allocResult, step *allocStep) bool {
	if result.hasCompLayer && !step.composited && step.score != result.nonCompLayersLen {
		return false
	}
	if step.composited && step.score == result.nonCompLayersLen {
		return false
	}
	return true
}

// chooseLayers is the search's recursive node procedure (spec §4.5.3):
// called once per plane in device order, it tries every visible,
// unassigned, zpos-compatible layer against the current plane via a
// speculative test commit, recursing into the next plane on success,
// and always also recurses with the plane left unassigned.
func chooseLayers(o *Output, req *AtomicRequest, flags uint32, result *allocResult, step *allocStep, depth int) error {
	dev := o.device

	if step.pindex == len(dev.planes) {
		if step.score > result.bestScore && allocValid(result, step) {
			result.bestScore = step.score
			copy(result.best, step.alloc)
		}
		return nil
	}

	remaining := result.planesLen - step.pindex
	if result.bestScore >= step.score+remaining {
		return nil
	}

	plane := dev.planes[step.pindex]
	cur := req.Cursor()

	if plane.assigned == nil && plane.possibleCRTCs&(uint32(1)<<uint(o.crtcIndex)) != 0 {
		for _, layer := range o.layers {
			if layer.plane != nil || !layer.Visible() {
				continue
			}
			if !layerPlaneCompatible(o, step, layer, plane) {
				continue
			}

			if err := plane.apply(layer, req); err != nil {
				if Classify(err) == ClassFeasibility {
					continue
				}
				return err
			}

			layer.candidatePlaneAdd(plane)

			if layer.forceComposition || !plane.supports(layer.fbInfo) {
				req.Rewind(cur)
				continue
			}

			if err := dev.testCommit(req, flags); err == nil {
				next := stepInitNext(step, layer, plane)
				if err := chooseLayers(o, req, flags, result, next, depth+1); err != nil {
					return err
				}
			} else if Classify(err) != ClassFeasibility {
				return err
			}

			req.Rewind(cur)
		}
	}

	next := stepInitNext(step, nil, plane)
	if err := chooseLayers(o, req, flags, result, next, depth+1); err != nil {
		return err
	}
	req.Rewind(cur)
	return nil
}
