package kms

// Layer is a client-visible unit of content that the allocator will
// try to bind to a hardware plane, or fall back to composition for.
// A layer belongs to exactly one Output for its entire lifetime.
type Layer struct {
	output *Output
	props  []*Property

	changed         bool
	forceComposition bool

	fbInfo     FBInfo
	prevFBInfo FBInfo

	pendingPriority int
	currentPriority int

	candidatePlanes []uint32 // fixed capacity: device.planesCap

	plane *Plane
}

func newLayer(output *Output) *Layer {
	return &Layer{
		output:          output,
		candidatePlanes: make([]uint32, output.device.planesCap),
	}
}

// Output returns the output this layer belongs to.
func (l *Layer) Output() *Output { return l.output }

// Plane returns the plane this layer is currently assigned to, or nil.
func (l *Layer) Plane() *Plane { return l.plane }

// Destroy removes the layer from its output. Whatever plane it
// currently holds is unassigned, and it stops being considered as the
// output's composition layer if it was one.
func (l *Layer) Destroy() {
	l.output.destroyLayer(l)
}

func (l *Layer) propertyGet(idx PropIndex) *Property {
	for _, p := range l.props {
		if p.Index == idx {
			return p
		}
	}
	return nil
}

// SetProperty stages a value for a layer property. Setting CRTC_ID
// directly is refused — the allocator owns that property and derives
// it from the layer's output.
func (l *Layer) SetProperty(idx PropIndex, value uint64) error {
	if idx == PropCRTCID {
		return ErrCRTCIDReadOnly
	}

	prop := l.propertyGet(idx)
	if prop == nil {
		prop = &Property{Index: idx}
		l.props = append(l.props, prop)
		l.changed = true
	}
	prop.Value = value

	if idx == PropFBID && l.forceComposition {
		l.forceComposition = false
		l.changed = true
	}

	return nil
}

// UnsetProperty removes a previously set property, if any.
func (l *Layer) UnsetProperty(idx PropIndex) {
	for i, p := range l.props {
		if p.Index == idx {
			l.props = append(l.props[:i], l.props[i+1:]...)
			l.changed = true
			return
		}
	}
}

// MarkComposited marks the layer as always GPU-composited: FB_ID is
// cleared and, until FB_ID is set again, the search never places the
// layer on a plane. The planes it was tried against are still
// recorded (see IsCandidatePlane).
func (l *Layer) MarkComposited() {
	if l.forceComposition {
		return
	}
	_ = l.SetProperty(PropFBID, 0)
	l.forceComposition = true
	l.changed = true
}

// Visible reports whether the layer should be considered for
// placement at all: ALPHA (if set) must be nonzero, and either the
// layer is force-composited or it has a nonzero FB_ID.
func (l *Layer) Visible() bool {
	if prop := l.propertyGet(PropAlpha); prop != nil && prop.Value == 0 {
		return false
	}
	if l.forceComposition {
		return true
	}
	prop := l.propertyGet(PropFBID)
	return prop != nil && prop.Value != 0
}

type rect struct {
	x, y, w, h int64
}

// Rect returns the layer's destination rectangle on the CRTC,
// defaulting any unset coordinate to 0.
func (l *Layer) Rect() (x, y, w, h int64) {
	r := l.rect()
	return r.x, r.y, r.w, r.h
}

func (l *Layer) rect() rect {
	get := func(idx PropIndex) int64 {
		if p := l.propertyGet(idx); p != nil {
			return int64(p.Value)
		}
		return 0
	}
	return rect{
		x: get(PropCRTCX),
		y: get(PropCRTCY),
		w: get(PropCRTCW),
		h: get(PropCRTCH),
	}
}

// Intersects reports whether two visible layers' destination
// rectangles overlap.
func (l *Layer) Intersects(other *Layer) bool {
	if !l.Visible() || !other.Visible() {
		return false
	}
	a, b := l.rect(), other.rect()
	return a.x < b.x+b.w && a.y < b.y+b.h && a.x+a.w > b.x && a.y+a.h > b.y
}

// zpos returns the layer's zpos property and whether it is set at
// all — many allocator rules only apply to layers with an explicit
// zpos.
func (l *Layer) zpos() (int64, bool) {
	prop := l.propertyGet(PropZPos)
	if prop == nil {
		return 0, false
	}
	return int64(prop.Value), true
}

// NeedsComposition reports whether this layer is visible but has no
// plane, meaning the caller must composite it itself.
func (l *Layer) NeedsComposition() bool {
	if !l.Visible() {
		return false
	}
	return l.plane == nil
}

// IsCandidatePlane reports whether plane was ever attempted as a
// candidate for this layer during the most recent search.
func (l *Layer) IsCandidatePlane(p *Plane) bool {
	for _, id := range l.candidatePlanes {
		if id == p.id {
			return true
		}
	}
	return false
}

func (l *Layer) candidatePlaneAdd(p *Plane) {
	empty := -1
	for i, id := range l.candidatePlanes {
		if id == p.id {
			return
		}
		if empty < 0 && id == 0 {
			empty = i
		}
	}
	if empty < 0 {
		return
	}
	l.candidatePlanes[empty] = p.id
}

func (l *Layer) candidatePlanesReset() {
	for i := range l.candidatePlanes {
		l.candidatePlanes[i] = 0
	}
}

// clean snapshots the layer's property values and fb info as the new
// "previous frame" baseline and clears the dirty flag. Called once
// per output at the end of a successful Apply.
func (l *Layer) clean() {
	l.changed = false
	l.prevFBInfo = l.fbInfo
	for _, p := range l.props {
		p.PrevValue = p.Value
	}
}

// priorityUpdate implements the priority-aging mechanism from spec
// §4.4: every FB_ID change bumps a pending counter, which is folded
// into the current priority once per PRIORITY_PERIOD page flips. It's
// tracked for future search heuristics but doesn't influence ordering
// yet — see SPEC_FULL.md's carried-forward open question.
func (l *Layer) priorityUpdate(current bool) {
	if prop := l.propertyGet(PropFBID); prop != nil && prop.PrevValue != prop.Value {
		l.pendingPriority++
	}
	if current {
		l.currentPriority = l.pendingPriority
		l.pendingPriority = 0
	}
}

// needsRealloc reports whether this layer's changes since the last clean()
// invalidate a cached plane allocation (spec §4.5.7's exemption list:
// mid-range ALPHA tweaks, IN_FENCE_FD, and FB_DAMAGE_CLIPS never force
// a realloc; everything else does).
func (l *Layer) needsRealloc() bool {
	if l.changed {
		return true
	}

	for _, p := range l.props {
		switch p.Index {
		case PropFBID:
			if p.Value == 0 && p.PrevValue == 0 {
				continue
			}
			if p.Value == 0 || p.PrevValue == 0 {
				return true
			}
			if l.fbInfo.needsRealloc(l.prevFBInfo) {
				return true
			}
			continue
		}

		if p.Value == p.PrevValue {
			continue
		}

		switch p.Index {
		case PropAlpha:
			if p.Value == 0 || p.PrevValue == 0 || p.Value == AlphaOpaque || p.PrevValue == AlphaOpaque {
				return true
			}
			continue
		case PropInFenceFD, PropFBDamageClips:
			continue
		}

		// Includes CRTC_{X,Y,W,H}: the original leaves room to skip
		// realloc when a rect change doesn't affect any intersection,
		// but conservatively always reallocs today (see DESIGN.md).
		return true
	}

	return false
}

// cacheFBInfo refreshes fbInfo from the driver when FB_ID has changed
// since the last cache, deduplicating and closing the GEM handles
// GETFB2 always allocates (spec §4.7).
func (l *Layer) cacheFBInfo() error {
	prop := l.propertyGet(PropFBID)
	if prop == nil || prop.Value == 0 {
		l.fbInfo = FBInfo{}
		return nil
	}

	if l.fbInfo.FBID == uint32(prop.Value) {
		return nil
	}

	fb, err := l.output.device.driver.GetFB2(uint32(prop.Value))
	if err != nil {
		if Classify(err) == ClassFeasibility {
			// "no such fb": leave fbInfo cleared, still apply-able.
			l.fbInfo = FBInfo{}
			return nil
		}
		return err
	}

	seen := make(map[uint32]bool, len(fb.Handles))
	for _, h := range fb.Handles {
		if h == 0 || seen[h] {
			continue
		}
		seen[h] = true
		if err := l.output.device.driver.CloseBufferHandle(h); err != nil {
			logger.Error("close buffer handle failed", "handle", h, "err", err)
		}
	}

	l.fbInfo = fb
	return nil
}
