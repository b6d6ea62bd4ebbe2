package kms

import "testing"

func newTestLayer(t *testing.T, o *Output, x, y, w, h int64, zpos uint64, hasZpos bool) *Layer {
	t.Helper()
	l := newLayer(o)
	o.layers = append(o.layers, l)
	if err := l.SetProperty(PropFBID, 1); err != nil {
		t.Fatal(err)
	}
	if err := l.SetProperty(PropCRTCX, uint64(x)); err != nil {
		t.Fatal(err)
	}
	if err := l.SetProperty(PropCRTCY, uint64(y)); err != nil {
		t.Fatal(err)
	}
	if err := l.SetProperty(PropCRTCW, uint64(w)); err != nil {
		t.Fatal(err)
	}
	if err := l.SetProperty(PropCRTCH, uint64(h)); err != nil {
		t.Fatal(err)
	}
	if hasZpos {
		if err := l.SetProperty(PropZPos, zpos); err != nil {
			t.Fatal(err)
		}
	}
	return l
}

func newTestPlane(id uint32, t PlaneType, zpos int) *Plane {
	return &Plane{id: id, planeType: t, zpos: zpos}
}

func newTestOutput() *Output {
	dev := &Device{planesCap: 4}
	o := &Output{device: dev}
	return o
}

// TestAllocatedLayerOverRejectsInversion checks that a layer can't be
// assigned to a plane once a lower-zpos, already-allocated layer on an
// earlier (higher-stacked) plane overlaps it.
func TestAllocatedLayerOverRejectsInversion(t *testing.T) {
	o := newTestOutput()
	overlayTop := newTestPlane(1, PlaneTypeOverlay, 5)
	overlayBottom := newTestPlane(2, PlaneTypeOverlay, 1)
	o.device.planes = []*Plane{overlayTop, overlayBottom}

	bottom := newTestLayer(t, o, 0, 0, 100, 100, 1, true)
	top := newTestLayer(t, o, 0, 0, 100, 100, 10, true)

	step := &allocStep{
		pindex:           1,
		alloc:            []*Layer{bottom, nil},
		lastLayerZpos:    1,
		primaryLayerZpos: -1,
		primaryPlaneZpos: 1 << 30,
	}

	if !allocatedLayerOver(o, step, top) {
		t.Fatal("expected allocatedLayerOver to report the inversion")
	}
	if layerPlaneCompatible(o, step, top, overlayBottom) {
		t.Fatal("expected layerPlaneCompatible to reject top over an already-placed lower layer")
	}
}

// TestAllocatedPlaneUnderRejectsStackOrder checks that placing a
// lower-zpos layer on a plane whose stacking position sits at or above
// an already-occupied plane holding an overlapping layer is rejected.
func TestAllocatedPlaneUnderRejectsStackOrder(t *testing.T) {
	o := newTestOutput()
	// Planes are ordered here as chooseLayers would visit them; the
	// candidate plane sits at or above the already-occupied plane's
	// own zpos, so handing it an overlapping, lower-zpos layer would
	// put that layer visually above a plane already resolved.
	occupied := newTestPlane(1, PlaneTypeOverlay, 1)
	candidatePlane := newTestPlane(2, PlaneTypeOverlay, 5)
	o.device.planes = []*Plane{occupied, candidatePlane}

	occupant := newTestLayer(t, o, 0, 0, 100, 100, 5, true)
	candidate := newTestLayer(t, o, 0, 0, 100, 100, 1, true)

	step := &allocStep{
		pindex:           1,
		alloc:            []*Layer{occupant, nil},
		lastLayerZpos:    5,
		primaryLayerZpos: -1,
		primaryPlaneZpos: 1 << 30,
	}

	if !allocatedPlaneUnder(o, step, candidatePlane, candidate) {
		t.Fatal("expected allocatedPlaneUnder to flag the stacking conflict")
	}
	if layerPlaneCompatible(o, step, candidate, candidatePlane) {
		t.Fatal("expected layerPlaneCompatible to reject the higher-stacked plane")
	}
}

// TestCompositedLayerOverBlocksNonPrimary checks that a layer can't go
// on a non-primary plane while a higher, still-unallocated overlapping
// layer remains a composition candidate.
func TestCompositedLayerOverBlocksNonPrimary(t *testing.T) {
	o := newTestOutput()
	overlay := newTestPlane(1, PlaneTypeOverlay, 1)
	o.device.planes = []*Plane{overlay}

	under := newTestLayer(t, o, 0, 0, 100, 100, 1, true)
	newTestLayer(t, o, 0, 0, 100, 100, 10, true)

	step := &allocStep{
		pindex:           0,
		alloc:            []*Layer{nil},
		lastLayerZpos:    1 << 62,
		primaryLayerZpos: -1 << 62,
		primaryPlaneZpos: 1 << 62,
	}

	if !compositedLayerOver(o, step, under) {
		t.Fatal("expected compositedLayerOver to see the unallocated higher layer")
	}
	if layerPlaneCompatible(o, step, under, overlay) {
		t.Fatal("expected layerPlaneCompatible to reject under while over is still unresolved")
	}
}

// TestCompositionLayerOnlyFitsPrimary checks that the designated
// composition layer is never offered a non-primary plane, regardless
// of zpos.
func TestCompositionLayerOnlyFitsPrimary(t *testing.T) {
	o := newTestOutput()
	primary := newTestPlane(1, PlaneTypePrimary, 0)
	overlay := newTestPlane(2, PlaneTypeOverlay, 1)
	o.device.planes = []*Plane{primary, overlay}

	comp := newTestLayer(t, o, 0, 0, 100, 100, 0, false)
	o.compLayer = comp

	step := &allocStep{
		pindex:           0,
		alloc:            []*Layer{nil, nil},
		lastLayerZpos:    1 << 62,
		primaryLayerZpos: -1 << 62,
		primaryPlaneZpos: 1 << 62,
	}

	if !layerPlaneCompatible(o, step, comp, primary) {
		t.Fatal("expected the composition layer to be compatible with the primary plane")
	}
	if layerPlaneCompatible(o, step, comp, overlay) {
		t.Fatal("expected the composition layer to be rejected on an overlay plane")
	}
}

// TestAllocValid exercises the terminal validity rule directly: a leaf
// with a composition layer must either place every non-comp layer, or
// actually use composition for the shortfall, never both or neither.
func TestAllocValid(t *testing.T) {
	result := &allocResult{hasCompLayer: true, nonCompLayersLen: 2}

	notComposedShort := &allocStep{composited: false, score: 1}
	if allocValid(result, notComposedShort) {
		t.Fatal("expected invalid: not composited but a non-comp layer is missing")
	}

	notComposedFull := &allocStep{composited: false, score: 2}
	if !allocValid(result, notComposedFull) {
		t.Fatal("expected valid: every non-comp layer placed, no composition needed")
	}

	composedRedundant := &allocStep{composited: true, score: 2}
	if allocValid(result, composedRedundant) {
		t.Fatal("expected invalid: composited even though every non-comp layer already fit")
	}

	composedNecessary := &allocStep{composited: true, score: 1}
	if !allocValid(result, composedNecessary) {
		t.Fatal("expected valid: composited to cover the layer that couldn't be placed")
	}

	noCompResult := &allocResult{hasCompLayer: false, nonCompLayersLen: 0}
	anyScore := &allocStep{composited: false, score: 3}
	if !allocValid(noCompResult, anyScore) {
		t.Fatal("expected valid: without a composition layer any score is acceptable")
	}
}
