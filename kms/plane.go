package kms

// PlaneType mirrors the kernel's enum drm_plane_type values.
type PlaneType uint32

const (
	PlaneTypeOverlay PlaneType = iota
	PlaneTypePrimary
	PlaneTypeCursor
)

func (t PlaneType) String() string {
	switch t {
	case PlaneTypePrimary:
		return "PRIMARY"
	case PlaneTypeCursor:
		return "CURSOR"
	case PlaneTypeOverlay:
		return "OVERLAY"
	default:
		return "UNKNOWN"
	}
}

// Plane is a single hardware scanout surface owned by a Device.
type Plane struct {
	device        *Device
	id            uint32
	planeType     PlaneType
	possibleCRTCs uint32
	zpos          int
	inFormats     *FormatModifierBlob
	props         []*Property

	assigned *Layer
}

// ID returns the plane's driver id.
func (p *Plane) ID() uint32 { return p.id }

// Type returns the plane's hardware type.
func (p *Plane) Type() PlaneType { return p.planeType }

// Assigned returns the layer currently displayed on this plane, or
// nil if the plane is unassigned.
func (p *Plane) Assigned() *Layer { return p.assigned }

// Destroy removes the plane from its device, freeing its
// property-metadata handles and IN_FORMATS blob. Whatever layer is
// currently displayed on it, if any, is left needing composition.
func (p *Plane) Destroy() {
	for i, cur := range p.device.planes {
		if cur == p {
			p.device.planes = append(p.device.planes[:i], p.device.planes[i+1:]...)
			break
		}
	}
	if p.assigned != nil {
		p.assigned.plane = nil
		p.assigned = nil
	}
	p.props = nil
	p.inFormats = nil
}

func (p *Plane) propertyGet(idx PropIndex) *Property {
	for _, prop := range p.props {
		if prop.Index == idx {
			return prop
		}
	}
	return nil
}

// supports implements the format/modifier compatibility check from
// spec §4.2: given insufficient information (no modifier on the fb,
// or no IN_FORMATS blob on the plane) we can't reject, so we allow it.
func (p *Plane) supports(fb FBInfo) bool {
	if fb.FBID == 0 || !fb.HasModifier || p.inFormats == nil {
		return true
	}

	blob := p.inFormats
	formatIndex := -1
	for i, f := range blob.Formats {
		if f == fb.PixelFormat {
			formatIndex = i
			break
		}
	}
	if formatIndex < 0 {
		return false
	}

	modifierIndex := -1
	for i, m := range blob.Modifiers {
		if m.Modifier == fb.Modifier {
			modifierIndex = i
			break
		}
	}
	if modifierIndex < 0 {
		return false
	}

	m := blob.Modifiers[modifierIndex]
	if formatIndex < m.Offset || formatIndex >= m.Offset+64 {
		return false
	}
	shift := uint(formatIndex - m.Offset)
	return m.FormatsBitmap&(uint64(1)<<shift) != 0
}

// applyLayerProperty stages a single validated write for prop, or returns
// ErrPlaneMissingProperty when the plane lacks it and value isn't a
// no-op default (see plane_apply in spec §4.6).
func (p *Plane) applyLayerProperty(req *AtomicRequest, lprop *Property) error {
	if lprop.Index == PropZPos {
		// allocator-managed, never written to planes
		return nil
	}

	pprop := p.propertyGet(lprop.Index)
	if pprop == nil {
		switch {
		case lprop.Index == PropAlpha && lprop.Value == AlphaOpaque:
			return nil
		case lprop.Index == PropRotation && lprop.Value == RotateNormal:
			return nil
		case lprop.Index == PropScalingFilter && lprop.Value == ScalingFilterAuto:
			return nil
		case lprop.Index == PropPixelBlendMode && lprop.Value == PixelBlendPreMult:
			return nil
		case lprop.Index == PropFBDamageClips:
			return nil
		}
		return ErrPlaneMissingProperty
	}

	return pprop.ValidateAndWrite(req, p.id, lprop.Value)
}

// apply stages the writes that turn this plane into "displays layer"
// (or "disabled" when layer is nil), rewinding to the pre-call cursor
// on any failure path. It never mutates plane/layer assignment state
// — that's the allocator's job once a probe succeeds.
func (p *Plane) apply(layer *Layer, req *AtomicRequest) error {
	cur := req.Cursor()

	if layer == nil {
		fbProp := p.propertyGet(PropFBID)
		crtcProp := p.propertyGet(PropCRTCID)
		if fbProp == nil || crtcProp == nil {
			req.Rewind(cur)
			return ErrPlaneMissingProperty
		}
		if err := fbProp.ValidateAndWrite(req, p.id, 0); err != nil {
			req.Rewind(cur)
			return err
		}
		if err := crtcProp.ValidateAndWrite(req, p.id, 0); err != nil {
			req.Rewind(cur)
			return err
		}
		return nil
	}

	crtcProp := p.propertyGet(PropCRTCID)
	if crtcProp == nil {
		req.Rewind(cur)
		return ErrPlaneMissingProperty
	}
	if err := crtcProp.ValidateAndWrite(req, p.id, uint64(layer.output.crtcID)); err != nil {
		req.Rewind(cur)
		return err
	}

	for _, lprop := range layer.props {
		if err := p.applyLayerProperty(req, lprop); err != nil {
			req.Rewind(cur)
			return err
		}
	}

	return nil
}

// zposGuess implements spec §4.3's fallback when a plane has no zpos
// property: PRIMARY is always 0, CURSOR is always 2, and an OVERLAY's
// guessed zpos depends on whether it registered before or after the
// device's first plane.
func zposGuess(dev *Device, id uint32, t PlaneType) int {
	switch t {
	case PlaneTypePrimary:
		return 0
	case PlaneTypeCursor:
		return 2
	case PlaneTypeOverlay:
		if len(dev.planes) == 0 {
			return 0
		}
		first := dev.planes[0]
		if id < first.id {
			return -1
		}
		return 1
	}
	return 0
}

// insertPlane maintains the device's plane-list ordering invariant:
// PRIMARY planes at the head, non-primary planes sorted by descending
// zpos (topmost first) after them.
func insertPlane(planes []*Plane, p *Plane) []*Plane {
	if p.planeType == PlaneTypePrimary {
		return append([]*Plane{p}, planes...)
	}

	for i, cur := range planes {
		if cur.planeType != PlaneTypePrimary && p.zpos >= cur.zpos {
			out := make([]*Plane, 0, len(planes)+1)
			out = append(out, planes[:i]...)
			out = append(out, p)
			out = append(out, planes[i:]...)
			return out
		}
	}
	return append(planes, p)
}
