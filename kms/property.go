package kms

// PropIndex is the closed enum of KMS properties this package
// understands. Any driver property not in this set is silently
// ignored during plane/layer registration — indexing is always by
// enum from here on, never by string.
type PropIndex int

const (
	PropType PropIndex = iota + 1
	PropFBID
	PropCRTCID
	PropCRTCX
	PropCRTCY
	PropCRTCW
	PropCRTCH
	PropSRCX
	PropSRCY
	PropSRCW
	PropSRCH
	PropZPos
	PropAlpha
	PropRotation
	PropScalingFilter
	PropPixelBlendMode
	PropFBDamageClips
	PropInFenceFD
	PropInFormats
)

// propertyNames maps the kernel's property name strings to our closed
// enum. Bit-exact match to the kernel's naming, including the two
// properties whose driver names contain spaces.
var propertyNames = map[string]PropIndex{
	"type":              PropType,
	"FB_ID":             PropFBID,
	"CRTC_ID":           PropCRTCID,
	"CRTC_X":            PropCRTCX,
	"CRTC_Y":            PropCRTCY,
	"CRTC_W":            PropCRTCW,
	"CRTC_H":            PropCRTCH,
	"SRC_X":             PropSRCX,
	"SRC_Y":             PropSRCY,
	"SRC_W":             PropSRCW,
	"SRC_H":             PropSRCH,
	"zpos":              PropZPos,
	"alpha":             PropAlpha,
	"rotation":          PropRotation,
	"SCALING FILTER":    PropScalingFilter,
	"pixel blend mode":  PropPixelBlendMode,
	"FB_DAMAGE_CLIPS":   PropFBDamageClips,
	"IN_FENCE_FD":       PropInFenceFD,
	"IN_FORMATS":        PropInFormats,
}

// Rotation and blend mode defaults used by plane_apply's "no-op
// default" skip rules.
const (
	RotateNormal      uint64 = 1 << 0 // DRM_MODE_ROTATE_0
	AlphaOpaque       uint64 = 0xFFFF
	PixelBlendPreMult uint64 = 0
	ScalingFilterAuto uint64 = 0
)

// PropertyKind is the kernel's declared kind for a property's value
// space, used to validate a write before it's ever staged in an
// atomic request.
type PropertyKind int

const (
	KindRange PropertyKind = iota
	KindSignedRange
	KindEnum
	KindBitmask
	KindImmutable
)

// PropertyMeta carries everything the kernel told us about a
// property's value space: its kind, and either a two-element
// [lo, hi] bound (range/signed range) or a set of declared discrete
// values (enum/bitmask, where bitmask values are bit positions, not
// masks).
type PropertyMeta struct {
	Kind        PropertyKind
	Bounds      [2]uint64
	EnumValues  []uint64
	Immutable   bool
}

// Validate checks value against the property's declared kind and
// bounds, returning ErrInvalidPropertyValue on rejection. This runs
// before any write is staged into an atomic request — a validation
// failure is a feasibility signal to the allocator, not a fatal error.
func (m PropertyMeta) Validate(value uint64) error {
	if m.Immutable {
		return ErrInvalidPropertyValue
	}
	switch m.Kind {
	case KindRange:
		if value < m.Bounds[0] || value > m.Bounds[1] {
			return ErrInvalidPropertyValue
		}
	case KindSignedRange:
		v := int64(value)
		if v < int64(m.Bounds[0]) || v > int64(m.Bounds[1]) {
			return ErrInvalidPropertyValue
		}
	case KindEnum:
		for _, ev := range m.EnumValues {
			if ev == value {
				return nil
			}
		}
		return ErrInvalidPropertyValue
	case KindBitmask:
		var mask uint64
		for _, bit := range m.EnumValues {
			mask |= 1 << bit
		}
		if value&^mask != 0 {
			return ErrInvalidPropertyValue
		}
	}
	return nil
}

// Property is a single (index, driver id, value) triple attached to a
// plane or layer, plus the kernel metadata needed to validate writes.
type Property struct {
	Index       PropIndex
	DriverID    uint32
	Value       uint64
	PrevValue   uint64
	DriverMeta  PropertyMeta
}

// ValidateAndWrite validates value against the property's driver
// metadata and, on success, appends the write to req. It never
// mutates p.Value — the allocator only commits a value to the model
// once the whole candidate assignment survives a test commit.
func (p *Property) ValidateAndWrite(req *AtomicRequest, objID uint32, value uint64) error {
	if err := p.DriverMeta.Validate(value); err != nil {
		return err
	}
	req.Add(objID, p.DriverID, value)
	return nil
}
