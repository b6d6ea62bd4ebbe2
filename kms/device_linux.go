package kms

import (
	"unsafe"

	"github.com/NeowayLabs/kmsplane/drm"
	"github.com/NeowayLabs/kmsplane/drm/ioctl"
)

type driverCapability struct {
	cap uint64
	val uint64
}

const (
	fbModifiers        = uint32(1 << 1) // DRM_MODE_FB_MODIFIERS
	atomicTestOnly     = uint32(0x0100) // DRM_MODE_ATOMIC_TEST_ONLY
)

// realDriver is the production KernelDriver: every method issues
// exactly one ioctl (two for the variable-length GET* calls, which
// follow drm.GetVersion's discover-then-fill pattern).
type realDriver struct {
	fd int
}

func (r *realDriver) do(cmd uintptr, ptr unsafe.Pointer) error {
	return ioctl.Do(uintptr(r.fd), cmd, uintptr(ptr))
}

func (r *realDriver) GetResources() ([]uint32, error) {
	var res modeCardRes
	if err := r.do(uintptr(ioctlGetResources), unsafe.Pointer(&res)); err != nil {
		return nil, err
	}

	if res.CountCrtcs == 0 {
		return nil, nil
	}
	crtcs := make([]uint32, res.CountCrtcs)
	res.CrtcIDPtr = uint64(uintptr(unsafe.Pointer(&crtcs[0])))
	res.FbIDPtr, res.ConnectorIDPtr, res.EncoderIDPtr = 0, 0, 0
	res.CountFBs, res.CountConns, res.CountEncoders = 0, 0, 0

	if err := r.do(uintptr(ioctlGetResources), unsafe.Pointer(&res)); err != nil {
		return nil, err
	}
	return crtcs, nil
}

func (r *realDriver) GetPlaneIDs() ([]uint32, error) {
	var res modeGetPlaneRes
	if err := r.do(uintptr(ioctlGetPlaneResources), unsafe.Pointer(&res)); err != nil {
		return nil, err
	}

	if res.CountPlanes == 0 {
		return nil, nil
	}
	ids := make([]uint32, res.CountPlanes)
	res.PlaneIDPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))

	if err := r.do(uintptr(ioctlGetPlaneResources), unsafe.Pointer(&res)); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *realDriver) GetPlane(id uint32) (uint32, error) {
	gp := modeGetPlane{PlaneID: id}
	if err := r.do(uintptr(ioctlGetPlane), unsafe.Pointer(&gp)); err != nil {
		return 0, err
	}
	return gp.PossibleCRTCs, nil
}

func (r *realDriver) GetObjectProperties(objID, objType uint32) ([]uint32, []uint64, error) {
	req := modeObjGetProperties{ObjID: objID, ObjType: objType}
	if err := r.do(uintptr(ioctlObjGetProperties), unsafe.Pointer(&req)); err != nil {
		return nil, nil, err
	}

	if req.CountProps == 0 {
		return nil, nil, nil
	}
	propIDs := make([]uint32, req.CountProps)
	values := make([]uint64, req.CountProps)
	req.PropsPtr = uint64(uintptr(unsafe.Pointer(&propIDs[0])))
	req.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))

	if err := r.do(uintptr(ioctlObjGetProperties), unsafe.Pointer(&req)); err != nil {
		return nil, nil, err
	}
	return propIDs, values, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (r *realDriver) GetProperty(propID uint32) (string, PropertyMeta, error) {
	req := modeGetProperty{PropID: propID}
	if err := r.do(uintptr(ioctlGetProperty), unsafe.Pointer(&req)); err != nil {
		return "", PropertyMeta{}, err
	}

	var values []uint64
	var enums []modePropertyEnum
	if req.CountValues > 0 {
		values = make([]uint64, req.CountValues)
		req.ValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}
	if req.CountEnumBlobs > 0 {
		enums = make([]modePropertyEnum, req.CountEnumBlobs)
		req.EnumBlobPtr = uint64(uintptr(unsafe.Pointer(&enums[0])))
	}
	if req.CountValues > 0 || req.CountEnumBlobs > 0 {
		if err := r.do(uintptr(ioctlGetProperty), unsafe.Pointer(&req)); err != nil {
			return "", PropertyMeta{}, err
		}
	}

	meta := PropertyMeta{Immutable: req.Flags&propImmutable != 0}
	switch {
	case req.Flags&propRange != 0:
		meta.Kind = KindRange
		if len(values) >= 2 {
			meta.Bounds = [2]uint64{values[0], values[1]}
		}
	case propExtendedType(req.Flags) == propTypeSignedRange:
		meta.Kind = KindSignedRange
		if len(values) >= 2 {
			meta.Bounds = [2]uint64{values[0], values[1]}
		}
	case req.Flags&propBitmask != 0:
		meta.Kind = KindBitmask
		for _, e := range enums {
			meta.EnumValues = append(meta.EnumValues, e.Value)
		}
	case req.Flags&propEnum != 0:
		meta.Kind = KindEnum
		for _, e := range enums {
			meta.EnumValues = append(meta.EnumValues, e.Value)
		}
	default:
		// Blob, object and other extended types carry no bounds we
		// validate against; treat as an unconstrained range.
		meta.Kind = KindRange
		meta.Bounds = [2]uint64{0, ^uint64(0)}
	}

	return cString(req.Name[:]), meta, nil
}

func (r *realDriver) GetPropertyBlob(blobID uint32) ([]byte, error) {
	req := modeGetBlob{BlobID: blobID}
	if err := r.do(uintptr(ioctlGetPropBlob), unsafe.Pointer(&req)); err != nil {
		return nil, err
	}
	if req.Length == 0 {
		return nil, nil
	}
	data := make([]byte, req.Length)
	req.Data = uint64(uintptr(unsafe.Pointer(&data[0])))
	if err := r.do(uintptr(ioctlGetPropBlob), unsafe.Pointer(&req)); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *realDriver) GetFB2(fbID uint32) (FBInfo, error) {
	req := modeFBCmd2{FbID: fbID}
	if err := r.do(uintptr(ioctlGetFB2), unsafe.Pointer(&req)); err != nil {
		return FBInfo{}, err
	}
	return FBInfo{
		FBID:        req.FbID,
		Width:       req.Width,
		Height:      req.Height,
		PixelFormat: req.PixelFormat,
		Modifier:    req.Modifier[0],
		HasModifier: req.Flags&fbModifiers != 0,
		Handles:     req.Handles,
	}, nil
}

func (r *realDriver) CloseBufferHandle(handle uint32) error {
	req := gemClose{Handle: handle}
	return r.do(uintptr(ioctlGemClose), unsafe.Pointer(&req))
}

func (r *realDriver) HasCapability(cap uint64) (bool, error) {
	c := driverCapability{cap: cap}
	if err := r.do(uintptr(drm.IOCTLGetCap), unsafe.Pointer(&c)); err != nil {
		return false, err
	}
	return c.val != 0, nil
}

func (r *realDriver) TestCommit(objIDs []uint32, propCounts []uint32, propIDs []uint32, values []uint64, flags uint32) error {
	req := modeAtomic{Flags: flags | atomicTestOnly, CountObjs: uint32(len(objIDs))}
	if len(objIDs) > 0 {
		req.ObjsPtr = uint64(uintptr(unsafe.Pointer(&objIDs[0])))
		req.CountPropsPtr = uint64(uintptr(unsafe.Pointer(&propCounts[0])))
	}
	if len(propIDs) > 0 {
		req.PropsPtr = uint64(uintptr(unsafe.Pointer(&propIDs[0])))
		req.PropValuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
	}
	return r.do(uintptr(ioctlAtomic), unsafe.Pointer(&req))
}
