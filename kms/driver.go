package kms

// KernelDriver is the contract the allocator and device wrapper need
// from a KMS/DRM character device. The production implementation
// (realDriver, in device_linux.go) issues real ioctls; kmsfake
// provides a scriptable fake for tests that never touches hardware.
//
// Every method here corresponds to one ioctl in the real
// implementation (the variable-length GET* calls issue it a second
// time to fill their arrays); there is no batching or caching at this layer
// (fb metadata caching happens one level up, in Layer).
type KernelDriver interface {
	// GetResources returns the device's CRTC ids, in kernel order —
	// index into this slice is the CRTC index used by possible-CRTC
	// bitmasks.
	GetResources() ([]uint32, error)

	// GetPlaneIDs returns every plane id the device currently exposes.
	GetPlaneIDs() ([]uint32, error)

	// GetPlane returns a plane's possible-CRTC bitmask.
	GetPlane(id uint32) (possibleCRTCs uint32, err error)

	// GetObjectProperties returns the (property id, value) pairs
	// currently set on a KMS object (a plane, in this package's usage).
	GetObjectProperties(objID uint32, objType uint32) (propIDs []uint32, values []uint64, err error)

	// GetProperty returns a property's driver name and value-space
	// metadata.
	GetProperty(propID uint32) (name string, meta PropertyMeta, err error)

	// GetPropertyBlob returns the raw bytes of a blob property's
	// value (used for IN_FORMATS).
	GetPropertyBlob(blobID uint32) ([]byte, error)

	// GetFB2 returns a framebuffer's metadata plus any GEM handles
	// the kernel allocated for the call; the caller is responsible for
	// closing every non-zero handle exactly once.
	GetFB2(fbID uint32) (FBInfo, error)

	// CloseBufferHandle releases a GEM handle returned by GetFB2.
	CloseBufferHandle(handle uint32) error

	// HasCapability reports a DRM_CAP_* driver capability.
	HasCapability(cap uint64) (bool, error)

	// TestCommit issues an atomic commit with the TEST_ONLY flag set,
	// returning the kernel's verdict without applying anything. It
	// does not perform EINTR/EAGAIN retry — that's the device
	// wrapper's job, so a fake driver can exercise the retry path
	// deterministically.
	TestCommit(objIDs []uint32, propCounts []uint32, propIDs []uint32, values []uint64, flags uint32) error
}

// FBInfo is the subset of a framebuffer's GETFB2 metadata the
// allocator's format/modifier compatibility check needs.
type FBInfo struct {
	FBID         uint32
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Modifier     uint64
	HasModifier  bool
	Handles      [4]uint32
}

// needsRealloc reports whether replacing a with b would invalidate a
// cached plane assignment (width, height, format or modifier changed
// — see the reuse invalidation rules in Layer.needsRealloc).
func (a FBInfo) needsRealloc(b FBInfo) bool {
	return a.Width != b.Width || a.Height != b.Height ||
		a.PixelFormat != b.PixelFormat || a.Modifier != b.Modifier
}

// FormatModifierBlob is the parsed IN_FORMATS property blob: a
// format array plus a set of modifier descriptors, each covering a
// 64-format window of the format array via a bitmap.
type FormatModifierBlob struct {
	Formats   []uint32
	Modifiers []FormatModifier
}

// FormatModifier is one entry of the modifier array in an IN_FORMATS
// blob: the modifier value, plus a 64-bit bitmap over
// Formats[Offset:Offset+64] marking which of those formats support it.
type FormatModifier struct {
	Modifier uint64
	Offset   int
	FormatsBitmap uint64
}
