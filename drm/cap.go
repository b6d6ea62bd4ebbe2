package drm

import (
	"os"
	"unsafe"

	"github.com/NeowayLabs/kmsplane/drm/ioctl"
)

type (
	capability struct {
		cap uint64
		val uint64
	}
)

const (
	CapDumbBuffer = iota + 1
	CapVBlankHighCRTC
	CapDumbPreferredDepth
	CapDumbPreferShadow
	CapPrime
	CapTimestampMonotonic
	CapAsyncPageFlip
	CapCursorWidth
	CapCursorHeight

	CapAddFB2Modifiers = 0x10
)

// GetCap queries a single DRM_CAP_* driver capability.
func GetCap(file *os.File, cap uint64) (uint64, error) {
	c := &capability{cap: cap}
	err := ioctl.Do(uintptr(file.Fd()), uintptr(IOCTLGetCap), uintptr(unsafe.Pointer(c)))
	if err != nil {
		return 0, err
	}
	return c.val, nil
}

func HasDumbBuffer(file *os.File) bool {
	val, err := GetCap(file, CapDumbBuffer)
	if err != nil {
		return false
	}
	return val != 0
}

// HasAddFB2Modifiers reports whether the driver supports the modifier
// matrix used by the plane compatibility check in the kms package.
func HasAddFB2Modifiers(file *os.File) bool {
	val, err := GetCap(file, CapAddFB2Modifiers)
	if err != nil {
		return false
	}
	return val != 0
}
