package kms

import (
	"unsafe"

	"github.com/NeowayLabs/kmsplane/drm/ioctl"
)

const ioctlBase = 'd'

// Kernel-side wire structs for the atomic modesetting ioctls. Field
// order and widths must match include/uapi/drm/drm_mode.h exactly:
// these are passed to the kernel via unsafe.Pointer, so Go's struct
// layout has to line up byte-for-byte with the C one.

type modeCardRes struct {
	FbIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFBs       uint32
	CountCrtcs     uint32
	CountConns     uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

type modeGetPlaneRes struct {
	PlaneIDPtr  uint64
	CountPlanes uint32
}

type modeGetPlane struct {
	PlaneID          uint32
	CrtcID           uint32
	FbID             uint32
	PossibleCRTCs    uint32
	GammaSize        uint32
	CountFormatTypes uint32
	FormatTypePtr    uint64
}

type modeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
}

const propNameLen = 32

type modeGetProperty struct {
	ValuesPtr      uint64
	EnumBlobPtr    uint64
	PropID         uint32
	Flags          uint32
	Name           [propNameLen]byte
	CountValues    uint32
	CountEnumBlobs uint32
}

type modePropertyEnum struct {
	Value uint64
	Name  [propNameLen]byte
}

type modeGetBlob struct {
	BlobID uint32
	Length uint32
	Data   uint64
}

type modeFBCmd2 struct {
	FbID         uint32
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Flags        uint32
	Handles      [4]uint32
	Pitches      [4]uint32
	Offsets      [4]uint32
	Modifier     [4]uint64
}

type gemClose struct {
	Handle uint32
	Pad    uint32
}

type modeAtomic struct {
	Flags            uint32
	CountObjs        uint32
	ObjsPtr          uint64
	CountPropsPtr    uint64
	PropsPtr         uint64
	PropValuesPtr    uint64
	ReservedPtr      uint64
	UserData         uint64
}

const (
	propRange        = uint32(1 << 1)
	propImmutable    = uint32(1 << 2)
	propEnum         = uint32(1 << 3)
	propBitmask      = uint32(1 << 5)
	propExtendedMask = uint32(0x0000ffc0)
)

func propExtendedType(flags uint32) uint32 { return flags & propExtendedMask }

const propTypeSignedRange = 2 << 6

var (
	ioctlGetResources = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeCardRes{})), ioctlBase, 0xA0)
	ioctlGetPlaneResources = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeGetPlaneRes{})), ioctlBase, 0xB5)
	ioctlGetPlane = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeGetPlane{})), ioctlBase, 0xB6)
	ioctlObjGetProperties = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeObjGetProperties{})), ioctlBase, 0xB9)
	ioctlGetProperty = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeGetProperty{})), ioctlBase, 0xAA)
	ioctlGetPropBlob = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeGetBlob{})), ioctlBase, 0xAC)
	ioctlGetFB2 = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeFBCmd2{})), ioctlBase, 0xCE)
	ioctlGemClose = ioctl.NewCode(ioctl.Write,
		uint16(unsafe.Sizeof(gemClose{})), ioctlBase, 0x09)
	ioctlAtomic = ioctl.NewCode(ioctl.Read|ioctl.Write,
		uint16(unsafe.Sizeof(modeAtomic{})), ioctlBase, 0xBC)
)
