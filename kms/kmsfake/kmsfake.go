// Package kmsfake provides a scriptable, in-memory stand-in for a KMS
// character device, implementing kms.KernelDriver so allocator and
// reuse-path behavior can be exercised without hardware.
package kmsfake

import (
	"encoding/binary"
	"errors"

	"github.com/NeowayLabs/kmsplane/kms"
)

// ErrNotFound is returned when a test asks the fake for an object id
// it never registered.
var ErrNotFound = errors.New("kmsfake: not found")

type propInfo struct {
	name string
	meta kms.PropertyMeta
}

type plane struct {
	id            uint32
	possibleCRTCs uint32
	propIDs       []uint32
	values        []uint64
}

// Commit records one TestCommit call, in the same shape the real
// ATOMIC ioctl receives it, for test assertions.
type Commit struct {
	Objs       []uint32
	PropCounts []uint32
	PropIDs    []uint32
	Values     []uint64
	Flags      uint32
}

// TestCommitFunc decides whether a speculative atomic commit would
// succeed on real hardware. The default (nil) accepts everything.
type TestCommitFunc func(c Commit) error

// Driver is a fake kms.KernelDriver. The zero value is not usable;
// build one with New.
type Driver struct {
	crtcs []uint32

	planes     map[uint32]*plane
	planeOrder []uint32
	nextPlane  uint32

	props    map[uint32]propInfo
	byName   map[string]uint32
	nextProp uint32

	blobs    map[uint32][]byte
	nextBlob uint32

	fbs map[uint32]kms.FBInfo

	closedHandles map[uint32]int
	caps          map[uint64]bool

	TestCommitFn TestCommitFunc
	Commits      []Commit
}

// New returns an empty fake driver with no CRTCs, planes or
// properties registered.
func New() *Driver {
	return &Driver{
		planes:        make(map[uint32]*plane),
		props:         make(map[uint32]propInfo),
		byName:        make(map[string]uint32),
		blobs:         make(map[uint32][]byte),
		fbs:           make(map[uint32]kms.FBInfo),
		closedHandles: make(map[uint32]int),
		caps:          make(map[uint64]bool),
	}
}

// AddCRTC registers a new CRTC and returns its id.
func (d *Driver) AddCRTC() uint32 {
	id := uint32(len(d.crtcs)) + 1
	d.crtcs = append(d.crtcs, id)
	return id
}

// DefineProperty registers a property definition and returns its
// driver id. Calling it twice with the same name returns the same id.
func (d *Driver) DefineProperty(name string, meta kms.PropertyMeta) uint32 {
	if id, ok := d.byName[name]; ok {
		return id
	}
	d.nextProp++
	id := d.nextProp
	d.props[id] = propInfo{name: name, meta: meta}
	d.byName[name] = id
	return id
}

// StdProps lazily defines the standard property set every real driver
// exposes on a plane, with kernel-typical value spaces, and returns
// name -> driver id.
func (d *Driver) StdProps() map[string]uint32 {
	rng := func(lo, hi uint64) kms.PropertyMeta {
		return kms.PropertyMeta{Kind: kms.KindRange, Bounds: [2]uint64{lo, hi}}
	}
	srng := func(lo, hi int64) kms.PropertyMeta {
		return kms.PropertyMeta{Kind: kms.KindSignedRange, Bounds: [2]uint64{uint64(lo), uint64(hi)}}
	}
	immutable := kms.PropertyMeta{Kind: kms.KindRange, Bounds: [2]uint64{0, ^uint64(0)}, Immutable: true}

	defs := []struct {
		name string
		meta kms.PropertyMeta
	}{
		{"type", immutable},
		{"FB_ID", rng(0, ^uint64(0))},
		{"CRTC_ID", rng(0, ^uint64(0))},
		{"CRTC_X", srng(-1<<31, 1<<31-1)},
		{"CRTC_Y", srng(-1<<31, 1<<31-1)},
		{"CRTC_W", rng(0, ^uint64(0))},
		{"CRTC_H", rng(0, ^uint64(0))},
		{"SRC_X", rng(0, ^uint64(0))},
		{"SRC_Y", rng(0, ^uint64(0))},
		{"SRC_W", rng(0, ^uint64(0))},
		{"SRC_H", rng(0, ^uint64(0))},
		{"zpos", rng(0, 255)},
		{"alpha", rng(0, 0xFFFF)},
		{"rotation", kms.PropertyMeta{Kind: kms.KindBitmask, EnumValues: []uint64{0, 1, 2, 3, 4, 5}}},
		{"IN_FORMATS", kms.PropertyMeta{Kind: kms.KindRange, Bounds: [2]uint64{0, ^uint64(0)}, Immutable: true}},
	}

	out := make(map[string]uint32, len(defs))
	for _, def := range defs {
		out[def.name] = d.DefineProperty(def.name, def.meta)
	}
	return out
}

// AddPlane registers a plane with the given possible-CRTC bitmask and
// initial property values (by driver id, see StdProps/DefineProperty),
// returning its id.
func (d *Driver) AddPlane(possibleCRTCs uint32, values map[uint32]uint64) uint32 {
	d.nextPlane++
	id := d.nextPlane

	p := &plane{id: id, possibleCRTCs: possibleCRTCs}
	for propID, v := range values {
		p.propIDs = append(p.propIDs, propID)
		p.values = append(p.values, v)
	}

	d.planes[id] = p
	d.planeOrder = append(d.planeOrder, id)
	return id
}

// SetPlaneProperty overwrites (or adds) a single property value on an
// already-registered plane.
func (d *Driver) SetPlaneProperty(planeID, propID uint32, value uint64) {
	p := d.planes[planeID]
	if p == nil {
		return
	}
	for i, id := range p.propIDs {
		if id == propID {
			p.values[i] = value
			return
		}
	}
	p.propIDs = append(p.propIDs, propID)
	p.values = append(p.values, value)
}

// AddBlob registers a raw property blob and returns its id.
func (d *Driver) AddBlob(data []byte) uint32 {
	d.nextBlob++
	id := d.nextBlob
	d.blobs[id] = data
	return id
}

// EncodeFormatModifierBlob builds the raw IN_FORMATS byte layout for
// the given formats and per-window modifier bitmaps, matching what
// AddBlob expects and what the kms package's blob parser reads.
func EncodeFormatModifierBlob(formats []uint32, mods []kms.FormatModifier) []byte {
	const headerLen = 24
	const entryLen = 24

	formatsOff := uint32(headerLen)
	modsOff := formatsOff + uint32(len(formats))*4

	buf := make([]byte, modsOff+uint32(len(mods))*entryLen)
	binary.LittleEndian.PutUint32(buf[0:4], 1) // version
	binary.LittleEndian.PutUint32(buf[4:8], 0) // flags
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(formats)))
	binary.LittleEndian.PutUint32(buf[12:16], formatsOff)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(mods)))
	binary.LittleEndian.PutUint32(buf[20:24], modsOff)

	for i, f := range formats {
		binary.LittleEndian.PutUint32(buf[formatsOff+uint32(i)*4:], f)
	}
	for i, m := range mods {
		off := modsOff + uint32(i)*entryLen
		binary.LittleEndian.PutUint64(buf[off:off+8], m.FormatsBitmap)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(m.Offset))
		binary.LittleEndian.PutUint64(buf[off+16:off+24], m.Modifier)
	}
	return buf
}

// AddFB registers a framebuffer's metadata, returning its id.
func (d *Driver) AddFB(fb kms.FBInfo) uint32 {
	if fb.FBID == 0 {
		fb.FBID = uint32(len(d.fbs)) + 1
	}
	d.fbs[fb.FBID] = fb
	return fb.FBID
}

// ClosedHandleCount reports how many times CloseBufferHandle was
// called for a given GEM handle.
func (d *Driver) ClosedHandleCount(handle uint32) int {
	return d.closedHandles[handle]
}

// SetCapability scripts the response of HasCapability for cap.
func (d *Driver) SetCapability(cap uint64, has bool) {
	d.caps[cap] = has
}

func (d *Driver) GetResources() ([]uint32, error) {
	out := make([]uint32, len(d.crtcs))
	copy(out, d.crtcs)
	return out, nil
}

func (d *Driver) GetPlaneIDs() ([]uint32, error) {
	out := make([]uint32, len(d.planeOrder))
	copy(out, d.planeOrder)
	return out, nil
}

func (d *Driver) GetPlane(id uint32) (uint32, error) {
	p := d.planes[id]
	if p == nil {
		return 0, ErrNotFound
	}
	return p.possibleCRTCs, nil
}

func (d *Driver) GetObjectProperties(objID, _ uint32) ([]uint32, []uint64, error) {
	p := d.planes[objID]
	if p == nil {
		return nil, nil, nil
	}
	propIDs := make([]uint32, len(p.propIDs))
	values := make([]uint64, len(p.values))
	copy(propIDs, p.propIDs)
	copy(values, p.values)
	return propIDs, values, nil
}

func (d *Driver) GetProperty(propID uint32) (string, kms.PropertyMeta, error) {
	info, ok := d.props[propID]
	if !ok {
		return "", kms.PropertyMeta{}, ErrNotFound
	}
	return info.name, info.meta, nil
}

func (d *Driver) GetPropertyBlob(blobID uint32) ([]byte, error) {
	return d.blobs[blobID], nil
}

func (d *Driver) GetFB2(fbID uint32) (kms.FBInfo, error) {
	fb, ok := d.fbs[fbID]
	if !ok {
		return kms.FBInfo{}, ErrNotFound
	}
	return fb, nil
}

func (d *Driver) CloseBufferHandle(handle uint32) error {
	d.closedHandles[handle]++
	return nil
}

func (d *Driver) HasCapability(cap uint64) (bool, error) {
	return d.caps[cap], nil
}

func (d *Driver) TestCommit(objIDs []uint32, propCounts []uint32, propIDs []uint32, values []uint64, flags uint32) error {
	c := Commit{Objs: objIDs, PropCounts: propCounts, PropIDs: propIDs, Values: values, Flags: flags}
	d.Commits = append(d.Commits, c)
	if d.TestCommitFn == nil {
		return nil
	}
	return d.TestCommitFn(c)
}
