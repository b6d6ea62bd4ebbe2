package kms

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const objTypePlane = 0xeeeeeeee // DRM_MODE_OBJECT_PLANE

// Device wraps a single DRM character device and owns every plane and
// output derived from it.
type Device struct {
	fd     int
	driver KernelDriver

	crtcs  []uint32
	planes []*Plane

	outputs []*Output

	planesCap int

	testCommitCounter int
	pageFlipCounter   int
}

// NewDevice opens a device rooted at an already-open DRM file, taking
// ownership of a duplicate of its file descriptor.
func NewDevice(file *os.File) (*Device, error) {
	fd, err := unix.Dup(int(file.Fd()))
	if err != nil {
		return nil, errors.Wrap(err, "kms: dup DRM fd")
	}
	return NewDeviceWithDriver(fd, &realDriver{fd: fd})
}

// NewDeviceWithDriver builds a device around an arbitrary KernelDriver,
// primarily so tests can inject kmsfake instead of touching hardware.
func NewDeviceWithDriver(fd int, driver KernelDriver) (*Device, error) {
	d := &Device{fd: fd, driver: driver}

	crtcs, err := driver.GetResources()
	if err != nil {
		return nil, wrapf(err, "kms: get resources")
	}
	d.crtcs = crtcs

	if err := d.RegisterPlanes(); err != nil {
		return nil, err
	}

	return d, nil
}

// Destroy closes the device's file descriptor. It does not attempt to
// restore any previous CRTC state.
func (d *Device) Destroy() {
	if d.fd >= 0 {
		unix.Close(d.fd)
		d.fd = -1
	}
}

func parseProperty(driver KernelDriver, propID uint32, value uint64) (*Property, bool, error) {
	name, meta, err := driver.GetProperty(propID)
	if err != nil {
		return nil, false, wrapf(err, "kms: get property %d", propID)
	}
	idx, ok := propertyNames[name]
	if !ok {
		return nil, false, nil
	}
	return &Property{
		Index:      idx,
		DriverID:   propID,
		Value:      value,
		PrevValue:  value,
		DriverMeta: meta,
	}, true, nil
}

// RegisterPlanes enumerates every plane the driver currently exposes
// and registers each one that isn't already known to the device.
func (d *Device) RegisterPlanes() error {
	ids, err := d.driver.GetPlaneIDs()
	if err != nil {
		return wrapf(err, "kms: get plane resources")
	}
	if len(ids) > d.planesCap {
		d.planesCap = len(ids)
	}

	for _, id := range ids {
		found := false
		for _, p := range d.planes {
			if p.id == id {
				found = true
				break
			}
		}
		if found {
			continue
		}
		if _, err := d.RegisterPlane(id); err != nil {
			return err
		}
	}
	return nil
}

// RegisterPlane registers a single plane by driver id, parsing its
// properties and inserting it into the device's ordered plane list.
func (d *Device) RegisterPlane(id uint32) (*Plane, error) {
	for _, p := range d.planes {
		if p.id == id {
			return nil, ErrDuplicatePlane
		}
	}

	possibleCRTCs, err := d.driver.GetPlane(id)
	if err != nil {
		return nil, wrapf(err, "kms: get plane %d", id)
	}

	propIDs, values, err := d.driver.GetObjectProperties(id, objTypePlane)
	if err != nil {
		return nil, wrapf(err, "kms: get plane %d properties", id)
	}

	p := &Plane{
		device:        d,
		id:            id,
		possibleCRTCs: possibleCRTCs,
	}

	haveType := false
	var inFormatsBlob uint64

	for i, propID := range propIDs {
		prop, ok, err := parseProperty(d.driver, propID, values[i])
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		p.props = append(p.props, prop)

		switch prop.Index {
		case PropType:
			p.planeType = PlaneType(prop.Value)
			haveType = true
		case PropZPos:
			p.zpos = int(prop.Value)
		case PropInFormats:
			inFormatsBlob = prop.Value
		}
	}

	if !haveType {
		return nil, ErrMissingType
	}

	if zposProp := p.propertyGet(PropZPos); zposProp == nil {
		p.zpos = zposGuess(d, id, p.planeType)
	}

	if inFormatsBlob != 0 {
		blob, err := d.driver.GetPropertyBlob(uint32(inFormatsBlob))
		if err != nil {
			return nil, wrapf(err, "kms: get IN_FORMATS blob for plane %d", id)
		}
		parsed, err := parseFormatModifierBlob(blob)
		if err != nil {
			logger.Warn("failed to parse IN_FORMATS", "plane", id, "err", err)
		} else {
			p.inFormats = parsed
		}
	}

	d.planes = insertPlane(d.planes, p)
	return p, nil
}

// tickPriority folds every layer's pending FB_ID change count into its
// current priority once every priorityPeriod calls.
func (d *Device) tickPriority() {
	d.pageFlipCounter++
	current := d.pageFlipCounter%priorityPeriod == 0
	for _, out := range d.outputs {
		for _, l := range out.layers {
			l.priorityUpdate(current)
		}
	}
}

// testCommit issues a TEST_ONLY atomic commit for req, retrying
// forever on EINTR/EAGAIN the way the kernel's own atomic ioctl
// wrapper does, and always stripping DRM_MODE_PAGE_FLIP_EVENT since a
// probe must never arm a page-flip completion event.
func (d *Device) testCommit(req *AtomicRequest, flags uint32) error {
	const pageFlipEvent = 0x01
	flags &^= pageFlipEvent

	objs, propCounts, props, values := req.flatten()

	for {
		d.testCommitCounter++
		err := d.driver.TestCommit(objs, propCounts, props, values, flags)
		if err == nil {
			return nil
		}
		if Classify(err) == ClassTransient {
			continue
		}
		return err
	}
}
