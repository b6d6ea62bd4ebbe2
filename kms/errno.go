package kms

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ErrorClass buckets an error returned from the kernel or from property
// validation into the handling strategy the allocator should apply.
type ErrorClass int

const (
	// ClassFatal covers anything not otherwise classified: memory
	// allocation failure, an unexpected kernel errno. The search aborts
	// and the error is surfaced to the caller.
	ClassFatal ErrorClass = iota
	// ClassFeasibility means "this branch of the search is not viable" —
	// EINVAL/ERANGE/ENOSPC from a test commit or a property validation
	// failure. The search continues with the next candidate.
	ClassFeasibility
	// ClassTransient means the kernel wants the test commit retried
	// (EINTR/EAGAIN).
	ClassTransient
	// ClassProgrammer covers caller misuse (setting CRTC_ID on a layer,
	// double plane registration) returned unchanged to the caller.
	// Classify never produces it: ErrCRTCIDReadOnly and ErrDuplicatePlane
	// come straight back from the public API calls that reject the
	// misuse (Layer.SetProperty, Device.RegisterPlane) rather than from
	// the allocator's search or test-commit path, so callers compare
	// against them directly with errors.Is instead of via Classify.
	ClassProgrammer
)

// Classify maps an error to the handling strategy the allocator or
// device layer should apply. nil classifies as ClassFatal, so callers
// should check err != nil before calling Classify.
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
		return ClassTransient
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ERANGE), errors.Is(err, unix.ENOSPC):
		return ClassFeasibility
	default:
		return ClassFatal
	}
}

// ErrCRTCIDReadOnly is returned by Layer.SetProperty when the caller
// attempts to set CRTC_ID directly; the allocator owns that property.
// It wraps unix.EINVAL per the documented error taxonomy.
var ErrCRTCIDReadOnly = errors.Wrap(unix.EINVAL, "kms: refusing to set a layer's CRTC_ID")

// ErrDuplicatePlane is returned by Device.RegisterPlane when a plane
// with the same driver id has already been registered. It wraps
// unix.EEXIST per the documented error taxonomy.
var ErrDuplicatePlane = errors.Wrap(unix.EEXIST, "kms: plane already registered")

// ErrMissingType is returned during plane registration when the driver
// did not report a "type" property for the plane.
var ErrMissingType = errors.New("kms: plane missing 'type' property")

// ErrNoSuchCRTC is returned by Output creation when the requested CRTC
// id isn't among the device's enumerated CRTCs.
var ErrNoSuchCRTC = errors.New("kms: no such CRTC")

// ErrInvalidPropertyValue is returned by Property.Validate when a
// value fails the driver's declared kind or bounds. It wraps
// unix.EINVAL so Classify treats it as a feasibility signal, exactly
// like an EINVAL from a test commit.
var ErrInvalidPropertyValue = errors.Wrap(unix.EINVAL, "kms: invalid property value")

// ErrPlaneMissingProperty is returned by plane_apply-style property
// writes when the target plane doesn't have the property at all and
// the layer's value isn't a no-op default for it. Also classified as
// a feasibility signal.
var ErrPlaneMissingProperty = errors.Wrap(unix.EINVAL, "kms: plane is missing property")

// wrapf is a thin helper around errors.Wrapf kept local so call sites
// read like the rest of the package instead of importing pkg/errors
// directly everywhere.
func wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
