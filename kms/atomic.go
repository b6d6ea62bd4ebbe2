package kms

// AtomicRequest is a caller-owned, append-only log of pending
// (object, property, value) writes destined for a single
// DRM_IOCTL_MODE_ATOMIC call. The allocator's search speculatively
// appends writes and rewinds to an earlier cursor position on any
// non-success path — this is the Go equivalent of libdrm's
// drmModeAtomicGetCursor/drmModeAtomicSetCursor pair, modeled as a
// scoped truncation token instead of an opaque cursor integer.
//
// AtomicRequest is not safe for concurrent use; callers must not touch
// it from another goroutine while Output.Apply is running.
type AtomicRequest struct {
	objIDs  []uint32
	propIDs []uint32
	values  []uint64
}

// NewAtomicRequest returns an empty request ready to be populated by
// Output.Apply.
func NewAtomicRequest() *AtomicRequest {
	return &AtomicRequest{}
}

// Add appends a single property write.
func (r *AtomicRequest) Add(objID, propID uint32, value uint64) {
	r.objIDs = append(r.objIDs, objID)
	r.propIDs = append(r.propIDs, propID)
	r.values = append(r.values, value)
}

// Cursor returns a truncation token capturing the request's current
// length. Pass it to Rewind to undo every write appended since.
func (r *AtomicRequest) Cursor() int {
	return len(r.objIDs)
}

// Rewind truncates the request back to a cursor previously returned
// by Cursor, discarding every write appended since.
func (r *AtomicRequest) Rewind(cursor int) {
	r.objIDs = r.objIDs[:cursor]
	r.propIDs = r.propIDs[:cursor]
	r.values = r.values[:cursor]
}

// Len returns the number of pending writes.
func (r *AtomicRequest) Len() int {
	return len(r.objIDs)
}

// flatten groups the request's writes by object id, in first-seen
// order, into the (objs, propCountPerObj, props, values) shape the
// DRM_IOCTL_MODE_ATOMIC ioctl expects: one entry in objs per distinct
// object touched, with propCountPerObj[i] properties for objs[i]
// contiguous in props/values.
func (r *AtomicRequest) flatten() (objs []uint32, propCounts []uint32, props []uint32, values []uint64) {
	order := make([]uint32, 0, 4)
	seen := make(map[uint32]int)
	type write struct {
		prop  uint32
		value uint64
	}
	byObj := make(map[uint32][]write)

	for i, obj := range r.objIDs {
		if _, ok := seen[obj]; !ok {
			seen[obj] = len(order)
			order = append(order, obj)
		}
		byObj[obj] = append(byObj[obj], write{prop: r.propIDs[i], value: r.values[i]})
	}

	for _, obj := range order {
		ws := byObj[obj]
		objs = append(objs, obj)
		propCounts = append(propCounts, uint32(len(ws)))
		for _, w := range ws {
			props = append(props, w.prop)
			values = append(values, w.value)
		}
	}
	return objs, propCounts, props, values
}
