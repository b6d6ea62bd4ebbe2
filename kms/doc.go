// Package kms implements the KMS hardware-plane allocation engine: it
// decides which of a display controller's planes should scan out
// which client-supplied layer, maximizing the layers handled by
// direct hardware scanout and minimizing the ones that fall back to
// GPU composition.
//
// A Device owns the kernel file descriptor and the enumerated Planes.
// An Output represents one CRTC and the Layers a client wants shown
// on it. Calling Output.Apply runs the allocator: it issues test-only
// atomic commits to discover a feasible plane→layer assignment,
// writes the winning assignment into the caller-owned AtomicRequest,
// and caches the result so unchanged frames skip the search entirely.
//
// Only atomic modesetting is supported. There is no legacy CRTC path,
// no automatic zpos assignment, and no GPU composition renderer: a
// layer that can't be placed on a plane is the caller's responsibility
// to composite, via the output's designated composition layer.
package kms
