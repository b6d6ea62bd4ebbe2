// Package drm provides the low level interface to a DRM (Direct
// Rendering Manager) character device: opening a card, querying its
// driver version and capabilities.
//
// The higher level KMS plane allocation engine lives in the kms
// subpackage, built on top of the file descriptor this package opens.
package drm
