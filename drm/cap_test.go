package drm_test

import (
	"testing"

	"github.com/NeowayLabs/kmsplane/drm"
)

func TestHasDumbBuffer(t *testing.T) {
	file := openTestCard(t)
	defer file.Close()

	// Just exercise the ioctl path; dumb buffer support is
	// driver-dependent and not something we can assert on generically.
	_ = drm.HasDumbBuffer(file)
}

func TestGetCap(t *testing.T) {
	file := openTestCard(t)
	defer file.Close()

	val, err := drm.GetCap(file, drm.CapPrime)
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("DRM_CAP_PRIME = %d", val)
}
