package drm_test

import (
	"os"
	"testing"

	"github.com/NeowayLabs/kmsplane/drm"
)

// These tests open a real DRM card and are skipped when none is
// present (containers, CI runners without a GPU, ...).

func openTestCard(t *testing.T) *os.File {
	t.Helper()
	file, err := drm.OpenCard(0)
	if err != nil {
		t.Skipf("no DRM card available: %s", err)
	}
	return file
}

func TestDRIOpen(t *testing.T) {
	file := openTestCard(t)
	file.Close()
}

func TestAvailableCard(t *testing.T) {
	file := openTestCard(t)
	defer file.Close()

	v, err := drm.GetVersion(file)
	if err != nil {
		t.Fatal(err)
	}
	if v.Major == 0 && v.Minor == 0 && v.Patch == 0 {
		t.Fatalf("failed to get driver version: %#v", v)
	}

	t.Logf("Driver name: %s", v.Name)
	t.Logf("Driver version: %d.%d.%d", v.Major, v.Minor, v.Patch)
	t.Logf("Driver date: %s", v.Date)
	t.Logf("Driver description: %s", v.Desc)
}
