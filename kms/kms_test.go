package kms_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NeowayLabs/kmsplane/kms"
	"github.com/NeowayLabs/kmsplane/kms/kmsfake"
)

func newTestDevice(t *testing.T, fake *kmsfake.Driver) *kms.Device {
	t.Helper()
	dev, err := kms.NewDeviceWithDriver(-1, fake)
	require.NoError(t, err)
	return dev
}

func addPlane(fake *kmsfake.Driver, props map[string]uint32, possibleCRTCs uint32, planeType kms.PlaneType, zpos uint64) uint32 {
	values := map[uint32]uint64{
		props["type"]:     uint64(planeType),
		props["zpos"]:     zpos,
		props["CRTC_ID"]:  0,
		props["FB_ID"]:    0,
		props["CRTC_X"]:   0,
		props["CRTC_Y"]:   0,
		props["CRTC_W"]:   0,
		props["CRTC_H"]:   0,
		props["SRC_X"]:    0,
		props["SRC_Y"]:    0,
		props["SRC_W"]:    0,
		props["SRC_H"]:    0,
		props["alpha"]:    0xFFFF,
		props["rotation"]: 1,
	}
	return fake.AddPlane(possibleCRTCs, values)
}

func setRect(t *testing.T, l *kms.Layer, x, y, w, h int64) {
	t.Helper()
	require.NoError(t, l.SetProperty(kms.PropCRTCX, uint64(x)))
	require.NoError(t, l.SetProperty(kms.PropCRTCY, uint64(y)))
	require.NoError(t, l.SetProperty(kms.PropCRTCW, uint64(w)))
	require.NoError(t, l.SetProperty(kms.PropCRTCH, uint64(h)))
	require.NoError(t, l.SetProperty(kms.PropSRCX, 0))
	require.NoError(t, l.SetProperty(kms.PropSRCY, 0))
	require.NoError(t, l.SetProperty(kms.PropSRCW, uint64(w)<<16))
	require.NoError(t, l.SetProperty(kms.PropSRCH, uint64(h)<<16))
}

func TestTrivialSingleLayerGetsPlane(t *testing.T) {
	fake := kmsfake.New()
	crtc := fake.AddCRTC()
	props := fake.StdProps()
	addPlane(fake, props, 1<<0, kms.PlaneTypePrimary, 0)

	dev := newTestDevice(t, fake)
	out, err := dev.NewOutput(crtc)
	require.NoError(t, err)

	layer := out.NewLayer()
	setRect(t, layer, 0, 0, 640, 480)
	require.NoError(t, layer.SetProperty(kms.PropFBID, 1))
	fake.AddFB(kms.FBInfo{FBID: 1, Width: 640, Height: 480})

	req := kms.NewAtomicRequest()
	require.NoError(t, out.Apply(req, 0))

	require.NotNil(t, layer.Plane())
	require.False(t, layer.NeedsComposition())
}

func TestTwoNonOverlappingOverlaysBothGetPlanes(t *testing.T) {
	fake := kmsfake.New()
	crtc := fake.AddCRTC()
	props := fake.StdProps()
	addPlane(fake, props, 1<<0, kms.PlaneTypePrimary, 0)
	addPlane(fake, props, 1<<0, kms.PlaneTypeOverlay, 1)

	dev := newTestDevice(t, fake)
	out, err := dev.NewOutput(crtc)
	require.NoError(t, err)

	l1 := out.NewLayer()
	setRect(t, l1, 0, 0, 320, 480)
	require.NoError(t, l1.SetProperty(kms.PropFBID, 1))
	fake.AddFB(kms.FBInfo{FBID: 1, Width: 320, Height: 480})

	l2 := out.NewLayer()
	setRect(t, l2, 320, 0, 320, 480)
	require.NoError(t, l2.SetProperty(kms.PropFBID, 2))
	fake.AddFB(kms.FBInfo{FBID: 2, Width: 320, Height: 480})

	req := kms.NewAtomicRequest()
	require.NoError(t, out.Apply(req, 0))

	require.NotNil(t, l1.Plane())
	require.NotNil(t, l2.Plane())
	require.NotEqual(t, l1.Plane().ID(), l2.Plane().ID())
}

// TestDriverRejectionFallsBackToComposition scripts the fake driver to
// universally refuse layer 2's framebuffer (standing in for a modifier
// the hardware can't scan out), with only one usable overlay besides
// the primary. The composition layer must then take the primary plane
// so layer 1 can still reach hardware through the overlay, leaving
// layer 2 to be software-composited.
func TestDriverRejectionFallsBackToComposition(t *testing.T) {
	fake := kmsfake.New()
	crtc := fake.AddCRTC()
	props := fake.StdProps()
	addPlane(fake, props, 1<<0, kms.PlaneTypePrimary, 0)
	addPlane(fake, props, 1<<0, kms.PlaneTypeOverlay, 1)

	fbIDProp := props["FB_ID"]
	fake.TestCommitFn = func(c kmsfake.Commit) error {
		for i, propID := range c.PropIDs {
			if propID == fbIDProp && c.Values[i] == 2 {
				return kms.ErrInvalidPropertyValue
			}
		}
		return nil
	}

	dev := newTestDevice(t, fake)
	out, err := dev.NewOutput(crtc)
	require.NoError(t, err)

	comp := out.NewLayer()
	out.SetCompositionLayer(comp)
	setRect(t, comp, 0, 0, 640, 480)
	require.NoError(t, comp.SetProperty(kms.PropFBID, 99))
	fake.AddFB(kms.FBInfo{FBID: 99, Width: 640, Height: 480})

	l1 := out.NewLayer()
	setRect(t, l1, 0, 0, 320, 480)
	require.NoError(t, l1.SetProperty(kms.PropFBID, 1))
	fake.AddFB(kms.FBInfo{FBID: 1, Width: 320, Height: 480})

	l2 := out.NewLayer()
	setRect(t, l2, 320, 0, 320, 480)
	require.NoError(t, l2.SetProperty(kms.PropFBID, 2))
	fake.AddFB(kms.FBInfo{FBID: 2, Width: 320, Height: 480})

	req := kms.NewAtomicRequest()
	require.NoError(t, out.Apply(req, 0))

	require.NotNil(t, comp.Plane())
	require.Equal(t, kms.PlaneTypePrimary, comp.Plane().Type())
	require.NotNil(t, l1.Plane())
	require.True(t, l2.NeedsComposition())
}

func TestReuseAvoidsFullSearch(t *testing.T) {
	fake := kmsfake.New()
	crtc := fake.AddCRTC()
	props := fake.StdProps()
	addPlane(fake, props, 1<<0, kms.PlaneTypePrimary, 0)

	dev := newTestDevice(t, fake)
	out, err := dev.NewOutput(crtc)
	require.NoError(t, err)

	layer := out.NewLayer()
	setRect(t, layer, 0, 0, 640, 480)
	require.NoError(t, layer.SetProperty(kms.PropFBID, 1))
	fake.AddFB(kms.FBInfo{FBID: 1, Width: 640, Height: 480})

	req := kms.NewAtomicRequest()
	require.NoError(t, out.Apply(req, 0))
	firstCommits := len(fake.Commits)
	require.Greater(t, firstCommits, 0)

	req2 := kms.NewAtomicRequest()
	require.NoError(t, out.Apply(req2, 0))
	secondRoundCommits := len(fake.Commits) - firstCommits

	require.Equal(t, 1, secondRoundCommits)
}

func TestReuseInvalidatedByFBSizeChange(t *testing.T) {
	fake := kmsfake.New()
	crtc := fake.AddCRTC()
	props := fake.StdProps()
	addPlane(fake, props, 1<<0, kms.PlaneTypePrimary, 0)

	dev := newTestDevice(t, fake)
	out, err := dev.NewOutput(crtc)
	require.NoError(t, err)

	layer := out.NewLayer()
	setRect(t, layer, 0, 0, 640, 480)
	require.NoError(t, layer.SetProperty(kms.PropFBID, 1))
	fake.AddFB(kms.FBInfo{FBID: 1, Width: 640, Height: 480})

	req := kms.NewAtomicRequest()
	require.NoError(t, out.Apply(req, 0))
	afterFirst := len(fake.Commits)

	fake.AddFB(kms.FBInfo{FBID: 1, Width: 1280, Height: 720})

	req2 := kms.NewAtomicRequest()
	require.NoError(t, out.Apply(req2, 0))
	secondRoundCommits := len(fake.Commits) - afterFirst

	require.Greater(t, secondRoundCommits, 1)
}
