package probecli

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NeowayLabs/kmsplane/kms"
	"github.com/NeowayLabs/kmsplane/kms/kmsfake"
)

// dryRunFixture is a small, fixed hardware shape (one primary plane,
// two overlays) used to exercise a scenario without a real device: a
// single CRTC with the standard property set on every plane, one
// framebuffer registered per unique FB_ID the scenario mentions.
func buildDryRunFixture(scenario *Scenario) (*kmsfake.Driver, uint32) {
	fake := kmsfake.New()
	crtc := fake.AddCRTC()
	props := fake.StdProps()

	newPlane := func(t kms.PlaneType, zpos uint64) {
		fake.AddPlane(1<<0, map[uint32]uint64{
			props["type"]:     uint64(t),
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
		})
	}
	newPlane(kms.PlaneTypePrimary, 0)
	newPlane(kms.PlaneTypeOverlay, 2)
	newPlane(kms.PlaneTypeOverlay, 1)

	seen := map[uint32]bool{}
	addFB := func(id uint32) {
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		fake.AddFB(kms.FBInfo{FBID: id, Width: 1920, Height: 1080})
	}
	if scenario.Composition != nil {
		addFB(scenario.Composition.FBID)
	}
	for _, l := range scenario.Layers {
		addFB(l.FBID)
	}

	return fake, crtc
}

func newDryRunCmd() *cobra.Command {
	var scenarioPath string

	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "Run a scenario against a scripted fake device",
		Long: `dry-run replays a scenario's layers against a fixed, fake hardware
shape (one primary plane, two overlays) so the allocator's plane
choices can be inspected without a card or root privileges.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := LoadScenario(scenarioPath)
			if err != nil {
				return err
			}
			scenario.CRTC = 0 // resolved after building the fixture

			fake, crtc := buildDryRunFixture(scenario)
			scenario.CRTC = crtc

			dev, err := kms.NewDeviceWithDriver(-1, fake)
			if err != nil {
				return err
			}

			out, layers, err := scenario.Build(dev)
			if err != nil {
				return err
			}

			req := kms.NewAtomicRequest()
			if err := out.Apply(req, 0); err != nil {
				return err
			}

			reportLayers(scenario.Layers, layers)
			log.Infof("test commits issued: %d", len(fake.Commits))
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioPath, "scenario", viper.GetString("scenario"), "path to a scenario YAML file")
	cmd.MarkFlagRequired("scenario")
	return cmd
}
