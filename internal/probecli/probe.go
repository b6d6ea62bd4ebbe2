package probecli

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NeowayLabs/kmsplane/drm"
	"github.com/NeowayLabs/kmsplane/kms"
)

func newProbeCmd() *cobra.Command {
	var scenarioPath string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run a scenario against a real DRM device",
		Long: `probe opens the configured DRM device, registers its planes and
replays the scenario's layers through the allocator, reporting which
plane (if any) each layer landed on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := LoadScenario(scenarioPath)
			if err != nil {
				return err
			}

			file, err := os.OpenFile(viper.GetString("card"), os.O_RDWR, 0)
			if err != nil {
				return err
			}
			defer file.Close()

			if _, err := drm.GetVersion(file); err != nil {
				return err
			}

			dev, err := kms.NewDevice(file)
			if err != nil {
				return err
			}
			defer dev.Destroy()

			out, layers, err := scenario.Build(dev)
			if err != nil {
				return err
			}

			req := kms.NewAtomicRequest()
			if err := out.Apply(req, 0); err != nil {
				return err
			}

			reportLayers(scenario.Layers, layers)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioPath, "scenario", viper.GetString("scenario"), "path to a scenario YAML file")
	cmd.MarkFlagRequired("scenario")
	return cmd
}

func reportLayers(names []ScenarioLayer, layers []*kms.Layer) {
	for i, l := range layers {
		name := names[i].Name
		if l.Plane() == nil {
			log.Warnf("layer %s: needs composition", name)
			continue
		}
		log.Infof("layer %s: plane %d (%s)", name, l.Plane().ID(), l.Plane().Type())
	}
}
