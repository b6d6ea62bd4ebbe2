package probecli

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/NeowayLabs/kmsplane/kms"
)

// Scenario is the on-disk shape of a --scenario file: one CRTC to
// drive, an optional composition layer, and the ordered layers to
// hand to the allocator.
type Scenario struct {
	CRTC          uint32          `yaml:"crtc"`
	Composition   *ScenarioLayer  `yaml:"composition"`
	Layers        []ScenarioLayer `yaml:"layers"`
}

// ScenarioLayer is one layer's placement request plus the framebuffer
// it names, resolved against either a real device or kmsfake.
type ScenarioLayer struct {
	Name   string `yaml:"name"`
	FBID   uint32 `yaml:"fb_id"`
	X      int64  `yaml:"x"`
	Y      int64  `yaml:"y"`
	Width  int64  `yaml:"width"`
	Height int64  `yaml:"height"`
	ZPos   *int64 `yaml:"zpos"`
	Alpha  *int64 `yaml:"alpha"`
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "kmsprobe: read scenario")
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "kmsprobe: parse scenario")
	}
	return &s, nil
}

// apply stages a scenario layer's properties onto l.
func (sl ScenarioLayer) apply(l *kms.Layer) error {
	writes := map[kms.PropIndex]uint64{
		kms.PropFBID:  uint64(sl.FBID),
		kms.PropCRTCX: uint64(sl.X),
		kms.PropCRTCY: uint64(sl.Y),
		kms.PropCRTCW: uint64(sl.Width),
		kms.PropCRTCH: uint64(sl.Height),
		kms.PropSRCX:  0,
		kms.PropSRCY:  0,
		kms.PropSRCW:  uint64(sl.Width) << 16,
		kms.PropSRCH:  uint64(sl.Height) << 16,
	}
	if sl.ZPos != nil {
		writes[kms.PropZPos] = uint64(*sl.ZPos)
	}
	if sl.Alpha != nil {
		writes[kms.PropAlpha] = uint64(*sl.Alpha)
	}
	for idx, v := range writes {
		if err := l.SetProperty(idx, v); err != nil {
			return errors.Wrapf(err, "kmsprobe: layer %q property %d", sl.Name, idx)
		}
	}
	return nil
}

// Build creates an output for the scenario's CRTC on dev and stages
// every scenario layer onto it, returning the output and the layers in
// scenario order (composition layer, if any, is not included).
func (s *Scenario) Build(dev *kms.Device) (*kms.Output, []*kms.Layer, error) {
	out, err := dev.NewOutput(s.CRTC)
	if err != nil {
		return nil, nil, errors.Wrap(err, "kmsprobe: create output")
	}

	if s.Composition != nil {
		comp := out.NewLayer()
		if err := s.Composition.apply(comp); err != nil {
			return nil, nil, err
		}
		out.SetCompositionLayer(comp)
	}

	layers := make([]*kms.Layer, 0, len(s.Layers))
	for _, sl := range s.Layers {
		l := out.NewLayer()
		if err := sl.apply(l); err != nil {
			return nil, nil, err
		}
		layers = append(layers, l)
	}

	return out, layers, nil
}
