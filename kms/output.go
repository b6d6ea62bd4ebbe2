package kms

import "math"

// Output represents one CRTC and the ordered set of layers a client
// wants displayed on it.
type Output struct {
	device *Device
	crtcID uint32
	crtcIndex int

	layers    []*Layer
	compLayer *Layer

	layersChanged bool

	allocReusedCounter int
}

// NewOutput creates an output bound to crtcID, which must be one of
// the device's enumerated CRTCs.
func (d *Device) NewOutput(crtcID uint32) (*Output, error) {
	crtcIndex := -1
	for i, id := range d.crtcs {
		if id == crtcID {
			crtcIndex = i
			break
		}
	}
	if crtcIndex < 0 {
		return nil, ErrNoSuchCRTC
	}

	out := &Output{
		device:    d,
		crtcID:    crtcID,
		crtcIndex: crtcIndex,
	}
	d.outputs = append(d.outputs, out)
	return out, nil
}

// Destroy removes the output from its device. It does not destroy the
// output's layers; that remains the client's responsibility.
func (o *Output) Destroy() {
	for i, out := range o.device.outputs {
		if out == o {
			o.device.outputs = append(o.device.outputs[:i], o.device.outputs[i+1:]...)
			return
		}
	}
}

// NewLayer creates a layer owned by this output, appended to the
// output's stacking order (used for clients that don't set zpos).
func (o *Output) NewLayer() *Layer {
	l := newLayer(o)
	o.layers = append(o.layers, l)
	o.layersChanged = true
	return l
}

// destroyLayer removes l from the output; called by Layer.Destroy.
func (o *Output) destroyLayer(l *Layer) {
	for i, cur := range o.layers {
		if cur == l {
			o.layers = append(o.layers[:i], o.layers[i+1:]...)
			break
		}
	}
	o.layersChanged = true
	if l.plane != nil {
		l.plane.assigned = nil
	}
	if o.compLayer == l {
		o.compLayer = nil
	}
}

// SetCompositionLayer designates layer as the destination for any
// content the allocator can't place on hardware. layer must belong to
// this output.
func (o *Output) SetCompositionLayer(layer *Layer) {
	if layer.output != o {
		return
	}
	if o.compLayer != layer {
		o.layersChanged = true
	}
	o.compLayer = layer
}

// NeedsComposition reports whether any visible layer on this output
// currently lacks a plane.
func (o *Output) NeedsComposition() bool {
	for _, l := range o.layers {
		if l.NeedsComposition() {
			return true
		}
	}
	return false
}

func (o *Output) nonCompLayersLen() int {
	n := 0
	for _, l := range o.layers {
		if l.Visible() && l != o.compLayer {
			n++
		}
	}
	return n
}

// applyCurrent re-stages every plane's current assignment. Used both
// by the reuse fast path and to commit the winning search result.
func (o *Output) applyCurrent(req *AtomicRequest) error {
	cur := req.Cursor()
	for _, p := range o.device.planes {
		if err := p.apply(p.assigned, req); err != nil {
			req.Rewind(cur)
			return err
		}
	}
	return nil
}

func (o *Output) refreshFBInfo() error {
	for _, l := range o.layers {
		l.fbInfo = FBInfo{}
		if err := l.cacheFBInfo(); err != nil {
			return err
		}
	}
	return nil
}

// reusePreviousAlloc implements spec §4.5.7: if nothing that would
// invalidate the previous winning assignment has happened, re-stage it
// and confirm with a single test commit instead of re-running the
// search.
func (o *Output) reusePreviousAlloc(req *AtomicRequest, flags uint32) error {
	if o.layersChanged {
		return ErrInvalidPropertyValue
	}
	for _, l := range o.layers {
		if l.needsRealloc() {
			return ErrInvalidPropertyValue
		}
	}

	cur := req.Cursor()
	if err := o.applyCurrent(req); err != nil {
		return err
	}
	if err := o.device.testCommit(req, flags); err != nil {
		req.Rewind(cur)
		return err
	}
	return nil
}

func (o *Output) logReuse() {
	if o.allocReusedCounter == 0 {
		logger.Debug("reusing previous plane allocation", "output", o.crtcID)
	}
	o.allocReusedCounter++
}

func (o *Output) logNoReuse() {
	logger.Debug("computing plane allocation", "output", o.crtcID)
	if o.allocReusedCounter != 0 {
		logger.Debug("stopped reusing previous plane allocation",
			"output", o.crtcID, "reused_frames", o.allocReusedCounter)
		o.allocReusedCounter = 0
	}
}

func fp16ToFloat(v uint64) float64 {
	return float64(v>>16) + float64(v&0xFFFF)/0xFFFF
}

// logLayers dumps each layer's placement-relevant properties at debug
// level, gated the same way the original gates its trace: skip the
// work entirely unless debug logging is enabled.
func (o *Output) logLayers() {
	if !logHasDebug() {
		return
	}

	logger.Debug("layers on CRTC", "crtc", o.crtcID, "count", len(o.layers))
	for _, l := range o.layers {
		isComp := o.compLayer == l
		for _, p := range l.props {
			switch p.Index {
			case PropCRTCX, PropCRTCY:
				logger.Debug("layer property", "layer", l, "composition", isComp,
					"prop", p.Index, "value", int32(p.Value))
			case PropSRCX, PropSRCY, PropSRCW, PropSRCH:
				logger.Debug("layer property", "layer", l, "composition", isComp,
					"prop", p.Index, "value", fp16ToFloat(p.Value))
			case PropFBID, PropType:
				logger.Debug("layer property", "layer", l, "composition", isComp,
					"prop", p.Index, "value", p.Value)
			}
		}
	}
}

func (o *Output) markClean() {
	o.layersChanged = false
	for _, l := range o.layers {
		l.clean()
	}
}

const priorityPeriod = 60

// Apply is the allocator's entry point (spec §4.5.6): it refreshes
// framebuffer metadata, attempts to reuse the previous frame's plane
// assignment, and otherwise runs the full backtracking search,
// writing the winning assignment's property writes into req.
func (o *Output) Apply(req *AtomicRequest, flags uint32) error {
	d := o.device

	d.tickPriority()
	if err := o.refreshFBInfo(); err != nil {
		return err
	}

	if err := o.reusePreviousAlloc(req, flags); err == nil {
		o.logReuse()
		return nil
	}

	o.logNoReuse()

	for _, l := range o.layers {
		l.candidatePlanesReset()
	}
	d.testCommitCounter = 0

	o.logLayers()

	for _, p := range d.planes {
		if p.assigned != nil && p.assigned.output == o {
			p.assigned.plane = nil
			p.assigned = nil
		}
	}

	for _, p := range d.planes {
		if p.assigned == nil {
			logger.Debug("disabling plane", "plane", p.id)
			if err := p.apply(nil, req); err != nil {
				return err
			}
		}
	}

	result := newAllocResult(len(d.planes), o.compLayer != nil, o.nonCompLayersLen())
	step := &allocStep{
		alloc:            make([]*Layer, len(d.planes)),
		score:            0,
		lastLayerZpos:    math.MaxInt64,
		primaryLayerZpos: math.MinInt64,
		primaryPlaneZpos: math.MaxInt64,
	}

	if err := chooseLayers(o, req, flags, result, step, 0); err != nil {
		return err
	}

	logger.Debug("found plane allocation", "output", o.crtcID,
		"score", result.bestScore, "tests", d.testCommitCounter)

	placed := 0
	for i, p := range d.planes {
		layer := result.best[i]
		if layer == nil {
			continue
		}
		placed++
		logger.Debug("plane assignment", "layer", layer, "plane", p.id, "type", p.planeType)
		p.assigned = layer
		layer.plane = p
	}
	if placed == 0 {
		logger.Debug("no layer has a plane", "output", o.crtcID)
	}

	if err := o.applyCurrent(req); err != nil {
		return err
	}

	o.markClean()
	return nil
}
