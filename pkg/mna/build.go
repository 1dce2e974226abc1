package mna

import (
	"fmt"

	"github.com/edp1096/toy-mor/pkg/circuit"
	"github.com/edp1096/toy-mor/pkg/device"
)

type Option func(*device.Options)

// WithInductorBranches stamps inductors in branch form so that every entry
// stays linear in s.
func WithInductorBranches() Option {
	return func(o *device.Options) { o.InductorBranches = true }
}

// Formulate validates the circuit and builds its system.
func Formulate(ckt *circuit.Circuit, opts ...Option) (*System, error) {
	if err := ckt.Validate(); err != nil {
		return nil, err
	}
	index, err := ckt.Index()
	if err != nil {
		return nil, err
	}
	return Build(ckt.Elements, index, opts...)
}

// Build stamps the elements into a fresh system. Independent elements and
// passives are stamped first, controlled sources second, both in input
// order, so that controlling branches exist before they are referenced.
// All element and node errors are reported before anything is stamped.
func Build(elements []circuit.Element, index *circuit.NodeIndex, opts ...Option) (*System, error) {
	var o device.Options
	for _, opt := range opts {
		opt(&o)
	}

	devices := make([]device.Device, 0, len(elements))
	byName := make(map[string]device.Device, len(elements))
	for _, e := range elements {
		dev, err := device.New(e, index, o)
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", e.Name, err)
		}
		devices = append(devices, dev)
		byName[e.Name] = dev
	}

	for _, dev := range devices {
		c, ok := dev.(device.Controlled)
		if !ok || c.ControlName() == "" {
			continue
		}
		ctrl, ok := byName[c.ControlName()].(device.CurrentExposer)
		if !ok {
			return nil, fmt.Errorf("%w: %s references %s", circuit.ErrUnknownControl, dev.GetName(), c.ControlName())
		}
		c.SetControl(ctrl)
	}

	sys := NewSystem(index)
	for _, pass := range []bool{false, true} {
		for i, dev := range devices {
			if elements[i].Kind.Controlled() != pass {
				continue
			}
			if err := dev.Stamp(sys); err != nil {
				return nil, fmt.Errorf("stamping device %s: %w", dev.GetName(), err)
			}
		}
	}
	return sys, nil
}
