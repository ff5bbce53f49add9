// Package rigcontrol reads back a radio's tuned frequency over Hamlib,
// strictly for annotating InputSelector's schedule log with a
// human-readable channel-to-frequency mapping. It never sits on the
// sample-processing hot path.
package rigcontrol

import (
	"fmt"

	"github.com/xylo04/goHamlib"
)

// Rig is a read-only handle on a Hamlib-controlled radio.
type Rig struct {
	rig *goHamlib.Rig
}

// Open initializes Hamlib for the given rig model (a goHamlib.RIG_MODEL_*
// constant) on the given serial port and opens it.
func Open(model int, port string) (*Rig, error) {
	r := &goHamlib.Rig{}
	r.Init(model)
	r.SetConf("rig_pathname", port)

	if err := r.Open(); err != nil {
		return nil, fmt.Errorf("rigcontrol: open %s: %w", port, err)
	}
	return &Rig{rig: r}, nil
}

// FrequencyHz returns the radio's currently tuned frequency on VFO
// CURR, for stamping alongside an InputSelector channel switch.
func (r *Rig) FrequencyHz() (float64, error) {
	freq, err := r.rig.GetFreq(goHamlib.RIG_VFO_CURR)
	if err != nil {
		return 0, fmt.Errorf("rigcontrol: get frequency: %w", err)
	}
	return freq, nil
}

// Close releases the Hamlib rig handle.
func (r *Rig) Close() error {
	return r.rig.Close()
}

// ChannelFrequency pairs an InputSelector channel index with the
// frequency observed for it, the shape InputSelector's log output
// wants per SPEC_FULL's domain-stack wiring.
type ChannelFrequency struct {
	Channel     int
	FrequencyHz float64
}
