// Package ppsclock disciplines a digitalll pipeline's time reference
// from a GPS 1PPS signal wired to a Linux GPIO line, filling the same
// "ground truth when no rx_time tag has arrived yet" role spec.md §7
// assigns to external timing references.
package ppsclock

import (
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"github.com/doismellburning/digitalll/digitalll"
)

// Source watches a GPIO line for 1PPS rising edges and turns each one
// into an (rx_time, rx_rate) reference pair sent on Pulses. The tags
// carry no sample offset; the caller sets Offset from its own running
// sample counter when it reads them.
type Source struct {
	line   *gpiocdev.Line
	Pulses chan digitalll.StreamTag

	sampleRate float64
	srcID      string
}

// Open requests offset on chip as an input line with rising-edge
// detection, treating each rising edge as a 1PPS pulse. sampleRate is the
// nominal sample clock the resulting rx_rate tags report.
func Open(chip string, offset int, sampleRate float64) (*Source, error) {
	s := &Source{
		Pulses:     make(chan digitalll.StreamTag, 64),
		sampleRate: sampleRate,
		srcID:      "ppsclock",
	}

	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(s.onEvent))
	if err != nil {
		return nil, fmt.Errorf("ppsclock: request line %s:%d: %w", chip, offset, err)
	}
	s.line = line
	return s, nil
}

func (s *Source) onEvent(evt gpiocdev.LineEvent) {
	if evt.Type != gpiocdev.LineEventRisingEdge {
		return
	}

	wall := time.Unix(0, int64(evt.Timestamp))
	ts := digitalll.NewTimestamp(wall.Unix(), float64(wall.Nanosecond())/1e9)

	select {
	case s.Pulses <- digitalll.StreamTag{Key: digitalll.TagRxTime, Value: ts, SrcID: s.srcID}:
	default:
	}
	select {
	case s.Pulses <- digitalll.StreamTag{Key: digitalll.TagRxRate, Value: s.sampleRate, SrcID: s.srcID}:
	default:
	}
}

// Close releases the GPIO line.
func (s *Source) Close() error {
	return s.line.Close()
}
