// Package hotplug watches udev for SDR dongle attach/detach and raises
// a context tag through a digitalll.ContextTagManager when the
// hardware bounces, so downstream consumers see an explicit context
// change rather than a silent gap in the sample stream.
package hotplug

import (
	"context"
	"fmt"

	"github.com/jochenvg/go-udev"

	"github.com/doismellburning/digitalll/digitalll"
)

// TagKey is the context tag key Watcher raises on attach/detach.
const TagKey = "hotplug"

// Event describes one udev action relevant to the watched device.
type Event struct {
	Action string // "add", "remove", "bind", "unbind"
	Devpath string
}

// Watcher monitors one USB vendor/product pair and records every
// attach/detach as a context tag. The tag offset is an internal event
// counter that grows by one per recorded event, not a sample offset.
type Watcher struct {
	mon     *udev.Monitor
	manager *digitalll.ContextTagManager
	offset  uint64
	Events  chan Event
}

// Watch starts monitoring udev's usb subsystem for devices matching
// vendorID/productID (ID_VENDOR_ID/ID_MODEL_ID, e.g. "0bda"/"2838" for
// an RTL-SDR), recording attach/detach as TagKey context tags.
func Watch(ctx context.Context, vendorID, productID string) (*Watcher, error) {
	u := udev.Udev{}
	mon := u.NewMonitorFromNetlink("udev")
	if err := mon.FilterAddMatchSubsystem("usb"); err != nil {
		return nil, fmt.Errorf("hotplug: filter subsystem: %w", err)
	}

	deviceChan, errChan, err := mon.DeviceChan(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotplug: start monitor: %w", err)
	}

	w := &Watcher{
		mon:     mon,
		manager: digitalll.NewContextTagManager([]string{TagKey}),
		Events:  make(chan Event, 32),
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errChan:
				if !ok {
					return
				}
				_ = err
			case dev, ok := <-deviceChan:
				if !ok {
					return
				}
				if dev.Properties()["ID_VENDOR_ID"] != vendorID || dev.Properties()["ID_MODEL_ID"] != productID {
					continue
				}
				w.record(dev.Action(), dev.Devpath())
			}
		}
	}()

	return w, nil
}

func (w *Watcher) record(action, devpath string) {
	w.offset++
	w.manager.Add(digitalll.StreamTag{
		Offset: w.offset,
		Key:    TagKey,
		Value:  action,
		SrcID:  "hotplug",
	})
	select {
	case w.Events <- Event{Action: action, Devpath: devpath}:
	default:
	}
}

// Manager exposes the underlying context tag log, so a FramerSink or
// SlotSelector sharing the same tag stream can query the device's
// attach/detach history alongside its own tags.
func (w *Watcher) Manager() *digitalll.ContextTagManager {
	return w.manager
}
