// Package ptt keys a transmitter's push-to-talk line off a CM108/CM119
// style USB audio adapter's GPIO pin, the same device src/cm108.go
// drives, repurposed here to follow TDMA tx slot boundaries instead of
// AX.25 frame boundaries.
package ptt

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// GoodVendor is the CMedia USB vendor ID the reference implementation
// whitelists before trusting a GPIO write.
const GoodVendor = 0x0d8c

// Key drives one GPIO pin (1-8) on a CM108-family hidraw device. gpio is
// the pin number; on corresponds to the line level PTT should assert.
type Key struct {
	devicePath string
	gpio       uint
}

// Open validates the GPIO number and returns a Key bound to devicePath
// (e.g. "/dev/hidraw2"). It does not open the device until Set is called,
// since hidraw nodes are exclusive and a Key should hold it only briefly.
func Open(devicePath string, gpio uint) (*Key, error) {
	if gpio < 1 || gpio > 8 {
		return nil, fmt.Errorf("ptt: GPIO number %d must be in range 1-8", gpio)
	}
	return &Key{devicePath: devicePath, gpio: gpio}, nil
}

// Set asserts or clears the configured GPIO pin, keying or unkeying the
// transmitter. It is the direct counterpart of cm108_write: open the
// hidraw node, sanity-check the vendor ID over HIDIOCGRAWINFO (skipped
// if that ioctl fails), then write a 5-byte feature report with
// iomask/iodata for the one pin we control.
func (k *Key) Set(on bool) error {
	fd, err := os.OpenFile(k.devicePath, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("ptt: open %s: %w", k.devicePath, err)
	}
	defer fd.Close()

	if info, err := unix.IoctlHIDGetRawInfo(int(fd.Fd())); err == nil {
		if info.Vendor != GoodVendor {
			return fmt.Errorf("ptt: %s vendor %04x is not a known CM108-family device", k.devicePath, uint16(info.Vendor))
		}
	}

	bit := byte(1) << (k.gpio - 1)
	iomask := bit
	iodata := byte(0)
	if on {
		iodata = bit
	}

	// Writing 4 bytes yields EPIPE on this device family; 5 works.
	data := []byte{0, 0, iodata, iomask, 0}
	n, err := fd.Write(data)
	if err != nil || n != len(data) {
		return fmt.Errorf("ptt: write %s: n=%d err=%w", k.devicePath, n, err)
	}
	return nil
}
