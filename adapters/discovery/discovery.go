// Package discovery announces a running FramerSink packet stream over
// mDNS/DNS-SD, the way src/dns_sd.go announces a KISS-over-TCP service:
// same dnssd.Config/NewService/NewResponder sequence, a different
// service type and port source.
package discovery

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/brutella/dnssd"
)

// ServiceType is the DNS-SD service type a digitalll packet stream is
// announced under, mirroring direwolf's "_kiss-tnc._tcp".
const ServiceType = "_digitalll-pkt._tcp"

// Announcer advertises a TCP port carrying FramerSink.Packet values.
type Announcer struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
}

// DefaultName returns "digitalll on <hostname>", or just "digitalll"
// if the hostname can't be read, matching dns_sd_default_service_name's
// fallback behavior.
func DefaultName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "digitalll"
	}
	hostname, _, _ = strings.Cut(hostname, ".")
	return "digitalll on " + hostname
}

// Announce advertises port under name (DefaultName() if empty) and
// starts responding to mDNS queries in the background. Call Close to
// stop advertising.
func Announce(name string, port int) (*Announcer, error) {
	if name == "" {
		name = DefaultName()
	}

	cfg := dnssd.Config{Name: name, Type: ServiceType, Port: port} //nolint:exhaustruct
	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: create service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: create responder: %w", err)
	}
	if _, err := responder.Add(svc); err != nil {
		return nil, fmt.Errorf("discovery: add service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{responder: responder, cancel: cancel}

	go func() {
		_ = responder.Respond(ctx)
	}()

	return a, nil
}

// Close stops the responder goroutine.
func (a *Announcer) Close() {
	a.cancel()
}
