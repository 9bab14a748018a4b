package discovery

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

const (
	// Service is the DNS-SD service type the gateway registers.
	Service = "_isecgw._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// maxInstanceLen is the DNS label limit.
	maxInstanceLen = 63
)

// ErrNotAdvertising reports an update on an advertiser that has no
// registered service.
var ErrNotAdvertising = errors.New("discovery: not advertising")

// Config tunes the gateway advertisement.
type Config struct {
	// Instance is the service instance name. Defaults to "isecgw".
	Instance string

	// Port is the TCP port the instance resolves to: the listen port
	// of the HTTP layer fronting the gateway.
	Port int

	// Version is published in the "version" TXT record.
	Version string

	// Interface restricts advertising to one named interface. Empty
	// advertises on all multicast-capable interfaces.
	Interface string

	// TTL overrides the mDNS record TTL. Zero keeps the zeroconf
	// default.
	TTL time.Duration
}

// DefaultConfig returns the advertisement defaults.
func DefaultConfig() Config {
	return Config{
		Instance: "isecgw",
		Port:     8422,
	}
}

func (c Config) withDefaults() Config {
	if c.Instance == "" {
		c.Instance = "isecgw"
	}
	if len(c.Instance) > maxInstanceLen {
		c.Instance = c.Instance[:maxInstanceLen]
	}
	if c.Port == 0 {
		c.Port = 8422
	}
	return c
}

// Advertiser registers the gateway service instance and keeps its TXT
// records current. The zero value is not usable; construct with New.
type Advertiser struct {
	cfg Config

	mu     sync.Mutex
	server *zeroconf.Server
}

// New builds an advertiser. Nothing is announced until Advertise is
// called.
func New(cfg Config) *Advertiser {
	return &Advertiser{cfg: cfg.withDefaults()}
}

// Advertise registers the service instance. The extra records are
// published alongside the standard "version" and "api" TXT records;
// advertising again replaces the running registration.
func (a *Advertiser) Advertise(extra map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.cfg.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		a.cfg.Instance,
		Service,
		Domain,
		a.cfg.Port,
		a.txtRecords(extra),
		a.interfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("register %s: %w", Service, err)
	}
	a.server = server
	return nil
}

// Update replaces the TXT records of the running advertisement.
func (a *Advertiser) Update(extra map[string]string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(a.txtRecords(extra))
	return nil
}

// Shutdown withdraws the advertisement. Safe to call more than once.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// txtRecords builds the TXT strings: the fixed records first, then the
// extras, keys sorted so the advertisement is stable across restarts.
// Records with empty values are dropped.
func (a *Advertiser) txtRecords(extra map[string]string) []string {
	txt := map[string]string{
		"version": a.cfg.Version,
		"api":     "sse",
	}
	for k, v := range extra {
		txt[k] = v
	}

	keys := make([]string, 0, len(txt))
	for k := range txt {
		if txt[k] != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	records := make([]string, 0, len(keys))
	for _, k := range keys {
		records = append(records, fmt.Sprintf("%s=%s", k, txt[k]))
	}
	return records
}

// interfaces resolves the configured interface name. Nil means all
// interfaces; an unknown name falls back to all rather than failing
// the advertisement.
func (a *Advertiser) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}
