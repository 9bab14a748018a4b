package session

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/isecnet-bridge/isecnet-go/pkg/log"
)

const (
	// RelayHost is the vendor cloud relay every AMT panel registers
	// against.
	RelayHost = "amt8000.intelbras.com.br"

	// RelayPort is the relay's primary port; RelayFallbackPort is
	// tried when the primary is unreachable.
	RelayPort         = 9009
	RelayFallbackPort = 80

	// DefaultReceiverPort is used when a connection descriptor omits
	// the IP-receiver port.
	DefaultReceiverPort = 9009
)

// Config carries the session timeouts and collaborators.
type Config struct {
	// ConnectTimeout bounds the TCP dial of one relay or receiver
	// address.
	ConnectTimeout time.Duration

	// ReadTimeout bounds one command reply read.
	ReadTimeout time.Duration

	// ArmReadTimeout bounds the reply read after a V1 arm command.
	// Panels often acknowledge an arm with silence; see Session.Arm.
	ArmReadTimeout time.Duration

	// RelayAddrs are the cloud relay endpoints, tried in order.
	RelayAddrs []string

	// Dialer opens TCP connections. Defaults to net.Dialer.
	Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

	// Logger receives protocol events. Defaults to log.NoopLogger.
	Logger log.Logger

	// Now supplies timestamps for protocol events and idle accounting.
	// Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the timeouts and relay endpoints the official
// app uses.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    10 * time.Second,
		ArmReadTimeout: 3 * time.Second,
		RelayAddrs: []string{
			net.JoinHostPort(RelayHost, strconv.Itoa(RelayPort)),
			net.JoinHostPort(RelayHost, strconv.Itoa(RelayFallbackPort)),
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.ArmReadTimeout <= 0 {
		c.ArmReadTimeout = def.ArmReadTimeout
	}
	if len(c.RelayAddrs) == 0 {
		c.RelayAddrs = def.RelayAddrs
	}
	if c.Dialer == nil {
		var d net.Dialer
		c.Dialer = d.DialContext
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
