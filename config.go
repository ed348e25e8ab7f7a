package mdns

import (
	"net"
	"os"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

// defaultLogger builds the apex/log logger the teacher's Conn falls back to
// when a caller supplies none.
func defaultLogger() *log.Logger {
	return &log.Logger{
		Handler: cli.New(os.Stdout),
		Level:   log.InfoLevel,
	}
}

// boolPtr returns a pointer to v, for populating the *bool default-true
// config fields below from a literal.
func boolPtr(v bool) *bool { return &v }

// boolOrDefault dereferences p, falling back to def when p is nil (the
// caller left the field unset, as opposed to explicitly false).
func boolOrDefault(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// ResponderConfig configures a Responder (spec.md §6).
type ResponderConfig struct {
	Zone Zone

	// Interface restricts outgoing multicast traffic to one interface; nil
	// lets the OS pick.
	Interface *net.Interface

	LogEmptyResponses bool
	Logger            *log.Logger

	// ReusePort/ReuseAddr default to true when left nil; set explicitly to
	// boolPtr(false) to opt out of SO_REUSEPORT/SO_REUSEADDR.
	ReusePort     *bool
	ReuseAddr     *bool
	MulticastHops int // default 1
}

// DefaultResponderConfig returns a ResponderConfig with reuse_port/reuse_addr
// both enabled, mirroring DefaultQuerierConfig. Zone is left nil; callers
// must set it before NewResponder.
func DefaultResponderConfig() *ResponderConfig {
	return &ResponderConfig{
		ReusePort:     boolPtr(true),
		ReuseAddr:     boolPtr(true),
		MulticastHops: 1,
	}
}

func (c *ResponderConfig) withDefaults() *ResponderConfig {
	cfg := *c
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	if cfg.MulticastHops == 0 {
		cfg.MulticastHops = 1
	}
	cfg.ReusePort = boolPtr(boolOrDefault(cfg.ReusePort, true))
	cfg.ReuseAddr = boolPtr(boolOrDefault(cfg.ReuseAddr, true))
	return &cfg
}

// QuerierConfig configures a query/discover call (spec.md §6).
type QuerierConfig struct {
	Timeout             time.Duration // 0 = unbounded
	Domain              string        // default "local."
	Interface           *net.Interface
	WantUnicastResponse bool
	DisableIPv4         bool
	DisableIPv6         bool

	// ReusePort/ReuseAddr default to true when left nil; set explicitly to
	// boolPtr(false) to opt out of SO_REUSEPORT/SO_REUSEADDR.
	ReusePort     *bool
	ReuseAddr     *bool
	MulticastHops int // default 1

	Logger *log.Logger
}

func (c *QuerierConfig) withDefaults() *QuerierConfig {
	cfg := *c
	if cfg.Domain == "" {
		cfg.Domain = "local."
	}
	if cfg.Logger == nil {
		cfg.Logger = defaultLogger()
	}
	if cfg.MulticastHops == 0 {
		cfg.MulticastHops = 1
	}
	cfg.ReusePort = boolPtr(boolOrDefault(cfg.ReusePort, true))
	cfg.ReuseAddr = boolPtr(boolOrDefault(cfg.ReuseAddr, true))
	return &cfg
}

// DefaultQuerierConfig returns a QuerierConfig with reuse_port/reuse_addr
// both enabled and a 1 second timeout, matching the teacher's
// DefaultParams.
func DefaultQuerierConfig() *QuerierConfig {
	return &QuerierConfig{
		Domain:        "local.",
		Timeout:       time.Second,
		ReusePort:     boolPtr(true),
		ReuseAddr:     boolPtr(true),
		MulticastHops: 1,
	}
}

func (c *QuerierConfig) socketConfig() SocketConfig {
	return SocketConfig{
		ReuseAddr:     boolOrDefault(c.ReuseAddr, true),
		ReusePort:     boolOrDefault(c.ReusePort, true),
		MulticastHops: c.MulticastHops,
	}
}

func (c *ResponderConfig) socketConfig() SocketConfig {
	return SocketConfig{
		ReuseAddr:     boolOrDefault(c.ReuseAddr, true),
		ReusePort:     boolOrDefault(c.ReusePort, true),
		MulticastHops: c.MulticastHops,
	}
}
