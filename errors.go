package mdns

import "errors"

// Sentinel errors for the taxonomy in SPEC_FULL.md §7. Callers can compare
// with errors.Is; internal wrapping uses github.com/pkg/errors to attach
// context without losing the sentinel identity.
var (
	// ErrNilConfig is returned when a nil *ResponderConfig is passed to
	// NewResponder. NewQuerier does not return it: a nil *QuerierConfig is
	// replaced by DefaultQuerierConfig().
	ErrNilConfig = errors.New("mdns: nil config")

	// ErrInvalidArgument covers malformed FQDNs, ports, or empty instance
	// names at zone construction.
	ErrInvalidArgument = errors.New("mdns: invalid argument")

	// ErrAlreadyRunning is returned by Responder.Start when called twice.
	ErrAlreadyRunning = errors.New("mdns: responder already running")

	// ErrNotRunning is returned by operations that require a running
	// responder.
	ErrNotRunning = errors.New("mdns: responder not running")

	// ErrClosed is returned by operations on a closed querier.
	ErrClosed = errors.New("mdns: querier closed")

	// ErrNoSocketUsable is fatal at responder/querier startup when neither
	// IPv4 nor IPv6 sockets could be created.
	ErrNoSocketUsable = errors.New("mdns: no usable socket")

	// ErrSocketBindFailed wraps an OS-level bind failure.
	ErrSocketBindFailed = errors.New("mdns: socket bind failed")

	// ErrJoinFailed wraps an OS-level multicast join failure.
	ErrJoinFailed = errors.New("mdns: multicast join failed")

	// ErrSendFailed wraps an OS-level send failure.
	ErrSendFailed = errors.New("mdns: send failed")

	// ErrRecvFailed wraps an OS-level receive failure.
	ErrRecvFailed = errors.New("mdns: recv failed")

	// errNameTooLong, errBaseLen, errInvalidPtr, errPtrLoop, and
	// errInvalidLabel are internal wire-codec parse failures; Parse never
	// surfaces them, it collapses every one of them into "no message" per
	// spec.md §4.A.
	errNameTooLong  = errors.New("mdns: name too long")
	errBaseLen      = errors.New("mdns: message too short")
	errInvalidPtr   = errors.New("mdns: invalid compression pointer")
	errPtrLoop      = errors.New("mdns: compression pointer loop")
	errInvalidLabel = errors.New("mdns: invalid label")
)
