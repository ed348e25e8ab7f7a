package mdns

import (
	"context"
	"net"
	"sync"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

// Responder authoritatively answers mDNS queries for a configured Zone
// (spec.md §4.E). It owns one socket per enabled address family and runs a
// self-contained read loop on each; neither loop touches the other's
// socket, and both route their answers through the same immutable Zone.
type Responder struct {
	mu      sync.Mutex
	cfg     *ResponderConfig
	log     *log.Logger
	v4      Socket
	v6      Socket
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewResponder validates cfg and returns a Responder ready to Start.
func NewResponder(cfg *ResponderConfig) (*Responder, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if cfg.Zone == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "responder: nil zone")
	}
	cfg = cfg.withDefaults()
	return &Responder{cfg: cfg, log: cfg.Logger}, nil
}

// Start binds the IPv4 and IPv6 multicast sockets, joins their groups, and
// launches one read loop per successfully bound family. Either family may
// fail independently; failure of both is fatal (ErrNoSocketUsable). Start
// returns ErrAlreadyRunning if already running.
func (r *Responder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}

	sc := r.cfg.socketConfig()

	v4, err4 := r.bindV4(sc)
	v6, err6 := r.bindV6(sc)

	if v4 == nil && v6 == nil {
		if err4 != nil {
			r.log.Warnf("mdns: ipv4 responder socket: %v", err4)
		}
		if err6 != nil {
			r.log.Warnf("mdns: ipv6 responder socket: %v", err6)
		}
		return errors.Wrap(ErrNoSocketUsable, "responder: no multicast socket available")
	}

	r.v4, r.v6 = v4, v6
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	if v4 != nil {
		r.wg.Add(1)
		go r.readLoop(ctx, v4, ipv4Group)
	}
	if v6 != nil {
		r.wg.Add(1)
		go r.readLoop(ctx, v6, ipv6Group)
	}
	return nil
}

func (r *Responder) bindV4(sc SocketConfig) (*ipv4Socket, error) {
	sock, err := bindIPv4(mdnsPort, sc)
	if err != nil {
		return nil, err
	}
	if err := sock.joinGroup(); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.SetOutgoingInterface(r.cfg.Interface); err != nil {
		r.log.Warnf("mdns: set ipv4 outgoing interface: %v", err)
	}
	return sock, nil
}

func (r *Responder) bindV6(sc SocketConfig) (*ipv6Socket, error) {
	sock, err := bindIPv6(mdnsPort, sc)
	if err != nil {
		return nil, err
	}
	if err := sock.joinGroup(); err != nil {
		sock.Close()
		return nil, err
	}
	if err := sock.SetOutgoingInterface(r.cfg.Interface); err != nil {
		r.log.Warnf("mdns: set ipv6 outgoing interface: %v", err)
	}
	return sock, nil
}

func (r *Responder) readLoop(ctx context.Context, sock Socket, group *net.UDPAddr) {
	defer r.wg.Done()
	buf := make([]byte, 65535)
	for {
		n, src, err := sock.Recv(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				r.log.Warnf("mdns: recv error: %v", err)
				return
			}
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		r.handleDatagram(data, src, sock, group)
	}
}

// handleDatagram implements the per-datagram logic of spec.md §4.E:
// discard malformed/response/non-standard-opcode-or-rcode messages, route
// each question's answer into a unicast or multicast bucket by its U-bit,
// and send at most one packet per bucket.
func (r *Responder) handleDatagram(data []byte, src *net.UDPAddr, sock Socket, group *net.UDPAddr) {
	msg, ok := Parse(data)
	if !ok {
		return
	}
	if msg.Header.Response {
		return
	}
	if msg.Header.Opcode != 0 {
		return
	}
	if msg.Header.RCode != 0 {
		return
	}

	var unicast, multicast []Record
	for _, q := range msg.Questions {
		answers, additionals := r.cfg.Zone.Records(q)
		if len(answers) == 0 && len(additionals) == 0 {
			continue
		}
		bucket := append(append([]Record{}, answers...), additionals...)
		if q.Unicast() {
			unicast = append(unicast, bucket...)
		} else {
			multicast = append(multicast, bucket...)
		}
	}

	if len(unicast) == 0 && len(multicast) == 0 {
		if r.cfg.LogEmptyResponses {
			r.log.Infof("mdns: empty response for query from %v", src)
		}
		return
	}

	if len(multicast) > 0 {
		r.send(sock, 0, multicast, group)
	}
	if len(unicast) > 0 {
		r.send(sock, msg.Header.ID, unicast, src)
	}
}

func (r *Responder) send(sock Socket, id uint16, records []Record, dst *net.UDPAddr) {
	msg := Message{
		Header: Header{ID: id, Response: true, Authoritative: true},
		Answers: records,
	}
	b, err := Pack(msg)
	if err != nil {
		r.log.Warnf("mdns: failed to pack response: %v", err)
		return
	}
	if err := sock.Send(b, dst); err != nil {
		r.log.Warnf("mdns: failed to send response: %v", err)
	}
}

// Stop cancels both read loops, closes both sockets, and waits for the
// loops to exit. Stop is idempotent.
func (r *Responder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}

	r.cancel()
	if r.v4 != nil {
		r.v4.Close()
	}
	if r.v6 != nil {
		r.v6.Close()
	}
	r.wg.Wait()
	r.v4, r.v6 = nil, nil
	r.running = false
	return nil
}

// IsRunning reports whether the responder currently owns open sockets.
func (r *Responder) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}
