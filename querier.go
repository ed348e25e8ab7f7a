package mdns

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/sync/errgroup"
)

// ServiceEntry is one discovered service, reassembled by the aggregator
// from PTR/SRV/TXT/A/AAAA records arriving across one or more datagrams
// (spec.md §3).
type ServiceEntry struct {
	Name      string
	Host      string
	IPv4      []net.IP
	IPv6      []net.IP
	Port      int
	Text      string
	TXTFields []string

	hasTXT bool
	sent   bool
}

// complete reports whether e has enough information to be emitted: at
// least one address, a nonzero port, and an observed TXT record.
func (e *ServiceEntry) complete() bool {
	return (len(e.IPv4) > 0 || len(e.IPv6) > 0) && e.Port != 0 && e.hasTXT
}

func (e *ServiceEntry) String() string {
	return fmt.Sprintf("%s (host=%s, ipv4=%v, ipv6=%v, port=%d, txt=%v)",
		e.Name, e.Host, e.IPv4, e.IPv6, e.Port, e.TXTFields)
}

type rawDatagram struct {
	data []byte
	src  *net.UDPAddr
}

// Querier owns up to four sockets — an IPv4 unicast+multicast pair and an
// IPv6 unicast+multicast pair — used to issue PTR queries and collect their
// replies (spec.md §4.F). Each Querier is single-use: construct it, run one
// Query, then Close it; Discover does exactly this.
type Querier struct {
	cfg *QuerierConfig
	log *log.Logger
	ids idGenerator

	mu     sync.Mutex
	closed bool

	v4u, v4m Socket
	v6u, v6m Socket
}

// NewQuerier binds the requested socket families. If either socket within
// a family fails to bind, both are closed and that family is disabled. At
// least one family must remain usable (ErrNoSocketUsable otherwise). Every
// partially-opened socket is released before NewQuerier returns an error
// (scoped acquisition, spec.md §5).
func NewQuerier(cfg *QuerierConfig) (*Querier, error) {
	if cfg == nil {
		cfg = DefaultQuerierConfig()
	}
	cfg = cfg.withDefaults()
	if cfg.DisableIPv4 && cfg.DisableIPv6 {
		return nil, errors.Wrap(ErrInvalidArgument, "querier: both address families disabled")
	}

	q := &Querier{cfg: cfg, log: cfg.Logger, ids: newIDGenerator()}
	sc := cfg.socketConfig()

	if !cfg.DisableIPv4 {
		u, m, err := bindFamilyV4(sc, cfg.Interface)
		if err != nil {
			q.log.Warnf("mdns: ipv4 querier sockets unavailable: %v", err)
		} else {
			q.v4u, q.v4m = u, m
		}
	}
	if !cfg.DisableIPv6 {
		u, m, err := bindFamilyV6(sc, cfg.Interface)
		if err != nil {
			q.log.Warnf("mdns: ipv6 querier sockets unavailable: %v", err)
		} else {
			q.v6u, q.v6m = u, m
		}
	}

	if q.v4u == nil && q.v6u == nil {
		return nil, errors.Wrap(ErrNoSocketUsable, "querier: no usable socket family")
	}
	return q, nil
}

func bindFamilyV4(sc SocketConfig, ifi *net.Interface) (unicast, multicast Socket, err error) {
	u, err := bindIPv4(0, sc)
	if err != nil {
		return nil, nil, err
	}
	m, err := bindIPv4(mdnsPort, sc)
	if err != nil {
		u.Close()
		return nil, nil, err
	}
	if err := m.joinGroup(); err != nil {
		u.Close()
		m.Close()
		return nil, nil, err
	}

	if ifi != nil {
		rebound, rerr := rebindIPv4ToInterface(u, ifi, sc)
		if rerr != nil {
			// Fallback: keep the wildcard-bound unicast socket.
		} else {
			u = rebound
		}
		if serr := m.SetOutgoingInterface(ifi); serr != nil {
			// Outgoing interface selection is best-effort.
			_ = serr
		}
	}

	return u, m, nil
}

func bindFamilyV6(sc SocketConfig, ifi *net.Interface) (unicast, multicast Socket, err error) {
	u, err := bindIPv6(0, sc)
	if err != nil {
		return nil, nil, err
	}
	m, err := bindIPv6(mdnsPort, sc)
	if err != nil {
		u.Close()
		return nil, nil, err
	}
	if err := m.joinGroup(); err != nil {
		u.Close()
		m.Close()
		return nil, nil, err
	}

	if ifi != nil {
		// Only the IPv4 unicast socket is closed and rebound to the
		// interface's address; the IPv6 unicast socket stays wildcard
		// (spec.md §4.F carries this asymmetry from the source).
		if serr := m.SetOutgoingInterface(ifi); serr != nil {
			_ = serr
		}
	}

	return u, m, nil
}

// rebindIPv4ToInterface closes old and rebinds an ephemeral-port unicast
// socket to ifi's IPv4 address. On any failure old is left open and
// returned unchanged, so the caller falls back to the wildcard socket.
func rebindIPv4ToInterface(old *ipv4Socket, ifi *net.Interface, sc SocketConfig) (*ipv4Socket, error) {
	addrs, err := ifi.Addrs()
	if err != nil {
		return old, err
	}
	var ipAddr net.IP
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if ok && ipn.IP.To4() != nil {
			ipAddr = ipn.IP
			break
		}
	}
	if ipAddr == nil {
		return old, errors.New("interface has no ipv4 address")
	}

	lc := net.ListenConfig{Control: reuseControl(sc.ReuseAddr, sc.ReusePort)}
	conn, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(ipAddr.String(), "0"))
	if err != nil {
		return old, err
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(sc.hops()); err != nil {
		conn.Close()
		return old, err
	}

	old.Close()
	return &ipv4Socket{pc: pc, conn: conn}, nil
}

// Close releases every socket this Querier owns. Idempotent.
func (q *Querier) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for _, s := range []Socket{q.v4u, q.v4m, q.v6u, q.v6m} {
		if s != nil {
			s.Close()
		}
	}
	return nil
}

func (q *Querier) sendQuery(name string, wantUnicast bool) error {
	msg := Message{
		Header: Header{ID: q.ids.nextID()},
		Questions: []Question{{
			Name:  name,
			Type:  TypePTR,
			Class: withFlag(ClassINET, wantUnicast),
		}},
	}
	b, err := Pack(msg)
	if err != nil {
		return err
	}

	sentV4, sentV6 := false, false
	if q.v4u != nil {
		if err := q.v4u.Send(b, ipv4Group); err != nil {
			q.log.Warnf("mdns: send query over ipv4: %v", err)
		} else {
			sentV4 = true
		}
	}
	if q.v6u != nil {
		if err := q.v6u.Send(b, ipv6Group); err != nil {
			q.log.Warnf("mdns: send query over ipv6: %v", err)
		} else {
			sentV6 = true
		}
	}
	if !sentV4 && !sentV6 {
		return errors.Wrap(ErrSendFailed, "querier: failed to send query on any socket")
	}
	return nil
}

// receiveLoop fans in datagrams from every live socket into a single
// channel, closing it once every socket's reader has returned (which
// happens once the socket is closed, typically by the ctx.Done watcher in
// Query). One goroutine per socket via errgroup, per SPEC_FULL.md's
// grounding of golang.org/x/sync in this component.
func (q *Querier) receiveLoop(ctx context.Context, out chan<- rawDatagram) {
	var socks []Socket
	for _, s := range []Socket{q.v4u, q.v4m, q.v6u, q.v6m} {
		if s != nil {
			socks = append(socks, s)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range socks {
		sock := s
		g.Go(func() error {
			buf := make([]byte, 65535)
			for {
				n, src, err := sock.Recv(buf)
				if err != nil {
					return nil
				}
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case out <- rawDatagram{data: data, src: src}:
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	g.Wait()
	close(out)
}

// Query issues a PTR query for service and streams completed entries to
// the returned channel until the deadline derived from cfg.Timeout (zero
// means unbounded, per spec.md §4.F) elapses or ctx is canceled, at which
// point the channel is closed and every socket is released.
func (q *Querier) Query(ctx context.Context, service string) (<-chan *ServiceEntry, error) {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	name := fmt.Sprintf("%s.%s.", trimDot(service), trimDot(q.cfg.Domain))

	var cancel context.CancelFunc
	if q.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, q.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	if err := q.sendQuery(name, q.cfg.WantUnicastResponse); err != nil {
		cancel()
		return nil, err
	}

	out := make(chan *ServiceEntry, 32)
	agg := newAggregator(service, q.cfg.Domain, out)
	datagrams := make(chan rawDatagram, 64)

	go func() {
		<-ctx.Done()
		q.Close()
	}()

	go q.receiveLoop(ctx, datagrams)

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.sendQuery(name, q.cfg.WantUnicastResponse)
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer cancel()
		defer close(out)
		for dg := range datagrams {
			msg, ok := Parse(dg.data)
			if !ok {
				continue
			}
			if len(msg.Answers) == 0 && len(msg.Additionals) == 0 {
				continue
			}
			for _, r := range msg.Answers {
				agg.ingest(r)
			}
			for _, r := range msg.Additionals {
				agg.ingest(r)
			}
		}
	}()

	return out, nil
}

// Query is the package-level stream API (spec.md §6): construct a
// single-use Querier for cfg, run one query for service, and return a
// channel of completed entries that closes when the lookup finishes.
func Query(ctx context.Context, service string, cfg *QuerierConfig) (<-chan *ServiceEntry, error) {
	q, err := NewQuerier(cfg)
	if err != nil {
		return nil, err
	}
	return q.Query(ctx, service)
}

// Discover is the package-level collecting API (spec.md §6): it gathers
// every entry produced by Query(service, cfg) until the stream closes.
func Discover(service string, cfg *QuerierConfig) ([]*ServiceEntry, error) {
	q, err := NewQuerier(cfg)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	out, err := q.Query(context.Background(), service)
	if err != nil {
		return nil, err
	}

	var entries []*ServiceEntry
	for e := range out {
		entries = append(entries, e)
	}
	return entries, nil
}
