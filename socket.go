package mdns

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Socket is the transport abstraction described in spec.md §4.D. Both the
// responder and the querier are built entirely against this interface; the
// concrete implementations below, plus rebindIPv4ToInterface in querier.go,
// are the only code in this package that opens an OS socket.
type Socket interface {
	// Send writes b to dst.
	Send(b []byte, dst *net.UDPAddr) error
	// Recv blocks for one datagram, returning its payload and source.
	Recv(buf []byte) (n int, src *net.UDPAddr, err error)
	// SetOutgoingInterface restricts outgoing multicast traffic to ifi.
	SetOutgoingInterface(ifi *net.Interface) error
	// LocalAddr returns the address this socket is bound to.
	LocalAddr() net.Addr
	// Close releases the underlying OS socket. Idempotent.
	Close() error
}

// SocketConfig controls how a socket is bound.
type SocketConfig struct {
	ReuseAddr     bool
	ReusePort     bool
	MulticastHops int // TTL (IPv4) / hop limit (IPv6); 0 defaults to 1
}

func (c SocketConfig) hops() int {
	if c.MulticastHops <= 0 {
		return 1
	}
	return c.MulticastHops
}

// ipv4Socket wraps an *ipv4.PacketConn bound to an IPv4 address.
type ipv4Socket struct {
	pc   *ipv4.PacketConn
	conn net.PacketConn
}

// ipv6Socket wraps an *ipv6.PacketConn bound to an IPv6 address.
type ipv6Socket struct {
	pc   *ipv6.PacketConn
	conn net.PacketConn
}

// bindIPv4 opens a UDP4 socket on 0.0.0.0:port (port == 0 for ephemeral).
func bindIPv4(port int, cfg SocketConfig) (*ipv4Socket, error) {
	lc := net.ListenConfig{Control: reuseControl(cfg.ReuseAddr, cfg.ReusePort)}
	conn, err := lc.ListenPacket(context.Background(), "udp4", udpAddrString("0.0.0.0", port))
	if err != nil {
		return nil, errors.Wrap(ErrSocketBindFailed, err.Error())
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(cfg.hops()); err != nil {
		conn.Close()
		return nil, errors.Wrap(ErrSocketBindFailed, err.Error())
	}
	return &ipv4Socket{pc: pc, conn: conn}, nil
}

// bindIPv6 opens a UDP6 socket on [::]:port.
func bindIPv6(port int, cfg SocketConfig) (*ipv6Socket, error) {
	lc := net.ListenConfig{Control: reuseControl(cfg.ReuseAddr, cfg.ReusePort)}
	conn, err := lc.ListenPacket(context.Background(), "udp6", udpAddrString("::", port))
	if err != nil {
		return nil, errors.Wrap(ErrSocketBindFailed, err.Error())
	}
	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetMulticastHopLimit(cfg.hops()); err != nil {
		conn.Close()
		return nil, errors.Wrap(ErrSocketBindFailed, err.Error())
	}
	return &ipv6Socket{pc: pc, conn: conn}, nil
}

// joinGroup joins 224.0.0.251 on every interface that can carry
// multicast. At least one successful join is required.
func (s *ipv4Socket) joinGroup() error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return errors.Wrap(ErrJoinFailed, err.Error())
	}
	joined := 0
	for i := range ifaces {
		if ifaces[i].Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := s.pc.JoinGroup(&ifaces[i], ipv4Group); err == nil {
			joined++
		}
	}
	if joined == 0 {
		return errors.Wrap(ErrJoinFailed, "no interface joined 224.0.0.251")
	}
	return nil
}

func (s *ipv6Socket) joinGroup() error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return errors.Wrap(ErrJoinFailed, err.Error())
	}
	joined := 0
	for i := range ifaces {
		if ifaces[i].Flags&net.FlagMulticast == 0 {
			continue
		}
		if err := s.pc.JoinGroup(&ifaces[i], ipv6Group); err == nil {
			joined++
		}
	}
	if joined == 0 {
		return errors.Wrap(ErrJoinFailed, "no interface joined ff02::fb")
	}
	return nil
}

func (s *ipv4Socket) Send(b []byte, dst *net.UDPAddr) error {
	_, err := s.pc.WriteTo(b, nil, dst)
	if err != nil {
		return errors.Wrap(ErrSendFailed, err.Error())
	}
	return nil
}

func (s *ipv4Socket) Recv(buf []byte) (int, *net.UDPAddr, error) {
	n, _, src, err := s.pc.ReadFrom(buf)
	if err != nil {
		return 0, nil, errors.Wrap(ErrRecvFailed, err.Error())
	}
	udpSrc, _ := src.(*net.UDPAddr)
	return n, udpSrc, nil
}

func (s *ipv4Socket) SetOutgoingInterface(ifi *net.Interface) error {
	if ifi == nil {
		return nil
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return err
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.To4() == nil {
			continue
		}
		if err := s.pc.SetMulticastInterface(ifi); err != nil {
			return err
		}
		return nil
	}
	return nil
}

func (s *ipv4Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }
func (s *ipv4Socket) Close() error        { return s.conn.Close() }

func (s *ipv6Socket) Send(b []byte, dst *net.UDPAddr) error {
	_, err := s.pc.WriteTo(b, nil, dst)
	if err != nil {
		return errors.Wrap(ErrSendFailed, err.Error())
	}
	return nil
}

func (s *ipv6Socket) Recv(buf []byte) (int, *net.UDPAddr, error) {
	n, _, src, err := s.pc.ReadFrom(buf)
	if err != nil {
		return 0, nil, errors.Wrap(ErrRecvFailed, err.Error())
	}
	udpSrc, _ := src.(*net.UDPAddr)
	return n, udpSrc, nil
}

func (s *ipv6Socket) SetOutgoingInterface(ifi *net.Interface) error {
	if ifi == nil {
		return nil
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return err
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok || ipn.IP.To4() != nil {
			continue
		}
		if err := s.pc.SetMulticastInterface(ifi); err != nil {
			return err
		}
		return nil
	}
	return nil
}

func (s *ipv6Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }
func (s *ipv6Socket) Close() error        { return s.conn.Close() }

func udpAddrString(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
