package mdns

import (
	"net"
	"testing"
)

type fakeSocket struct {
	sent []fakeSend
}

type fakeSend struct {
	data []byte
	dst  *net.UDPAddr
}

func (f *fakeSocket) Send(b []byte, dst *net.UDPAddr) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, fakeSend{data: cp, dst: dst})
	return nil
}
func (f *fakeSocket) Recv(buf []byte) (int, *net.UDPAddr, error)    { return 0, nil, ErrClosed }
func (f *fakeSocket) SetOutgoingInterface(ifi *net.Interface) error { return nil }
func (f *fakeSocket) LocalAddr() net.Addr                           { return &net.UDPAddr{Port: mdnsPort} }
func (f *fakeSocket) Close() error                                  { return nil }

func newTestResponder(t *testing.T) (*Responder, *fakeSocket) {
	t.Helper()
	svc := newTestZone(t)
	r, err := NewResponder(&ResponderConfig{Zone: svc, Logger: defaultLogger()})
	if err != nil {
		t.Fatalf("NewResponder() error = %v", err)
	}
	return r, &fakeSocket{}
}

func queryFor(name string, t Type, unicast bool) []byte {
	msg := Message{
		Header: Header{ID: 7},
		Questions: []Question{{
			Name:  name,
			Type:  t,
			Class: withFlag(ClassINET, unicast),
		}},
	}
	b, err := Pack(msg)
	if err != nil {
		panic(err)
	}
	return b
}

func TestResponderUnicastResponse(t *testing.T) {
	r, sock := newTestResponder(t)
	src := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 54321}

	data := queryFor("box.local.", TypeA, true)
	r.handleDatagram(data, src, sock, ipv4Group)

	if len(sock.sent) != 1 {
		t.Fatalf("len(sent) = %d, want 1", len(sock.sent))
	}
	if sock.sent[0].dst != src {
		t.Fatalf("unicast response sent to %v, want %v", sock.sent[0].dst, src)
	}
	resp, ok := Parse(sock.sent[0].data)
	if !ok {
		t.Fatalf("failed to parse responder's own reply")
	}
	if resp.Header.ID != 7 {
		t.Fatalf("unicast response id = %d, want 7 (echoed from query)", resp.Header.ID)
	}
}

func TestResponderMulticastResponse(t *testing.T) {
	r, sock := newTestResponder(t)
	src := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 5), Port: 54321}

	data := queryFor("box.local.", TypeA, false)
	r.handleDatagram(data, src, sock, ipv4Group)

	if len(sock.sent) != 1 {
		t.Fatalf("len(sent) = %d, want 1", len(sock.sent))
	}
	if sock.sent[0].dst != ipv4Group {
		t.Fatalf("multicast response sent to %v, want group address", sock.sent[0].dst)
	}
	resp, ok := Parse(sock.sent[0].data)
	if !ok {
		t.Fatalf("failed to parse responder's own reply")
	}
	if resp.Header.ID != 0 {
		t.Fatalf("multicast response id = %d, want 0", resp.Header.ID)
	}
}

func TestResponderIgnoresResponseMessages(t *testing.T) {
	r, sock := newTestResponder(t)
	msg := Message{Header: Header{ID: 1, Response: true}, Questions: []Question{{Name: "box.local.", Type: TypeA, Class: ClassINET}}}
	b, _ := Pack(msg)
	r.handleDatagram(b, &net.UDPAddr{}, sock, ipv4Group)
	if len(sock.sent) != 0 {
		t.Fatalf("responded to a Response-flagged message: %v", sock.sent)
	}
}

func TestResponderIgnoresNonZeroOpcodeOrRCode(t *testing.T) {
	r, sock := newTestResponder(t)

	msg := Message{Header: Header{ID: 1, Opcode: 1}, Questions: []Question{{Name: "box.local.", Type: TypeA, Class: ClassINET}}}
	b, _ := Pack(msg)
	r.handleDatagram(b, &net.UDPAddr{}, sock, ipv4Group)
	if len(sock.sent) != 0 {
		t.Fatalf("responded to nonzero opcode: %v", sock.sent)
	}

	msg2 := Message{Header: Header{ID: 1, RCode: 2}, Questions: []Question{{Name: "box.local.", Type: TypeA, Class: ClassINET}}}
	b2, _ := Pack(msg2)
	r.handleDatagram(b2, &net.UDPAddr{}, sock, ipv4Group)
	if len(sock.sent) != 0 {
		t.Fatalf("responded to nonzero rcode: %v", sock.sent)
	}
}

func TestResponderNoAnswerNoReply(t *testing.T) {
	r, sock := newTestResponder(t)
	data := queryFor("nothing-here.local.", TypeA, false)
	r.handleDatagram(data, &net.UDPAddr{}, sock, ipv4Group)
	if len(sock.sent) != 0 {
		t.Fatalf("sent a reply for an unanswerable question: %v", sock.sent)
	}
}

func TestNewResponderRejectsNilZone(t *testing.T) {
	if _, err := NewResponder(&ResponderConfig{}); err == nil {
		t.Fatal("expected error for nil Zone")
	}
	if _, err := NewResponder(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestResponderStopIdempotent(t *testing.T) {
	r, _ := newTestResponder(t)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() on a never-started responder: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second Stop() call: %v", err)
	}
	if r.IsRunning() {
		t.Fatal("IsRunning() = true after Stop()")
	}
}
