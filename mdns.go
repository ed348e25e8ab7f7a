// Package mdns implements Multicast DNS (RFC 6762) and the DNS-SD (RFC 6763)
// conventions layered on top of it: a responder that authoritatively answers
// queries for a configured set of local services, and a querier that
// discovers them by reassembling their fragmented PTR/SRV/TXT/A/AAAA answers.
package mdns

import (
	"math/rand"
	"net"
	"time"
)

const (
	ipv4mdns = "224.0.0.251"
	ipv6mdns = "ff02::fb"
	mdnsPort = 5353
)

var (
	ipv4Group = &net.UDPAddr{IP: net.ParseIP(ipv4mdns), Port: mdnsPort}
	ipv6Group = &net.UDPAddr{IP: net.ParseIP(ipv6mdns), Port: mdnsPort}
)

// defaultTTL is the TTL placed on every synthesized resource record.
const defaultTTL = 120

// Type is a DNS resource record / question type code.
type Type uint16

const (
	TypeA    Type = 1
	TypePTR  Type = 12
	TypeTXT  Type = 16
	TypeAAAA Type = 28
	TypeSRV  Type = 33
	TypeNSEC Type = 47
	TypeANY  Type = 255
)

func (t Type) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypePTR:
		return "PTR"
	case TypeTXT:
		return "TXT"
	case TypeAAAA:
		return "AAAA"
	case TypeSRV:
		return "SRV"
	case TypeNSEC:
		return "NSEC"
	case TypeANY:
		return "ANY"
	default:
		return "UNKNOWN"
	}
}

// Class is a DNS question/record class code. Bit 15 is reinterpreted by
// mDNS as the unicast-response bit on questions and the cache-flush bit on
// resource records; classMask strips it back off for code comparisons.
type Class uint16

const (
	ClassINET Class = 1

	classMask     = 0x7FFF
	cacheFlushBit = 0x8000
)

// code returns the class with the top bit masked off.
func (c Class) code() Class { return c & classMask }

// flagged reports whether the U-bit/cache-flush bit is set.
func (c Class) flagged() bool { return c&cacheFlushBit != 0 }

func withFlag(c Class, set bool) Class {
	if set {
		return c | cacheFlushBit
	}
	return c &^ cacheFlushBit
}

// idGenerator hands out random 16-bit query ids, per spec.md §4.F ("a
// random 16-bit id"). Each Querier owns its own *rand.Rand seeded at
// construction; access is confined to a single querier goroutine so no
// locking is needed.
type idGenerator struct {
	r *rand.Rand
}

func newIDGenerator() idGenerator {
	return idGenerator{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (g *idGenerator) nextID() uint16 {
	return uint16(g.r.Intn(1 << 16))
}
