package mdns

import (
	"net"
	"strings"
)

// aggregator reassembles streaming, out-of-order, duplicated records from
// one or more sockets into complete ServiceEntry values (spec.md §4.G).
//
// Per SPEC_FULL.md / spec.md §9 Design Notes, entries live in an arena
// (entries) and name keys resolve through an index map; PTR aliasing makes
// two names share one arena slot by pointing both index entries at the same
// slot rather than copying data between them, so later records reachable
// under either name land on the same *ServiceEntry.
type aggregator struct {
	index          map[string]int
	entries        []*ServiceEntry
	completedNames map[string]bool
	suffix         string // "<service>.<domain>." with dots trimmed and rejoined
	out            chan<- *ServiceEntry
}

func newAggregator(service, domain string, out chan<- *ServiceEntry) *aggregator {
	return &aggregator{
		index:          make(map[string]int),
		completedNames: make(map[string]bool),
		suffix:         serviceDomainSuffix(service, domain),
		out:            out,
	}
}

func serviceDomainSuffix(service, domain string) string {
	return trimDot(service) + "." + trimDot(domain) + "."
}

// getOrInsert returns the arena index for name, creating a fresh entry if
// name has not been seen before.
func (a *aggregator) getOrInsert(name string) int {
	if idx, ok := a.index[name]; ok {
		return idx
	}
	e := &ServiceEntry{Name: name}
	a.entries = append(a.entries, e)
	idx := len(a.entries) - 1
	a.index[name] = idx
	return idx
}

// ingest applies one arriving record to the aggregator's state and emits
// any entry that newly became complete as a result.
func (a *aggregator) ingest(r Record) {
	idx := a.getOrInsert(r.Name)
	e := a.entries[idx]
	if e.Host == "" {
		e.Host = r.Name
	}

	switch body := r.Body.(type) {
	case PTRResource:
		target := body.PTR
		targetIdx := a.getOrInsert(target)
		a.entries[targetIdx].Name = target
		a.index[r.Name] = targetIdx

	case SRVResource:
		e.Host = body.Target
		e.Port = int(body.Port)
		// Backfill addresses that already arrived under the target host.
		if hostIdx, ok := a.index[body.Target]; ok && a.entries[hostIdx] != e {
			for _, ip := range a.entries[hostIdx].IPv4 {
				addUniqueIP(&e.IPv4, ip)
			}
			for _, ip := range a.entries[hostIdx].IPv6 {
				addUniqueIP(&e.IPv6, ip)
			}
		}

	case AResource:
		ip := net.IPv4(body.A[0], body.A[1], body.A[2], body.A[3])
		a.propagateIPv4(e, r.Name, ip)

	case AAAAResource:
		ip := make(net.IP, 16)
		copy(ip, body.AAAA[:])
		a.propagateIPv6(e, r.Name, ip)

	case TXTResource:
		e.TXTFields = body.TXT
		if len(body.TXT) > 0 {
			e.Text = body.TXT[0]
		} else {
			e.Text = ""
		}
		e.hasTXT = true

	default:
		// NSEC and any unrecognized type are ignored.
	}

	a.emitCompleted()
}

// propagateIPv4 adds ip to e, then backfills every other live entry whose
// Host equals hostName (the A record's owner name), so an instance-keyed
// entry picks up addresses that arrived under its host's name.
func (a *aggregator) propagateIPv4(e *ServiceEntry, hostName string, ip net.IP) {
	addUniqueIP(&e.IPv4, ip)
	for _, o := range a.entries {
		if o == e {
			continue
		}
		if o.Host == hostName {
			addUniqueIP(&o.IPv4, ip)
		}
	}
}

func (a *aggregator) propagateIPv6(e *ServiceEntry, hostName string, ip net.IP) {
	addUniqueIP(&e.IPv6, ip)
	for _, o := range a.entries {
		if o == e {
			continue
		}
		if o.Host == hostName {
			addUniqueIP(&o.IPv6, ip)
		}
	}
}

func addUniqueIP(set *[]net.IP, ip net.IP) {
	for _, existing := range *set {
		if existing.Equal(ip) {
			return
		}
	}
	*set = append(*set, ip)
}

// emitCompleted scans every arena entry and emits the ones that are newly
// complete, match the requested service, and have not already been sent.
func (a *aggregator) emitCompleted() {
	for _, e := range a.entries {
		if e.sent {
			continue
		}
		if a.completedNames[e.Name] {
			continue
		}
		if !e.complete() {
			continue
		}
		if !matchesService(e.Name, a.suffix) {
			continue
		}
		e.sent = true
		a.completedNames[e.Name] = true
		if a.out != nil {
			a.out <- e
		}
	}
}

// matchesService reports whether name (an entry's key, not necessarily
// dot-terminated) identifies an instance of the service/domain pair whose
// "<service>.<domain>." suffix is given.
func matchesService(name, suffix string) bool {
	name = strings.ToLower(normalizeQuestionName(name))
	suffix = strings.ToLower(suffix)

	if strings.HasSuffix(name, suffix) {
		return true
	}
	if i := strings.Index(name, "."); i >= 0 && name[i+1:] == suffix {
		return true
	}
	return false
}
