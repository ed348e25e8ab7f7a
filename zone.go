package mdns

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Resolver looks up IP addresses for a host name. MDNSService uses it to
// default IPs when none are supplied; tests substitute a fixed resolver
// instead of depending on the system's actual DNS configuration (see
// SPEC_FULL.md §9 Design Notes).
type Resolver interface {
	LookupIP(host string) ([]net.IP, error)
}

type netResolver struct{}

func (netResolver) LookupIP(host string) ([]net.IP, error) { return net.LookupIP(host) }

// DefaultResolver resolves host names through the system resolver.
var DefaultResolver Resolver = netResolver{}

// Zone answers DNS questions about one or more locally advertised services.
type Zone interface {
	// Records returns the resource records that answer q, and the records
	// to attach in the additional section, or (nil, nil) if q matches
	// nothing this zone serves.
	Records(q Question) (answers, additionals []Record)
}

// MDNSService advertises one DNS-SD service instance. It is immutable once
// constructed: Instance/Service/Domain/HostName/Port/IPs/TXT and the three
// derived names below never change for the lifetime of the value.
type MDNSService struct {
	Instance string // e.g. "Office Printer"
	Service  string // e.g. "_http._tcp."
	Domain   string // e.g. "local."
	HostName string // e.g. "box.local."
	Port     int
	IPs      []net.IP
	TXT      []string

	serviceAddr  string // "<service>.<domain>."
	instanceAddr string // "<instance>.<service>.<domain>."
	enumAddr     string // "_services._dns-sd._udp.<domain>."
}

// NewMDNSService validates its arguments and returns a ready-to-serve Zone.
// A zero-value domain defaults to "local.", a zero-value hostName defaults
// to the OS hostname, and a nil/empty ips defaults to resolving hostName
// through resolver (DefaultResolver if resolver is nil).
func NewMDNSService(instance, service, domain, hostName string, port int, ips []net.IP, txt []string, resolver Resolver) (*MDNSService, error) {
	if instance == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "missing service instance name")
	}
	if service == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "missing service name")
	}
	if port < 1 || port > 65535 {
		return nil, errors.Wrapf(ErrInvalidArgument, "port %d out of range", port)
	}

	if domain == "" {
		domain = "local."
	}
	if !validateFQDN(domain) {
		return nil, errors.Wrapf(ErrInvalidArgument, "domain %q is not a fully-qualified domain name", domain)
	}

	if hostName == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, errors.Wrap(err, "could not determine host")
		}
		hostName = h + "."
	}
	if !validateFQDN(hostName) {
		return nil, errors.Wrapf(ErrInvalidArgument, "hostName %q is not a fully-qualified domain name", hostName)
	}

	if resolver == nil {
		resolver = DefaultResolver
	}

	if len(ips) == 0 {
		resolved, err := resolver.LookupIP(hostName)
		if err != nil {
			// The source's second-chance retry rebuilds the FQDN by
			// concatenating two already dot-terminated strings, which can
			// double the trailing suffix (see SPEC_FULL.md / DESIGN.md Open
			// Question); skip that retry and surface the original failure.
			return nil, errors.Wrapf(ErrInvalidArgument, "could not determine host IP addresses for %s: %v", hostName, err)
		}
		ips = resolved
	}
	for _, ip := range ips {
		if ip.To4() == nil && ip.To16() == nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "invalid IP address in IPs list: %v", ip)
		}
	}

	serviceAddr := fmt.Sprintf("%s.%s.", trimDot(service), trimDot(domain))
	instanceAddr := fmt.Sprintf("%s.%s.%s.", instance, trimDot(service), trimDot(domain))
	enumAddr := fmt.Sprintf("_services._dns-sd._udp.%s.", trimDot(domain))

	return &MDNSService{
		Instance:     instance,
		Service:      service,
		Domain:       domain,
		HostName:     hostName,
		Port:         port,
		IPs:          ips,
		TXT:          txt,
		serviceAddr:  serviceAddr,
		instanceAddr: instanceAddr,
		enumAddr:     enumAddr,
	}, nil
}

// trimDot trims leading/trailing dots from s.
func trimDot(s string) string {
	return strings.Trim(s, ".")
}

// normalizeQuestionName appends a trailing '.' if name is missing one,
// matching the canonical FQDN forms this zone compares against.
func normalizeQuestionName(name string) string {
	if name == "" || name[len(name)-1] == '.' {
		return name
	}
	return name + "."
}

// Records implements Zone per the table in spec.md §4.B.
func (m *MDNSService) Records(q Question) (answers, additionals []Record) {
	name := normalizeQuestionName(q.Name)

	switch name {
	case m.enumAddr:
		if q.Type == TypeANY || q.Type == TypePTR {
			return []Record{m.ptrRecord(m.enumAddr, m.serviceAddr)}, nil
		}

	case m.serviceAddr:
		if q.Type == TypeANY || q.Type == TypePTR {
			ptr := m.ptrRecord(m.serviceAddr, m.instanceAddr)
			bundle, bundleExtra := m.instanceRecords(Question{Name: m.instanceAddr, Type: TypeANY, Class: q.Class})
			return []Record{ptr}, append(bundle, bundleExtra...)
		}

	case m.instanceAddr:
		return m.instanceRecords(q)

	case m.HostName:
		if q.Type == TypeA || q.Type == TypeAAAA {
			return m.hostRecords(q)
		}
	}

	return nil, nil
}

func (m *MDNSService) ptrRecord(name, target string) Record {
	return Record{
		Name:  name,
		Type:  TypePTR,
		Class: ClassINET,
		TTL:   defaultTTL,
		Body:  PTRResource{PTR: target},
	}
}

// instanceRecords answers a question addressed to the instance name.
func (m *MDNSService) instanceRecords(q Question) (answers, additionals []Record) {
	switch q.Type {
	case TypeANY:
		srv, srvAdd := m.instanceRecords(Question{Name: m.instanceAddr, Type: TypeSRV, Class: q.Class})
		txt, _ := m.instanceRecords(Question{Name: m.instanceAddr, Type: TypeTXT, Class: q.Class})
		return append(append([]Record{}, srv...), txt...), srvAdd

	case TypeA:
		return m.aRecords(m.HostName), nil

	case TypeAAAA:
		return m.aaaaRecords(m.HostName), nil

	case TypeSRV:
		srv := Record{
			Name:  m.instanceAddr,
			Type:  TypeSRV,
			Class: ClassINET,
			TTL:   defaultTTL,
			Body: SRVResource{
				Priority: 10,
				Weight:   1,
				Port:     uint16(m.Port),
				Target:   m.HostName,
			},
		}
		a := m.aRecords(m.HostName)
		aaaa := m.aaaaRecords(m.HostName)
		return []Record{srv}, append(a, aaaa...)

	case TypeTXT:
		return []Record{{
			Name:  m.instanceAddr,
			Type:  TypeTXT,
			Class: ClassINET,
			TTL:   defaultTTL,
			Body:  TXTResource{TXT: m.TXT},
		}}, nil
	}
	return nil, nil
}

func (m *MDNSService) hostRecords(q Question) (answers, additionals []Record) {
	switch q.Type {
	case TypeA:
		return m.aRecords(m.HostName), nil
	case TypeAAAA:
		return m.aaaaRecords(m.HostName), nil
	}
	return nil, nil
}

func (m *MDNSService) aRecords(name string) []Record {
	var out []Record
	for _, ip := range m.IPs {
		if ip4 := ip.To4(); ip4 != nil {
			out = append(out, Record{
				Name:  name,
				Type:  TypeA,
				Class: ClassINET,
				TTL:   defaultTTL,
				Body:  AResource{A: ipToA4(ip4)},
			})
		}
	}
	return out
}

func (m *MDNSService) aaaaRecords(name string) []Record {
	var out []Record
	for _, ip := range m.IPs {
		if ip.To4() != nil {
			continue
		}
		if ip16 := ip.To16(); ip16 != nil {
			out = append(out, Record{
				Name:  name,
				Type:  TypeAAAA,
				Class: ClassINET,
				TTL:   defaultTTL,
				Body:  AAAAResource{AAAA: ipToA16(ip16)},
			})
		}
	}
	return out
}
