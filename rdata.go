package mdns

import (
	"encoding/binary"
	"net"
)

// RecordBody is the RDATA payload of a resource record. Every supported
// type (A, PTR, TXT, AAAA, SRV) implements it; OtherResource carries anything
// else verbatim so the packet can still be forwarded or inspected.
type RecordBody interface {
	recordType() Type
	packRDATA(buf []byte) ([]byte, error)
}

// AResource is an IPv4 address record (type 1): 4 octets, big-endian.
type AResource struct{ A [4]byte }

func (AResource) recordType() Type { return TypeA }
func (r AResource) packRDATA(buf []byte) ([]byte, error) {
	return append(buf, r.A[:]...), nil
}

// AAAAResource is an IPv6 address record (type 28): 16 octets.
type AAAAResource struct{ AAAA [16]byte }

func (AAAAResource) recordType() Type { return TypeAAAA }
func (r AAAAResource) packRDATA(buf []byte) ([]byte, error) {
	return append(buf, r.AAAA[:]...), nil
}

// PTRResource is a pointer record (type 12): a single compressed name.
type PTRResource struct{ PTR string }

func (PTRResource) recordType() Type { return TypePTR }
func (r PTRResource) packRDATA(buf []byte) ([]byte, error) {
	return packName(buf, r.PTR)
}

// SRVResource is a service location record (type 33).
type SRVResource struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

func (SRVResource) recordType() Type { return TypeSRV }
func (r SRVResource) packRDATA(buf []byte) ([]byte, error) {
	buf = appendU16(buf, r.Priority)
	buf = appendU16(buf, r.Weight)
	buf = appendU16(buf, r.Port)
	return packName(buf, r.Target)
}

// TXTResource is a text record (type 16): a concatenation of
// length-prefixed octet strings, each at most 255 bytes.
type TXTResource struct{ TXT []string }

func (TXTResource) recordType() Type { return TypeTXT }
func (r TXTResource) packRDATA(buf []byte) ([]byte, error) {
	for _, s := range r.TXT {
		if len(s) > 255 {
			return nil, errTXTStringTooLong
		}
		buf = append(buf, byte(len(s)))
		buf = append(buf, s...)
	}
	return buf, nil
}

// NSECResource is recognized on the wire but carries no data this package
// interprets; the reader advances past it and keeps it around as raw bytes.
type NSECResource struct{ Raw []byte }

func (NSECResource) recordType() Type { return TypeNSEC }
func (r NSECResource) packRDATA(buf []byte) ([]byte, error) {
	return append(buf, r.Raw...), nil
}

// OtherResource holds the RDATA of a record type this package does not
// otherwise model.
type OtherResource struct {
	Type Type
	Data []byte
}

func (r OtherResource) recordType() Type { return r.Type }
func (r OtherResource) packRDATA(buf []byte) ([]byte, error) {
	return append(buf, r.Data...), nil
}

var errTXTStringTooLong = errInvalidLabel // reuse: both are "malformed RDATA"

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

// parseRDATA dispatches on t, parsing exactly rdlength bytes starting at
// off. It always returns an offset equal to off+rdlength on success: a
// specialized parser that consumes less than rdlength has the remainder
// skipped for it here, per spec.md §4.A.
func parseRDATA(msg []byte, off int, rdlength int, t Type) (RecordBody, int, error) {
	end := off + rdlength
	if rdlength < 0 || end > len(msg) {
		return nil, 0, errBaseLen
	}

	var body RecordBody
	var err error

	switch t {
	case TypeA:
		if rdlength != 4 {
			return nil, 0, errInvalidLabel
		}
		var a [4]byte
		copy(a[:], msg[off:off+4])
		body = AResource{A: a}

	case TypeAAAA:
		if rdlength != 16 {
			return nil, 0, errInvalidLabel
		}
		var a [16]byte
		copy(a[:], msg[off:off+16])
		body = AAAAResource{AAAA: a}

	case TypePTR:
		name, _, perr := parseName(msg, off)
		if perr != nil {
			return nil, 0, perr
		}
		body = PTRResource{PTR: name}

	case TypeSRV:
		if rdlength < 6 {
			return nil, 0, errBaseLen
		}
		priority := binary.BigEndian.Uint16(msg[off : off+2])
		weight := binary.BigEndian.Uint16(msg[off+2 : off+4])
		port := binary.BigEndian.Uint16(msg[off+4 : off+6])
		target, _, perr := parseName(msg, off+6)
		if perr != nil {
			return nil, 0, perr
		}
		body = SRVResource{Priority: priority, Weight: weight, Port: port, Target: target}

	case TypeTXT:
		strs, perr := parseTXTStrings(msg[off:end])
		if perr != nil {
			return nil, 0, perr
		}
		body = TXTResource{TXT: strs}

	case TypeNSEC:
		raw := make([]byte, rdlength)
		copy(raw, msg[off:end])
		body = NSECResource{Raw: raw}

	default:
		data := make([]byte, rdlength)
		copy(data, msg[off:end])
		body = OtherResource{Type: t, Data: data}
	}

	_ = err
	// Regardless of how much the specialized parser above consumed, the
	// record boundary is always rdlength bytes from off (PTR/SRV names may
	// use compression and so end before or land exactly at `end`).
	return body, end, nil
}

func parseTXTStrings(raw []byte) ([]string, error) {
	var out []string
	i := 0
	for i < len(raw) {
		n := int(raw[i])
		i++
		if i+n > len(raw) {
			return nil, errBaseLen
		}
		out = append(out, string(raw[i:i+n]))
		i += n
	}
	return out, nil
}

// ipToA4 converts a net.IP (v4 or v4-in-v6) into the 4-byte RDATA form of
// an A record. Callers are expected to have already checked To4() != nil.
func ipToA4(ip net.IP) [4]byte {
	v4 := ip.To4()
	var out [4]byte
	copy(out[:], v4)
	return out
}

// ipToA16 converts a net.IP into the 16-byte RDATA form of an AAAA record.
func ipToA16(ip net.IP) [16]byte {
	v16 := ip.To16()
	var out [16]byte
	copy(out[:], v16)
	return out
}
