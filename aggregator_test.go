package mdns

import (
	"testing"
)

func TestAggregatorArrivalOrderFromSpecExample(t *testing.T) {
	out := make(chan *ServiceEntry, 4)
	a := newAggregator("_http._tcp.", "local.", out)

	a.ingest(Record{Name: "box.local.", Type: TypeA, Class: ClassINET, TTL: 120,
		Body: AResource{A: [4]byte{192, 168, 1, 2}}})
	select {
	case e := <-out:
		t.Fatalf("unexpected emission after A only: %v", e)
	default:
	}

	a.ingest(Record{Name: "Printer._http._tcp.local.", Type: TypeSRV, Class: ClassINET, TTL: 120,
		Body: SRVResource{Priority: 10, Weight: 1, Port: 80, Target: "box.local."}})
	select {
	case e := <-out:
		t.Fatalf("unexpected emission after SRV (no TXT yet): %v", e)
	default:
	}

	a.ingest(Record{Name: "Printer._http._tcp.local.", Type: TypeTXT, Class: ClassINET, TTL: 120,
		Body: TXTResource{TXT: []string{"path=/"}}})

	select {
	case e := <-out:
		if e.Name != "Printer._http._tcp.local." {
			t.Fatalf("emitted entry name = %q", e.Name)
		}
		if e.Host != "box.local." || e.Port != 80 {
			t.Fatalf("emitted entry host/port = %s/%d, want box.local./80", e.Host, e.Port)
		}
		if len(e.IPv4) != 1 || e.IPv4[0].String() != "192.168.1.2" {
			t.Fatalf("emitted entry IPv4 = %v", e.IPv4)
		}
	default:
		t.Fatalf("expected emission after TXT completes the entry")
	}
}

func TestAggregatorDuplicateARecordNoDoubleInsert(t *testing.T) {
	out := make(chan *ServiceEntry, 4)
	a := newAggregator("_http._tcp.", "local.", out)

	rec := Record{Name: "box.local.", Type: TypeA, Class: ClassINET, TTL: 120,
		Body: AResource{A: [4]byte{192, 168, 1, 2}}}
	a.ingest(rec)
	a.ingest(rec)

	idx := a.index["box.local."]
	e := a.entries[idx]
	if len(e.IPv4) != 1 {
		t.Fatalf("len(IPv4) = %d, want 1 after duplicate A records", len(e.IPv4))
	}
}

func TestAggregatorTwoInstancesShareHostAddresses(t *testing.T) {
	out := make(chan *ServiceEntry, 4)
	a := newAggregator("_http._tcp.", "local.", out)

	a.ingest(Record{Name: "Printer._http._tcp.local.", Type: TypeSRV, Class: ClassINET, TTL: 120,
		Body: SRVResource{Priority: 10, Weight: 1, Port: 80, Target: "box.local."}})
	a.ingest(Record{Name: "Scanner._http._tcp.local.", Type: TypeSRV, Class: ClassINET, TTL: 120,
		Body: SRVResource{Priority: 10, Weight: 1, Port: 81, Target: "box.local."}})

	a.ingest(Record{Name: "box.local.", Type: TypeA, Class: ClassINET, TTL: 120,
		Body: AResource{A: [4]byte{192, 168, 1, 2}}})

	printerIdx := a.index["Printer._http._tcp.local."]
	scannerIdx := a.index["Scanner._http._tcp.local."]
	if len(a.entries[printerIdx].IPv4) != 1 || len(a.entries[scannerIdx].IPv4) != 1 {
		t.Fatalf("expected both instances to receive the shared host's address, got printer=%v scanner=%v",
			a.entries[printerIdx].IPv4, a.entries[scannerIdx].IPv4)
	}
}

func TestAggregatorNeverReemitsCompletedEntry(t *testing.T) {
	out := make(chan *ServiceEntry, 4)
	a := newAggregator("_http._tcp.", "local.", out)

	a.ingest(Record{Name: "Printer._http._tcp.local.", Type: TypeSRV, Class: ClassINET, TTL: 120,
		Body: SRVResource{Priority: 10, Weight: 1, Port: 80, Target: "box.local."}})
	a.ingest(Record{Name: "box.local.", Type: TypeA, Class: ClassINET, TTL: 120,
		Body: AResource{A: [4]byte{192, 168, 1, 2}}})
	a.ingest(Record{Name: "Printer._http._tcp.local.", Type: TypeTXT, Class: ClassINET, TTL: 120,
		Body: TXTResource{TXT: []string{"path=/"}}})

	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 after first completion", len(out))
	}
	<-out

	// A second, duplicate TXT record must not re-trigger emission.
	a.ingest(Record{Name: "Printer._http._tcp.local.", Type: TypeTXT, Class: ClassINET, TTL: 120,
		Body: TXTResource{TXT: []string{"path=/"}}})
	select {
	case e := <-out:
		t.Fatalf("unexpected re-emission: %v", e)
	default:
	}
}

func TestAggregatorPTRAliasingSharesArenaSlot(t *testing.T) {
	out := make(chan *ServiceEntry, 4)
	a := newAggregator("_http._tcp.", "local.", out)

	a.ingest(Record{Name: "_http._tcp.local.", Type: TypePTR, Class: ClassINET, TTL: 120,
		Body: PTRResource{PTR: "Printer._http._tcp.local."}})

	aliasIdx := a.index["_http._tcp.local."]
	targetIdx := a.index["Printer._http._tcp.local."]
	if aliasIdx != targetIdx {
		t.Fatalf("PTR alias index = %d, target index = %d, want equal", aliasIdx, targetIdx)
	}
}
