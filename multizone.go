package mdns

import "sync"

// Zones composes several Zone values into one, answering a question with
// the concatenation of every zone's answer in insertion order. Duplicate
// answers across zones are not deduplicated (spec.md §4.C).
type Zones struct {
	mu    sync.RWMutex
	zones []Zone
}

// NewZones returns a composer seeded with the given zones, in order.
func NewZones(zones ...Zone) *Zones {
	return &Zones{zones: append([]Zone{}, zones...)}
}

// Add appends a zone, answered last among existing zones.
func (z *Zones) Add(zone Zone) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.zones = append(z.zones, zone)
}

// Remove drops the first occurrence of zone, if present.
func (z *Zones) Remove(zone Zone) {
	z.mu.Lock()
	defer z.mu.Unlock()
	for i, zz := range z.zones {
		if zz == zone {
			z.zones = append(z.zones[:i], z.zones[i+1:]...)
			return
		}
	}
}

// Records implements Zone by concatenating every member zone's answer to q.
func (z *Zones) Records(q Question) (answers, additionals []Record) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	for _, zone := range z.zones {
		a, add := zone.Records(q)
		answers = append(answers, a...)
		additionals = append(additionals, add...)
	}
	return answers, additionals
}
