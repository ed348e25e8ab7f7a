package mdns

import "strings"

// MakeTXT renders m as DNS-SD TXT strings, one "k=v" pair per entry.
func MakeTXT(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	return out
}

// ParseTXT parses DNS-SD TXT strings into a map. A bare "k" with no "="
// parses to (k, ""); when a key repeats, the last occurrence wins.
func ParseTXT(strs []string) map[string]string {
	out := make(map[string]string, len(strs))
	for _, s := range strs {
		if i := strings.IndexByte(s, '='); i >= 0 {
			out[s[:i]] = s[i+1:]
		} else {
			out[s] = ""
		}
	}
	return out
}
