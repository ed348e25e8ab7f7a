package mdns

import (
	"reflect"
	"testing"
)

func TestParseTXTBareKeyAndLastWins(t *testing.T) {
	got := ParseTXT([]string{"path=/", "flag", "version=1", "version=2"})
	want := map[string]string{"path": "/", "flag": "", "version": "2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTXT() = %v, want %v", got, want)
	}
}

func TestMakeTXTRoundTrip(t *testing.T) {
	m := map[string]string{"path": "/", "version": "1"}
	strs := MakeTXT(m)
	if len(strs) != 2 {
		t.Fatalf("MakeTXT() = %v, want 2 entries", strs)
	}
	back := ParseTXT(strs)
	if !reflect.DeepEqual(back, m) {
		t.Fatalf("ParseTXT(MakeTXT(m)) = %v, want %v", back, m)
	}
}

func TestParseTXTEmpty(t *testing.T) {
	got := ParseTXT(nil)
	if len(got) != 0 {
		t.Fatalf("ParseTXT(nil) = %v, want empty map", got)
	}
}
