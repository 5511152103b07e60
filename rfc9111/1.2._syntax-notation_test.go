package rfc9111

import (
	"testing"
	"time"
)

func TestDeltaSeconds(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"5", 5 * time.Second, true},
		{"0", 0, true},
		{"", 0, false},
		{"-1", 0, false},
		{"1.5", 0, false},
		{"99999999999999999999999", maxDeltaSeconds * time.Second, true},
	}
	for _, tt := range tests {
		got, ok := deltaSeconds(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("deltaSeconds(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseHTTPDate(t *testing.T) {
	want := time.Date(2050, time.August, 18, 2, 1, 18, 0, time.UTC)
	for _, in := range []string{
		"Thu, 18 Aug 2050 02:01:18 GMT",
		"Thu, 18 Aug 2050 02:01:18 gMT",
		"Thursday, 18-Aug-50 02:01:18 GMT",
		"Thu Aug 18 02:01:18 2050",
	} {
		got, err := ParseHTTPDate(in)
		if err != nil {
			t.Fatalf("Error parsing date %q: %+v", in, err)
		}
		if !got.Equal(want) {
			t.Fatalf("%q parsed as %v", in, got)
		}
	}
	for _, in := range []string{"0", "", "Thu, 18 Aug 2050 02:01:18 CET"} {
		if _, err := ParseHTTPDate(in); err == nil {
			t.Fatalf("%q should not parse", in)
		}
	}
}

func TestFormatHTTPDate(t *testing.T) {
	d := time.Date(1994, time.November, 6, 8, 49, 37, 0, time.FixedZone("x", 3600))
	if s := FormatHTTPDate(d); s != "Sun, 06 Nov 1994 07:49:37 GMT" {
		t.Fatalf("formatted as %s", s)
	}
}
