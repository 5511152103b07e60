package rfc9111

import (
	"testing"
	"time"
)

func TestParseCacheControl(t *testing.T) {
	tests := []struct {
		lines []string
		want  map[string]string
	}{
		{[]string{"max-age=60"}, map[string]string{"max-age": "60"}},
		{[]string{"public, max-age=0, s-maxage=600"}, map[string]string{"public": "", "max-age": "0", "s-maxage": "600"}},
		{[]string{"No-Store,max-age=\"30\""}, map[string]string{"no-store": "", "max-age": "30"}},
		{[]string{`no-cache="Set-Cookie, X-Id", private`}, map[string]string{"no-cache": "Set-Cookie, X-Id", "private": ""}},
		{[]string{`ext="a \"b\""`}, map[string]string{"ext": `a "b"`}},
		{[]string{" , ,max-age = 5 ,"}, map[string]string{"max-age": "5"}},
		{[]string{"max-age=10", "max-age=20"}, map[string]string{"max-age": "10"}},
		{nil, map[string]string{}},
	}
	for _, tt := range tests {
		cc := ParseCacheControl(tt.lines)
		if len(cc.directives) != len(tt.want) {
			t.Fatalf("%q parsed as %v", tt.lines, cc.directives)
		}
		for name, arg := range tt.want {
			if got, ok := cc.Get(name); !ok || got != arg {
				t.Fatalf("%q: %s is '%s', %v", tt.lines, name, got, ok)
			}
		}
	}
}

func TestDirectiveAccessors(t *testing.T) {
	cc := ParseCacheControl([]string{"max-age=60, s-maxage=x, proxy-revalidate, stale-while-revalidate=30"})
	if d, ok := cc.MaxAge(); !ok || d != time.Minute {
		t.Fatalf("max-age: %v %v", d, ok)
	}
	if _, ok := cc.SMaxAge(); ok {
		t.Fatal("invalid s-maxage must count as absent")
	}
	if !cc.MustRevalidate() {
		t.Fatal("proxy-revalidate not honored")
	}
	if d, ok := cc.StaleWhileRevalidate(); !ok || d != 30*time.Second {
		t.Fatalf("stale-while-revalidate: %v %v", d, ok)
	}
	if cc.NoCache() || cc.NoStore() {
		t.Fatal("unexpected directive")
	}
}
