package rfc9211

import (
	"testing"
	"time"
)

func TestHit(t *testing.T) {
	s := New("Easyfetch").Hit().TTL(30 * time.Second).String()
	if s != "Easyfetch; hit; ttl=30" {
		t.Fatalf("Cache-Status is %s", s)
	}
}

func TestForward(t *testing.T) {
	s := New("Easyfetch").Forward(FwdReasonStale).FwdStatus(304).Stored(true).String()
	if s != "Easyfetch; fwd=stale; fwd-status=304; stored" {
		t.Fatalf("Cache-Status is %s", s)
	}
}

func TestDetail(t *testing.T) {
	s := New("Easyfetch").Forward(FwdReasonBypass).Detail("no-cache").String()
	if s != "Easyfetch; fwd=bypass; detail=no-cache" {
		t.Fatalf("Cache-Status is %s", s)
	}
}
