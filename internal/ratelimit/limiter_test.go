package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinWindow(t *testing.T) {
	l := New(60)

	for i := 0; i < 60; i++ {
		if allowed, _ := l.Allow("client-a"); !allowed {
			t.Fatalf("request %d rejected inside the window", i+1)
		}
	}

	allowed, retryAfter := l.Allow("client-a")
	if allowed {
		t.Fatal("61st request within a minute was allowed")
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Fatalf("retryAfter = %d, want within [1,60]", retryAfter)
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l := New(1)

	if allowed, _ := l.Allow("a"); !allowed {
		t.Fatal("first request for a rejected")
	}
	if allowed, _ := l.Allow("b"); !allowed {
		t.Fatal("first request for b rejected")
	}
	if allowed, _ := l.Allow("a"); allowed {
		t.Fatal("second request for a allowed at limit 1")
	}
}

func TestWindowSlides(t *testing.T) {
	now := time.Now()
	l := New(2)
	l.now = func() time.Time { return now }

	l.Allow("c")
	l.Allow("c")
	if allowed, _ := l.Allow("c"); allowed {
		t.Fatal("third request allowed at limit 2")
	}

	// Move past the window; the old entries must expire.
	now = now.Add(61 * time.Second)
	if allowed, _ := l.Allow("c"); !allowed {
		t.Fatal("request rejected after window expired")
	}
}

func TestRetryAfterShrinksAsWindowAges(t *testing.T) {
	now := time.Now()
	l := New(1)
	l.now = func() time.Time { return now }

	l.Allow("d")
	now = now.Add(45 * time.Second)
	_, retryAfter := l.Allow("d")
	if retryAfter > 20 {
		t.Fatalf("retryAfter = %d, want at most ~16s left of the window", retryAfter)
	}
}
