package httpapi

import (
	"fmt"
	"testing"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	r := NewWebhookRateLimiter()
	for i := 0; i < rateLimitMaxHits; i++ {
		if !r.Allow("5511999990000") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if r.Allow("5511999990000") {
		t.Error("request above the window limit allowed")
	}
	if !r.Allow("5521888880000") {
		t.Error("independent key denied")
	}
}

func TestRateLimiterEvictsAtCap(t *testing.T) {
	r := NewWebhookRateLimiter()
	for i := 0; i < maxTrackedKeys+10; i++ {
		r.Allow(fmt.Sprintf("key-%d", i))
	}
	if len(r.entries) > maxTrackedKeys {
		t.Errorf("tracked keys = %d, cap = %d", len(r.entries), maxTrackedKeys)
	}
}
