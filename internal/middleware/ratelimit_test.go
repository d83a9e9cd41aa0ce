package middleware

import (
	"testing"
	"time"
)

func TestLimiterAllowsBurstThenBlocks(t *testing.T) {
	// 1 event/minute with burst 2: first two pass, third blocked
	s := NewLimiterStore(1, 2, time.Minute)
	defer s.Stop()

	if !s.Allow("conn-1") {
		t.Fatalf("first event should be allowed")
	}
	if !s.Allow("conn-1") {
		t.Fatalf("second event should be allowed within burst")
	}
	if s.Allow("conn-1") {
		t.Fatalf("third event should be rate limited")
	}

	// other keys are unaffected
	if !s.Allow("conn-2") {
		t.Fatalf("independent key should be allowed")
	}
}

func TestLimiterForget(t *testing.T) {
	s := NewLimiterStore(1, 1, time.Minute)
	defer s.Stop()

	if !s.Allow("conn-1") {
		t.Fatalf("first event should be allowed")
	}
	if s.Allow("conn-1") {
		t.Fatalf("second event should be blocked")
	}

	// a fresh connection under the same key starts with a full bucket
	s.Forget("conn-1")
	if !s.Allow("conn-1") {
		t.Fatalf("expected full bucket after Forget")
	}
}
