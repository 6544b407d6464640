package httpmiddleware

import "testing"

func TestTokenBucketExhaustion(t *testing.T) {
	l := NewTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.allow("1.2.3.4") {
			t.Fatalf("allow() = false on request %d, want true", i+1)
		}
	}
	if l.allow("1.2.3.4") {
		t.Error("allow() = true after capacity spent, want false")
	}
}

func TestTokenBucketPerKey(t *testing.T) {
	l := NewTokenBucket(1, 1)
	if !l.allow("1.2.3.4") {
		t.Fatal("allow() = false for first caller, want true")
	}
	if !l.allow("5.6.7.8") {
		t.Error("allow() = false for distinct caller, want true")
	}
}

func TestTokenBucketDefaultsCapacity(t *testing.T) {
	l := NewTokenBucket(0, 10)
	if l.capacity != 10 {
		t.Errorf("capacity = %d, want 10", l.capacity)
	}
}
