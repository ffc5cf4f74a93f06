package devkey

import (
	"context"
	"testing"
)

func TestConnect_Deterministic(t *testing.T) {
	a, err := New(0).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	b, err := New(0).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	c, err := New(1).Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if a.Address() != b.Address() {
		t.Errorf("Expected same address for same index, got %s and %s", a.Address().Hex(), b.Address().Hex())
	}
	if a.Address() == c.Address() {
		t.Error("Expected different addresses for different indexes")
	}
}
