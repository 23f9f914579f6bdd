package id

import (
	"regexp"
	"testing"
)

var reID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewID32Shape(t *testing.T) {
	got := NewID32()
	if !reID.MatchString(got) {
		t.Fatalf("id %q is not 32 lowercase hex characters", got)
	}
}

func TestNewID32Unique(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for i := 0; i < 500; i++ {
		id := NewID32()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = struct{}{}
	}
}
